package fetcher

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/haggle/internal/resilience"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(nil))
	assert.Equal(t, KindNonSuccess, KindOf(&Error{Kind: KindNonSuccess, StatusCode: 500}))
	assert.Equal(t, KindBlocked, KindOf(fmt.Errorf("wrapped: %w", &Error{Kind: KindBlocked})))
	assert.Equal(t, KindCircuitOpen, KindOf(resilience.ErrCircuitOpen))
	assert.Equal(t, KindTimeout, KindOf(context.DeadlineExceeded))
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindTimeout, classify("u", fmt.Errorf("get: %w", context.DeadlineExceeded)).Kind)
	assert.Equal(t, KindTransport, classify("u", errors.New("connection refused")).Kind)
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "fetcher: fetch_non_success_status: status 503 from https://x", (&Error{Kind: KindNonSuccess, URL: "https://x", StatusCode: 503}).Error())
	assert.Equal(t, "fetcher: fetch_transport_error: https://x: refused", (&Error{Kind: KindTransport, URL: "https://x", Err: errors.New("refused")}).Error())
	inner := errors.New("inner")
	assert.ErrorIs(t, &Error{Kind: KindTimeout, Err: inner}, inner)
}
