package anthropic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*MessageResponse), args.Error(1)
}

func TestCreateMessage_MockClient(t *testing.T) {
	mc := &MockClient{}
	req := MessageRequest{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 256,
		Messages:  []Message{{Role: "user", Content: "hi"}},
	}
	mc.On("CreateMessage", mock.Anything, req).Return(&MessageResponse{
		ID:      "msg_1",
		Content: []ContentBlock{{Type: "text", Text: "hello"}},
	}, nil)

	var c Client = mc
	resp, err := c.CreateMessage(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text())
	mc.AssertExpectations(t)
}

func TestCreateMessage_MockClientError(t *testing.T) {
	mc := &MockClient{}
	mc.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("down"))

	_, err := mc.CreateMessage(context.Background(), MessageRequest{})
	assert.EqualError(t, err, "down")
}

func TestMessageResponse_Text(t *testing.T) {
	r := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: "first"},
		{Type: "tool_use"},
		{Type: "text", Text: ""},
		{Type: "text", Text: "second"},
	}}
	assert.Equal(t, "first\nsecond", r.Text())
	assert.Empty(t, (&MessageResponse{}).Text())
}

func TestToSDKMessages_Roles(t *testing.T) {
	out := toSDKMessages([]Message{
		{Role: "user", Content: "a"},
		{Role: "assistant", Content: "b"},
		{Role: "other", Content: "c"},
	})
	require.Len(t, out, 3)
	assert.Equal(t, "user", string(out[0].Role))
	assert.Equal(t, "assistant", string(out[1].Role))
	assert.Equal(t, "user", string(out[2].Role))
	assert.Empty(t, toSDKMessages(nil))
}

func TestToSDKSystemBlocks(t *testing.T) {
	out := toSDKSystemBlocks([]SystemBlock{
		{Text: "plain"},
		{Text: "cached", CacheControl: &CacheControl{TTL: "1h"}},
		{Text: "default ttl", CacheControl: &CacheControl{}},
	})
	require.Len(t, out, 3)
	assert.Equal(t, "plain", out[0].Text)
	assert.Equal(t, "1h", string(out[1].CacheControl.TTL))
	assert.Empty(t, string(out[2].CacheControl.TTL))
}

func TestBuildCachedSystemBlocks(t *testing.T) {
	blocks := BuildCachedSystemBlocks("policy", "1h")
	require.Len(t, blocks, 1)
	assert.Equal(t, "policy", blocks[0].Text)
	require.NotNil(t, blocks[0].CacheControl)
	assert.Equal(t, "1h", blocks[0].CacheControl.TTL)

	assert.Nil(t, BuildCachedSystemBlocks("", "1h"))
}

func TestEstimateCost_Sonnet(t *testing.T) {
	u := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	assert.InDelta(t, 18.0, u.EstimateCost("claude-sonnet-4-5-20250929"), 0.0001)
}

func TestEstimateCost_WithCache(t *testing.T) {
	u := TokenUsage{CacheCreationInputTokens: 1_000_000, CacheReadInputTokens: 1_000_000}
	// 3.00*1.25 + 3.00*0.1
	assert.InDelta(t, 4.05, u.EstimateCost("claude-sonnet-4-5-20250929"), 0.0001)
}

func TestEstimateCost_UnknownModel(t *testing.T) {
	u := TokenUsage{InputTokens: 1000, OutputTokens: 1000}
	assert.Zero(t, u.EstimateCost("gpt-4"))
}

func TestLogCost_DoesNotPanic(t *testing.T) {
	u := TokenUsage{InputTokens: 10, OutputTokens: 5}
	assert.NotPanics(t, func() { u.LogCost("claude-haiku-4-5-20251001", "chat") })
}

func TestStatusCode_NonAPIError(t *testing.T) {
	assert.Zero(t, StatusCode(errors.New("dial tcp: refused")))
	assert.False(t, IsRetryable(errors.New("dial tcp: refused")))
	assert.Zero(t, StatusCode(nil))
}
