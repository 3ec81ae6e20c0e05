package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/haggle/internal/chat"
)

type mockChat struct{ mock.Mock }

func (m *mockChat) InitiateSession(ctx context.Context, sessionID string) (string, error) {
	args := m.Called(ctx, sessionID)
	return args.String(0), args.Error(1)
}

func (m *mockChat) SendMessage(ctx context.Context, sessionID, message string, priceComparison bool) (string, error) {
	args := m.Called(ctx, sessionID, message, priceComparison)
	return args.String(0), args.Error(1)
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	h := newRouter(&mockChat{}, []string{"*"})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, map[string]string{"status": "ok"}, decode(t, rr))
}

func TestGreetingEndpoint(t *testing.T) {
	svc := &mockChat{}
	svc.On("InitiateSession", mock.Anything, "s1").Return("Hello!", nil)

	rr := post(t, newRouter(svc, nil), "/api/greeting", `{"sessionId":"s1"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]string{"greeting": "Hello!", "session_id": "s1"}, decode(t, rr))
	svc.AssertExpectations(t)
}

func TestGreetingEndpoint_GeneratesSessionID(t *testing.T) {
	svc := &mockChat{}
	svc.On("InitiateSession", mock.Anything, mock.AnythingOfType("string")).Return("Hello!", nil)

	rr := post(t, newRouter(svc, nil), "/api/greeting", `{}`)
	require.Equal(t, http.StatusOK, rr.Code)
	id := decode(t, rr)["session_id"]
	assert.Len(t, id, 36)
}

func TestGreetingEndpoint_BadBody(t *testing.T) {
	rr := post(t, newRouter(&mockChat{}, nil), "/api/greeting", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestChatEndpoint(t *testing.T) {
	svc := &mockChat{}
	svc.On("SendMessage", mock.Anything, "s1", "hello", true).Return("Hi there", nil)

	rr := post(t, newRouter(svc, nil), "/api/chat", `{"sessionId":"s1","message":"hello"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]string{"response": "Hi there", "session_id": "s1"}, decode(t, rr))
	svc.AssertExpectations(t)
}

func TestChatEndpoint_PriceComparisonFlag(t *testing.T) {
	svc := &mockChat{}
	svc.On("SendMessage", mock.Anything, "s1", "price of lamp", false).Return("advice", nil)

	rr := post(t, newRouter(svc, nil), "/api/chat", `{"sessionId":"s1","message":"price of lamp","priceComparison":false}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestChatEndpoint_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"config missing", chat.ErrConfigurationMissing, http.StatusServiceUnavailable},
		{"model error", eris.Wrap(chat.ErrModelService, "upstream 500"), http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockChat{}
			svc.On("SendMessage", mock.Anything, "s1", "hello", true).Return("", tt.err)

			rr := post(t, newRouter(svc, nil), "/api/chat", `{"sessionId":"s1","message":"hello"}`)
			assert.Equal(t, tt.want, rr.Code)
			assert.NotEmpty(t, decode(t, rr)["error"])
		})
	}
}

func TestChatEndpoint_BadRequests(t *testing.T) {
	h := newRouter(&mockChat{}, nil)

	assert.Equal(t, http.StatusBadRequest, post(t, h, "/api/chat", `nope`).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, h, "/api/chat", `{"sessionId":"s1"}`).Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newRouter(&mockChat{}, []string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	rr := httptest.NewRecorder()
	newRouter(&mockChat{}, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
