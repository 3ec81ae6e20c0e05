package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/haggle/internal/chat"
)

// chatService is the subset of chat.Service the HTTP API uses.
type chatService interface {
	InitiateSession(ctx context.Context, sessionID string) (string, error)
	SendMessage(ctx context.Context, sessionID, message string, priceComparison bool) (string, error)
}

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

type chatRequest struct {
	SessionID       string `json:"sessionId"`
	Message         string `json:"message"`
	PriceComparison *bool  `json:"priceComparison"`
}

type greetingResponse struct {
	Greeting  string `json:"greeting"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// newRouter builds the HTTP API.
func newRouter(svc chatService, corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/greeting", greetingHandler(svc))
		r.Post("/chat", chatHandler(svc))
	})
	return r
}

func greetingHandler(svc chatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if req.SessionID == "" {
			req.SessionID = uuid.NewString()
		}

		greeting, err := svc.InitiateSession(r.Context(), req.SessionID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, greetingResponse{Greeting: greeting, SessionID: req.SessionID})
	}
}

func chatHandler(svc chatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if req.Message == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
			return
		}
		if req.SessionID == "" {
			req.SessionID = uuid.NewString()
		}
		priceComparison := req.PriceComparison == nil || *req.PriceComparison

		reply, err := svc.SendMessage(r.Context(), req.SessionID, req.Message, priceComparison)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, chatResponse{Response: reply, SessionID: req.SessionID})
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrConfigurationMissing):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "AI service unavailable: API key not configured"})
	case errors.Is(err, chat.ErrModelService):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "AI service error"})
	default:
		zap.L().Error("api: unexpected error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
