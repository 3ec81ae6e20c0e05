// Package chat answers session messages, routing price questions through
// a live price lookup before asking the language model for advice.
package chat

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/haggle/internal/classify"
	"github.com/sells-group/haggle/internal/dialogue"
	"github.com/sells-group/haggle/internal/model"
)

// PriceLooker runs a price lookup for a subject.
type PriceLooker interface {
	Lookup(ctx context.Context, subject string) model.PriceReport
}

// Service handles greetings and chat turns for sessions.
type Service struct {
	dialogue   *dialogue.Manager
	classifier *classify.Classifier
	prices     PriceLooker
	// model is nil when no credential is configured.
	model Model
}

// NewService creates a Service. A nil model means the credential is
// missing: plain chat fails with ErrConfigurationMissing and price checks
// return the report alone.
func NewService(dm *dialogue.Manager, cl *classify.Classifier, prices PriceLooker, m Model) *Service {
	if cl == nil {
		cl = classify.New()
	}
	return &Service{dialogue: dm, classifier: cl, prices: prices, model: m}
}

// InitiateSession resets sessionID to the greeting turn and returns it.
func (s *Service) InitiateSession(_ context.Context, sessionID string) (string, error) {
	unlock := s.dialogue.Lock(sessionID)
	defer unlock()

	greeting := s.dialogue.Greet(sessionID)
	zap.L().Info("chat: session greeted", zap.String("session_id", sessionID))
	return greeting, nil
}

// SendMessage answers one user message. Requests for the same session are
// serialized.
func (s *Service) SendMessage(ctx context.Context, sessionID, message string, priceComparison bool) (string, error) {
	message = strings.TrimSpace(message)

	unlock := s.dialogue.Lock(sessionID)
	defer unlock()

	if message == dialogue.GreetingSentinel {
		zap.L().Warn("chat: greeting sentinel received on chat endpoint", zap.String("session_id", sessionID))
		if last, ok := s.dialogue.LastTurn(sessionID); ok {
			return last.Content, nil
		}
		return dialogue.FallbackReply, nil
	}

	isPrice, subject := s.classifier.Classify(message)
	if isPrice && priceComparison {
		return s.priceReply(ctx, sessionID, message, subject), nil
	}
	if isPrice {
		zap.L().Info("chat: price query with comparison disabled",
			zap.String("session_id", sessionID),
			zap.String("subject", subject),
		)
	}
	return s.plainReply(ctx, sessionID, message)
}

func (s *Service) priceReply(ctx context.Context, sessionID, message, subject string) string {
	log := zap.L().With(zap.String("session_id", sessionID), zap.String("subject", subject))
	log.Info("chat: price query detected")

	s.dialogue.Append(sessionID, model.User(message))
	report := s.prices.Lookup(ctx, subject).Text()

	reply := report
	if s.model == nil {
		log.Warn("chat: no model configured, returning price report only")
	} else {
		msgs := s.dialogue.BuildContext(sessionID, dialogue.PriceContext(message, report), true)
		advice, err := s.model.Complete(ctx, msgs)
		if err != nil {
			log.Error("chat: model failed on price query, returning price report only", zap.Error(err))
		} else {
			reply = report + "\n\n" + advice
		}
	}

	s.dialogue.Append(sessionID, model.Assistant(reply))
	s.dialogue.TrimStorage(sessionID)
	return reply
}

func (s *Service) plainReply(ctx context.Context, sessionID, message string) (string, error) {
	if s.model == nil {
		return "", ErrConfigurationMissing
	}

	msgs := s.dialogue.BuildContext(sessionID, message, false)
	reply, err := s.model.Complete(ctx, msgs)
	if err != nil {
		zap.L().Error("chat: model call failed", zap.String("session_id", sessionID), zap.Error(err))
		return "", eris.Wrapf(ErrModelService, "%v", err)
	}

	s.dialogue.Append(sessionID, model.User(message), model.Assistant(reply))
	if n := s.dialogue.TrimStorage(sessionID); n > 0 {
		zap.L().Debug("chat: trimmed stored turns", zap.String("session_id", sessionID), zap.Int("dropped", n))
	}
	zap.L().Info("chat: replied", zap.String("session_id", sessionID))
	return reply, nil
}
