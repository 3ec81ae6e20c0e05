package chat

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/haggle/internal/model"
	"github.com/sells-group/haggle/internal/resilience"
	"github.com/sells-group/haggle/pkg/anthropic"
)

// Model produces one assistant completion for an ordered message list.
type Model interface {
	Complete(ctx context.Context, msgs []model.Message) (string, error)
}

// ModelConfig configures an AnthropicModel.
type ModelConfig struct {
	Model     string
	MaxTokens int64
	// CacheTTL enables prompt caching of the system prompt ("5m" or "1h").
	CacheTTL string
	Retry    resilience.RetryConfig
	// Breaker, when set, stops calling the API after repeated failures.
	Breaker *resilience.Breaker
}

// DefaultMaxTokens bounds a completion when none is configured.
const DefaultMaxTokens = 1024

// conversationOpener precedes histories that start with an assistant turn;
// the Messages API requires a user turn first.
const conversationOpener = "Hello."

// AnthropicModel implements Model over the Anthropic Messages API.
type AnthropicModel struct {
	client anthropic.Client
	cfg    ModelConfig
}

// NewAnthropicModel creates an AnthropicModel.
func NewAnthropicModel(client anthropic.Client, cfg ModelConfig) *AnthropicModel {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Retry.ShouldRetry == nil {
		cfg.Retry.ShouldRetry = func(err error) bool {
			return anthropic.IsRetryable(err) || resilience.IsTransient(err)
		}
	}
	if cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = resilience.RetryLogger("anthropic", "create_message")
	}
	return &AnthropicModel{client: client, cfg: cfg}
}

// Complete sends msgs and returns the trimmed reply text. System messages
// become the request's system prompt.
func (m *AnthropicModel) Complete(ctx context.Context, msgs []model.Message) (string, error) {
	req := m.buildRequest(msgs)

	call := func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return resilience.DoVal(ctx, m.cfg.Retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return m.client.CreateMessage(ctx, req)
		})
	}

	var (
		resp *anthropic.MessageResponse
		err  error
	)
	if m.cfg.Breaker != nil {
		resp, err = resilience.ExecuteVal(ctx, m.cfg.Breaker, call)
	} else {
		resp, err = call(ctx)
	}
	if err != nil {
		return "", eris.Wrap(err, "chat: complete")
	}

	resp.Usage.LogCost(m.cfg.Model, "chat")

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", eris.New("chat: empty completion")
	}
	return text, nil
}

func (m *AnthropicModel) buildRequest(msgs []model.Message) anthropic.MessageRequest {
	var (
		system []string
		convo  []anthropic.Message
	)
	for _, msg := range msgs {
		switch msg.Role {
		case model.RoleSystem:
			system = append(system, msg.Content)
		default:
			convo = append(convo, anthropic.Message{Role: string(msg.Role), Content: msg.Content})
		}
	}
	if len(convo) > 0 && convo[0].Role != string(model.RoleUser) {
		zap.L().Debug("chat: prepending opener to assistant-first history")
		convo = append([]anthropic.Message{{Role: string(model.RoleUser), Content: conversationOpener}}, convo...)
	}

	req := anthropic.MessageRequest{
		Model:     m.cfg.Model,
		MaxTokens: m.cfg.MaxTokens,
		Messages:  convo,
	}
	if len(system) > 0 {
		text := strings.Join(system, "\n\n")
		if m.cfg.CacheTTL != "" {
			req.System = anthropic.BuildCachedSystemBlocks(text, m.cfg.CacheTTL)
		} else {
			req.System = []anthropic.SystemBlock{{Text: text}}
		}
	}
	return req
}
