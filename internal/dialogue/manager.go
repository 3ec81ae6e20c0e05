// Package dialogue keeps per-session conversation history and assembles
// the bounded message list sent to the language model.
package dialogue

import (
	"time"

	"github.com/sells-group/haggle/internal/model"
)

// Defaults for the prompt and storage windows.
const (
	DefaultMaxHistoryTurns  = 10
	DefaultMaxTotalMessages = 50
)

// Options configures a Manager.
type Options struct {
	// MaxHistoryTurns bounds the prompt to the system message plus the last
	// 2*MaxHistoryTurns messages.
	MaxHistoryTurns int
	// MaxTotalMessages bounds stored turns per session.
	MaxTotalMessages int
	SystemPrompt     string
}

// Manager builds prompts from, and records turns into, a Store.
type Manager struct {
	store Store
	opts  Options
}

// NewManager creates a Manager. Zero options take the defaults.
func NewManager(store Store, opts Options) *Manager {
	if opts.MaxHistoryTurns <= 0 {
		opts.MaxHistoryTurns = DefaultMaxHistoryTurns
	}
	if opts.MaxTotalMessages <= 0 {
		opts.MaxTotalMessages = DefaultMaxTotalMessages
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = SystemPrompt
	}
	return &Manager{store: store, opts: opts}
}

// Lock serializes work on sessionID until the returned func is called.
func (m *Manager) Lock(sessionID string) func() { return m.store.Lock(sessionID) }

// Greet resets the session to the single greeting turn and returns it.
func (m *Manager) Greet(sessionID string) string {
	m.store.Replace(sessionID, []model.Message{model.Assistant(Greeting)})
	return Greeting
}

// BuildContext returns the system prompt, the stored turns and the incoming
// message, trimmed to the prompt window. Storage is not modified.
//
// The greeting sentinel adds a placeholder user turn only to an empty
// session. When injected is set, incoming is system-built price context
// that stands in for the trailing stored user turn.
func (m *Manager) BuildContext(sessionID, incoming string, injected bool) []model.Message {
	turns := m.store.Turns(sessionID)

	msgs := make([]model.Message, 0, len(turns)+2)
	msgs = append(msgs, model.System(m.opts.SystemPrompt))
	msgs = append(msgs, turns...)

	switch {
	case incoming == GreetingSentinel:
		if len(turns) == 0 {
			msgs = append(msgs, model.User(GreetingPlaceholder))
		}
	case injected && len(turns) > 0 && turns[len(turns)-1].Role == model.RoleUser:
		msgs[len(msgs)-1] = model.User(incoming)
	default:
		msgs = append(msgs, model.User(incoming))
	}

	window := 2 * m.opts.MaxHistoryTurns
	if len(msgs) > window+1 {
		trimmed := make([]model.Message, 0, window+1)
		trimmed = append(trimmed, msgs[0])
		trimmed = append(trimmed, msgs[len(msgs)-window:]...)
		msgs = trimmed
	}
	return msgs
}

// Append records turns for sessionID.
func (m *Manager) Append(sessionID string, msgs ...model.Message) {
	m.store.Append(sessionID, msgs...)
}

// TrimStorage drops the oldest turns beyond MaxTotalMessages and reports
// how many were dropped.
func (m *Manager) TrimStorage(sessionID string) int {
	turns := m.store.Turns(sessionID)
	excess := len(turns) - m.opts.MaxTotalMessages
	if excess <= 0 {
		return 0
	}
	m.store.Replace(sessionID, turns[excess:])
	return excess
}

// History returns a copy of the stored turns.
func (m *Manager) History(sessionID string) []model.Message {
	return m.store.Turns(sessionID)
}

// LastTurn returns the most recent stored turn.
func (m *Manager) LastTurn(sessionID string) (model.Message, bool) {
	turns := m.store.Turns(sessionID)
	if len(turns) == 0 {
		return model.Message{}, false
	}
	return turns[len(turns)-1], true
}

// EvictIdle forwards to the store.
func (m *Manager) EvictIdle(maxIdle time.Duration) int { return m.store.EvictIdle(maxIdle) }
