package chat

import "github.com/rotisserie/eris"

var (
	// ErrConfigurationMissing means no model credential is configured.
	ErrConfigurationMissing = eris.New("chat: language model credential not configured")
	// ErrModelService means the language model call failed.
	ErrModelService = eris.New("chat: language model service error")
)
