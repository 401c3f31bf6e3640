package optimize

import (
	"log/slog"

	"github.com/nao1215/wikimirror/internal/config"
)

// Defaults for the generic endpoint.
const (
	defaultCompatibleURL   = "https://api.openai.com/v1/chat/completions"
	defaultCompatibleModel = "gpt-3.5-turbo"
)

// Compatible speaks the chat-completion wire directly against any
// compliant endpoint. Configured extra parameters are merged verbatim into
// the request body for vendor-specific knobs.
type Compatible struct {
	remote
}

// NewCompatible builds the generic chat-completion optimizer.
func NewCompatible(cfg config.OptimizeConfig, logger *slog.Logger) *Compatible {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compatible{remote{
		name:       KindCompatible,
		client:     newChatClient(cfg, defaultCompatibleURL, defaultCompatibleModel),
		frame:      chatFrame,
		streamMode: cfg.Stream,
		logger:     logger,
	}}
}
