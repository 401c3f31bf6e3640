package optimize

import (
	"log/slog"

	"github.com/nao1215/wikimirror/internal/config"
)

// Baichuan defaults.
const (
	defaultBaichuanURL   = "https://api.baichuan-ai.com/v1/chat/completions"
	defaultBaichuanModel = "Baichuan4-Air"
)

// Baichuan talks to the Baichuan chat-completion API, in either a single
// completion or streamed deltas depending on configuration.
type Baichuan struct {
	remote
}

// NewBaichuan builds the Baichuan-backed optimizer.
func NewBaichuan(cfg config.OptimizeConfig, logger *slog.Logger) *Baichuan {
	if logger == nil {
		logger = slog.Default()
	}
	return &Baichuan{remote{
		name:       KindBaichuan,
		client:     newChatClient(cfg, defaultBaichuanURL, defaultBaichuanModel),
		frame:      chatFrame,
		streamMode: cfg.Stream,
		logger:     logger,
	}}
}
