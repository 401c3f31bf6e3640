package optimize

import (
	"context"
	"log/slog"
	"strings"
)

// remote is the shared behavior of the chat-completion backends: one
// Optimize entry that either completes in a single call or joins a stream,
// and one Stream entry exposing the lazy shape.
type remote struct {
	name       string
	client     *chatClient
	frame      frameFunc
	streamOnly bool
	streamMode bool
	logger     *slog.Logger
}

// Name implements Optimizer.
func (r *remote) Name() string {
	return r.name
}

// Optimize implements Optimizer under the fallback contract: every failure
// returns the input unchanged.
func (r *remote) Optimize(ctx context.Context, src Source) Result {
	if r.client.apiKey == "" {
		return fallback(src, ErrNoAPIKey)
	}
	if r.streamOnly || r.streamMode {
		stream, err := r.Stream(ctx, src)
		if err != nil {
			r.logger.Warn("optimizer stream failed, keeping original",
				"optimizer", r.name, "error", err)
			return fallback(src, err)
		}
		return joinStream(stream, src)
	}

	content, err := r.client.complete(ctx, src)
	if err != nil {
		r.logger.Warn("optimizer call failed, keeping original",
			"optimizer", r.name, "error", err)
		return fallback(src, err)
	}
	if strings.TrimSpace(content) == "" {
		return fallback(src, ErrEmptyResponse)
	}
	return Result{Content: content}
}

// Stream implements Streamer.
func (r *remote) Stream(ctx context.Context, src Source) (*DeltaStream, error) {
	if r.client.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return r.client.stream(ctx, src, r.frame)
}
