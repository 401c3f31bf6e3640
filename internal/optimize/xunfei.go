package optimize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nao1215/wikimirror/internal/config"
)

// Spark defaults.
const (
	defaultXunfeiURL   = "https://spark-api-open.xf-yun.com/v1/chat/completions"
	defaultXunfeiModel = "generalv3.5"
)

// Xunfei talks to the iFlytek Spark API. The wire is streaming-only: even
// a plain Optimize call opens a stream and joins the deltas, and Spark's
// native frame format is adapted into the generic delta shape.
type Xunfei struct {
	remote
}

// NewXunfei builds the Spark-backed optimizer.
func NewXunfei(cfg config.OptimizeConfig, logger *slog.Logger) *Xunfei {
	if logger == nil {
		logger = slog.Default()
	}
	return &Xunfei{remote{
		name:       KindXunfei,
		client:     newChatClient(cfg, defaultXunfeiURL, defaultXunfeiModel),
		frame:      sparkFrame,
		streamOnly: true,
		logger:     logger,
	}}
}

// sparkChunk is Spark's native streamed frame.
type sparkChunk struct {
	Header struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  int    `json:"status"`
	} `json:"header"`
	Payload struct {
		Choices struct {
			Text []struct {
				Content string `json:"content"`
			} `json:"text"`
		} `json:"choices"`
	} `json:"payload"`
}

// sparkFrame adapts a Spark frame into the generic delta shape. A non-zero
// header.code is a backend error; header.status 2 marks the final frame.
func sparkFrame(line []byte) (string, bool, error) {
	if bytes.HasPrefix(line, []byte("data:")) {
		line = bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
	}
	if len(line) == 0 {
		return "", false, nil
	}
	if bytes.Equal(line, []byte("[DONE]")) {
		return "", true, nil
	}
	if line[0] != '{' {
		return "", false, nil
	}
	var f sparkChunk
	if err := json.Unmarshal(line, &f); err != nil {
		return "", false, fmt.Errorf("decode spark frame: %w", err)
	}
	if f.Header.Code != 0 {
		return "", false, fmt.Errorf("spark error %d: %s", f.Header.Code, f.Header.Message)
	}
	var delta string
	if texts := f.Payload.Choices.Text; len(texts) > 0 {
		delta = texts[0].Content
	}
	return delta, f.Header.Status == 2, nil
}
