package optimize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/nao1215/wikimirror/internal/config"
)

// defaultSystemPrompt is the restructuring instruction sent as the system
// turn. Kept in Chinese: the wikis this tool mirrors are Chinese-language
// deployments and the backends follow instructions in the content language
// more faithfully.
const defaultSystemPrompt = `你是一名文档整理助手。请将用户提供的网页内容整理为结构清晰、语义完整的 Markdown 文档，便于写入向量数据库。要求：
1. 保留所有实质内容，不增删事实；
2. 使用合理的标题层级、列表和表格；
3. 代码与命令放入代码块；
4. 去除导航、页眉页脚等与正文无关的内容；
5. 如果输入为空，只输出 ` + "```md ```" + `。`

// chatMessage is one turn of a chat-completion request.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the non-streaming completion envelope.
type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

// chatChunk is one streamed delta in the generic chat-completion shape.
type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// apiError is the error envelope chat-completion endpoints return.
type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

// chatClient is the HTTP plumbing shared by every remote optimizer.
type chatClient struct {
	endpoint     string
	apiKey       string
	model        string
	temperature  float64
	systemPrompt string
	extra        map[string]any
	httpc        *http.Client
}

// newChatClient applies configuration over per-backend defaults.
func newChatClient(cfg config.OptimizeConfig, defaultURL, defaultModel string) *chatClient {
	c := &chatClient{
		endpoint:     cfg.APIURL,
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		temperature:  cfg.Temperature,
		systemPrompt: cfg.SystemPrompt,
		extra:        cfg.Extra,
	}
	if c.endpoint == "" {
		c.endpoint = defaultURL
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.temperature == 0 {
		c.temperature = config.DefaultChatTemperature
	}
	if c.systemPrompt == "" {
		c.systemPrompt = defaultSystemPrompt
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = config.DefaultOptimizeTimeout
	}
	c.httpc = &http.Client{Timeout: timeout}
	return c
}

// requestBody builds the JSON payload, with any configured extra
// parameters merged in verbatim.
func (c *chatClient) requestBody(src Source, stream bool) ([]byte, error) {
	payload := map[string]any{
		"model": c.model,
		"messages": []chatMessage{
			{Role: "system", Content: c.systemPrompt},
			{Role: "user", Content: src.Content},
		},
		"temperature": c.temperature,
		"stream":      stream,
	}
	for k, v := range c.extra {
		payload[k] = v
	}
	return json.Marshal(payload)
}

// post issues one request. Non-200 statuses read a short diagnostic
// snippet from the body and fail.
func (c *chatClient) post(ctx context.Context, src Source, stream bool) (*http.Response, error) {
	payload, err := c.requestBody(src, stream)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("%s: status %d: %s", c.endpoint, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return resp, nil
}

// complete performs one non-streaming call and returns the first choice's
// content.
func (c *chatClient) complete(ctx context.Context, src Source) (string, error) {
	resp, err := c.post(ctx, src, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if cr.Error != nil && cr.Error.Message != "" {
		return "", fmt.Errorf("backend error: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return cr.Choices[0].Message.Content, nil
}

// stream opens a streaming call decoded by the given frame function.
func (c *chatClient) stream(ctx context.Context, src Source, decode frameFunc) (*DeltaStream, error) {
	resp, err := c.post(ctx, src, true)
	if err != nil {
		return nil, err
	}
	return newDeltaStream(resp.Body, decode), nil
}

// chatFrame decodes the generic chat-completion streaming shape: an
// optional "data: " SSE prefix, JSON chunks exposing
// choices[0].delta.content, and either "[DONE]" or a non-empty
// finish_reason as the terminal marker.
func chatFrame(line []byte) (string, bool, error) {
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
		// SSE comments and event/id fields carry no content.
		return "", false, nil
	}
	var chunk chatChunk
	if err := json.Unmarshal(line, &chunk); err != nil {
		return "", false, fmt.Errorf("decode stream chunk: %w", err)
	}
	if len(chunk.Choices) == 0 {
		return "", false, nil
	}
	choice := chunk.Choices[0]
	return choice.Delta.Content, choice.FinishReason != "", nil
}
