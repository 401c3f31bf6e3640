package optimize

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nao1215/wikimirror/internal/config"
)

func TestSparkFrame(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		line      string
		wantDelta string
		wantDone  bool
		wantErr   bool
	}{
		{
			name:      "content frame",
			line:      `{"header":{"code":0,"status":1},"payload":{"choices":{"text":[{"content":"段落"}]}}}`,
			wantDelta: "段落",
		},
		{
			name:      "final frame carries status 2",
			line:      `data: {"header":{"code":0,"status":2},"payload":{"choices":{"text":[{"content":"尾部"}]}}}`,
			wantDelta: "尾部",
			wantDone:  true,
		},
		{
			name:    "non-zero code is a backend error",
			line:    `{"header":{"code":10013,"message":"input audit failed","status":1}}`,
			wantErr: true,
		},
		{
			name:     "done marker",
			line:     "data: [DONE]",
			wantDone: true,
		},
		{
			name: "non-json line skipped",
			line: "event: message",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			delta, done, err := sparkFrame([]byte(tt.line))
			if (err != nil) != tt.wantErr {
				t.Fatalf("sparkFrame(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			}
			if delta != tt.wantDelta {
				t.Errorf("delta = %q, want %q", delta, tt.wantDelta)
			}
			if done != tt.wantDone {
				t.Errorf("done = %v, want %v", done, tt.wantDone)
			}
		})
	}
}

func TestXunfeiOptimizeJoinsStream(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, `data: {"header":{"code":0,"status":0},"payload":{"choices":{"text":[{"content":"# 运维"}]}}}`+"\n\n")
		io.WriteString(w, `data: {"header":{"code":0,"status":1},"payload":{"choices":{"text":[{"content":"手册"}]}}}`+"\n\n")
		io.WriteString(w, `data: {"header":{"code":0,"status":2},"payload":{"choices":{"text":[{"content":"。"}]}}}`+"\n\n")
	}))
	defer srv.Close()

	o := NewXunfei(config.OptimizeConfig{APIURL: srv.URL, APIKey: "test-key"}, nil)

	// Xunfei has no non-streaming wire, so a plain Optimize call already
	// exercises the stream-and-join path.
	got := o.Optimize(context.Background(), Source{Content: "<p>raw</p>"})
	if got.Fallback || got.Err != nil {
		t.Fatalf("Optimize() = %+v, want joined stream", got)
	}
	if got.Content != "# 运维手册。" {
		t.Errorf("Content = %q, want spark deltas joined", got.Content)
	}
}

func TestXunfeiOptimizeBackendError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, `data: {"header":{"code":0,"status":0},"payload":{"choices":{"text":[{"content":"partial"}]}}}`+"\n\n")
		io.WriteString(w, `data: {"header":{"code":11200,"message":"licence expired","status":1}}`+"\n\n")
	}))
	defer srv.Close()

	o := NewXunfei(config.OptimizeConfig{APIURL: srv.URL, APIKey: "test-key"}, nil)

	src := Source{Content: "<p>keep me</p>"}
	got := o.Optimize(context.Background(), src)
	if !got.Fallback {
		t.Fatal("Fallback = false, want true after a mid-stream backend error")
	}
	if got.Content != src.Content {
		t.Errorf("Content = %q, want input unchanged", got.Content)
	}
	if got.Err == nil {
		t.Error("Err = nil, want the spark error recorded")
	}
}
