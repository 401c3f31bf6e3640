package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/wikimirror/internal/config"
)

// wikiPage renders a wiki page body the way the site does once server-side
// rendering finished. withTree embeds the hidden tree parameter fieldset
// the start page carries.
func wikiPage(title, body string, withTree bool) string {
	treeDiv := ""
	if withTree {
		treeDiv = `<div class="plugin_pagetree"><fieldset class="hidden">
<input type="hidden" name="rootPageId" value="100">
<input type="hidden" name="startDepth" value="0">
<input type="hidden" name="mobile" value="false">
<input type="hidden" name="treePageId" value="100">
</fieldset></div>`
	}
	return fmt.Sprintf(`<html><head><title>%s</title></head><body>
%s
<h1 id="title-heading"><span id="title-text">%s</span></h1>
<div id="main-content">%s</div>
</body></html>`, title, treeDiv, title, body)
}

// startWikiServer starts a two-page wiki behind form login:
//
//	首页 (100)
//	└── 部署手册 (101)
func startWikiServer(t *testing.T) *httptest.Server {
	t.Helper()

	authed := func(r *http.Request) bool {
		c, err := r.Cookie("JSESSIONID")
		return err == nil && c.Value != ""
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/dologin.action", func(w http.ResponseWriter, r *http.Request) {
		if r.PostFormValue("os_username") != "alice" || r.PostFormValue("os_password") != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "9F41C0D6"})
		w.Header().Set("Location", r.PostFormValue("os_destination"))
		w.WriteHeader(http.StatusFound)
	})

	mux.HandleFunc("/pages/viewpage.action", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			fmt.Fprint(w, `<html><body><form action="/dologin.action">请登录</form></body></html>`)
			return
		}
		switch r.URL.Query().Get("pageId") {
		case "100":
			fmt.Fprint(w, wikiPage("首页", "<p>欢迎使用知识库。</p>", true))
		case "101":
			fmt.Fprint(w, wikiPage("部署手册", "<p>解压后执行安装脚本。</p>", false))
		default:
			http.NotFound(w, r)
		}
	})

	mux.HandleFunc("/plugins/pagetree/naturalchildren.action", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		q := r.URL.Query()
		if q.Get("_") == "" {
			fmt.Fprint(w, `<ul class="plugin_pagetree_children_list">
<li>
<a class="plugin_pagetree_childtoggle aui-icon aui-iconfont-chevron-right"></a>
<span><a href="/pages/viewpage.action?pageId=100">首页</a></span>
</li>
</ul>`)
			return
		}
		if q.Get("pageId") == "100" {
			fmt.Fprint(w, `<ul class="plugin_pagetree_children_list">
<li>
<span><a href="/pages/viewpage.action?pageId=101">部署手册</a></span>
</li>
</ul>`)
			return
		}
		fmt.Fprint(w, `<ul class="plugin_pagetree_children_list"></ul>`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// TestRunMirrorEndToEnd drives runMirror against a local wiki: form login,
// tree discovery, export, the JSON report, and the completion callback.
func TestRunMirrorEndToEnd(t *testing.T) {
	t.Parallel()

	server := startWikiServer(t)

	payloadCh := make(chan []byte, 1)
	callback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read callback body: %v", err)
		}
		payloadCh <- body
	}))
	t.Cleanup(callback.Close)

	outputDir := t.TempDir()
	reportPath := filepath.Join(t.TempDir(), "report.json")

	cfg := config.NewConfig()
	cfg.Crawl.StartURL = server.URL + "/pages/viewpage.action?pageId=100"
	cfg.Crawl.Delay = 0
	cfg.Crawl.PageTimeout = 5 * time.Second
	cfg.Crawl.FileTimeout = 5 * time.Second
	cfg.Site.Username = "alice"
	cfg.Site.Password = "s3cret"
	cfg.Extract.SkipAttachments = true
	cfg.Output.Dir = outputDir
	cfg.Output.JSONReport = true
	cfg.Output.ReportFile = reportPath
	cfg.State.DBPath = filepath.Join(t.TempDir(), "state.db")
	cfg.Notify.CallbackURL = callback.URL

	if err := cfg.Normalize(); err != nil {
		t.Fatalf("Normalize() returned error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := runMirror(context.Background(), cfg, logger); err != nil {
		t.Fatalf("runMirror() returned error: %v", err)
	}

	// The page tree landed on disk
	for _, doc := range []string{
		filepath.Join("markdown", "00-首页", "首页.md"),
		filepath.Join("markdown", "00-首页", "01-部署手册", "部署手册.md"),
	} {
		if _, err := os.Stat(filepath.Join(outputDir, doc)); err != nil {
			t.Errorf("document %s not written: %v", doc, err)
		}
	}

	// The JSON report describes the run
	content, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	var parsed struct {
		Version string `json:"version"`
		Report  struct {
			Status string `json:"status"`
			Pages  []struct {
				Status string `json:"status"`
			} `json:"pages"`
		} `json:"report"`
	}
	if err := json.Unmarshal(content, &parsed); err != nil {
		t.Fatalf("failed to parse report: %v", err)
	}
	if parsed.Version == "" {
		t.Error("expected a version in the JSON report")
	}
	if parsed.Report.Status != "completed" {
		t.Errorf("report status = %q, want %q", parsed.Report.Status, "completed")
	}
	if len(parsed.Report.Pages) != 2 {
		t.Errorf("report pages = %d, want 2", len(parsed.Report.Pages))
	}

	// The completion callback fired with the run summary
	var payload []byte
	select {
	case payload = <-payloadCh:
	default:
		t.Fatal("completion callback was not delivered")
	}
	var summary struct {
		Status     string `json:"status"`
		PagesSaved int    `json:"pages_saved"`
	}
	if err := json.Unmarshal(payload, &summary); err != nil {
		t.Fatalf("failed to parse callback payload: %v", err)
	}
	if summary.Status != "completed" {
		t.Errorf("callback status = %q, want %q", summary.Status, "completed")
	}
	if summary.PagesSaved != 2 {
		t.Errorf("callback pages_saved = %d, want 2", summary.PagesSaved)
	}
}

// TestMirrorCommandEndToEnd drives the whole mirror command through cobra,
// with the run wired up from a config file and a session cookie.
func TestMirrorCommandEndToEnd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pages/viewpage.action", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("JSESSIONID"); err != nil || c.Value != "prebaked" {
			fmt.Fprint(w, `<html><body>请登录</body></html>`)
			return
		}
		fmt.Fprint(w, wikiPage("独立页面", "<p>直接用会话。</p>", false))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	outputDir := t.TempDir()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := fmt.Sprintf(`
site:
  cookie: "JSESSIONID=prebaked"
extract:
  skip_attachments: true
output:
  dir: %q
state:
  db_path: %q
`, outputDir, filepath.Join(t.TempDir(), "state.db"))
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	root := NewRootCmd()
	root.SetArgs([]string{
		"mirror",
		"-c", configPath,
		"--delay", "0s",
		server.URL + "/pages/viewpage.action?pageId=100",
	})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}

	doc := filepath.Join(outputDir, "markdown", "独立页面", "独立页面.md")
	content, err := os.ReadFile(doc)
	if err != nil {
		t.Fatalf("document not written: %v", err)
	}
	if !strings.Contains(string(content), "# 独立页面") {
		t.Error("document is missing its title heading")
	}
}
