package extract

import (
	"testing"

	"github.com/nao1215/wikimirror/internal/config"
)

func testFilter(extensions, mimeTypes []string, maxMB int64) *Filter {
	return NewFilter(config.ExtractConfig{
		MaxAttachmentMB:   maxMB,
		ExcludeExtensions: extensions,
		ExcludeMIMETypes:  mimeTypes,
	})
}

func TestFilterCheckURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		extensions []string
		mimeTypes  []string
		url        string
		wantDrop   bool
		wantReason DropReason
	}{
		{
			name:       "excluded extension",
			extensions: []string{".exe"},
			url:        "https://wiki.example.com/download/attachments/100/setup.exe",
			wantDrop:   true,
			wantReason: DropExtension,
		},
		{
			name:       "extension case insensitive",
			extensions: []string{".exe"},
			url:        "https://wiki.example.com/download/attachments/100/SETUP.EXE",
			wantDrop:   true,
			wantReason: DropExtension,
		},
		{
			name:       "extension without dot in config",
			extensions: []string{"gif"},
			url:        "https://wiki.example.com/download/attachments/100/anim.gif",
			wantDrop:   true,
			wantReason: DropExtension,
		},
		{
			name:       "png kept when images not excluded",
			extensions: []string{".exe"},
			url:        "https://wiki.example.com/download/attachments/100/shot.png",
		},
		{
			name:      "content type hint excluded",
			mimeTypes: []string{"image/png"},
			url:       "https://wiki.example.com/download/thumbnails/100/preview?contentType=image%2Fpng",
			wantDrop:  true, wantReason: DropMIMEHint,
		},
		{
			name:      "mime type hint excluded",
			mimeTypes: []string{"video/"},
			url:       "https://wiki.example.com/download/attachments/100/clip?mimeType=video/mp4",
			wantDrop:  true, wantReason: DropMIMEHint,
		},
		{
			name:      "hint not excluded",
			mimeTypes: []string{"image/gif"},
			url:       "https://wiki.example.com/download/thumbnails/100/preview?contentType=image/png",
		},
		{
			name:       "query string does not hide the extension",
			extensions: []string{".exe"},
			url:        "https://wiki.example.com/download/attachments/100/setup.exe?version=3&api=v2",
			wantDrop:   true,
			wantReason: DropExtension,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := testFilter(tt.extensions, tt.mimeTypes, 50)
			got := f.CheckURL(tt.url)
			if got.Drop != tt.wantDrop {
				t.Fatalf("CheckURL(%q).Drop = %v, want %v (%+v)", tt.url, got.Drop, tt.wantDrop, got)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestFilterCheckContent(t *testing.T) {
	t.Parallel()

	const mb = 1024 * 1024

	tests := []struct {
		name       string
		mimeTypes  []string
		maxMB      int64
		mime       string
		size       int64
		wantDrop   bool
		wantReason DropReason
	}{
		{
			name:  "small png kept",
			maxMB: 50,
			mime:  "image/png",
			size:  2 * mb,
		},
		{
			name:       "over the ceiling",
			maxMB:      50,
			mime:       "application/pdf",
			size:       50*mb + 1,
			wantDrop:   true,
			wantReason: DropTooLarge,
		},
		{
			name:  "exactly the ceiling kept",
			maxMB: 50,
			mime:  "application/pdf",
			size:  50 * mb,
		},
		{
			name:       "sniffed type excluded exactly",
			mimeTypes:  []string{"image/svg+xml"},
			maxMB:      50,
			mime:       "image/svg+xml",
			size:       1024,
			wantDrop:   true,
			wantReason: DropSniffedMIME,
		},
		{
			name:       "prefix entry covers the family",
			mimeTypes:  []string{"video/"},
			maxMB:      50,
			mime:       "video/x-matroska",
			size:       1024,
			wantDrop:   true,
			wantReason: DropSniffedMIME,
		},
		{
			name:       "parameters do not defeat the match",
			mimeTypes:  []string{"text/html"},
			maxMB:      50,
			mime:       "text/html; charset=utf-8",
			size:       1024,
			wantDrop:   true,
			wantReason: DropSniffedMIME,
		},
		{
			name:      "exact entry does not match a longer type",
			mimeTypes: []string{"image/jpeg"},
			maxMB:     50,
			mime:      "image/jpeg2000",
			size:      1024,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := testFilter(nil, tt.mimeTypes, tt.maxMB)
			got := f.CheckContent(tt.mime, tt.size)
			if got.Drop != tt.wantDrop {
				t.Fatalf("CheckContent(%q, %d).Drop = %v, want %v (%+v)", tt.mime, tt.size, got.Drop, tt.wantDrop, got)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestFilterEnabled(t *testing.T) {
	t.Parallel()

	on := NewFilter(config.ExtractConfig{})
	if !on.Enabled() {
		t.Error("Enabled() = false by default, want true")
	}

	off := NewFilter(config.ExtractConfig{SkipAttachments: true})
	if off.Enabled() {
		t.Error("Enabled() = true with SkipAttachments, want false")
	}
}
