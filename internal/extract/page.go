package extract

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/wikimirror/internal/model"
)

// Page is the parsed content of a rendered wiki page.
type Page struct {
	Title    string
	BodyHTML string
}

// ParsePage extracts the title and body from rendered page HTML.
//
// The title lives in #title-text and the body is the inner HTML of
// #main-content. ready is false when either is absent: the wiki fills both
// in asynchronously, and an early fetch returns a shell document. That is
// not an error; the caller reissues the identical request.
func ParsePage(pageHTML string) (Page, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return Page{}, false, fmt.Errorf("parse page: %w", err)
	}

	title := doc.Find("#title-text").First()
	body := doc.Find("#main-content").First()
	if title.Length() == 0 || body.Length() == 0 {
		return Page{}, false, nil
	}

	bodyHTML, err := body.Html()
	if err != nil {
		return Page{}, false, fmt.Errorf("page body html: %w", err)
	}
	return Page{
		Title:    strings.TrimSpace(title.Text()),
		BodyHTML: bodyHTML,
	}, true, nil
}

// AttachmentLinks collects attachment references from rendered page HTML,
// in document order. Relative links are resolved against pageURL and
// duplicates of the same resolved URL are dropped. The display filename is
// the decoded last path segment of the download URL.
func AttachmentLinks(pageHTML, pageURL string) ([]model.AttachmentRef, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("parse page for attachments: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	var refs []model.AttachmentRef
	seen := make(map[string]bool)
	doc.Find(".attachment-content a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		abs := resolveLink(base, href)
		if seen[abs] {
			return
		}
		seen[abs] = true
		refs = append(refs, model.AttachmentRef{
			URL:      abs,
			Filename: FilenameFromURL(abs),
		})
	})
	return refs, nil
}

// FilenameFromURL returns the decoded last path segment of a download URL,
// or "" when the URL has no usable segment.
func FilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return ""
	}
	if decoded, err := url.PathUnescape(base); err == nil {
		base = decoded
	}
	return base
}

// resolveLink makes href absolute against base. A nil or unparsable base
// leaves the href as served.
func resolveLink(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
