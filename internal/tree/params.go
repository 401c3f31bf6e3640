package tree

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Params are the tree identifiers a rendered page embeds for its sidebar
// tree widget.
type Params struct {
	// RootPageID is the id of the space's tree root.
	RootPageID string

	// StartDepth is the depth the widget starts rendering from.
	StartDepth string

	// Mobile mirrors the widget's mobile flag, normally "false".
	Mobile string

	// TreePageID is the id of the page the tree is rendered on.
	TreePageID string

	// Ancestors is the chain of ancestor page ids from the root down to
	// the current page's parent, in document order.
	Ancestors []string
}

// ParseTreeParams extracts the tree parameters from a rendered page.
// The widget keeps them in hidden inputs inside the page-tree container:
//
//	<div class="plugin_pagetree">
//	  <fieldset class="hidden">
//	    <input type="hidden" name="rootPageId" value="100">
//	    <input type="hidden" name="ancestorId" value="98">
//	    ...
//
// Returns ErrNoTree when the container is absent and ErrTreeParams when
// the root page id input is missing.
func ParseTreeParams(pageHTML string) (Params, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return Params{}, fmt.Errorf("parse page for tree params: %w", err)
	}

	container := doc.Find("div.plugin_pagetree").First()
	if container.Length() == 0 {
		return Params{}, ErrNoTree
	}

	p := Params{
		// Defaults the widget uses when an input is absent.
		StartDepth: "0",
		Mobile:     "false",
	}
	container.Find("fieldset input").Each(func(_ int, input *goquery.Selection) {
		name, _ := input.Attr("name")
		value, _ := input.Attr("value")
		value = strings.TrimSpace(value)
		switch name {
		case "rootPageId":
			p.RootPageID = value
		case "startDepth":
			if value != "" {
				p.StartDepth = value
			}
		case "mobile":
			if value != "" {
				p.Mobile = value
			}
		case "treePageId":
			p.TreePageID = value
		case "ancestorId":
			if value != "" {
				p.Ancestors = append(p.Ancestors, value)
			}
		}
	})

	if p.RootPageID == "" {
		return Params{}, ErrTreeParams
	}
	if p.TreePageID == "" {
		p.TreePageID = p.RootPageID
	}
	return p, nil
}
