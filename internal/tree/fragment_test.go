package tree

import (
	"errors"
	"testing"

	"github.com/nao1215/wikimirror/internal/model"
)

// siblingsFragment is the children list returned for one expanded node:
// an expandable child followed by a leaf child.
const siblingsFragment = `
<ul class="plugin_pagetree_children_list">
  <li>
    <div class="plugin_pagetree_childtoggle_container">
      <a id="plusminus101-0" class="plugin_pagetree_childtoggle aui-icon aui-icon-small aui-iconfont-chevron-right" href="#"></a>
    </div>
    <div class="plugin_pagetree_children_content">
      <span class="plugin_pagetree_children_span">
        <a href="/pages/viewpage.action?pageId=101"> Intro </a>
      </span>
    </div>
    <ul id="child_ul101-0" class="plugin_pagetree_children_list"></ul>
  </li>
  <li>
    <div class="plugin_pagetree_childtoggle_container">
      <a id="plusminus102-0" class="plugin_pagetree_childtoggle aui-icon aui-icon-small no-children" href="#"></a>
    </div>
    <div class="plugin_pagetree_children_content">
      <span class="plugin_pagetree_children_span">
        <a href="/pages/viewpage.action?pageId=102">Setup</a>
      </span>
    </div>
    <ul id="child_ul102-0" class="plugin_pagetree_children_list"></ul>
  </li>
</ul>`

func TestParseFragmentSiblings(t *testing.T) {
	t.Parallel()

	e := NewExplorer("https://wiki.example.com", nil)
	req := Request{
		Mode:  ModeExpand,
		Depth: model.DepthInfo{Depth: 1, ParentPath: "00-Home"},
	}

	got, err := e.ParseFragment(siblingsFragment, req)
	if err != nil {
		t.Fatalf("ParseFragment() error = %v", err)
	}

	if len(got.Nodes) != 2 {
		t.Fatalf("Nodes = %d, want 2", len(got.Nodes))
	}
	if got.Skipped != 0 {
		t.Errorf("Skipped = %d, want 0", got.Skipped)
	}

	intro := got.Nodes[0]
	if intro.PageID != "101" || intro.Title != "Intro" {
		t.Errorf("first node = %q/%q, want 101/Intro", intro.PageID, intro.Title)
	}
	if !intro.HasChildren {
		t.Error("Intro.HasChildren = false, want true for a collapsed toggle")
	}
	if want := "https://wiki.example.com/pages/viewpage.action?pageId=101"; intro.Link != want {
		t.Errorf("Intro.Link = %q, want %q", intro.Link, want)
	}
	if want := "00-Home/01-Intro"; intro.OutputPath() != want {
		t.Errorf("Intro.OutputPath() = %q, want %q", intro.OutputPath(), want)
	}

	setup := got.Nodes[1]
	if setup.PageID != "102" || setup.Title != "Setup" {
		t.Errorf("second node = %q/%q, want 102/Setup", setup.PageID, setup.Title)
	}
	if setup.HasChildren {
		t.Error("Setup.HasChildren = true, want false for a leaf")
	}
	if want := "00-Home/01-Setup"; setup.OutputPath() != want {
		t.Errorf("Setup.OutputPath() = %q, want %q", setup.OutputPath(), want)
	}

	if len(got.Expansions) != 1 {
		t.Fatalf("Expansions = %d, want 1 (leaf must not expand)", len(got.Expansions))
	}
	exp := got.Expansions[0]
	if exp.PageID != "101" {
		t.Errorf("Expansion.PageID = %q, want %q", exp.PageID, "101")
	}
	wantDepth := model.DepthInfo{Depth: 2, ParentPath: "00-Home/01-Intro"}
	if exp.Depth != wantDepth {
		t.Errorf("Expansion.Depth = %+v, want %+v", exp.Depth, wantDepth)
	}
}

func TestParseFragmentSkipsMalformed(t *testing.T) {
	t.Parallel()

	fragment := `
	<ul class="plugin_pagetree_children_list">
	  <li>
	    <a class="plugin_pagetree_childtoggle no-children" href="#"></a>
	    <a href="/pages/viewpage.action?spaceKey=DOCS">No page id</a>
	  </li>
	  <li>
	    <a class="plugin_pagetree_childtoggle no-children" href="#"></a>
	    <a href="/pages/viewpage.action?pageId=103">   </a>
	  </li>
	  <li>
	    <a class="plugin_pagetree_childtoggle no-children" href="#"></a>
	    <a href="/pages/viewpage.action?pageId=104">Survivor</a>
	  </li>
	</ul>`

	e := NewExplorer("https://wiki.example.com", nil)
	got, err := e.ParseFragment(fragment, Request{Mode: ModeExpand, Depth: model.RootDepth()})
	if err != nil {
		t.Fatalf("ParseFragment() error = %v", err)
	}

	if got.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", got.Skipped)
	}
	if len(got.Nodes) != 1 {
		t.Fatalf("Nodes = %d, want 1", len(got.Nodes))
	}
	if got.Nodes[0].PageID != "104" {
		t.Errorf("surviving node = %q, want 104", got.Nodes[0].PageID)
	}
}

func TestParseFragmentEmpty(t *testing.T) {
	t.Parallel()

	e := NewExplorer("https://wiki.example.com", nil)
	got, err := e.ParseFragment(`<ul class="plugin_pagetree_children_list"></ul>`,
		Request{Mode: ModeExpand, Depth: model.RootDepth()})
	if err != nil {
		t.Fatalf("ParseFragment() error = %v", err)
	}
	if len(got.Nodes) != 0 || len(got.Expansions) != 0 {
		t.Errorf("got %d nodes and %d expansions, want none for an empty list",
			len(got.Nodes), len(got.Expansions))
	}
}

// rootFragment is the space tree around the start page: the space home and
// a sibling are present, but only the located page may become a node.
const rootFragment = `
<ul class="plugin_pagetree_children_list">
  <li>
    <div class="plugin_pagetree_childtoggle_container">
      <a class="plugin_pagetree_childtoggle aui-icon aui-iconfont-chevron-down" href="#"></a>
    </div>
    <div class="plugin_pagetree_children_content">
      <span class="plugin_pagetree_children_span">
        <a href="/pages/viewpage.action?pageId=98">Space Home</a>
      </span>
    </div>
    <ul class="plugin_pagetree_children_list">
      <li>
        <div class="plugin_pagetree_childtoggle_container">
          <a class="plugin_pagetree_childtoggle aui-icon no-children" href="#"></a>
        </div>
        <div class="plugin_pagetree_children_content">
          <span class="plugin_pagetree_children_span">
            <a href="/pages/viewpage.action?pageId=99">Other Docs</a>
          </span>
        </div>
      </li>
      <li>
        <div class="plugin_pagetree_childtoggle_container">
          <a class="plugin_pagetree_childtoggle aui-icon aui-iconfont-chevron-right" href="#"></a>
        </div>
        <div class="plugin_pagetree_children_content">
          <span class="plugin_pagetree_children_span">
            <a href="/pages/viewpage.action?pageId=100">Guide</a>
          </span>
        </div>
      </li>
    </ul>
  </li>
</ul>`

func TestParseFragmentRoot(t *testing.T) {
	t.Parallel()

	e := NewExplorer("https://wiki.example.com", nil)
	req := Request{
		Mode:         ModeRoot,
		LocatePageID: "100",
		Depth:        model.RootDepth(),
	}

	got, err := e.ParseFragment(rootFragment, req)
	if err != nil {
		t.Fatalf("ParseFragment() error = %v", err)
	}

	if len(got.Nodes) != 1 {
		t.Fatalf("Nodes = %d, want only the located page", len(got.Nodes))
	}
	root := got.Nodes[0]
	if root.PageID != "100" || root.Title != "Guide" {
		t.Errorf("root node = %q/%q, want 100/Guide", root.PageID, root.Title)
	}
	if !root.HasChildren {
		t.Error("root.HasChildren = false, want true (the start page is always expanded)")
	}
	if want := "00-Guide"; root.OutputPath() != want {
		t.Errorf("root.OutputPath() = %q, want %q", root.OutputPath(), want)
	}

	if len(got.Expansions) != 1 {
		t.Fatalf("Expansions = %d, want 1", len(got.Expansions))
	}
	wantDepth := model.DepthInfo{Depth: 1, ParentPath: "00-Guide"}
	if got.Expansions[0].PageID != "100" || got.Expansions[0].Depth != wantDepth {
		t.Errorf("Expansion = %+v, want pageID 100 at %+v", got.Expansions[0], wantDepth)
	}
}

func TestParseFragmentRootNotFound(t *testing.T) {
	t.Parallel()

	e := NewExplorer("https://wiki.example.com", nil)
	req := Request{
		Mode:         ModeRoot,
		LocatePageID: "12345",
		Depth:        model.RootDepth(),
	}

	if _, err := e.ParseFragment(rootFragment, req); !errors.Is(err, ErrRootNotFound) {
		t.Errorf("ParseFragment() error = %v, want ErrRootNotFound", err)
	}
}
