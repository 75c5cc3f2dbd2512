// Package markupscan inspects converted markup with a real HTML parser. It
// backs the CLI verify command and the engine's property tests; the
// optimization pipeline itself never re-parses markup, it works from the
// engine's structural markers.
package markupscan

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/madebyaris/wp-block-to-html/internal/errors"
	"github.com/madebyaris/wp-block-to-html/internal/hydration"
)

// Marker is a hydration marker found in markup.
type Marker struct {
	ID  string
	Tag string
}

// Media is a media element found in markup.
type Media struct {
	Kind          string // img|video|audio|iframe
	Lazy          bool   // loading="lazy" or preload="none"
	HighPriority  bool   // fetchpriority="high" or preload="metadata"
	HasDimensions bool   // both width and height present
}

// Report summarizes a scanned fragment.
type Report struct {
	Markers []Marker
	Media   []Media
	Scripts int
	Styles  int
}

// Scan parses markup as a body fragment and collects hydration markers,
// media elements, and script/style counts, in document order.
func Scan(markup string) (*Report, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse markup fragment: %w", err)
	}
	rep := &Report{}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			inspect(n, rep)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return rep, nil
}

func inspect(n *html.Node, rep *Report) {
	attrs := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		attrs[a.Key] = a.Val
	}
	if id, ok := attrs[hydration.MarkerAttr]; ok {
		rep.Markers = append(rep.Markers, Marker{ID: id, Tag: n.Data})
	}
	switch n.Data {
	case "script":
		rep.Scripts++
	case "style":
		rep.Styles++
	}
	if kind, ok := attrs["data-wpb-media"]; ok {
		_, hasW := attrs["width"]
		_, hasH := attrs["height"]
		rep.Media = append(rep.Media, Media{
			Kind:          kind,
			Lazy:          attrs["loading"] == "lazy" || attrs["preload"] == "none",
			HighPriority:  attrs["fetchpriority"] == "high" || attrs["preload"] == "metadata",
			HasDimensions: hasW && hasH,
		})
	}
}

// Verify checks that every hydration target's marker appears exactly once in
// the markup, so the scheduler can locate its elements without re-parsing
// the whole document.
func Verify(markup string, targets []*hydration.Target) error {
	rep, err := Scan(markup)
	if err != nil {
		return errors.Wrap(err, errors.CategoryRuntime, errors.SeverityError, "scan markup")
	}
	seen := make(map[string]int, len(rep.Markers))
	for _, m := range rep.Markers {
		seen[m.ID]++
	}
	for _, t := range targets {
		switch seen[t.ID] {
		case 1:
		case 0:
			return errors.New(errors.CategoryRuntime, errors.SeverityError, "hydration marker missing from markup").
				WithContext("target_id", t.ID)
		default:
			return errors.New(errors.CategoryRuntime, errors.SeverityError, "hydration marker duplicated in markup").
				WithContext("target_id", t.ID)
		}
	}
	return nil
}
