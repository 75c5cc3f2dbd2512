package transform

import (
	"fmt"
	"html"
	"strings"

	"github.com/madebyaris/wp-block-to-html/internal/blocks"
	"github.com/madebyaris/wp-block-to-html/internal/classmap"
)

// Fallback renders a structurally safe placeholder for unregistered block
// types. It never fails and never drops inner children: children are
// converted recursively and wrapped in a neutral container, so unknown
// blocks degrade gracefully rather than vanish.
func Fallback(n *blocks.Node, ctx *Context) (string, error) {
	var inner string
	if ctx != nil && ctx.ConvertChildren != nil && len(n.Children) > 0 {
		var err error
		inner, err = ctx.ConvertChildren(n.Children)
		if err != nil {
			// The fallback must not fail; keep whatever was produced.
			if ctx.Logger != nil {
				ctx.Logger.Warn("fallback child conversion incomplete",
					"block_type", n.Type, "error", err)
			}
		}
	}
	if inner == "" {
		// Salvage plain text from common content attributes so text-bearing
		// unknown blocks are not reduced to an empty shell.
		for _, attr := range []string{"content", "text", "value"} {
			if s := n.StringAttr(attr); s != "" {
				inner = s
				break
			}
		}
	}
	var b strings.Builder
	b.WriteString(`<div class="wp-block-unknown" data-wpb-block="`)
	b.WriteString(html.EscapeString(n.Type))
	b.WriteString(`"`)
	if ctx != nil && ctx.HydrationAttr != nil {
		b.WriteString(ctx.HydrationAttr(n))
	}
	b.WriteString(">")
	b.WriteString(inner)
	b.WriteString("</div>")
	return b.String(), nil
}

// attrIf renders ` name="value"` when value is non-empty, escaping the value.
func attrIf(name, value string) string {
	if value == "" {
		return ""
	}
	return fmt.Sprintf(" %s=%q", name, html.EscapeString(value))
}

// classAttr renders ` class="..."` from the given fragments, deduplicated in
// first-seen order, skipping the attribute entirely when nothing resolves.
func classAttr(fragments ...string) string {
	joined := classmap.Join(fragments...)
	if joined == "" {
		return ""
	}
	return fmt.Sprintf(" class=%q", joined)
}
