package transform

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"

	"github.com/madebyaris/wp-block-to-html/internal/blocks"
)

var md = goldmark.New()

// Markdown renders a jetpack/markdown block by converting its markdown
// source. The rendered body participates in class injection and hydration
// marking like any other block.
func Markdown(n *blocks.Node, ctx *Context) (string, error) {
	source := n.StringAttr("source")
	if source == "" {
		source = n.StringAttr("content")
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("render markdown block: %w", err)
	}
	return fmt.Sprintf("<div%s%s>%s</div>",
		classAttr("wp-block-markdown", ctx.Classes(n)),
		ctx.HydrationAttr(n),
		buf.String()), nil
}
