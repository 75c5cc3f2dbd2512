package transform

import (
	"fmt"
	"html"
	"strings"

	"github.com/madebyaris/wp-block-to-html/internal/blocks"
)

// registerBuiltins loads the built-in transformer set. Content attributes
// ("content", "citation", captions) carry authoring-system rich text and are
// emitted verbatim; URL-ish and plain-text attributes are escaped.
func registerBuiltins(r *Registry) {
	r.Register("core/paragraph", Paragraph)
	r.Register("core/heading", Heading)
	r.Register("core/list", List)
	r.Register("core/list-item", ListItem)
	r.Register("core/image", Image)
	r.Register("core/quote", Quote)
	r.Register("core/code", Code)
	r.Register("core/button", Button)
	r.Register("core/buttons", containerWith("wp-block-buttons"))
	r.Register("core/columns", containerWith("wp-block-columns"))
	r.Register("core/column", containerWith("wp-block-column"))
	r.Register("core/group", containerWith("wp-block-group"))
	r.Register("core/separator", Separator)
	r.Register("core/spacer", Spacer)
	r.Register("core/embed", Embed)
	r.Register("core/video", Video)
	r.Register("core/audio", Audio)
	r.Register("core/table", TableBlock)
	r.Register("core/html", RawHTML)
	r.Register("jetpack/markdown", Markdown)
}

// Paragraph renders a core/paragraph block.
func Paragraph(n *blocks.Node, ctx *Context) (string, error) {
	return fmt.Sprintf("<p%s%s>%s</p>",
		classAttr("wp-block-paragraph", ctx.Classes(n)),
		ctx.HydrationAttr(n),
		n.StringAttr("content")), nil
}

// Heading renders a core/heading block; level defaults to 2.
func Heading(n *blocks.Node, ctx *Context) (string, error) {
	level, ok := n.IntAttr("level")
	if !ok || level < 1 || level > 6 {
		level = 2
	}
	return fmt.Sprintf("<h%d%s%s>%s</h%d>",
		level,
		classAttr("wp-block-heading", ctx.Classes(n)),
		ctx.HydrationAttr(n),
		n.StringAttr("content"),
		level), nil
}

// List renders a core/list block; ordered selects <ol> vs <ul>. Items come
// either from child list-item blocks or from a pre-rendered values attribute.
func List(n *blocks.Node, ctx *Context) (string, error) {
	tag := "ul"
	if n.BoolAttr("ordered") {
		tag = "ol"
	}
	inner := n.StringAttr("values")
	if len(n.Children) > 0 {
		converted, err := ctx.ConvertChildren(n.Children)
		if err != nil {
			return "", err
		}
		inner = converted
	}
	return fmt.Sprintf("<%s%s%s>%s</%s>",
		tag, classAttr("wp-block-list", ctx.Classes(n)), ctx.HydrationAttr(n), inner, tag), nil
}

// ListItem renders a core/list-item block, including nested lists.
func ListItem(n *blocks.Node, ctx *Context) (string, error) {
	inner := n.StringAttr("content")
	if len(n.Children) > 0 {
		nested, err := ctx.ConvertChildren(n.Children)
		if err != nil {
			return "", err
		}
		inner += nested
	}
	return fmt.Sprintf("<li%s>%s</li>", classAttr(ctx.Classes(n)), inner), nil
}

// Image renders a core/image block with the media structural marker the
// optimization pipeline keys on. Width/height attributes are carried through
// when present so the dimension-preservation stage has nothing to invent.
func Image(n *blocks.Node, ctx *Context) (string, error) {
	url := n.StringAttr("url")
	if url == "" {
		url = n.StringAttr("src")
	}
	var dims string
	if w, ok := n.IntAttr("width"); ok {
		dims += fmt.Sprintf(` width="%d"`, w)
	}
	if h, ok := n.IntAttr("height"); ok {
		dims += fmt.Sprintf(` height="%d"`, h)
	}
	img := fmt.Sprintf(`<img src=%q%s%s data-wpb-media="img">`,
		html.EscapeString(url), attrIf("alt", n.StringAttr("alt")), dims)
	caption := n.StringAttr("caption")
	var fig strings.Builder
	fig.WriteString("<figure")
	fig.WriteString(classAttr("wp-block-image", ctx.Classes(n)))
	fig.WriteString(ctx.HydrationAttr(n))
	fig.WriteString(">")
	fig.WriteString(img)
	if caption != "" {
		fig.WriteString("<figcaption>" + caption + "</figcaption>")
	}
	fig.WriteString("</figure>")
	return fig.String(), nil
}

// Quote renders a core/quote block with optional citation.
func Quote(n *blocks.Node, ctx *Context) (string, error) {
	inner := n.StringAttr("value")
	if len(n.Children) > 0 {
		converted, err := ctx.ConvertChildren(n.Children)
		if err != nil {
			return "", err
		}
		inner += converted
	}
	cite := ""
	if c := n.StringAttr("citation"); c != "" {
		cite = "<cite>" + c + "</cite>"
	}
	return fmt.Sprintf("<blockquote%s%s>%s%s</blockquote>",
		classAttr("wp-block-quote", ctx.Classes(n)), ctx.HydrationAttr(n), inner, cite), nil
}

// Code renders a core/code block. Content is escaped: it is source text, not
// rich text.
func Code(n *blocks.Node, ctx *Context) (string, error) {
	return fmt.Sprintf("<pre%s><code>%s</code></pre>",
		classAttr("wp-block-code", ctx.Classes(n)),
		html.EscapeString(n.StringAttr("content"))), nil
}

// Button renders a core/button block. Buttons are interactive by convention,
// so the hydration marker lands on the wrapper.
func Button(n *blocks.Node, ctx *Context) (string, error) {
	url := n.StringAttr("url")
	text := n.StringAttr("text")
	return fmt.Sprintf("<div%s%s><a class=\"wp-block-button__link\"%s>%s</a></div>",
		classAttr("wp-block-button", ctx.Classes(n)),
		ctx.HydrationAttr(n),
		attrIf("href", url),
		text), nil
}

// containerWith builds a transformer for pure container blocks: a div with
// the block's canonical class wrapping the converted children.
func containerWith(baseClass string) Transformer {
	return func(n *blocks.Node, ctx *Context) (string, error) {
		inner, err := ctx.ConvertChildren(n.Children)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("<div%s%s>%s</div>",
			classAttr(baseClass, ctx.Classes(n)), ctx.HydrationAttr(n), inner), nil
	}
}

// Separator renders a core/separator block.
func Separator(n *blocks.Node, ctx *Context) (string, error) {
	return fmt.Sprintf("<hr%s>", classAttr("wp-block-separator", ctx.Classes(n))), nil
}

// Spacer renders a core/spacer block with its configured height.
func Spacer(n *blocks.Node, ctx *Context) (string, error) {
	height, ok := n.IntAttr("height")
	if !ok || height <= 0 {
		height = 100
	}
	return fmt.Sprintf(`<div class="wp-block-spacer" style="height:%dpx" aria-hidden="true"></div>`, height), nil
}

// Embed renders a core/embed block as a lazy-loadable iframe. Embeds are
// interactive by convention.
func Embed(n *blocks.Node, ctx *Context) (string, error) {
	url := n.StringAttr("url")
	return fmt.Sprintf("<figure%s%s><iframe src=%q data-wpb-media=\"iframe\"></iframe></figure>",
		classAttr("wp-block-embed", ctx.Classes(n)),
		ctx.HydrationAttr(n),
		html.EscapeString(url)), nil
}

// Video renders a core/video block with the media structural marker.
func Video(n *blocks.Node, ctx *Context) (string, error) {
	src := n.StringAttr("src")
	controls := ""
	if !n.BoolAttr("noControls") {
		controls = " controls"
	}
	return fmt.Sprintf("<figure%s%s><video src=%q%s data-wpb-media=\"video\"></video></figure>",
		classAttr("wp-block-video", ctx.Classes(n)),
		ctx.HydrationAttr(n),
		html.EscapeString(src), controls), nil
}

// Audio renders a core/audio block with the media structural marker.
func Audio(n *blocks.Node, ctx *Context) (string, error) {
	src := n.StringAttr("src")
	return fmt.Sprintf("<figure%s%s><audio src=%q controls data-wpb-media=\"audio\"></audio></figure>",
		classAttr("wp-block-audio", ctx.Classes(n)),
		ctx.HydrationAttr(n),
		html.EscapeString(src)), nil
}

// TableBlock renders a core/table block from its pre-rendered body rows.
func TableBlock(n *blocks.Node, ctx *Context) (string, error) {
	return fmt.Sprintf("<figure%s><table>%s</table></figure>",
		classAttr("wp-block-table", ctx.Classes(n)),
		n.StringAttr("body")), nil
}

// RawHTML passes a core/html block's content through untouched.
func RawHTML(n *blocks.Node, ctx *Context) (string, error) {
	content := n.StringAttr("content")
	if content == "" {
		// Authoring systems sometimes serialize raw HTML blocks purely as
		// fragments rather than an attribute.
		var b strings.Builder
		for _, f := range n.Fragments {
			if !f.ChildSlot {
				b.WriteString(f.HTML)
			}
		}
		content = b.String()
	}
	return content, nil
}
