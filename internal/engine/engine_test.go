package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madebyaris/wp-block-to-html/internal/blocks"
	"github.com/madebyaris/wp-block-to-html/internal/classmap"
	"github.com/madebyaris/wp-block-to-html/internal/config"
	cerrors "github.com/madebyaris/wp-block-to-html/internal/errors"
	"github.com/madebyaris/wp-block-to-html/internal/hydration"
	"github.com/madebyaris/wp-block-to-html/internal/transform"
)

func node(typeID string, attrs map[string]any, children ...*blocks.Node) *blocks.Node {
	return &blocks.Node{Type: typeID, Attributes: attrs, Children: children}
}

func sampleTree() []*blocks.Node {
	return []*blocks.Node{
		node("core/heading", map[string]any{"content": "Title", "level": float64(1)}),
		node("core/group", map[string]any{"align": "wide"},
			node("core/paragraph", map[string]any{"content": "Body"}),
			node("core/button", map[string]any{"text": "Go", "url": "https://example.com"})),
		node("core/video", map[string]any{"src": "intro.mp4"}),
	}
}

func TestConvertBasic(t *testing.T) {
	res, err := Convert(sampleTree(), config.Default())
	require.NoError(t, err)

	assert.Contains(t, res.Markup, `<h1 class="wp-block-heading">Title</h1>`)
	assert.Contains(t, res.Markup, `<p class="wp-block-paragraph">Body</p>`)
	assert.Equal(t, 5, res.Nodes)
	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Segments, 3)
	assert.Equal(t, 0, res.Segments[0])
}

func TestConvertEmitsTargetsInDocumentOrder(t *testing.T) {
	res, err := Convert(sampleTree(), config.Default())
	require.NoError(t, err)

	require.Len(t, res.HydrationTargets, 2)
	btn, vid := res.HydrationTargets[0], res.HydrationTargets[1]

	assert.Equal(t, "core/button", btn.BlockType)
	assert.Equal(t, "core/video", vid.BlockType)
	assert.Less(t, btn.Index, vid.Index)
	assert.Equal(t, hydration.StatePending, btn.State)
	assert.Equal(t, hydration.StatePending, vid.State)

	// Each target's marker appears exactly once in the markup.
	for _, tgt := range res.HydrationTargets {
		marker := fmt.Sprintf("%s=%q", hydration.MarkerAttr, tgt.ID)
		assert.Equal(t, 1, strings.Count(res.Markup, marker), "marker for %s", tgt.ID)
	}
}

func TestConvertIdempotent(t *testing.T) {
	opts := config.Default()
	first, err := Convert(sampleTree(), opts)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := Convert(sampleTree(), opts)
		require.NoError(t, err)
		assert.Equal(t, first.Markup, again.Markup, "markup must be byte-identical across runs")
		require.Len(t, again.HydrationTargets, len(first.HydrationTargets))
		for j := range first.HydrationTargets {
			assert.Equal(t, first.HydrationTargets[j].ID, again.HydrationTargets[j].ID)
		}
	}
}

func TestConvertMarkerIDsDeterministic(t *testing.T) {
	res, err := Convert(sampleTree(), config.Default())
	require.NoError(t, err)

	// IDs derive from document-order index plus sanitized type.
	assert.Equal(t, "h3-core-button", res.HydrationTargets[0].ID)
	assert.Equal(t, "h4-core-video", res.HydrationTargets[1].ID)
}

func TestConvertMalformedTree(t *testing.T) {
	_, err := Convert([]*blocks.Node{node("", nil)}, config.Default())
	require.Error(t, err)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryTree))

	a := node("core/group", nil)
	a.Children = []*blocks.Node{a}
	_, err = Convert([]*blocks.Node{a}, config.Default())
	require.Error(t, err)
}

func TestConvertInvalidOptions(t *testing.T) {
	opts := config.Default()
	opts.ContentMode = "sideways"
	_, err := Convert(sampleTree(), opts)
	require.Error(t, err)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryConfig))
}

func TestConvertTransformerFailureSubstitutesFallback(t *testing.T) {
	reg := transform.Default().Clone()
	reg.Register("core/paragraph", func(n *blocks.Node, ctx *transform.Context) (string, error) {
		return "", errors.New("boom")
	})

	res, err := ConvertWith(reg, sampleTree(), config.Default())
	require.NoError(t, err, "a failing transformer must not abort conversion")
	assert.Contains(t, res.Markup, `data-wpb-block="core/paragraph"`)
	assert.Contains(t, res.Markup, "Body", "fallback must salvage the content attribute")
	// Sibling blocks are unaffected.
	assert.Contains(t, res.Markup, "Title")
}

func TestConvertTransformerPanicRecovered(t *testing.T) {
	reg := transform.Default().Clone()
	reg.Register("core/heading", func(n *blocks.Node, ctx *transform.Context) (string, error) {
		panic("bad transformer")
	})

	res, err := ConvertWith(reg, sampleTree(), config.Default())
	require.NoError(t, err)
	assert.Contains(t, res.Markup, `data-wpb-block="core/heading"`)
	assert.Contains(t, res.Markup, "Body")
}

func TestConvertFailureAfterChildrenDiscardsAttempt(t *testing.T) {
	reg := transform.Default().Clone()
	reg.Register("acme/wrapper", func(n *blocks.Node, ctx *transform.Context) (string, error) {
		if _, err := ctx.ConvertChildren(n.Children); err != nil {
			return "", err
		}
		return "", errors.New("wrapper render failed")
	})

	roots := []*blocks.Node{
		node("acme/wrapper", nil,
			node("core/button", map[string]any{"text": "Go", "url": "https://example.com"})),
	}
	res, err := ConvertWith(reg, roots, config.Default())
	require.NoError(t, err)

	// Only the fallback's child conversion reaches the markup, so the
	// failed attempt's visits must not leave targets behind.
	require.Len(t, res.HydrationTargets, 1)
	tgt := res.HydrationTargets[0]
	assert.Equal(t, "h1-core-button", tgt.ID)
	assert.Equal(t, 1, tgt.Index)
	assert.Equal(t, 2, res.Nodes)

	marker := fmt.Sprintf("%s=%q", hydration.MarkerAttr, tgt.ID)
	assert.Equal(t, 1, strings.Count(res.Markup, marker))
	assert.Equal(t, 1, strings.Count(res.Markup, hydration.MarkerAttr+"="))
}

func TestConvertFailureAfterChildrenKeepsSiblingsDeterministic(t *testing.T) {
	reg := transform.Default().Clone()
	reg.Register("acme/wrapper", func(n *blocks.Node, ctx *transform.Context) (string, error) {
		if _, err := ctx.ConvertChildren(n.Children); err != nil {
			return "", err
		}
		return "", errors.New("wrapper render failed")
	})

	roots := []*blocks.Node{
		node("acme/wrapper", nil,
			node("core/paragraph", map[string]any{"content": "inner"})),
		node("core/video", map[string]any{"src": "intro.mp4"}),
	}
	res, err := ConvertWith(reg, roots, config.Default())
	require.NoError(t, err)

	// Sibling indices continue from the kept visits, not the discarded ones.
	require.Len(t, res.HydrationTargets, 1)
	assert.Equal(t, "h2-core-video", res.HydrationTargets[0].ID)
	assert.Contains(t, res.Markup, "inner")
	assert.Equal(t, 1, strings.Count(res.Markup, "inner"))
	assert.Equal(t, 3, res.Nodes)
}

func TestConvertSegmentOffsetsMarkRootBoundaries(t *testing.T) {
	roots := sampleTree()
	res, err := Convert(roots, config.Default())
	require.NoError(t, err)

	require.Len(t, res.Segments, len(roots))
	assert.Equal(t, 0, res.Segments[0])
	// Each offset is where that root's output begins: the markup before it
	// is exactly the conversion of the preceding roots.
	for i := 1; i < len(roots); i++ {
		prefix, err := Convert(roots[:i], config.Default())
		require.NoError(t, err)
		assert.Equal(t, len(prefix.Markup), res.Segments[i], "segment %d", i)
		assert.Equal(t, prefix.Markup, res.Markup[:res.Segments[i]])
	}
}

func TestConvertCustomInteractiveBlocks(t *testing.T) {
	opts := config.Default()
	opts.InteractiveBlocks = []string{"acme/carousel"}

	roots := []*blocks.Node{node("acme/carousel", map[string]any{"text": "slides"})}
	res, err := Convert(roots, opts)
	require.NoError(t, err)
	require.Len(t, res.HydrationTargets, 1)
	assert.Equal(t, "acme/carousel", res.HydrationTargets[0].BlockType)
	assert.Contains(t, res.Markup, hydration.MarkerAttr)
}

func TestConvertPriorityBlocks(t *testing.T) {
	opts := config.Default()
	opts.Hydration.PriorityBlocks = []string{"core/video"}

	res, err := Convert(sampleTree(), opts)
	require.NoError(t, err)
	require.Len(t, res.HydrationTargets, 2)
	assert.False(t, res.HydrationTargets[0].Priority) // button
	assert.True(t, res.HydrationTargets[1].Priority)  // video
}

func renderedTree() []*blocks.Node {
	group := node("core/group", map[string]any{"align": "wide"},
		node("core/paragraph", map[string]any{"content": "inner"}))
	group.Fragments = []blocks.Fragment{
		{HTML: `<section class="stored">`},
		{ChildSlot: true},
		{HTML: "</section>"},
	}
	group.Children[0].Fragments = []blocks.Fragment{{HTML: "<p>stored body</p>"}}
	return []*blocks.Node{group}
}

func TestConvertRenderedModeVerbatim(t *testing.T) {
	opts := config.Default()
	opts.ContentMode = config.ModeRendered
	opts.Framework = classmap.FrameworkTailwind

	res, err := Convert(renderedTree(), opts)
	require.NoError(t, err)
	// Stored markup verbatim, child spliced into its slot, no class injection.
	assert.Equal(t, `<section class="stored"><p>stored body</p></section>`, res.Markup)
}

func TestConvertHybridModeInjectsClasses(t *testing.T) {
	opts := config.Default()
	opts.ContentMode = config.ModeHybrid
	opts.Framework = classmap.FrameworkTailwind

	res, err := Convert(renderedTree(), opts)
	require.NoError(t, err)
	// align=wide resolves to tailwind classes appended after the stored ones.
	assert.Contains(t, res.Markup, `<section class="stored max-w-screen-xl mx-auto">`)
	assert.Contains(t, res.Markup, "<p>stored body</p>")
}

func TestConvertHybridIdempotentClassMerge(t *testing.T) {
	opts := config.Default()
	opts.ContentMode = config.ModeHybrid
	opts.Framework = classmap.FrameworkTailwind

	first, err := Convert(renderedTree(), opts)
	require.NoError(t, err)
	again, err := Convert(renderedTree(), opts)
	require.NoError(t, err)
	assert.Equal(t, first.Markup, again.Markup)
}

func TestConvertRenderedModeStillMarks(t *testing.T) {
	btn := node("core/button", map[string]any{"text": "Go"})
	btn.Fragments = []blocks.Fragment{{HTML: `<div class="wp-block-button"><a href="/x">Go</a></div>`}}

	opts := config.Default()
	opts.ContentMode = config.ModeRendered
	res, err := Convert([]*blocks.Node{btn}, opts)
	require.NoError(t, err)

	require.Len(t, res.HydrationTargets, 1)
	marker := fmt.Sprintf(" %s=%q", hydration.MarkerAttr, res.HydrationTargets[0].ID)
	// Marker lands on the outer element only.
	assert.Equal(t, 1, strings.Count(res.Markup, hydration.MarkerAttr))
	assert.Contains(t, res.Markup, `<div class="wp-block-button"`+marker)
}

func TestConvertExtraChildrenAppended(t *testing.T) {
	n := node("core/group", nil,
		node("core/paragraph", map[string]any{"content": "a"}),
		node("core/paragraph", map[string]any{"content": "b"}))
	n.Fragments = []blocks.Fragment{
		{HTML: "<div>"},
		{ChildSlot: true},
		{HTML: "</div>"},
	}
	n.Children[0].Fragments = []blocks.Fragment{{HTML: "<p>a</p>"}}
	n.Children[1].Fragments = []blocks.Fragment{{HTML: "<p>b</p>"}}

	opts := config.Default()
	opts.ContentMode = config.ModeRendered
	res, err := Convert([]*blocks.Node{n}, opts)
	require.NoError(t, err)
	// Only one slot for two children: the second is appended, never dropped.
	assert.Equal(t, "<div><p>a</p></div><p>b</p>", res.Markup)
}

func TestConvertNilOptionsUsesDefaults(t *testing.T) {
	res, err := ConvertWith(nil, sampleTree(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Markup)
}

func TestSanitizeType(t *testing.T) {
	assert.Equal(t, "core-button", sanitizeType("core/button"))
	assert.Equal(t, "acme-my-block", sanitizeType("Acme/My_Block"))
}

func TestInjectAttr(t *testing.T) {
	attr := fmt.Sprintf(" %s=%q", hydration.MarkerAttr, "h0-x")

	got := injectAttr(`<div class="a"><span>x</span></div>`, attr)
	assert.Equal(t, `<div class="a" `+hydration.MarkerAttr+`="h0-x"><span>x</span></div>`, got)

	// Already marked: untouched.
	assert.Equal(t, got, injectAttr(got, attr))

	// Quoted '>' inside attribute values is skipped.
	got = injectAttr(`<a title="a > b">x</a>`, attr)
	assert.Contains(t, got, `title="a > b" `+hydration.MarkerAttr)

	// No element: pass through.
	assert.Equal(t, "plain text", injectAttr("plain text", attr))
}

func TestInjectClasses(t *testing.T) {
	got := injectClasses(`<div class="a b">x</div>`, "b c")
	assert.Equal(t, `<div class="a b c">x</div>`, got)

	// No class attribute yet.
	got = injectClasses(`<div id="k">x</div>`, "c1 c2")
	assert.Equal(t, `<div id="k" class="c1 c2">x</div>`, got)

	// Idempotent when nothing new.
	orig := `<div class="a b">x</div>`
	assert.Equal(t, orig, injectClasses(orig, "a b"))

	// Single-quoted values are recognized.
	got = injectClasses(`<div class='a'>x</div>`, "z")
	assert.Equal(t, `<div class='a z'>x</div>`, got)
}
