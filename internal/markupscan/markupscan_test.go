package markupscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madebyaris/wp-block-to-html/internal/blocks"
	"github.com/madebyaris/wp-block-to-html/internal/config"
	"github.com/madebyaris/wp-block-to-html/internal/engine"
	"github.com/madebyaris/wp-block-to-html/internal/hydration"
	"github.com/madebyaris/wp-block-to-html/internal/ssropt"
)

func TestScan(t *testing.T) {
	markup := `<div data-wpb-hydrate="h0-core-button"><a href="/x">Go</a></div>` +
		`<img src="a.png" data-wpb-media="img" loading="lazy" width="640" height="480">` +
		`<video src="v.mp4" data-wpb-media="video" preload="metadata"></video>` +
		`<script>x()</script><style>.a{}</style>`

	rep, err := Scan(markup)
	require.NoError(t, err)

	require.Len(t, rep.Markers, 1)
	assert.Equal(t, "h0-core-button", rep.Markers[0].ID)
	assert.Equal(t, "div", rep.Markers[0].Tag)

	require.Len(t, rep.Media, 2)
	img := rep.Media[0]
	assert.Equal(t, "img", img.Kind)
	assert.True(t, img.Lazy)
	assert.True(t, img.HasDimensions)
	vid := rep.Media[1]
	assert.Equal(t, "video", vid.Kind)
	assert.True(t, vid.HighPriority)
	assert.False(t, vid.HasDimensions)

	assert.Equal(t, 1, rep.Scripts)
	assert.Equal(t, 1, rep.Styles)
}

func TestVerify(t *testing.T) {
	targets := []*hydration.Target{
		{ID: "h0-core-button", BlockType: "core/button"},
		{ID: "h1-core-video", BlockType: "core/video"},
	}
	good := `<div data-wpb-hydrate="h0-core-button"></div><figure data-wpb-hydrate="h1-core-video"></figure>`
	require.NoError(t, Verify(good, targets))

	missing := `<div data-wpb-hydrate="h0-core-button"></div>`
	err := Verify(missing, targets)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")

	dup := good + `<div data-wpb-hydrate="h0-core-button"></div>`
	err = Verify(dup, targets)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicated")
}

// Full-pipeline property: markers survive conversion plus every optimization
// stage, exactly once each.
func TestMarkersSurviveOptimization(t *testing.T) {
	roots := []*blocks.Node{
		{Type: "core/heading", Attributes: map[string]any{"content": "T"}},
		{Type: "core/button", Attributes: map[string]any{"text": "Go", "url": "/x"}},
		{Type: "core/image", Attributes: map[string]any{"url": "a.png"}},
		{Type: "core/video", Attributes: map[string]any{"src": "v.mp4"}},
		{Type: "core/embed", Attributes: map[string]any{"url": "https://example.com/e"}},
	}
	opts := config.Default()
	opts.SSR.Level = config.LevelMaximum
	opts.SSR.DeferNonCritical = true

	res, err := engine.Convert(roots, opts)
	require.NoError(t, err)
	require.Len(t, res.HydrationTargets, 3)

	optimized, err := ssropt.Optimize(res.Markup, res.HydrationTargets, &opts.SSR)
	require.NoError(t, err)
	require.NoError(t, Verify(optimized, res.HydrationTargets))

	rep, err := Scan(optimized)
	require.NoError(t, err)
	assert.Len(t, rep.Media, 3, "img, video, and iframe media markers")
}
