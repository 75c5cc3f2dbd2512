package ssropt

import (
	"regexp"
	"strings"

	"github.com/madebyaris/wp-block-to-html/internal/config"
)

// Structural sentinels the pipeline emits and recognizes. Comments with the
// wpb: prefix are pipeline metadata and survive comment stripping.
const (
	belowAttr       = "data-wpb-below"
	deferScriptAttr = "data-wpb-defer"
	truncatedMarker = "<!--wpb:truncated-->"
	sentinelPrefix  = "<!--wpb:"
	mediaMarkerAttr = "data-wpb-media"
)

var (
	commentRe        = regexp.MustCompile(`(?s)<!--.*?-->`)
	interTagNewlines = regexp.MustCompile(`>[ \t]*\n[ \t\n\r]*<`)
)

// applyReduceWhitespace removes HTML comments (pipeline sentinels excepted)
// and newline runs between tags, outside raw-text elements.
func applyReduceWhitespace(markup string, _ *stageInput) string {
	return mapUnprotected(markup, func(s string) string {
		s = commentRe.ReplaceAllStringFunc(s, func(c string) string {
			if strings.HasPrefix(c, sentinelPrefix) {
				return c
			}
			return ""
		})
		s = interTagNewlines.ReplaceAllString(s, "><")
		return s
	})
}

var scriptRe = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
var scriptTypeRe = regexp.MustCompile(`(?i)type\s*=\s*["']([^"']*)["']`)
var scriptIDRe = regexp.MustCompile(`(?i)\bid\s*=\s*["']([^"']*)["']`)

// applyStripScripts removes script elements, keeping structured-data
// scripts, the pipeline's own defer script, and scripts whose id is on the
// configured allow-list.
func applyStripScripts(markup string, in *stageInput) string {
	return scriptRe.ReplaceAllStringFunc(markup, func(s string) string {
		openEnd := strings.IndexByte(s, '>')
		open := s[:openEnd+1]
		if strings.Contains(open, deferScriptAttr) {
			return s
		}
		if m := scriptTypeRe.FindStringSubmatch(open); m != nil {
			if strings.EqualFold(strings.TrimSpace(m[1]), "application/ld+json") {
				return s
			}
		}
		if m := scriptIDRe.FindStringSubmatch(open); m != nil {
			for _, allowed := range in.cfg.ScriptAllowList {
				if m[1] == allowed {
					return s
				}
			}
		}
		return ""
	})
}

var mediaTagRe = regexp.MustCompile(`(?i)<(img|video|audio|iframe)\b[^>]*` + mediaMarkerAttr + `[^>]*>`)

// applyLazyMedia marks every detected media element except the first in
// document order for deferred loading. The first is marked high-priority
// instead: it is presumed to be the largest-contentful-paint element and
// must never load lazily.
func applyLazyMedia(markup string, _ *stageInput) string {
	first := true
	return mediaTagRe.ReplaceAllStringFunc(markup, func(tag string) string {
		var kind string
		switch {
		case strings.HasPrefix(strings.ToLower(tag), "<img"):
			kind = "img"
		case strings.HasPrefix(strings.ToLower(tag), "<video"):
			kind = "video"
		case strings.HasPrefix(strings.ToLower(tag), "<audio"):
			kind = "audio"
		case strings.HasPrefix(strings.ToLower(tag), "<iframe"):
			kind = "iframe"
		}
		if first {
			first = false
			switch kind {
			case "img", "iframe":
				tag = ensureAttr(tag, "loading", "eager")
				tag = ensureAttr(tag, "fetchpriority", "high")
			case "video", "audio":
				tag = ensureAttr(tag, "preload", "metadata")
			}
			return tag
		}
		switch kind {
		case "img", "iframe":
			tag = ensureAttr(tag, "loading", "lazy")
		case "video", "audio":
			tag = ensureAttr(tag, "preload", "none")
		}
		return tag
	})
}

var imgTagRe = regexp.MustCompile(`(?i)<img\b[^>]*` + mediaMarkerAttr + `[^>]*>`)

// Default intrinsic size stamped onto dimensionless images so the browser
// can reserve layout space (16:9).
const (
	defaultMediaWidth  = "1200"
	defaultMediaHeight = "675"
)

// applyPreserveDimensions ensures width/height are present on image elements
// to avoid layout shift. Elements carrying either dimension already are left
// alone: a real dimension must never be overwritten with a guess.
func applyPreserveDimensions(markup string, _ *stageInput) string {
	return imgTagRe.ReplaceAllStringFunc(markup, func(tag string) string {
		if hasAttr(tag, "width") || hasAttr(tag, "height") {
			return tag
		}
		tag = ensureAttr(tag, "width", defaultMediaWidth)
		tag = ensureAttr(tag, "height", defaultMediaHeight)
		return tag
	})
}

// applyCriticalPath partitions markup into above/below segments at the
// explicit fold marker, or at the smallest top-level boundary covering the
// configured byte ratio. deferNonCritical hides the below segment until
// after initial paint; criticalPathOnly drops it from the output.
func applyCriticalPath(markup string, in *stageInput) string {
	// Already partitioned or truncated: nothing further to do.
	if strings.Contains(markup, belowAttr) || strings.Contains(markup, truncatedMarker) {
		return markup
	}
	cut := -1
	if idx := strings.Index(markup, config.FoldMarker); idx >= 0 {
		cut = idx + len(config.FoldMarker)
	} else {
		ratio := in.cfg.CriticalSizeRatio
		if ratio == 0 {
			ratio = config.DefaultCriticalSizeRatio
		}
		want := int(float64(len(markup)) * ratio)
		for _, b := range topLevelBoundaries(markup) {
			if b >= want && b < len(markup) {
				cut = b
				break
			}
		}
	}
	if cut <= 0 || cut >= len(markup) {
		return markup
	}
	above, below := markup[:cut], markup[cut:]
	if in.cfg.CriticalPathOnly {
		return above + truncatedMarker
	}
	var b strings.Builder
	b.WriteString(above)
	b.WriteString(`<div ` + belowAttr + ` hidden>`)
	b.WriteString(below)
	b.WriteString(`</div>`)
	b.WriteString(`<script ` + deferScriptAttr + `>requestAnimationFrame(function(){var e=document.querySelector("[` + belowAttr + `]");if(e){e.removeAttribute("hidden");}});</script>`)
	return b.String()
}

var styleRe = regexp.MustCompile(`(?is)<style\b[^>]*>(.*?)</style>`)

// applyDedupeStyles removes later inline style blocks whose content is a
// byte-for-byte duplicate (modulo surrounding whitespace) of an earlier one.
func applyDedupeStyles(markup string, _ *stageInput) string {
	seen := make(map[string]struct{})
	return styleRe.ReplaceAllStringFunc(markup, func(block string) string {
		m := styleRe.FindStringSubmatch(block)
		content := strings.TrimSpace(m[1])
		if _, dup := seen[content]; dup {
			return ""
		}
		seen[content] = struct{}{}
		return block
	})
}

var (
	wsRunRe    = regexp.MustCompile(`\s+`)
	interTagRe = regexp.MustCompile(`>\s+<`)
)

// applyMinify collapses remaining whitespace outside raw-text elements.
// Always the last stage.
func applyMinify(markup string, _ *stageInput) string {
	out := mapUnprotected(markup, func(s string) string {
		s = wsRunRe.ReplaceAllString(s, " ")
		s = interTagRe.ReplaceAllString(s, "><")
		return s
	})
	return strings.TrimSpace(out)
}

// ensureAttr adds name="value" to a start tag when the attribute is absent.
// Existing attributes are never modified, which keeps stages idempotent.
func ensureAttr(tag, name, value string) string {
	if hasAttr(tag, name) {
		return tag
	}
	insert := len(tag) - 1
	if strings.HasSuffix(tag, "/>") {
		insert = len(tag) - 2
	}
	return tag[:insert] + ` ` + name + `="` + value + `"` + tag[insert:]
}

func hasAttr(tag, name string) bool {
	re := regexp.MustCompile(`(?i)\s` + regexp.QuoteMeta(name) + `\s*=`)
	return re.MatchString(tag)
}
