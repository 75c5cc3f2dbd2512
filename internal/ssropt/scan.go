package ssropt

import (
	"regexp"
	"strings"

	"github.com/madebyaris/wp-block-to-html/internal/config"
	"github.com/madebyaris/wp-block-to-html/internal/errors"
)

func validate(cfg *config.SSRConfig) error {
	if cfg == nil {
		return errors.NewConfigurationError("ssr config is required")
	}
	switch cfg.Level {
	case config.LevelMinimal, config.LevelBalanced, config.LevelMaximum, "":
	default:
		return errors.NewConfigurationError("unknown optimization level " + string(cfg.Level))
	}
	if cfg.CriticalPathOnly && cfg.DeferNonCritical {
		return errors.NewConfigurationError("critical_path_only and defer_non_critical are mutually exclusive")
	}
	if cfg.CriticalSizeRatio < 0 || cfg.CriticalSizeRatio > 1 {
		return errors.NewConfigurationError("critical_size_ratio must be within (0,1]")
	}
	return nil
}

// protectedRe matches raw-text elements whose contents must never be
// rewritten by whitespace or minification stages.
var protectedRe = regexp.MustCompile(`(?is)<(pre|script|style|textarea)\b[^>]*>.*?</(?:pre|script|style|textarea)>`)

// mapUnprotected applies fn to the spans of markup outside raw-text
// elements, leaving protected spans byte-identical.
func mapUnprotected(markup string, fn func(string) string) string {
	locs := protectedRe.FindAllStringIndex(markup, -1)
	if len(locs) == 0 {
		return fn(markup)
	}
	var b strings.Builder
	prev := 0
	for _, loc := range locs {
		b.WriteString(fn(markup[prev:loc[0]]))
		b.WriteString(markup[loc[0]:loc[1]])
		prev = loc[1]
	}
	b.WriteString(fn(markup[prev:]))
	return b.String()
}

// voidElements never take a closing tag; they do not affect nesting depth.
var voidElements = map[string]struct{}{
	"area": {}, "base": {}, "br": {}, "col": {}, "embed": {}, "hr": {},
	"img": {}, "input": {}, "link": {}, "meta": {}, "param": {},
	"source": {}, "track": {}, "wbr": {},
}

var tagRe = regexp.MustCompile(`(?s)<(/?)([a-zA-Z][a-zA-Z0-9-]*)((?:[^>"']|"[^"]*"|'[^']*')*?)(/?)>`)

// topLevelBoundaries returns the byte offsets directly after each point
// where element nesting depth returns to zero. These are the candidate
// critical-path cut points: cutting there never splits an element.
func topLevelBoundaries(markup string) []int {
	var boundaries []int
	depth := 0
	pos := 0
	for pos < len(markup) {
		lt := strings.IndexByte(markup[pos:], '<')
		if lt < 0 {
			break
		}
		pos += lt
		// Skip comments wholesale.
		if strings.HasPrefix(markup[pos:], "<!--") {
			end := strings.Index(markup[pos:], "-->")
			if end < 0 {
				break
			}
			pos += end + len("-->")
			if depth == 0 {
				boundaries = append(boundaries, pos)
			}
			continue
		}
		m := tagRe.FindStringSubmatchIndex(markup[pos:])
		if m == nil || m[0] != 0 {
			pos++
			continue
		}
		closing := m[3] > m[2]
		name := strings.ToLower(markup[pos+m[4] : pos+m[5]])
		selfClosing := m[9] > m[8]
		tagEnd := pos + m[1]

		_, void := voidElements[name]
		switch {
		case closing:
			if depth > 0 {
				depth--
			}
		case void || selfClosing:
			// no depth change
		default:
			depth++
			// Raw-text elements may contain markup-looking text; jump
			// straight to their closing tag.
			if name == "script" || name == "style" || name == "textarea" || name == "pre" {
				closeTag := "</" + name
				rest := strings.Index(strings.ToLower(markup[tagEnd:]), closeTag)
				if rest >= 0 {
					gt := strings.IndexByte(markup[tagEnd+rest:], '>')
					if gt >= 0 {
						pos = tagEnd + rest + gt + 1
						depth--
						if depth == 0 {
							boundaries = append(boundaries, pos)
						}
						continue
					}
				}
			}
		}
		pos = tagEnd
		if depth == 0 {
			boundaries = append(boundaries, pos)
		}
	}
	return boundaries
}
