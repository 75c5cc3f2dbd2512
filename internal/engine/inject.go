package engine

import (
	"strings"

	"github.com/madebyaris/wp-block-to-html/internal/classmap"
	"github.com/madebyaris/wp-block-to-html/internal/hydration"
)

// firstStartTag locates the first element start tag in markup and returns
// the index range [open, close] of "<tag ...>" with close pointing at '>'.
// Quoted attribute values may contain '>' and are skipped over.
func firstStartTag(markup string) (open, close int, ok bool) {
	for i := 0; i < len(markup); i++ {
		if markup[i] != '<' || i+1 >= len(markup) {
			continue
		}
		c := markup[i+1]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			continue
		}
		var quote byte
		for j := i + 1; j < len(markup); j++ {
			ch := markup[j]
			if quote != 0 {
				if ch == quote {
					quote = 0
				}
				continue
			}
			switch ch {
			case '"', '\'':
				quote = ch
			case '>':
				return i, j, true
			}
		}
		return 0, 0, false
	}
	return 0, 0, false
}

// injectAttr inserts attr (formatted with a leading space) into the first
// start tag of markup. Fragments whose first tag already carries a hydration
// marker are left untouched, keeping the operation idempotent.
func injectAttr(markup, attr string) string {
	open, close, ok := firstStartTag(markup)
	if !ok {
		return markup
	}
	tag := markup[open:close]
	if strings.Contains(tag, hydration.MarkerAttr+"=") {
		return markup
	}
	insert := close
	if markup[close-1] == '/' {
		insert = close - 1
	}
	return markup[:insert] + attr + markup[insert:]
}

// injectClasses merges classes into the first start tag's class attribute.
// Existing classes are preserved and kept first; new classes are appended
// with duplicates removed. No other attribute is modified. Fragments with no
// element start tag pass through unchanged.
func injectClasses(markup, classes string) string {
	open, close, ok := firstStartTag(markup)
	if !ok {
		return markup
	}
	tag := markup[open:close]

	valStart, valEnd, found := findClassAttr(tag)
	if !found {
		merged := ` class="` + classmap.Join(classes) + `"`
		insert := close
		if markup[close-1] == '/' {
			insert = close - 1
		}
		return markup[:insert] + merged + markup[insert:]
	}
	existing := tag[valStart:valEnd]
	merged := classmap.Join(existing, classes)
	if merged == existing {
		return markup
	}
	return markup[:open+valStart] + merged + markup[open+valEnd:]
}

// findClassAttr locates a class attribute inside a start tag's text and
// returns the value's index range. Only double-quoted and single-quoted
// values are recognized.
func findClassAttr(tag string) (valStart, valEnd int, found bool) {
	lower := strings.ToLower(tag)
	for i := 0; i < len(lower); i++ {
		idx := strings.Index(lower[i:], "class")
		if idx < 0 {
			return 0, 0, false
		}
		idx += i
		// Must be a standalone attribute name preceded by whitespace.
		if idx == 0 || !isSpace(lower[idx-1]) {
			i = idx
			continue
		}
		j := idx + len("class")
		for j < len(tag) && isSpace(tag[j]) {
			j++
		}
		if j >= len(tag) || tag[j] != '=' {
			i = idx
			continue
		}
		j++
		for j < len(tag) && isSpace(tag[j]) {
			j++
		}
		if j >= len(tag) || (tag[j] != '"' && tag[j] != '\'') {
			i = idx
			continue
		}
		quote := tag[j]
		j++
		end := strings.IndexByte(tag[j:], quote)
		if end < 0 {
			return 0, 0, false
		}
		return j, j + end, true
	}
	return 0, 0, false
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
