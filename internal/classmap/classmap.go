// Package classmap resolves block attributes to CSS class strings for a
// target framework. Resolution layers default -> framework -> custom tables,
// with later layers overriding earlier ones key by key.
package classmap

import (
	"fmt"
	"sort"
	"strings"
)

// Framework identifies the target CSS framework for class resolution.
type Framework string

const (
	FrameworkNone      Framework = "none"
	FrameworkTailwind  Framework = "tailwind"
	FrameworkBootstrap Framework = "bootstrap"
	FrameworkCustom    Framework = "custom"
)

// Known reports whether f names a built-in framework table.
func Known(f Framework) bool {
	switch f {
	case FrameworkNone, FrameworkTailwind, FrameworkBootstrap:
		return true
	}
	return false
}

// Table maps block attributes to class strings. Value-keyed attributes go
// through Values; boolean flags (e.g. a drop-cap toggle) go through the
// dedicated Bools sub-table.
type Table struct {
	// Values: block type -> attribute name -> attribute value -> classes.
	Values map[string]map[string]map[string]string
	// Bools: block type -> attribute name -> classes applied when true.
	Bools map[string]map[string]string
}

// lookupValue returns the class string for (block, attr, value) and whether
// an entry exists. The wildcard block key "*" applies to every block type,
// with exact block entries taking precedence.
func (t *Table) lookupValue(block, attr, value string) (string, bool) {
	if t == nil {
		return "", false
	}
	for _, b := range []string{block, "*"} {
		if attrs, ok := t.Values[b]; ok {
			if vals, ok := attrs[attr]; ok {
				if cls, ok := vals[value]; ok {
					return cls, true
				}
			}
		}
	}
	return "", false
}

func (t *Table) lookupBool(block, attr string) (string, bool) {
	if t == nil {
		return "", false
	}
	for _, b := range []string{block, "*"} {
		if attrs, ok := t.Bools[b]; ok {
			if cls, ok := attrs[attr]; ok {
				return cls, true
			}
		}
	}
	return "", false
}

// Resolver resolves classes against the built-in layer tables plus optional
// custom overrides. The zero value is not usable; use NewResolver.
type Resolver struct {
	frameworks map[Framework]*Table
}

// NewResolver returns a resolver backed by the built-in default, tailwind,
// and bootstrap tables.
func NewResolver() *Resolver {
	return &Resolver{frameworks: map[Framework]*Table{
		FrameworkNone:      defaultTable,
		FrameworkTailwind:  tailwindTable,
		FrameworkBootstrap: bootstrapTable,
	}}
}

// Resolve returns the merged class string for a block's attributes under the
// given framework, with custom overriding framework overriding default,
// key by key. Attributes with no mapping in any layer contribute nothing.
// Output fragments are space-joined, first-seen order, duplicates removed.
func (r *Resolver) Resolve(blockType string, attributes map[string]any, framework Framework, custom *Table) string {
	if len(attributes) == 0 {
		return ""
	}
	// Map iteration order is randomized; sort attribute names so repeated
	// resolution of the same inputs yields identical output.
	names := make([]string, 0, len(attributes))
	for name := range attributes {
		names = append(names, name)
	}
	sort.Strings(names)

	fw := r.frameworks[framework]
	var fragments []string
	for _, name := range names {
		value := attributes[name]
		var cls string
		var found bool
		if b, isBool := value.(bool); isBool {
			if !b {
				continue
			}
			for _, layer := range []*Table{custom, fw, defaultTable} {
				if cls, found = layer.lookupBool(blockType, name); found {
					break
				}
			}
		} else {
			key := valueKey(value)
			for _, layer := range []*Table{custom, fw, defaultTable} {
				if cls, found = layer.lookupValue(blockType, name, key); found {
					break
				}
			}
		}
		if found && cls != "" {
			fragments = append(fragments, strings.Fields(cls)...)
		}
	}
	return Join(fragments...)
}

// valueKey normalizes an attribute value for table lookup. JSON numbers
// arrive as float64; integral values key without a decimal point.
func valueKey(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	case int:
		return fmt.Sprintf("%d", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// Join space-joins class fragments, dropping empties and duplicates while
// preserving first-seen order.
func Join(fragments ...string) string {
	seen := make(map[string]struct{}, len(fragments))
	var out []string
	for _, f := range fragments {
		for _, cls := range strings.Fields(f) {
			if _, dup := seen[cls]; dup {
				continue
			}
			seen[cls] = struct{}{}
			out = append(out, cls)
		}
	}
	return strings.Join(out, " ")
}
