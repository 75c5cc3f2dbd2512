// Package blocks defines the immutable block document tree that conversion
// operates on, plus JSON decoding and structural validation.
package blocks

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/madebyaris/wp-block-to-html/internal/errors"
)

// Fragment is one entry of a node's raw content sequence. A fragment either
// carries pre-rendered markup or marks the position where the next child's
// output is spliced in (rendered/hybrid content modes).
type Fragment struct {
	HTML      string
	ChildSlot bool
}

// Node is a single block in a content tree. Nodes are constructed once per
// conversion call and treated as read-only afterwards.
type Node struct {
	// Type is the namespaced block type identifier, e.g. "core/paragraph".
	Type string
	// Attributes holds the block's attribute map as decoded from JSON.
	Attributes map[string]any
	// Fragments is the ordered raw-content sequence used by the rendered
	// and hybrid content modes. Empty in authoring flows that rely purely
	// on transformers.
	Fragments []Fragment
	// Children are the nested blocks, in document order.
	Children []*Node
}

// Attr returns the named attribute, or nil when absent.
func (n *Node) Attr(name string) any {
	if n.Attributes == nil {
		return nil
	}
	return n.Attributes[name]
}

// StringAttr returns the named attribute coerced to a string, or the empty
// string when absent or of another type.
func (n *Node) StringAttr(name string) string {
	if s, ok := n.Attr(name).(string); ok {
		return s
	}
	return ""
}

// BoolAttr reports whether the named attribute is present and true.
func (n *Node) BoolAttr(name string) bool {
	b, ok := n.Attr(name).(bool)
	return ok && b
}

// IntAttr returns the named attribute as an int. JSON numbers decode to
// float64, so both forms are accepted.
func (n *Node) IntAttr(name string) (int, bool) {
	switch v := n.Attr(name).(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

// wireNode mirrors the serialized block shape produced by content-authoring
// systems: blockName/attrs/innerBlocks/innerContent, where a null
// innerContent entry marks a child slot.
type wireNode struct {
	BlockName    string          `json:"blockName"`
	Attrs        map[string]any  `json:"attrs"`
	InnerBlocks  []wireNode      `json:"innerBlocks"`
	InnerContent []*string       `json:"innerContent"`
	RawMessage   json.RawMessage `json:"-"`
}

// Decode reads a JSON array of serialized blocks into a tree.
func Decode(r io.Reader) ([]*Node, error) {
	var wire []wireNode
	dec := json.NewDecoder(r)
	if err := dec.Decode(&wire); err != nil {
		return nil, errors.NewMalformedTreeError(fmt.Sprintf("decode block document: %v", err))
	}
	nodes := make([]*Node, 0, len(wire))
	for i := range wire {
		nodes = append(nodes, fromWire(&wire[i]))
	}
	if err := Validate(nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// DecodeBytes is a convenience wrapper over Decode.
func DecodeBytes(data []byte) ([]*Node, error) {
	var wire []wireNode
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, errors.NewMalformedTreeError(fmt.Sprintf("decode block document: %v", err))
	}
	nodes := make([]*Node, 0, len(wire))
	for i := range wire {
		nodes = append(nodes, fromWire(&wire[i]))
	}
	if err := Validate(nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

func fromWire(w *wireNode) *Node {
	n := &Node{
		Type:       w.BlockName,
		Attributes: w.Attrs,
	}
	for _, frag := range w.InnerContent {
		if frag == nil {
			n.Fragments = append(n.Fragments, Fragment{ChildSlot: true})
			continue
		}
		n.Fragments = append(n.Fragments, Fragment{HTML: *frag})
	}
	for i := range w.InnerBlocks {
		n.Children = append(n.Children, fromWire(&w.InnerBlocks[i]))
	}
	return n
}

// Validate checks the tree invariant: every node carries a type identifier,
// and no node is reachable twice (no cycles, no shared child ownership).
// Violations are fatal for the whole conversion call.
func Validate(roots []*Node) error {
	seen := make(map[*Node]struct{})
	var check func(n *Node, path string) error
	check = func(n *Node, path string) error {
		if n == nil {
			return errors.NewMalformedTreeError("nil node at " + path)
		}
		if _, dup := seen[n]; dup {
			return errors.NewMalformedTreeError("node reachable twice at " + path + " (cycle or shared child)")
		}
		seen[n] = struct{}{}
		if n.Type == "" {
			return errors.NewMalformedTreeError("missing block type identifier at " + path)
		}
		for i, c := range n.Children {
			if err := check(c, fmt.Sprintf("%s/%s[%d]", path, n.Type, i)); err != nil {
				return err
			}
		}
		return nil
	}
	for i, root := range roots {
		if err := check(root, fmt.Sprintf("root[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

// Walk visits every node depth-first in document order. Returning a non-nil
// error from the visitor stops the walk and is returned to the caller.
func Walk(roots []*Node, visit func(n *Node, depth int) error) error {
	var walk func(n *Node, depth int) error
	walk = func(n *Node, depth int) error {
		if err := visit(n, depth); err != nil {
			return err
		}
		for _, c := range n.Children {
			if err := walk(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	for _, root := range roots {
		if err := walk(root, 0); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the total number of nodes in the tree.
func Count(roots []*Node) int {
	n := 0
	_ = Walk(roots, func(*Node, int) error { n++; return nil })
	return n
}
