// Package engine orchestrates recursive block-tree traversal, transformer
// dispatch, content-handling modes, class resolution, and hydration-target
// emission.
package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/madebyaris/wp-block-to-html/internal/blocks"
	"github.com/madebyaris/wp-block-to-html/internal/classmap"
	"github.com/madebyaris/wp-block-to-html/internal/config"
	"github.com/madebyaris/wp-block-to-html/internal/errors"
	"github.com/madebyaris/wp-block-to-html/internal/hydration"
	"github.com/madebyaris/wp-block-to-html/internal/metrics"
	"github.com/madebyaris/wp-block-to-html/internal/transform"
)

// Result is the output of one conversion call.
type Result struct {
	// Markup is the assembled output in document order.
	Markup string
	// HydrationTargets lists interactive elements in document order, state
	// Pending, strategy unresolved.
	HydrationTargets []*hydration.Target
	// Segments holds the byte offset at which each top-level block's output
	// begins, for critical-path partitioning without re-parsing.
	Segments []int
	// RunID identifies this conversion in logs and event records.
	RunID string
	// Nodes is the total node count of the converted tree.
	Nodes int
}

// defaultInteractive is the static convention set of block types that emit
// hydration targets without explicit configuration.
var defaultInteractive = map[string]struct{}{
	"core/button":     {},
	"core/embed":      {},
	"core/video":      {},
	"core/audio":      {},
	"core/gallery":    {},
	"core/navigation": {},
	"core/search":     {},
	"core/details":    {},
}

// Convert converts roots using the process-default transformer registry.
func Convert(roots []*blocks.Node, opts *config.Options) (*Result, error) {
	return ConvertWith(transform.Default(), roots, opts)
}

// ConvertNode converts a single root node.
func ConvertNode(root *blocks.Node, opts *config.Options) (*Result, error) {
	return Convert([]*blocks.Node{root}, opts)
}

// ConvertWith converts roots using the given registry. Options are validated
// at entry and never mutated. A well-formed tree always produces output,
// even under partial transformer failure: a failing transformer is replaced
// by the fallback for that node only.
func ConvertWith(registry *transform.Registry, roots []*blocks.Node, opts *config.Options) (*Result, error) {
	if opts == nil {
		opts = config.Default()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := blocks.Validate(roots); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = transform.Default()
	}

	start := time.Now()
	tr := newTraversal(registry, opts)

	var sb strings.Builder
	segments := make([]int, 0, len(roots))
	for _, root := range roots {
		segments = append(segments, sb.Len())
		out, err := tr.convertNode(root)
		if err != nil {
			return nil, err
		}
		sb.WriteString(out)
	}

	res := &Result{
		Markup:           sb.String(),
		HydrationTargets: tr.targets,
		Segments:         segments,
		RunID:            uuid.NewString(),
		Nodes:            tr.index,
	}

	rec := opts.Recorder()
	rec.ObserveConversionDuration(time.Since(start))
	rec.ObserveConversionNodes(res.Nodes)
	rec.ObserveConversionTargets(len(res.HydrationTargets))
	opts.ErrorLogger().Debug("conversion completed",
		"run_id", res.RunID,
		"nodes", res.Nodes,
		"targets", len(res.HydrationTargets),
		"mode", string(opts.ContentMode))
	return res, nil
}

// traversal is the per-call context threaded through recursion. It owns the
// document-order counter and the accumulated target list, keeping conversion
// calls independent and safe to run concurrently from multiple requests.
type traversal struct {
	opts        *config.Options
	registry    *transform.Registry
	resolver    *classmap.Resolver
	interactive map[string]struct{}
	tctx        *transform.Context

	index   int
	ids     map[*blocks.Node]string
	targets []*hydration.Target
}

func newTraversal(registry *transform.Registry, opts *config.Options) *traversal {
	tr := &traversal{
		opts:        opts,
		registry:    registry,
		resolver:    classmap.NewResolver(),
		interactive: defaultInteractive,
		ids:         make(map[*blocks.Node]string),
	}
	if len(opts.InteractiveBlocks) > 0 {
		merged := make(map[string]struct{}, len(defaultInteractive)+len(opts.InteractiveBlocks))
		for k := range defaultInteractive {
			merged[k] = struct{}{}
		}
		for _, t := range opts.InteractiveBlocks {
			merged[t] = struct{}{}
		}
		tr.interactive = merged
	}
	tr.tctx = &transform.Context{
		ConvertChildren: tr.convertNodes,
		Classes:         tr.classes,
		HydrationAttr:   tr.hydrationAttr,
		Logger:          opts.ErrorLogger(),
	}
	return tr
}

// visit assigns the node its document-order index and, for interactive
// types, records a Pending hydration target. Marker IDs derive from
// traversal position plus type, so unchanged input converts to identical
// IDs.
func (tr *traversal) visit(n *blocks.Node) {
	id := fmt.Sprintf("h%d-%s", tr.index, sanitizeType(n.Type))
	tr.ids[n] = id
	tr.index++
	if _, ok := tr.interactive[n.Type]; ok {
		tr.targets = append(tr.targets, &hydration.Target{
			ID:        id,
			BlockType: n.Type,
			Index:     tr.index - 1,
			Priority:  tr.isPriority(n.Type),
			State:     hydration.StatePending,
		})
	}
}

func (tr *traversal) isPriority(blockType string) bool {
	for _, p := range tr.opts.Hydration.PriorityBlocks {
		if p == blockType {
			return true
		}
	}
	return false
}

func (tr *traversal) classes(n *blocks.Node) string {
	return tr.resolver.Resolve(n.Type, n.Attributes, tr.opts.Framework, tr.opts.ClassOverrides)
}

// hydrationAttr returns the structural marker attribute (leading space
// included) for interactive nodes, or "".
func (tr *traversal) hydrationAttr(n *blocks.Node) string {
	if _, ok := tr.interactive[n.Type]; !ok {
		return ""
	}
	return fmt.Sprintf(" %s=%q", hydration.MarkerAttr, tr.ids[n])
}

func (tr *traversal) convertNodes(nodes []*blocks.Node) (string, error) {
	var sb strings.Builder
	for _, n := range nodes {
		out, err := tr.convertNode(n)
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(out)
	}
	return sb.String(), nil
}

func (tr *traversal) convertNode(n *blocks.Node) (string, error) {
	tr.visit(n)
	switch tr.opts.ContentMode {
	case config.ModeRendered:
		return tr.renderVerbatim(n)
	case config.ModeHybrid:
		return tr.renderHybrid(n)
	default:
		return tr.renderRaw(n)
	}
}

// renderRaw dispatches the node to its resolved transformer. A transformer
// failure is recovered per node: the fallback output is substituted, the
// error goes to the configured error channel, and traversal continues.
func (tr *traversal) renderRaw(n *blocks.Node) (string, error) {
	t := tr.registry.Resolve(n.Type)
	index, targets := tr.index, len(tr.targets)
	out, err := invoke(t, n, tr.tctx)
	rec := tr.opts.Recorder()
	if err != nil {
		// The failed attempt may have converted children already. Discard
		// those visits: the fallback converts children again, and only its
		// output reaches the markup, so only its indices and targets count.
		tr.index = index
		tr.targets = tr.targets[:targets]
		terr := errors.NewTransformError(n.Type, err)
		tr.opts.ErrorLogger().Warn("transformer failed, substituting fallback",
			"block_type", n.Type, "error", terr)
		rec.IncTransformResult(n.Type, metrics.ResultError)
		out, _ = transform.Fallback(n, tr.tctx)
		rec.IncTransformResult(n.Type, metrics.ResultFallback)
		return out, nil
	}
	rec.IncTransformResult(n.Type, metrics.ResultSuccess)
	return out, nil
}

// invoke runs a transformer, converting panics into errors so one bad block
// cannot abort conversion of the rest of the tree.
func invoke(t transform.Transformer, n *blocks.Node, ctx *transform.Context) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transformer panic: %v", r)
		}
	}()
	return t(n, ctx)
}

// renderVerbatim splices raw content fragments with children's own rendered
// output, verbatim, with no class injection. Interactive nodes still receive
// the structural hydration marker on their first element: marker emission is
// an engine concern, independent of transformers.
func (tr *traversal) renderVerbatim(n *blocks.Node) (string, error) {
	out, err := tr.splice(n, func(child *blocks.Node) (string, error) {
		return tr.convertNode(child)
	})
	if err != nil {
		return "", err
	}
	if attr := tr.hydrationAttr(n); attr != "" {
		out = injectAttr(out, attr)
	}
	return out, nil
}

// renderHybrid uses raw fragments for structure but merges the resolved
// class map classes into the node's first element. Original classes are
// preserved, new classes appended; no other attribute is touched.
func (tr *traversal) renderHybrid(n *blocks.Node) (string, error) {
	out, err := tr.splice(n, func(child *blocks.Node) (string, error) {
		return tr.convertNode(child)
	})
	if err != nil {
		return "", err
	}
	if cls := tr.classes(n); cls != "" {
		out = injectClasses(out, cls)
	}
	if attr := tr.hydrationAttr(n); attr != "" {
		out = injectAttr(out, attr)
	}
	return out, nil
}

// splice assembles a node's fragments, filling each child slot with the next
// child's output. Children beyond the available slots are appended at the
// end so content is never dropped.
func (tr *traversal) splice(n *blocks.Node, convertChild func(*blocks.Node) (string, error)) (string, error) {
	var sb strings.Builder
	child := 0
	for _, f := range n.Fragments {
		if !f.ChildSlot {
			sb.WriteString(f.HTML)
			continue
		}
		if child < len(n.Children) {
			out, err := convertChild(n.Children[child])
			if err != nil {
				return "", err
			}
			sb.WriteString(out)
			child++
		}
	}
	for ; child < len(n.Children); child++ {
		out, err := convertChild(n.Children[child])
		if err != nil {
			return "", err
		}
		sb.WriteString(out)
	}
	return sb.String(), nil
}

// sanitizeType maps a block type identifier to marker-safe characters.
func sanitizeType(t string) string {
	var b strings.Builder
	for _, r := range t {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
