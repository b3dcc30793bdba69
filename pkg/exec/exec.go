// Package exec is the tuple-at-a-time interpreter spec.md §5 describes,
// walking a pkg/physicalplan tree to produce binding rows.
//
// Grounded on the teacher's pkg/cypher/executor.go (a recursive handler
// per clause type threading a shared *ExecutionContext), adapted from
// per-clause interpretation into per-physical-operator interpretation
// since pkg/physicalplan gives this package an explicit tree instead of
// a raw clause list to walk. Each operator materializes its output
// rather than truly streaming one row at a time — a deliberate
// simplification the teacher's own executor also makes (it collects
// into []map[string]interface{} at each stage) — but every operator
// still checks context cancellation before doing its work, satisfying
// spec.md §5's "check for cancellation at operator boundaries" rule.
package exec

import (
	"context"
	"fmt"
	"sort"

	"github.com/vertexql/vertexql/pkg/ast"
	"github.com/vertexql/vertexql/pkg/cache"
	"github.com/vertexql/vertexql/pkg/graph"
	"github.com/vertexql/vertexql/pkg/physicalplan"
	"github.com/vertexql/vertexql/pkg/textindex"
	"github.com/vertexql/vertexql/pkg/value"
)

// BindingRow maps pattern/projection variable names to their bound
// values for one row of a result set, per spec.md §3.
type BindingRow map[string]value.Value

func (r BindingRow) clone() BindingRow {
	out := make(BindingRow, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Mutator is the subset of write behavior the executor needs from
// pkg/write, kept as an interface so exec doesn't import write directly
// (write depends on exec's BindingRow type, so the dependency runs the
// other way: write implements this, exec calls it).
type Mutator interface {
	Insert(g *graph.Graph, row BindingRow, patterns []ast.PathPattern) (BindingRow, []string, error)
	SetProperties(g *graph.Graph, row BindingRow, items []ast.SetItem) error
	RemoveProperties(g *graph.Graph, row BindingRow, items []ast.RemoveItem) error
	Delete(g *graph.Graph, row BindingRow, variables []string, detach bool) error
}

// Executor evaluates a physical plan against one graph snapshot.
type Executor struct {
	Graph    *graph.Graph
	Indexes  *textindex.Registry
	Mutator  Mutator
	RowLimit int // not read by Run or any operator; results are never capped

	// Cache, when non-nil, is consulted and populated by evalSubquery for
	// every correlated EXISTS/IN/scalar subquery it evaluates (spec.md
	// §4.9). GraphVersion/SchemaVersion are the versions the coordinator
	// currently has this Graph/catalog at; the caller bumps them on every
	// mutation/DDL so a cached entry recorded under an older version is
	// treated as a miss rather than served stale.
	Cache         *cache.SubqueryCache
	GraphVersion  uint64
	SchemaVersion uint64

	// Warnings accumulates non-fatal messages a write operator produced
	// (spec.md §7: duplicate-insert detection is a warning, not an
	// error). Run resets this slice at the start of every call.
	Warnings []string
}

// QueryError is the structured execution-time error spec.md §7 requires.
type QueryError struct {
	Kind     string
	Location ast.Location
	Cause    error
}

func (e *QueryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return e.Kind
}

func (e *QueryError) Unwrap() error { return e.Cause }

// Run executes plan to completion and returns its rows.
func (x *Executor) Run(ctx context.Context, plan physicalplan.Plan) ([]BindingRow, error) {
	x.Warnings = nil
	return x.eval(ctx, plan, nil)
}

// Eval evaluates a single expression against row using the same rules
// Run's Filter/Project operators use. pkg/write calls this to resolve
// property-value expressions (SET, INSERT's property maps) without
// duplicating the binary/case/function dispatch logic here.
func (x *Executor) Eval(ctx context.Context, e ast.Expression, row BindingRow) (value.Value, error) {
	return x.evalExpr(ctx, e, row)
}

// eval walks plan, merging seed's bindings into every row a leaf producer
// creates. seed is nil for a top-level Run; evalSubquery/evalInlineSubquery
// pass the outer row's bindings here so a correlated subquery's MATCH/scan
// sees the outer variables without the logical/physical planner needing a
// dedicated "correlated scan" operator.
func (x *Executor) eval(ctx context.Context, plan physicalplan.Plan, seed BindingRow) ([]BindingRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch p := plan.(type) {
	case *physicalplan.SingleRowScan:
		return []BindingRow{seed.clone()}, nil

	case *physicalplan.NodeSeqScan:
		var rows []BindingRow
		for _, n := range x.Graph.GetAllNodes() {
			if hasAllLabels(n, p.Labels) {
				row := seed.clone()
				row[p.BindVar] = value.NodeVal(n.ToValue())
				rows = append(rows, row)
			}
		}
		return rows, nil

	case *physicalplan.NodeIndexScan:
		// Only the rarest label's candidate set needs walking: every node
		// it contains either carries every other label too (kept) or
		// doesn't (dropped), so there's no need to union multiple labels'
		// id sets and dedup.
		var rows []BindingRow
		if len(p.Labels) == 0 {
			return rows, nil
		}
		smallest := p.Labels[0]
		for _, l := range p.Labels[1:] {
			if len(x.Graph.GetNodesByLabel(l)) < len(x.Graph.GetNodesByLabel(smallest)) {
				smallest = l
			}
		}
		for _, n := range x.Graph.GetNodesByLabel(smallest) {
			if !hasAllLabels(n, p.Labels) {
				continue
			}
			row := seed.clone()
			row[p.BindVar] = value.NodeVal(n.ToValue())
			rows = append(rows, row)
		}
		return rows, nil

	case *physicalplan.IndexedExpand:
		return x.evalExpand(ctx, p, seed)

	case *physicalplan.FilterExec:
		input, err := x.eval(ctx, p.Input, seed)
		if err != nil {
			return nil, err
		}
		var out []BindingRow
		for _, row := range input {
			v, err := x.evalExpr(ctx, p.Predicate, row)
			if err != nil {
				return nil, err
			}
			if v.Truthy() {
				out = append(out, row)
			}
		}
		return out, nil

	case *physicalplan.GraphIndexScan:
		// Binds every node to BindVar and evaluates Predicate, same as a
		// NodeSeqScan feeding a FilterExec would, but as a single operator.
		// The function evaluator (functions.go) strips the INDEXED_ prefix
		// and calls the same pkg/textindex predicate function row by row;
		// no registered index is consulted.
		var out []BindingRow
		for _, n := range x.Graph.GetAllNodes() {
			if !hasAllLabels(n, p.Labels) {
				continue
			}
			row := seed.clone()
			row[p.BindVar] = value.NodeVal(n.ToValue())
			v, err := x.evalExpr(ctx, p.Predicate, row)
			if err != nil {
				return nil, err
			}
			if v.Truthy() {
				out = append(out, row)
			}
		}
		return out, nil

	case *physicalplan.ProjectExec:
		input, err := x.eval(ctx, p.Input, seed)
		if err != nil {
			return nil, err
		}
		var out []BindingRow
		seen := map[string]struct{}{}
		for _, row := range input {
			projected := BindingRow{}
			var keyParts []value.Value
			for _, item := range p.Items {
				v, err := x.evalExpr(ctx, item.Expr, row)
				if err != nil {
					return nil, err
				}
				alias := item.Alias
				if alias == "" {
					alias = fmt.Sprintf("col_%d", len(projected))
				}
				projected[alias] = v
				keyParts = append(keyParts, v)
			}
			if p.Distinct {
				key := rowKey(keyParts)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
			}
			out = append(out, projected)
		}
		return out, nil

	case *physicalplan.HashAggregate:
		return x.evalAggregate(ctx, p, seed)

	case *physicalplan.HavingExec:
		input, err := x.eval(ctx, p.Input, seed)
		if err != nil {
			return nil, err
		}
		var out []BindingRow
		for _, row := range input {
			v, err := x.evalExpr(ctx, p.Predicate, row)
			if err != nil {
				return nil, err
			}
			if v.Truthy() {
				out = append(out, row)
			}
		}
		return out, nil

	case *physicalplan.InMemorySort, *physicalplan.ExternalSort:
		return x.evalSort(ctx, plan, seed)

	case *physicalplan.LimitExec:
		input, err := x.eval(ctx, p.Input, seed)
		if err != nil {
			return nil, err
		}
		skip := 0
		if p.Skip != nil {
			v, err := x.evalExpr(ctx, p.Skip, BindingRow{})
			if err != nil {
				return nil, err
			}
			skip = int(v.Num)
		}
		if skip > len(input) {
			skip = len(input)
		}
		input = input[skip:]
		if p.Count != nil {
			v, err := x.evalExpr(ctx, p.Count, BindingRow{})
			if err != nil {
				return nil, err
			}
			n := int(v.Num)
			if n < len(input) {
				input = input[:n]
			}
		}
		return input, nil

	case *physicalplan.DistinctExec:
		input, err := x.eval(ctx, p.Input, seed)
		if err != nil {
			return nil, err
		}
		var out []BindingRow
		seen := map[string]struct{}{}
		for _, row := range input {
			key := rowKeyFromRow(row)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, row)
		}
		return out, nil

	case *physicalplan.UnwindExec:
		input, err := x.eval(ctx, p.Input, seed)
		if err != nil {
			return nil, err
		}
		var out []BindingRow
		for _, row := range input {
			v, err := x.evalExpr(ctx, p.Expr, row)
			if err != nil {
				return nil, err
			}
			items := v.List
			if v.Kind == value.KindArray {
				items = v.Arr
			}
			for _, item := range items {
				nr := row.clone()
				nr[p.As] = item
				out = append(out, nr)
			}
		}
		return out, nil

	case *physicalplan.HashJoin, *physicalplan.NestedLoopJoin:
		return x.evalJoin(ctx, plan, seed)

	case *physicalplan.UnionAllExec:
		left, err := x.eval(ctx, p.Left, seed)
		if err != nil {
			return nil, err
		}
		right, err := x.eval(ctx, p.Right, seed)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil

	case *physicalplan.SetOpExec:
		return x.evalSetOp(ctx, p, seed)

	case *physicalplan.WithBoundaryExec:
		return x.eval(ctx, p.Input, seed)

	case *physicalplan.SubqueryEvalExec:
		return x.evalSubquery(ctx, p, seed)

	case *physicalplan.InsertExec:
		input, err := x.eval(ctx, p.Input, seed)
		if err != nil {
			return nil, err
		}
		var out []BindingRow
		for _, row := range input {
			nr, warnings, err := x.Mutator.Insert(x.Graph, row, p.Patterns)
			if err != nil {
				return nil, err
			}
			x.Warnings = append(x.Warnings, warnings...)
			out = append(out, nr)
		}
		return out, nil

	case *physicalplan.SetPropertiesExec:
		input, err := x.eval(ctx, p.Input, seed)
		if err != nil {
			return nil, err
		}
		for _, row := range input {
			if err := x.Mutator.SetProperties(x.Graph, row, p.Items); err != nil {
				return nil, err
			}
		}
		return input, nil

	case *physicalplan.RemovePropertiesExec:
		input, err := x.eval(ctx, p.Input, seed)
		if err != nil {
			return nil, err
		}
		for _, row := range input {
			if err := x.Mutator.RemoveProperties(x.Graph, row, p.Items); err != nil {
				return nil, err
			}
		}
		return input, nil

	case *physicalplan.DeleteExec:
		input, err := x.eval(ctx, p.Input, seed)
		if err != nil {
			return nil, err
		}
		for _, row := range input {
			if err := x.Mutator.Delete(x.Graph, row, p.Variables, p.Detach); err != nil {
				return nil, err
			}
		}
		return input, nil
	}
	return nil, &QueryError{Kind: "unsupported physical operator", Cause: fmt.Errorf("%T", plan)}
}

func hasAllLabels(n *graph.Node, labels []string) bool {
	for _, l := range labels {
		if !n.HasLabel(l) {
			return false
		}
	}
	return true
}

func rowKey(vals []value.Value) string {
	var b []byte
	for _, v := range vals {
		b = append(b, []byte(v.String())...)
		b = append(b, 0)
	}
	return string(b)
}

func rowKeyFromRow(row BindingRow) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var vals []value.Value
	for _, k := range keys {
		vals = append(vals, row[k])
	}
	return rowKey(vals)
}
