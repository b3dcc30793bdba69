package physicalplan

import (
	"math"

	"github.com/vertexql/vertexql/pkg/ast"
	"github.com/vertexql/vertexql/pkg/logicalplan"
)

// GraphStats feeds cardinality estimates into the planner; the
// coordinator (pkg/coordinator) supplies live counts from pkg/graph, and
// tests can pass a zero-value GraphStats to get the planner's floor
// estimates.
type GraphStats struct {
	NodeCount     float64
	EdgeCount     float64
	AvgOutDegree  float64
	TextIndexNames map[string]struct{} // set of text index names; not read by Plan
}

// Plan turns a logical plan into a physical one, choosing concrete
// strategies the way the teacher's executor implicitly does (label
// presence picks an index scan over a sequential one; every Expand
// becomes an IndexedExpand over the adjacency index).
func Plan(lp logicalplan.Plan, stats GraphStats) Plan {
	switch n := lp.(type) {
	case *logicalplan.SingleRow:
		return &SingleRowScan{estimate{Rows: 1, Cost: 0}}

	case *logicalplan.NodeScan:
		if len(n.Labels) > 0 {
			rows := stats.NodeCount / 4
			if rows < 1 {
				rows = 1
			}
			return &NodeIndexScan{estimate{Rows: rows, Cost: rows}, n.BindVar, n.Labels}
		}
		rows := stats.NodeCount
		if rows < 1 {
			rows = 1
		}
		return &NodeSeqScan{estimate{Rows: rows, Cost: rows * 1.5}, n.BindVar, n.Labels}

	case *logicalplan.Expand:
		input := Plan(n.Input, stats)
		rows := input.EstimatedRows() * maxF(stats.AvgOutDegree, 1)
		return &IndexedExpand{
			estimate: estimate{Rows: rows, Cost: input.EstimatedCost() + rows},
			Input:    input, FromVar: n.FromVar, ToVar: n.ToVar, EdgeVar: n.EdgeVar,
			Labels: n.Labels, Direction: n.Direction, MinHops: n.MinHops, MaxHops: n.MaxHops,
		}

	case *logicalplan.Filter:
		input := Plan(n.Input, stats)
		// GraphIndexScan only replaces a bare, unconstrained node scan: if
		// anything besides the scan itself feeds the filter, folding the
		// predicate into an index probe would silently drop those rows'
		// other constraints, so we keep FilterExec layered on top instead.
		if bindVar, labels, ok := indexScanBindVar(input); ok {
			if name, ok := indexedPredicateName(n.Predicate); ok {
				return &GraphIndexScan{estimate{Rows: input.EstimatedRows() / 10, Cost: input.EstimatedCost()}, bindVar, labels, name, n.Predicate}
			}
		}
		return &FilterExec{estimate{Rows: input.EstimatedRows() * 0.33, Cost: input.EstimatedCost() + input.EstimatedRows()}, input, n.Predicate}

	case *logicalplan.Project:
		input := Plan(n.Input, stats)
		e := estimate{Rows: input.EstimatedRows(), Cost: input.EstimatedCost() + input.EstimatedRows()}
		return &ProjectExec{e, input, n.Items, n.Distinct}

	case *logicalplan.Aggregate:
		input := Plan(n.Input, stats)
		rows := input.EstimatedRows()
		if len(n.GroupBy) > 0 {
			rows = maxF(rows/10, 1)
		} else {
			rows = 1
		}
		return &HashAggregate{estimate{Rows: rows, Cost: input.EstimatedCost() + input.EstimatedRows()}, input, n.GroupBy, n.Aggregates}

	case *logicalplan.Having:
		input := Plan(n.Input, stats)
		return &HavingExec{estimate{Rows: input.EstimatedRows() * 0.5, Cost: input.EstimatedCost() + input.EstimatedRows()}, input, n.Predicate}

	case *logicalplan.Sort:
		input := Plan(n.Input, stats)
		rows := input.EstimatedRows()
		cost := input.EstimatedCost() + rows*logF(rows)
		return &InMemorySort{estimate{Rows: rows, Cost: cost}, input, n.Keys}

	case *logicalplan.Limit:
		input := Plan(n.Input, stats)
		return &LimitExec{estimate{Rows: input.EstimatedRows(), Cost: input.EstimatedCost()}, input, n.Skip, n.Count}

	case *logicalplan.Distinct:
		input := Plan(n.Input, stats)
		return &DistinctExec{estimate{Rows: input.EstimatedRows() * 0.8, Cost: input.EstimatedCost() + input.EstimatedRows()}, input}

	case *logicalplan.Unwind:
		input := Plan(n.Input, stats)
		return &UnwindExec{estimate{Rows: input.EstimatedRows() * 5, Cost: input.EstimatedCost() + input.EstimatedRows()}, input, n.Expr, n.As}

	case *logicalplan.Join:
		left := Plan(n.Left, stats)
		right := Plan(n.Right, stats)
		e := estimate{Rows: left.EstimatedRows() * right.EstimatedRows(), Cost: left.EstimatedCost() + right.EstimatedCost() + left.EstimatedRows()*right.EstimatedRows()}
		if n.Kind == logicalplan.JoinCross {
			return &NestedLoopJoin{e, left, right, n.Kind, n.Condition}
		}
		if n.Condition != nil && isEqualityCondition(n.Condition) {
			e.Cost = left.EstimatedCost() + right.EstimatedCost() + left.EstimatedRows() + right.EstimatedRows()
			return &HashJoin{e, left, right, n.Kind, n.Condition}
		}
		return &NestedLoopJoin{e, left, right, n.Kind, n.Condition}

	case *logicalplan.SetOp:
		left := Plan(n.Left, stats)
		right := Plan(n.Right, stats)
		e := estimate{Rows: left.EstimatedRows() + right.EstimatedRows(), Cost: left.EstimatedCost() + right.EstimatedCost()}
		if n.Kind == logicalplan.SetOpUnionAll {
			return &UnionAllExec{e, left, right}
		}
		return &SetOpExec{e, left, right, n.Kind}

	case *logicalplan.WithQuery:
		input := Plan(n.Input, stats)
		return &WithBoundaryExec{estimate{Rows: input.EstimatedRows(), Cost: input.EstimatedCost()}, input}

	case *logicalplan.SubqueryEval:
		input := Plan(n.Input, stats)
		inner := Plan(n.Inner, stats)
		return &SubqueryEvalExec{
			estimate{Rows: input.EstimatedRows(), Cost: input.EstimatedCost() + input.EstimatedRows()*inner.EstimatedCost()},
			input, inner, n.Kind, n.Probe, n.Alias,
		}

	case *logicalplan.InsertPattern:
		input := Plan(n.Input, stats)
		return &InsertExec{estimate{Rows: input.EstimatedRows(), Cost: input.EstimatedCost() + 1}, input, n.Patterns}

	case *logicalplan.SetProperties:
		input := Plan(n.Input, stats)
		return &SetPropertiesExec{estimate{Rows: input.EstimatedRows(), Cost: input.EstimatedCost()}, input, n.Items}

	case *logicalplan.RemoveProperties:
		input := Plan(n.Input, stats)
		return &RemovePropertiesExec{estimate{Rows: input.EstimatedRows(), Cost: input.EstimatedCost()}, input, n.Items}

	case *logicalplan.DeleteEntities:
		input := Plan(n.Input, stats)
		return &DeleteExec{estimate{Rows: input.EstimatedRows(), Cost: input.EstimatedCost()}, input, n.Variables, n.Detach}
	}
	return &SingleRowScan{estimate{Rows: 1}}
}

func isEqualityCondition(e ast.Expression) bool {
	b, ok := e.(*ast.BinaryExpr)
	return ok && b.Op == ast.OpEq
}

func indexScanBindVar(p Plan) (string, []string, bool) {
	switch n := p.(type) {
	case *NodeSeqScan:
		return n.BindVar, n.Labels, true
	case *NodeIndexScan:
		return n.BindVar, n.Labels, true
	}
	return "", nil, false
}

func indexedPredicateName(e ast.Expression) (string, bool) {
	call, ok := e.(*ast.FunctionCall)
	if !ok || len(call.Name) < 8 || call.Name[:8] != "INDEXED_" {
		return "", false
	}
	return call.Name, true
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func logF(x float64) float64 {
	if x < 2 {
		return 1
	}
	return math.Log2(x)
}
