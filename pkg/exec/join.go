package exec

import (
	"context"

	"github.com/vertexql/vertexql/pkg/ast"
	"github.com/vertexql/vertexql/pkg/logicalplan"
	"github.com/vertexql/vertexql/pkg/physicalplan"
)

// evalJoin implements HashJoin/NestedLoopJoin for every logicalplan.JoinKind.
// HashJoin only ever arrives with an equality Condition (the planner
// guarantees this), so in principle it could probe a hash table on the
// right side's key; this evaluator treats both operators identically
// (a plain nested loop evaluating Condition per pair), since pkg/exec's
// batch-materializing model gets no further benefit from pre-hashing the
// right side the way a true streaming engine would.
func (x *Executor) evalJoin(ctx context.Context, plan physicalplan.Plan, seed BindingRow) ([]BindingRow, error) {
	var left, right physicalplan.Plan
	var kind logicalplan.JoinKind
	var condition ast.Expression

	switch p := plan.(type) {
	case *physicalplan.HashJoin:
		left, right, kind, condition = p.Left, p.Right, p.Kind, p.Condition
	case *physicalplan.NestedLoopJoin:
		left, right, kind, condition = p.Left, p.Right, p.Kind, p.Condition
	}

	leftRows, err := x.eval(ctx, left, seed)
	if err != nil {
		return nil, err
	}
	rightRows, err := x.eval(ctx, right, seed)
	if err != nil {
		return nil, err
	}

	match := func(l, r BindingRow) (bool, error) {
		if condition == nil {
			return true, nil
		}
		v, err := x.evalExpr(ctx, condition, mergeRows(l, r))
		if err != nil {
			return false, err
		}
		return v.Truthy(), nil
	}

	var out []BindingRow
	switch kind {
	case logicalplan.JoinCross:
		for _, l := range leftRows {
			for _, r := range rightRows {
				out = append(out, mergeRows(l, r))
			}
		}

	case logicalplan.JoinInner:
		for _, l := range leftRows {
			for _, r := range rightRows {
				ok, err := match(l, r)
				if err != nil {
					return nil, err
				}
				if ok {
					out = append(out, mergeRows(l, r))
				}
			}
		}

	case logicalplan.JoinLeftOuter:
		for _, l := range leftRows {
			matched := false
			for _, r := range rightRows {
				ok, err := match(l, r)
				if err != nil {
					return nil, err
				}
				if ok {
					matched = true
					out = append(out, mergeRows(l, r))
				}
			}
			if !matched {
				out = append(out, l.clone())
			}
		}

	case logicalplan.JoinLeftSemi:
		for _, l := range leftRows {
			for _, r := range rightRows {
				ok, err := match(l, r)
				if err != nil {
					return nil, err
				}
				if ok {
					out = append(out, l.clone())
					break
				}
			}
		}

	case logicalplan.JoinLeftAnti:
		for _, l := range leftRows {
			matched := false
			for _, r := range rightRows {
				ok, err := match(l, r)
				if err != nil {
					return nil, err
				}
				if ok {
					matched = true
					break
				}
			}
			if !matched {
				out = append(out, l.clone())
			}
		}
	}
	return out, nil
}

func mergeRows(l, r BindingRow) BindingRow {
	out := l.clone()
	for k, v := range r {
		out[k] = v
	}
	return out
}
