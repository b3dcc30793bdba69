package exec

import (
	"context"

	"github.com/vertexql/vertexql/pkg/logicalplan"
	"github.com/vertexql/vertexql/pkg/physicalplan"
)

// evalSetOp implements UNION (dedup), INTERSECT, and EXCEPT by keying
// both sides' rows with rowKeyFromRow; UNION ALL bypasses this entirely
// via UnionAllExec since it needs no set membership bookkeeping.
func (x *Executor) evalSetOp(ctx context.Context, p *physicalplan.SetOpExec, seed BindingRow) ([]BindingRow, error) {
	left, err := x.eval(ctx, p.Left, seed)
	if err != nil {
		return nil, err
	}
	right, err := x.eval(ctx, p.Right, seed)
	if err != nil {
		return nil, err
	}

	rightKeys := map[string]struct{}{}
	for _, r := range right {
		rightKeys[rowKeyFromRow(r)] = struct{}{}
	}

	var out []BindingRow
	seen := map[string]struct{}{}
	switch p.Kind {
	case logicalplan.SetOpUnion:
		for _, row := range append(append([]BindingRow{}, left...), right...) {
			k := rowKeyFromRow(row)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, row)
		}
	case logicalplan.SetOpIntersect:
		for _, row := range left {
			k := rowKeyFromRow(row)
			if _, dup := seen[k]; dup {
				continue
			}
			if _, inRight := rightKeys[k]; inRight {
				seen[k] = struct{}{}
				out = append(out, row)
			}
		}
	case logicalplan.SetOpExcept:
		for _, row := range left {
			k := rowKeyFromRow(row)
			if _, dup := seen[k]; dup {
				continue
			}
			if _, inRight := rightKeys[k]; !inRight {
				seen[k] = struct{}{}
				out = append(out, row)
			}
		}
	}
	return out, nil
}
