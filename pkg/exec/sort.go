package exec

import (
	"context"
	"sort"

	"github.com/vertexql/vertexql/pkg/logicalplan"
	"github.com/vertexql/vertexql/pkg/physicalplan"
)

// evalSort materializes Input and sorts it by Keys in order, stable so
// equal-key rows keep their input relative order (matching the teacher's
// sort.SliceStable usage in pkg/cypher/executor.go).
func (x *Executor) evalSort(ctx context.Context, plan physicalplan.Plan, seed BindingRow) ([]BindingRow, error) {
	var input []BindingRow
	var err error
	var keys []logicalplan.SortKey

	switch p := plan.(type) {
	case *physicalplan.InMemorySort:
		input, err = x.eval(ctx, p.Input, seed)
		keys = p.Keys
	case *physicalplan.ExternalSort:
		input, err = x.eval(ctx, p.Input, seed)
		keys = p.Keys
	}
	if err != nil {
		return nil, err
	}

	var sortErr error
	sort.SliceStable(input, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		for _, k := range keys {
			lv, e := x.evalExpr(ctx, k.Expr, input[i])
			if e != nil {
				sortErr = e
				return false
			}
			rv, e := x.evalExpr(ctx, k.Expr, input[j])
			if e != nil {
				sortErr = e
				return false
			}
			if lv.Equal(rv) {
				continue
			}
			if k.Descending {
				return rv.Less(lv)
			}
			return lv.Less(rv)
		}
		return false
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return input, nil
}
