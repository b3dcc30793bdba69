package exec

import (
	"context"
	"strconv"
	"strings"

	"github.com/vertexql/vertexql/pkg/ast"
	"github.com/vertexql/vertexql/pkg/physicalplan"
	"github.com/vertexql/vertexql/pkg/value"
)

// evalAggregate groups input rows by p.GroupBy's evaluated tuple and
// evaluates each p.Aggregates entry per group, mirroring the teacher's
// own single hash-table aggregation strategy (no sort-merge variant).
func (x *Executor) evalAggregate(ctx context.Context, p *physicalplan.HashAggregate, seed BindingRow) ([]BindingRow, error) {
	input, err := x.eval(ctx, p.Input, seed)
	if err != nil {
		return nil, err
	}

	type group struct {
		keyRow BindingRow
		rows   []BindingRow
	}
	order := []string{}
	groups := map[string]*group{}
	for _, row := range input {
		var keyVals []value.Value
		keyRow := BindingRow{}
		for i, ge := range p.GroupBy {
			v, err := x.evalExpr(ctx, ge, row)
			if err != nil {
				return nil, err
			}
			keyVals = append(keyVals, v)
			keyRow[groupAlias(ge, i)] = v
		}
		key := rowKey(keyVals)
		g, ok := groups[key]
		if !ok {
			g = &group{keyRow: keyRow}
			groups[key] = g
			order = append(order, key)
		}
		g.rows = append(g.rows, row)
	}
	if len(groups) == 0 && len(p.GroupBy) == 0 {
		// COUNT(*) and friends over an empty input still produce one row.
		groups[""] = &group{keyRow: BindingRow{}}
		order = append(order, "")
	}

	var out []BindingRow
	for _, key := range order {
		g := groups[key]
		resultRow := g.keyRow.clone()
		for _, agg := range p.Aggregates {
			v, err := x.evalAggregateFunc(ctx, agg.Expr, g.rows)
			if err != nil {
				return nil, err
			}
			resultRow[agg.Alias] = v
		}
		out = append(out, resultRow)
	}
	return out, nil
}

func groupAlias(e ast.Expression, i int) string {
	if v, ok := e.(*ast.Variable); ok {
		return v.Name
	}
	if p, ok := e.(*ast.PropertyAccess); ok {
		return p.Property
	}
	return "group_" + strconv.Itoa(i)
}

// evalAggregateFunc evaluates one aggregate FunctionCall over rows, the
// group an Aggregate node has already partitioned out.
func (x *Executor) evalAggregateFunc(ctx context.Context, e ast.Expression, rows []BindingRow) (value.Value, error) {
	call, ok := e.(*ast.FunctionCall)
	if !ok {
		if len(rows) == 0 {
			return value.Null(), nil
		}
		return x.evalExpr(ctx, e, rows[0])
	}
	name := strings.ToUpper(call.Name)

	if name == "COUNT" && len(call.Args) == 1 {
		if v, ok := call.Args[0].(*ast.Variable); ok && v.Name == "*" {
			return value.Number(float64(len(rows))), nil
		}
	}

	vals, err := x.collectArgValues(ctx, call, rows)
	if err != nil {
		return value.Value{}, err
	}

	switch name {
	case "COUNT":
		n := 0
		for _, v := range vals {
			if !v.IsNull() {
				n++
			}
		}
		return value.Number(float64(n)), nil
	case "SUM":
		sum := 0.0
		for _, v := range vals {
			if v.Kind == value.KindNumber {
				sum += v.Num
			}
		}
		return value.Number(sum), nil
	case "AVG":
		sum, n := 0.0, 0
		for _, v := range vals {
			if v.Kind == value.KindNumber {
				sum += v.Num
				n++
			}
		}
		if n == 0 {
			return value.Null(), nil
		}
		return value.Number(sum / float64(n)), nil
	case "MIN":
		return extreme(vals, true), nil
	case "MAX":
		return extreme(vals, false), nil
	case "COLLECT":
		items := make([]value.Value, 0, len(vals))
		for _, v := range vals {
			if !v.IsNull() {
				items = append(items, v)
			}
		}
		return value.List(items), nil
	}
	return value.Value{}, &QueryError{Kind: "unknown aggregate function " + call.Name, Location: call.Location}
}

func (x *Executor) collectArgValues(ctx context.Context, call *ast.FunctionCall, rows []BindingRow) ([]value.Value, error) {
	var vals []value.Value
	seen := map[string]struct{}{}
	for _, row := range rows {
		v, err := x.evalExpr(ctx, call.Args[0], row)
		if err != nil {
			return nil, err
		}
		if call.Distinct {
			key := v.String()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		vals = append(vals, v)
	}
	return vals, nil
}

func extreme(vals []value.Value, wantMin bool) value.Value {
	var best value.Value
	has := false
	for _, v := range vals {
		if v.IsNull() {
			continue
		}
		if !has {
			best = v
			has = true
			continue
		}
		if wantMin && v.Less(best) {
			best = v
		}
		if !wantMin && best.Less(v) {
			best = v
		}
	}
	if !has {
		return value.Null()
	}
	return best
}
