package exec

import (
	"context"
	"fmt"

	"github.com/vertexql/vertexql/pkg/ast"
	"github.com/vertexql/vertexql/pkg/value"
)

// evalExpr evaluates e against row's bindings, per spec.md §4.6's
// truthiness and null-propagation rules: any operand being null makes
// a comparison or arithmetic expression null (modeled here as
// value.Null()), except AND/OR's short-circuit cases.
func (x *Executor) evalExpr(ctx context.Context, e ast.Expression, row BindingRow) (value.Value, error) {
	switch ex := e.(type) {
	case nil:
		return value.Null(), nil
	case *ast.Literal:
		switch ex.Kind {
		case ast.LitString:
			return value.String(ex.Str), nil
		case ast.LitNumber:
			return value.Number(ex.Num), nil
		case ast.LitBool:
			return value.Bool(ex.Bool), nil
		default:
			return value.Null(), nil
		}
	case *ast.Variable:
		if v, ok := row[ex.Name]; ok {
			return v, nil
		}
		return value.Value{}, &QueryError{Kind: "ExpressionError", Location: ex.Location, Cause: fmt.Errorf("unbound variable %q", ex.Name)}
	case *ast.PropertyAccess:
		target, err := x.evalExpr(ctx, ex.Target, row)
		if err != nil {
			return value.Value{}, err
		}
		return propertyOf(target, ex.Property, ex.Location)
	case *ast.UnaryExpr:
		operand, err := x.evalExpr(ctx, ex.Operand, row)
		if err != nil {
			return value.Value{}, err
		}
		switch ex.Op {
		case ast.OpNot:
			return value.Bool(!operand.Truthy()), nil
		case ast.OpNeg:
			if operand.Kind != value.KindNumber {
				return value.Null(), nil
			}
			return value.Number(-operand.Num), nil
		}
		return value.Null(), nil
	case *ast.BinaryExpr:
		return x.evalBinary(ctx, ex, row)
	case *ast.ListExpr:
		items := make([]value.Value, len(ex.Items))
		for i, it := range ex.Items {
			v, err := x.evalExpr(ctx, it, row)
			if err != nil {
				return value.Value{}, err
			}
			items[i] = v
		}
		return value.List(items), nil
	case *ast.ArrayIndex:
		return x.evalArrayIndex(ctx, ex, row)
	case *ast.CaseExpr:
		return x.evalCase(ctx, ex, row)
	case *ast.FunctionCall:
		return x.evalFunction(ctx, ex, row)
	case *ast.SubqueryExpr:
		return x.evalInlineSubquery(ctx, ex, row)
	}
	return value.Null(), &QueryError{Kind: "unsupported expression", Location: e.Loc()}
}

// propertyOf resolves target.prop. A node/edge missing the property is an
// error (spec.md §4.6: "missing property accessed directly"); any other
// target kind (null, number, ...) is a type mismatch and stays Null.
func propertyOf(target value.Value, prop string, loc ast.Location) (value.Value, error) {
	switch target.Kind {
	case value.KindNode:
		if v, ok := target.Node.Properties[prop]; ok {
			return v, nil
		}
		return value.Value{}, &QueryError{Kind: "ExpressionError", Location: loc, Cause: fmt.Errorf("missing property %q", prop)}
	case value.KindEdge:
		if v, ok := target.Edge.Properties[prop]; ok {
			return v, nil
		}
		return value.Value{}, &QueryError{Kind: "ExpressionError", Location: loc, Cause: fmt.Errorf("missing property %q", prop)}
	}
	return value.Null(), nil
}

func (x *Executor) evalBinary(ctx context.Context, ex *ast.BinaryExpr, row BindingRow) (value.Value, error) {
	if ex.Op == ast.OpAnd {
		l, err := x.evalExpr(ctx, ex.Left, row)
		if err != nil {
			return value.Value{}, err
		}
		if !l.IsNull() && !l.Truthy() {
			return value.Bool(false), nil
		}
		r, err := x.evalExpr(ctx, ex.Right, row)
		if err != nil {
			return value.Value{}, err
		}
		if l.IsNull() || r.IsNull() {
			if !r.IsNull() && !r.Truthy() {
				return value.Bool(false), nil
			}
			return value.Null(), nil
		}
		return value.Bool(l.Truthy() && r.Truthy()), nil
	}
	if ex.Op == ast.OpOr {
		l, err := x.evalExpr(ctx, ex.Left, row)
		if err != nil {
			return value.Value{}, err
		}
		if !l.IsNull() && l.Truthy() {
			return value.Bool(true), nil
		}
		r, err := x.evalExpr(ctx, ex.Right, row)
		if err != nil {
			return value.Value{}, err
		}
		if l.IsNull() || r.IsNull() {
			if !r.IsNull() && r.Truthy() {
				return value.Bool(true), nil
			}
			return value.Null(), nil
		}
		return value.Bool(l.Truthy() || r.Truthy()), nil
	}

	l, err := x.evalExpr(ctx, ex.Left, row)
	if err != nil {
		return value.Value{}, err
	}
	r, err := x.evalExpr(ctx, ex.Right, row)
	if err != nil {
		return value.Value{}, err
	}
	if (l.IsNull() || r.IsNull()) && ex.Op != ast.OpIn {
		return value.Null(), nil
	}

	switch ex.Op {
	case ast.OpEq:
		return value.Bool(l.Equal(r)), nil
	case ast.OpNeq:
		return value.Bool(!l.Equal(r)), nil
	case ast.OpLt:
		return value.Bool(l.Less(r)), nil
	case ast.OpLe:
		return value.Bool(l.Less(r) || l.Equal(r)), nil
	case ast.OpGt:
		return value.Bool(r.Less(l)), nil
	case ast.OpGe:
		return value.Bool(r.Less(l) || l.Equal(r)), nil
	case ast.OpAdd:
		if l.Kind == value.KindString || r.Kind == value.KindString {
			return value.String(l.String() + r.String()), nil
		}
		return value.Number(l.Num + r.Num), nil
	case ast.OpSub:
		return value.Number(l.Num - r.Num), nil
	case ast.OpMul:
		return value.Number(l.Num * r.Num), nil
	case ast.OpDiv:
		if r.Num == 0 {
			return value.Value{}, &QueryError{Kind: "division by zero", Location: ex.Location}
		}
		return value.Number(l.Num / r.Num), nil
	case ast.OpIn:
		if r.IsNull() {
			return value.Null(), nil
		}
		items := r.List
		if r.Kind == value.KindArray {
			items = r.Arr
		}
		for _, item := range items {
			if l.Equal(item) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	}
	return value.Null(), nil
}

func (x *Executor) evalArrayIndex(ctx context.Context, ex *ast.ArrayIndex, row BindingRow) (value.Value, error) {
	target, err := x.evalExpr(ctx, ex.Target, row)
	if err != nil {
		return value.Value{}, err
	}
	items := target.List
	if target.Kind == value.KindArray {
		items = target.Arr
	}
	if ex.EndIndex != nil {
		start, end := 0, len(items)
		if ex.Index != nil {
			iv, err := x.evalExpr(ctx, ex.Index, row)
			if err != nil {
				return value.Value{}, err
			}
			start = clampIndex(int(iv.Num), len(items))
		}
		ev, err := x.evalExpr(ctx, ex.EndIndex, row)
		if err == nil {
			end = clampIndex(int(ev.Num), len(items))
		}
		if start > end {
			start = end
		}
		return value.List(append([]value.Value{}, items[start:end]...)), nil
	}
	iv, err := x.evalExpr(ctx, ex.Index, row)
	if err != nil {
		return value.Value{}, err
	}
	idx := int(iv.Num)
	if idx < 0 {
		idx += len(items)
	}
	if idx < 0 || idx >= len(items) {
		return value.Null(), nil
	}
	return items[idx], nil
}

func clampIndex(i, length int) int {
	if i < 0 {
		i += length
	}
	if i < 0 {
		return 0
	}
	if i > length {
		return length
	}
	return i
}

func (x *Executor) evalCase(ctx context.Context, ex *ast.CaseExpr, row BindingRow) (value.Value, error) {
	var operand value.Value
	hasOperand := ex.Operand != nil
	if hasOperand {
		v, err := x.evalExpr(ctx, ex.Operand, row)
		if err != nil {
			return value.Value{}, err
		}
		operand = v
	}
	for _, when := range ex.Whens {
		if hasOperand {
			cv, err := x.evalExpr(ctx, when.Condition, row)
			if err != nil {
				return value.Value{}, err
			}
			if !operand.Equal(cv) {
				continue
			}
		} else {
			cv, err := x.evalExpr(ctx, when.Condition, row)
			if err != nil {
				return value.Value{}, err
			}
			if !cv.Truthy() {
				continue
			}
		}
		return x.evalExpr(ctx, when.Result, row)
	}
	if ex.Else != nil {
		return x.evalExpr(ctx, ex.Else, row)
	}
	return value.Null(), nil
}
