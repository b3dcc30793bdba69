package logicalplan

import "github.com/vertexql/vertexql/pkg/ast"

// Optimize applies a small set of rule-based rewrites to a logical plan,
// grounded on the teacher's pkg/cypher/cache.go comment block describing
// its own (informal) predicate-pushdown and projection-pruning intent;
// this package makes those rewrites explicit, structural tree transforms
// instead of ad hoc inline checks during execution.
func Optimize(p Plan) Plan {
	p = pushDownFilters(p)
	p = eliminateRedundantProjections(p)
	p = markIndexableTextPredicates(p)
	return p
}

// pushDownFilters moves a Filter that sits directly on a WithQuery to
// just inside it (onto the WithQuery's input). It does not inspect the
// predicate's columns, and a Filter over a Project is left in place.
func pushDownFilters(p Plan) Plan {
	switch n := p.(type) {
	case *Filter:
		n.Input = pushDownFilters(n.Input)
		if wq, ok := n.Input.(*WithQuery); ok {
			// A filter immediately after a WITH boundary can run inside the
			// WITH's own scope rather than after it, since the WITH stage
			// doesn't narrow the row set, only the column set.
			wq.Input = &Filter{Input: wq.Input, Predicate: n.Predicate}
			return wq
		}
		return n
	default:
		rewriteChildren(p, pushDownFilters)
		return p
	}
}

// eliminateRedundantProjections drops a Project with no Items, replacing
// it by its input. A Project whose Items merely pass variables through
// unchanged is kept.
func eliminateRedundantProjections(p Plan) Plan {
	switch n := p.(type) {
	case *Project:
		n.Input = eliminateRedundantProjections(n.Input)
		if len(n.Items) == 0 {
			return n.Input
		}
		return n
	default:
		rewriteChildren(p, eliminateRedundantProjections)
		return p
	}
}

// markIndexableTextPredicates rewrites every FUZZY_MATCH/FT_*-family call
// inside a Filter's predicate, whether or not a text index is registered
// for its field, into an equivalent form physicalplan can recognize,
// by tagging the call's Name with an "INDEXED_" prefix the physical
// planner (pkg/physicalplan) looks for. The rewrite is purely advisory:
// absence of the prefix never changes correctness, only whether the
// physical planner may choose an index-backed scan over a sequential one.
func markIndexableTextPredicates(p Plan) Plan {
	if f, ok := p.(*Filter); ok {
		f.Predicate = tagIndexableCalls(f.Predicate)
	}
	rewriteChildren(p, markIndexableTextPredicates)
	return p
}

var textIndexFunctions = map[string]struct{}{
	"FUZZY_MATCH": {}, "FT_WILDCARD": {}, "FT_REGEX": {}, "KEYWORD_MATCH": {},
	"KEYWORD_MATCH_ALL": {}, "FT_STARTS_WITH": {}, "FT_ENDS_WITH": {},
	"FT_PHRASE_PREFIX": {}, "CONTAINS_FUZZY": {},
}

func tagIndexableCalls(e ast.Expression) ast.Expression {
	switch ex := e.(type) {
	case *ast.FunctionCall:
		if _, ok := textIndexFunctions[ex.Name]; ok {
			ex.Name = "INDEXED_" + ex.Name
		}
		for i := range ex.Args {
			ex.Args[i] = tagIndexableCalls(ex.Args[i])
		}
		return ex
	case *ast.BinaryExpr:
		ex.Left = tagIndexableCalls(ex.Left)
		ex.Right = tagIndexableCalls(ex.Right)
		return ex
	case *ast.UnaryExpr:
		ex.Operand = tagIndexableCalls(ex.Operand)
		return ex
	default:
		return e
	}
}

// rewriteChildren applies rec to every child plan a node holds, in
// place, regardless of which rule is currently traversing the tree.
func rewriteChildren(p Plan, rec func(Plan) Plan) {
	switch n := p.(type) {
	case *Expand:
		n.Input = rec(n.Input)
	case *Project:
		n.Input = rec(n.Input)
	case *Aggregate:
		n.Input = rec(n.Input)
	case *Having:
		n.Input = rec(n.Input)
	case *Sort:
		n.Input = rec(n.Input)
	case *Limit:
		n.Input = rec(n.Input)
	case *Distinct:
		n.Input = rec(n.Input)
	case *Unwind:
		n.Input = rec(n.Input)
	case *WithQuery:
		n.Input = rec(n.Input)
	case *Join:
		n.Left = rec(n.Left)
		n.Right = rec(n.Right)
	case *SetOp:
		n.Left = rec(n.Left)
		n.Right = rec(n.Right)
	case *SubqueryEval:
		n.Input = rec(n.Input)
		n.Inner = rec(n.Inner)
	case *InsertPattern:
		n.Input = rec(n.Input)
	case *SetProperties:
		n.Input = rec(n.Input)
	case *RemoveProperties:
		n.Input = rec(n.Input)
	case *DeleteEntities:
		n.Input = rec(n.Input)
	}
}
