package logicalplan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vertexql/vertexql/pkg/ast"
)

// BuildError reports a plan-build-time failure — the binding-scope and
// pattern-shape checks spec.md §9 places after parsing rather than in
// the grammar itself (e.g. the anonymous-node-endpoint rule).
type BuildError struct {
	Message  string
	Location ast.Location
}

func (e *BuildError) Error() string { return e.Message }

// scope tracks which variables are already bound as a clause sequence
// is processed left to right, per spec.md §4.5's build rules.
type scope map[string]struct{}

func (s scope) has(name string) bool { _, ok := s[name]; return ok }
func (s scope) bind(name string) {
	if name != "" {
		s[name] = struct{}{}
	}
}

// Build lowers a top-level ast.Statement into a logical Plan.
func Build(stmt ast.Statement) (Plan, error) {
	switch s := stmt.(type) {
	case *ast.ClauseStatement:
		return buildClauses(s)
	case *ast.SetOpStatement:
		left, err := Build(s.Left)
		if err != nil {
			return nil, err
		}
		right, err := Build(s.Right)
		if err != nil {
			return nil, err
		}
		kind := map[ast.SetOpKind]SetOpKind{
			ast.SetOpUnion:     SetOpUnion,
			ast.SetOpUnionAll:  SetOpUnionAll,
			ast.SetOpIntersect: SetOpIntersect,
			ast.SetOpExcept:    SetOpExcept,
		}[s.Op]
		return &SetOp{Left: left, Right: right, Kind: kind}, nil
	default:
		return nil, &BuildError{Message: fmt.Sprintf("cannot build a logical plan from %T", stmt), Location: stmt.Loc()}
	}
}

func buildClauses(cs *ast.ClauseStatement) (Plan, error) {
	return buildClausesFrom(cs, scope{})
}

// BuildCorrelated lowers a subquery body the way buildClauses lowers a
// top-level statement, except sc is seeded with the outer query's already
// bound variable names: a pattern referencing one of them (e.g. `(p)` in
// `WHERE EXISTS { MATCH (p)-[:KNOWS]->(q) }`) is then recognized as a
// reference to the correlated outer binding instead of a fresh NodeScan,
// per spec.md §4.5's EXISTS/IN/scalar subquery correlation rule.
func BuildCorrelated(stmt *ast.ClauseStatement, outerVars map[string]struct{}) (Plan, error) {
	sc := make(scope, len(outerVars))
	for v := range outerVars {
		sc.bind(v)
	}
	return buildClausesFrom(stmt, sc)
}

func buildClausesFrom(cs *ast.ClauseStatement, sc scope) (Plan, error) {
	var plan Plan = &SingleRow{}
	for _, clause := range cs.Clauses {
		var err error
		plan, err = applyClause(plan, clause, sc)
		if err != nil {
			return nil, err
		}
	}
	return plan, nil
}

func applyClause(plan Plan, clause ast.Clause, sc scope) (Plan, error) {
	switch c := clause.(type) {
	case *ast.MatchClause:
		return applyMatch(plan, c, sc)
	case *ast.WhereClause:
		return applyWhere(plan, c, sc)
	case *ast.WithClause:
		return applyWith(plan, c, sc)
	case *ast.ReturnClause:
		return applyReturn(plan, c)
	case *ast.UnwindClause:
		sc.bind(c.As)
		return &Unwind{Input: plan, Expr: c.Expr, As: c.As}, nil
	case *ast.GroupByClause:
		return &Aggregate{Input: plan, GroupBy: c.Items}, nil
	case *ast.HavingClause:
		return &Having{Input: plan, Predicate: c.Expression}, nil
	case *ast.LetClause:
		items := make([]ProjectItem, len(c.Items))
		for i, it := range c.Items {
			items[i] = ProjectItem{Expr: it.Expression, Alias: it.Alias}
			sc.bind(it.Alias)
		}
		return &Project{Input: plan, Items: items}, nil
	case *ast.InsertClause:
		for _, pat := range c.Patterns {
			bindPatternVars(pat, sc)
		}
		return &InsertPattern{Input: plan, Patterns: c.Patterns}, nil
	case *ast.SetClause:
		return &SetProperties{Input: plan, Items: c.Items}, nil
	case *ast.RemoveClause:
		return &RemoveProperties{Input: plan, Items: c.Items}, nil
	case *ast.DeleteClause:
		return &DeleteEntities{Input: plan, Variables: c.Variables, Detach: c.Detach}, nil
	default:
		return nil, &BuildError{Message: fmt.Sprintf("unsupported clause %T", clause), Location: clause.Loc()}
	}
}

func bindPatternVars(pat ast.PathPattern, sc scope) {
	for _, n := range pat.Nodes {
		sc.bind(n.Variable)
	}
	for _, e := range pat.Edges {
		sc.bind(e.Variable)
	}
	sc.bind(pat.Variable)
}

// applyMatch lowers one MATCH pattern into a NodeScan/Expand chain,
// joined against the existing plan. A node pattern whose variable is
// already bound is a reference, not a fresh scan: it becomes a join
// predicate instead of introducing a new NodeScan, per spec.md §4.5
// rule 8 (re-use of a previously bound variable inside a later MATCH).
func applyMatch(input Plan, m *ast.MatchClause, sc scope) (Plan, error) {
	pat := m.Pattern
	if err := validatePattern(pat, sc); err != nil {
		return nil, err
	}

	first := pat.Nodes[0]
	var patPlan Plan
	firstAlreadyBound := sc.has(first.Variable) && first.Variable != ""
	if !firstAlreadyBound {
		patPlan = &NodeScan{BindVar: varOrAnon(first), Labels: first.Labels}
	} else {
		patPlan = &SingleRow{}
	}
	sc.bind(first.Variable)

	fromVar := varOrAnon(first)
	for i, edge := range pat.Edges {
		toNode := pat.Nodes[i+1]
		toVar := varOrAnon(toNode)
		minHops, maxHops := 1, 1
		if edge.MinHops != nil {
			minHops = *edge.MinHops
		}
		if edge.MaxHops != nil {
			maxHops = *edge.MaxHops
		} else if edge.MinHops != nil {
			maxHops = 0 // unbounded
		}
		patPlan = &Expand{
			Input:     patPlan,
			FromVar:   fromVar,
			ToVar:     toVar,
			EdgeVar:   edge.Variable,
			Labels:    edge.Labels,
			Direction: edge.Direction,
			MinHops:   minHops,
			MaxHops:   maxHops,
		}
		if !sc.has(toNode.Variable) || toNode.Variable == "" {
			if len(toNode.Labels) > 0 {
				patPlan = &Filter{Input: patPlan, Predicate: labelsPredicate(toVar, toNode.Labels)}
			}
		}
		sc.bind(toNode.Variable)
		sc.bind(edge.Variable)
		fromVar = toVar
	}

	if _, ok := input.(*SingleRow); ok {
		return patPlan, nil
	}
	kind := JoinInner
	if m.Optional {
		kind = JoinLeftOuter
	}
	return &Join{Left: input, Right: patPlan, Kind: kind}, nil
}

// labelsPredicate builds `var:Label1 AND var:Label2 ...`-equivalent as a
// synthetic function-call predicate the executor recognizes, since
// ast.Expression has no direct "has label" node — following the
// teacher's own approach of routing auxiliary predicates through its
// function table (pkg/cypher/functions.go) instead of growing the
// grammar.
func labelsPredicate(varName string, labels []string) ast.Expression {
	args := []ast.Expression{&ast.Variable{Name: varName}}
	for _, l := range labels {
		args = append(args, &ast.Literal{Kind: ast.LitString, Str: l})
	}
	return &ast.FunctionCall{Name: "HAS_LABELS", Args: args}
}

func varOrAnon(n ast.NodePatternElem) string {
	if n.Variable != "" {
		return n.Variable
	}
	return fmt.Sprintf("__anon_%d_%d", n.Location.Line, n.Location.Offset)
}

// validatePattern enforces spec.md §9's resolved anonymous-endpoint rule:
// an anonymous node with no labels/properties is only valid when the
// pattern has at least one edge, i.e. it sits at an edge endpoint
// (meaning some other part of the pattern gives it context); an
// anonymous node with labels/properties is always fine (content-hashed
// fresh); a pattern consisting of nothing but a contentless anonymous
// node is rejected.
func validatePattern(pat ast.PathPattern, sc scope) error {
	for i, n := range pat.Nodes {
		if !n.Anonymous {
			continue
		}
		hasContent := len(n.Labels) > 0 || len(n.Properties) > 0
		isEndpoint := len(pat.Edges) > 0 && (i > 0 || i < len(pat.Nodes)-1)
		if !hasContent && !isEndpoint {
			return &BuildError{
				Message:  "an anonymous node with no labels or properties must appear as an edge endpoint",
				Location: n.Location,
			}
		}
	}
	return nil
}

func applyWhere(input Plan, w *ast.WhereClause, sc scope) (Plan, error) {
	if sub, probe, kind, ok := topLevelSubquery(w.Expression); ok {
		alias := "__exists"
		inner, err := buildInner(sub, sc)
		if err != nil {
			return nil, err
		}
		eval := &SubqueryEval{Input: input, Inner: inner, Kind: kind, Probe: probe, Alias: alias}
		return &Filter{Input: eval, Predicate: &ast.Variable{Name: alias}}, nil
	}
	return &Filter{Input: input, Predicate: w.Expression}, nil
}

// topLevelSubquery recognizes the shapes `EXISTS {...}`, `NOT EXISTS {...}`,
// `expr IN {...}`, and `expr NOT IN {...}` standing alone as a WHERE
// clause's entire predicate, which covers spec.md §8's subquery
// scenarios. Subqueries nested inside a larger boolean expression (e.g.
// `a.x > 1 AND EXISTS {...}`) are left embedded in the Filter predicate
// and evaluated directly by pkg/exec's correlated subquery support,
// rather than forcing every combination through SubqueryEval here.
func topLevelSubquery(e ast.Expression) (*ast.ClauseStatement, ast.Expression, SubqueryKind, bool) {
	switch ex := e.(type) {
	case *ast.SubqueryExpr:
		return ex.Query, ex.Probe, map[ast.SubqueryKind]SubqueryKind{
			ast.SubqueryExists:    SubqueryExists,
			ast.SubqueryNotExists: SubqueryNotExists,
			ast.SubqueryIn:        SubqueryIn,
			ast.SubqueryNotIn:     SubqueryNotIn,
			ast.SubqueryScalar:    SubqueryScalar,
		}[ex.Kind], true
	}
	return nil, nil, 0, false
}

// buildInner builds a subquery body with the outer scope's variables
// pre-bound; a build error in the body (an unsupported clause, or a
// pattern validatePattern rejects) is returned to the caller.
func buildInner(stmt *ast.ClauseStatement, outer scope) (Plan, error) {
	inner := make(scope, len(outer))
	for v := range outer {
		inner.bind(v)
	}
	return buildClausesFrom(stmt, inner)
}

func applyWith(input Plan, w *ast.WithClause, sc scope) (Plan, error) {
	items := make([]ProjectItem, len(w.Items))
	for i, it := range w.Items {
		items[i] = ProjectItem{Expr: it.Expression, Alias: projectionAlias(it)}
	}
	var plan Plan = lowerProjection(input, items, w.Distinct)
	if w.Where != nil {
		var err error
		// WITH's WHERE filters the just-projected columns, so its subquery
		// (if any) should only see those aliases as correlated, not the
		// variables WITH is about to drop — but sc hasn't been re-scoped
		// yet at this point, so build the alias set explicitly instead.
		aliasScope := scope{}
		for _, it := range items {
			aliasScope.bind(it.Alias)
		}
		plan, err = applyWhere(plan, w.Where, aliasScope)
		if err != nil {
			return nil, err
		}
	}
	if len(w.OrderBy) > 0 {
		plan = &Sort{Input: plan, Keys: sortKeys(w.OrderBy)}
	}
	if w.Skip != nil || w.Limit != nil {
		plan = &Limit{Input: plan, Skip: w.Skip, Count: w.Limit}
	}
	// WITH re-scopes: only the projected aliases remain bound downstream.
	for k := range sc {
		delete(sc, k)
	}
	for _, it := range items {
		sc.bind(it.Alias)
	}
	return &WithQuery{Input: plan}, nil
}

func applyReturn(input Plan, r *ast.ReturnClause) (Plan, error) {
	items := make([]ProjectItem, len(r.Items))
	for i, it := range r.Items {
		items[i] = ProjectItem{Expr: it.Expression, Alias: projectionAlias(it)}
	}
	var plan Plan = lowerProjection(input, items, r.Distinct)
	if len(r.OrderBy) > 0 {
		plan = &Sort{Input: plan, Keys: sortKeys(r.OrderBy)}
	}
	if r.Skip != nil || r.Limit != nil {
		plan = &Limit{Input: plan, Skip: r.Skip, Count: r.Limit}
	}
	return plan, nil
}

func projectionAlias(it ast.ProjectionItem) string {
	if it.Alias != "" {
		return it.Alias
	}
	if v, ok := it.Expression.(*ast.Variable); ok {
		return v.Name
	}
	if pa, ok := it.Expression.(*ast.PropertyAccess); ok {
		return pa.Property
	}
	return ""
}

// aggregateFunctionNames is spec.md §4.5's aggregate function vocabulary;
// pkg/exec's evalAggregateFunc (aggregate.go) is the only place that
// actually evaluates them, so this set has to track that one exactly.
var aggregateFunctionNames = map[string]struct{}{
	"COUNT": {}, "SUM": {}, "AVG": {}, "MIN": {}, "MAX": {}, "COLLECT": {},
}

func isAggregateCall(e ast.Expression) (*ast.FunctionCall, bool) {
	call, ok := e.(*ast.FunctionCall)
	if !ok {
		return nil, false
	}
	_, isAgg := aggregateFunctionNames[strings.ToUpper(call.Name)]
	return call, isAgg
}

// groupKeyAlias mirrors pkg/exec's own unexported groupAlias
// (aggregate.go): a bare variable or property access names its output
// column after itself; anything else falls back to a positional label.
func groupKeyAlias(e ast.Expression, i int) string {
	if v, ok := e.(*ast.Variable); ok {
		return v.Name
	}
	if p, ok := e.(*ast.PropertyAccess); ok {
		return p.Property
	}
	return "group_" + strconv.Itoa(i)
}

// unwrapAggregate finds the Aggregate node a plan is built on, looking
// through a Having in between (HAVING filters the already-grouped rows,
// it doesn't introduce a new grouping of its own).
func unwrapAggregate(p Plan) (*Aggregate, bool) {
	switch n := p.(type) {
	case *Aggregate:
		return n, true
	case *Having:
		return unwrapAggregate(n.Input)
	}
	return nil, false
}

// lowerProjection builds the Project (and, when needed, the Aggregate
// beneath it) for one RETURN/WITH clause's items, per spec.md §4.5 rule 4:
// a projection containing an aggregate function call implicitly groups by
// its other, non-aggregate columns. When input already carries an
// Aggregate from a preceding GROUP BY clause (whose Aggregates field is
// still unpopulated at that point), this fills it in from items instead
// of stacking a redundant second Aggregate.
func lowerProjection(input Plan, items []ProjectItem, distinct bool) Plan {
	agg, alreadyGrouped := unwrapAggregate(input)

	hasAggCall := false
	for _, it := range items {
		if _, ok := isAggregateCall(it.Expr); ok {
			hasAggCall = true
			break
		}
	}
	if !hasAggCall && !alreadyGrouped {
		return &Project{Input: input, Items: items, Distinct: distinct}
	}

	finalItems := make([]ProjectItem, len(items))
	var groupBy []ast.Expression
	var aggItems []AggregateItem
	for i, it := range items {
		if call, ok := isAggregateCall(it.Expr); ok {
			alias := fmt.Sprintf("__agg_%d", len(aggItems))
			aggItems = append(aggItems, AggregateItem{Expr: call, Alias: alias})
			finalItems[i] = ProjectItem{Expr: &ast.Variable{Name: alias}, Alias: it.Alias}
			continue
		}
		var keyName string
		if alreadyGrouped {
			keyName = groupKeyAlias(it.Expr, 0)
		} else {
			keyName = groupKeyAlias(it.Expr, len(groupBy))
			groupBy = append(groupBy, it.Expr)
		}
		finalItems[i] = ProjectItem{Expr: &ast.Variable{Name: keyName}, Alias: it.Alias}
	}

	var aggregatePlan Plan
	if alreadyGrouped {
		agg.Aggregates = aggItems
		aggregatePlan = input
	} else {
		aggregatePlan = &Aggregate{Input: input, GroupBy: groupBy, Aggregates: aggItems}
	}
	return &Project{Input: aggregatePlan, Items: finalItems, Distinct: distinct}
}

func sortKeys(items []ast.OrderItem) []SortKey {
	keys := make([]SortKey, len(items))
	for i, it := range items {
		keys[i] = SortKey{Expr: it.Expression, Descending: it.Descending}
	}
	return keys
}
