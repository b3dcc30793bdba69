// Package logicalplan builds and rewrites the logical operator tree
// spec.md §4.5 describes from a parsed ast.Statement, before the
// physical planner (pkg/physicalplan) picks concrete execution
// strategies for each node.
//
// Grounded on the teacher's pkg/cypher/executor.go, whose Execute walks
// a tree of handler functions keyed by ASTClauseType in source order;
// generalized here into an explicit, inspectable operator tree so the
// optimizer (optimize.go) has something concrete to rewrite rather than
// interpreting clauses procedurally as the teacher does.
package logicalplan

import "github.com/vertexql/vertexql/pkg/ast"

// Plan is the logical operator sum type every node in the tree implements.
type Plan interface {
	planNode()
	Children() []Plan
}

type base struct{}

func (base) planNode() {}

// SingleRow produces exactly one empty binding row; it is the base of a
// plan built from a statement with no MATCH/UNWIND (e.g. a bare
// `RETURN 1+1`), mirroring the teacher's handling of MATCH-less RETURN.
type SingleRow struct{ base }

func (s *SingleRow) Children() []Plan { return nil }

// NodeScan introduces bindVar bound to every node carrying every label
// in Labels (or every node if Labels is empty).
type NodeScan struct {
	base
	BindVar string
	Labels  []string
}

func (s *NodeScan) Children() []Plan { return nil }

// Expand walks edges from FromVar to ToVar, optionally binding the edge
// itself to EdgeVar, constrained by Labels and Direction, over a single
// hop (MinHops==MaxHops==1) or a bounded/unbounded variable-length range.
type Expand struct {
	base
	Input    Plan
	FromVar  string
	ToVar    string
	EdgeVar  string // "" if the edge isn't bound to a variable
	Labels   []string
	Direction ast.Direction
	MinHops  int
	MaxHops  int // 0 means unbounded
}

func (e *Expand) Children() []Plan { return []Plan{e.Input} }

// Filter drops rows for which Predicate doesn't evaluate truthy.
type Filter struct {
	base
	Input     Plan
	Predicate ast.Expression
}

func (f *Filter) Children() []Plan { return []Plan{f.Input} }

// ProjectItem is one projected expression plus its output column name.
type ProjectItem struct {
	Expr  ast.Expression
	Alias string
}

// Project evaluates Items against each input row, producing new rows
// whose columns are exactly Items in order; if Distinct, duplicate
// output rows (by value equality) are suppressed.
type Project struct {
	base
	Input    Plan
	Items    []ProjectItem
	Distinct bool
}

func (p *Project) Children() []Plan { return []Plan{p.Input} }

// Aggregate groups rows by GroupBy and evaluates Aggregates per group;
// a nil/empty GroupBy is the "aggregate over the whole input" case.
type AggregateItem struct {
	Expr  ast.Expression // the aggregate function call, e.g. COUNT(x)
	Alias string
}

type Aggregate struct {
	base
	Input      Plan
	GroupBy    []ast.Expression
	Aggregates []AggregateItem
}

func (a *Aggregate) Children() []Plan { return []Plan{a.Input} }

// Having filters aggregated rows by Predicate, evaluated after Aggregate.
type Having struct {
	base
	Input     Plan
	Predicate ast.Expression
}

func (h *Having) Children() []Plan { return []Plan{h.Input} }

type SortKey struct {
	Expr       ast.Expression
	Descending bool
}

type Sort struct {
	base
	Input Plan
	Keys  []SortKey
}

func (s *Sort) Children() []Plan { return []Plan{s.Input} }

// Limit applies Skip then Limit; either may be nil meaning "none".
type Limit struct {
	base
	Input Plan
	Skip  ast.Expression
	Count ast.Expression
}

func (l *Limit) Children() []Plan { return []Plan{l.Input} }

// Distinct suppresses duplicate full rows without a preceding Project.
type Distinct struct {
	base
	Input Plan
}

func (d *Distinct) Children() []Plan { return []Plan{d.Input} }

// Unwind flattens a list-valued expression into one row per element,
// binding each element to As.
type Unwind struct {
	base
	Input Plan
	Expr  ast.Expression
	As    string
}

func (u *Unwind) Children() []Plan { return []Plan{u.Input} }

// JoinKind distinguishes the four join strategies spec.md's MATCH-chain
// and subquery lowering need.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeftSemi  // EXISTS-style: keep left row if any right match
	JoinLeftAnti  // NOT EXISTS-style: keep left row if no right match
	JoinCross
	JoinLeftOuter // OPTIONAL MATCH: keep every left row, nulls when unmatched
)

type Join struct {
	base
	Left, Right Plan
	Kind        JoinKind
	Condition   ast.Expression // nil for JoinCross
}

func (j *Join) Children() []Plan { return []Plan{j.Left, j.Right} }

// SetOp implements UNION/UNION ALL/INTERSECT/EXCEPT over two plans with
// matching output shape.
type SetOpKind int

const (
	SetOpUnion SetOpKind = iota
	SetOpUnionAll
	SetOpIntersect
	SetOpExcept
)

type SetOp struct {
	base
	Left, Right Plan
	Kind        SetOpKind
}

func (s *SetOp) Children() []Plan { return []Plan{s.Left, s.Right} }

// WithQuery is a pipeline boundary: Input's rows are fully materialized
// as the bound variable set for the remainder of the plan, matching
// Cypher/GQL's WITH semantics of re-scoping variables.
type WithQuery struct {
	base
	Input Plan
}

func (w *WithQuery) Children() []Plan { return []Plan{w.Input} }

// SubqueryKind mirrors ast.SubqueryKind at the plan level.
type SubqueryKind int

const (
	SubqueryExists SubqueryKind = iota
	SubqueryNotExists
	SubqueryIn
	SubqueryNotIn
	SubqueryScalar
)

// SubqueryEval evaluates Inner per outer row (correlated), producing a
// boolean (Exists/NotExists/In/NotIn) or scalar column appended to the
// row, per spec.md §4.5's four subquery forms.
type SubqueryEval struct {
	base
	Input Plan
	Inner Plan
	Kind  SubqueryKind
	Probe ast.Expression // left-hand side for IN/NOT IN; nil otherwise
	Alias string         // output column name for the boolean/scalar
}

func (s *SubqueryEval) Children() []Plan { return []Plan{s.Input, s.Inner} }

// ---- Write operators ----

// InsertPattern binds and creates the nodes/edges of one path pattern;
// spec.md §4.7's two-pass content-hash dedup happens inside the write
// executor (pkg/write), not at this logical layer.
type InsertPattern struct {
	base
	Input    Plan
	Patterns []ast.PathPattern
}

func (i *InsertPattern) Children() []Plan { return []Plan{i.Input} }

// SetProperties applies SET items per input row.
type SetProperties struct {
	base
	Input Plan
	Items []ast.SetItem
}

func (s *SetProperties) Children() []Plan { return []Plan{s.Input} }

// RemoveProperties applies REMOVE items per input row.
type RemoveProperties struct {
	base
	Input Plan
	Items []ast.RemoveItem
}

func (r *RemoveProperties) Children() []Plan { return []Plan{r.Input} }

// DeleteEntities removes bound nodes/edges per input row.
type DeleteEntities struct {
	base
	Input     Plan
	Variables []string
	Detach    bool
}

func (d *DeleteEntities) Children() []Plan { return []Plan{d.Input} }
