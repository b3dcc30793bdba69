// Package physicalplan turns a pkg/logicalplan tree into a tree of
// concrete physical operators, each carrying a cost estimate, mirroring
// the teacher's own plan/estimate split in pkg/cypher (its executor
// picks between a couple of traversal strategies based on cached
// cardinality hints rather than true cost-based optimization — this
// package makes that choice explicit and inspectable).
package physicalplan

import (
	"github.com/vertexql/vertexql/pkg/ast"
	"github.com/vertexql/vertexql/pkg/logicalplan"
)

// Plan is the physical operator sum type pkg/exec walks.
type Plan interface {
	planNode()
	Children() []Plan
	EstimatedRows() float64
	EstimatedCost() float64
}

type estimate struct {
	Rows float64
	Cost float64
}

func (e estimate) planNode()              {}
func (e estimate) EstimatedRows() float64 { return e.Rows }
func (e estimate) EstimatedCost() float64 { return e.Cost }

type SingleRowScan struct{ estimate }

func (s *SingleRowScan) Children() []Plan { return nil }

// NodeSeqScan walks every node in the graph, filtering by label in the
// scan loop itself rather than via a separate Filter operator.
type NodeSeqScan struct {
	estimate
	BindVar string
	Labels  []string
}

func (s *NodeSeqScan) Children() []Plan { return nil }

// NodeIndexScan serves a NodeScan whose labels are covered by a label
// index (pkg/graph's byLabel map), chosen by the planner instead of
// NodeSeqScan whenever labels are present, since a label-indexed lookup
// is strictly cheaper than a full scan.
type NodeIndexScan struct {
	estimate
	BindVar string
	Labels  []string
}

func (s *NodeIndexScan) Children() []Plan { return nil }

// IndexedExpand walks the graph's outgoing/incoming adjacency index for
// each input row rather than scanning all edges. The planner lowers
// every logical Expand to IndexedExpand; there is no edge-scan operator.
type IndexedExpand struct {
	estimate
	Input     Plan
	FromVar   string
	ToVar     string
	EdgeVar   string
	Labels    []string
	Direction ast.Direction
	MinHops   int
	MaxHops   int
}

func (e *IndexedExpand) Children() []Plan { return []Plan{e.Input} }

type FilterExec struct {
	estimate
	Input     Plan
	Predicate ast.Expression
}

func (f *FilterExec) Children() []Plan { return []Plan{f.Input} }

type ProjectExec struct {
	estimate
	Input    Plan
	Items    []logicalplan.ProjectItem
	Distinct bool
}

func (p *ProjectExec) Children() []Plan { return []Plan{p.Input} }

// HashAggregate groups rows via an in-memory hash table keyed by the
// GroupBy tuple; chosen for every Aggregate, with or without GroupBy (no sort-merge
// aggregate strategy is implemented, matching the teacher's own
// single-strategy aggregation in pkg/cypher).
type HashAggregate struct {
	estimate
	Input      Plan
	GroupBy    []ast.Expression
	Aggregates []logicalplan.AggregateItem
}

func (a *HashAggregate) Children() []Plan { return []Plan{a.Input} }

type HavingExec struct {
	estimate
	Input     Plan
	Predicate ast.Expression
}

func (h *HavingExec) Children() []Plan { return []Plan{h.Input} }

// InMemorySort sorts the fully materialized input; ExternalSort is
// defined for API completeness (spec.md's physical operator list names
// it) but this planner never selects it since an embedded single-process
// engine has no spill-to-disk requirement at the scales spec.md targets.
type InMemorySort struct {
	estimate
	Input Plan
	Keys  []logicalplan.SortKey
}

func (s *InMemorySort) Children() []Plan { return []Plan{s.Input} }

type ExternalSort struct {
	estimate
	Input Plan
	Keys  []logicalplan.SortKey
}

func (s *ExternalSort) Children() []Plan { return []Plan{s.Input} }

type LimitExec struct {
	estimate
	Input Plan
	Skip  ast.Expression
	Count ast.Expression
}

func (l *LimitExec) Children() []Plan { return []Plan{l.Input} }

type DistinctExec struct {
	estimate
	Input Plan
}

func (d *DistinctExec) Children() []Plan { return []Plan{d.Input} }

type UnwindExec struct {
	estimate
	Input Plan
	Expr  ast.Expression
	As    string
}

func (u *UnwindExec) Children() []Plan { return []Plan{u.Input} }

// HashJoin is chosen for a non-cross join whose Condition is an `=`
// comparison; pkg/exec evaluates it with the same nested loop as
// NestedLoopJoin, without building a hash table. NestedLoopJoin backs
// JoinCross and every join with a nil or non-equality condition.
// SortMergeJoin is defined for completeness but unused by the planner
// for the same reason ExternalSort is unused.
type JoinStrategy int

const (
	StrategyHash JoinStrategy = iota
	StrategyNestedLoop
	StrategySortMerge
)

type HashJoin struct {
	estimate
	Left, Right Plan
	Kind        logicalplan.JoinKind
	Condition   ast.Expression
}

func (j *HashJoin) Children() []Plan { return []Plan{j.Left, j.Right} }

type NestedLoopJoin struct {
	estimate
	Left, Right Plan
	Kind        logicalplan.JoinKind
	Condition   ast.Expression
}

func (j *NestedLoopJoin) Children() []Plan { return []Plan{j.Left, j.Right} }

type SortMergeJoin struct {
	estimate
	Left, Right Plan
	Kind        logicalplan.JoinKind
	Condition   ast.Expression
}

func (j *SortMergeJoin) Children() []Plan { return []Plan{j.Left, j.Right} }

type UnionAllExec struct {
	estimate
	Left, Right Plan
}

func (u *UnionAllExec) Children() []Plan { return []Plan{u.Left, u.Right} }

// SetOpExec backs UNION (dedup), INTERSECT, and EXCEPT — every set
// operator other than UNION ALL, which UnionAllExec serves directly
// since it needs no dedup bookkeeping.
type SetOpExec struct {
	estimate
	Left, Right Plan
	Kind        logicalplan.SetOpKind
}

func (s *SetOpExec) Children() []Plan { return []Plan{s.Left, s.Right} }

// GraphIndexScan fuses a Filter over a text predicate (tagged INDEXED_*
// by the logical optimizer) with the node scan beneath it. pkg/exec
// still evaluates Predicate once per node carrying Labels; it does not
// probe pkg/textindex. IndexName holds the tagged function name.
type GraphIndexScan struct {
	estimate
	BindVar   string
	Labels    []string // carried over from the NodeScan/NodeIndexScan this replaced
	IndexName string
	Predicate ast.Expression
}

func (g *GraphIndexScan) Children() []Plan { return nil }

// IndexJoin describes probing a text or label index once per outer row
// instead of materializing Right fully. The planner does not produce it
// and pkg/exec has no case for it.
type IndexJoin struct {
	estimate
	Left, Right Plan
	Condition   ast.Expression
}

func (j *IndexJoin) Children() []Plan { return []Plan{j.Left, j.Right} }

// GenericFunction wraps a FunctionCall-valued expression standing alone
// as a row source, used for table-valued built-ins like SHOW TEXT
// INDEXES once lowered out of DDL handling in pkg/coordinator.
type GenericFunction struct {
	estimate
	Call ast.Expression
}

func (g *GenericFunction) Children() []Plan { return nil }

// ---- Write operators ----

type InsertExec struct {
	estimate
	Input    Plan
	Patterns []ast.PathPattern
}

func (i *InsertExec) Children() []Plan { return []Plan{i.Input} }

type SetPropertiesExec struct {
	estimate
	Input Plan
	Items []ast.SetItem
}

func (s *SetPropertiesExec) Children() []Plan { return []Plan{s.Input} }

type RemovePropertiesExec struct {
	estimate
	Input Plan
	Items []ast.RemoveItem
}

func (r *RemovePropertiesExec) Children() []Plan { return []Plan{r.Input} }

type DeleteExec struct {
	estimate
	Input     Plan
	Variables []string
	Detach    bool
}

func (d *DeleteExec) Children() []Plan { return []Plan{d.Input} }

// SubqueryEvalExec evaluates Inner correlated to each Input row.
type SubqueryEvalExec struct {
	estimate
	Input Plan
	Inner Plan
	Kind  logicalplan.SubqueryKind
	Probe ast.Expression
	Alias string
}

func (s *SubqueryEvalExec) Children() []Plan { return []Plan{s.Input, s.Inner} }

// WithBoundaryExec materializes Input once; pkg/exec treats it as an
// explicit pipeline breaker so downstream operators never observe
// partially-produced WITH output.
type WithBoundaryExec struct {
	estimate
	Input Plan
}

func (w *WithBoundaryExec) Children() []Plan { return []Plan{w.Input} }
