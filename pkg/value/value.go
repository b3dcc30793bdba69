// Package value implements the polymorphic Value type shared by the graph
// cache, the expression evaluator and the storage codec.
//
// Value is a tagged union rather than an interface-per-variant hierarchy:
// every consumer (equality, ordering, hashing, size accounting,
// serialization) switches on Kind and must handle every variant
// exhaustively. This mirrors the teacher's Node.Properties
// (map[string]any) but makes the variant set closed and explicit instead of
// leaning on Go's `any`, which the query layer needs for well-defined
// ordering and hashing semantics that `any` cannot give us.
package value

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Kind tags a Value's active variant.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindDateTime
	KindWindow
	KindVector
	KindList
	KindArray
	KindNode
	KindEdge
	KindPath
)

// TZKind distinguishes the three datetime flavors spec.md §3 requires.
type TZKind uint8

const (
	TZUTC TZKind = iota
	TZFixedOffset
	TZNamed
)

// DateTime carries enough to round-trip UTC, fixed-offset and named-zone
// timestamps without losing the caller's intended zone.
type DateTime struct {
	T      time.Time
	Kind   TZKind
	Offset int    // seconds east of UTC, meaningful when Kind == TZFixedOffset
	Name   string // IANA zone name, meaningful when Kind == TZNamed
}

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// NodeRef and EdgeRef are the lightweight graph-entity payloads a Value
// carries. The full Node/Edge records (labels, adjacency) live in
// pkg/graph; Value only needs enough to project and compare.
type NodeRef struct {
	ID         string
	Labels     []string
	Properties map[string]Value
}

type EdgeRef struct {
	ID         string
	From       string
	To         string
	Label      string
	Properties map[string]Value
}

// Path alternates NodeRef/EdgeRef the way spec.md's Path pattern does.
type Path struct {
	Nodes []NodeRef
	Edges []EdgeRef // len(Edges) == len(Nodes)-1
}

// Value is the tagged union. Only the field matching Kind is meaningful.
type Value struct {
	Kind Kind

	Str   string
	Num   float64
	Bool  bool
	DT    DateTime
	Win   Window
	Vec   []float32
	List  []Value
	Arr   []Value
	Node  NodeRef
	Edge  EdgeRef
	Pth   Path
}

func Null() Value                { return Value{Kind: KindNull} }
func String(s string) Value      { return Value{Kind: KindString, Str: s} }
func Number(n float64) Value     { return Value{Kind: KindNumber, Num: n} }
func Bool(b bool) Value          { return Value{Kind: KindBool, Bool: b} }
func DateTimeVal(d DateTime) Value { return Value{Kind: KindDateTime, DT: d} }
func WindowVal(w Window) Value   { return Value{Kind: KindWindow, Win: w} }
func Vector(v []float32) Value   { return Value{Kind: KindVector, Vec: v} }
func List(items []Value) Value   { return Value{Kind: KindList, List: items} }
func Array(items []Value) Value  { return Value{Kind: KindArray, Arr: items} }
func NodeVal(n NodeRef) Value    { return Value{Kind: KindNode, Node: n} }
func EdgeVal(e EdgeRef) Value    { return Value{Kind: KindEdge, Edge: e} }
func PathVal(p Path) Value       { return Value{Kind: KindPath, Pth: p} }

func (v Value) IsNull() bool { return v.Kind == KindNull }

// Truthy implements spec.md §4.6's boolean-context coercion: non-boolean
// values are falsy rather than raising.
func (v Value) Truthy() bool {
	return v.Kind == KindBool && v.Bool
}

const floatEpsilon = 1e-9

// Equal implements spec.md §3's tolerant-float, NaN-unequal equality.
// Every Kind must be handled here; the default case is a deliberate panic
// surface during development, not a runtime fallback — new variants must
// update every exhaustive switch in this file together.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindString:
		return v.Str == o.Str
	case KindNumber:
		if math.IsNaN(v.Num) || math.IsNaN(o.Num) {
			return false
		}
		return math.Abs(v.Num-o.Num) <= floatEpsilon*math.Max(1, math.Max(math.Abs(v.Num), math.Abs(o.Num)))
	case KindBool:
		return v.Bool == o.Bool
	case KindDateTime:
		return v.DT.T.Equal(o.DT.T)
	case KindWindow:
		return v.Win.Start.Equal(o.Win.Start) && v.Win.End.Equal(o.Win.End)
	case KindVector:
		return equalFloat32Slice(v.Vec, o.Vec)
	case KindList:
		return equalValueSlice(v.List, o.List)
	case KindArray:
		return equalValueSlice(v.Arr, o.Arr)
	case KindNode:
		return v.Node.ID == o.Node.ID
	case KindEdge:
		return v.Edge.ID == o.Edge.ID
	case KindPath:
		return pathEqual(v.Pth, o.Pth)
	default:
		panic(fmt.Sprintf("value: unhandled kind %d in Equal", v.Kind))
	}
}

func equalFloat32Slice(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalValueSlice(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func pathEqual(a, b Path) bool {
	if len(a.Nodes) != len(b.Nodes) || len(a.Edges) != len(b.Edges) {
		return false
	}
	for i := range a.Nodes {
		if a.Nodes[i].ID != b.Nodes[i].ID {
			return false
		}
	}
	for i := range a.Edges {
		if a.Edges[i].ID != b.Edges[i].ID {
			return false
		}
	}
	return true
}

// rank orders Kinds for cross-type comparisons: null sorts before
// everything else, per spec.md §4.6; the remaining order only matters for
// Sort's total-order requirement across mixed-type columns.
func (k Kind) rank() int {
	if k == KindNull {
		return -1
	}
	return int(k)
}

// Less implements the total order Sort (§4.6) needs: numbers numeric,
// strings lexicographic, booleans ordered (false < true), null less than
// non-null, and otherwise falls back to Kind rank so the order is total
// even across incomparable types.
func (v Value) Less(o Value) bool {
	if v.Kind != o.Kind {
		return v.Kind.rank() < o.Kind.rank()
	}
	switch v.Kind {
	case KindNull:
		return false
	case KindString:
		return v.Str < o.Str
	case KindNumber:
		return v.Num < o.Num
	case KindBool:
		return !v.Bool && o.Bool
	case KindDateTime:
		return v.DT.T.Before(o.DT.T)
	default:
		return false
	}
}

// Compare returns -1/0/1, the three-way form Sort's key comparator uses.
func (v Value) Compare(o Value) int {
	if v.Equal(o) {
		return 0
	}
	if v.Less(o) {
		return -1
	}
	return 1
}

func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindString:
		return v.Str
	case KindNumber:
		return fmt.Sprintf("%g", v.Num)
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindDateTime:
		return v.DT.T.Format(time.RFC3339Nano)
	case KindNode:
		return "(" + v.Node.ID + ")"
	case KindEdge:
		return "[" + v.Edge.ID + "]"
	default:
		return fmt.Sprintf("<%T>", v)
	}
}

// AsString coerces string/number/boolean values to a string the way
// auto-indexing (spec.md §4.3) does when handing a property to the text
// index; it returns ok=false for kinds that must be skipped rather than
// stringified.
func (v Value) AsString() (string, bool) {
	switch v.Kind {
	case KindString:
		return v.Str, true
	case KindNumber:
		return fmt.Sprintf("%g", v.Num), true
	case KindBool:
		return fmt.Sprintf("%t", v.Bool), true
	default:
		return "", false
	}
}

// SortedPropertyKeys returns property names in deterministic order, used by
// both content hashing and canonical serialization.
func SortedPropertyKeys(props map[string]Value) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
