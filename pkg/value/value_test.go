package value

import "testing"

func TestEqualToleratesFloatEpsilon(t *testing.T) {
	a := Number(1.0000000001)
	b := Number(1.0000000002)
	if !a.Equal(b) {
		t.Fatalf("expected tolerant equality, got not equal")
	}
}

func TestEqualNaNNeverEqual(t *testing.T) {
	nan := Number(nan())
	if nan.Equal(nan) {
		t.Fatalf("NaN must never equal itself")
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestNullLessThanEverything(t *testing.T) {
	if !Null().Less(Number(-1e9)) {
		t.Fatalf("null must sort before all non-null values")
	}
}

func TestContentHashDeterministic(t *testing.T) {
	props := map[string]Value{"name": String("Alice"), "age": Number(30)}
	h1 := ContentHashNode([]string{"Person"}, props)
	h2 := ContentHashNode([]string{"Person"}, props)
	if h1 != h2 {
		t.Fatalf("content hash must be deterministic")
	}
}

func TestContentHashLabelOrderIrrelevant(t *testing.T) {
	props := map[string]Value{"k": Number(1)}
	h1 := ContentHashNode([]string{"A", "B"}, props)
	h2 := ContentHashNode([]string{"B", "A"}, props)
	if h1 != h2 {
		t.Fatalf("label order must not affect content hash")
	}
}

func TestContentHashEdgeDistinguishesEndpoints(t *testing.T) {
	h1 := ContentHashEdge("a", "b", "R", nil)
	h2 := ContentHashEdge("b", "a", "R", nil)
	if h1 == h2 {
		t.Fatalf("swapped endpoints must hash differently")
	}
}
