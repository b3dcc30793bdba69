package storage

import "testing"

func TestMemoryTreeGetNotFound(t *testing.T) {
	d := NewMemory()
	tree, _ := d.OpenTree("graph:/default:nodes")
	_, err := tree.Get([]byte("missing"))
	if !IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestMemoryTreePrefixScanOrdered(t *testing.T) {
	d := NewMemory()
	tree, _ := d.OpenTree("index:docs:segments")
	tree.Put([]byte("b"), []byte("2"))
	tree.Put([]byte("a"), []byte("1"))
	tree.Put([]byte("ab"), []byte("1b"))

	var seen []string
	tree.Prefix([]byte("a"), func(k, v []byte) bool {
		seen = append(seen, string(k))
		return true
	})
	if len(seen) != 2 || seen[0] != "a" || seen[1] != "ab" {
		t.Fatalf("expected ordered [a ab], got %v", seen)
	}
}

func TestMemoryTreeBatchAtomicShape(t *testing.T) {
	d := NewMemory()
	tree, _ := d.OpenTree("catalog:users")
	err := tree.Batch([]BatchOp{
		{Key: []byte("u1"), Value: []byte("alice")},
		{Key: []byte("u2"), Value: []byte("bob")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := tree.Get([]byte("u1"))
	if err != nil || string(v) != "alice" {
		t.Fatalf("expected alice, got %q err=%v", v, err)
	}
}

func TestListAndDropTree(t *testing.T) {
	d := NewMemory()
	d.OpenTree("a")
	d.OpenTree("b")
	trees, _ := d.ListTrees()
	if len(trees) != 2 {
		t.Fatalf("expected 2 trees, got %v", trees)
	}
	if err := d.DropTree("a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.DropTree("a"); !IsNotFound(err) {
		t.Fatalf("expected not-found dropping again, got %v", err)
	}
}
