package logicalplan

import (
	"testing"

	"github.com/vertexql/vertexql/pkg/parser"
)

func buildFrom(t *testing.T, src string) Plan {
	t.Helper()
	stmt, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	plan, err := Build(stmt)
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	return plan
}

func TestBuildSimpleMatchReturn(t *testing.T) {
	plan := buildFrom(t, `MATCH (p:Person) WHERE p.age > 25 RETURN p.name ORDER BY p.name`)
	sort, ok := plan.(*Sort)
	if !ok {
		t.Fatalf("expected top-level Sort, got %T", plan)
	}
	proj, ok := sort.Input.(*Project)
	if !ok {
		t.Fatalf("expected Project under Sort, got %T", sort.Input)
	}
	filter, ok := proj.Input.(*Filter)
	if !ok {
		t.Fatalf("expected Filter under Project, got %T", proj.Input)
	}
	scan, ok := filter.Input.(*NodeScan)
	if !ok || scan.BindVar != "p" || scan.Labels[0] != "Person" {
		t.Fatalf("expected NodeScan(p:Person), got %+v", filter.Input)
	}
}

func TestBuildEdgeExpand(t *testing.T) {
	plan := buildFrom(t, `MATCH (a:X)-[:R]->(b:Y) RETURN a, b`)
	proj := plan.(*Project)
	filter, ok := proj.Input.(*Filter)
	if !ok {
		t.Fatalf("expected label filter for Y, got %T", proj.Input)
	}
	expand, ok := filter.Input.(*Expand)
	if !ok {
		t.Fatalf("expected Expand, got %T", filter.Input)
	}
	if expand.FromVar != "a" || expand.ToVar != "b" {
		t.Fatalf("unexpected expand endpoints: %+v", expand)
	}
	if _, ok := expand.Input.(*NodeScan); !ok {
		t.Fatalf("expected NodeScan feeding Expand, got %T", expand.Input)
	}
}

func TestBuildRejectsContentlessAnonymousRoot(t *testing.T) {
	stmt, err := parser.Parse(`MATCH () RETURN 1`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	_, err = Build(stmt)
	if err == nil {
		t.Fatalf("expected a BuildError rejecting a contentless anonymous root node")
	}
	if _, ok := err.(*BuildError); !ok {
		t.Fatalf("expected *BuildError, got %T", err)
	}
}

func TestBuildUnionAll(t *testing.T) {
	stmt, err := parser.Parse(`MATCH (a:X) RETURN a.k UNION ALL MATCH (b:Y) RETURN b.k`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	plan, err := Build(stmt)
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	setOp, ok := plan.(*SetOp)
	if !ok || setOp.Kind != SetOpUnionAll {
		t.Fatalf("expected SetOpUnionAll, got %+v", plan)
	}
}

func TestOptimizeHandlesWithWithoutFilter(t *testing.T) {
	stmt, err := parser.Parse(`MATCH (a:X) WITH a RETURN a.k`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	plan, err := Build(stmt)
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	_ = Optimize(plan) // must not panic on a plan with no filter to push
}

func TestBuildExistsSubqueryFilter(t *testing.T) {
	plan := buildFrom(t, `MATCH (a:Person) WHERE EXISTS { MATCH (a)-[:KNOWS]->(b:Person) } RETURN a`)
	proj := plan.(*Project)
	filter, ok := proj.Input.(*Filter)
	if !ok {
		t.Fatalf("expected Filter, got %T", proj.Input)
	}
	if _, ok := filter.Input.(*SubqueryEval); !ok {
		t.Fatalf("expected SubqueryEval feeding the exists-filter, got %T", filter.Input)
	}
}
