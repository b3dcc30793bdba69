package physicalplan

import (
	"testing"

	"github.com/vertexql/vertexql/pkg/logicalplan"
	"github.com/vertexql/vertexql/pkg/parser"
)

func TestPlanChoosesIndexScanForLabeledNodeScan(t *testing.T) {
	stmt, err := parser.Parse(`MATCH (p:Person) RETURN p`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	lp, err := logicalplan.Build(stmt)
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	pp := Plan(logicalplan.Optimize(lp), GraphStats{NodeCount: 1000})
	proj, ok := pp.(*ProjectExec)
	if !ok {
		t.Fatalf("expected ProjectExec, got %T", pp)
	}
	if _, ok := proj.Input.(*NodeIndexScan); !ok {
		t.Fatalf("expected NodeIndexScan for a labeled scan, got %T", proj.Input)
	}
}

func TestPlanChoosesNestedLoopJoinForNilCondition(t *testing.T) {
	left := &logicalplan.NodeScan{BindVar: "a", Labels: []string{"X"}}
	right := &logicalplan.NodeScan{BindVar: "b", Labels: []string{"Y"}}
	join := &logicalplan.Join{Left: left, Right: right, Kind: logicalplan.JoinInner, Condition: nil}
	pp := Plan(join, GraphStats{NodeCount: 100})
	if _, ok := pp.(*NestedLoopJoin); !ok {
		t.Fatalf("expected NestedLoopJoin with a nil condition, got %T", pp)
	}
}

func TestPlanEstimatesAreNonNegative(t *testing.T) {
	stmt, err := parser.Parse(`MATCH (a:X)-[:R]->(b:Y) RETURN a, b ORDER BY a`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	lp, err := logicalplan.Build(stmt)
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	pp := Plan(lp, GraphStats{NodeCount: 50, AvgOutDegree: 3})
	var walk func(p Plan)
	walk = func(p Plan) {
		if p.EstimatedRows() < 0 || p.EstimatedCost() < 0 {
			t.Fatalf("negative estimate in %T", p)
		}
		for _, c := range p.Children() {
			walk(c)
		}
	}
	walk(pp)
}
