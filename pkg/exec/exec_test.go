package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertexql/vertexql/pkg/graph"
	"github.com/vertexql/vertexql/pkg/logicalplan"
	"github.com/vertexql/vertexql/pkg/parser"
	"github.com/vertexql/vertexql/pkg/physicalplan"
	"github.com/vertexql/vertexql/pkg/textindex"
	"github.com/vertexql/vertexql/pkg/value"
)

func seedGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	alice := graph.NewNode("n1", []string{"Person"}, map[string]value.Value{
		"name": value.String("Alice"), "age": value.Number(30),
	})
	bob := graph.NewNode("n2", []string{"Person"}, map[string]value.Value{
		"name": value.String("Bob"), "age": value.Number(25),
	})
	carol := graph.NewNode("n3", []string{"Person"}, map[string]value.Value{
		"name": value.String("Carol"), "age": value.Number(40),
	})
	require.NoError(t, g.AddNode(alice))
	require.NoError(t, g.AddNode(bob))
	require.NoError(t, g.AddNode(carol))
	require.NoError(t, g.AddEdge(&graph.Edge{ID: "e1", From: "n1", To: "n2", Label: "KNOWS"}))
	require.NoError(t, g.AddEdge(&graph.Edge{ID: "e2", From: "n2", To: "n3", Label: "KNOWS"}))
	return g
}

func runQuery(t *testing.T, g *graph.Graph, query string) []BindingRow {
	t.Helper()
	stmt, err := parser.Parse(query)
	require.NoError(t, err)
	lp, err := logicalplan.Build(stmt)
	require.NoError(t, err)
	pp := physicalplan.Plan(logicalplan.Optimize(lp), physicalplan.GraphStats{NodeCount: 3, AvgOutDegree: 1})
	x := &Executor{Graph: g, Indexes: textindex.NewRegistry()}
	rows, err := x.Run(context.Background(), pp)
	require.NoError(t, err)
	return rows
}

func TestRunSimpleMatchReturnFilter(t *testing.T) {
	g := seedGraph(t)
	rows := runQuery(t, g, `MATCH (p:Person) WHERE p.age > 26 RETURN p.name AS name`)
	var names []string
	for _, r := range rows {
		names = append(names, r["name"].Str)
	}
	assert.ElementsMatch(t, []string{"Alice", "Carol"}, names)
}

func TestRunExpandOneHop(t *testing.T) {
	g := seedGraph(t)
	rows := runQuery(t, g, `MATCH (a:Person)-[:KNOWS]->(b:Person) RETURN a.name AS a, b.name AS b`)
	require.Len(t, rows, 2)
}

func TestRunAggregateCount(t *testing.T) {
	g := seedGraph(t)
	rows := runQuery(t, g, `MATCH (p:Person) RETURN COUNT(p) AS total`)
	require.Len(t, rows, 1)
	assert.Equal(t, float64(3), rows[0]["total"].Num)
}

func TestRunSortAndLimit(t *testing.T) {
	g := seedGraph(t)
	rows := runQuery(t, g, `MATCH (p:Person) RETURN p.name AS name ORDER BY p.age DESC LIMIT 1`)
	require.Len(t, rows, 1)
	assert.Equal(t, "Carol", rows[0]["name"].Str)
}

func TestRunUnwind(t *testing.T) {
	g := seedGraph(t)
	rows := runQuery(t, g, `UNWIND [1, 2, 3] AS x RETURN x AS x`)
	require.Len(t, rows, 3)
}

func TestRunExistsSubquery(t *testing.T) {
	g := seedGraph(t)
	rows := runQuery(t, g, `MATCH (p:Person) WHERE EXISTS { MATCH (p)-[:KNOWS]->(q) } RETURN p.name AS name`)
	var names []string
	for _, r := range rows {
		names = append(names, r["name"].Str)
	}
	assert.ElementsMatch(t, []string{"Alice", "Bob"}, names)
}

func TestRunUnionAll(t *testing.T) {
	g := seedGraph(t)
	rows := runQuery(t, g, `MATCH (p:Person) WHERE p.name = 'Alice' RETURN p.name AS name
UNION ALL
MATCH (p:Person) WHERE p.name = 'Bob' RETURN p.name AS name`)
	require.Len(t, rows, 2)
}

func TestRunDistinct(t *testing.T) {
	g := seedGraph(t)
	rows := runQuery(t, g, `MATCH (p:Person)-[:KNOWS]->(q:Person) RETURN DISTINCT p.name AS name`)
	var names []string
	for _, r := range rows {
		names = append(names, r["name"].Str)
	}
	assert.ElementsMatch(t, []string{"Alice", "Bob"}, names)
}

func TestRunFuzzyMatchFunction(t *testing.T) {
	g := seedGraph(t)
	rows := runQuery(t, g, `MATCH (p:Person) WHERE p.name ~= 'Alise' RETURN p.name AS name`)
	require.Len(t, rows, 1)
	assert.Equal(t, "Alice", rows[0]["name"].Str)
}
