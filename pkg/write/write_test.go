package write

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertexql/vertexql/pkg/exec"
	"github.com/vertexql/vertexql/pkg/graph"
	"github.com/vertexql/vertexql/pkg/logicalplan"
	"github.com/vertexql/vertexql/pkg/parser"
	"github.com/vertexql/vertexql/pkg/physicalplan"
	"github.com/vertexql/vertexql/pkg/textindex"
	"github.com/vertexql/vertexql/pkg/txn"
)

// newFixture wires an exec.Executor whose Mutator is a write.Executor
// pointed at the same graph/index registry, mirroring how the
// coordinator assembles the two per session.
func newFixture(t *testing.T) (*graph.Graph, *exec.Executor, *Executor) {
	t.Helper()
	g := graph.New()
	indexes := textindex.NewRegistry()
	readExec := &exec.Executor{Graph: g, Indexes: indexes}
	w := New(readExec, indexes, nil)
	readExec.Mutator = w
	return g, readExec, w
}

func run(t *testing.T, x *exec.Executor, query string) []exec.BindingRow {
	t.Helper()
	stmt, err := parser.Parse(query)
	require.NoError(t, err)
	lp, err := logicalplan.Build(stmt)
	require.NoError(t, err)
	pp := physicalplan.Plan(logicalplan.Optimize(lp), physicalplan.GraphStats{NodeCount: 1, AvgOutDegree: 1})
	rows, err := x.Run(context.Background(), pp)
	require.NoError(t, err)
	return rows
}

func TestInsertCreatesNodesAndEdge(t *testing.T) {
	g, x, _ := newFixture(t)
	run(t, x, `INSERT (a:Person {name: 'Alice'})-[:KNOWS]->(b:Person {name: 'Bob'})`)

	people := g.GetNodesByLabel("Person")
	require.Len(t, people, 2)
	require.Len(t, g.GetAllEdges(), 1)
	assert.Empty(t, x.Warnings)
}

func TestInsertDuplicateNodeWarns(t *testing.T) {
	g, x, _ := newFixture(t)
	run(t, x, `INSERT (a:Person {name: 'Alice'})`)
	run(t, x, `INSERT (a:Person {name: 'Alice'})`)

	require.Len(t, g.GetNodesByLabel("Person"), 1)
	require.Contains(t, x.Warnings, "Duplicate node detected")
}

func TestSetPropertyUpdatesNode(t *testing.T) {
	g, x, _ := newFixture(t)
	run(t, x, `INSERT (a:Person {name: 'Alice', age: 30})`)
	rows := run(t, x, `MATCH (a:Person {name: 'Alice'}) SET a.age = 31 RETURN a`)
	require.Len(t, rows, 1)

	var found bool
	for _, n := range g.GetNodesByLabel("Person") {
		if v, ok := n.Properties["age"]; ok && v.Num == 31 {
			found = true
		}
	}
	assert.True(t, found, "age should have been updated to 31")
}

func TestRemovePropertyClearsIt(t *testing.T) {
	g, x, _ := newFixture(t)
	run(t, x, `INSERT (a:Person {name: 'Alice', age: 30})`)
	run(t, x, `MATCH (a:Person {name: 'Alice'}) REMOVE a.age`)

	people := g.GetNodesByLabel("Person")
	require.Len(t, people, 1)
	_, ok := people[0].Properties["age"]
	assert.False(t, ok)
}

func TestDeleteWithoutDetachRejectsConnectedNode(t *testing.T) {
	_, x, _ := newFixture(t)
	run(t, x, `INSERT (a:Person {name: 'Alice'})-[:KNOWS]->(b:Person {name: 'Bob'})`)

	stmt, err := parser.Parse(`MATCH (a:Person {name: 'Alice'}) DELETE a`)
	require.NoError(t, err)
	lp, err := logicalplan.Build(stmt)
	require.NoError(t, err)
	pp := physicalplan.Plan(logicalplan.Optimize(lp), physicalplan.GraphStats{NodeCount: 2, AvgOutDegree: 1})
	_, err = x.Run(context.Background(), pp)
	assert.Error(t, err)
}

func TestDetachDeleteCascadesEdges(t *testing.T) {
	g, x, _ := newFixture(t)
	run(t, x, `INSERT (a:Person {name: 'Alice'})-[:KNOWS]->(b:Person {name: 'Bob'})`)
	run(t, x, `MATCH (a:Person {name: 'Alice'}) DETACH DELETE a`)

	require.Len(t, g.GetNodesByLabel("Person"), 1)
	assert.Empty(t, g.GetAllEdges())
}

func TestTransactionAbortRestoresInsert(t *testing.T) {
	g, x, w := newFixture(t)
	mgr := txn.NewManager()
	tx := mgr.Begin(g)
	w.SetTransaction(tx)

	run(t, x, `INSERT (a:Person {name: 'Alice'})-[:KNOWS]->(b:Person {name: 'Bob'})`)
	require.Len(t, g.GetAllNodes(), 2)
	require.Len(t, g.GetAllEdges(), 1)

	require.NoError(t, tx.Abort())
	assert.Empty(t, g.GetAllNodes())
	assert.Empty(t, g.GetAllEdges())
}

func TestTransactionAbortRestoresDeletedNodeBeforeItsEdges(t *testing.T) {
	g, x, w := newFixture(t)
	run(t, x, `INSERT (a:Person {name: 'Alice'})-[:KNOWS]->(b:Person {name: 'Bob'})`)

	mgr := txn.NewManager()
	tx := mgr.Begin(g)
	w.SetTransaction(tx)
	run(t, x, `MATCH (a:Person {name: 'Alice'}) DETACH DELETE a`)
	require.Len(t, g.GetAllNodes(), 1)
	require.Empty(t, g.GetAllEdges())

	require.NoError(t, tx.Abort())
	require.Len(t, g.GetAllNodes(), 2)
	require.Len(t, g.GetAllEdges(), 1)
}
