package exec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertexql/vertexql/pkg/cache"
	"github.com/vertexql/vertexql/pkg/logicalplan"
	"github.com/vertexql/vertexql/pkg/parser"
	"github.com/vertexql/vertexql/pkg/physicalplan"
	"github.com/vertexql/vertexql/pkg/textindex"
)

func runQueryWithCache(t *testing.T, x *Executor, query string) []BindingRow {
	t.Helper()
	stmt, err := parser.Parse(query)
	require.NoError(t, err)
	lp, err := logicalplan.Build(stmt)
	require.NoError(t, err)
	pp := physicalplan.Plan(logicalplan.Optimize(lp), physicalplan.GraphStats{NodeCount: 3, AvgOutDegree: 1})
	rows, err := x.Run(context.Background(), pp)
	require.NoError(t, err)
	return rows
}

func TestExistsSubqueryPopulatesCacheOnMiss(t *testing.T) {
	g := seedGraph(t)
	c := cache.New(10, time.Minute)
	x := &Executor{Graph: g, Indexes: textindex.NewRegistry(), Cache: c}

	rows := runQueryWithCache(t, x, `MATCH (p:Person) WHERE EXISTS { MATCH (p)-[:KNOWS]->(q) } RETURN p.name AS name`)
	require.Len(t, rows, 2)
	assert.Greater(t, c.Len(), 0)
	assert.Equal(t, uint64(0), c.Stats().Hits)
}

func TestExistsSubqueryHitsCacheOnRepeat(t *testing.T) {
	g := seedGraph(t)
	c := cache.New(10, time.Minute)
	x := &Executor{Graph: g, Indexes: textindex.NewRegistry(), Cache: c}

	query := `MATCH (p:Person) WHERE EXISTS { MATCH (p)-[:KNOWS]->(q) } RETURN p.name AS name`
	first := runQueryWithCache(t, x, query)
	second := runQueryWithCache(t, x, query)

	assert.ElementsMatch(t, first, second)
	assert.Greater(t, c.Stats().Hits, uint64(0))
}

func TestSubqueryCacheMissesAfterGraphVersionBump(t *testing.T) {
	g := seedGraph(t)
	c := cache.New(10, time.Minute)
	x := &Executor{Graph: g, Indexes: textindex.NewRegistry(), Cache: c}

	query := `MATCH (p:Person) WHERE EXISTS { MATCH (p)-[:KNOWS]->(q) } RETURN p.name AS name`
	runQueryWithCache(t, x, query)
	statsBefore := c.Stats()

	x.GraphVersion++
	runQueryWithCache(t, x, query)
	statsAfter := c.Stats()

	assert.Greater(t, statsAfter.Misses, statsBefore.Misses)
}
