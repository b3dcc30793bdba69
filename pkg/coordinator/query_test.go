package coordinator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertexql/vertexql/pkg/config"
)

// newTestCoordinator opens an in-memory coordinator and an admin session,
// mirroring how FromPath("", nil) is meant to be used for tests and
// embedding contexts that don't want a persistent data directory.
func newTestCoordinator(t *testing.T) (*Coordinator, string) {
	t.Helper()
	c, err := FromPath("", &config.Config{
		Storage: config.StorageConfig{DefaultGraphPath: "/schema/graph"},
		Cache:   config.CacheConfig{Enabled: true, MaxSize: 100},
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	session, err := c.CreateSimpleSession(defaultAdminUsername)
	require.NoError(t, err)
	return c, session.ID
}

func TestProcessQueryInsertThenMatch(t *testing.T) {
	c, sid := newTestCoordinator(t)
	ctx := context.Background()

	res, err := c.ProcessQuery(ctx, `INSERT (a:Person {name: 'Alice'})-[:KNOWS]->(b:Person {name: 'Bob'})`, sid)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Affected)

	res, err = c.ProcessQuery(ctx, `MATCH (p:Person) RETURN p.name ORDER BY p.name`, sid)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	names := []string{}
	for _, row := range res.Rows {
		s, _ := row.Positional[0].AsString()
		names = append(names, s)
	}
	assert.Equal(t, []string{"Alice", "Bob"}, names)
}

func TestProcessQueryDeleteReportsAffectedZeroOnSecondRun(t *testing.T) {
	c, sid := newTestCoordinator(t)
	ctx := context.Background()

	_, err := c.ProcessQuery(ctx, `INSERT (a:Person {name: 'Carol'})`, sid)
	require.NoError(t, err)

	res, err := c.ProcessQuery(ctx, `MATCH (p:Person {name: 'Carol'}) DELETE p`, sid)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Affected)

	res, err = c.ProcessQuery(ctx, `MATCH (p:Person {name: 'Carol'}) DELETE p`, sid)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Affected)
}

func TestProcessQueryTransactionAbortRollsBack(t *testing.T) {
	c, sid := newTestCoordinator(t)
	ctx := context.Background()

	_, err := c.ProcessQuery(ctx, `BEGIN`, sid)
	require.NoError(t, err)
	_, err = c.ProcessQuery(ctx, `INSERT (a:Person {name: 'Dave'})`, sid)
	require.NoError(t, err)
	_, err = c.ProcessQuery(ctx, `ROLLBACK`, sid)
	require.NoError(t, err)

	res, err := c.ProcessQuery(ctx, `MATCH (p:Person {name: 'Dave'}) RETURN p.name`, sid)
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
}

func TestProcessQueryUnknownSessionIsAuthError(t *testing.T) {
	c, _ := newTestCoordinator(t)
	_, err := c.ProcessQuery(context.Background(), `MATCH (p) RETURN p`, "no-such-session")
	require.Error(t, err)
	qe, ok := err.(*QueryError)
	require.True(t, ok)
	assert.Equal(t, "AuthError", qe.Kind)
}

func TestProcessQueryTextIndexCreateAndShow(t *testing.T) {
	c, sid := newTestCoordinator(t)
	ctx := context.Background()

	_, err := c.ProcessQuery(ctx, `INSERT (a:Article {body: 'graphs and databases'})`, sid)
	require.NoError(t, err)

	_, err = c.ProcessQuery(ctx, `CREATE TEXT INDEX articles_body ON Article(body)`, sid)
	require.NoError(t, err)

	res, err := c.ProcessQuery(ctx, `SHOW TEXT INDEXES`, sid)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "articles_body", res.Rows[0].Values["name"].Str)
}
