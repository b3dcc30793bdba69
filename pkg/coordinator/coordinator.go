// Package coordinator implements the single entry point spec.md §4.10
// describes: it owns the storage driver, the per-graph-path caches, the
// global text-index registry, and session/auth state, and exposes
// from_path/create_simple_session/authenticate_and_create_session/
// set_user_password/close_session/process_query as the surface every
// other collaborator (a REPL, a server, a test) drives the core through.
//
// Grounded on the teacher's pkg/nornicdb/db.go: Open() opens a storage
// engine then wires executor/auth/search subsystems on top of it in a
// fixed order, and DB exposes the same kind of single-façade API
// (Store/Cypher/Close) collaborators call instead of reaching into the
// subsystems directly. This package keeps that shape — open storage,
// wire subsystems, expose one façade — and drops everything outside
// spec.md's domain (memory decay, embeddings, Bolt/HTTP serving).
package coordinator

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/vertexql/vertexql/pkg/auth"
	"github.com/vertexql/vertexql/pkg/cache"
	"github.com/vertexql/vertexql/pkg/config"
	"github.com/vertexql/vertexql/pkg/graph"
	"github.com/vertexql/vertexql/pkg/storage"
	"github.com/vertexql/vertexql/pkg/textindex"
	"github.com/vertexql/vertexql/pkg/txn"
)

// graphHandle bundles one graph path's cache, version counter, and the
// per-graph RW lock spec.md §5 requires: readers take the shared side,
// a mutating statement takes the exclusive side for its whole duration.
type graphHandle struct {
	mu      sync.RWMutex
	path    string
	graph   *graph.Graph
	version uint64
	cache   *cache.SubqueryCache
}

// Coordinator is the process-wide façade. Per spec.md §5's "no globals
// other than the text-index registry, metadata registry, and cost-model
// statistics" rule, everything else (graphs, sessions, catalog) is
// instance state reached only through Coordinator's methods, never a
// package-level variable.
type Coordinator struct {
	storage storage.Driver
	dataDir string
	cfg     *config.Config

	graphsMu sync.RWMutex
	graphs   map[string]*graphHandle

	indexes *textindex.Registry // process-wide registry, per spec.md §5
	authMgr *auth.Manager
	txMgr   *txn.Manager

	catalogMu     sync.RWMutex
	schemaVersion uint64

	// txnsMu guards txns, the per-session explicit-transaction table
	// spec.md §4.8 describes ("single-writer-per-session" BEGIN/COMMIT/
	// ROLLBACK); a session absent from this map runs every statement in
	// its own implicit transaction instead.
	txnsMu sync.Mutex
	txns   map[string]*txn.Transaction

	logger *log.Logger
}

const defaultAdminUsername = "admin"
const defaultAdminPassword = "changeme"

// FromPath opens (or initializes) a coordinator rooted at dir, per
// spec.md §6's "Environment and startup": dir == "" selects the
// in-memory driver; otherwise dir is a persistent Badger directory. An
// empty (newly created) directory is initialized with catalogs and a
// default admin account; a non-empty one is reopened and every graph's
// label index is warmed by scanning its persisted nodes.
func FromPath(dir string, cfg *config.Config) (*Coordinator, error) {
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("coordinator: loading config: %w", err)
		}
		cfg = loaded
	}

	drv, fresh, err := openDriver(dir)
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		storage: drv,
		dataDir: dir,
		cfg:     cfg,
		graphs:  make(map[string]*graphHandle),
		indexes: textindex.NewRegistry(),
		authMgr: auth.NewManager(cfg.Auth.ToAuthPackageConfig()),
		txMgr:   txn.NewManager(),
		txns:    make(map[string]*txn.Transaction),
		logger:  log.New(os.Stderr, "vertexql: ", log.LstdFlags),
	}

	if fresh {
		if err := c.initializeCatalogs(); err != nil {
			drv.Close()
			return nil, err
		}
	} else {
		if err := c.reopenCatalogs(); err != nil {
			drv.Close()
			return nil, err
		}
	}

	return c, nil
}

// openDriver picks the storage backend per spec.md's one-path-argument
// startup contract: an empty path means "no persistence," matching
// pkg/config's own memory-vs-badger switch. fresh reports whether the
// directory was empty (and therefore needs catalog initialization)
// before Open/NewMemory touched it.
func openDriver(dir string) (storage.Driver, bool, error) {
	if dir == "" {
		return storage.NewMemory(), true, nil
	}

	fresh := true
	entries, err := os.ReadDir(dir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return nil, false, fmt.Errorf("coordinator: creating data dir: %w", mkErr)
		}
	case err != nil:
		return nil, false, fmt.Errorf("coordinator: reading data dir: %w", err)
	default:
		fresh = len(entries) == 0
	}

	drv, err := storage.Open(dir)
	if err != nil {
		return nil, false, fmt.Errorf("coordinator: opening storage: %w", err)
	}
	return drv, fresh, nil
}

func graphNodesTree(path string) string { return "graph:" + path + ":nodes" }
func graphEdgesTree(path string) string { return "graph:" + path + ":edges" }

const catalogUsersTree = "catalog:users"
const catalogSchemaTree = "catalog:schemas"

// initializeCatalogs sets up a brand-new data directory: an empty
// default graph and a single admin account, per spec.md §6.
func (c *Coordinator) initializeCatalogs() error {
	if _, err := c.openGraph(c.cfg.Storage.DefaultGraphPath); err != nil {
		return err
	}
	if _, err := c.authMgr.CreateUser(defaultAdminUsername, defaultAdminPassword, []auth.Role{auth.RoleAdmin}); err != nil {
		return fmt.Errorf("coordinator: creating default admin: %w", err)
	}
	return c.persistUsers()
}

// reopenCatalogs rehydrates an existing data directory: every tree
// named graph:<path>:nodes/edges is reopened and rebuilt into a
// graph.Graph (warming the label index as a side effect of AddNode),
// and catalog:users is replayed into the auth manager.
func (c *Coordinator) reopenCatalogs() error {
	trees, err := c.storage.ListTrees()
	if err != nil {
		return fmt.Errorf("coordinator: listing trees: %w", err)
	}

	paths := map[string]struct{}{}
	for _, name := range trees {
		if p, ok := graphPathFromNodesTree(name); ok {
			paths[p] = struct{}{}
		}
	}
	for p := range paths {
		if err := c.warmGraph(p); err != nil {
			return err
		}
	}
	if len(paths) == 0 {
		if _, err := c.openGraph(c.cfg.Storage.DefaultGraphPath); err != nil {
			return err
		}
	}

	return c.reloadUsers()
}

func graphPathFromNodesTree(name string) (string, bool) {
	const prefix, suffix = "graph:", ":nodes"
	if len(name) <= len(prefix)+len(suffix) {
		return "", false
	}
	if name[:len(prefix)] != prefix || name[len(name)-len(suffix):] != suffix {
		return "", false
	}
	return name[len(prefix) : len(name)-len(suffix)], true
}

// openGraph returns (creating if necessary) the in-memory handle for
// path, opening its backing node/edge trees along the way.
func (c *Coordinator) openGraph(path string) (*graphHandle, error) {
	c.graphsMu.Lock()
	defer c.graphsMu.Unlock()
	if gh, ok := c.graphs[path]; ok {
		return gh, nil
	}
	if _, err := c.storage.OpenTree(graphNodesTree(path)); err != nil {
		return nil, fmt.Errorf("coordinator: opening node tree for %s: %w", path, err)
	}
	if _, err := c.storage.OpenTree(graphEdgesTree(path)); err != nil {
		return nil, fmt.Errorf("coordinator: opening edge tree for %s: %w", path, err)
	}
	gh := &graphHandle{
		path:  path,
		graph: graph.New(),
		cache: cache.New(c.cfg.Cache.MaxSize, c.cfg.Cache.TTL),
	}
	if !c.cfg.Cache.Enabled {
		gh.cache.SetEnabled(false)
	}
	c.graphs[path] = gh
	return gh, nil
}

// warmGraph reopens path's node/edge trees and replays every record
// into a fresh graph.Graph, per spec.md §6's "warm the label index by
// scanning nodes."
func (c *Coordinator) warmGraph(path string) error {
	gh, err := c.openGraph(path)
	if err != nil {
		return err
	}

	nodeTree, err := c.storage.OpenTree(graphNodesTree(path))
	if err != nil {
		return err
	}
	edgeTree, err := c.storage.OpenTree(graphEdgesTree(path))
	if err != nil {
		return err
	}

	var scanErr error
	_ = nodeTree.All(func(_, v []byte) bool {
		n, decErr := graph.DecodeNode(v)
		if decErr != nil {
			scanErr = fmt.Errorf("coordinator: decoding node in %s: %w", path, decErr)
			return false
		}
		if addErr := gh.graph.AddNode(n); addErr != nil {
			c.logger.Printf("warm %s: %v", path, addErr)
		}
		return true
	})
	if scanErr != nil {
		return scanErr
	}
	_ = edgeTree.All(func(_, v []byte) bool {
		e, decErr := graph.DecodeEdge(v)
		if decErr != nil {
			scanErr = fmt.Errorf("coordinator: decoding edge in %s: %w", path, decErr)
			return false
		}
		if addErr := gh.graph.AddEdge(e); addErr != nil {
			c.logger.Printf("warm %s: %v", path, addErr)
		}
		return true
	})
	return scanErr
}

// persistUsers writes every account's full record to catalog:users,
// overwriting the tree wholesale — simple and correct for the account
// volumes this core expects, at the cost of a full rewrite per call
// rather than an incremental diff.
func (c *Coordinator) persistUsers() error {
	tree, err := c.storage.OpenTree(catalogUsersTree)
	if err != nil {
		return fmt.Errorf("coordinator: opening users tree: %w", err)
	}
	if err := tree.Clear(); err != nil {
		return fmt.Errorf("coordinator: clearing users tree: %w", err)
	}
	var ops []storage.BatchOp
	for _, u := range c.authMgr.ExportUsers() {
		b, err := encodeUser(u)
		if err != nil {
			return err
		}
		ops = append(ops, storage.BatchOp{Key: []byte(u.Username), Value: b})
	}
	if len(ops) == 0 {
		return nil
	}
	return tree.Batch(ops)
}

func (c *Coordinator) reloadUsers() error {
	tree, err := c.storage.OpenTree(catalogUsersTree)
	if err != nil {
		return fmt.Errorf("coordinator: opening users tree: %w", err)
	}
	count := 0
	var decodeErr error
	_ = tree.All(func(_, v []byte) bool {
		u, err := decodeUser(v)
		if err != nil {
			decodeErr = err
			return false
		}
		if err := c.authMgr.RestoreUser(u); err != nil {
			c.logger.Printf("reload users: %v", err)
		}
		count++
		return true
	})
	if decodeErr != nil {
		return decodeErr
	}
	if count == 0 {
		if _, err := c.authMgr.CreateUser(defaultAdminUsername, defaultAdminPassword, []auth.Role{auth.RoleAdmin}); err != nil {
			return fmt.Errorf("coordinator: creating default admin: %w", err)
		}
		return c.persistUsers()
	}
	return nil
}

// CreateSimpleSession opens a session for an already-known user without
// a password check (spec.md §4.10's create_simple_session), for trusted
// local callers (embedding contexts, tests). It fails if the user does
// not exist rather than silently creating one.
func (c *Coordinator) CreateSimpleSession(username string) (*auth.Session, error) {
	user, err := c.authMgr.GetUser(username)
	if err != nil {
		return nil, err
	}
	return c.authMgr.CreateSession(user, c.cfg.Storage.DefaultGraphPath), nil
}

// AuthenticateAndCreateSession verifies username/password and opens a
// session on success (spec.md §4.10's authenticate_and_create_session).
func (c *Coordinator) AuthenticateAndCreateSession(username, password string) (*auth.Session, error) {
	user, err := c.authMgr.Authenticate(username, password)
	if err != nil {
		return nil, err
	}
	return c.authMgr.CreateSession(user, c.cfg.Storage.DefaultGraphPath), nil
}

// SetUserPassword is the administrative set_user_password entry point.
func (c *Coordinator) SetUserPassword(username, newPassword string) error {
	if err := c.authMgr.SetPassword(username, newPassword); err != nil {
		return err
	}
	return c.persistUsers()
}

// CloseSession discards a session; a no-op on an unknown id.
func (c *Coordinator) CloseSession(sessionID string) {
	c.authMgr.CloseSession(sessionID)
}

// Close flushes and releases the storage driver. A flush error is only
// logged, so the driver is closed either way; the returned error is the
// one from closing the driver.
func (c *Coordinator) Close() error {
	if err := c.storage.Flush(); err != nil {
		c.logger.Printf("flush on close: %v", err)
	}
	return c.storage.Close()
}

// DataDirLabel renders dir for a log/CLI message, since "" (the
// in-memory driver's path) would otherwise print as a confusing blank.
func DataDirLabel(dir string) string {
	if dir == "" {
		return "(in-memory)"
	}
	return filepath.Clean(dir)
}
