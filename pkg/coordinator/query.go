// ProcessQuery and its supporting types are the coordinator's single
// entry point, spec.md §4.10: resolve session -> parse -> authorize ->
// plan -> read caches -> execute -> on success bump versions -> return
// QueryResult. Grounded on the teacher's pkg/nornicdb/db.go Cypher()
// method, which runs the identical parse/plan/execute pipeline behind
// one call collaborators drive instead of touching the subsystems
// themselves; this package generalizes that single entry point across
// every statement kind spec.md §1 lists rather than just read queries.
package coordinator

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/vertexql/vertexql/pkg/ast"
	"github.com/vertexql/vertexql/pkg/auth"
	"github.com/vertexql/vertexql/pkg/exec"
	"github.com/vertexql/vertexql/pkg/graph"
	"github.com/vertexql/vertexql/pkg/logicalplan"
	"github.com/vertexql/vertexql/pkg/parser"
	"github.com/vertexql/vertexql/pkg/physicalplan"
	"github.com/vertexql/vertexql/pkg/storage"
	"github.com/vertexql/vertexql/pkg/textindex"
	"github.com/vertexql/vertexql/pkg/txn"
	"github.com/vertexql/vertexql/pkg/value"
	"github.com/vertexql/vertexql/pkg/write"
)

// ResultRow is one row of a QueryResult, per spec.md §6's
// "{values: {name -> Value}, positional_values: [Value]}" shape.
type ResultRow struct {
	Values     map[string]value.Value
	Positional []value.Value
}

// QueryResult is spec.md §6's process_query return value. Affected is an
// addition beyond the three fields spec.md's external interface names:
// spec.md §8 scenario 1 requires reporting an affected-row count
// ("first returns affected=1 ... second returns affected=0"), which
// {variables, rows, warnings} alone can't express for a write statement
// with no RETURN clause, so it travels as a fourth field rather than
// being smuggled into Rows.
type QueryResult struct {
	Variables []string
	Rows      []ResultRow
	Warnings  []string
	Affected  int
}

// QueryError is the top-level structured error spec.md §7 requires,
// tagging every failure with one of that section's taxonomy kinds so a
// caller can branch on Kind without string-matching Error()'s text.
type QueryError struct {
	Kind     string
	Location ast.Location
	Message  string
	Cause    error
}

func (e *QueryError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if msg == "" {
		msg = e.Kind
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *QueryError) Unwrap() error { return e.Cause }

// classifyErr maps an error surfaced anywhere in the pipeline onto
// spec.md §7's taxonomy. pkg/write's MutationError passes its Kind
// through, since that package already uses the taxonomy's own vocabulary
// ("GraphError", "ExpressionError", ...). pkg/exec's QueryError, whose
// Kind is a free-form message, is reported as "ExecutionError" with the
// original error kept as Cause.
func classifyErr(err error, loc ast.Location) *QueryError {
	if err == nil {
		return nil
	}
	switch e := err.(type) {
	case *QueryError:
		return e
	case *ast.ParseError:
		return &QueryError{Kind: "ParseError", Location: e.Location, Cause: e}
	case *logicalplan.BuildError:
		return &QueryError{Kind: "InvalidQuery", Location: e.Location, Cause: e}
	case *write.MutationError:
		return &QueryError{Kind: e.Kind, Location: loc, Cause: e}
	case *exec.QueryError:
		return &QueryError{Kind: "ExecutionError", Location: e.Location, Cause: e}
	case *storage.DriverError:
		return &QueryError{Kind: "StorageDriverError", Location: loc, Cause: e}
	}
	if err == context.Canceled || err == context.DeadlineExceeded {
		return &QueryError{Kind: "QueryCancelled", Location: loc, Cause: err}
	}
	return &QueryError{Kind: "ExecutionError", Location: loc, Cause: err}
}

// requiredPermission reports the permission a statement needs and
// whether executing it mutates the graph, per spec.md §4.10's
// "authorize (by operation kind)" step and §4.9's "insert->create,
// set/remove->write, delete->delete" mapping (see pkg/auth's
// rolePermissions table, grounded on the same mapping).
func requiredPermission(stmt ast.Statement) (perm auth.Permission, isWrite bool) {
	switch s := stmt.(type) {
	case *ast.ClauseStatement:
		perm = auth.PermRead
		for _, c := range s.Clauses {
			switch c.(type) {
			case *ast.DeleteClause:
				return auth.PermDelete, true
			case *ast.InsertClause:
				perm, isWrite = auth.PermCreate, true
			case *ast.SetClause, *ast.RemoveClause:
				if !isWrite {
					perm, isWrite = auth.PermWrite, true
				}
			}
		}
		return perm, isWrite
	case *ast.SetOpStatement:
		lp, lw := requiredPermission(s.Left)
		rp, rw := requiredPermission(s.Right)
		if lw || rw {
			if lw {
				return lp, true
			}
			return rp, true
		}
		return auth.PermRead, false
	case *ast.TextIndexDDLStatement:
		return auth.PermSchema, s.Kind != ast.TextIndexShow
	case *ast.SessionControlStatement, *ast.TransactionControlStatement:
		return auth.PermRead, false
	default:
		return auth.PermRead, false
	}
}

// ProcessQuery is spec.md §4.10's process_query: parse -> authorize ->
// plan -> execute -> (on a mutation) bump versions -> return a
// QueryResult. session must already exist (via CreateSimpleSession /
// AuthenticateAndCreateSession); an unknown id is an AuthError.
func (c *Coordinator) ProcessQuery(ctx context.Context, text, sessionID string) (*QueryResult, error) {
	session, ok := c.authMgr.GetSession(sessionID)
	if !ok {
		return nil, &QueryError{Kind: "AuthError", Message: "unknown session " + sessionID}
	}

	stmt, err := parser.Parse(text)
	if err != nil {
		return nil, classifyErr(err, ast.Location{})
	}

	switch s := stmt.(type) {
	case *ast.TransactionControlStatement:
		return c.execTxControl(session, s)
	case *ast.SessionControlStatement:
		return c.execUse(session, s)
	case *ast.TextIndexDDLStatement:
		return c.execTextIndexDDL(ctx, session, s)
	case *ast.ClauseStatement, *ast.SetOpStatement:
		return c.execClauses(ctx, session, stmt)
	default:
		return nil, &QueryError{Kind: "InvalidQuery", Location: stmt.Loc(), Message: fmt.Sprintf("unsupported top-level statement %T", stmt)}
	}
}

// ---- Transaction control ----

func (c *Coordinator) execTxControl(session *auth.Session, s *ast.TransactionControlStatement) (*QueryResult, error) {
	c.txnsMu.Lock()
	defer c.txnsMu.Unlock()

	switch s.Kind {
	case ast.TxBegin:
		if _, active := c.txns[session.ID]; active {
			return nil, &QueryError{Kind: "InvalidQuery", Location: s.Location, Message: "a transaction is already active on this session"}
		}
		gh, err := c.openGraph(session.GraphPath)
		if err != nil {
			return nil, classifyErr(err, s.Location)
		}
		gh.mu.Lock()
		c.txns[session.ID] = c.txMgr.Begin(gh.graph)
		return &QueryResult{}, nil
	case ast.TxCommit:
		tx, active := c.txns[session.ID]
		if !active {
			return nil, &QueryError{Kind: "InvalidQuery", Location: s.Location, Message: "no active transaction on this session"}
		}
		delete(c.txns, session.ID)
		gh, _ := c.lookupGraph(session.GraphPath)
		if err := c.finishTransaction(gh, tx, true); err != nil {
			return nil, classifyErr(err, s.Location)
		}
		if gh != nil {
			gh.mu.Unlock()
		}
		return &QueryResult{}, nil
	case ast.TxAbort:
		tx, active := c.txns[session.ID]
		if !active {
			return nil, &QueryError{Kind: "InvalidQuery", Location: s.Location, Message: "no active transaction on this session"}
		}
		delete(c.txns, session.ID)
		gh, _ := c.lookupGraph(session.GraphPath)
		if err := c.finishTransaction(gh, tx, false); err != nil {
			return nil, classifyErr(err, s.Location)
		}
		if gh != nil {
			gh.mu.Unlock()
		}
		return &QueryResult{}, nil
	}
	return nil, &QueryError{Kind: "InvalidQuery", Location: s.Location, Message: "unknown transaction control"}
}

func (c *Coordinator) lookupGraph(path string) (*graphHandle, bool) {
	c.graphsMu.RLock()
	defer c.graphsMu.RUnlock()
	gh, ok := c.graphs[path]
	return gh, ok
}

// finishTransaction commits or aborts tx, persisting touched entities to
// storage beforehand on a commit (spec.md §6: the storage driver, not
// the graph cache, is what survives a restart). gh may be nil only in
// the pathological case where its graph was never opened, which Begin
// above never allows.
func (c *Coordinator) finishTransaction(gh *graphHandle, tx *txn.Transaction, commit bool) error {
	if !commit {
		return tx.Abort()
	}
	if gh != nil {
		touchedNodes, touchedEdges, removedNodes, removedEdges := tx.TouchedEntities()
		if err := c.persistGraphDelta(gh, touchedNodes, touchedEdges, removedNodes, removedEdges); err != nil {
			return err
		}
		if len(touchedNodes)+len(touchedEdges)+len(removedNodes)+len(removedEdges) > 0 {
			gh.bumpVersion()
		}
	}
	return tx.Commit()
}

// persistGraphDelta writes every touched node/edge's current encoded
// form to its tree and removes every deleted one, per spec.md §6's
// "graph:<path>:nodes/edges" trees.
func (c *Coordinator) persistGraphDelta(gh *graphHandle, touchedNodes, touchedEdges, removedNodes, removedEdges []string) error {
	if len(touchedNodes)+len(removedNodes) > 0 {
		tree, err := c.storage.OpenTree(graphNodesTree(gh.path))
		if err != nil {
			return err
		}
		var ops []storage.BatchOp
		for _, id := range touchedNodes {
			n, ok := gh.graph.GetNode(id)
			if !ok {
				continue
			}
			b, err := graph.EncodeNode(n)
			if err != nil {
				return err
			}
			ops = append(ops, storage.BatchOp{Key: []byte(id), Value: b})
		}
		for _, id := range removedNodes {
			ops = append(ops, storage.BatchOp{Key: []byte(id), Remove: true})
		}
		if len(ops) > 0 {
			if err := tree.Batch(ops); err != nil {
				return err
			}
		}
	}
	if len(touchedEdges)+len(removedEdges) > 0 {
		tree, err := c.storage.OpenTree(graphEdgesTree(gh.path))
		if err != nil {
			return err
		}
		var ops []storage.BatchOp
		for _, id := range touchedEdges {
			e, ok := gh.graph.GetEdge(id)
			if !ok {
				continue
			}
			b, err := graph.EncodeEdge(e)
			if err != nil {
				return err
			}
			ops = append(ops, storage.BatchOp{Key: []byte(id), Value: b})
		}
		for _, id := range removedEdges {
			ops = append(ops, storage.BatchOp{Key: []byte(id), Remove: true})
		}
		if len(ops) > 0 {
			if err := tree.Batch(ops); err != nil {
				return err
			}
		}
	}
	return nil
}

func (gh *graphHandle) bumpVersion() {
	gh.version++
	gh.cache.Invalidate(gh.version, 0)
}

// ---- Session control (USE) ----

func (c *Coordinator) execUse(session *auth.Session, s *ast.SessionControlStatement) (*QueryResult, error) {
	if _, err := c.openGraph(s.GraphPath); err != nil {
		return nil, classifyErr(err, s.Location)
	}
	session.GraphPath = s.GraphPath
	return &QueryResult{}, nil
}

// ---- Text index DDL ----

func (c *Coordinator) execTextIndexDDL(ctx context.Context, session *auth.Session, s *ast.TextIndexDDLStatement) (*QueryResult, error) {
	perm, _ := requiredPermission(s)
	if !session.Authorize(perm) {
		return nil, &QueryError{Kind: "AuthError", Location: s.Location, Message: "permission denied"}
	}

	switch s.Kind {
	case ast.TextIndexCreate:
		analyzerCfg := analyzerConfigFromOptions(s.Options)
		idx, err := c.indexes.Create(textindex.Metadata{Name: s.Name, Label: s.Label, Field: s.Field, IndexType: "fulltext+ngram"}, analyzerCfg)
		if err != nil {
			return nil, classifyErr(&write.MutationError{Kind: "TextSearchError", Cause: err}, s.Location)
		}
		gh, err := c.openGraph(session.GraphPath)
		if err != nil {
			return nil, classifyErr(err, s.Location)
		}
		gh.mu.RLock()
		nodes := gh.graph.GetNodesByLabel(s.Label)
		for _, n := range nodes {
			v, ok := n.Properties[s.Field]
			if !ok {
				continue
			}
			text, ok := v.AsString()
			if !ok {
				continue
			}
			idx.AddDocument(n.ID, text)
		}
		gh.mu.RUnlock()
		return &QueryResult{}, nil
	case ast.TextIndexDrop:
		if err := c.indexes.Drop(s.Name); err != nil {
			return nil, classifyErr(&write.MutationError{Kind: "TextSearchError", Cause: err}, s.Location)
		}
		return &QueryResult{}, nil
	case ast.TextIndexShow:
		return c.showTextIndexes(), nil
	}
	return nil, &QueryError{Kind: "InvalidQuery", Location: s.Location, Message: "unknown text index DDL"}
}

func (c *Coordinator) showTextIndexes() *QueryResult {
	metas := c.indexes.List()
	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })
	vars := []string{"name", "label", "field", "index_type", "doc_count"}
	res := &QueryResult{Variables: vars}
	for _, m := range metas {
		docCount := 0
		if idx, ok := c.indexes.Get(m.Name); ok {
			docCount = idx.DocCount()
		}
		values := map[string]value.Value{
			"name":       value.String(m.Name),
			"label":      value.String(m.Label),
			"field":      value.String(m.Field),
			"index_type": value.String(m.IndexType),
			"doc_count":  value.Number(float64(docCount)),
		}
		res.Rows = append(res.Rows, ResultRow{
			Values:     values,
			Positional: []value.Value{values["name"], values["label"], values["field"], values["index_type"], values["doc_count"]},
		})
	}
	return res
}

func analyzerConfigFromOptions(opts map[string]ast.Expression) textindex.AnalyzerConfig {
	cfg := textindex.DefaultAnalyzerConfig()
	if opts == nil {
		return cfg
	}
	if lit, ok := literal(opts["language"]); ok && lit.Kind == ast.LitString {
		cfg.Language = lit.Str
	}
	if lit, ok := literal(opts["lowercase"]); ok && lit.Kind == ast.LitBool {
		cfg.Lowercase = lit.Bool
	}
	if lit, ok := literal(opts["remove_stop_words"]); ok && lit.Kind == ast.LitBool {
		cfg.RemoveStopWords = lit.Bool
	}
	if lit, ok := literal(opts["stem"]); ok && lit.Kind == ast.LitBool {
		cfg.Stem = lit.Bool
	}
	return cfg
}

func literal(e ast.Expression) (*ast.Literal, bool) {
	lit, ok := e.(*ast.Literal)
	return lit, ok
}

// ---- Read/write clause statements ----

func (c *Coordinator) execClauses(ctx context.Context, session *auth.Session, stmt ast.Statement) (*QueryResult, error) {
	perm, isWrite := requiredPermission(stmt)
	if !session.Authorize(perm) {
		return nil, &QueryError{Kind: "AuthError", Location: stmt.Loc(), Message: "permission denied"}
	}

	gh, err := c.openGraph(session.GraphPath)
	if err != nil {
		return nil, classifyErr(err, stmt.Loc())
	}

	lp, err := logicalplan.Build(stmt)
	if err != nil {
		return nil, classifyErr(err, stmt.Loc())
	}
	lp = logicalplan.Optimize(lp)

	// explicitTx, if non-nil, is the session's already-open BEGIN...
	// transaction; the per-graph exclusive lock it holds was taken by
	// execTxControl's TxBegin and released by its COMMIT/ROLLBACK, so
	// this statement must not also lock/unlock gh.mu itself.
	c.txnsMu.Lock()
	explicitTx := c.txns[session.ID]
	c.txnsMu.Unlock()

	if explicitTx == nil {
		if isWrite {
			gh.mu.Lock()
			defer gh.mu.Unlock()
		} else {
			gh.mu.RLock()
			defer gh.mu.RUnlock()
		}
	}

	stats := physicalplan.GraphStats{
		NodeCount:    float64(len(gh.graph.GetAllNodes())),
		EdgeCount:    float64(len(gh.graph.GetAllEdges())),
		AvgOutDegree: 1,
	}
	pp := physicalplan.Plan(lp, stats)

	c.catalogMu.RLock()
	schemaVersion := c.schemaVersion
	c.catalogMu.RUnlock()

	evaluator := &exec.Executor{
		Graph:         gh.graph,
		Indexes:       c.indexes,
		Cache:         gh.cache,
		GraphVersion:  gh.version,
		SchemaVersion: schemaVersion,
	}
	writer := write.New(evaluator, c.indexes, c.logger)
	evaluator.Mutator = writer

	tx := explicitTx
	if isWrite && tx == nil {
		tx = c.txMgr.Begin(gh.graph)
	}
	if tx != nil {
		writer.SetTransaction(tx)
	}

	rows, runErr := evaluator.Run(ctx, pp)
	if runErr != nil {
		if isWrite && tx != nil && tx != explicitTx {
			_ = tx.Abort()
		}
		return nil, classifyErr(runErr, stmt.Loc())
	}

	if isWrite && tx != nil && tx != explicitTx {
		touchedNodes, touchedEdges, removedNodes, removedEdges := tx.TouchedEntities()
		if err := c.persistGraphDelta(gh, touchedNodes, touchedEdges, removedNodes, removedEdges); err != nil {
			_ = tx.Abort()
			return nil, classifyErr(err, stmt.Loc())
		}
		if err := tx.Commit(); err != nil {
			return nil, classifyErr(err, stmt.Loc())
		}
		if len(touchedNodes)+len(touchedEdges)+len(removedNodes)+len(removedEdges) > 0 {
			gh.bumpVersion()
		}
	}

	return rowsToResult(pp, rows, evaluator.Warnings), nil
}

// rowsToResult derives the ordered column list from the physical plan's
// outermost projecting/aggregating operator (if any) and shapes rows
// into spec.md §6's {values, positional_values} pairs. For a write
// statement without a RETURN clause there is no projection to walk, so
// Variables/Positional stay empty and Affected (len(rows)) is the only
// signal spec.md §8 scenario 1 needs.
func rowsToResult(pp physicalplan.Plan, rows []exec.BindingRow, warnings []string) *QueryResult {
	vars := outputVars(pp)
	res := &QueryResult{Variables: vars, Warnings: warnings, Affected: len(rows)}
	for _, row := range rows {
		values := make(map[string]value.Value, len(row))
		for k, v := range row {
			values[k] = v
		}
		rr := ResultRow{Values: values}
		if len(vars) > 0 {
			rr.Positional = make([]value.Value, len(vars))
			for i, name := range vars {
				rr.Positional[i] = row[name]
			}
		}
		res.Rows = append(res.Rows, rr)
	}
	return res
}

func outputVars(p physicalplan.Plan) []string {
	switch n := p.(type) {
	case *physicalplan.ProjectExec:
		vars := make([]string, len(n.Items))
		for i, it := range n.Items {
			alias := it.Alias
			if alias == "" {
				alias = "col_" + strconv.Itoa(i)
			}
			vars[i] = alias
		}
		return vars
	case *physicalplan.HashAggregate:
		var vars []string
		for i, ge := range n.GroupBy {
			vars = append(vars, groupAlias(ge, i))
		}
		for _, agg := range n.Aggregates {
			vars = append(vars, agg.Alias)
		}
		return vars
	case *physicalplan.DistinctExec:
		return outputVars(n.Input)
	case *physicalplan.LimitExec:
		return outputVars(n.Input)
	case *physicalplan.InMemorySort:
		return outputVars(n.Input)
	case *physicalplan.HavingExec:
		return outputVars(n.Input)
	case *physicalplan.FilterExec:
		return outputVars(n.Input)
	case *physicalplan.WithBoundaryExec:
		return outputVars(n.Input)
	}
	return nil
}

// groupAlias mirrors pkg/exec's own unexported groupAlias (aggregate.go):
// a bare variable or property-access group key defaults to its own
// name/field, otherwise falls back to a positional "group_N" label.
func groupAlias(e ast.Expression, i int) string {
	switch v := e.(type) {
	case *ast.Variable:
		return v.Name
	case *ast.PropertyAccess:
		return v.Property
	}
	return "group_" + strconv.Itoa(i)
}
