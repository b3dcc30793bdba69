package parser

import (
	"testing"

	"github.com/vertexql/vertexql/pkg/ast"
)

func TestParseSimpleMatchReturn(t *testing.T) {
	stmt, err := Parse(`MATCH (p:Person) WHERE p.age > 25 RETURN p.name ORDER BY p.name`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cs, ok := stmt.(*ast.ClauseStatement)
	if !ok {
		t.Fatalf("expected *ast.ClauseStatement, got %T", stmt)
	}
	if len(cs.Clauses) != 3 {
		t.Fatalf("expected 3 clauses (MATCH, WHERE, RETURN), got %d", len(cs.Clauses))
	}
	match, ok := cs.Clauses[0].(*ast.MatchClause)
	if !ok {
		t.Fatalf("expected MatchClause first, got %T", cs.Clauses[0])
	}
	if len(match.Pattern.Nodes) != 1 || match.Pattern.Nodes[0].Variable != "p" {
		t.Fatalf("unexpected pattern: %+v", match.Pattern)
	}
	if match.Pattern.Nodes[0].Labels[0] != "Person" {
		t.Fatalf("expected label Person, got %v", match.Pattern.Nodes[0].Labels)
	}
	ret, ok := cs.Clauses[2].(*ast.ReturnClause)
	if !ok {
		t.Fatalf("expected ReturnClause last, got %T", cs.Clauses[2])
	}
	if len(ret.OrderBy) != 1 {
		t.Fatalf("expected ORDER BY to be attached to RETURN")
	}
}

func TestParseInsertPattern(t *testing.T) {
	stmt, err := Parse(`INSERT (a:X{k:1})-[:R]->(b:Y{k:2})`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cs := stmt.(*ast.ClauseStatement)
	ins, ok := cs.Clauses[0].(*ast.InsertClause)
	if !ok {
		t.Fatalf("expected InsertClause, got %T", cs.Clauses[0])
	}
	if len(ins.Patterns) != 1 {
		t.Fatalf("expected 1 pattern, got %d", len(ins.Patterns))
	}
	pat := ins.Patterns[0]
	if len(pat.Nodes) != 2 || len(pat.Edges) != 1 {
		t.Fatalf("expected 2 nodes + 1 edge, got %d/%d", len(pat.Nodes), len(pat.Edges))
	}
	if pat.Edges[0].Direction != ast.DirOut {
		t.Fatalf("expected outgoing edge direction")
	}
	if pat.Edges[0].Labels[0] != "R" {
		t.Fatalf("expected edge label R, got %v", pat.Edges[0].Labels)
	}
	if _, ok := pat.Nodes[0].Properties["k"]; !ok {
		t.Fatalf("expected property k on first node")
	}
}

func TestParseUndirectedAndVariableLengthEdge(t *testing.T) {
	stmt, err := Parse(`MATCH (a)-[:KNOWS*1..3]-(b) RETURN a, b`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cs := stmt.(*ast.ClauseStatement)
	match := cs.Clauses[0].(*ast.MatchClause)
	edge := match.Pattern.Edges[0]
	if edge.Direction != ast.DirUndirected {
		t.Fatalf("expected undirected edge, got %v", edge.Direction)
	}
	if edge.MinHops == nil || *edge.MinHops != 1 {
		t.Fatalf("expected MinHops=1")
	}
	if edge.MaxHops == nil || *edge.MaxHops != 3 {
		t.Fatalf("expected MaxHops=3")
	}
}

func TestParseAnonymousNodeAsEndpoint(t *testing.T) {
	stmt, err := Parse(`MATCH (a:Person)-->() RETURN a`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cs := stmt.(*ast.ClauseStatement)
	match := cs.Clauses[0].(*ast.MatchClause)
	if !match.Pattern.Nodes[1].Anonymous {
		t.Fatalf("expected second node to be anonymous")
	}
}

func TestParseSetAndRemoveAndDelete(t *testing.T) {
	stmt, err := Parse(`MATCH (a:X) SET a.k = 1, a:Y REMOVE a.old, a:Z DELETE a`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cs := stmt.(*ast.ClauseStatement)
	if len(cs.Clauses) != 4 {
		t.Fatalf("expected 4 clauses, got %d", len(cs.Clauses))
	}
	set := cs.Clauses[1].(*ast.SetClause)
	if len(set.Items) != 2 || set.Items[0].Property != "k" || set.Items[1].Labels[0] != "Y" {
		t.Fatalf("unexpected SET items: %+v", set.Items)
	}
	rem := cs.Clauses[2].(*ast.RemoveClause)
	if len(rem.Items) != 2 || rem.Items[0].Property != "old" || rem.Items[1].Labels[0] != "Z" {
		t.Fatalf("unexpected REMOVE items: %+v", rem.Items)
	}
	del := cs.Clauses[3].(*ast.DeleteClause)
	if len(del.Variables) != 1 || del.Variables[0] != "a" {
		t.Fatalf("unexpected DELETE variables: %+v", del.Variables)
	}
}

func TestParseRemoveBareVariableRejected(t *testing.T) {
	_, err := Parse(`MATCH (a:X) REMOVE a`)
	if err == nil {
		t.Fatalf("expected error rejecting entity removal via REMOVE")
	}
}

func TestParseExpressionPrecedence(t *testing.T) {
	stmt, err := Parse(`MATCH (a) WHERE a.x = 1 + 2 * 3 AND NOT a.y OR a.z RETURN a`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cs := stmt.(*ast.ClauseStatement)
	where := cs.Clauses[1].(*ast.WhereClause)
	top, ok := where.Expression.(*ast.BinaryExpr)
	if !ok || top.Op != ast.OpOr {
		t.Fatalf("expected top-level OR, got %+v", where.Expression)
	}
	and, ok := top.Left.(*ast.BinaryExpr)
	if !ok || and.Op != ast.OpAnd {
		t.Fatalf("expected AND nested under OR, got %+v", top.Left)
	}
	eq, ok := and.Left.(*ast.BinaryExpr)
	if !ok || eq.Op != ast.OpEq {
		t.Fatalf("expected = comparison, got %+v", and.Left)
	}
	sum, ok := eq.Right.(*ast.BinaryExpr)
	if !ok || sum.Op != ast.OpAdd {
		t.Fatalf("expected + at top of arithmetic, got %+v", eq.Right)
	}
	if _, ok := sum.Right.(*ast.BinaryExpr); !ok {
		t.Fatalf("expected * to bind tighter than +, got %+v", sum.Right)
	}
}

func TestParseCaseExpression(t *testing.T) {
	stmt, err := Parse(`MATCH (a) RETURN CASE WHEN a.x > 0 THEN 'pos' WHEN a.x < 0 THEN 'neg' ELSE 'zero' END`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cs := stmt.(*ast.ClauseStatement)
	ret := cs.Clauses[1].(*ast.ReturnClause)
	caseExpr, ok := ret.Items[0].Expression.(*ast.CaseExpr)
	if !ok {
		t.Fatalf("expected CaseExpr, got %T", ret.Items[0].Expression)
	}
	if len(caseExpr.Whens) != 2 || caseExpr.Else == nil {
		t.Fatalf("unexpected case shape: %+v", caseExpr)
	}
}

func TestParseFunctionCallWithDistinctAndAlias(t *testing.T) {
	stmt, err := Parse(`MATCH (a) RETURN COUNT(DISTINCT a.x) AS total`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cs := stmt.(*ast.ClauseStatement)
	ret := cs.Clauses[1].(*ast.ReturnClause)
	call, ok := ret.Items[0].Expression.(*ast.FunctionCall)
	if !ok || call.Name != "COUNT" || !call.Distinct {
		t.Fatalf("unexpected function call: %+v", ret.Items[0].Expression)
	}
	if ret.Items[0].Alias != "total" {
		t.Fatalf("expected alias 'total', got %q", ret.Items[0].Alias)
	}
}

func TestParseExistsSubquery(t *testing.T) {
	stmt, err := Parse(`MATCH (a:Person) WHERE EXISTS { MATCH (a)-[:KNOWS]->(b:Person) } RETURN a`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cs := stmt.(*ast.ClauseStatement)
	where := cs.Clauses[1].(*ast.WhereClause)
	sub, ok := where.Expression.(*ast.SubqueryExpr)
	if !ok || sub.Kind != ast.SubqueryExists {
		t.Fatalf("expected SubqueryExists, got %+v", where.Expression)
	}
}

func TestParseUnionAllSetOp(t *testing.T) {
	stmt, err := Parse(`MATCH (a:X) RETURN a.k UNION ALL MATCH (b:Y) RETURN b.k`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	setOp, ok := stmt.(*ast.SetOpStatement)
	if !ok || setOp.Op != ast.SetOpUnionAll {
		t.Fatalf("expected SetOpUnionAll, got %+v", stmt)
	}
}

func TestParseTransactionControl(t *testing.T) {
	for src, kind := range map[string]ast.TxControlKind{
		"BEGIN":             ast.TxBegin,
		"COMMIT TRANSACTION": ast.TxCommit,
		"ROLLBACK":          ast.TxAbort,
	} {
		stmt, err := Parse(src)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", src, err)
		}
		tc, ok := stmt.(*ast.TransactionControlStatement)
		if !ok || tc.Kind != kind {
			t.Fatalf("unexpected statement for %q: %+v", src, stmt)
		}
	}
}

func TestParseTextIndexDDL(t *testing.T) {
	stmt, err := Parse(`CREATE TEXT INDEX idx1 ON Doc (body)`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ddl, ok := stmt.(*ast.TextIndexDDLStatement)
	if !ok || ddl.Kind != ast.TextIndexCreate || ddl.Name != "idx1" || ddl.Label != "Doc" || ddl.Field != "body" {
		t.Fatalf("unexpected DDL statement: %+v", stmt)
	}

	stmt2, err := Parse(`DROP TEXT INDEX idx1`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ddl2 := stmt2.(*ast.TextIndexDDLStatement)
	if ddl2.Kind != ast.TextIndexDrop || ddl2.Name != "idx1" {
		t.Fatalf("unexpected drop DDL: %+v", ddl2)
	}
}

func TestParseMalformedQueryProducesParseError(t *testing.T) {
	_, err := Parse(`MATCH (a:Person WHERE a.age > 25 RETURN a`)
	if err == nil {
		t.Fatalf("expected a parse error for an unclosed node pattern")
	}
	pe, ok := err.(*ast.ParseError)
	if !ok {
		t.Fatalf("expected *ast.ParseError, got %T", err)
	}
	if pe.Expected == "" {
		t.Fatalf("expected a non-empty Expected field")
	}
}
