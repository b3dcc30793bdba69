// Package parser implements the hand-written, recursive-descent parser
// spec.md §4.4 requires, turning lexer.Token streams into pkg/ast trees
// with a precedence-climbing expression sub-parser (see expr.go).
//
// Grounded structurally on the pack's krotik-eliasdb eql/parser (a real
// hand-rolled recursive-descent parser with LexToken lookahead), adapted
// to a Cypher/GQL-like clause grammar (MATCH/WHERE/WITH/RETURN/INSERT/
// SET/REMOVE/DELETE/UNWIND) instead of EliasDB's GET/LOOKUP/FROM query
// language, and enriched with the teacher's clause vocabulary
// (pkg/cypher/ast_builder.go's ASTClauseType enum) for which keywords a
// statement needs to recognize.
package parser

import (
	"strconv"
	"strings"

	"github.com/vertexql/vertexql/pkg/ast"
	"github.com/vertexql/vertexql/pkg/lexer"
)

type Parser struct {
	tokens []lexer.Token
	pos    int
}

// Parse tokenizes and parses src into a single top-level Statement.
func Parse(src string) (ast.Statement, error) {
	toks, err := lexer.New(src).Tokenize()
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: toks}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if !p.at(lexer.TokenEOF) {
		return nil, p.errorf("end of statement", p.cur())
	}
	return stmt, nil
}

func (p *Parser) cur() lexer.Token  { return p.tokens[p.pos] }
func (p *Parser) at(k lexer.TokenKind) bool { return p.cur().Kind == k }

func (p *Parser) advance() lexer.Token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k lexer.TokenKind, expected string) (lexer.Token, error) {
	if !p.at(k) {
		return lexer.Token{}, p.errorf(expected, p.cur())
	}
	return p.advance(), nil
}

func (p *Parser) errorf(expected string, found lexer.Token) error {
	text := found.Text
	if found.Kind == lexer.TokenEOF {
		text = "EOF"
	}
	return &ast.ParseError{Expected: expected, Found: text, Location: found.Location}
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	loc := p.cur().Location
	switch p.cur().Kind {
	case lexer.TokenBEGIN:
		p.advance()
		p.consumeOptional(lexer.TokenTRANSACTION)
		return &ast.TransactionControlStatement{Location: loc, Kind: ast.TxBegin}, nil
	case lexer.TokenCOMMIT:
		p.advance()
		p.consumeOptional(lexer.TokenTRANSACTION)
		return &ast.TransactionControlStatement{Location: loc, Kind: ast.TxCommit}, nil
	case lexer.TokenROLLBACK:
		p.advance()
		p.consumeOptional(lexer.TokenTRANSACTION)
		return &ast.TransactionControlStatement{Location: loc, Kind: ast.TxAbort}, nil
	case lexer.TokenUSE:
		p.advance()
		path, err := p.parseGraphPath()
		if err != nil {
			return nil, err
		}
		return &ast.SessionControlStatement{Location: loc, GraphPath: path}, nil
	case lexer.TokenCREATE, lexer.TokenDROP, lexer.TokenSHOW:
		if ddl, ok, err := p.tryParseTextIndexDDL(); ok || err != nil {
			return ddl, err
		}
	case lexer.TokenLET:
		return p.parseLetStatement()
	}

	left, err := p.parseClauseStatement()
	if err != nil {
		return nil, err
	}
	return p.parseSetOpTail(left)
}

func (p *Parser) consumeOptional(k lexer.TokenKind) {
	if p.at(k) {
		p.advance()
	}
}

func (p *Parser) parseGraphPath() (string, error) {
	// A graph path is written as a slash-separated identifier chain, e.g.
	// /schema/graph; the lexer tokenizes '/' as TokenSlash.
	var sb strings.Builder
	for p.at(lexer.TokenSlash) || p.at(lexer.TokenIdent) {
		t := p.advance()
		sb.WriteString(t.Text)
	}
	if sb.Len() == 0 {
		return "", p.errorf("a graph path", p.cur())
	}
	return sb.String(), nil
}

func (p *Parser) parseSetOpTail(left ast.Statement) (ast.Statement, error) {
	for {
		var op ast.SetOpKind
		switch p.cur().Kind {
		case lexer.TokenUNION:
			p.advance()
			if p.at(lexer.TokenALL) {
				p.advance()
				op = ast.SetOpUnionAll
			} else {
				op = ast.SetOpUnion
			}
		case lexer.TokenINTERSECT:
			p.advance()
			op = ast.SetOpIntersect
		case lexer.TokenEXCEPT:
			p.advance()
			op = ast.SetOpExcept
		default:
			return left, nil
		}
		right, err := p.parseClauseStatement()
		if err != nil {
			return nil, err
		}
		left = &ast.SetOpStatement{Location: left.Loc(), Op: op, Left: left, Right: right}
	}
}

// parseClauseStatement parses the clause sequence every read query and
// every mutating statement shares, per spec.md §1/§4.5.
func (p *Parser) parseClauseStatement() (*ast.ClauseStatement, error) {
	loc := p.cur().Location
	var clauses []ast.Clause
	for {
		clause, ok, err := p.tryParseClause()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		clauses = append(clauses, clause)
	}
	if len(clauses) == 0 {
		return nil, p.errorf("a clause (MATCH, INSERT, RETURN, ...)", p.cur())
	}
	return &ast.ClauseStatement{Location: loc, Clauses: clauses}, nil
}

func (p *Parser) tryParseClause() (ast.Clause, bool, error) {
	switch p.cur().Kind {
	case lexer.TokenOPTIONAL:
		p.advance()
		if _, err := p.expect(lexer.TokenMATCH, "MATCH"); err != nil {
			return nil, false, err
		}
		c, err := p.parseMatchClause(true)
		return c, true, err
	case lexer.TokenMATCH:
		p.advance()
		c, err := p.parseMatchClause(false)
		return c, true, err
	case lexer.TokenWHERE:
		c, err := p.parseWhereClause()
		return c, true, err
	case lexer.TokenWITH:
		c, err := p.parseWithClause()
		return c, true, err
	case lexer.TokenRETURN:
		c, err := p.parseReturnClause()
		return c, true, err
	case lexer.TokenUNWIND:
		c, err := p.parseUnwindClause()
		return c, true, err
	case lexer.TokenGROUP:
		c, err := p.parseGroupByClause()
		return c, true, err
	case lexer.TokenHAVING:
		c, err := p.parseHavingClause()
		return c, true, err
	case lexer.TokenINSERT:
		c, err := p.parseInsertClause()
		return c, true, err
	case lexer.TokenSET:
		c, err := p.parseSetClause()
		return c, true, err
	case lexer.TokenREMOVE:
		c, err := p.parseRemoveClause()
		return c, true, err
	case lexer.TokenDELETE:
		c, err := p.parseDeleteClause(false)
		return c, true, err
	case lexer.TokenDETACH:
		p.advance()
		if _, err := p.expect(lexer.TokenDELETE, "DELETE"); err != nil {
			return nil, false, err
		}
		c, err := p.parseDeleteClause(true)
		return c, true, err
	default:
		return nil, false, nil
	}
}

func (p *Parser) parseMatchClause(optional bool) (*ast.MatchClause, error) {
	loc := p.cur().Location
	pattern, err := p.parsePathPattern()
	if err != nil {
		return nil, err
	}
	return &ast.MatchClause{Location: loc, Pattern: pattern, Optional: optional}, nil
}

func (p *Parser) parseWhereClause() (*ast.WhereClause, error) {
	loc := p.advance().Location // consume WHERE
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.WhereClause{Location: loc, Expression: expr}, nil
}

func (p *Parser) parseProjectionItems() ([]ast.ProjectionItem, bool, error) {
	distinct := false
	if p.at(lexer.TokenDISTINCT) {
		p.advance()
		distinct = true
	}
	var items []ast.ProjectionItem
	for {
		if p.at(lexer.TokenStar) {
			p.advance()
			items = append(items, ast.ProjectionItem{Expression: &ast.FunctionCall{Name: "*"}})
		} else {
			expr, err := p.parseExpression()
			if err != nil {
				return nil, false, err
			}
			alias := ""
			if p.at(lexer.TokenAS) {
				p.advance()
				tok, err := p.expect(lexer.TokenIdent, "an alias")
				if err != nil {
					return nil, false, err
				}
				alias = tok.Text
			}
			items = append(items, ast.ProjectionItem{Expression: expr, Alias: alias})
		}
		if p.at(lexer.TokenComma) {
			p.advance()
			continue
		}
		break
	}
	return items, distinct, nil
}

func (p *Parser) parseOrderBy() ([]ast.OrderItem, error) {
	if !p.at(lexer.TokenORDER) {
		return nil, nil
	}
	p.advance()
	if _, err := p.expect(lexer.TokenBY, "BY"); err != nil {
		return nil, err
	}
	var items []ast.OrderItem
	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		desc := false
		if p.at(lexer.TokenASC) {
			p.advance()
		} else if p.at(lexer.TokenDESC) {
			p.advance()
			desc = true
		}
		items = append(items, ast.OrderItem{Expression: expr, Descending: desc})
		if p.at(lexer.TokenComma) {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

func (p *Parser) parseSkipLimit() (skip, limit ast.Expression, err error) {
	for {
		switch p.cur().Kind {
		case lexer.TokenSKIP:
			p.advance()
			if skip, err = p.parseExpression(); err != nil {
				return nil, nil, err
			}
		case lexer.TokenLIMIT:
			p.advance()
			if limit, err = p.parseExpression(); err != nil {
				return nil, nil, err
			}
		default:
			return skip, limit, nil
		}
	}
}

func (p *Parser) parseWithClause() (*ast.WithClause, error) {
	loc := p.advance().Location // consume WITH
	items, distinct, err := p.parseProjectionItems()
	if err != nil {
		return nil, err
	}
	var where *ast.WhereClause
	if p.at(lexer.TokenWHERE) {
		where, err = p.parseWhereClause()
		if err != nil {
			return nil, err
		}
	}
	orderBy, err := p.parseOrderBy()
	if err != nil {
		return nil, err
	}
	skip, limit, err := p.parseSkipLimit()
	if err != nil {
		return nil, err
	}
	return &ast.WithClause{Location: loc, Items: items, Distinct: distinct, Where: where, OrderBy: orderBy, Skip: skip, Limit: limit}, nil
}

func (p *Parser) parseReturnClause() (*ast.ReturnClause, error) {
	loc := p.advance().Location // consume RETURN
	items, distinct, err := p.parseProjectionItems()
	if err != nil {
		return nil, err
	}
	orderBy, err := p.parseOrderBy()
	if err != nil {
		return nil, err
	}
	skip, limit, err := p.parseSkipLimit()
	if err != nil {
		return nil, err
	}
	return &ast.ReturnClause{Location: loc, Items: items, Distinct: distinct, OrderBy: orderBy, Skip: skip, Limit: limit}, nil
}

func (p *Parser) parseUnwindClause() (*ast.UnwindClause, error) {
	loc := p.advance().Location // consume UNWIND
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenAS, "AS"); err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.TokenIdent, "a variable name")
	if err != nil {
		return nil, err
	}
	return &ast.UnwindClause{Location: loc, Expr: expr, As: name.Text}, nil
}

func (p *Parser) parseGroupByClause() (*ast.GroupByClause, error) {
	loc := p.advance().Location // consume GROUP
	if _, err := p.expect(lexer.TokenBY, "BY"); err != nil {
		return nil, err
	}
	var items []ast.Expression
	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		items = append(items, expr)
		if p.at(lexer.TokenComma) {
			p.advance()
			continue
		}
		break
	}
	return &ast.GroupByClause{Location: loc, Items: items}, nil
}

func (p *Parser) parseHavingClause() (*ast.HavingClause, error) {
	loc := p.advance().Location // consume HAVING
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.HavingClause{Location: loc, Expression: expr}, nil
}

func (p *Parser) parseLetStatement() (ast.Statement, error) {
	loc := p.advance().Location // consume LET
	var items []ast.ProjectionItem
	for {
		name, err := p.expect(lexer.TokenIdent, "a variable name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenEq, "="); err != nil {
			return nil, err
		}
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		items = append(items, ast.ProjectionItem{Expression: expr, Alias: name.Text})
		if p.at(lexer.TokenComma) {
			p.advance()
			continue
		}
		break
	}
	return &ast.ClauseStatement{Location: loc, Clauses: []ast.Clause{&ast.LetClause{Location: loc, Items: items}}}, nil
}

// ---- INSERT / SET / REMOVE / DELETE ----

func (p *Parser) parseInsertClause() (*ast.InsertClause, error) {
	loc := p.advance().Location // consume INSERT
	var patterns []ast.PathPattern
	for {
		pat, err := p.parsePathPattern()
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, pat)
		if p.at(lexer.TokenComma) {
			p.advance()
			continue
		}
		break
	}
	return &ast.InsertClause{Location: loc, Patterns: patterns}, nil
}

func (p *Parser) parseSetClause() (*ast.SetClause, error) {
	loc := p.advance().Location // consume SET
	var items []ast.SetItem
	for {
		varTok, err := p.expect(lexer.TokenIdent, "a variable")
		if err != nil {
			return nil, err
		}
		item := ast.SetItem{Variable: varTok.Text}
		switch p.cur().Kind {
		case lexer.TokenDot:
			p.advance()
			propTok, err := p.expect(lexer.TokenIdent, "a property name")
			if err != nil {
				return nil, err
			}
			item.Property = propTok.Text
			if _, err := p.expect(lexer.TokenEq, "="); err != nil {
				return nil, err
			}
			item.Value, err = p.parseExpression()
			if err != nil {
				return nil, err
			}
		case lexer.TokenColon:
			for p.at(lexer.TokenColon) {
				p.advance()
				labelTok, err := p.expect(lexer.TokenIdent, "a label")
				if err != nil {
					return nil, err
				}
				item.Labels = append(item.Labels, labelTok.Text)
			}
		default:
			return nil, p.errorf("'.' or ':'", p.cur())
		}
		items = append(items, item)
		if p.at(lexer.TokenComma) {
			p.advance()
			continue
		}
		break
	}
	return &ast.SetClause{Location: loc, Items: items}, nil
}

func (p *Parser) parseRemoveClause() (*ast.RemoveClause, error) {
	loc := p.advance().Location // consume REMOVE
	var items []ast.RemoveItem
	for {
		varTok, err := p.expect(lexer.TokenIdent, "a variable")
		if err != nil {
			return nil, err
		}
		item := ast.RemoveItem{Variable: varTok.Text}
		switch p.cur().Kind {
		case lexer.TokenDot:
			p.advance()
			propTok, err := p.expect(lexer.TokenIdent, "a property name")
			if err != nil {
				return nil, err
			}
			item.Property = propTok.Text
		case lexer.TokenColon:
			for p.at(lexer.TokenColon) {
				p.advance()
				labelTok, err := p.expect(lexer.TokenIdent, "a label")
				if err != nil {
					return nil, err
				}
				item.Labels = append(item.Labels, labelTok.Text)
			}
		default:
			// A bare variable in REMOVE (entity removal) is rejected per
			// spec.md §4.7 — that is DELETE's job.
			return nil, &ast.ParseError{
				Expected: "a property ('.' name) or label (':' Label) after REMOVE target; use DELETE to remove an entity",
				Found:    p.cur().Text,
				Location: p.cur().Location,
			}
		}
		items = append(items, item)
		if p.at(lexer.TokenComma) {
			p.advance()
			continue
		}
		break
	}
	return &ast.RemoveClause{Location: loc, Items: items}, nil
}

func (p *Parser) parseDeleteClause(detach bool) (*ast.DeleteClause, error) {
	loc := p.advance().Location // consume DELETE
	var vars []string
	for {
		tok, err := p.expect(lexer.TokenIdent, "a variable")
		if err != nil {
			return nil, err
		}
		vars = append(vars, tok.Text)
		if p.at(lexer.TokenComma) {
			p.advance()
			continue
		}
		break
	}
	return &ast.DeleteClause{Location: loc, Variables: vars, Detach: detach}, nil
}

// ---- TEXT INDEX DDL ----

func (p *Parser) tryParseTextIndexDDL() (ast.Statement, bool, error) {
	loc := p.cur().Location
	switch p.cur().Kind {
	case lexer.TokenCREATE:
		save := p.pos
		p.advance()
		if !p.at(lexer.TokenTEXT) {
			p.pos = save
			return nil, false, nil
		}
		p.advance()
		if _, err := p.expect(lexer.TokenINDEX, "INDEX"); err != nil {
			return nil, true, err
		}
		name, err := p.expect(lexer.TokenIdent, "an index name")
		if err != nil {
			return nil, true, err
		}
		if _, err := p.expect(lexer.TokenON, "ON"); err != nil {
			return nil, true, err
		}
		label, err := p.expect(lexer.TokenIdent, "a label")
		if err != nil {
			return nil, true, err
		}
		if _, err := p.expect(lexer.TokenLParen, "("); err != nil {
			return nil, true, err
		}
		field, err := p.expect(lexer.TokenIdent, "a field")
		if err != nil {
			return nil, true, err
		}
		if _, err := p.expect(lexer.TokenRParen, ")"); err != nil {
			return nil, true, err
		}
		opts := map[string]ast.Expression{}
		if p.at(lexer.TokenWITH) {
			p.advance()
			if _, err := p.expect(lexer.TokenOPTIONS, "OPTIONS"); err != nil {
				return nil, true, err
			}
			if _, err := p.expect(lexer.TokenLBrace, "{"); err != nil {
				return nil, true, err
			}
			for !p.at(lexer.TokenRBrace) {
				k, err := p.expect(lexer.TokenIdent, "an option name")
				if err != nil {
					return nil, true, err
				}
				if _, err := p.expect(lexer.TokenColon, ":"); err != nil {
					return nil, true, err
				}
				v, err := p.parseExpression()
				if err != nil {
					return nil, true, err
				}
				opts[k.Text] = v
				if p.at(lexer.TokenComma) {
					p.advance()
				}
			}
			p.advance() // consume }
		}
		return &ast.TextIndexDDLStatement{Location: loc, Kind: ast.TextIndexCreate, Name: name.Text, Label: label.Text, Field: field.Text, Options: opts}, true, nil

	case lexer.TokenDROP:
		save := p.pos
		p.advance()
		if !p.at(lexer.TokenTEXT) {
			p.pos = save
			return nil, false, nil
		}
		p.advance()
		if _, err := p.expect(lexer.TokenINDEX, "INDEX"); err != nil {
			return nil, true, err
		}
		name, err := p.expect(lexer.TokenIdent, "an index name")
		if err != nil {
			return nil, true, err
		}
		return &ast.TextIndexDDLStatement{Location: loc, Kind: ast.TextIndexDrop, Name: name.Text}, true, nil

	case lexer.TokenSHOW:
		save := p.pos
		p.advance()
		if !p.at(lexer.TokenTEXT) {
			p.pos = save
			return nil, false, nil
		}
		p.advance()
		if _, err := p.expect(lexer.TokenIdent, "INDEXES"); err != nil {
			return nil, true, err
		}
		return &ast.TextIndexDDLStatement{Location: loc, Kind: ast.TextIndexShow}, true, nil
	}
	return nil, false, nil
}

// ---- Patterns ----

func (p *Parser) parsePathPattern() (ast.PathPattern, error) {
	loc := p.cur().Location
	pathVar := ""
	if p.at(lexer.TokenIdent) && p.peekAhead(1).Kind == lexer.TokenEq {
		pathVar = p.advance().Text
		p.advance() // consume '='
	}

	first, err := p.parseNodePatternElem()
	if err != nil {
		return ast.PathPattern{}, err
	}
	pattern := ast.PathPattern{Location: loc, Variable: pathVar, Nodes: []ast.NodePatternElem{first}}

	for p.at(lexer.TokenDash) || p.at(lexer.TokenArrowLeft) {
		edge, err := p.parseEdgePatternElem()
		if err != nil {
			return ast.PathPattern{}, err
		}
		node, err := p.parseNodePatternElem()
		if err != nil {
			return ast.PathPattern{}, err
		}
		pattern.Edges = append(pattern.Edges, edge)
		pattern.Nodes = append(pattern.Nodes, node)
	}
	return pattern, nil
}

func (p *Parser) peekAhead(n int) lexer.Token {
	idx := p.pos + n
	if idx >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[idx]
}

func (p *Parser) parseNodePatternElem() (ast.NodePatternElem, error) {
	loc := p.cur().Location
	if _, err := p.expect(lexer.TokenLParen, "("); err != nil {
		return ast.NodePatternElem{}, err
	}
	elem := ast.NodePatternElem{Location: loc}
	if p.at(lexer.TokenIdent) {
		elem.Variable = p.advance().Text
	} else {
		elem.Anonymous = true
	}
	for p.at(lexer.TokenColon) {
		p.advance()
		labelTok, err := p.expect(lexer.TokenIdent, "a label")
		if err != nil {
			return ast.NodePatternElem{}, err
		}
		elem.Labels = append(elem.Labels, labelTok.Text)
	}
	if p.at(lexer.TokenLBrace) {
		props, err := p.parsePropertyMap()
		if err != nil {
			return ast.NodePatternElem{}, err
		}
		elem.Properties = props
	}
	if _, err := p.expect(lexer.TokenRParen, ")"); err != nil {
		return ast.NodePatternElem{}, err
	}
	return elem, nil
}

func (p *Parser) parseEdgePatternElem() (ast.EdgePatternElem, error) {
	loc := p.cur().Location
	leftArrow := false
	if p.at(lexer.TokenArrowLeft) {
		leftArrow = true
		p.advance()
	} else {
		if _, err := p.expect(lexer.TokenDash, "-"); err != nil {
			return ast.EdgePatternElem{}, err
		}
	}

	elem := ast.EdgePatternElem{Location: loc}
	hasBracket := false
	if p.at(lexer.TokenLBracket) {
		hasBracket = true
		p.advance()
		if p.at(lexer.TokenIdent) {
			elem.Variable = p.advance().Text
		}
		for p.at(lexer.TokenColon) || p.at(lexer.TokenPipe) {
			p.advance()
			labelTok, err := p.expect(lexer.TokenIdent, "an edge label")
			if err != nil {
				return ast.EdgePatternElem{}, err
			}
			elem.Labels = append(elem.Labels, labelTok.Text)
		}
		if p.at(lexer.TokenStar) {
			p.advance()
			if p.at(lexer.TokenNumber) {
				n, err := strconv.Atoi(p.advance().Text)
				if err != nil {
					return ast.EdgePatternElem{}, err
				}
				elem.MinHops = &n
				elem.MaxHops = &n
			}
			if p.at(lexer.TokenDotDot) {
				p.advance()
				if p.at(lexer.TokenNumber) {
					n, err := strconv.Atoi(p.advance().Text)
					if err != nil {
						return ast.EdgePatternElem{}, err
					}
					elem.MaxHops = &n
				}
			}
		}
		if p.at(lexer.TokenLBrace) {
			props, err := p.parsePropertyMap()
			if err != nil {
				return ast.EdgePatternElem{}, err
			}
			elem.Properties = props
		}
		if _, err := p.expect(lexer.TokenRBracket, "]"); err != nil {
			return ast.EdgePatternElem{}, err
		}
	}

	rightArrow := false
	if p.at(lexer.TokenArrowRight) {
		rightArrow = true
		p.advance()
	} else if !hasBracket && p.at(lexer.TokenDash) {
		p.advance()
	} else if hasBracket {
		if _, err := p.expect(lexer.TokenDash, "-"); err != nil {
			return ast.EdgePatternElem{}, err
		}
	}

	switch {
	case leftArrow && rightArrow:
		elem.Direction = ast.DirBoth
	case leftArrow:
		elem.Direction = ast.DirIn
	case rightArrow:
		elem.Direction = ast.DirOut
	default:
		elem.Direction = ast.DirUndirected
	}
	return elem, nil
}

func (p *Parser) parsePropertyMap() (map[string]ast.Expression, error) {
	if _, err := p.expect(lexer.TokenLBrace, "{"); err != nil {
		return nil, err
	}
	props := map[string]ast.Expression{}
	for !p.at(lexer.TokenRBrace) {
		key, err := p.expect(lexer.TokenIdent, "a property key")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenColon, ":"); err != nil {
			return nil, err
		}
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		props[key.Text] = val
		if p.at(lexer.TokenComma) {
			p.advance()
		}
	}
	if _, err := p.expect(lexer.TokenRBrace, "}"); err != nil {
		return nil, err
	}
	return props, nil
}
