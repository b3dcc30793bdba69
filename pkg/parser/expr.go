package parser

import (
	"strconv"

	"github.com/vertexql/vertexql/pkg/ast"
	"github.com/vertexql/vertexql/pkg/lexer"
)

// parseExpression is the precedence-climbing entry point, following the
// same layered-function shape as most hand-written descent parsers in the
// pack (lowest-precedence wrapper calling into tighter-binding levels):
// OR < AND < NOT < comparison/IN/MATCHES < additive < multiplicative <
// unary < primary/postfix.
func (p *Parser) parseExpression() (ast.Expression, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (ast.Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.TokenOR) {
		loc := p.advance().Location
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Location: loc, Op: ast.OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expression, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.TokenAND) {
		loc := p.advance().Location
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Location: loc, Op: ast.OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (ast.Expression, error) {
	if p.at(lexer.TokenNOT) {
		loc := p.advance().Location
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Location: loc, Op: ast.OpNot, Operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() (ast.Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	switch p.cur().Kind {
	case lexer.TokenNOT:
		if p.peekAhead(1).Kind != lexer.TokenIN {
			break
		}
		loc := p.advance().Location
		p.advance() // consume IN
		if p.at(lexer.TokenLBrace) {
			query, err := p.parseBracedClauseStatement()
			if err != nil {
				return nil, err
			}
			return &ast.SubqueryExpr{Location: loc, Kind: ast.SubqueryNotIn, Query: query, Probe: left}, nil
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Location: loc, Op: ast.OpNot, Operand: &ast.BinaryExpr{Location: loc, Op: ast.OpIn, Left: left, Right: right}}, nil
	case lexer.TokenEq:
		return p.parseBinaryRHS(left, ast.OpEq, p.parseAdditive)
	case lexer.TokenNeq:
		return p.parseBinaryRHS(left, ast.OpNeq, p.parseAdditive)
	case lexer.TokenLt:
		return p.parseBinaryRHS(left, ast.OpLt, p.parseAdditive)
	case lexer.TokenLe:
		return p.parseBinaryRHS(left, ast.OpLe, p.parseAdditive)
	case lexer.TokenGt:
		return p.parseBinaryRHS(left, ast.OpGt, p.parseAdditive)
	case lexer.TokenGe:
		return p.parseBinaryRHS(left, ast.OpGe, p.parseAdditive)
	case lexer.TokenIN:
		loc := p.advance().Location
		if p.at(lexer.TokenLBrace) {
			query, err := p.parseBracedClauseStatement()
			if err != nil {
				return nil, err
			}
			return &ast.SubqueryExpr{Location: loc, Kind: ast.SubqueryIn, Query: query, Probe: left}, nil
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ast.BinaryExpr{Location: loc, Op: ast.OpIn, Left: left, Right: right}, nil
	case lexer.TokenTilde, lexer.TokenMATCHES:
		// `field ~= 'query'` desugars to a FUZZY_MATCH function call so the
		// executor has a single call-shaped path for every text predicate,
		// per spec.md §6.
		loc := p.advance().Location
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ast.FunctionCall{Location: loc, Name: "FUZZY_MATCH", Args: []ast.Expression{left, right}}, nil
	}
	return left, nil
}

func (p *Parser) parseBinaryRHS(left ast.Expression, op ast.BinaryOp, next func() (ast.Expression, error)) (ast.Expression, error) {
	loc := p.advance().Location
	right, err := next()
	if err != nil {
		return nil, err
	}
	return &ast.BinaryExpr{Location: loc, Op: op, Left: left, Right: right}, nil
}

func (p *Parser) parseAdditive() (ast.Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.TokenPlus) || p.at(lexer.TokenMinus) || p.at(lexer.TokenDash) {
		op := ast.OpAdd
		if p.cur().Kind == lexer.TokenMinus || p.cur().Kind == lexer.TokenDash {
			op = ast.OpSub
		}
		loc := p.advance().Location
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Location: loc, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.TokenStar) || p.at(lexer.TokenSlash) {
		op := ast.OpMul
		if p.cur().Kind == lexer.TokenSlash {
			op = ast.OpDiv
		}
		loc := p.advance().Location
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Location: loc, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expression, error) {
	if p.at(lexer.TokenMinus) || p.at(lexer.TokenDash) {
		loc := p.advance().Location
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Location: loc, Op: ast.OpNeg, Operand: operand}, nil
	}
	return p.parsePostfix()
}

// parsePostfix handles property access (`.field`) and index/slice
// (`[i]`, `[a..b]`) chains applied to a primary expression.
func (p *Parser) parsePostfix() (ast.Expression, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().Kind {
		case lexer.TokenDot:
			loc := p.advance().Location
			name, err := p.expect(lexer.TokenIdent, "a property name")
			if err != nil {
				return nil, err
			}
			expr = &ast.PropertyAccess{Location: loc, Target: expr, Property: name.Text}
		case lexer.TokenLBracket:
			loc := p.advance().Location
			var idx, end ast.Expression
			if !p.at(lexer.TokenDotDot) {
				idx, err = p.parseExpression()
				if err != nil {
					return nil, err
				}
			}
			if p.at(lexer.TokenDotDot) {
				p.advance()
				if !p.at(lexer.TokenRBracket) {
					end, err = p.parseExpression()
					if err != nil {
						return nil, err
					}
				}
			}
			if _, err := p.expect(lexer.TokenRBracket, "]"); err != nil {
				return nil, err
			}
			expr = &ast.ArrayIndex{Location: loc, Target: expr, Index: idx, EndIndex: end}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.Expression, error) {
	tok := p.cur()
	switch tok.Kind {
	case lexer.TokenNumber:
		p.advance()
		n, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return nil, &ast.ParseError{Expected: "a valid number", Found: tok.Text, Location: tok.Location}
		}
		return &ast.Literal{Location: tok.Location, Kind: ast.LitNumber, Num: n}, nil
	case lexer.TokenString:
		p.advance()
		return &ast.Literal{Location: tok.Location, Kind: ast.LitString, Str: tok.Text}, nil
	case lexer.TokenTRUE:
		p.advance()
		return &ast.Literal{Location: tok.Location, Kind: ast.LitBool, Bool: true}, nil
	case lexer.TokenFALSE:
		p.advance()
		return &ast.Literal{Location: tok.Location, Kind: ast.LitBool, Bool: false}, nil
	case lexer.TokenNULL:
		p.advance()
		return &ast.Literal{Location: tok.Location, Kind: ast.LitNull}, nil
	case lexer.TokenParam:
		p.advance()
		return &ast.Variable{Location: tok.Location, Name: "$" + tok.Text}, nil
	case lexer.TokenLParen:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenRParen, ")"); err != nil {
			return nil, err
		}
		return expr, nil
	case lexer.TokenLBracket:
		p.advance()
		var items []ast.Expression
		for !p.at(lexer.TokenRBracket) {
			item, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			if p.at(lexer.TokenComma) {
				p.advance()
			}
		}
		p.advance() // consume ]
		return &ast.ListExpr{Location: tok.Location, Items: items}, nil
	case lexer.TokenCASE:
		return p.parseCaseExpr()
	case lexer.TokenEXISTS:
		return p.parseExistsSubquery()
	case lexer.TokenNOT:
		return p.parseNotExistsSubquery()
	case lexer.TokenIdent:
		return p.parseIdentOrCall()
	}
	return nil, p.errorf("an expression", tok)
}

func (p *Parser) parseIdentOrCall() (ast.Expression, error) {
	tok := p.advance()
	if p.at(lexer.TokenLParen) {
		p.advance()
		call := &ast.FunctionCall{Location: tok.Location, Name: tok.Text}
		if p.at(lexer.TokenDISTINCT) {
			p.advance()
			call.Distinct = true
		}
		if p.at(lexer.TokenStar) {
			p.advance()
			call.Args = append(call.Args, &ast.Variable{Location: p.cur().Location, Name: "*"})
		} else {
			for !p.at(lexer.TokenRParen) {
				arg, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				call.Args = append(call.Args, arg)
				if p.at(lexer.TokenComma) {
					p.advance()
				}
			}
		}
		if _, err := p.expect(lexer.TokenRParen, ")"); err != nil {
			return nil, err
		}
		return call, nil
	}
	return &ast.Variable{Location: tok.Location, Name: tok.Text}, nil
}

func (p *Parser) parseCaseExpr() (ast.Expression, error) {
	loc := p.advance().Location // consume CASE
	expr := &ast.CaseExpr{Location: loc}
	if !p.at(lexer.TokenWHEN) {
		operand, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		expr.Operand = operand
	}
	for p.at(lexer.TokenWHEN) {
		p.advance()
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenTHEN, "THEN"); err != nil {
			return nil, err
		}
		result, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		expr.Whens = append(expr.Whens, ast.CaseWhen{Condition: cond, Result: result})
	}
	if len(expr.Whens) == 0 {
		return nil, p.errorf("WHEN", p.cur())
	}
	if p.at(lexer.TokenELSE) {
		p.advance()
		elseExpr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		expr.Else = elseExpr
	}
	if _, err := p.expect(lexer.TokenEND, "END"); err != nil {
		return nil, err
	}
	return expr, nil
}

// parseExistsSubquery handles `EXISTS { <clauses> }` and, via
// parseNotExistsSubquery, `NOT EXISTS { <clauses> }`, per spec.md §4.5's
// four subquery expression forms. IN/NOT IN subqueries reuse the same
// brace-delimited clause body on the right of an IN comparison, handled
// directly in parseComparison.
func (p *Parser) parseExistsSubquery() (ast.Expression, error) {
	loc := p.advance().Location // consume EXISTS
	query, err := p.parseBracedClauseStatement()
	if err != nil {
		return nil, err
	}
	return &ast.SubqueryExpr{Location: loc, Kind: ast.SubqueryExists, Query: query}, nil
}

func (p *Parser) parseNotExistsSubquery() (ast.Expression, error) {
	save := p.pos
	loc := p.advance().Location // tentatively consume NOT
	if !p.at(lexer.TokenEXISTS) {
		p.pos = save
		return p.parseNotFallback()
	}
	p.advance() // consume EXISTS
	query, err := p.parseBracedClauseStatement()
	if err != nil {
		return nil, err
	}
	return &ast.SubqueryExpr{Location: loc, Kind: ast.SubqueryNotExists, Query: query}, nil
}

// parseNotFallback handles a bare NOT <expr> reached through the primary
// level (e.g. inside a function argument list where parseNot's own
// recursive-descent entry point isn't on the call path).
func (p *Parser) parseNotFallback() (ast.Expression, error) {
	loc := p.advance().Location // consume NOT
	operand, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	return &ast.UnaryExpr{Location: loc, Op: ast.OpNot, Operand: operand}, nil
}

func (p *Parser) parseBracedClauseStatement() (*ast.ClauseStatement, error) {
	if _, err := p.expect(lexer.TokenLBrace, "{"); err != nil {
		return nil, err
	}
	stmt, err := p.parseClauseStatement()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenRBrace, "}"); err != nil {
		return nil, err
	}
	return stmt, nil
}
