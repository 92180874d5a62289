package wql

import (
	"strconv"
	"strings"
)

// Parser turns DSL source text into a sequence of top-level statements.
type Parser struct {
	input string
	lexer *Lexer
	cur   Token
	peek  Token
}

func NewParser(input string) *Parser {
	p := &Parser{
		input: input,
		lexer: NewLexer(input),
	}
	p.next()
	p.next()
	return p
}

// Parse is a convenience wrapper parsing a whole source unit.
func Parse(input string) ([]Statement, error) {
	return NewParser(input).Parse()
}

func (p *Parser) next() {
	p.cur = p.peek
	p.peek = p.lexer.NextToken()
}

func (p *Parser) expect(t TokenType) (Token, error) {
	if p.cur.Type != t {
		return p.cur, newUnexpectedTokenError(p.cur, t.String())
	}
	tok := p.cur
	p.next()
	return tok, nil
}

// Parse consumes the whole input and returns the statement sequence, or the
// first error with its position.
func (p *Parser) Parse() ([]Statement, error) {
	var stmts []Statement
	for p.cur.Type != TokenEOF {
		switch p.cur.Type {
		case TokenDefine:
			stmt, err := p.parseDefine()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, stmt)
		case TokenSelect:
			stmt, err := p.parseSelect()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, stmt)
		case TokenIllegal:
			return nil, newUnexpectedTokenError(p.cur)
		default:
			return nil, newSyntaxError("expected a statement", p.cur, "'define'", "'select'")
		}
	}
	return stmts, nil
}

// parseDefine parses `define tumbling window `name` with key = value, ... end;`.
func (p *Parser) parseDefine() (*DefineWindowStatement, error) {
	start := p.cur
	p.next() // define

	if _, err := p.expect(TokenTumbling); err != nil {
		return nil, newSyntaxError("unsupported window kind", p.cur, "'tumbling'")
	}
	if _, err := p.expect(TokenWindow); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(TokenName)
	if err != nil {
		return nil, err
	}

	stmt := &DefineWindowStatement{
		Name:   nameTok.Value,
		Kind:   "tumbling",
		Line:   start.Line,
		Column: start.Column,
	}

	if _, err := p.expect(TokenWith); err != nil {
		return nil, err
	}
	for p.cur.Type != TokenEnd {
		keyTok, err := p.expect(TokenIdent)
		if err != nil {
			return nil, newUnexpectedTokenError(p.cur, "option name", "'end'")
		}
		if _, err := p.expect(TokenAssign); err != nil {
			return nil, err
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Options = append(stmt.Options, WindowOption{Key: keyTok.Value, Value: value})

		if p.cur.Type == TokenComma {
			p.next()
			continue
		}
		break
	}
	if _, err := p.expect(TokenEnd); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenSemicolon); err != nil {
		return nil, err
	}
	return stmt, nil
}

// parseSelect parses
// `select { "key": agg, ... } from stream[`w`, ...] [where cond] into out;`.
func (p *Parser) parseSelect() (*SelectStatement, error) {
	start := p.cur
	p.next() // select

	stmt := &SelectStatement{Line: start.Line, Column: start.Column}

	if _, err := p.expect(TokenLBrace); err != nil {
		return nil, err
	}
	if p.cur.Type == TokenRBrace {
		return nil, newSyntaxError("select clause must not be empty", p.cur, "string key")
	}
	for {
		keyTok, err := p.expect(TokenString)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenColon); err != nil {
			return nil, err
		}
		exprTok := p.cur
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		agg, ok := value.(*CallExpr)
		if !ok {
			return nil, newSyntaxError("aggregate function call expected", exprTok, "module::function(...)")
		}
		stmt.Fields = append(stmt.Fields, SelectField{
			Key:    keyTok.Value,
			Agg:    agg,
			Line:   keyTok.Line,
			Column: keyTok.Column,
		})

		if p.cur.Type == TokenComma {
			p.next()
			if p.cur.Type == TokenRBrace {
				break // trailing comma
			}
			continue
		}
		break
	}
	if _, err := p.expect(TokenRBrace); err != nil {
		return nil, err
	}

	if _, err := p.expect(TokenFrom); err != nil {
		return nil, err
	}
	srcTok, err := p.expect(TokenIdent)
	if err != nil {
		return nil, err
	}
	stmt.Source = srcTok.Value

	if _, err := p.expect(TokenLBracket); err != nil {
		return nil, err
	}
	for {
		nameTok, err := p.expect(TokenName)
		if err != nil {
			return nil, err
		}
		stmt.Windows = append(stmt.Windows, nameTok.Value)
		if p.cur.Type == TokenComma {
			p.next()
			continue
		}
		break
	}
	if _, err := p.expect(TokenRBracket); err != nil {
		return nil, err
	}

	if p.cur.Type == TokenWhere {
		p.next()
		raw, err := p.captureUntilInto()
		if err != nil {
			return nil, err
		}
		stmt.Where = raw
	}

	if _, err := p.expect(TokenInto); err != nil {
		return nil, err
	}
	intoTok, err := p.expect(TokenIdent)
	if err != nil {
		return nil, err
	}
	stmt.Into = intoTok.Value

	if _, err := p.expect(TokenSemicolon); err != nil {
		return nil, err
	}
	return stmt, nil
}

// captureUntilInto captures the raw guard expression text between `where`
// and `into`. The guard is compiled later by the plan builder; the parser
// only delimits it.
func (p *Parser) captureUntilInto() (string, error) {
	startTok := p.cur
	for p.cur.Type != TokenInto {
		if p.cur.Type == TokenEOF || p.cur.Type == TokenSemicolon {
			return "", newSyntaxError("unterminated where clause", p.cur, "'into'")
		}
		if p.cur.Type == TokenIllegal {
			return "", newUnexpectedTokenError(p.cur)
		}
		p.next()
	}
	raw := strings.TrimSpace(p.input[startTok.Pos:p.cur.Pos])
	if raw == "" {
		return "", newSyntaxError("empty where clause", startTok, "guard expression")
	}
	return raw, nil
}

// parseExpr parses an option value or aggregate argument: a number, a
// string, a namespaced call, or an event field reference.
func (p *Parser) parseExpr() (Expr, error) {
	switch p.cur.Type {
	case TokenNumber:
		return p.parseNumber()
	case TokenString:
		tok := p.cur
		p.next()
		return &StringLiteral{Value: tok.Value}, nil
	case TokenIdent:
		return p.parsePathExpr()
	default:
		return nil, newUnexpectedTokenError(p.cur, "number", "string", "identifier")
	}
}

func (p *Parser) parseNumber() (Expr, error) {
	tok := p.cur
	p.next()
	if !strings.Contains(tok.Value, ".") {
		i, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return nil, newSyntaxError("invalid number", tok)
		}
		return &NumberLiteral{Value: float64(i), Int: i, IsInt: true}, nil
	}
	f, err := strconv.ParseFloat(tok.Value, 64)
	if err != nil {
		return nil, newSyntaxError("invalid number", tok)
	}
	return &NumberLiteral{Value: f}, nil
}

// parsePathExpr parses either a namespaced call (idents joined by '::' or
// ':', ending in an argument list) or a field reference (idents joined by
// '.', with optional bracket indexes).
func (p *Parser) parsePathExpr() (Expr, error) {
	first := p.cur
	p.next()

	if p.cur.Type == TokenColonColon || p.cur.Type == TokenColon {
		path := []string{first.Value}
		for p.cur.Type == TokenColonColon || p.cur.Type == TokenColon {
			p.next()
			seg, err := p.expect(TokenIdent)
			if err != nil {
				return nil, err
			}
			path = append(path, seg.Value)
		}
		return p.parseCallArgs(path, first)
	}

	if p.cur.Type == TokenLParen {
		return p.parseCallArgs([]string{first.Value}, first)
	}

	// Field reference.
	var raw strings.Builder
	raw.WriteString(first.Value)
	for {
		switch p.cur.Type {
		case TokenDot:
			p.next()
			seg, err := p.expect(TokenIdent)
			if err != nil {
				return nil, err
			}
			raw.WriteByte('.')
			raw.WriteString(seg.Value)
		case TokenLBracket:
			p.next()
			switch p.cur.Type {
			case TokenNumber:
				raw.WriteByte('[')
				raw.WriteString(p.cur.Value)
				raw.WriteByte(']')
				p.next()
			case TokenString:
				raw.WriteString(`["`)
				raw.WriteString(p.cur.Value)
				raw.WriteString(`"]`)
				p.next()
			default:
				return nil, newUnexpectedTokenError(p.cur, "index", "string key")
			}
			if _, err := p.expect(TokenRBracket); err != nil {
				return nil, err
			}
		default:
			return &FieldRef{Raw: raw.String()}, nil
		}
	}
}

func (p *Parser) parseCallArgs(path []string, start Token) (Expr, error) {
	call := &CallExpr{
		Module: path[:len(path)-1],
		Func:   path[len(path)-1],
		Line:   start.Line,
		Column: start.Column,
	}
	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	if p.cur.Type == TokenRParen {
		p.next()
		return call, nil
	}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if p.cur.Type == TokenComma {
			p.next()
			continue
		}
		break
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return call, nil
}
