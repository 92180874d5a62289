package wql

type Lexer struct {
	input   string
	pos     int
	readPos int
	ch      byte
	line    int
	column  int
}

func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0}
	l.readChar()
	return l
}

func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	tok := Token{Pos: l.pos, Line: l.line, Column: l.column}

	switch l.ch {
	case 0:
		tok.Type = TokenEOF
		return tok
	case ',':
		l.readChar()
		tok.Type, tok.Value = TokenComma, ","
		return tok
	case ';':
		l.readChar()
		tok.Type, tok.Value = TokenSemicolon, ";"
		return tok
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			tok.Type, tok.Value = TokenOperator, "=="
			return tok
		}
		l.readChar()
		tok.Type, tok.Value = TokenAssign, "="
		return tok
	case '+', '*', '/', '%':
		op := string(l.ch)
		l.readChar()
		tok.Type, tok.Value = TokenOperator, op
		return tok
	case '!', '<', '>':
		op := string(l.ch)
		l.readChar()
		if l.ch == '=' {
			op += "="
			l.readChar()
		}
		tok.Type, tok.Value = TokenOperator, op
		return tok
	case '&', '|':
		if l.peekChar() == l.ch {
			op := string(l.ch) + string(l.ch)
			l.readChar()
			l.readChar()
			tok.Type, tok.Value = TokenOperator, op
			return tok
		}
	case '.':
		l.readChar()
		tok.Type, tok.Value = TokenDot, "."
		return tok
	case '{':
		l.readChar()
		tok.Type, tok.Value = TokenLBrace, "{"
		return tok
	case '}':
		l.readChar()
		tok.Type, tok.Value = TokenRBrace, "}"
		return tok
	case '[':
		l.readChar()
		tok.Type, tok.Value = TokenLBracket, "["
		return tok
	case ']':
		l.readChar()
		tok.Type, tok.Value = TokenRBracket, "]"
		return tok
	case '(':
		l.readChar()
		tok.Type, tok.Value = TokenLParen, "("
		return tok
	case ')':
		l.readChar()
		tok.Type, tok.Value = TokenRParen, ")"
		return tok
	case ':':
		// '::' and ':' are equivalent for namespace paths; the parser
		// canonicalizes both to '::'. A single ':' also separates keys
		// from values in a select record.
		if l.peekChar() == ':' {
			l.readChar()
			l.readChar()
			tok.Type, tok.Value = TokenColonColon, "::"
			return tok
		}
		l.readChar()
		tok.Type, tok.Value = TokenColon, ":"
		return tok
	case '`':
		return l.readName(tok)
	case '"', '\'':
		return l.readString(tok, l.ch)
	}

	if isLetter(l.ch) {
		ident := l.readIdentifier()
		tok.Value = ident
		if kw, ok := keywords[ident]; ok {
			tok.Type = kw
		} else {
			tok.Type = TokenIdent
		}
		return tok
	}

	if isDigit(l.ch) || (l.ch == '-' && isDigit(l.peekChar())) {
		tok.Type = TokenNumber
		tok.Value = l.readNumber()
		return tok
	}

	if l.ch == '-' {
		// A '-' directly followed by a digit was consumed as a negative
		// number above; anything else is a guard operator.
		l.readChar()
		tok.Type, tok.Value = TokenOperator, "-"
		return tok
	}

	tok.Type = TokenIllegal
	tok.Value = string(l.ch)
	l.readChar()
	return tok
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
	l.column++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) readIdentifier() string {
	pos := l.pos
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[pos:l.pos]
}

func (l *Lexer) readNumber() string {
	pos := l.pos
	if l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) || l.ch == '.' {
		l.readChar()
	}
	return l.input[pos:l.pos]
}

// readName reads a backtick-quoted name. Any character except a backtick or
// newline is allowed inside.
func (l *Lexer) readName(tok Token) Token {
	l.readChar() // opening backtick
	pos := l.pos
	for l.ch != '`' && l.ch != 0 && l.ch != '\n' {
		l.readChar()
	}
	if l.ch != '`' {
		tok.Type = TokenIllegal
		tok.Value = "unterminated name"
		return tok
	}
	tok.Type = TokenName
	tok.Value = l.input[pos:l.pos]
	l.readChar() // closing backtick
	return tok
}

func (l *Lexer) readString(tok Token, quote byte) Token {
	l.readChar() // opening quote
	pos := l.pos
	for l.ch != quote && l.ch != 0 {
		l.readChar()
	}
	if l.ch != quote {
		tok.Type = TokenIllegal
		tok.Value = "unterminated string"
		return tok
	}
	tok.Type = TokenString
	tok.Value = l.input[pos:l.pos]
	l.readChar() // closing quote
	return tok
}

// skipWhitespaceAndComments skips whitespace and '#' line comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '#' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		return
	}
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
