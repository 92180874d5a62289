package wql

type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIllegal
	TokenIdent
	TokenName // backtick-quoted name
	TokenString
	TokenNumber
	TokenColon
	TokenColonColon
	TokenOperator // guard expression operators: == != < > <= >= && || + - * / %
	TokenComma
	TokenSemicolon
	TokenAssign
	TokenDot
	TokenLBrace
	TokenRBrace
	TokenLBracket
	TokenRBracket
	TokenLParen
	TokenRParen
	TokenDefine
	TokenTumbling
	TokenWindow
	TokenWith
	TokenEnd
	TokenSelect
	TokenFrom
	TokenWhere
	TokenInto
)

// Token is one lexical unit with its position in the source. Pos is the byte
// offset; Line and Column are 1-based.
type Token struct {
	Type   TokenType
	Value  string
	Pos    int
	Line   int
	Column int
}

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "end of input"
	case TokenIllegal:
		return "illegal token"
	case TokenIdent:
		return "identifier"
	case TokenName:
		return "`name`"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenColon:
		return "':'"
	case TokenColonColon:
		return "'::'"
	case TokenOperator:
		return "operator"
	case TokenComma:
		return "','"
	case TokenSemicolon:
		return "';'"
	case TokenAssign:
		return "'='"
	case TokenDot:
		return "'.'"
	case TokenLBrace:
		return "'{'"
	case TokenRBrace:
		return "'}'"
	case TokenLBracket:
		return "'['"
	case TokenRBracket:
		return "']'"
	case TokenLParen:
		return "'('"
	case TokenRParen:
		return "')'"
	case TokenDefine:
		return "'define'"
	case TokenTumbling:
		return "'tumbling'"
	case TokenWindow:
		return "'window'"
	case TokenWith:
		return "'with'"
	case TokenEnd:
		return "'end'"
	case TokenSelect:
		return "'select'"
	case TokenFrom:
		return "'from'"
	case TokenWhere:
		return "'where'"
	case TokenInto:
		return "'into'"
	default:
		return "unknown token"
	}
}

// Keywords are lowercase and case-sensitive; a misspelled keyword lexes as a
// plain identifier and fails at parse time with its position.
var keywords = map[string]TokenType{
	"define":   TokenDefine,
	"tumbling": TokenTumbling,
	"window":   TokenWindow,
	"with":     TokenWith,
	"end":      TokenEnd,
	"select":   TokenSelect,
	"from":     TokenFrom,
	"where":    TokenWhere,
	"into":     TokenInto,
}
