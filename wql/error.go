package wql

import (
	"fmt"
	"strings"
)

// ErrorType classifies parse errors.
type ErrorType int

const (
	ErrorTypeSyntax ErrorType = iota
	ErrorTypeLexical
	ErrorTypeUnexpectedToken
	ErrorTypeUnterminated
)

// ParseError is a parse failure with its position and an expected-token
// description. It is fatal to loading the source unit it occurred in.
type ParseError struct {
	Type     ErrorType
	Message  string
	Position int
	Line     int
	Column   int
	Token    string
	Expected []string
}

func (e *ParseError) Error() string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("[%s] %s", e.typeName(), e.Message))
	if e.Line > 0 && e.Column > 0 {
		builder.WriteString(fmt.Sprintf(" at line %d, column %d", e.Line, e.Column))
	} else if e.Position >= 0 {
		builder.WriteString(fmt.Sprintf(" at position %d", e.Position))
	}
	if e.Token != "" {
		builder.WriteString(fmt.Sprintf(" (found '%s')", e.Token))
	}
	if len(e.Expected) > 0 {
		builder.WriteString(fmt.Sprintf(", expected: %s", strings.Join(e.Expected, ", ")))
	}

	return builder.String()
}

func (e *ParseError) typeName() string {
	switch e.Type {
	case ErrorTypeSyntax:
		return "SYNTAX_ERROR"
	case ErrorTypeLexical:
		return "LEXICAL_ERROR"
	case ErrorTypeUnexpectedToken:
		return "UNEXPECTED_TOKEN"
	case ErrorTypeUnterminated:
		return "UNTERMINATED"
	default:
		return "UNKNOWN_ERROR"
	}
}

func newSyntaxError(message string, tok Token, expected ...string) *ParseError {
	return &ParseError{
		Type:     ErrorTypeSyntax,
		Message:  message,
		Position: tok.Pos,
		Line:     tok.Line,
		Column:   tok.Column,
		Token:    tok.Value,
		Expected: expected,
	}
}

func newUnexpectedTokenError(tok Token, expected ...string) *ParseError {
	typ := ErrorTypeUnexpectedToken
	msg := fmt.Sprintf("unexpected %s", tok.Type)
	if tok.Type == TokenIllegal {
		typ = ErrorTypeLexical
		msg = tok.Value
		if !strings.HasPrefix(tok.Value, "unterminated") {
			msg = fmt.Sprintf("illegal character '%s'", tok.Value)
		}
	}
	return &ParseError{
		Type:     typ,
		Message:  msg,
		Position: tok.Pos,
		Line:     tok.Line,
		Column:   tok.Column,
		Token:    tok.Value,
		Expected: expected,
	}
}
