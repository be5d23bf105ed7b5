package vm

import (
	"fmt"

	"github.com/sjver/brace/internal/lexer"
	"github.com/sjver/brace/internal/token"
)

// Precedence is the Pratt parser's precedence ladder, low to high, per
// spec.md §4.2.
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment
	PrecTernary
	PrecOr
	PrecAnd
	PrecEquality
	PrecComparison
	PrecTerm
	PrecFactor
	PrecUnary
	PrecCall
	PrecPrimary
)

type (
	prefixFn func(p *Parser, canAssign bool)
	infixFn  func(p *Parser, canAssign bool)
)

// ParseRule is one row of the Pratt parse table.
type ParseRule struct {
	Prefix     prefixFn
	Infix      infixFn
	Precedence Precedence
}

// Parser drives the single-pass compile: scanner + current/previous
// tokens + the active Compiler and ClassCompiler chains + accumulated
// diagnostics. This is the "engine context" spec.md §9 calls for: no
// package-level scanner/parser singletons.
type Parser struct {
	lex *lexer.Lexer

	current  token.Token
	previous token.Token

	hadError  bool
	panicMode bool
	errors    []string

	comp  *Compiler
	class *ClassCompiler

	heap *Heap
}

var rules map[token.Kind]ParseRule

func init() {
	rules = map[token.Kind]ParseRule{
		token.LPAREN:        {grouping, call, PrecCall},
		token.LBRACKET:      {arrayLiteral, index, PrecCall},
		token.DOT:           {nil, dot, PrecCall},
		token.MINUS:         {unary, binary, PrecTerm},
		token.PLUS:          {nil, binary, PrecTerm},
		token.SLASH:         {nil, binary, PrecFactor},
		token.STAR:          {nil, binary, PrecFactor},
		token.PERCENT:       {nil, binary, PrecFactor},
		token.BANG:          {unary, nil, PrecNone},
		token.BANG_EQUAL:    {nil, binary, PrecEquality},
		token.EQUAL_EQUAL:   {nil, binary, PrecEquality},
		token.GREATER:       {nil, binary, PrecComparison},
		token.GREATER_EQUAL: {nil, binary, PrecComparison},
		token.LESS:          {nil, binary, PrecComparison},
		token.LESS_EQUAL:    {nil, binary, PrecComparison},
		token.AND_AND:       {nil, and_, PrecAnd},
		token.OR_OR:         {nil, or_, PrecOr},
		token.QUESTION:      {nil, ternary, PrecTernary},
		token.IDENTIFIER:    {variable, nil, PrecNone},
		token.STRING:        {stringLiteral, nil, PrecNone},
		token.NUMBER:        {number, nil, PrecNone},
		token.TRUE:          {literal, nil, PrecNone},
		token.FALSE:         {literal, nil, PrecNone},
		token.NULL:          {literal, nil, PrecNone},
		token.THIS:          {this_, nil, PrecNone},
		token.SUPER:         {super_, nil, PrecNone},
		token.PLUS_PLUS:     {nil, postfix, PrecCall},
		token.MINUS_MINUS:   {nil, postfix, PrecCall},
		token.PLUS_EQUAL:    {nil, compoundAssign, PrecAssignment},
		token.MINUS_EQUAL:   {nil, compoundAssign, PrecAssignment},
	}
}

func getRule(k token.Kind) ParseRule {
	if r, ok := rules[k]; ok {
		return r
	}
	return ParseRule{nil, nil, PrecNone}
}

// Compile performs the single-pass compile of src into a top-level
// Function wrapping a Chunk. On error it returns a *CompileError and no
// function, per spec.md §7.
func Compile(src string, heap *Heap) (*Function, error) {
	p := &Parser{lex: lexer.New(src), heap: heap}
	p.comp = newCompiler(nil, KindScript, "")
	heap.setCompilerChain(p.comp)

	p.advance()
	for !p.match(token.EOF) {
		p.declaration()
	}
	fn := p.endCompiler()
	heap.setCompilerChain(nil)

	if p.hadError {
		return nil, &CompileError{Diagnostics: p.errors}
	}
	return fn, nil
}

func (p *Parser) endCompiler() *Function {
	p.emitReturn()
	fn := p.comp.function
	if p.comp.enclosing != nil {
		p.heap.setCompilerChain(p.comp.enclosing)
	}
	p.comp = p.comp.enclosing
	return fn
}

func (p *Parser) emitReturn() {
	line := p.previous.Line
	if p.comp.kind == KindInitializer {
		p.chunk().WriteOp(OpGetLocal, line)
		p.chunk().Write(0, line)
	} else {
		p.chunk().WriteOp(OpNull, line)
	}
	p.chunk().WriteOp(OpReturn, line)
}

func (p *Parser) chunk() *Chunk { return p.comp.chunk() }

// --- token stream plumbing ---------------------------------------------

func (p *Parser) advance() {
	p.previous = p.current
	for {
		p.current = p.lex.NextToken()
		if p.current.Kind != token.ERROR {
			break
		}
		p.errorAtCurrent(p.current.Message)
	}
}

func (p *Parser) check(k token.Kind) bool { return p.current.Kind == k }

func (p *Parser) match(k token.Kind) bool {
	if !p.check(k) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) consume(k token.Kind, msg string) {
	if p.current.Kind == k {
		p.advance()
		return
	}
	p.errorAtCurrent(msg)
}

func (p *Parser) errorAtCurrent(msg string) { p.errorAt(p.current, msg) }
func (p *Parser) errorAtPrevious(msg string) { p.errorAt(p.previous, msg) }

func (p *Parser) errorAt(tok token.Token, msg string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	lexeme := tok.Lexeme
	if tok.Kind == token.EOF {
		lexeme = "end"
	}
	p.errors = append(p.errors, fmt.Sprintf("[line %d] Error at '%s': %s", tok.Line, lexeme, msg))
	p.hadError = true
}

// synchronize implements panic-mode recovery: spec.md §4.2.
func (p *Parser) synchronize() {
	p.panicMode = false
	for p.current.Kind != token.EOF {
		if p.previous.Kind == token.SEMICOLON {
			return
		}
		switch p.current.Kind {
		case token.CLASS, token.FUN, token.VAR, token.FOR, token.FOREACH,
			token.EXIT, token.IF, token.WHILE, token.PRINT, token.PRINTLN, token.RETURN:
			return
		}
		p.advance()
	}
}

// --- constant emission helpers ------------------------------------------

func (p *Parser) makeConstant(v Value) int {
	idx := p.chunk().AddConstant(v)
	if idx >= MaxConstantsPerChunk {
		p.errorAtPrevious("too many constants in one chunk")
	}
	return idx
}

func (p *Parser) emitConstant(v Value) {
	idx := p.makeConstant(v)
	p.chunk().WriteOp(OpConstant, p.previous.Line)
	p.chunk().WriteConstantIndex(idx, p.previous.Line)
}

func (p *Parser) internString(s string) *String {
	return p.heap.internString(s)
}

func (p *Parser) identifierConstant(name string) int {
	return p.makeConstant(ObjValue(p.internString(name)))
}

// --- Pratt core -----------------------------------------------------------

func (p *Parser) parsePrecedence(prec Precedence) {
	p.advance()
	rule := getRule(p.previous.Kind)
	if rule.Prefix == nil {
		p.errorAtPrevious("expected expression")
		return
	}
	canAssign := prec <= PrecAssignment
	rule.Prefix(p, canAssign)

	for prec <= getRule(p.current.Kind).Precedence {
		p.advance()
		infix := getRule(p.previous.Kind).Infix
		infix(p, canAssign)
	}

	if canAssign && (p.match(token.EQUAL) || p.check(token.PLUS_EQUAL) || p.check(token.MINUS_EQUAL)) {
		p.errorAtPrevious("invalid assignment target")
	}
}

func (p *Parser) expression() {
	p.parsePrecedence(PrecAssignment)
}

// parseType parses an optional `: Type`/`-> Type` annotation identifier
// into a DataType. `Any` is the wildcard; anything else names a primitive
// or a class (resolved structurally by name since classes are runtime
// values, not compile-time symbols).
func (p *Parser) parseType() DataType {
	p.consume(token.IDENTIFIER, "expected type name")
	return typeFromName(p.previous.Lexeme)
}

func typeFromName(name string) DataType {
	switch name {
	case "Any":
		return AnyType()
	case "Null":
		return DataType{Kind: ValNull}
	case "Bool":
		return DataType{Kind: ValBool}
	case "Num":
		return DataType{Kind: ValNumber}
	case "Type":
		return DataType{Kind: ValType}
	case "Str":
		return DataType{Kind: ValObj, ObjKind: ObjString}
	case "Arr":
		return DataType{Kind: ValObj, ObjKind: ObjArray}
	case "Fun":
		return DataType{Kind: ValObj, ObjKind: ObjClosure}
	case "Cls":
		return DataType{Kind: ValObj, ObjKind: ObjClass}
	case "Module":
		return DataType{Kind: ValObj, ObjKind: ObjModule}
	default:
		// Unknown names are treated as class names, but the class is not
		// resolved: the DataType records only "an Instance" (Class nil,
		// Invalid set), and ASSERT_TYPE accepts an instance of any class
		// for it.
		return DataType{Kind: ValObj, ObjKind: ObjInstance, Invalid: true}
	}
}

