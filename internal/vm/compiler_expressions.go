package vm

import (
	"strconv"

	"github.com/sjver/brace/internal/token"
)

// grouping compiles a parenthesized sub-expression.
func grouping(p *Parser, canAssign bool) {
	p.expression()
	p.consume(token.RPAREN, "expected ')' after expression")
}

// call compiles a `(args...)` suffix (PrecCall infix on '(').
func call(p *Parser, canAssign bool) {
	line := p.previous.Line
	argCount := argumentList(p)
	p.chunk().WriteOp(OpCall, line)
	p.chunk().Write(byte(argCount), line)
}

func argumentList(p *Parser) int {
	count := 0
	if !p.check(token.RPAREN) {
		for {
			p.expression()
			count++
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RPAREN, "expected ')' after arguments")
	return count
}

// arrayLiteral compiles `[e1, e2, ...]`.
func arrayLiteral(p *Parser, canAssign bool) {
	line := p.previous.Line
	count := 0
	if !p.check(token.RBRACKET) {
		for {
			p.expression()
			count++
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RBRACKET, "expected ']' after array elements")
	p.chunk().WriteOp(OpArray, line)
	p.chunk().Write(byte(count>>8), line)
	p.chunk().Write(byte(count), line)
}

// index compiles the infix `[expr]` indexing suffix, including assignment
// (`target[i] = v`). Compound forms (`target[i] += v`, `target[i]++`) are
// not compiled here; they end in the "invalid assignment target" error.
func index(p *Parser, canAssign bool) {
	line := p.previous.Line
	p.expression()
	p.consume(token.RBRACKET, "expected ']' after index")

	if canAssign && p.match(token.EQUAL) {
		p.expression()
		p.chunk().WriteOp(OpSetIndex, line)
		return
	}
	p.chunk().WriteOp(OpGetIndex, line)
}

// dot compiles `.name`, `.name(args)`, and `.name = value`.
func dot(p *Parser, canAssign bool) {
	line := p.previous.Line
	p.consume(token.IDENTIFIER, "expected property name after '.'")
	name := p.previous.Lexeme
	nameIdx := p.identifierConstant(name)

	if canAssign && p.match(token.EQUAL) {
		p.expression()
		p.chunk().WriteOp(OpSetProperty, line)
		p.chunk().WriteConstantIndex(nameIdx, line)
		return
	}
	if p.match(token.LPAREN) {
		argCount := argumentList(p)
		p.chunk().WriteOp(OpInvoke, line)
		p.chunk().WriteConstantIndex(nameIdx, line)
		p.chunk().Write(byte(argCount), line)
		return
	}
	p.chunk().WriteOp(OpGetProperty, line)
	p.chunk().WriteConstantIndex(nameIdx, line)
}

// unary compiles prefix `-` and `!`.
func unary(p *Parser, canAssign bool) {
	opKind := p.previous.Kind
	line := p.previous.Line
	p.parsePrecedence(PrecUnary)
	switch opKind {
	case token.MINUS:
		p.chunk().WriteOp(OpNegate, line)
	case token.BANG:
		p.chunk().WriteOp(OpNot, line)
	}
}

// binary compiles a left-associative infix arithmetic/comparison operator.
func binary(p *Parser, canAssign bool) {
	opKind := p.previous.Kind
	line := p.previous.Line
	rule := getRule(opKind)
	p.parsePrecedence(rule.Precedence + 1)

	switch opKind {
	case token.PLUS:
		p.chunk().WriteOp(OpAdd, line)
	case token.MINUS:
		p.chunk().WriteOp(OpSub, line)
	case token.STAR:
		p.chunk().WriteOp(OpMul, line)
	case token.SLASH:
		p.chunk().WriteOp(OpDiv, line)
	case token.PERCENT:
		p.chunk().WriteOp(OpMod, line)
	case token.EQUAL_EQUAL:
		p.chunk().WriteOp(OpEqual, line)
	case token.BANG_EQUAL:
		p.chunk().WriteOp(OpEqual, line)
		p.chunk().WriteOp(OpNot, line)
	case token.GREATER:
		p.chunk().WriteOp(OpGreater, line)
	case token.GREATER_EQUAL:
		p.chunk().WriteOp(OpLess, line)
		p.chunk().WriteOp(OpNot, line)
	case token.LESS:
		p.chunk().WriteOp(OpLess, line)
	case token.LESS_EQUAL:
		p.chunk().WriteOp(OpGreater, line)
		p.chunk().WriteOp(OpNot, line)
	}
}

// and_ compiles short-circuiting `&&`.
func and_(p *Parser, canAssign bool) {
	line := p.previous.Line
	endJump := p.chunk().WriteJump(OpJumpIfFalse, line)
	p.chunk().WriteOp(OpPop, line)
	p.parsePrecedence(PrecAnd)
	p.chunk().PatchJump(endJump)
}

// or_ compiles short-circuiting `||`.
func or_(p *Parser, canAssign bool) {
	line := p.previous.Line
	elseJump := p.chunk().WriteJump(OpJumpIfFalse, line)
	endJump := p.chunk().WriteJump(OpJump, line)
	p.chunk().PatchJump(elseJump)
	p.chunk().WriteOp(OpPop, line)
	p.parsePrecedence(PrecOr)
	p.chunk().PatchJump(endJump)
}

// ternary compiles `cond ? then : else` into OP_TERNARY, per spec.md §4.2
// (both branches are evaluated eagerly; the opcode itself selects).
func ternary(p *Parser, canAssign bool) {
	line := p.previous.Line
	p.parsePrecedence(PrecTernary)
	p.consume(token.COLON, "expected ':' in ternary expression")
	p.parsePrecedence(PrecAssignment)
	p.chunk().WriteOp(OpTernary, line)
}

func number(p *Parser, canAssign bool) {
	n, _ := strconv.ParseFloat(p.previous.Lexeme, 64)
	p.emitConstant(NumberValue(n))
}

func stringLiteral(p *Parser, canAssign bool) {
	s := p.previous.Lexeme
	p.emitConstant(ObjValue(p.internString(s)))
}

func literal(p *Parser, canAssign bool) {
	line := p.previous.Line
	switch p.previous.Kind {
	case token.TRUE:
		p.chunk().WriteOp(OpTrue, line)
	case token.FALSE:
		p.chunk().WriteOp(OpFalse, line)
	case token.NULL:
		p.chunk().WriteOp(OpNull, line)
	}
}

// variable compiles a bare identifier reference or assignment.
func variable(p *Parser, canAssign bool) {
	p.namedVariable(p.previous.Lexeme, canAssign)
}

// namedVariable implements spec.md §4.2's variable-access resolution
// order: native variable -> local -> upvalue -> global, each with its
// matching GET/SET opcode pair, plus the compound-assignment and
// increment/decrement desugaring that reads-modifies-writes through
// whichever slot kind was resolved.
func (p *Parser) namedVariable(name string, canAssign bool) {
	line := p.previous.Line

	if nv, ok := LookupNativeVar(name); ok {
		if canAssign && p.match(token.EQUAL) {
			p.expression()
			p.chunk().WriteOp(OpSetNVar, line)
			p.chunk().Write(byte(nv), line)
			return
		}
		p.chunk().WriteOp(OpGetNVar, line)
		p.chunk().Write(byte(nv), line)
		return
	}

	var getOp, setOp Opcode
	var arg int
	if slot := p.comp.resolveLocal(p, name); slot != -1 {
		getOp, setOp, arg = OpGetLocal, OpSetLocal, slot
	} else if slot := p.comp.resolveUpvalue(p, name); slot != -1 {
		getOp, setOp, arg = OpGetUpvalue, OpSetUpvalue, slot
	} else {
		arg = p.identifierConstant(name)
		getOp, setOp = OpGetGlobal, OpSetGlobal
	}

	if canAssign && p.match(token.EQUAL) {
		p.expression()
		emitVarOp(p, setOp, arg, line)
		return
	}
	if canAssign && (p.check(token.PLUS_EQUAL) || p.check(token.MINUS_EQUAL)) {
		p.compileCompoundAssign(getOp, setOp, arg, line)
		return
	}
	if canAssign && (p.check(token.PLUS_PLUS) || p.check(token.MINUS_MINUS)) {
		p.compilePostfix(getOp, setOp, arg, line)
		return
	}
	emitVarOp(p, getOp, arg, line)
}

// compilePostfix desugars `name++` / `name--`: reads the slot, computes
// the incremented/decremented value, writes it back, and leaves the NEW
// value on the stack (spec.md §4.2: Brace's ++/-- is not a
// pre/post-distinguishing expression form).
func (p *Parser) compilePostfix(getOp, setOp Opcode, arg int, line int) {
	opKind := p.current.Kind
	p.advance() // consume ++ or --
	emitVarOp(p, getOp, arg, line)
	if opKind == token.PLUS_PLUS {
		p.chunk().WriteOp(OpIncrement, line)
	} else {
		p.chunk().WriteOp(OpDecrement, line)
	}
	emitVarOp(p, setOp, arg, line)
}

// compileCompoundAssign desugars `name += e` / `name -= e` into a
// get/compute/set sequence through whatever slot namedVariable resolved.
func (p *Parser) compileCompoundAssign(getOp, setOp Opcode, arg int, line int) {
	opKind := p.current.Kind
	p.advance() // consume += or -=
	emitVarOp(p, getOp, arg, line)
	p.expression()
	if opKind == token.PLUS_EQUAL {
		p.chunk().WriteOp(OpAdd, line)
	} else {
		p.chunk().WriteOp(OpSub, line)
	}
	emitVarOp(p, setOp, arg, line)
}

func emitVarOp(p *Parser, op Opcode, arg int, line int) {
	switch op {
	case OpGetGlobal, OpSetGlobal:
		p.chunk().WriteOp(op, line)
		p.chunk().WriteConstantIndex(arg, line)
	default:
		p.chunk().WriteOp(op, line)
		p.chunk().Write(byte(arg), line)
	}
}

// compoundAssign is the infix parse-table entry for a bare `+=`/`-=` met
// where namedVariable didn't already consume it (e.g. after `this.x`
// style targets are not supported here; this path only fires for plain
// identifiers reached through the normal infix loop on PrecAssignment).
func compoundAssign(p *Parser, canAssign bool) {
	p.errorAtPrevious("invalid assignment target")
}

// postfix is the infix parse-table entry for `++`/`--` reached on a
// non-identifier operand (e.g. `(a+b)++`); the identifier case is fully
// handled inside namedVariable/compilePostfix before the infix loop ever
// sees these tokens, so reaching here is always an invalid target.
func postfix(p *Parser, canAssign bool) {
	p.errorAtPrevious("invalid assignment target")
}

// this_ compiles the `this` keyword as a read of local slot 0, valid only
// inside a method or initializer body.
func this_(p *Parser, canAssign bool) {
	if p.class == nil {
		p.errorAtPrevious("can't use 'this' outside of a method")
		return
	}
	p.namedVariable("this", false)
}

// super_ compiles `super.name` and `super.name(args)`.
func super_(p *Parser, canAssign bool) {
	line := p.previous.Line
	if p.class == nil {
		p.errorAtPrevious("can't use 'super' outside of a class")
	} else if !p.class.hasSuperclass {
		p.errorAtPrevious("can't use 'super' in a class with no superclass")
	}
	p.consume(token.DOT, "expected '.' after 'super'")
	p.consume(token.IDENTIFIER, "expected superclass method name")
	nameIdx := p.identifierConstant(p.previous.Lexeme)

	p.namedVariable("this", false)
	if p.match(token.LPAREN) {
		argCount := argumentList(p)
		p.namedVariable("super", false)
		p.chunk().WriteOp(OpSuperInvoke, line)
		p.chunk().WriteConstantIndex(nameIdx, line)
		p.chunk().Write(byte(argCount), line)
		return
	}
	p.namedVariable("super", false)
	p.chunk().WriteOp(OpGetSuper, line)
	p.chunk().WriteConstantIndex(nameIdx, line)
}
