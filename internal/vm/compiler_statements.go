package vm

import "github.com/sjver/brace/internal/token"

// declaration compiles one top-level-or-block declaration and
// synchronizes on error, per spec.md §4.2 "Panic-mode synchronization".
func (p *Parser) declaration() {
	switch {
	case p.match(token.VAR):
		p.varDeclaration()
	case p.match(token.CLASS):
		p.classDeclaration()
	case p.match(token.FUN):
		p.funDeclaration()
	default:
		p.statement()
	}
	if p.panicMode {
		p.synchronize()
	}
}

func (p *Parser) statement() {
	switch {
	case p.match(token.PRINT):
		p.printStatement(false)
	case p.match(token.PRINTLN):
		p.printStatement(true)
	case p.match(token.EXIT):
		p.exitStatement()
	case p.match(token.IF):
		p.ifStatement()
	case p.match(token.WHILE):
		p.whileStatement()
	case p.match(token.FOR):
		p.forStatement()
	case p.match(token.FOREACH):
		p.foreachStatement()
	case p.match(token.RETURN):
		p.returnStatement()
	case p.match(token.LBRACE):
		p.comp.beginScope()
		p.block()
		p.endScope()
	default:
		p.expressionStatement()
	}
}

func (p *Parser) block() {
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		p.declaration()
	}
	p.consume(token.RBRACE, "expected '}' after block")
}

func (p *Parser) expressionStatement() {
	p.expression()
	p.chunk().WriteOp(OpUpdateLast, p.previous.Line)
	p.consume(token.SEMICOLON, "expected ';' after expression")
	p.chunk().WriteOp(OpPop, p.previous.Line)
}

func (p *Parser) printStatement(newline bool) {
	line := p.previous.Line
	p.expression()
	p.consume(token.SEMICOLON, "expected ';' after value")
	if newline {
		p.chunk().WriteOp(OpPrintLn, line)
	} else {
		p.chunk().WriteOp(OpPrint, line)
	}
}

func (p *Parser) exitStatement() {
	line := p.previous.Line
	if p.check(token.SEMICOLON) {
		p.chunk().WriteOp(OpConstant, line)
		p.chunk().WriteConstantIndex(p.makeConstant(NumberValue(0)), line)
	} else {
		p.expression()
	}
	p.consume(token.SEMICOLON, "expected ';' after Exit")
	p.chunk().WriteOp(OpExit, line)
}

// varDeclaration implements spec.md §4.2's "Var name [: Type] [= expr] ;".
func (p *Parser) varDeclaration() {
	line := p.previous.Line
	p.consume(token.IDENTIFIER, "expected variable name")
	name := p.previous.Lexeme

	annotated := false
	typ := AnyType()
	if p.match(token.COLON) {
		annotated = true
		typ = p.parseType()
	}

	// A local is declared before its initializer is compiled and kept at
	// depth -1 until after it, so reading it there is a compile error.
	isLocal := p.comp.scopeDepth > 0
	if isLocal {
		p.declareAndDefineVariable(name, typ, line)
		p.comp.locals[p.comp.localCount-1].Depth = -1
	}

	if p.match(token.EQUAL) {
		p.expression()
	} else {
		p.emitDefaultFor(typ, line)
	}
	p.consume(token.SEMICOLON, "expected ';' after variable declaration")

	if annotated {
		p.emitAssertType(typ, line)
	}
	if isLocal {
		p.comp.markInitialized()
		return
	}
	p.declareAndDefineVariable(name, typ, line)
}

func (p *Parser) emitDefaultFor(t DataType, line int) {
	switch {
	case t.IsAny:
		p.chunk().WriteOp(OpNull, line)
	case t.Kind == ValNumber:
		p.emitConstant(NumberValue(0))
	case t.Kind == ValBool:
		p.chunk().WriteOp(OpFalse, line)
	case t.Kind == ValObj && t.ObjKind == ObjString:
		p.emitConstant(ObjValue(p.internString("")))
	case t.Kind == ValObj && t.ObjKind == ObjArray:
		p.chunk().WriteOp(OpArray, line)
		p.chunk().Write(0, line)
		p.chunk().Write(0, line)
	default:
		p.chunk().WriteOp(OpNull, line)
	}
}

func (p *Parser) emitAssertType(t DataType, line int) {
	typeIdx := p.makeConstant(TypeValue(t))
	msgIdx := p.makeConstant(ObjValue(p.internString("Expected value of type %s but got %s")))
	p.chunk().WriteOp(OpAssertType, line)
	p.chunk().WriteConstantIndex(typeIdx, line)
	p.chunk().WriteConstantIndex(msgIdx, line)
}

// declareAndDefineVariable either declares a local (if inside a scope) or
// emits DEFINE_GLOBAL (at global scope), per spec.md §4.2's "Variable
// access emission".
func (p *Parser) declareAndDefineVariable(name string, typ DataType, line int) {
	if p.comp.scopeDepth > 0 {
		for i := p.comp.localCount - 1; i >= 0; i-- {
			if p.comp.locals[i].Depth != -1 && p.comp.locals[i].Depth < p.comp.scopeDepth {
				break
			}
			if p.comp.locals[i].Name == name {
				p.errorAtPrevious("variable with this name already declared in this scope")
			}
		}
		if !p.comp.addLocal(name, typ) {
			p.errorAtPrevious("too many local variables in function")
			return
		}
		p.comp.markInitialized()
		return
	}
	nameIdx := p.identifierConstant(name)
	typeIdx := p.makeConstant(TypeValue(typ))
	p.chunk().WriteOp(OpDefineGlobal, line)
	p.chunk().WriteConstantIndex(nameIdx, line)
	p.chunk().WriteConstantIndex(typeIdx, line)
}

// ifStatement implements spec.md §4.2's short-forward-jump pattern.
func (p *Parser) ifStatement() {
	p.consume(token.LPAREN, "expected '(' after If")
	p.expression()
	p.consume(token.RPAREN, "expected ')' after condition")

	thenJump := p.chunk().WriteJump(OpJumpIfFalse, p.previous.Line)
	p.chunk().WriteOp(OpPop, p.previous.Line)
	p.statement()

	elseJump := p.chunk().WriteJump(OpJump, p.previous.Line)
	p.chunk().PatchJump(thenJump)
	p.chunk().WriteOp(OpPop, p.previous.Line)

	if p.match(token.ELSE) {
		p.statement()
	}
	p.chunk().PatchJump(elseJump)
}

func (p *Parser) whileStatement() {
	loopStart := len(p.chunk().Code)
	p.consume(token.LPAREN, "expected '(' after While")
	p.expression()
	p.consume(token.RPAREN, "expected ')' after condition")

	exitJump := p.chunk().WriteJump(OpJumpIfFalse, p.previous.Line)
	p.chunk().WriteOp(OpPop, p.previous.Line)
	p.statement()
	p.chunk().EmitLoop(OpJumpBack, loopStart, p.previous.Line)

	p.chunk().PatchJump(exitJump)
	p.chunk().WriteOp(OpPop, p.previous.Line)
}

// forStatement desugars the classic three-part loop, compiling the
// incrementer out-of-order via the forward-jump trick of spec.md §4.2.
func (p *Parser) forStatement() {
	p.comp.beginScope()
	p.consume(token.LPAREN, "expected '(' after For")

	if p.match(token.SEMICOLON) {
		// no initializer
	} else if p.match(token.VAR) {
		p.forVarInitializer()
	} else {
		p.expressionStatement()
	}

	loopStart := len(p.chunk().Code)
	exitJump := -1
	if !p.match(token.SEMICOLON) {
		p.expression()
		p.consume(token.SEMICOLON, "expected ';' after loop condition")
		exitJump = p.chunk().WriteJump(OpJumpIfFalse, p.previous.Line)
		p.chunk().WriteOp(OpPop, p.previous.Line)
	}

	if !p.match(token.RPAREN) {
		bodyJump := p.chunk().WriteJump(OpJump, p.previous.Line)
		incrStart := len(p.chunk().Code)
		p.expression()
		p.chunk().WriteOp(OpPop, p.previous.Line)
		p.consume(token.RPAREN, "expected ')' after for clauses")

		p.chunk().EmitLoop(OpJumpBack, loopStart, p.previous.Line)
		loopStart = incrStart
		p.chunk().PatchJump(bodyJump)
	}

	p.statement()
	p.chunk().EmitLoop(OpJumpBack, loopStart, p.previous.Line)

	if exitJump != -1 {
		p.chunk().PatchJump(exitJump)
		p.chunk().WriteOp(OpPop, p.previous.Line)
	}
	p.endScope()
}

// forVarInitializer compiles `Var x = e;` as the for-loop's init clause
// without going through declareAndDefineVariable's global path (a for
// header always opens a scope first).
func (p *Parser) forVarInitializer() {
	line := p.previous.Line
	p.consume(token.IDENTIFIER, "expected variable name")
	name := p.previous.Lexeme
	typ := AnyType()
	if p.match(token.COLON) {
		typ = p.parseType()
	}
	if p.match(token.EQUAL) {
		p.expression()
	} else {
		p.emitDefaultFor(typ, line)
	}
	p.consume(token.SEMICOLON, "expected ';' after loop initializer")
	p.declareAndDefineVariable(name, typ, line)
}

// foreachStatement implements spec.md §4.2's documented (and
// deliberately preserved) iteration protocol: see DESIGN.md Open
// Question 1 for why the exit test reuses JUMP_IF_FALSE on the
// remaining-length counter rather than a dedicated loop-counter opcode.
func (p *Parser) foreachStatement() {
	line := p.previous.Line
	p.comp.beginScope()
	p.consume(token.LPAREN, "expected '(' after Foreach")
	p.consume(token.IDENTIFIER, "expected loop variable name")
	itemName := p.previous.Lexeme
	p.consume(token.COLON, "expected ':' in Foreach")

	p.chunk().WriteOp(OpNull, line)
	p.comp.addLocal(itemName, AnyType())
	p.comp.markInitialized()
	itemSlot := byte(p.comp.localCount - 1)

	p.expression() // array
	p.consume(token.RPAREN, "expected ')' after Foreach clause")

	p.chunk().WriteOp(OpDuplicate, line)
	p.chunk().Write(0, line)
	p.chunk().WriteOp(OpArrayLength, line)

	loopStart := len(p.chunk().Code)
	exitJump := p.chunk().WriteJump(OpJumpIfFalse, line)

	p.chunk().WriteOp(OpDuplicate, line)
	p.chunk().Write(1, line)
	p.chunk().WriteOp(OpDuplicate, line)
	p.chunk().Write(1, line)
	p.chunk().WriteOp(OpNegate, line)
	p.chunk().WriteOp(OpGetIndex, line)
	p.chunk().WriteOp(OpSetLocal, line)
	p.chunk().Write(itemSlot, line)

	p.statement()

	p.chunk().WriteOp(OpPop, line)
	p.chunk().WriteOp(OpDecrement, line)
	p.chunk().EmitLoop(OpJumpBack, loopStart, line)

	p.chunk().PatchJump(exitJump)
	p.chunk().WriteOp(OpPop, line)
	p.chunk().WriteOp(OpPop, line)
	p.endScope()
}

func (p *Parser) returnStatement() {
	line := p.previous.Line
	if p.comp.kind == KindScript {
		p.errorAtPrevious("can't return from top-level script")
	}
	if p.match(token.SEMICOLON) {
		p.emitReturn()
		return
	}
	if p.comp.kind == KindInitializer {
		p.errorAtPrevious("can't return a value from an initializer")
	}
	p.expression()
	p.consume(token.SEMICOLON, "expected ';' after return value")
	p.chunk().WriteOp(OpReturn, line)
}

// funDeclaration compiles `Fun name [-> RetType] (params) { body }`.
func (p *Parser) funDeclaration() {
	line := p.previous.Line
	p.consume(token.IDENTIFIER, "expected function name")
	name := p.previous.Lexeme
	p.declareFunctionName(name, line)
	p.function(name, KindFunction)
}

func (p *Parser) declareFunctionName(name string, line int) {
	if p.comp.scopeDepth > 0 {
		p.comp.addLocal(name, AnyType())
		p.comp.markInitialized()
	}
}

func (p *Parser) function(name string, kind FunctionKind) {
	enclosing := p.comp
	p.comp = newCompiler(enclosing, kind, name)
	p.heap.setCompilerChain(p.comp)
	p.comp.beginScope()

	if p.match(token.ARROW) {
		p.comp.function.ReturnType = p.parseType()
	}

	p.consume(token.LPAREN, "expected '(' after function name")
	if !p.check(token.RPAREN) {
		for {
			p.comp.function.Arity++
			p.consume(token.IDENTIFIER, "expected parameter name")
			paramName := p.previous.Lexeme
			paramType := AnyType()
			if p.match(token.COLON) {
				paramType = p.parseType()
			}
			p.comp.addLocal(paramName, paramType)
			p.comp.markInitialized()
			p.comp.function.ParamTypes = append(p.comp.function.ParamTypes, paramType)
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RPAREN, "expected ')' after parameters")

	p.consume(token.LBRACE, "expected '{' before function body")
	p.block()

	inner := p.comp
	fn := p.endCompiler()
	idx := p.makeConstant(ObjValue(fn))
	p.chunk().WriteOp(OpClosure, p.previous.Line)
	p.chunk().WriteConstantIndex(idx, p.previous.Line)
	for i := 0; i < fn.UpvalueCount; i++ {
		up := inner.upvalues[i]
		if up.IsLocal {
			p.chunk().Write(1, p.previous.Line)
		} else {
			p.chunk().Write(0, p.previous.Line)
		}
		p.chunk().Write(up.Index, p.previous.Line)
	}

	if kind == KindFunction && p.comp.scopeDepth == 0 {
		nameIdx := p.identifierConstant(name)
		typeIdx := p.makeConstant(TypeValue(DataType{Kind: ValObj, ObjKind: ObjClosure}))
		p.chunk().WriteOp(OpDefineGlobal, p.previous.Line)
		p.chunk().WriteConstantIndex(nameIdx, p.previous.Line)
		p.chunk().WriteConstantIndex(typeIdx, p.previous.Line)
	}
}

// classDeclaration implements spec.md §4.2's `Cls Name [< Super] { ... }`.
func (p *Parser) classDeclaration() {
	line := p.previous.Line
	p.consume(token.IDENTIFIER, "expected class name")
	name := p.previous.Lexeme
	nameIdx := p.identifierConstant(name)
	p.declareFunctionName(name, line)

	p.chunk().WriteOp(OpClass, line)
	p.chunk().WriteConstantIndex(nameIdx, line)

	if p.comp.scopeDepth == 0 {
		typeIdx := p.makeConstant(TypeValue(DataType{Kind: ValObj, ObjKind: ObjClass}))
		p.chunk().WriteOp(OpDefineGlobal, line)
		p.chunk().WriteConstantIndex(nameIdx, line)
		p.chunk().WriteConstantIndex(typeIdx, line)
	}

	classComp := &ClassCompiler{enclosing: p.class}
	p.class = classComp

	if p.match(token.LESS) {
		p.consume(token.IDENTIFIER, "expected superclass name")
		if p.previous.Lexeme == name {
			p.errorAtPrevious("a class can't inherit from itself")
		}
		p.namedVariable(p.previous.Lexeme, false)

		p.comp.beginScope()
		p.comp.addLocal("super", AnyType())
		p.comp.markInitialized()

		p.namedVariable(name, false)
		p.chunk().WriteOp(OpInherit, line)
		classComp.hasSuperclass = true
	}

	p.namedVariable(name, false)
	p.consume(token.LBRACE, "expected '{' before class body")
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		p.classMember()
	}
	p.consume(token.RBRACE, "expected '}' after class body")
	p.chunk().WriteOp(OpPop, p.previous.Line)

	if classComp.hasSuperclass {
		p.endScope()
	}
	p.class = p.class.enclosing
}

func (p *Parser) classMember() {
	line := p.current.Line
	if p.match(token.VAR) {
		p.consume(token.IDENTIFIER, "expected field name")
		fname := p.previous.Lexeme
		typ := AnyType()
		if p.match(token.COLON) {
			typ = p.parseType()
		}
		if p.match(token.EQUAL) {
			p.expression()
		} else {
			p.emitDefaultFor(typ, line)
		}
		p.consume(token.SEMICOLON, "expected ';' after field declaration")
		nameIdx := p.identifierConstant(fname)
		typeIdx := p.makeConstant(TypeValue(typ))
		p.chunk().WriteOp(OpDefineField, line)
		p.chunk().WriteConstantIndex(nameIdx, line)
		p.chunk().WriteConstantIndex(typeIdx, line)
		return
	}
	p.consume(token.FUN, "expected field or method declaration")
	p.consume(token.IDENTIFIER, "expected method name")
	mname := p.previous.Lexeme
	kind := KindMethod
	if mname == "Init" {
		kind = KindInitializer
	}
	p.method(mname, kind)
}

func (p *Parser) method(name string, kind FunctionKind) {
	p.function(name, kind)
	nameIdx := p.identifierConstant(name)
	p.chunk().WriteOp(OpMethod, p.previous.Line)
	p.chunk().WriteConstantIndex(nameIdx, p.previous.Line)
}
