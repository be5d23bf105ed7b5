package vm

// FunctionKind distinguishes the four contexts a Compiler frame can be
// compiling for, mirroring spec.md §4.2.
type FunctionKind int

const (
	KindScript FunctionKind = iota
	KindFunction
	KindMethod
	KindInitializer
)

const maxLocals = 256

// Local is a single entry in a Compiler frame's lexical scope stack.
// Depth == -1 means declared-but-not-yet-initialized (spec.md §3
// invariant 3): reading it in its own initializer is a compile error.
type Local struct {
	Name       string
	Depth      int
	IsCaptured bool
	Type       DataType
}

// ClassCompiler tracks the class body currently being compiled, chained
// through enclosing classes to support (eventually) nested class bodies
// and to know whether `super` is in scope.
type ClassCompiler struct {
	enclosing     *ClassCompiler
	hasSuperclass bool
}

// Compiler is one stack frame of the compiler's own call stack: one per
// function/method/script currently being compiled, linked through
// enclosing. It owns the Function under construction and everything
// needed to resolve locals and upvalues lexically.
type Compiler struct {
	enclosing *Compiler
	function  *Function
	kind      FunctionKind

	locals     [maxLocals]Local
	localCount int
	upvalues   [maxLocals]UpvalueRef
	scopeDepth int
}

func newCompiler(enclosing *Compiler, kind FunctionKind, name string) *Compiler {
	c := &Compiler{enclosing: enclosing, kind: kind}
	c.function = &Function{Name: name, Chunk: NewChunk(), ReturnType: AnyType()}
	// Slot 0 is reserved: "this" in methods/initializers, empty otherwise.
	slotName := ""
	if kind == KindMethod || kind == KindInitializer {
		slotName = "this"
	}
	c.locals[0] = Local{Name: slotName, Depth: 0, Type: AnyType()}
	c.localCount = 1
	return c
}

func (c *Compiler) chunk() *Chunk { return c.function.Chunk }

func (c *Compiler) beginScope() { c.scopeDepth++ }

// endScope emits one POP/CLOSE_UPVALUE for every local that falls out of
// scope, so the stack shrinks by exactly the number of locals discarded
// (spec.md §8 invariant 3).
func (p *Parser) endScope() {
	c := p.comp
	c.scopeDepth--
	for c.localCount > 0 && c.locals[c.localCount-1].Depth > c.scopeDepth {
		local := c.locals[c.localCount-1]
		line := p.previous.Line
		if local.IsCaptured {
			c.chunk().WriteOp(OpCloseUpvalue, line)
		} else {
			c.chunk().WriteOp(OpPop, line)
		}
		c.localCount--
	}
}

// addLocal declares name in the current scope at depth -1 (uninitialized).
func (c *Compiler) addLocal(name string, typ DataType) bool {
	if c.localCount == maxLocals {
		return false
	}
	c.locals[c.localCount] = Local{Name: name, Depth: -1, Type: typ}
	c.localCount++
	return true
}

func (c *Compiler) markInitialized() {
	if c.scopeDepth == 0 {
		return
	}
	c.locals[c.localCount-1].Depth = c.scopeDepth
}

// resolveLocal returns the slot index of name in c's own frame, walking
// from the top of the locals array down, or -1 if not found. Finding a
// match whose Depth is still -1 is an error (reading a local in its own
// initializer).
func (c *Compiler) resolveLocal(p *Parser, name string) int {
	for i := c.localCount - 1; i >= 0; i-- {
		if c.locals[i].Name == name {
			if c.locals[i].Depth == -1 {
				p.errorAtPrevious("can't read local variable in its own initializer")
			}
			return i
		}
	}
	return -1
}

// addUpvalue records (or deduplicates) an upvalue entry in c's own
// upvalue array and returns its index.
func (c *Compiler) addUpvalue(p *Parser, index byte, isLocal bool) int {
	count := c.function.UpvalueCount
	for i := 0; i < count; i++ {
		up := c.upvalues[i]
		if up.Index == index && up.IsLocal == isLocal {
			return i
		}
	}
	if count == maxLocals {
		p.errorAtPrevious("too many closure variables in function")
		return 0
	}
	c.upvalues[count] = UpvalueRef{IsLocal: isLocal, Index: index}
	c.function.UpvalueCount++
	return count
}

// resolveUpvalue recursively searches the enclosing chain for name,
// marking the originating local as captured and threading an upvalue
// entry through every intermediate frame.
func (c *Compiler) resolveUpvalue(p *Parser, name string) int {
	if c.enclosing == nil {
		return -1
	}
	if local := c.enclosing.resolveLocal(p, name); local != -1 {
		c.enclosing.locals[local].IsCaptured = true
		return c.addUpvalue(p, byte(local), true)
	}
	if up := c.enclosing.resolveUpvalue(p, name); up != -1 {
		return c.addUpvalue(p, byte(up), false)
	}
	return -1
}
