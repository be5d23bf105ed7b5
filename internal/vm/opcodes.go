package vm

// Opcode is a single byte instruction tag in a Chunk's bytecode stream.
type Opcode byte

const (
	OpConstant Opcode = iota
	OpNull
	OpTrue
	OpFalse
	OpPop
	OpDuplicate

	OpGetLocal
	OpSetLocal
	OpGetUpvalue
	OpSetUpvalue
	OpGetGlobal
	OpDefineGlobal
	OpSetGlobal
	OpGetNVar
	OpSetNVar
	OpUpdateLast

	OpDefineField
	OpGetProperty
	OpSetProperty
	OpGetSuper
	OpGetIndex
	OpSetIndex
	OpArrayLength
	OpArray

	OpEqual
	OpGreater
	OpLess
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod

	OpIncrement
	OpDecrement
	OpNegate
	OpNot

	OpAssertType

	OpPrint
	OpPrintLn

	OpJump
	OpJumpIfFalse
	OpJumpBack

	OpCall
	OpInvoke
	OpSuperInvoke

	OpClosure
	OpCloseUpvalue

	OpClass
	OpInherit
	OpMethod

	OpTernary

	OpImport

	OpReturn
	OpExit
	OpScriptEnd
)

var opcodeNames = map[Opcode]string{
	OpConstant:     "CONSTANT",
	OpNull:         "NULL",
	OpTrue:         "TRUE",
	OpFalse:        "FALSE",
	OpPop:          "POP",
	OpDuplicate:    "DUPLICATE",
	OpGetLocal:     "GET_LOCAL",
	OpSetLocal:     "SET_LOCAL",
	OpGetUpvalue:   "GET_UPVALUE",
	OpSetUpvalue:   "SET_UPVALUE",
	OpGetGlobal:    "GET_GLOBAL",
	OpDefineGlobal: "DEFINE_GLOBAL",
	OpSetGlobal:    "SET_GLOBAL",
	OpGetNVar:      "GET_NVAR",
	OpSetNVar:      "SET_NVAR",
	OpUpdateLast:   "UPDATE_LAST",
	OpDefineField:  "DEFINE_FIELD",
	OpGetProperty:  "GET_PROPERTY",
	OpSetProperty:  "SET_PROPERTY",
	OpGetSuper:     "GET_SUPER",
	OpGetIndex:     "GET_INDEX",
	OpSetIndex:     "SET_INDEX",
	OpArrayLength:  "ARRAY_LENGTH",
	OpArray:        "ARRAY",
	OpEqual:        "EQUAL",
	OpGreater:      "GREATER",
	OpLess:         "LESS",
	OpAdd:          "ADD",
	OpSub:          "SUB",
	OpMul:          "MUL",
	OpDiv:          "DIV",
	OpMod:          "MOD",
	OpIncrement:    "INCREMENT",
	OpDecrement:    "DECREMENT",
	OpNegate:       "NEGATE",
	OpNot:          "NOT",
	OpAssertType:   "ASSERT_TYPE",
	OpPrint:        "PRINT",
	OpPrintLn:      "PRINT_LN",
	OpJump:         "JUMP",
	OpJumpIfFalse:  "JUMP_IF_FALSE",
	OpJumpBack:     "JUMP_BACK",
	OpCall:         "CALL",
	OpInvoke:       "INVOKE",
	OpSuperInvoke:  "SUPER_INVOKE",
	OpClosure:      "CLOSURE",
	OpCloseUpvalue: "CLOSE_UPVALUE",
	OpClass:        "CLASS",
	OpInherit:      "INHERIT",
	OpMethod:       "METHOD",
	OpTernary:      "TERNARY",
	OpImport:       "IMPORT",
	OpReturn:       "RETURN",
	OpExit:         "EXIT",
	OpScriptEnd:    "SCRIPT_END",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

// NativeVar indexes the fixed set of lexically-recognized native variables.
type NativeVar byte

const (
	NVarBlank NativeVar = iota // "_"
	NVarLast                   // "_LAST"
	NVarFun                    // "_FUN"
	NVarScript                 // "_SCRIPT"
	nativeVarCount
)

var nativeVarNames = map[string]NativeVar{
	"_":       NVarBlank,
	"_LAST":   NVarLast,
	"_FUN":    NVarFun,
	"_SCRIPT": NVarScript,
}

// LookupNativeVar reports whether name is a reserved native variable.
func LookupNativeVar(name string) (NativeVar, bool) {
	v, ok := nativeVarNames[name]
	return v, ok
}
