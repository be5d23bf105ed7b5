package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of chunk's bytecode, kept
// as debugging infrastructure (not wired into the production CLI path,
// available to tests and a future `-disasm` developer flag).
func Disassemble(chunk *Chunk, name string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("== %s ==\n", name))
	offset := 0
	for offset < len(chunk.Code) {
		offset = disassembleInstruction(&sb, chunk, offset)
	}
	return sb.String()
}

func disassembleInstruction(sb *strings.Builder, chunk *Chunk, offset int) int {
	sb.WriteString(fmt.Sprintf("%04d ", offset))
	if offset > 0 && chunk.Lines[offset] == chunk.Lines[offset-1] {
		sb.WriteString("   | ")
	} else {
		sb.WriteString(fmt.Sprintf("%4d ", chunk.Lines[offset]))
	}

	op := Opcode(chunk.Code[offset])
	switch op {
	case OpConstant:
		return constantInstruction(sb, op.String(), chunk, offset)
	case OpNull, OpTrue, OpFalse, OpPop:
		return simpleInstruction(sb, op.String(), offset)
	case OpDuplicate:
		return byteInstruction(sb, op.String(), chunk, offset)

	case OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue, OpGetNVar, OpSetNVar:
		return byteInstruction(sb, op.String(), chunk, offset)
	case OpGetGlobal, OpSetGlobal:
		return constantInstruction(sb, op.String(), chunk, offset)
	case OpDefineGlobal, OpDefineField:
		return twoConstantInstruction(sb, op.String(), chunk, offset)
	case OpUpdateLast:
		return simpleInstruction(sb, op.String(), offset)

	case OpGetProperty, OpSetProperty, OpGetSuper:
		return constantInstruction(sb, op.String(), chunk, offset)
	case OpGetIndex, OpSetIndex, OpArrayLength:
		return simpleInstruction(sb, op.String(), offset)
	case OpArray:
		return shortInstruction(sb, op.String(), chunk, offset)

	case OpEqual, OpGreater, OpLess, OpAdd, OpSub, OpMul, OpDiv, OpMod,
		OpIncrement, OpDecrement, OpNegate, OpNot, OpTernary:
		return simpleInstruction(sb, op.String(), offset)

	case OpAssertType:
		return twoConstantInstruction(sb, op.String(), chunk, offset)

	case OpPrint, OpPrintLn:
		return simpleInstruction(sb, op.String(), offset)

	case OpJump, OpJumpIfFalse:
		return jumpInstruction(sb, op.String(), 1, chunk, offset)
	case OpJumpBack:
		return jumpInstruction(sb, op.String(), -1, chunk, offset)

	case OpCall:
		return byteInstruction(sb, op.String(), chunk, offset)
	case OpInvoke, OpSuperInvoke:
		return invokeInstruction(sb, op.String(), chunk, offset)

	case OpClosure:
		return closureInstruction(sb, op.String(), chunk, offset)
	case OpCloseUpvalue:
		return simpleInstruction(sb, op.String(), offset)

	case OpClass:
		return constantInstruction(sb, op.String(), chunk, offset)
	case OpInherit:
		return simpleInstruction(sb, op.String(), offset)
	case OpMethod:
		return constantInstruction(sb, op.String(), chunk, offset)

	case OpImport, OpReturn, OpExit, OpScriptEnd:
		return simpleInstruction(sb, op.String(), offset)

	default:
		sb.WriteString(fmt.Sprintf("unknown opcode %d\n", op))
		return offset + 1
	}
}

func simpleInstruction(sb *strings.Builder, name string, offset int) int {
	sb.WriteString(name + "\n")
	return offset + 1
}

func byteInstruction(sb *strings.Builder, name string, chunk *Chunk, offset int) int {
	slot := chunk.Code[offset+1]
	sb.WriteString(fmt.Sprintf("%-16s %4d\n", name, slot))
	return offset + 2
}

func shortInstruction(sb *strings.Builder, name string, chunk *Chunk, offset int) int {
	n := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
	sb.WriteString(fmt.Sprintf("%-16s %4d\n", name, n))
	return offset + 3
}

func constantInstruction(sb *strings.Builder, name string, chunk *Chunk, offset int) int {
	idx := chunk.ReadConstantIndex(offset + 1)
	if idx < len(chunk.Constants) {
		sb.WriteString(fmt.Sprintf("%-16s %4d '%s'\n", name, idx, chunk.Constants[idx].String()))
	} else {
		sb.WriteString(fmt.Sprintf("%-16s %4d (invalid)\n", name, idx))
	}
	return offset + 3
}

func twoConstantInstruction(sb *strings.Builder, name string, chunk *Chunk, offset int) int {
	a := chunk.ReadConstantIndex(offset + 1)
	b := chunk.ReadConstantIndex(offset + 3)
	sb.WriteString(fmt.Sprintf("%-16s %4d %4d\n", name, a, b))
	return offset + 5
}

func jumpInstruction(sb *strings.Builder, name string, sign int, chunk *Chunk, offset int) int {
	jump := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
	target := offset + 3 + sign*jump
	sb.WriteString(fmt.Sprintf("%-16s %4d -> %d\n", name, jump, target))
	return offset + 3
}

func invokeInstruction(sb *strings.Builder, name string, chunk *Chunk, offset int) int {
	nameIdx := chunk.ReadConstantIndex(offset + 1)
	argCount := chunk.Code[offset+3]
	constStr := "(invalid)"
	if nameIdx < len(chunk.Constants) {
		constStr = chunk.Constants[nameIdx].String()
	}
	sb.WriteString(fmt.Sprintf("%-16s %4d '%s' (args: %d)\n", name, nameIdx, constStr, argCount))
	return offset + 4
}

func closureInstruction(sb *strings.Builder, name string, chunk *Chunk, offset int) int {
	idx := chunk.ReadConstantIndex(offset + 1)
	offset += 3

	if idx >= len(chunk.Constants) {
		sb.WriteString(fmt.Sprintf("%-16s %4d (invalid)\n", name, idx))
		return offset
	}
	fn, ok := chunk.Constants[idx].Obj.(*Function)
	if !ok {
		sb.WriteString(fmt.Sprintf("%-16s %4d (not a function)\n", name, idx))
		return offset
	}
	sb.WriteString(fmt.Sprintf("%-16s %4d '%s'\n", name, idx, fn.String()))

	funcDisasm := Disassemble(fn.Chunk, fn.Name)
	indented := strings.ReplaceAll(funcDisasm, "\n", "\n    | ")
	sb.WriteString("    | " + indented + "\n")

	for i := 0; i < fn.UpvalueCount; i++ {
		isLocal := chunk.Code[offset]
		index := chunk.Code[offset+1]
		offset += 2
		localStr := "upvalue"
		if isLocal == 1 {
			localStr = "local"
		}
		sb.WriteString(fmt.Sprintf("%04d    |                     %s %d\n", offset-2, localStr, index))
	}
	return offset
}
