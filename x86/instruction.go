// Package x86 implements a small x86 ModR/M+SIB+displacement instruction
// encoder/decoder: enough of the instruction set to drive emission and
// disassembly of adjacent tooling (e.g. a managed PE image's native entry
// stub), not a full x86 assembler.
package x86

import "fmt"

// Register is one of the eight 32-bit general-purpose registers, numbered
// exactly as the ModR/M/SIB reg/rm/base/index fields encode them.
type Register uint8

const (
	Eax Register = iota
	Ecx
	Edx
	Ebx
	Esp
	Ebp
	Esi
	Edi
)

var registerNames = [8]string{"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi"}

func (r Register) String() string {
	if int(r) >= len(registerNames) {
		return fmt.Sprintf("r%d?", r)
	}
	return registerNames[r]
}

// OperandType classifies an operand: a plain register/immediate, or a
// memory reference of a given access width.
type OperandType int

const (
	Normal OperandType = iota
	BytePointer
	WordPointer
	DwordPointer
	QwordPointer
)

func (t OperandType) String() string {
	switch t {
	case Normal:
		return "normal"
	case BytePointer:
		return "byte"
	case WordPointer:
		return "word"
	case DwordPointer:
		return "dword"
	case QwordPointer:
		return "qword"
	default:
		return "?"
	}
}

// Operand is either a register, an immediate/relative value, or a memory
// reference built from an optional base register, an optional scaled
// index, and a displacement.
type Operand struct {
	Type OperandType

	// HasRegister is true for a register operand (Type == Normal) or a
	// memory operand with a base register; false for a bare immediate
	// (Type == Normal) or an absolute disp32-only memory reference.
	HasRegister bool
	Register    Register

	// HasIndex/Index/Scale describe a SIB scaled-index component. Scale is
	// the multiplier (1, 2, 4, or 8), not the 2-bit encoded field.
	HasIndex bool
	Index    Register
	Scale    uint8

	// Value is an immediate operand's value, or a rel8/rel32 displacement
	// for control-transfer instructions.
	Value uint32

	// Correction is a memory operand's displacement, signed.
	Correction int32
}

// Reg builds a plain register operand.
func Reg(r Register) Operand {
	return Operand{Type: Normal, HasRegister: true, Register: r}
}

// Imm32 builds an immediate (or rel32) operand.
func Imm32(v uint32) Operand {
	return Operand{Type: Normal, HasRegister: false, Value: v}
}

// Mem builds a register-indirect memory operand with a displacement and no
// scaled index: [base+disp].
func Mem(t OperandType, base Register, disp int32) Operand {
	return Operand{Type: t, HasRegister: true, Register: base, Correction: disp}
}

// MemAbs builds an absolute (disp32-only, no base register) memory operand.
func MemAbs(t OperandType, disp int32) Operand {
	return Operand{Type: t, HasRegister: false, Correction: disp}
}

// MemSIB builds a memory operand with a base register, a scaled index, and
// a displacement: [base+index*scale+disp].
func MemSIB(t OperandType, base Register, index Register, scale uint8, disp int32) Operand {
	return Operand{Type: t, HasRegister: true, Register: base, HasIndex: true, Index: index, Scale: scale, Correction: disp}
}

// IsMemory reports whether this operand addresses memory (participates in
// the ModR/M r/m field as a memory reference, not a register).
func (o Operand) IsMemory() bool { return o.Type != Normal }

// Mnemonic identifies one of the closed set of instructions this codec
// supports: enough to round-trip common codegen scenarios and to walk a
// managed image's native entry stub.
type Mnemonic int

const (
	ADD Mnemonic = iota
	MOV
	PUSH
	POP
	CALL
	JMP
	CMP
	LEA
	NOP
	RET
	INT3
	SUB
	AND
	OR
	XOR
	TEST
)

var mnemonicNames = map[Mnemonic]string{
	ADD: "add", MOV: "mov", PUSH: "push", POP: "pop", CALL: "call", JMP: "jmp",
	CMP: "cmp", LEA: "lea", NOP: "nop", RET: "ret", INT3: "int3", SUB: "sub",
	AND: "and", OR: "or", XOR: "xor", TEST: "test",
}

func (m Mnemonic) String() string {
	if s, ok := mnemonicNames[m]; ok {
		return s
	}
	return "?"
}

// Instruction is a decoded or to-be-encoded x86 instruction: a mnemonic and
// up to three operands.
type Instruction struct {
	OpCode   *OpCode
	Mnemonic Mnemonic
	Operand1 *Operand
	Operand2 *Operand
	Operand3 *Operand
}
