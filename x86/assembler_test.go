package x86

import (
	"bytes"
	"testing"
)

func TestEncodeScaledIndexScenario(t *testing.T) {
	// add [eax+ebp*1+0x1337], ecx
	instr := &Instruction{
		Mnemonic: ADD,
		Operand1: ptr(MemSIB(DwordPointer, Eax, Ebp, 1, 0x1337)),
		Operand2: ptr(Reg(Ecx)),
	}

	got, err := NewAssembler().Encode(instr)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	want := []byte{0x01, 0x8C, 0x28, 0x37, 0x13, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode() = % x, want % x", got, want)
	}
}

func TestEncodeEspBaseNoDisplacement(t *testing.T) {
	// add [esp], eax
	instr := &Instruction{
		Mnemonic: ADD,
		Operand1: ptr(Mem(DwordPointer, Esp, 0)),
		Operand2: ptr(Reg(Eax)),
	}

	got, err := NewAssembler().Encode(instr)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	want := []byte{0x01, 0x04, 0x24}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode() = % x, want % x", got, want)
	}
}

func TestEncodeEbpBaseForcesDisp8(t *testing.T) {
	// mov [ebp], ecx -- EBP as a bare base with no displacement must use
	// mod=01/disp8=0 rather than mod=00, since mod=00,rm=101 means
	// disp32-only addressing.
	instr := &Instruction{
		Mnemonic: MOV,
		Operand1: ptr(Mem(DwordPointer, Ebp, 0)),
		Operand2: ptr(Reg(Ecx)),
	}

	got, err := NewAssembler().Encode(instr)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	want := []byte{0x89, 0x4D, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode() = % x, want % x", got, want)
	}
}

func TestEncodeRegisterToRegister(t *testing.T) {
	instr := &Instruction{
		Mnemonic: MOV,
		Operand1: ptr(Reg(Eax)),
		Operand2: ptr(Reg(Ebx)),
	}

	got, err := NewAssembler().Encode(instr)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	want := []byte{0x89, 0xD8}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode() = % x, want % x", got, want)
	}
}

func TestEncodeAbsoluteMemory(t *testing.T) {
	instr := &Instruction{
		Mnemonic: MOV,
		Operand1: ptr(MemAbs(DwordPointer, 0x403000)),
		Operand2: ptr(Reg(Eax)),
	}

	got, err := NewAssembler().Encode(instr)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	want := []byte{0x89, 0x05, 0x00, 0x30, 0x40, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode() = % x, want % x", got, want)
	}
}

func TestEncodeOpRegAndRelImm(t *testing.T) {
	cases := []struct {
		name string
		inst *Instruction
		want []byte
	}{
		{"push ebx", &Instruction{Mnemonic: PUSH, Operand1: ptr(Reg(Ebx))}, []byte{0x53}},
		{"pop esi", &Instruction{Mnemonic: POP, Operand1: ptr(Reg(Esi))}, []byte{0x5E}},
		{"ret", &Instruction{Mnemonic: RET}, []byte{0xC3}},
		{"nop", &Instruction{Mnemonic: NOP}, []byte{0x90}},
		{"int3", &Instruction{Mnemonic: INT3}, []byte{0xCC}},
		{"call rel32", &Instruction{Mnemonic: CALL, Operand1: ptr(Imm32(0x10))}, []byte{0xE8, 0x10, 0x00, 0x00, 0x00}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NewAssembler().Encode(tc.inst)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if !bytes.Equal(got, tc.want) {
				t.Errorf("Encode() = % x, want % x", got, tc.want)
			}
		})
	}
}

func TestEncodeRejectsTwoMemoryOperands(t *testing.T) {
	instr := &Instruction{
		Mnemonic: ADD,
		Operand1: ptr(Mem(DwordPointer, Eax, 0)),
		Operand2: ptr(Mem(DwordPointer, Ebx, 0)),
	}

	if _, err := NewAssembler().Encode(instr); err == nil {
		t.Fatal("Encode() with two memory operands: want error, got nil")
	}
}

func ptr(o Operand) *Operand { return &o }
