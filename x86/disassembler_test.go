package x86

import "testing"

func TestDecodeScaledIndexScenario(t *testing.T) {
	data := []byte{0x01, 0x8C, 0x28, 0x37, 0x13, 0x00, 0x00}

	instr, n, err := NewDisassembler().Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != len(data) {
		t.Fatalf("Decode consumed %d bytes, want %d", n, len(data))
	}
	if instr.Mnemonic != ADD {
		t.Errorf("Mnemonic = %v, want ADD", instr.Mnemonic)
	}

	mem := instr.Operand1
	if mem == nil || !mem.IsMemory() || !mem.HasRegister || mem.Register != Eax {
		t.Fatalf("Operand1 = %+v, want memory base eax", mem)
	}
	if !mem.HasIndex || mem.Index != Ebp || mem.Scale != 1 {
		t.Errorf("Operand1 index = %+v, want ebp*1", mem)
	}
	if mem.Correction != 0x1337 {
		t.Errorf("Operand1 correction = 0x%x, want 0x1337", mem.Correction)
	}

	reg := instr.Operand2
	if reg == nil || reg.IsMemory() || reg.Register != Ecx {
		t.Fatalf("Operand2 = %+v, want register ecx", reg)
	}
}

func TestDecodeEspBaseScenario(t *testing.T) {
	data := []byte{0x01, 0x04, 0x24}

	instr, n, err := NewDisassembler().Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != len(data) {
		t.Fatalf("Decode consumed %d bytes, want %d", n, len(data))
	}

	mem := instr.Operand1
	if mem == nil || !mem.HasRegister || mem.Register != Esp || mem.HasIndex {
		t.Fatalf("Operand1 = %+v, want bare [esp]", mem)
	}
	if mem.Correction != 0 {
		t.Errorf("Operand1 correction = %d, want 0", mem.Correction)
	}
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	instrs := []*Instruction{
		{Mnemonic: ADD, Operand1: ptr(MemSIB(DwordPointer, Eax, Ebp, 1, 0x1337)), Operand2: ptr(Reg(Ecx))},
		{Mnemonic: ADD, Operand1: ptr(Mem(DwordPointer, Esp, 0)), Operand2: ptr(Reg(Eax))},
		{Mnemonic: MOV, Operand1: ptr(Mem(DwordPointer, Ebp, 0)), Operand2: ptr(Reg(Ecx))},
		{Mnemonic: MOV, Operand1: ptr(Reg(Eax)), Operand2: ptr(Reg(Ebx))},
		{Mnemonic: MOV, Operand1: ptr(MemAbs(DwordPointer, 0x403000)), Operand2: ptr(Reg(Eax))},
		{Mnemonic: PUSH, Operand1: ptr(Reg(Ebx))},
		{Mnemonic: POP, Operand1: ptr(Reg(Esi))},
		{Mnemonic: RET},
		{Mnemonic: CALL, Operand1: ptr(Imm32(0x10))},
	}

	asm := NewAssembler()
	dis := NewDisassembler()

	for _, instr := range instrs {
		encoded, err := asm.Encode(instr)
		if err != nil {
			t.Fatalf("Encode(%v): %v", instr.Mnemonic, err)
		}

		decoded, n, err := dis.Decode(encoded)
		if err != nil {
			t.Fatalf("Decode(% x): %v", encoded, err)
		}
		if n != len(encoded) {
			t.Fatalf("Decode(% x) consumed %d bytes, want %d", encoded, n, len(encoded))
		}

		reencoded, err := asm.Encode(decoded)
		if err != nil {
			t.Fatalf("re-Encode(%v): %v", decoded.Mnemonic, err)
		}
		if string(reencoded) != string(encoded) {
			t.Errorf("round trip mismatch for %v: % x != % x", instr.Mnemonic, reencoded, encoded)
		}
	}
}

func TestDisassembleAllIsOrderPreserving(t *testing.T) {
	blocks := [][]byte{
		{0x90, 0xC3},
		{0x01, 0x04, 0x24},
		{0xCC},
	}

	results, err := DisassembleAll(blocks)
	if err != nil {
		t.Fatalf("DisassembleAll: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if len(results[0]) != 2 || results[0][0].Mnemonic != NOP || results[0][1].Mnemonic != RET {
		t.Errorf("results[0] = %+v, want [NOP RET]", results[0])
	}
	if len(results[1]) != 1 || results[1][0].Mnemonic != ADD {
		t.Errorf("results[1] = %+v, want [ADD]", results[1])
	}
	if len(results[2]) != 1 || results[2][0].Mnemonic != INT3 {
		t.Errorf("results[2] = %+v, want [INT3]", results[2])
	}
}
