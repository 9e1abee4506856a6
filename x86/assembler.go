package x86

import (
	"github.com/davejbax/corepe/binio"
	"github.com/davejbax/corepe/errs"
)

// Assembler encodes [Instruction]s into their wire byte sequence: opcode,
// ModR/M, SIB, displacement, immediate.
type Assembler struct{}

// NewAssembler constructs an Assembler. It carries no state: every Encode
// call is independent, with no internal parallel workers or suspension
// points.
func NewAssembler() *Assembler { return &Assembler{} }

// Encode serializes instr to its canonical byte encoding.
func (a *Assembler) Encode(instr *Instruction) ([]byte, error) {
	op, err := selectOpCode(instr)
	if err != nil {
		return nil, err
	}

	pooled := binio.RentWriter()
	defer pooled.Release()
	w := binio.NewWriter(pooled)

	if err := w.WriteBytes(op.Bytes); err != nil {
		return nil, err
	}

	switch op.Kind {
	case encNone:
		// no operand bytes at all

	case encOpReg:
		// register is already folded into the opcode byte by selectOpCode

	case encRelImm:
		if instr.Operand1 == nil {
			return nil, errs.Plain(errs.InvariantViolation, "relative-immediate instruction requires one operand", nil)
		}
		if err := writeImmediate(w, instr.Operand1.Value, op.ImmSize); err != nil {
			return nil, err
		}

	case encRegRM:
		regOperand, rmOperand := regRMOperands(instr, op.Flipped)
		if regOperand == nil || rmOperand == nil {
			return nil, errs.Plain(errs.InvariantViolation, "reg/rm instruction requires two operands", nil)
		}
		if !regOperand.HasRegister || regOperand.IsMemory() {
			return nil, errs.Plain(errs.InvalidEncoding, "reg-slot operand must be a plain register", nil)
		}

		modrm, sib, disp, err := encodeModRM(byte(regOperand.Register), *rmOperand)
		if err != nil {
			return nil, err
		}
		if err := w.WriteU8(modrm); err != nil {
			return nil, err
		}
		if sib != nil {
			if err := w.WriteU8(*sib); err != nil {
				return nil, err
			}
		}
		if err := w.WriteBytes(disp); err != nil {
			return nil, err
		}
	}

	return append([]byte(nil), pooled.Bytes()...), nil
}

// regRMOperands returns (regOperand, rmOperand) in wire order given which
// of instr's two operands plays which role.
func regRMOperands(instr *Instruction, flipped bool) (*Operand, *Operand) {
	if instr.Operand1 == nil || instr.Operand2 == nil {
		return nil, nil
	}
	if flipped {
		return instr.Operand1, instr.Operand2
	}
	return instr.Operand2, instr.Operand1
}

// selectOpCode picks the opcodeTable entry matching instr's mnemonic and
// operand shapes, folding a register into the opcode byte for encOpReg
// mnemonics.
func selectOpCode(instr *Instruction) (OpCode, error) {
	candidates := findForMnemonic(instr.Mnemonic)
	if len(candidates) == 0 {
		return OpCode{}, errs.Plain(errs.InvalidEncoding, "unknown mnemonic", nil)
	}

	switch candidates[0].Kind {
	case encNone, encRelImm:
		return *candidates[0], nil

	case encOpReg:
		if instr.Operand1 == nil || !instr.Operand1.HasRegister || instr.Operand1.IsMemory() {
			return OpCode{}, errs.Plain(errs.InvalidEncoding, "register-in-opcode instruction requires a plain register operand", nil)
		}
		base := opRegBases[instr.Mnemonic]
		op := *candidates[0]
		op.Bytes = []byte{base + byte(instr.Operand1.Register)}
		return op, nil

	case encRegRM:
		if instr.Operand1 == nil || instr.Operand2 == nil {
			return OpCode{}, errs.Plain(errs.InvariantViolation, "reg/rm instruction requires two operands", nil)
		}
		mem1, mem2 := instr.Operand1.IsMemory(), instr.Operand2.IsMemory()
		switch {
		case mem1 && mem2:
			return OpCode{}, errs.Plain(errs.InvalidEncoding, "an instruction cannot have two memory operands", nil)
		case mem1 && !mem2:
			// operand1 is r/m, operand2 is reg: the not-flipped variant.
			for _, c := range candidates {
				if !c.Flipped {
					return *c, nil
				}
			}
		case !mem1 && mem2:
			// operand1 is reg, operand2 is r/m: the flipped variant.
			for _, c := range candidates {
				if c.Flipped {
					return *c, nil
				}
			}
		default:
			// register-register: canonicalize to the not-flipped variant
			// (reg = operand2, rm = operand1) if available, else whichever
			// the table offers (e.g. LEA has no not-flipped form, but LEA
			// never reaches this branch since its rm must be memory).
			for _, c := range candidates {
				if !c.Flipped {
					return *c, nil
				}
			}
			return *candidates[0], nil
		}
		return OpCode{}, errs.Plain(errs.InvalidEncoding, "no matching reg/rm direction for this mnemonic", nil)
	}

	return OpCode{}, errs.Plain(errs.InvalidEncoding, "unhandled opcode encoding kind", nil)
}

// encodeModRM builds the ModR/M byte (and, if required, the SIB byte and
// displacement bytes) for rm paired with a fixed reg field value.
func encodeModRM(reg byte, rm Operand) (modrm byte, sib *byte, disp []byte, err error) {
	regField := reg & 0x7

	if !rm.IsMemory() {
		if !rm.HasRegister {
			return 0, nil, nil, errs.Plain(errs.InvalidEncoding, "r/m operand must be a register or memory reference", nil)
		}
		return (0x3 << 6) | (regField << 3) | byte(rm.Register), nil, nil, nil
	}

	needsSIB := rm.HasIndex || (rm.HasRegister && rm.Register == Esp)

	if !rm.HasRegister {
		// Absolute disp32-only addressing: mod=00, rm=101, always 4 bytes
		// of displacement regardless of magnitude.
		modByte := byte(0x00)
		rmField := byte(0x5)
		return (modByte << 6) | (regField << 3) | rmField, nil, encodeDisp32(rm.Correction), nil
	}

	// mod selection depends only on the register occupying the rm/SIB-base
	// field (3-bit value 101 is special-cased at mod=00 whether it reaches
	// there directly via rm or via a SIB byte's base field) and the
	// displacement value -- not on whether a SIB byte happens to be
	// present for unrelated reasons (a scaled index, or ESP's rm=100
	// escape).
	var mod byte
	var dispBytes []byte
	switch {
	case rm.Register == Ebp && rm.Correction == 0:
		mod = 0x1
		dispBytes = []byte{0}
	case rm.Correction == 0:
		mod = 0x0
	case rm.Correction >= -128 && rm.Correction <= 127:
		mod = 0x1
		dispBytes = []byte{byte(int8(rm.Correction))}
	default:
		mod = 0x2
		dispBytes = encodeDisp32(rm.Correction)
	}

	var rmField byte
	if needsSIB {
		rmField = 0x4
		scaleField, err := encodeScale(rm)
		if err != nil {
			return 0, nil, nil, err
		}
		indexField := byte(0x4) // "no index"
		if rm.HasIndex {
			indexField = byte(rm.Index)
		}
		sibByte := (scaleField << 6) | (indexField << 3) | byte(rm.Register)
		sib = &sibByte
	} else {
		rmField = byte(rm.Register)
	}

	modrm = (mod << 6) | (regField << 3) | rmField
	return modrm, sib, dispBytes, nil
}

func encodeScale(o Operand) (byte, error) {
	if !o.HasIndex {
		return 0, nil
	}
	switch o.Scale {
	case 1:
		return 0, nil
	case 2:
		return 1, nil
	case 4:
		return 2, nil
	case 8:
		return 3, nil
	default:
		return 0, errs.Plain(errs.InvalidEncoding, "SIB scale must be 1, 2, 4, or 8", nil)
	}
}

func encodeDisp32(v int32) []byte {
	u := uint32(v)
	return []byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24)}
}

func writeImmediate(w *binio.Writer, v uint32, size int) error {
	switch size {
	case 0:
		return nil
	case 1:
		return w.WriteU8(uint8(v))
	case 2:
		return w.WriteU16(uint16(v))
	case 4:
		return w.WriteU32(v)
	default:
		return errs.Plain(errs.InvalidEncoding, "unsupported immediate size", nil)
	}
}
