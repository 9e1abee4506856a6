package x86

import (
	"runtime"

	"github.com/davejbax/corepe/errs"
	"golang.org/x/sync/errgroup"
)

// Disassembler decodes byte sequences into [Instruction]s. Like Assembler,
// it carries no state between calls.
type Disassembler struct{}

// NewDisassembler constructs a Disassembler.
func NewDisassembler() *Disassembler { return &Disassembler{} }

// Decode reads a single instruction from the front of data, returning the
// decoded instruction and the number of bytes it consumed.
func (d *Disassembler) Decode(data []byte) (*Instruction, int, error) {
	if len(data) == 0 {
		return nil, 0, errs.Plain(errs.OutOfBounds, "no bytes to decode", nil)
	}

	if op, reg, ok := findOpReg(data[0]); ok {
		instr := &Instruction{OpCode: op, Mnemonic: op.Mnemonic}
		operand := Reg(reg)
		instr.Operand1 = &operand
		return instr, 1, nil
	}

	op, ok := findByByte(data[0])
	if !ok {
		return nil, 0, errs.Plain(errs.InvalidEncoding, "unrecognized opcode byte", nil)
	}

	pos := 1
	instr := &Instruction{OpCode: op, Mnemonic: op.Mnemonic}

	switch op.Kind {
	case encNone:
		return instr, pos, nil

	case encRelImm:
		v, n, err := readImmediate(data[pos:], op.ImmSize)
		if err != nil {
			return nil, 0, err
		}
		operand := Imm32(v)
		instr.Operand1 = &operand
		pos += n
		return instr, pos, nil

	case encRegRM:
		if pos >= len(data) {
			return nil, 0, errs.Plain(errs.OutOfBounds, "truncated ModR/M byte", nil)
		}
		regField, rmOperand, n, err := decodeModRM(data[pos:])
		if err != nil {
			return nil, 0, err
		}
		pos += n

		regOperand := Reg(Register(regField))
		if op.Flipped {
			instr.Operand1 = &regOperand
			instr.Operand2 = &rmOperand
		} else {
			instr.Operand1 = &rmOperand
			instr.Operand2 = &regOperand
		}
		return instr, pos, nil
	}

	return nil, 0, errs.Plain(errs.InvalidEncoding, "unhandled opcode encoding kind", nil)
}

// decodeModRM parses a ModR/M byte (and, if present, a following SIB byte
// and displacement) from the front of data, returning the reg field and the
// r/m operand it denotes.
func decodeModRM(data []byte) (regField byte, operand Operand, consumed int, err error) {
	if len(data) == 0 {
		return 0, Operand{}, 0, errs.Plain(errs.OutOfBounds, "truncated ModR/M byte", nil)
	}
	modrm := data[0]
	mod := modrm >> 6
	reg := (modrm >> 3) & 0x7
	rm := modrm & 0x7
	pos := 1

	if mod == 0x3 {
		return reg, Reg(Register(rm)), pos, nil
	}

	out := Operand{Type: DwordPointer}

	if rm == 0x4 {
		if pos >= len(data) {
			return 0, Operand{}, 0, errs.Plain(errs.OutOfBounds, "truncated SIB byte", nil)
		}
		sib := data[pos]
		pos++
		scale := sib >> 6
		index := (sib >> 3) & 0x7
		base := sib & 0x7

		if index != 0x4 {
			out.HasIndex = true
			out.Index = Register(index)
			out.Scale = 1 << scale
		}

		noBase := base == 0x5 && mod == 0x0
		if !noBase {
			out.HasRegister = true
			out.Register = Register(base)
		}

		switch {
		case mod == 0x0 && noBase:
			disp, n, err := readDisp32(data[pos:])
			if err != nil {
				return 0, Operand{}, 0, err
			}
			out.Correction = disp
			pos += n
		case mod == 0x1:
			disp, n, err := readDisp8(data[pos:])
			if err != nil {
				return 0, Operand{}, 0, err
			}
			out.Correction = disp
			pos += n
		case mod == 0x2:
			disp, n, err := readDisp32(data[pos:])
			if err != nil {
				return 0, Operand{}, 0, err
			}
			out.Correction = disp
			pos += n
		}

		return reg, out, pos, nil
	}

	if rm == 0x5 && mod == 0x0 {
		disp, n, err := readDisp32(data[pos:])
		if err != nil {
			return 0, Operand{}, 0, err
		}
		out.Correction = disp
		pos += n
		return reg, out, pos, nil
	}

	out.HasRegister = true
	out.Register = Register(rm)
	switch mod {
	case 0x1:
		disp, n, err := readDisp8(data[pos:])
		if err != nil {
			return 0, Operand{}, 0, err
		}
		out.Correction = disp
		pos += n
	case 0x2:
		disp, n, err := readDisp32(data[pos:])
		if err != nil {
			return 0, Operand{}, 0, err
		}
		out.Correction = disp
		pos += n
	}

	return reg, out, pos, nil
}

func readDisp8(data []byte) (int32, int, error) {
	if len(data) < 1 {
		return 0, 0, errs.Plain(errs.OutOfBounds, "truncated disp8", nil)
	}
	return int32(int8(data[0])), 1, nil
}

func readDisp32(data []byte) (int32, int, error) {
	if len(data) < 4 {
		return 0, 0, errs.Plain(errs.OutOfBounds, "truncated disp32", nil)
	}
	u := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
	return int32(u), 4, nil
}

func readImmediate(data []byte, size int) (uint32, int, error) {
	switch size {
	case 0:
		return 0, 0, nil
	case 1:
		if len(data) < 1 {
			return 0, 0, errs.Plain(errs.OutOfBounds, "truncated immediate", nil)
		}
		return uint32(data[0]), 1, nil
	case 2:
		if len(data) < 2 {
			return 0, 0, errs.Plain(errs.OutOfBounds, "truncated immediate", nil)
		}
		return uint32(data[0]) | uint32(data[1])<<8, 2, nil
	case 4:
		if len(data) < 4 {
			return 0, 0, errs.Plain(errs.OutOfBounds, "truncated immediate", nil)
		}
		return uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24, 4, nil
	default:
		return 0, 0, errs.Plain(errs.InvalidEncoding, "unsupported immediate size", nil)
	}
}

// DecodeBlock decodes every instruction in data in sequence until data is
// exhausted. The first decode error aborts the block: it is returned and no
// instructions are.
func (d *Disassembler) DecodeBlock(data []byte) ([]*Instruction, error) {
	var out []*Instruction
	pos := 0
	for pos < len(data) {
		instr, n, err := d.Decode(data[pos:])
		if err != nil {
			return nil, err
		}
		out = append(out, instr)
		pos += n
	}
	return out, nil
}

// DisassembleAll decodes a set of independent code blocks concurrently,
// bounded by GOMAXPROCS, returning each block's instruction stream in the
// same order as blocks. Blocks are independent byte streams (e.g. several
// functions' worth of machine code pulled from a managed image's native
// stubs); instructions within a single block are inherently sequential, so
// the concurrency here is across blocks, not within one.
func DisassembleAll(blocks [][]byte) ([][]*Instruction, error) {
	results := make([][]*Instruction, len(blocks))

	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, block := range blocks {
		i, block := i, block
		g.Go(func() error {
			d := NewDisassembler()
			instrs, err := d.DecodeBlock(block)
			if err != nil {
				return err
			}
			results[i] = instrs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
