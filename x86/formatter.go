package x86

import (
	"fmt"
	"strings"
)

// Formatter renders [Instruction]s in FASM-dialect Intel syntax: mnemonic
// first, then destination, then source; memory operands as
// "size [base+index*scale+disp]"; immediates and displacements as lowercase
// hex literals.
type Formatter struct{}

// NewFormatter constructs a Formatter.
func NewFormatter() *Formatter { return &Formatter{} }

// Format renders instr as a single assembly-language line, with no trailing
// newline.
func (f *Formatter) Format(instr *Instruction) string {
	var b strings.Builder
	b.WriteString(instr.Mnemonic.String())

	operands := []*Operand{instr.Operand1, instr.Operand2, instr.Operand3}
	var rendered []string
	for _, o := range operands {
		if o == nil {
			continue
		}
		rendered = append(rendered, formatOperand(*o))
	}

	if len(rendered) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(rendered, ", "))
	}

	return b.String()
}

func formatOperand(o Operand) string {
	if !o.IsMemory() {
		if o.HasRegister {
			return o.Register.String()
		}
		return fmt.Sprintf("0x%x", o.Value)
	}
	return fmt.Sprintf("%s [%s]", sizePrefix(o.Type), formatMemoryBody(o))
}

func sizePrefix(t OperandType) string {
	switch t {
	case BytePointer:
		return "byte"
	case WordPointer:
		return "word"
	case DwordPointer:
		return "dword"
	case QwordPointer:
		return "qword"
	default:
		return "dword"
	}
}

func formatMemoryBody(o Operand) string {
	var parts []string
	if o.HasRegister {
		parts = append(parts, o.Register.String())
	}
	if o.HasIndex {
		parts = append(parts, fmt.Sprintf("%s*%d", o.Index, o.Scale))
	}

	base := strings.Join(parts, "+")
	if base == "" {
		return fmt.Sprintf("0x%x", uint32(o.Correction))
	}
	if o.Correction == 0 {
		return base
	}
	if o.Correction < 0 {
		return fmt.Sprintf("%s-0x%x", base, -o.Correction)
	}
	return fmt.Sprintf("%s+0x%x", base, o.Correction)
}
