package vm

import (
	"fmt"

	"go.uber.org/zap"

	"teenyjvm/classfile"
	"teenyjvm/heap"
)

// Execute runs method to completion against the given pre-populated locals,
// resolving constants and other methods against class, and backing arrays
// against h. It recurses synchronously for invokestatic — there is no
// explicit call stack, Go's own goroutine stack stands in for it, matching
// the single-threaded, synchronous model this VM implements.
func Execute(method *classfile.Method, locals []int32, class *classfile.Class, h *heap.Heap, logger *zap.Logger) (OptionalInt, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	f := newFrame(method.MaxStack, method.MaxLocals, locals)
	code := method.Code

	for f.pc < len(code) {
		opStart := f.pc
		op := Opcode(code[f.pc])
		f.pc++

		logger.Debug("exec",
			zap.Int("pc", opStart),
			zap.String("opcode", op.String()),
			zap.Int("stackDepth", f.sp),
		)

		switch {
		case op == Nop:
			// nothing

		case op == IconstM1:
			f.push(-1)
		case op == Iconst0:
			f.push(0)
		case op == Iconst1:
			f.push(1)
		case op == Iconst2:
			f.push(2)
		case op == Iconst3:
			f.push(3)
		case op == Iconst4:
			f.push(4)
		case op == Iconst5:
			f.push(5)

		case op == Bipush:
			v := int8(code[f.pc])
			f.pc++
			f.push(int32(v))

		case op == Sipush:
			v := readInt16(code, f.pc)
			f.pc += 2
			f.push(int32(v))

		case op == Ldc:
			idx := uint16(code[f.pc])
			f.pc++
			v, err := class.Integer(idx)
			if err != nil {
				return OptionalInt{}, err
			}
			f.push(v)

		case op == Iload, op == Aload:
			idx := int(code[f.pc])
			f.pc++
			f.push(f.locals[idx])

		case op.IsLocalSlotShorthand() && isLoadShorthand(op):
			f.push(f.locals[op.LocalSlot()])

		case op == Istore, op == Astore:
			idx := int(code[f.pc])
			f.pc++
			f.locals[idx] = f.pop()

		case op.IsLocalSlotShorthand() && !isLoadShorthand(op):
			f.locals[op.LocalSlot()] = f.pop()

		case op == Iaload:
			index := f.pop()
			ref := f.pop()
			v, err := h.Load(ref, index)
			if err != nil {
				return OptionalInt{}, err
			}
			f.push(v)

		case op == Iastore:
			value := f.pop()
			index := f.pop()
			ref := f.pop()
			if err := h.Store(ref, index, value); err != nil {
				return OptionalInt{}, err
			}

		case op == Arraylength:
			ref := f.pop()
			length, err := h.Length(ref)
			if err != nil {
				return OptionalInt{}, err
			}
			f.push(length)

		case op == Newarray:
			f.pc++ // atype; ignored, every array is an int array here
			count := f.pop()
			ref, err := h.Add(count)
			if err != nil {
				return OptionalInt{}, err
			}
			f.push(ref)

		case op == Dup:
			f.push(f.peek())

		case op == Iadd:
			b, a := f.pop(), f.pop()
			f.push(a + b)
		case op == Isub:
			b, a := f.pop(), f.pop()
			f.push(a - b)
		case op == Imul:
			b, a := f.pop(), f.pop()
			f.push(a * b)
		case op == Idiv:
			b, a := f.pop(), f.pop()
			if b == 0 {
				return OptionalInt{}, ErrDivideByZero
			}
			f.push(a / b)
		case op == Irem:
			b, a := f.pop(), f.pop()
			if b == 0 {
				return OptionalInt{}, ErrDivideByZero
			}
			f.push(a % b)
		case op == Ineg:
			f.push(-f.pop())

		case op == Ishl:
			b, a := f.pop(), f.pop()
			if b < 0 {
				return OptionalInt{}, ErrNegativeShift
			}
			f.push(a << (uint32(b) & 0x1f))
		case op == Ishr:
			b, a := f.pop(), f.pop()
			if b < 0 {
				return OptionalInt{}, ErrNegativeShift
			}
			f.push(a >> (uint32(b) & 0x1f))
		case op == Iushr:
			b, a := f.pop(), f.pop()
			if b < 0 {
				return OptionalInt{}, ErrNegativeShift
			}
			f.push(int32(uint32(a) >> (uint32(b) & 0x1f)))

		case op == Iand:
			b, a := f.pop(), f.pop()
			f.push(a & b)
		case op == Ior:
			b, a := f.pop(), f.pop()
			f.push(a | b)
		case op == Ixor:
			b, a := f.pop(), f.pop()
			f.push(a ^ b)

		case op == Iinc:
			idx := int(code[f.pc])
			delta := int8(code[f.pc+1])
			f.pc += 2
			f.locals[idx] += int32(delta)

		case op == Ifeq, op == Ifne, op == Iflt, op == Ifge, op == Ifgt, op == Ifle:
			disp := readInt16(code, f.pc)
			f.pc += 2
			v := f.pop()
			if compareToZero(op, v) {
				f.pc = opStart + int(disp)
			}

		case op == IfIcmpeq, op == IfIcmpne, op == IfIcmplt, op == IfIcmpge, op == IfIcmpgt, op == IfIcmple:
			disp := readInt16(code, f.pc)
			f.pc += 2
			b, a := f.pop(), f.pop()
			if compareInts(op, a, b) {
				f.pc = opStart + int(disp)
			}

		case op == Goto:
			disp := readInt16(code, f.pc)
			f.pc = opStart + int(disp)

		case op == Getstatic:
			f.pc += 2 // fieldref index; consumed only to locate System.out

		case op == Invokevirtual:
			f.pc += 2 // methodref index; the only virtual target is println
			v := f.pop()
			fmt.Println(v)

		case op == Invokestatic:
			idx := uint16(code[f.pc])<<8 | uint16(code[f.pc+1])
			f.pc += 2

			callee, err := class.FindMethodFromIndex(idx)
			if err != nil {
				return OptionalInt{}, err
			}

			n := int(classfile.NumberOfParameters(callee.Descriptor))
			calleeLocals := make([]int32, n)
			for i := n - 1; i >= 0; i-- {
				calleeLocals[i] = f.pop()
			}

			result, err := Execute(callee, calleeLocals, class, h, logger)
			if err != nil {
				return OptionalInt{}, err
			}
			if result.Present {
				f.push(result.Value)
			}

		case op == Ireturn, op == Areturn:
			return OptionalInt{Value: f.pop(), Present: true}, nil

		case op == Return:
			return OptionalInt{}, nil

		default:
			return OptionalInt{}, fmt.Errorf("%w: 0x%02x at pc %d", ErrUnsupportedOpcode, byte(op), opStart)
		}
	}

	return OptionalInt{}, nil
}

func isLoadShorthand(op Opcode) bool {
	switch op {
	case Iload0, Iload1, Iload2, Iload3, Aload0, Aload1, Aload2, Aload3:
		return true
	}
	return false
}

func readInt16(code []byte, at int) int16 {
	return int16(uint16(code[at])<<8 | uint16(code[at+1]))
}

func compareToZero(op Opcode, v int32) bool {
	switch op {
	case Ifeq:
		return v == 0
	case Ifne:
		return v != 0
	case Iflt:
		return v < 0
	case Ifge:
		return v >= 0
	case Ifgt:
		return v > 0
	case Ifle:
		return v <= 0
	}
	return false
}

func compareInts(op Opcode, a, b int32) bool {
	switch op {
	case IfIcmpeq:
		return a == b
	case IfIcmpne:
		return a != b
	case IfIcmplt:
		return a < b
	case IfIcmpge:
		return a >= b
	case IfIcmpgt:
		return a > b
	case IfIcmple:
		return a <= b
	}
	return false
}
