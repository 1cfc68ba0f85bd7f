package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"teenyjvm/classfile"
	"teenyjvm/heap"
)

// method builds a classfile.Method wrapping code, with generous stack/locals
// so tests don't need to hand-compute exact bounds.
func method(code []byte) *classfile.Method {
	return &classfile.Method{
		Name:       "test",
		Descriptor: "()V",
		MaxStack:   16,
		MaxLocals:  8,
		Code:       code,
	}
}

func run(t *testing.T, code []byte, locals []int32) (OptionalInt, error) {
	t.Helper()
	class := &classfile.Class{}
	return Execute(method(code), locals, class, heap.New(), zap.NewNop())
}

func TestArithmetic(t *testing.T) {
	// bipush 7; bipush 5; isub; ireturn -> 2
	code := []byte{byte(Bipush), 7, byte(Bipush), 5, byte(Isub), byte(Ireturn)}
	result, err := run(t, code, nil)
	require.NoError(t, err)
	assert.True(t, result.Present)
	assert.Equal(t, int32(2), result.Value)
}

func TestLocalsLoadStore(t *testing.T) {
	// iload_0, iconst_1, iadd, istore_1, iload_1, ireturn
	code := []byte{
		byte(Iload0), byte(Iconst1), byte(Iadd), byte(Istore1),
		byte(Iload1), byte(Ireturn),
	}
	result, err := run(t, code, []int32{41})
	require.NoError(t, err)
	assert.Equal(t, int32(42), result.Value)
}

func TestDivideByZero(t *testing.T) {
	code := []byte{byte(Iconst1), byte(Iconst0), byte(Idiv), byte(Ireturn)}
	_, err := run(t, code, nil)
	assert.ErrorIs(t, err, ErrDivideByZero)
}

func TestNegativeShift(t *testing.T) {
	shiftOps := []Opcode{Ishl, Ishr, Iushr}
	for _, op := range shiftOps {
		code := []byte{byte(Iconst1), byte(IconstM1), byte(op), byte(Ireturn)}
		_, err := run(t, code, nil)
		assert.ErrorIs(t, err, ErrNegativeShift, op.String())
	}
}

func TestShiftRightVsUnsigned(t *testing.T) {
	// iushr(-1, 1) == 2147483647, ishr(-1, 1) == -1
	code := []byte{byte(IconstM1), byte(Iconst1), byte(Iushr), byte(Ireturn)}
	result, err := run(t, code, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2147483647), result.Value)

	code = []byte{byte(IconstM1), byte(Iconst1), byte(Ishr), byte(Ireturn)}
	result, err = run(t, code, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(-1), result.Value)
}

func TestArrayAllocStoreLoad(t *testing.T) {
	// newarray (count=1 from iconst_1), dup, iconst_0, bipush 42, iastore,
	// iconst_0, iaload, ireturn
	code := []byte{
		byte(Iconst1), byte(Newarray), 10, // atype ignored
		byte(Dup),
		byte(Iconst0), byte(Bipush), 42, byte(Iastore),
		byte(Iconst0), byte(Iaload),
		byte(Ireturn),
	}
	result, err := run(t, code, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(42), result.Value)
}

func TestUnsupportedOpcode(t *testing.T) {
	code := []byte{0x01} // no such opcode in this instruction set
	_, err := run(t, code, nil)
	assert.ErrorIs(t, err, ErrUnsupportedOpcode)
}

func TestBranch(t *testing.T) {
	// iconst_0, ifeq +5 (skip the iconst_1/ireturn pair that follows),
	// iconst_1, ireturn, iconst_2, ireturn
	code := []byte{
		byte(Iconst0), byte(Ifeq), 0x00, 0x05,
		byte(Iconst1), byte(Ireturn),
		byte(Iconst2), byte(Ireturn),
	}
	result, err := run(t, code, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), result.Value)
}

// TestRecursiveInvokestatic exercises invokestatic's synchronous recursion
// and parameter marshalling by building a single-method class (factorial)
// in memory rather than through a text assembler.
func TestRecursiveInvokestatic(t *testing.T) {
	// int fact(int n) { if (n <= 1) return 1; return n * fact(n - 1); }
	//
	// locals[0] = n
	factCode := []byte{
		byte(Iload0), byte(Iconst1), byte(IfIcmpgt), 0x00, 0x05,
		byte(Iconst1), byte(Ireturn),
		byte(Iload0),
		byte(Iload0), byte(Iconst1), byte(Isub),
		byte(Invokestatic), 0x00, 0x02,
		byte(Imul),
		byte(Ireturn),
	}

	factMethod := classfile.Method{
		Name: "fact", Descriptor: "(I)I",
		MaxStack: 16, MaxLocals: 1,
		Code: factCode,
	}

	class := &classfile.Class{
		Methods: []classfile.Method{factMethod},
		ConstantPool: []classfile.CPEntry{
			{},                                                              // 0: padding
			{Tag: classfile.TagUtf8, UTF8: "fact"},                          // 1: name
			{Tag: classfile.TagMethodref, ClassIndex: 0, NameAndTypeIndex: 4}, // 2: fact's methodref
			{Tag: classfile.TagUtf8, UTF8: "(I)I"},                          // 3: descriptor
			{Tag: classfile.TagNameAndType, NameIndex: 1, DescriptorIndex: 3}, // 4
		},
	}

	result, err := Execute(&factMethod, []int32{5}, class, heap.New(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, int32(120), result.Value)
}

func TestVoidReturn(t *testing.T) {
	code := []byte{byte(Return)}
	result, err := run(t, code, nil)
	require.NoError(t, err)
	assert.False(t, result.Present)
}
