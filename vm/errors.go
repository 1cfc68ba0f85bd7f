package vm

import "errors"

var (
	// ErrDivideByZero is returned by idiv/irem when the divisor is 0.
	ErrDivideByZero = errors.New("vm: divide by zero")

	// ErrNegativeShift is returned by ishl, ishr, and iushr when the shift
	// amount is negative.
	ErrNegativeShift = errors.New("vm: negative shift amount")

	// ErrUnsupportedOpcode is returned when the dispatch loop encounters a
	// byte that is not one of the opcodes this VM implements.
	ErrUnsupportedOpcode = errors.New("vm: unsupported opcode")
)
