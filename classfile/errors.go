package classfile

import "errors"

var (
	// ErrBadMagic means the file does not start with the class-file magic
	// number and is not a class file at all.
	ErrBadMagic = errors.New("classfile: bad magic number")

	// ErrUnsupportedConstant means the constant pool contains a tag this
	// module does not implement (Long/Double/Float are Non-goals: no
	// 64-bit or floating point values).
	ErrUnsupportedConstant = errors.New("classfile: unsupported constant pool tag")

	// ErrNoCodeAttribute means a method has no Code attribute, which is
	// only legal for abstract/native methods — neither exists in this VM.
	ErrNoCodeAttribute = errors.New("classfile: method has no Code attribute")

	// ErrMethodNotFound is returned by FindMethod/FindMethodFromIndex.
	ErrMethodNotFound = errors.New("classfile: method not found")

	// ErrBadConstantPoolIndex means a constant-pool index read from
	// bytecode or another constant pool entry is out of range or of the
	// wrong kind for its use.
	ErrBadConstantPoolIndex = errors.New("classfile: bad constant pool index")
)
