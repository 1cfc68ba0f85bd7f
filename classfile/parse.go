package classfile

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const magic uint32 = 0xCAFEBABE

const codeAttributeName = "Code"

// reader wraps the class-file byte stream with the fixed-width big-endian
// reads the wire format is built from. Every multi-byte field in a class
// file is big-endian regardless of host endianness.
type reader struct {
	r *bufio.Reader
}

func (rd *reader) u1() (byte, error) {
	return rd.r.ReadByte()
}

func (rd *reader) u2() (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(rd.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func (rd *reader) u4() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(rd.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func (rd *reader) bytes(n uint32) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rd.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (rd *reader) skip(n uint32) error {
	_, err := rd.bytes(n)
	return err
}

// Parse reads a class file from r and returns its in-memory representation.
func Parse(r io.Reader) (*Class, error) {
	rd := &reader{r: bufio.NewReader(r)}

	got, err := rd.u4()
	if err != nil {
		return nil, errors.Wrap(err, "reading magic number")
	}
	if got != magic {
		return nil, ErrBadMagic
	}

	// minor_version, major_version — unused by this VM, but must be
	// consumed to stay aligned with the rest of the stream.
	if _, err := rd.u2(); err != nil {
		return nil, errors.Wrap(err, "reading minor version")
	}
	if _, err := rd.u2(); err != nil {
		return nil, errors.Wrap(err, "reading major version")
	}

	pool, err := parseConstantPool(rd)
	if err != nil {
		return nil, errors.Wrap(err, "parsing constant pool")
	}

	// access_flags, this_class, super_class
	for i := 0; i < 3; i++ {
		if _, err := rd.u2(); err != nil {
			return nil, errors.Wrap(err, "reading class header")
		}
	}

	if err := skipInterfaces(rd); err != nil {
		return nil, errors.Wrap(err, "reading interfaces")
	}

	if err := skipMembers(rd); err != nil {
		return nil, errors.Wrap(err, "reading fields")
	}

	methods, err := parseMethods(rd, pool)
	if err != nil {
		return nil, errors.Wrap(err, "parsing methods")
	}

	if err := skipAttributes(rd); err != nil {
		return nil, errors.Wrap(err, "reading class attributes")
	}

	return &Class{ConstantPool: pool, Methods: methods}, nil
}

// parseConstantPool reads constant_pool_count-1 entries into a 1-based
// slice: result[0] is an unused sentinel so pool indices read from bytecode
// need no adjustment.
func parseConstantPool(rd *reader) ([]CPEntry, error) {
	count, err := rd.u2()
	if err != nil {
		return nil, err
	}

	pool := make([]CPEntry, count)
	for i := 1; i < int(count); i++ {
		tagByte, err := rd.u1()
		if err != nil {
			return nil, err
		}

		entry := CPEntry{Tag: Tag(tagByte)}
		switch entry.Tag {
		case TagUtf8:
			length, err := rd.u2()
			if err != nil {
				return nil, err
			}
			raw, err := rd.bytes(uint32(length))
			if err != nil {
				return nil, err
			}
			entry.UTF8 = string(raw)
		case TagInteger:
			v, err := rd.u4()
			if err != nil {
				return nil, err
			}
			entry.Int32 = int32(v)
		case TagClass:
			entry.NameIndex, err = rd.u2()
		case TagString:
			entry.StringIndex, err = rd.u2()
		case TagFieldref, TagMethodref, TagInterfaceMethodref:
			entry.ClassIndex, err = rd.u2()
			if err == nil {
				entry.NameAndTypeIndex, err = rd.u2()
			}
		case TagNameAndType:
			entry.NameIndex, err = rd.u2()
			if err == nil {
				entry.DescriptorIndex, err = rd.u2()
			}
		default:
			// Float/Long/Double and anything else this VM does not
			// implement (no floating point, no 64-bit values).
			return nil, errors.Wrapf(ErrUnsupportedConstant, "tag %d at index %d", tagByte, i)
		}
		if err != nil {
			return nil, err
		}

		pool[i] = entry
	}

	return pool, nil
}

func skipInterfaces(rd *reader) error {
	count, err := rd.u2()
	if err != nil {
		return err
	}
	return rd.skip(uint32(count) * 2)
}

// skipMembers reads and discards a fields_count/field_info or
// methods_count/method_info block's worth of attributes. Field contents are
// never consumed by this VM (no instance fields), but the stream must be
// walked correctly to reach what follows.
func skipMembers(rd *reader) error {
	count, err := rd.u2()
	if err != nil {
		return err
	}

	for i := 0; i < int(count); i++ {
		// access_flags, name_index, descriptor_index
		for j := 0; j < 3; j++ {
			if _, err := rd.u2(); err != nil {
				return err
			}
		}
		if err := skipAttributes(rd); err != nil {
			return err
		}
	}
	return nil
}

func skipAttributes(rd *reader) error {
	count, err := rd.u2()
	if err != nil {
		return err
	}

	for i := 0; i < int(count); i++ {
		if _, err := rd.u2(); err != nil { // attribute_name_index
			return err
		}
		length, err := rd.u4()
		if err != nil {
			return err
		}
		if err := rd.skip(length); err != nil {
			return err
		}
	}
	return nil
}

func parseMethods(rd *reader, pool []CPEntry) ([]Method, error) {
	count, err := rd.u2()
	if err != nil {
		return nil, err
	}

	methods := make([]Method, count)
	for i := 0; i < int(count); i++ {
		accessFlags, err := rd.u2()
		if err != nil {
			return nil, err
		}
		nameIdx, err := rd.u2()
		if err != nil {
			return nil, err
		}
		descIdx, err := rd.u2()
		if err != nil {
			return nil, err
		}

		name, err := utf8At(pool, nameIdx)
		if err != nil {
			return nil, err
		}
		descriptor, err := utf8At(pool, descIdx)
		if err != nil {
			return nil, err
		}

		method := Method{Name: name, Descriptor: descriptor, AccessFlags: accessFlags}

		attrCount, err := rd.u2()
		if err != nil {
			return nil, err
		}

		haveCode := false
		for a := 0; a < int(attrCount); a++ {
			attrNameIdx, err := rd.u2()
			if err != nil {
				return nil, err
			}
			attrLen, err := rd.u4()
			if err != nil {
				return nil, err
			}

			attrName, err := utf8At(pool, attrNameIdx)
			if err != nil {
				return nil, err
			}

			if attrName == codeAttributeName {
				if err := parseCodeAttribute(rd, &method); err != nil {
					return nil, err
				}
				haveCode = true
			} else if err := rd.skip(attrLen); err != nil {
				return nil, err
			}
		}

		if !haveCode {
			return nil, errors.Wrapf(ErrNoCodeAttribute, "method %s%s", name, descriptor)
		}

		methods[i] = method
	}

	return methods, nil
}

func parseCodeAttribute(rd *reader, method *Method) error {
	maxStack, err := rd.u2()
	if err != nil {
		return err
	}
	maxLocals, err := rd.u2()
	if err != nil {
		return err
	}
	codeLength, err := rd.u4()
	if err != nil {
		return err
	}
	code, err := rd.bytes(codeLength)
	if err != nil {
		return err
	}

	// exception_table: start_pc, end_pc, handler_pc, catch_type (4x u2).
	// Exceptions are a Non-goal; parsed-and-discarded to stay aligned.
	exceptionTableLength, err := rd.u2()
	if err != nil {
		return err
	}
	if err := rd.skip(uint32(exceptionTableLength) * 8); err != nil {
		return err
	}

	if err := skipAttributes(rd); err != nil {
		return err
	}

	method.MaxStack = maxStack
	method.MaxLocals = maxLocals
	method.Code = code
	return nil
}

func utf8At(pool []CPEntry, index uint16) (string, error) {
	if int(index) >= len(pool) || pool[index].Tag != TagUtf8 {
		return "", errors.Wrapf(ErrBadConstantPoolIndex, "expected Utf8 at index %d", index)
	}
	return pool[index].UTF8, nil
}
