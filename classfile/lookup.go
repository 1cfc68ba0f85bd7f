package classfile

import "github.com/pkg/errors"

// FindMethod returns the method with the given name and descriptor,
// searching the methods of this class only (no superclass lookup — the VM
// never loads more than one class).
func (c *Class) FindMethod(name, descriptor string) (*Method, error) {
	for i := range c.Methods {
		m := &c.Methods[i]
		if m.Name == name && m.Descriptor == descriptor {
			return m, nil
		}
	}
	return nil, errors.Wrapf(ErrMethodNotFound, "%s%s", name, descriptor)
}

// FindMethodFromIndex resolves a Methodref constant-pool entry at index to
// the method it names, within this same class. invokestatic is the only
// call instruction this VM implements, and it only ever targets the
// enclosing class — there is no multi-class loading.
func (c *Class) FindMethodFromIndex(index uint16) (*Method, error) {
	ref, err := c.entryAt(index, TagMethodref)
	if err != nil {
		return nil, err
	}

	nameAndType, err := c.entryAt(ref.NameAndTypeIndex, TagNameAndType)
	if err != nil {
		return nil, err
	}

	name, err := c.utf8(nameAndType.NameIndex)
	if err != nil {
		return nil, err
	}
	descriptor, err := c.utf8(nameAndType.DescriptorIndex)
	if err != nil {
		return nil, err
	}

	return c.FindMethod(name, descriptor)
}

// Integer resolves an Integer constant-pool entry at index, for ldc.
func (c *Class) Integer(index uint16) (int32, error) {
	entry, err := c.entryAt(index, TagInteger)
	if err != nil {
		return 0, err
	}
	return entry.Int32, nil
}

func (c *Class) entryAt(index uint16, want Tag) (*CPEntry, error) {
	if int(index) >= len(c.ConstantPool) {
		return nil, errors.Wrapf(ErrBadConstantPoolIndex, "index %d out of range", index)
	}
	entry := &c.ConstantPool[index]
	if entry.Tag != want {
		return nil, errors.Wrapf(ErrBadConstantPoolIndex, "index %d: want tag %d, got %d", index, want, entry.Tag)
	}
	return entry, nil
}

func (c *Class) utf8(index uint16) (string, error) {
	return utf8At(c.ConstantPool, index)
}
