// Package heap implements the append-only int-array registry newarray,
// iaload, iastore, and arraylength operate against. It is the managed heap
// the interpreter treats as an external collaborator: arrays are allocated
// once by Add and never resized or freed.
package heap

import "github.com/pkg/errors"

var (
	// ErrInvalidReference means a reference does not name a live array.
	ErrInvalidReference = errors.New("heap: invalid array reference")

	// ErrIndexOutOfBounds means an array access index fell outside
	// [0, count) for the referenced array.
	ErrIndexOutOfBounds = errors.New("heap: array index out of bounds")

	// ErrNegativeLength means newarray was asked to allocate a
	// negative-length array.
	ErrNegativeLength = errors.New("heap: negative array length")
)

// Heap holds every array allocated during a run, indexed by reference. A
// reference is just its index into arrays — there is no reuse or garbage
// collection, matching the VM's single-method-call lifetime.
type Heap struct {
	arrays [][]int32
}

// New returns an empty heap.
func New() *Heap {
	return &Heap{}
}

// Add allocates a new int array of the given length, slot 0 holding the
// element count as the spec's heap model prescribes, and returns its
// reference.
func (h *Heap) Add(length int32) (int32, error) {
	if length < 0 {
		return 0, ErrNegativeLength
	}

	arr := make([]int32, length+1)
	arr[0] = length
	ref := int32(len(h.arrays))
	h.arrays = append(h.arrays, arr)
	return ref, nil
}

// Length returns the element count of the array named by ref.
func (h *Heap) Length(ref int32) (int32, error) {
	arr, err := h.array(ref)
	if err != nil {
		return 0, err
	}
	return arr[0], nil
}

// Load returns the element at index from the array named by ref.
func (h *Heap) Load(ref, index int32) (int32, error) {
	arr, err := h.array(ref)
	if err != nil {
		return 0, err
	}
	if index < 0 || index >= arr[0] {
		return 0, ErrIndexOutOfBounds
	}
	return arr[index+1], nil
}

// Store writes value into the array named by ref at index.
func (h *Heap) Store(ref, index, value int32) error {
	arr, err := h.array(ref)
	if err != nil {
		return err
	}
	if index < 0 || index >= arr[0] {
		return ErrIndexOutOfBounds
	}
	arr[index+1] = value
	return nil
}

func (h *Heap) array(ref int32) ([]int32, error) {
	if ref < 0 || int(ref) >= len(h.arrays) {
		return nil, ErrInvalidReference
	}
	return h.arrays[ref], nil
}
