// Package value defines the tagged Item shared by the operand stack and the heap.
package value

import (
	"fmt"
	"strings"
)

// Tag identifies the shape of an Item's payload.
type Tag uint8

const (
	// Unknown is the zero tag; it never appears in a well-formed program state.
	Unknown Tag = iota
	// Unit is the single unit value.
	Unit
	// Bool carries 0 or 1 in Val.
	Bool
	// Int carries a 32-bit signed integer in Val.
	Int
	// HeapIndex points at a heap slot holding a header Item.
	HeapIndex
	// HeapRef points at a heap slot holding the referenced value.
	HeapRef
	// CodeIndex carries an instruction index in Val.
	CodeIndex
	// ReturnAddress carries the instruction index to resume at in Val.
	ReturnAddress
	// FramePointer carries a saved frame base in Val.
	FramePointer
	// PairHeader has a body of exactly two Items.
	PairHeader
	// InlHeader has a body of exactly one Item.
	InlHeader
	// InrHeader has a body of exactly one Item.
	InrHeader
	// ClosureHeader has a CodeIndex body head followed by captured Items.
	ClosureHeader
)

// NumTags is the number of tags including Unknown.
const NumTags = int(ClosureHeader) + 1

var tagNames = [NumTags]string{
	Unknown:       "Unknown",
	Unit:          "Unit",
	Bool:          "Bool",
	Int:           "Int",
	HeapIndex:     "HeapIndex",
	HeapRef:       "HeapRef",
	CodeIndex:     "CodeIndex",
	ReturnAddress: "ReturnAddress",
	FramePointer:  "FramePointer",
	PairHeader:    "PairHeader",
	InlHeader:     "InlHeader",
	InrHeader:     "InrHeader",
	ClosureHeader: "ClosureHeader",
}

// String returns the tag name.
func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("Tag(%d)", t)
}

// IsHeader reports whether items with this tag carry a body.
func (t Tag) IsHeader() bool {
	switch t {
	case PairHeader, InlHeader, InrHeader, ClosureHeader:
		return true
	default:
		return false
	}
}

// IsPointer reports whether items with this tag carry a heap handle.
func (t Tag) IsPointer() bool {
	return t == HeapIndex || t == HeapRef
}

// Handle is a stable index of a heap slot.
// Handle(0) is always invalid.
type Handle uint32

// Item is the universal runtime value.
// Which field is meaningful is fully determined by Tag: Val for scalars,
// Ptr for HeapIndex/HeapRef, Body for headers.
type Item struct {
	Tag  Tag
	Val  int32
	Ptr  Handle
	Body []Item
}

// MakeUnit creates the unit value.
func MakeUnit() Item {
	return Item{Tag: Unit}
}

// MakeBool creates a boolean value.
func MakeBool(b bool) Item {
	if b {
		return Item{Tag: Bool, Val: 1}
	}
	return Item{Tag: Bool, Val: 0}
}

// MakeInt creates an integer value.
func MakeInt(n int32) Item {
	return Item{Tag: Int, Val: n}
}

// MakeCodeIndex creates a code index.
func MakeCodeIndex(ip int32) Item {
	return Item{Tag: CodeIndex, Val: ip}
}

// MakeReturnAddress creates a return address.
func MakeReturnAddress(ip int32) Item {
	return Item{Tag: ReturnAddress, Val: ip}
}

// MakeFramePointer creates a saved frame pointer.
func MakeFramePointer(fp int32) Item {
	return Item{Tag: FramePointer, Val: fp}
}

// MakeHeapIndex creates a pointer to a header object.
func MakeHeapIndex(h Handle) Item {
	return Item{Tag: HeapIndex, Ptr: h}
}

// MakeHeapRef creates a mutable reference to a heap cell.
func MakeHeapRef(h Handle) Item {
	return Item{Tag: HeapRef, Ptr: h}
}

// MakePair creates a pair header.
func MakePair(left, right Item) Item {
	return Item{Tag: PairHeader, Body: []Item{left, right}}
}

// MakeInl creates a left sum header.
func MakeInl(v Item) Item {
	return Item{Tag: InlHeader, Body: []Item{v}}
}

// MakeInr creates a right sum header.
func MakeInr(v Item) Item {
	return Item{Tag: InrHeader, Body: []Item{v}}
}

// MakeClosure creates a closure header whose body is the code index
// followed by the captured items in the given order.
func MakeClosure(code int32, captures []Item) Item {
	body := make([]Item, 0, len(captures)+1)
	body = append(body, MakeCodeIndex(code))
	body = append(body, captures...)
	return Item{Tag: ClosureHeader, Body: body}
}

// Truth reports whether a Bool item holds true.
func (it Item) Truth() bool {
	return it.Val != 0
}

// Equal implements EQ: tag and scalar are compared by value, the pointer by
// handle identity and the body by identity. Two separately allocated pairs with
// equal contents are therefore different.
func Equal(a, b Item) bool {
	return a.Tag == b.Tag &&
		a.Val == b.Val &&
		a.Ptr == b.Ptr &&
		sameBody(a.Body, b.Body)
}

func sameBody(a, b []Item) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	if len(a) != len(b) {
		return false
	}
	return &a[0] == &b[0]
}

// String returns a shallow debug form such as "(Int, 5)" or "(HeapIndex, #3)".
// Heap contents are not followed; see the vm tracer for the deep form.
func (it Item) String() string {
	switch {
	case it.Tag.IsPointer():
		return fmt.Sprintf("(%s, #%d)", it.Tag, it.Ptr)
	case it.Tag.IsHeader():
		parts := make([]string, len(it.Body))
		for i, b := range it.Body {
			parts[i] = b.String()
		}
		return fmt.Sprintf("(%s, [%s])", it.Tag, strings.Join(parts, ", "))
	case it.Tag == Unknown:
		return "(?)"
	default:
		return fmt.Sprintf("(%s, %d)", it.Tag, it.Val)
	}
}
