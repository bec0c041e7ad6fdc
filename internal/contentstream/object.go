// Package contentstream lexes, edits and re-serializes PDF page content
// streams. It understands enough of the operator syntax to rewrite the string
// operands of text-showing operators and to locate XObject invocations.
package contentstream

// Object is a content stream operand.
type Object interface {
	isObject()
}

// Int is an integer operand.
type Int int64

// Real is a real number operand.
type Real float64

// Bool is a boolean operand.
type Bool bool

// Null is the null operand.
type Null struct{}

// Name is a name operand without its leading slash.
type Name string

// String is a string operand. Hex records whether it was written in <hex>
// form so it round-trips the same way.
type String struct {
	Bytes []byte
	Hex   bool
}

// Array is an array operand.
type Array []Object

// DictEntry is one key/value pair of a Dict.
type DictEntry struct {
	Key   Name
	Value Object
}

// Dict is a dictionary operand. Entries keep their source order.
type Dict []DictEntry

// Get returns the value stored under key.
func (d Dict) Get(key Name) (Object, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func (Int) isObject()    {}
func (Real) isObject()   {}
func (Bool) isObject()   {}
func (Null) isObject()   {}
func (Name) isObject()   {}
func (String) isObject() {}
func (Array) isObject()  {}
func (Dict) isObject()   {}

// Operation is one operator with the operands that precede it.
type Operation struct {
	Operator string
	Operands []Object

	// Data holds the raw sample bytes of an inline image (operator BI).
	// The image dictionary entries are kept in Operands as a single Dict.
	Data []byte
}
