package contentstream

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// DecodeText maps string operand bytes to text assuming WinAnsi (cp1252)
// encoding, which covers the standard simple fonts.
func DecodeText(b []byte) string {
	s, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

// EncodeText is the inverse of DecodeText. Characters outside cp1252 are
// replaced.
func EncodeText(s string) []byte {
	if s == "" {
		return []byte{}
	}
	enc := encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder())
	b, err := enc.Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return b
}

// IsTextShowing reports whether operator paints a string operand.
func IsTextShowing(operator string) bool {
	switch operator {
	case "Tj", "TJ", "'", `"`:
		return true
	}
	return false
}

// RewriteText applies fn to the text of every text-showing operation and
// returns the resulting operations plus how many operations changed. ops is
// not modified.
//
// Text-showing operations on the same line of a text object are matched as
// one run, so a match split across operators is still found. When a match
// spans operators the rewritten run moves into the first operator of the
// run and the others are emptied.
func RewriteText(ops []Operation, fn func(string) (string, bool)) ([]Operation, int) {
	var out []Operation
	changed := 0
	for _, run := range textRuns(ops) {
		next, n := rewriteRun(ops, run, fn)
		if n == 0 {
			continue
		}
		if out == nil {
			out = make([]Operation, len(ops))
			copy(out, ops)
		}
		for k, i := range run {
			out[i] = next[k]
		}
		changed += n
	}
	if out == nil {
		return ops, 0
	}
	return out, changed
}

// textRuns groups the indices of text-showing operations that share a line.
// Text objects and text positioning operators end a run; ' and " start one.
func textRuns(ops []Operation) [][]int {
	var runs [][]int
	var cur []int
	flush := func() {
		if len(cur) > 0 {
			runs = append(runs, cur)
			cur = nil
		}
	}
	for i, op := range ops {
		switch op.Operator {
		case "BT", "ET", "Td", "TD", "Tm", "T*":
			flush()
			continue
		case "'", `"`:
			flush()
		}
		if _, ok := operationText(op); ok {
			cur = append(cur, i)
		}
	}
	flush()
	return runs
}

func rewriteRun(ops []Operation, run []int, fn func(string) (string, bool)) ([]Operation, int) {
	next := make([]Operation, len(run))
	var joined, got strings.Builder
	n := 0
	for k, i := range run {
		text, _ := operationText(ops[i])
		joined.WriteString(text)
		op, ok := rewriteOperation(ops[i], fn)
		if ok {
			n++
		}
		next[k] = op
		text, _ = operationText(op)
		got.WriteString(text)
	}
	if len(run) == 1 {
		return next, n
	}
	want, ok := fn(joined.String())
	if !ok || got.String() == want {
		return next, n
	}

	n = 0
	for k, i := range run {
		text := ""
		if k == 0 {
			text = want
		}
		if old, _ := operationText(ops[i]); old != text {
			n++
		}
		next[k] = withText(ops[i], text)
	}
	return next, n
}

// withText replaces the string operand of a text-showing operation.
func withText(op Operation, text string) Operation {
	last := len(op.Operands) - 1
	operands := make([]Object, len(op.Operands))
	copy(operands, op.Operands)
	switch v := op.Operands[last].(type) {
	case String:
		operands[last] = String{Bytes: EncodeText(text), Hex: v.Hex}
	case Array:
		hex := false
		for _, e := range v {
			if s, ok := e.(String); ok {
				hex = hex || s.Hex
			}
		}
		operands[last] = Array{String{Bytes: EncodeText(text), Hex: hex}}
	}
	return Operation{Operator: op.Operator, Operands: operands}
}

func rewriteOperation(op Operation, fn func(string) (string, bool)) (Operation, bool) {
	last := len(op.Operands) - 1
	operands := make([]Object, len(op.Operands))
	copy(operands, op.Operands)

	switch v := op.Operands[last].(type) {
	case String:
		text, ok := fn(DecodeText(v.Bytes))
		if !ok {
			return op, false
		}
		operands[last] = String{Bytes: EncodeText(text), Hex: v.Hex}
	case Array:
		arr, ok := rewriteArray(v, fn)
		if !ok {
			return op, false
		}
		operands[last] = arr
	default:
		return op, false
	}
	return Operation{Operator: op.Operator, Operands: operands}, true
}

// rewriteArray rewrites a TJ array. When every match falls inside a single
// string element the kerning adjustments are preserved; otherwise the array
// collapses into one string holding the rewritten text.
func rewriteArray(arr Array, fn func(string) (string, bool)) (Array, bool) {
	var joined strings.Builder
	hex := false
	for _, e := range arr {
		if s, ok := e.(String); ok {
			joined.WriteString(DecodeText(s.Bytes))
			hex = hex || s.Hex
		}
	}
	want, ok := fn(joined.String())
	if !ok {
		return arr, false
	}

	out := make(Array, len(arr))
	var got strings.Builder
	for i, e := range arr {
		s, isString := e.(String)
		if !isString {
			out[i] = e
			continue
		}
		text := DecodeText(s.Bytes)
		if rewritten, ok := fn(text); ok {
			text = rewritten
		}
		got.WriteString(text)
		out[i] = String{Bytes: EncodeText(text), Hex: s.Hex}
	}
	if got.String() == want {
		return out, true
	}
	return Array{String{Bytes: EncodeText(want), Hex: hex}}, true
}

// Text returns the decoded text of every text-showing operation, one entry
// per operation.
func Text(ops []Operation) []string {
	var out []string
	for _, op := range ops {
		if text, ok := operationText(op); ok {
			out = append(out, text)
		}
	}
	return out
}

func operationText(op Operation) (string, bool) {
	if !IsTextShowing(op.Operator) || len(op.Operands) == 0 {
		return "", false
	}
	switch v := op.Operands[len(op.Operands)-1].(type) {
	case String:
		return DecodeText(v.Bytes), true
	case Array:
		var b strings.Builder
		for _, e := range v {
			if s, ok := e.(String); ok {
				b.WriteString(DecodeText(s.Bytes))
			}
		}
		return b.String(), true
	}
	return "", false
}
