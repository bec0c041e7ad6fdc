package contentstream

import (
	"bytes"
	"encoding/hex"
	"strconv"
	"strings"
)

// Write serializes operations back into content stream syntax, one
// operation per line.
func Write(ops []Operation) []byte {
	var buf bytes.Buffer
	for _, op := range ops {
		if op.Operator == "BI" {
			writeInlineImage(&buf, op)
			continue
		}
		for _, o := range op.Operands {
			writeObject(&buf, o)
			buf.WriteByte(' ')
		}
		buf.WriteString(op.Operator)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func writeInlineImage(buf *bytes.Buffer, op Operation) {
	buf.WriteString("BI\n")
	if len(op.Operands) == 1 {
		if d, ok := op.Operands[0].(Dict); ok {
			for _, e := range d {
				writeName(buf, e.Key)
				buf.WriteByte(' ')
				writeObject(buf, e.Value)
				buf.WriteByte('\n')
			}
		}
	}
	buf.WriteString("ID ")
	buf.Write(op.Data)
	buf.WriteString("\nEI\n")
}

func writeObject(buf *bytes.Buffer, o Object) {
	switch v := o.(type) {
	case Int:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case Real:
		buf.WriteString(FormatReal(float64(v)))
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(v)))
	case Null:
		buf.WriteString("null")
	case Name:
		writeName(buf, v)
	case String:
		if v.Hex {
			buf.WriteByte('<')
			buf.WriteString(hex.EncodeToString(v.Bytes))
			buf.WriteByte('>')
		} else {
			writeLiteral(buf, v.Bytes)
		}
	case Array:
		buf.WriteByte('[')
		for i, e := range v {
			if i > 0 {
				buf.WriteByte(' ')
			}
			writeObject(buf, e)
		}
		buf.WriteByte(']')
	case Dict:
		buf.WriteString("<<")
		for _, e := range v {
			writeName(buf, e.Key)
			buf.WriteByte(' ')
			writeObject(buf, e.Value)
		}
		buf.WriteString(">>")
	}
}

// FormatReal renders a number without exponent and without trailing zeros.
func FormatReal(f float64) string {
	s := strconv.FormatFloat(f, 'f', 4, 64)
	s = trimZeros(s)
	if s == "-0" {
		return "0"
	}
	return s
}

func trimZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	i := len(s)
	for i > 0 && s[i-1] == '0' {
		i--
	}
	if i > 0 && s[i-1] == '.' {
		i--
	}
	return s[:i]
}

func writeName(buf *bytes.Buffer, n Name) {
	buf.WriteByte('/')
	for i := 0; i < len(n); i++ {
		c := n[i]
		if c < 0x21 || c > 0x7e || c == '#' || isDelimiter(c) {
			buf.WriteByte('#')
			buf.WriteString(hex.EncodeToString([]byte{c}))
			continue
		}
		buf.WriteByte(c)
	}
}

func writeLiteral(buf *bytes.Buffer, b []byte) {
	buf.WriteByte('(')
	for _, c := range b {
		switch c {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			if c < 0x20 || c > 0x7e {
				buf.WriteByte('\\')
				s := strconv.FormatInt(int64(c), 8)
				for len(s) < 3 {
					s = "0" + s
				}
				buf.WriteString(s)
				continue
			}
			buf.WriteByte(c)
		}
	}
	buf.WriteByte(')')
}
