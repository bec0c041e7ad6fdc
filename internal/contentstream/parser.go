package contentstream

import (
	"bytes"
	"fmt"
	"strconv"
)

// Parser parses PDF content streams into a sequence of operations.
type Parser struct {
	data     []byte
	pos      int
	operands []Object
	ops      []Operation
}

// NewParser creates a new content stream parser for the given data.
func NewParser(data []byte) *Parser {
	return &Parser{data: data}
}

// Parse parses data into operations.
func Parse(data []byte) ([]Operation, error) {
	return NewParser(data).Parse()
}

// Parse returns all operations in stream order. Operands left dangling at the
// end of the stream are dropped.
func (p *Parser) Parse() ([]Operation, error) {
	for {
		p.skipWhitespace()
		if p.pos >= len(p.data) {
			break
		}
		if err := p.parseNext(); err != nil {
			return nil, err
		}
	}
	return p.ops, nil
}

// parseNext consumes one token: operands are stacked, an operator closes the
// current operation.
func (p *Parser) parseNext() error {
	start := p.pos
	c := p.data[p.pos]

	if isRegular(c) && !isNumberStart(c) {
		token := p.readRegular()
		switch token {
		case "true":
			p.operands = append(p.operands, Bool(true))
			return nil
		case "false":
			p.operands = append(p.operands, Bool(false))
			return nil
		case "null":
			p.operands = append(p.operands, Null{})
			return nil
		case "BI":
			return p.parseInlineImage(start)
		}
		p.emit(token)
		return nil
	}

	operand, err := p.parseOperand()
	if err != nil {
		return fmt.Errorf("at position %d: %w", start, err)
	}
	p.operands = append(p.operands, operand)
	return nil
}

func (p *Parser) emit(operator string) {
	op := Operation{Operator: operator}
	if len(p.operands) > 0 {
		op.Operands = make([]Object, len(p.operands))
		copy(op.Operands, p.operands)
	}
	p.ops = append(p.ops, op)
	p.operands = p.operands[:0]
}

// parseOperand parses a number, string, name, array or dictionary.
func (p *Parser) parseOperand() (Object, error) {
	p.skipWhitespace()
	if p.pos >= len(p.data) {
		return nil, fmt.Errorf("unexpected end of stream")
	}

	c := p.data[p.pos]
	switch {
	case isNumberStart(c):
		return p.parseNumber()
	case c == '(':
		return p.parseString()
	case c == '<' && p.peek(1) == '<':
		return p.parseDict()
	case c == '<':
		return p.parseHexString()
	case c == '/':
		return p.parseName(), nil
	case c == '[':
		return p.parseArray()
	case isRegular(c):
		token := p.readRegular()
		switch token {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		case "null":
			return Null{}, nil
		}
		return nil, fmt.Errorf("unexpected token %q in operand", token)
	}
	return nil, fmt.Errorf("unexpected character %q", c)
}

func (p *Parser) parseNumber() (Object, error) {
	start := p.pos
	if c := p.data[p.pos]; c == '+' || c == '-' {
		p.pos++
	}
	hasDecimal := false
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if c >= '0' && c <= '9' {
			p.pos++
		} else if c == '.' && !hasDecimal {
			hasDecimal = true
			p.pos++
		} else {
			break
		}
	}

	s := string(p.data[start:p.pos])
	if hasDecimal {
		if s == "." || s == "-." || s == "+." {
			return Real(0), nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid real %q: %w", s, err)
		}
		return Real(v), nil
	}
	if s == "+" || s == "-" {
		return Int(0), nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// out of int64 range
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", s, err)
		}
		return Real(f), nil
	}
	return Int(v), nil
}

// parseString parses a literal string (...) with escape sequences.
func (p *Parser) parseString() (Object, error) {
	p.pos++ // (

	var out bytes.Buffer
	depth := 1
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		switch {
		case c == '\\' && p.pos+1 < len(p.data):
			p.pos++
			p.readEscape(&out)
			continue
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				p.pos++
				return String{Bytes: out.Bytes()}, nil
			}
		}
		out.WriteByte(c)
		p.pos++
	}
	return nil, fmt.Errorf("unclosed string")
}

func (p *Parser) readEscape(out *bytes.Buffer) {
	next := p.data[p.pos]
	p.pos++
	switch next {
	case 'n':
		out.WriteByte('\n')
	case 'r':
		out.WriteByte('\r')
	case 't':
		out.WriteByte('\t')
	case 'b':
		out.WriteByte('\b')
	case 'f':
		out.WriteByte('\f')
	case '\r':
		// line continuation
		if p.pos < len(p.data) && p.data[p.pos] == '\n' {
			p.pos++
		}
	case '\n':
	case '0', '1', '2', '3', '4', '5', '6', '7':
		v := int(next - '0')
		for i := 0; i < 2 && p.pos < len(p.data); i++ {
			d := p.data[p.pos]
			if d < '0' || d > '7' {
				break
			}
			v = v*8 + int(d-'0')
			p.pos++
		}
		out.WriteByte(byte(v & 0xFF))
	default:
		// \( \) \\ and unknown escapes keep the character
		out.WriteByte(next)
	}
}

func (p *Parser) parseHexString() (Object, error) {
	p.pos++ // <

	var digits []byte
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		p.pos++
		if c == '>' {
			if len(digits)%2 == 1 {
				digits = append(digits, '0')
			}
			out := make([]byte, len(digits)/2)
			for i := range out {
				out[i] = hexValue(digits[2*i])<<4 | hexValue(digits[2*i+1])
			}
			return String{Bytes: out, Hex: true}, nil
		}
		if isWhitespace(c) {
			continue
		}
		if !isHexDigit(c) {
			return nil, fmt.Errorf("invalid hex digit %q", c)
		}
		digits = append(digits, c)
	}
	return nil, fmt.Errorf("unclosed hex string")
}

// parseName parses /Name with #xx escapes.
func (p *Parser) parseName() Name {
	p.pos++ // /

	var out bytes.Buffer
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if !isRegular(c) {
			break
		}
		if c == '#' && p.pos+2 < len(p.data) && isHexDigit(p.data[p.pos+1]) && isHexDigit(p.data[p.pos+2]) {
			out.WriteByte(hexValue(p.data[p.pos+1])<<4 | hexValue(p.data[p.pos+2]))
			p.pos += 3
			continue
		}
		out.WriteByte(c)
		p.pos++
	}
	return Name(out.String())
}

func (p *Parser) parseArray() (Object, error) {
	p.pos++ // [

	arr := Array{}
	for {
		p.skipWhitespace()
		if p.pos >= len(p.data) {
			return nil, fmt.Errorf("unclosed array")
		}
		if p.data[p.pos] == ']' {
			p.pos++
			return arr, nil
		}
		obj, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		arr = append(arr, obj)
	}
}

func (p *Parser) parseDict() (Object, error) {
	p.pos += 2 // <<

	dict := Dict{}
	for {
		p.skipWhitespace()
		if p.pos >= len(p.data) {
			return nil, fmt.Errorf("unclosed dictionary")
		}
		if p.data[p.pos] == '>' && p.peek(1) == '>' {
			p.pos += 2
			return dict, nil
		}
		if p.data[p.pos] != '/' {
			return nil, fmt.Errorf("dictionary key must be a name")
		}
		key := p.parseName()
		value, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		dict = append(dict, DictEntry{Key: key, Value: value})
	}
}

// parseInlineImage reads BI <entries> ID <data> EI.
func (p *Parser) parseInlineImage(start int) error {
	p.operands = p.operands[:0]

	dict := Dict{}
	for {
		p.skipWhitespace()
		if p.pos >= len(p.data) {
			return fmt.Errorf("at position %d: inline image without ID", start)
		}
		if p.data[p.pos] != '/' {
			if token := p.readRegular(); token == "ID" {
				break
			}
			return fmt.Errorf("at position %d: malformed inline image dictionary", start)
		}
		key := p.parseName()
		value, err := p.parseOperand()
		if err != nil {
			return fmt.Errorf("at position %d: %w", start, err)
		}
		dict = append(dict, DictEntry{Key: key, Value: value})
	}

	// a single whitespace byte separates ID from the samples
	if p.pos < len(p.data) && isWhitespace(p.data[p.pos]) {
		p.pos++
	}

	dataStart := p.pos
	for i := dataStart; i+1 < len(p.data); i++ {
		if p.data[i] != 'E' || p.data[i+1] != 'I' {
			continue
		}
		if i > dataStart && !isWhitespace(p.data[i-1]) {
			continue
		}
		if i+2 < len(p.data) && isRegular(p.data[i+2]) {
			continue
		}
		end := i
		if end > dataStart {
			end-- // whitespace before EI
		}
		data := make([]byte, end-dataStart)
		copy(data, p.data[dataStart:end])
		p.ops = append(p.ops, Operation{Operator: "BI", Operands: []Object{dict}, Data: data})
		p.pos = i + 2
		return nil
	}
	return fmt.Errorf("at position %d: inline image without EI", start)
}

func (p *Parser) readRegular() string {
	start := p.pos
	for p.pos < len(p.data) && isRegular(p.data[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		// lone delimiter, consume it so parsing progresses
		p.pos++
	}
	return string(p.data[start:p.pos])
}

// skipWhitespace advances past whitespace and comments.
func (p *Parser) skipWhitespace() {
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if isWhitespace(c) {
			p.pos++
			continue
		}
		if c == '%' {
			for p.pos < len(p.data) && p.data[p.pos] != '\n' && p.data[p.pos] != '\r' {
				p.pos++
			}
			continue
		}
		return
	}
}

func (p *Parser) peek(offset int) byte {
	if p.pos+offset < len(p.data) {
		return p.data[p.pos+offset]
	}
	return 0
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(c byte) bool {
	return !isWhitespace(c) && !isDelimiter(c)
}

func isNumberStart(c byte) bool {
	return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9')
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexValue(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}
