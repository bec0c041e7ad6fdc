package contentstream

// Invocation is one Do operator.
type Invocation struct {
	Op   int // index into the operation list
	Name Name
}

// Invocations lists every Do operation in stream order.
func Invocations(ops []Operation) []Invocation {
	var out []Invocation
	for i, op := range ops {
		if op.Operator != "Do" || len(op.Operands) != 1 {
			continue
		}
		if n, ok := op.Operands[0].(Name); ok {
			out = append(out, Invocation{Op: i, Name: n})
		}
	}
	return out
}

// DistinctNames returns the invoked XObject names in order of first
// invocation, keeping only those accepted by keep.
func DistinctNames(ops []Operation, keep func(Name) bool) []Name {
	seen := map[Name]bool{}
	var out []Name
	for _, inv := range Invocations(ops) {
		if seen[inv.Name] {
			continue
		}
		seen[inv.Name] = true
		if keep == nil || keep(inv.Name) {
			out = append(out, inv.Name)
		}
	}
	return out
}

// RemoveInvocations drops every Do operation that paints name and returns
// the new operation list and how many were removed. ops is not modified.
func RemoveInvocations(ops []Operation, name Name) ([]Operation, int) {
	out := make([]Operation, 0, len(ops))
	removed := 0
	for _, op := range ops {
		if op.Operator == "Do" && len(op.Operands) == 1 {
			if n, ok := op.Operands[0].(Name); ok && n == name {
				removed++
				continue
			}
		}
		out = append(out, op)
	}
	return out, removed
}

// RenameInvocations points every Do that paints from at to instead.
func RenameInvocations(ops []Operation, from, to Name) ([]Operation, int) {
	out := make([]Operation, len(ops))
	copy(out, ops)
	renamed := 0
	for i, op := range out {
		if op.Operator != "Do" || len(op.Operands) != 1 {
			continue
		}
		if n, ok := op.Operands[0].(Name); ok && n == from {
			out[i] = Operation{Operator: "Do", Operands: []Object{to}}
			renamed++
		}
	}
	return out, renamed
}
