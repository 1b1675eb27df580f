package core

// Children returns the direct sub-expressions of e in source order.
func Children(e Expr) []Expr {
	switch n := e.(type) {
	case *FuncCall:
		return n.Args
	case *WindowCall:
		return n.Args
	case *BinaryExpr:
		return []Expr{n.Left, n.Right}
	case *UnaryExpr:
		return []Expr{n.Expr}
	case *ParenExpr:
		return []Expr{n.Expr}
	case *IfExpr:
		out := make([]Expr, 0, len(n.Branches)*2+1)
		for _, b := range n.Branches {
			out = append(out, b.Condition, b.Result)
		}
		if n.Else != nil {
			out = append(out, n.Else)
		}
		return out
	case *CaseExpr:
		out := make([]Expr, 0, len(n.Whens)*2+2)
		if n.Operand != nil {
			out = append(out, n.Operand)
		}
		for _, w := range n.Whens {
			out = append(out, w.Condition, w.Result)
		}
		if n.Else != nil {
			out = append(out, n.Else)
		}
		return out
	case *InExpr:
		return append([]Expr{n.Expr}, n.Values...)
	case *LodExpr:
		return append(append([]Expr{}, n.Dims...), n.Expr)
	default:
		return nil
	}
}

// Walk visits e and its descendants in pre-order. If fn returns false the
// children of that node are skipped.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil {
		return
	}
	if !fn(e) {
		return
	}
	for _, c := range Children(e) {
		Walk(c, fn)
	}
}

// FieldRefs returns every field reference in e in pre-order.
func FieldRefs(e Expr) []*FieldRef {
	var refs []*FieldRef
	Walk(e, func(n Expr) bool {
		if f, ok := n.(*FieldRef); ok {
			refs = append(refs, f)
		}
		return true
	})
	return refs
}
