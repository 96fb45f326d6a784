package engine

import (
	"fmt"
)

// Op is a comparison operator.
type Op int

const (
	OpLt Op = iota // <
	OpLe           // <=
	OpGt           // >
	OpGe           // >=
	OpEq           // ==
	OpNe           // !=
)

func (o Op) String() string {
	switch o {
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

func (o Op) holds(cmp int) bool {
	switch o {
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	}
	return false
}

// Expr is a boolean expression over the columns of a table.
type Expr interface {
	// bind resolves column references against t once, before any row is read.
	bind(t *Table) (evalFunc, error)
	String() string
}

// evalFunc writes the result for row s.lo+k into out[k]; len(out) == s.hi-s.lo.
type evalFunc func(s span, out []bool)

// Comparison tests a column against a literal. Null cells never match.
type Comparison struct {
	Column  string
	Op      Op
	Literal Value
}

// And, Or and Not combine expressions. Both operands are always evaluated.
type And struct{ Left, Right Expr }
type Or struct{ Left, Right Expr }
type Not struct{ Expr Expr }

func Cmp(column string, op Op, literal Value) *Comparison {
	return &Comparison{Column: column, Op: op, Literal: literal}
}

func AllOf(left, right Expr) *And { return &And{Left: left, Right: right} }
func AnyOf(left, right Expr) *Or { return &Or{Left: left, Right: right} }
func Negate(e Expr) *Not { return &Not{Expr: e} }

// Between is the closed range lo <= column <= hi.
func Between(column string, lo, hi Value) *And {
	return AllOf(Cmp(column, OpGe, lo), Cmp(column, OpLe, hi))
}

func (c *Comparison) String() string {
	return fmt.Sprintf("%s %s %s", c.Column, c.Op, c.Literal)
}
func (a *And) String() string { return fmt.Sprintf("(%s AND %s)", a.Left, a.Right) }
func (o *Or) String() string { return fmt.Sprintf("(%s OR %s)", o.Left, o.Right) }
func (n *Not) String() string { return fmt.Sprintf("NOT %s", n.Expr) }

func (c *Comparison) bind(t *Table) (evalFunc, error) {
	col, err := t.Column(c.Column)
	if err != nil {
		return nil, err
	}
	lit := c.Literal
	switch {
	case lit.IsNull():
		// comparing against null is never true
		return func(s span, out []bool) {
			for k := range out {
				out[k] = false
			}
		}, nil
	case col.typ.numeric() && lit.typ.numeric():
		// numeric fast path, no Value boxing per row
		if col.typ == Integer && lit.typ == Integer {
			break
		}
		want := lit.Float()
		op := c.Op
		return func(s span, out []bool) {
			for i := s.lo; i < s.hi; i++ {
				v, ok := col.Float(i)
				out[i-s.lo] = ok && op.holds(cmpFloat(v, want))
			}
		}, nil
	case col.typ != lit.typ:
		return nil, typeMismatch("compare", c.Column, "%s column against %s literal", col.typ, lit.typ)
	}
	op := c.Op
	return func(s span, out []bool) {
		for i := s.lo; i < s.hi; i++ {
			out[i-s.lo] = !col.IsNull(i) && op.holds(Compare(col.Value(i), lit))
		}
	}, nil
}

func (a *And) bind(t *Table) (evalFunc, error) {
	left, right, err := bindPair(t, a.Left, a.Right)
	if err != nil {
		return nil, err
	}
	return combine(left, right, func(l, r bool) bool { return l && r }), nil
}

func (o *Or) bind(t *Table) (evalFunc, error) {
	left, right, err := bindPair(t, o.Left, o.Right)
	if err != nil {
		return nil, err
	}
	return combine(left, right, func(l, r bool) bool { return l || r }), nil
}

func (n *Not) bind(t *Table) (evalFunc, error) {
	inner, err := n.Expr.bind(t)
	if err != nil {
		return nil, err
	}
	return func(s span, out []bool) {
		inner(s, out)
		for k := range out {
			out[k] = !out[k]
		}
	}, nil
}

func bindPair(t *Table, l, r Expr) (evalFunc, evalFunc, error) {
	left, err := l.bind(t)
	if err != nil {
		return nil, nil, err
	}
	right, err := r.bind(t)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func combine(left, right evalFunc, join func(l, r bool) bool) evalFunc {
	return func(s span, out []bool) {
		scratch := make([]bool, len(out))
		left(s, out)
		right(s, scratch)
		for k := range out {
			out[k] = join(out[k], scratch[k])
		}
	}
}

// Evaluate computes e for every row, returning a mask of NumRows entries.
func Evaluate(t *Table, e Expr, opts ...Option) ([]bool, error) {
	eval, err := e.bind(t)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", e, err)
	}
	mask := make([]bool, t.NumRows())
	parallel(buildOptions(opts).spans(t.NumRows()), func(_ int, s span) {
		eval(s, mask[s.lo:s.hi])
	})
	return mask, nil
}

// Filter keeps the rows for which e holds.
func Filter(t *Table, e Expr, opts ...Option) (*Table, error) {
	mask, err := Evaluate(t, e, opts...)
	if err != nil {
		return nil, err
	}
	return t.Select(mask)
}

// Split partitions t into the rows where e holds and the rows where it does not.
// The two tables are disjoint and together hold every input row.
func Split(t *Table, e Expr, opts ...Option) (matched, rest *Table, err error) {
	mask, err := Evaluate(t, e, opts...)
	if err != nil {
		return nil, nil, err
	}
	if matched, err = t.Select(mask); err != nil {
		return nil, nil, err
	}
	for i := range mask {
		mask[i] = !mask[i]
	}
	if rest, err = t.Select(mask); err != nil {
		return nil, nil, err
	}
	return matched, rest, nil
}
