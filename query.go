package datastore

// Operator represents a comparison operation in filters.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNe       Operator = "ne"
	OpGt       Operator = "gt"
	OpGe       Operator = "ge"
	OpLt       Operator = "lt"
	OpLe       Operator = "le"
	OpIn       Operator = "in"
	OpNotIn    Operator = "not_in"
	OpBetween  Operator = "between"
	OpPrefix   Operator = "prefix"   // string starts with
	OpSuffix   Operator = "suffix"   // string ends with
	OpContains Operator = "contains" // string contains
	OpLike     Operator = "like"     // SQL LIKE pattern
	OpILike    Operator = "ilike"    // case-insensitive LIKE
	OpRegex    Operator = "regex"    // regular expression match
	OpIsNull   Operator = "isnull"
	OpNotNull  Operator = "notnull"
)

// Node is a criteria expression. A nil Node matches every entity.
type Node interface{ isNode() }

// Condition is a simple filter condition (field op value).
type Condition struct {
	Field string
	Op    Operator
	// Value can be a single value, []any for OpIn/OpNotIn, or [2]any for OpBetween.
	Value any
}

// And matches when every child matches.
type And struct {
	Children []Node
}

// Or matches when at least one child matches.
type Or struct {
	Children []Node
}

// Not matches when its child does not.
type Not struct {
	Child Node
}

func (Condition) isNode() {}
func (And) isNode()       {}
func (Or) isNode()        {}
func (Not) isNode()       {}

// Helper functions for creating conditions
func Eq(field string, value any) Condition {
	return Condition{Field: field, Op: OpEq, Value: value}
}

func Ne(field string, value any) Condition {
	return Condition{Field: field, Op: OpNe, Value: value}
}

func Gt(field string, value any) Condition {
	return Condition{Field: field, Op: OpGt, Value: value}
}

func Ge(field string, value any) Condition {
	return Condition{Field: field, Op: OpGe, Value: value}
}

func Lt(field string, value any) Condition {
	return Condition{Field: field, Op: OpLt, Value: value}
}

func Le(field string, value any) Condition {
	return Condition{Field: field, Op: OpLe, Value: value}
}

func In(field string, values ...any) Condition {
	return Condition{Field: field, Op: OpIn, Value: values}
}

func NotIn(field string, values ...any) Condition {
	return Condition{Field: field, Op: OpNotIn, Value: values}
}

func Between(field string, from, to any) Condition {
	return Condition{Field: field, Op: OpBetween, Value: [2]any{from, to}}
}

func Prefix(field string, value string) Condition {
	return Condition{Field: field, Op: OpPrefix, Value: value}
}

func Suffix(field string, value string) Condition {
	return Condition{Field: field, Op: OpSuffix, Value: value}
}

func Contains(field string, value string) Condition {
	return Condition{Field: field, Op: OpContains, Value: value}
}

func Like(field string, pattern string) Condition {
	return Condition{Field: field, Op: OpLike, Value: pattern}
}

func ILike(field string, pattern string) Condition {
	return Condition{Field: field, Op: OpILike, Value: pattern}
}

func Regex(field string, pattern string) Condition {
	return Condition{Field: field, Op: OpRegex, Value: pattern}
}

func IsNull(field string) Condition {
	return Condition{Field: field, Op: OpIsNull, Value: nil}
}

func NotNull(field string) Condition {
	return Condition{Field: field, Op: OpNotNull, Value: nil}
}

// AllOf combines nodes with AND. Nil nodes are dropped; a single remaining
// node is returned as is and no remaining node yields nil.
func AllOf(nodes ...Node) Node {
	children := compact(nodes)
	switch len(children) {
	case 0:
		return nil
	case 1:
		return children[0]
	}
	return And{Children: children}
}

// AnyOf combines nodes with OR, with the same nil handling as AllOf.
func AnyOf(nodes ...Node) Node {
	children := compact(nodes)
	switch len(children) {
	case 0:
		return nil
	case 1:
		return children[0]
	}
	return Or{Children: children}
}

// Negate inverts n. Negating nil yields nil.
func Negate(n Node) Node {
	if n == nil {
		return nil
	}
	if inner, ok := n.(Not); ok {
		return inner.Child
	}
	return Not{Child: n}
}

func compact(nodes []Node) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}
