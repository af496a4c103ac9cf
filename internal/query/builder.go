package query

import (
	"strconv"
	"strings"
)

// marker is replaced by the positional placeholder of the clause argument
const marker = "?"

type clause struct {
	text  string
	arg   any
	bound bool
}

// Builder accumulates SQL fragments and their arguments in order. Each bound
// fragment carries exactly one argument; its placeholder number is derived
// from the fragment's position when the query is built, so the placeholders
// and the argument list cannot drift apart.
type Builder struct {
	base    string
	clauses []clause
}

// NewBuilder starts a query from base, which must not contain markers
func NewBuilder(base string) *Builder {
	return &Builder{base: base}
}

// And appends " AND cond", binding arg to the single marker in cond
func (b *Builder) And(cond string, arg any) *Builder {
	return b.Bind(" AND "+cond, arg)
}

// Bind appends text, binding arg to the single marker in text
func (b *Builder) Bind(text string, arg any) *Builder {
	b.clauses = append(b.clauses, clause{text: text, arg: arg, bound: true})
	return b
}

// Append appends text that binds no argument
func (b *Builder) Append(text string) *Builder {
	b.clauses = append(b.clauses, clause{text: text})
	return b
}

// Build renders the query text with $1..$n placeholders and returns the
// arguments in placeholder order
func (b *Builder) Build() (string, []any) {
	var sb strings.Builder
	sb.WriteString(b.base)

	var args []any
	for _, c := range b.clauses {
		if !c.bound {
			sb.WriteString(c.text)
			continue
		}
		args = append(args, c.arg)
		sb.WriteString(strings.Replace(c.text, marker, "$"+strconv.Itoa(len(args)), 1))
	}
	return sb.String(), args
}
