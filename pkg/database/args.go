package database

import (
	"strconv"
	"strings"
)

// Args accumulates positional query arguments and hands out the matching
// $N placeholders, so dynamically built WHERE clauses stay numbered in
// order of appearance.
type Args struct {
	vals []any
}

// Add appends v and returns its placeholder.
func (a *Args) Add(v any) string {
	a.vals = append(a.vals, v)
	return "$" + strconv.Itoa(len(a.vals))
}

// Values returns the accumulated arguments.
func (a *Args) Values() []any {
	return a.vals
}

// LikeEscape follows a LIKE operand built by ContainsPattern.
const LikeEscape = ` ESCAPE '\'`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern returns a LIKE pattern matching s as a literal substring.
func ContainsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
