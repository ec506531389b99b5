package store

import (
	"strings"
	"time"
)

// assignments accumulates "col = ?" pairs for partial UPDATE statements.
type assignments struct {
	cols []string
	args []any
}

func (a *assignments) set(col string, v any) {
	a.cols = append(a.cols, col+" = ?")
	a.args = append(a.args, v)
}

func (a *assignments) sql() string {
	return strings.Join(a.cols, ", ")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func now() time.Time {
	return time.Now().UTC()
}
