package store

import (
	"database/sql"
	"strings"
)

// assignment is one column = value pair of an UPDATE
type assignment struct {
	column string
	value  any
}

// buildUpdate renders "UPDATE table SET a = ?, b = ? WHERE id = ?" with its
// arguments in placeholder order. Columns are never taken from user input.
func buildUpdate(table string, set []assignment, id string) (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(set)+1)

	b.WriteString("UPDATE ")
	b.WriteString(table)
	b.WriteString(" SET ")
	for i, a := range set {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.column)
		b.WriteString(" = ?")
		args = append(args, a.value)
	}
	b.WriteString(" WHERE id = ?")
	args = append(args, id)

	return b.String(), args
}

// expectRows turns a zero-row result into ErrNotFound
func expectRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
