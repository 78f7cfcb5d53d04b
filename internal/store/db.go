package store

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

type Selecter interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

type DB interface {
	Execer
	Getter
	Selecter
}

type Tx interface {
	Execer
	Getter
}

// Page is a limit/offset window for list queries.
type Page struct {
	Limit  int
	Offset int
}

// conditions accumulates AND-ed WHERE fragments with positional args.
type conditions struct {
	clauses []string
	args    []any
}

func (c *conditions) add(clause string, arg any) {
	c.args = append(c.args, arg)
	c.clauses = append(c.clauses, strings.ReplaceAll(clause, "?", "$"+itoa(len(c.args))))
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// paged appends LIMIT/OFFSET placeholders and returns the final args.
func (c *conditions) paged(query string, page Page) (string, []any) {
	n := len(c.args)
	query += " LIMIT $" + itoa(n+1) + " OFFSET $" + itoa(n+2)
	return query, append(append([]any{}, c.args...), page.Limit, page.Offset)
}

func itoa(value int) string {
	return strconv.Itoa(value)
}

func derefStringPtr(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
