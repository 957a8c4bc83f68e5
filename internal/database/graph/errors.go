package graph

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Error kinds. Every error returned by a Store wraps exactly one of them.
var (
	ErrConnection = errors.New("graph: connection error")
	ErrNotFound   = errors.New("graph: not found")
	ErrQuery      = errors.New("graph: query error")
	ErrValidation = errors.New("graph: validation error")
)

// Error describes a failed store operation.
type Error struct {
	Op    string // adapter operation, e.g. "upsert node"
	Kind  error  // one of the Err* kinds above
	Query string // query text, if any
	Err   error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewError builds an *Error of the given kind.
func NewError(kind error, op string, cause error) *Error {
	return &Error{Op: op, Kind: kind, Err: cause}
}

// Validationf returns an ErrValidation error with a formatted message.
func Validationf(op, format string, args ...any) error {
	return &Error{Op: op, Kind: ErrValidation, Err: fmt.Errorf(format, args...)}
}

// classify maps a driver error onto the error taxonomy.
func classify(op, query string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *Error
	if errors.As(err, &gerr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if neo4j.IsConnectivityError(err) {
		return &Error{Op: op, Kind: ErrConnection, Query: query, Err: err}
	}
	return &Error{Op: op, Kind: ErrQuery, Query: query, Err: err}
}

var identifierRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name is safe to splice into a query as a
// label, relationship type, property or table name.
func ValidIdentifier(name string) bool {
	return identifierRE.MatchString(name)
}

// quote validates an identifier and wraps it in backticks for Cypher.
func quote(kind, name string) (string, error) {
	if !ValidIdentifier(name) {
		return "", Validationf("quote "+kind, "invalid %s %q", kind, name)
	}
	return "`" + name + "`", nil
}
