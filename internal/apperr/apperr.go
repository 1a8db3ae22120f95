// Package apperr classifies storefront failures so callers can branch on the
// kind of failure instead of parsing messages.
package apperr

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindRemoteQuery
	KindNotFound
	KindConflict
	KindStorageWrite
	KindStorageDelete
	KindMetadataWrite
	KindMetadataDelete
	KindReorder
)

var kindNames = map[Kind]string{
	KindUnknown:        "UnknownError",
	KindValidation:     "ValidationError",
	KindRemoteQuery:    "RemoteQueryError",
	KindNotFound:       "NotFoundError",
	KindConflict:       "ConflictError",
	KindStorageWrite:   "StorageWriteError",
	KindStorageDelete:  "StorageDeleteError",
	KindMetadataWrite:  "MetadataWriteError",
	KindMetadataDelete: "MetadataDeleteError",
	KindReorder:        "ReorderError",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Error carries a Kind, the operation that failed and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches bare kind sentinels such as ErrNotFound.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Err != nil || t.Op != "" {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation     = &Error{Kind: KindValidation}
	ErrRemoteQuery    = &Error{Kind: KindRemoteQuery}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrConflict       = &Error{Kind: KindConflict}
	ErrStorageWrite   = &Error{Kind: KindStorageWrite}
	ErrStorageDelete  = &Error{Kind: KindStorageDelete}
	ErrMetadataWrite  = &Error{Kind: KindMetadataWrite}
	ErrMetadataDelete = &Error{Kind: KindMetadataDelete}
	ErrReorder        = &Error{Kind: KindReorder}
)

func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Validation(op, format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Op: op, Err: errors.Errorf(format, args...)}
}

func NotFound(op, format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Op: op, Err: errors.Errorf(format, args...)}
}

// KindOf reports the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Failures lists every individual failure aggregated into a reorder error.
func Failures(err error) []error {
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindReorder {
		return nil
	}
	return multierr.Errors(e.Err)
}
