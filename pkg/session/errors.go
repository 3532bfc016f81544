package session

import (
	"errors"

	"github.com/quarrylabs/quarry/pkg/storage"
)

// Error kinds surfaced by a Session. Callers match them with errors.Is;
// the wrapped message carries the detail (and, for ErrExecution, the
// engine's own message untouched).
var (
	// ErrNotFound reports a missing source file or project file.
	ErrNotFound = errors.New("not found")

	// ErrTableNotFound reports a dataset name that is not registered.
	ErrTableNotFound = errors.New("table not found")

	// ErrUnsupportedFormat reports a file extension outside the import
	// allow-list. It is the storage package's sentinel, re-exported so
	// callers only depend on this package.
	ErrUnsupportedFormat = storage.ErrUnsupportedFormat

	// ErrDuplicateName reports a requested name that collides with a
	// registered dataset.
	ErrDuplicateName = errors.New("duplicate dataset name")

	// ErrInvalidName reports a name outside the identifier grammar.
	ErrInvalidName = errors.New("invalid dataset name")

	// ErrValidation reports a caller-supplied argument invariant that
	// failed before any engine work began.
	ErrValidation = errors.New("validation failed")

	// ErrExecution reports a query the engine rejected or failed.
	ErrExecution = errors.New("execution failed")

	// ErrIO reports a file read or write failure during import, export,
	// or persistence, distinct from ErrNotFound.
	ErrIO = errors.New("io failure")

	// ErrNoProject reports an operation that needs an open project when
	// none is bound.
	ErrNoProject = errors.New("no project open")

	// ErrProjectExists reports a NewProject path that already exists.
	ErrProjectExists = errors.New("project file already exists")

	// ErrInvalidProject reports an existing file that is not a valid
	// project database.
	ErrInvalidProject = errors.New("invalid project file")
)
