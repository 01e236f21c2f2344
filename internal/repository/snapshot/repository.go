package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oshokin/garage-alert/internal/domain/alert"
)

// Repository defines persistence operations for the last-known snapshot.
type Repository interface {
	Load(ctx context.Context) (alert.Snapshot, error)
	Save(ctx context.Context, s alert.Snapshot) error
	Close() error
}

// Backend names a storage implementation.
type Backend string

const (
	// BackendFile stores the snapshot as a JSON file.
	BackendFile Backend = "file"
	// BackendSQLite stores the snapshot in a SQLite database.
	BackendSQLite Backend = "sqlite"
	// BackendNone disables persistence.
	BackendNone Backend = "none"
)

var (
	// ErrNotFound is returned when no snapshot has been saved yet.
	ErrNotFound = errors.New("snapshot not found")
	// ErrUnknownBackend is returned for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown snapshot backend")
	// ErrPathRequired is returned when a backend needs a path and has none.
	ErrPathRequired = errors.New("snapshot path is required")
)

// ParseBackend validates a backend name. An empty name means BackendFile.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return BackendFile, nil
	case BackendFile, BackendSQLite, BackendNone:
		return b, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
}

// Open returns the repository for backend. BackendNone yields a repository
// that never finds a snapshot and discards saves.
func Open(ctx context.Context, backend Backend, path string) (Repository, error) {
	if backend != BackendNone && strings.TrimSpace(path) == "" {
		return nil, ErrPathRequired
	}

	switch backend {
	case BackendFile, "":
		return NewFileRepository(path), nil
	case BackendSQLite:
		return OpenSQLite(ctx, path)
	case BackendNone:
		return discard{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// discard is the repository behind BackendNone.
type discard struct{}

func (discard) Load(context.Context) (alert.Snapshot, error) { return alert.Snapshot{}, ErrNotFound }

func (discard) Save(context.Context, alert.Snapshot) error { return nil }

func (discard) Close() error { return nil }
