package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/garage-alert/internal/api/alertpb"
	"github.com/oshokin/garage-alert/internal/domain/alert"
)

// filePermissions restricts the snapshot file to its owner.
const filePermissions = 0o600

// FileRepository persists the snapshot to a JSON file on disk.
// JSON is produced and consumed via protobuf JSON (protojson) so the file
// matches what the gRPC API returns.
type FileRepository struct {
	// path is the filesystem location of the JSON snapshot file.
	path string
	// mu protects concurrent access to the file.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the snapshot from disk.
func (r *FileRepository) Load(_ context.Context) (alert.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return alert.Snapshot{}, ErrNotFound
		}

		return alert.Snapshot{}, fmt.Errorf("read snapshot file: %w", err)
	}

	var message structpb.Struct
	if err = protojson.Unmarshal(contents, &message); err != nil {
		return alert.Snapshot{}, fmt.Errorf("decode snapshot file: %w", err)
	}

	return alertpb.SnapshotFromStruct(&message), nil
}

// Save writes the snapshot to disk. The file is replaced atomically so a
// crash mid-write never leaves a truncated snapshot behind.
func (r *FileRepository) Save(_ context.Context, s alert.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	marshalOptions := protojson.MarshalOptions{
		Multiline:       true,
		EmitUnpopulated: true,
	}

	data, err := marshalOptions.Marshal(alertpb.SnapshotToStruct(s))
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp := r.path + ".tmp"
	if err = os.WriteFile(tmp, data, filePermissions); err != nil {
		return fmt.Errorf("write snapshot file: %w", err)
	}

	if err = os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("replace snapshot file: %w", err)
	}

	return nil
}

// Close is a no-op; the file is not held open between calls.
func (r *FileRepository) Close() error {
	return nil
}
