package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/umu-scout/internal/config"
	"github.com/oshokin/umu-scout/internal/domain/versions"
)

// Source loads the previously published version record.
type Source interface {
	Load(ctx context.Context) (*versions.Record, error)
	// Describe names the source in diagnostics.
	Describe() string
}

// ErrNotFound is returned when no manifest exists at the source.
var ErrNotFound = errors.New("manifest not found")

// FileRepository persists a version record as a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the manifest.
	path string
}

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Describe returns the manifest path.
func (r *FileRepository) Describe() string {
	return r.path
}

// Load reads the record from disk.
func (r *FileRepository) Load(_ context.Context) (*versions.Record, error) {
	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", r.path, ErrNotFound)
		}

		return nil, fmt.Errorf("read manifest: %w", err)
	}

	return Decode(contents)
}

// Save writes the record to disk.
func (r *FileRepository) Save(_ context.Context, record *versions.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

// Decode parses manifest JSON.
func Decode(data []byte) (*versions.Record, error) {
	record := versions.NewRecord()
	if err := json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	return record, nil
}
