package config

import (
	"io/fs"
	"path/filepath"

	"github.com/julianstephens/go-utils/helpers"
	"github.com/julianstephens/go-utils/jsonutil"
)

// SnapshotFileName is the default name for a resolved-config snapshot, the
// artifact the doctor subcommand writes so operators can inspect exactly
// what LogCar resolved defaults/file/env down to.
const SnapshotFileName = "logcar.snapshot.json"

// WriteSnapshot persists the resolved cfg to path, creating or overwriting
// it atomically.
func WriteSnapshot(cfg *Config, path string) error {
	data, err := jsonutil.Marshal(cfg)
	if err != nil {
		return &SnapshotError{Kind: SnapshotErrorKindEncode, Path: path, Err: err}
	}
	if err := helpers.AtomicFileWrite(path, data); err != nil {
		return &SnapshotError{Kind: SnapshotErrorKindWrite, Path: path, Err: err}
	}
	return nil
}

// ReadSnapshot loads a previously written snapshot back from path.
func ReadSnapshot(path string) (*Config, error) {
	if exists := helpers.Exists(path); !exists {
		return nil, &SnapshotError{Kind: SnapshotErrorKindNotFound, Path: path, Err: fs.ErrNotExist}
	}
	var cfg Config
	if err := jsonutil.ReadFileStrict(path, &cfg); err != nil {
		return nil, &SnapshotError{Kind: SnapshotErrorKindDecode, Path: path, Err: err}
	}
	return &cfg, nil
}

// DefaultSnapshotPath returns the SnapshotFileName joined under dir.
func DefaultSnapshotPath(dir string) string {
	return filepath.Join(dir, SnapshotFileName)
}
