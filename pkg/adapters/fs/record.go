package fs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"gopkg.in/yaml.v3"
)

// TempFilePrefix prefixes the temporary files of record writes. Watchers
// skip them since they never match reviewFilePattern.
const TempFilePrefix = "discuss-tmp-"

// writeRecord stores rr as YAML at path.
func writeRecord(path string, rr core.ReviewRequest) error {
	data, err := yaml.Marshal(rr)
	if err != nil {
		return fmt.Errorf("failed to encode review %s: %w", rr.ID, err)
	}
	return writeFileAtomic(path, data, 0644)
}

// writeFileAtomic writes data to a temp file in the same directory and
// renames it over path, so readers and watchers never see a partial file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), TempFilePrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	return nil
}

// readRecord loads the review stored at path. A missing file is core.ErrNotFound.
func readRecord(path string) (*core.ReviewRequest, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("review record %s: %w", filepath.Base(path), core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read review record: %w", err)
	}

	var rr core.ReviewRequest
	if err := yaml.Unmarshal(data, &rr); err != nil {
		return nil, fmt.Errorf("failed to parse review record %s: %w", filepath.Base(path), err)
	}
	return &rr, nil
}
