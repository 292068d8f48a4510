package ingest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tienvm/ragdoc/internal/types"
)

// LoadFile reads one document from disk.
func LoadFile(path string) (types.DocumentSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.DocumentSource{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return types.DocumentSource{
		Path:    path,
		Content: string(data),
		Metadata: map[string]interface{}{
			"source": path,
		},
	}, nil
}

func statDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// ListDirectory walks a directory tree and returns the paths of all
// files matching the extension filter, in walk order.
func ListDirectory(dir string, extensions []string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("directory does not exist: %s", dir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		for _, ext := range extensions {
			if strings.HasSuffix(strings.ToLower(path), ext) {
				paths = append(paths, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}
