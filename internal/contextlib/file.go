package contextlib

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"flowrun/internal/model"
)

// FileIO writes/reads files under a fixed root directory, sanitizing
// requested names the way the teacher's handlers.sanitize/dataDir pair
// does (internal/handlers/files.go) - only a bare file name is accepted,
// never a path that could escape root.
type FileIO struct {
	root string
}

// NewFileIO builds a FileIO rooted at root; root is created on first write
// if missing.
func NewFileIO(root string) *FileIO {
	return &FileIO{root: root}
}

func sanitizeName(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, "/\\") {
		return "", false
	}
	return name, true
}

// Write takes inputs[0]=name, inputs[1]=content (both strings) and creates
// or truncates root/name with content, running again forever.
func (f *FileIO) Write(inputs []model.Value) (model.Value, bool, bool, error) {
	name, _ := inputs[0].(string)
	content, _ := inputs[1].(string)

	clean, ok := sanitizeName(name)
	if !ok {
		return nil, false, true, errors.Errorf("file_write: invalid file name %q", name)
	}
	if err := os.MkdirAll(f.root, 0o755); err != nil {
		return nil, false, true, errors.Wrap(err, "file_write: creating root directory")
	}
	path := filepath.Join(f.root, clean)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, false, true, errors.Wrapf(err, "file_write: writing %q", path)
	}
	return nil, false, true, nil
}

// Read takes inputs[0]=name and emits the file's content as a string,
// running again forever.
func (f *FileIO) Read(inputs []model.Value) (model.Value, bool, bool, error) {
	name, _ := inputs[0].(string)
	clean, ok := sanitizeName(name)
	if !ok {
		return nil, false, true, errors.Errorf("file_read: invalid file name %q", name)
	}
	path := filepath.Join(f.root, clean)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, false, true, errors.Wrapf(err, "file_read: reading %q", path)
	}
	return string(b), true, true, nil
}
