package pairing

import (
	"path/filepath"
	"sort"
	"strings"

	"turnpp/internal/domain"

	"github.com/cockroachdb/errors"
)

// ChildDir is the storage directory for one child ticket:
// root + parentKey + "/" + childKey + "/".
func ChildDir(root, parentKey, childKey string) string {
	if root != "" && !strings.HasSuffix(root, "/") {
		root += "/"
	}
	return root + parentKey + "/" + childKey + "/"
}

// Resolve lists the files with extension ext in dir, sorted by name, each
// tagged with the suffix after its last underscore. The number of files is
// not checked here.
func Resolve(dir, ext string) ([]domain.TypedFile, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+ext))
	if err != nil {
		return nil, errors.Wrapf(err, "glob %s", dir)
	}
	sort.Strings(matches)

	files := make([]domain.TypedFile, 0, len(matches))
	for _, path := range matches {
		files = append(files, domain.TypedFile{Tag: TypeTag(path), Path: path})
	}
	return files, nil
}

// TypeTag returns the text between the last underscore and the extension of
// path's base name. A name without an underscore is its own tag.
func TypeTag(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if i := strings.LastIndex(base, "_"); i >= 0 {
		return base[i+1:]
	}
	return base
}
