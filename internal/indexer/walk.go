package indexer

import (
	"io/fs"
	"path/filepath"
	"sort"
)

// File is one regular file found under the scan root.
type File struct {
	Path    string
	Size    int64
	MtimeMs int64
}

// Walk lists regular files under root recursively. Paths are absolute and
// sorted; symlinks and other special files are skipped.
func Walk(root string) ([]File, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	var out []File
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, File{
			Path:    path,
			Size:    info.Size(),
			MtimeMs: info.ModTime().UnixMilli(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
