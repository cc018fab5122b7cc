// Package artifacts keeps immutable, content-addressed derived files: zstd
// compressed CBOR meshes and PNG previews.
package artifacts

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/singleflight"

	"voxelindex.ai/internal/mesh"
)

const meshSuffix = ".mesh.cbor.zst"

var ErrNotFound = errors.New("artifact not found")

// Store writes each artifact at most once. Concurrent writers of the same
// path share a single write; the file appears atomically via rename.
type Store struct {
	cacheDir  string
	thumbsDir string
	enc       cbor.EncMode
	group     singleflight.Group
}

func Open(cacheDir, thumbsDir string) (*Store, error) {
	for _, dir := range []string{cacheDir, thumbsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("artifacts: mkdir %s: %w", dir, err)
		}
	}
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("artifacts: cbor enc mode: %w", err)
	}
	return &Store{cacheDir: cacheDir, thumbsDir: thumbsDir, enc: enc}, nil
}

func (s *Store) MeshPath(key string) string {
	return filepath.Join(s.cacheDir, key+meshSuffix)
}

func (s *Store) PreviewPath(key string) string {
	return filepath.Join(s.thumbsDir, key+".png")
}

func (s *Store) PlaceholderPath(key string) string {
	return filepath.Join(s.thumbsDir, "error-"+key+".png")
}

// ProjectionPath names a debug view next to the main preview.
func (s *Store) ProjectionPath(previewKey, view string) string {
	return filepath.Join(s.thumbsDir, previewKey+"-"+view+".png")
}

func Exists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

// Ensure writes path from produce unless it already exists. It reports
// whether this call (or the in-flight call it joined) created the file.
func (s *Store) Ensure(path string, produce func() ([]byte, error)) (bool, error) {
	if Exists(path) {
		return false, nil
	}
	v, err, _ := s.group.Do(path, func() (any, error) {
		if Exists(path) {
			return false, nil
		}
		b, err := produce()
		if err != nil {
			return false, err
		}
		if err := WriteAtomic(path, b); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// WriteAtomic replaces path with b through a temp file in the same directory.
func WriteAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// PutMesh stores m under key and returns its path.
func (s *Store) PutMesh(key string, m mesh.Mesh) (string, error) {
	path := s.MeshPath(key)
	_, err := s.Ensure(path, func() ([]byte, error) { return s.EncodeMesh(m) })
	if err != nil {
		return "", fmt.Errorf("artifacts: put mesh %s: %w", key, err)
	}
	return path, nil
}

func (s *Store) EncodeMesh(m mesh.Mesh) ([]byte, error) {
	raw, err := s.enc.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("cbor encode: %w", err)
	}
	zw, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer zw.Close()
	return zw.EncodeAll(raw, nil), nil
}

// RemoveMesh deletes the mesh under key so a later PutMesh rewrites it.
// A missing file is not an error.
func (s *Store) RemoveMesh(key string) error {
	if err := os.Remove(s.MeshPath(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("artifacts: remove mesh %s: %w", key, err)
	}
	return nil
}

func (s *Store) GetMesh(key string) (mesh.Mesh, error) {
	var m mesh.Mesh
	f, err := os.Open(s.MeshPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return m, err
	}
	defer dec.Close()

	if err := cbor.NewDecoder(bufio.NewReaderSize(dec, 64*1024)).Decode(&m); err != nil {
		return m, fmt.Errorf("cbor decode: %w", err)
	}
	return m, nil
}
