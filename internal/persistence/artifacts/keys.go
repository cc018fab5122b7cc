package artifacts

import (
	"encoding/hex"
	"strconv"

	"github.com/zeebo/blake3"

	"voxelindex.ai/internal/mesh"
	"voxelindex.ai/internal/preview"
)

// domainKey keys BLAKE3 so the same input text never yields the same
// cache key in two different artifact namespaces. Values are ASCII names
// zero-padded to 32 bytes.
type domainKey [32]byte

var (
	meshDomainKey = domainKey{
		'v', 'o', 'x', 'e', 'l', 'i', 'n', 'd', 'e', 'x', '.', 'c', 'a', 'c', 'h', 'e',
		'.', 'm', 'e', 's', 'h', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
	previewDomainKey = domainKey{
		'v', 'o', 'x', 'e', 'l', 'i', 'n', 'd', 'e', 'x', '.', 'c', 'a', 'c', 'h', 'e',
		'.', 'p', 'r', 'e', 'v', 'i', 'e', 'w', 0, 0, 0, 0, 0, 0, 0, 0,
	}
	placeholderDomainKey = domainKey{
		'v', 'o', 'x', 'e', 'l', 'i', 'n', 'd', 'e', 'x', '.', 'c', 'a', 'c', 'h', 'e',
		'.', 'e', 'r', 'r', 'o', 'r', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

func keyedHex(key domainKey, text string) string {
	h, err := blake3.NewKeyed(key[:])
	if err != nil {
		// Only a wrong key length fails, and domainKey is fixed size.
		panic("artifacts: blake3 keyed init: " + err.Error())
	}
	_, _ = h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// MeshKey addresses the mesh of one canonical object under one block
// profile.
func MeshKey(contentHash, profile string) string {
	return keyedHex(meshDomainKey, "mesh|"+contentHash+"|"+mesh.Version+"|"+profile)
}

// PreviewKey addresses one rendering of a mesh.
func PreviewKey(meshKey string, opts preview.Options) string {
	return keyedHex(previewDomainKey, "preview|"+meshKey+"|"+opts.Key()+"|"+preview.Version)
}

// PlaceholderKey addresses the error tile for a diagnostic code.
func PlaceholderKey(code string, size int) string {
	return keyedHex(placeholderDomainKey, "error|"+code+"|size="+strconv.Itoa(size)+"|"+preview.Version)
}
