package blocks

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const defaultNamespace = "minecraft:"

// Query asks for one block. A non-blank namespaced id wins over the legacy
// pair; the two are never combined.
type Query struct {
	NamespacedID string
	LegacyID     int
	LegacyData   int
	HasLegacy    bool
}

func Namespaced(id string) Query { return Query{NamespacedID: id} }

func Legacy(id, data int) Query { return Query{LegacyID: id, LegacyData: data, HasLegacy: true} }

type Resolution struct {
	Canonical string
	Unknown   bool
	Source    string
}

// Registry maps format-specific block identifiers to canonical keys. It is
// read-only after New and safe for concurrent use.
type Registry struct {
	profile    ProfileName
	namespaced map[string]string
	legacy     map[string]string
	digest     string
}

func New(profile ProfileName, ov *Overrides) (*Registry, error) {
	if ov != nil && ov.Profile != "" {
		profile = ov.Profile
	}
	if profile == "" {
		profile = ProfileLegacy112
	}
	base, ok := buildProfiles()[profile]
	if !ok {
		return nil, fmt.Errorf("unknown block profile %q", profile)
	}
	r := &Registry{
		profile:    profile,
		namespaced: base.namespaced,
		legacy:     base.legacy,
	}
	if ov != nil {
		for k, v := range ov.Overrides.Namespaced {
			r.namespaced[normalizeID(k)] = strings.TrimSpace(v)
		}
		for k, v := range ov.Overrides.Legacy {
			key, err := normalizeLegacyKey(k)
			if err != nil {
				return nil, err
			}
			r.legacy[key] = strings.TrimSpace(v)
		}
	}
	r.digest = r.computeDigest()
	return r, nil
}

func (r *Registry) Profile() ProfileName { return r.profile }

// Digest identifies the effective tables, overrides included.
func (r *Registry) Digest() string { return r.digest }

func (r *Registry) Resolve(q Query) Resolution {
	if id := normalizeID(q.NamespacedID); id != "" {
		if mapped, ok := r.namespaced[id]; ok {
			return Resolution{Canonical: mapped, Source: id}
		}
		if !strings.Contains(id, ":") {
			if mapped, ok := r.namespaced[defaultNamespace+id]; ok {
				return Resolution{Canonical: mapped, Source: id}
			}
		}
		return Resolution{Canonical: "unknown:namespaced:" + id, Unknown: true, Source: id}
	}
	if q.HasLegacy {
		key := legacyKey(q.LegacyID, q.LegacyData)
		if mapped, ok := r.legacy[key]; ok {
			return Resolution{Canonical: mapped, Source: key}
		}
		return Resolution{Canonical: "unknown:legacy:" + key, Unknown: true, Source: key}
	}
	return Resolution{Canonical: "unknown:unresolved", Unknown: true, Source: "unresolved"}
}

// IsAir reports whether a canonical key denotes empty space.
func IsAir(key string) bool {
	return key == "air" || strings.HasSuffix(key, ":air")
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func legacyKey(id, data int) string {
	return strconv.Itoa(id) + ":" + strconv.Itoa(data)
}

func normalizeLegacyKey(k string) (string, error) {
	idStr, dataStr, found := strings.Cut(strings.TrimSpace(k), ":")
	id, err := strconv.Atoi(strings.TrimSpace(idStr))
	if err != nil {
		return "", fmt.Errorf("legacy override key %q: %w", k, err)
	}
	data := 0
	if found {
		data, err = strconv.Atoi(strings.TrimSpace(dataStr))
		if err != nil {
			return "", fmt.Errorf("legacy override key %q: %w", k, err)
		}
	}
	return legacyKey(id, data), nil
}

func (r *Registry) computeDigest() string {
	lines := make([]string, 0, len(r.namespaced)+len(r.legacy)+1)
	lines = append(lines, "profile="+string(r.profile))
	for k, v := range r.namespaced {
		lines = append(lines, "n|"+k+"|"+v)
	}
	for k, v := range r.legacy {
		lines = append(lines, "l|"+k+"|"+v)
	}
	sort.Strings(lines)
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}
