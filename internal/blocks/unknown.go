package blocks

import "sort"

type UnknownEntry struct {
	Source      string `json:"source"`
	Canonical   string `json:"canonical"`
	Occurrences int    `json:"occurrences"`
}

type UnknownReport struct {
	TotalUnknown int            `json:"total_unknown"`
	Entries      []UnknownEntry `json:"entries"`
}

// Tally counts unresolved blocks per (source, canonical) pair.
type Tally struct {
	total  int
	counts map[[2]string]int
}

func (t *Tally) Add(res Resolution) {
	if !res.Unknown {
		return
	}
	t.AddRaw(res.Source, res.Canonical)
}

func (t *Tally) AddRaw(source, canonical string) {
	if t.counts == nil {
		t.counts = make(map[[2]string]int)
	}
	t.total++
	t.counts[[2]string{source, canonical}]++
}

func (t *Tally) Total() int { return t.total }

// Report orders entries by descending occurrences, then by source.
func (t *Tally) Report() UnknownReport {
	entries := make([]UnknownEntry, 0, len(t.counts))
	for k, n := range t.counts {
		entries = append(entries, UnknownEntry{Source: k[0], Canonical: k[1], Occurrences: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Occurrences != b.Occurrences {
			return a.Occurrences > b.Occurrences
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Canonical < b.Canonical
	})
	return UnknownReport{TotalUnknown: t.total, Entries: entries}
}
