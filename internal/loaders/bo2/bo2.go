// Package bo2 decodes the line-oriented [META]/[DATA] object format.
package bo2

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"voxelindex.ai/internal/blocks"
	"voxelindex.ai/internal/diag"
	"voxelindex.ai/internal/loaders"
	"voxelindex.ai/internal/voxel"
)

var knownMetaKeys = map[string]struct{}{
	"author":              {},
	"description":         {},
	"randomrotation":      {},
	"tree":                {},
	"spawnonblocktype":    {},
	"collisionpercentage": {},
	"dig":                 {},
	"rarity":              {},
	"rotateautobranches":  {},
	"collisionblocktype":  {},
}

var (
	sectionRe    = regexp.MustCompile(`(?i)^\[(meta|data)\]$`)
	metaRe       = regexp.MustCompile(`^([A-Za-z0-9_.-]+)\s*=\s*(.*)$`)
	dataRe       = regexp.MustCompile(`^(-?\d+)\s*,\s*(-?\d+)\s*,\s*(-?\d+)\s*:\s*(.+)$`)
	legacyRe     = regexp.MustCompile(`^(\d+)(?:[:.](\d+))?$`)
	namespacedRe = regexp.MustCompile(`(?i)^([a-z0-9_.-]+:[a-z0-9_./-]+)(?:\[.*\])?$`)
)

const (
	sniffWindow = 64 << 10
	textWindow  = 4096
)

// Sniff looks for section markers without decoding the whole file. The
// path hint is not consulted; markers are reliable enough on their own.
func Sniff(b []byte, _ string) loaders.SniffResult {
	head := b[:min(len(b), 32)]
	prefix := strings.TrimLeft(string(head), " \t\r\n\ufeff")
	lower := strings.ToLower(prefix)
	if strings.HasPrefix(prefix, "{") ||
		(strings.HasPrefix(prefix, "[") && !strings.HasPrefix(lower, "[meta]") && !strings.HasPrefix(lower, "[data]")) {
		return loaders.SniffResult{Match: false, Confidence: loaders.High, Reasons: []string{"JSON_SIG"}}
	}
	if bytes.HasPrefix(b, []byte("PK")) {
		return loaders.SniffResult{Match: false, Confidence: loaders.High, Reasons: []string{"ZIP_SIG"}}
	}
	window := bytes.ToLower(b[:min(len(b), sniffWindow)])
	hasMeta := bytes.Contains(window, []byte("[meta]"))
	hasData := bytes.Contains(window, []byte("[data]"))
	switch {
	case hasMeta && hasData:
		return loaders.SniffResult{Match: true, Confidence: loaders.High, Reasons: []string{"META_AND_DATA_MARKERS"}}
	case hasMeta || hasData:
		return loaders.SniffResult{Match: true, Confidence: loaders.Medium, Reasons: []string{"PARTIAL_SECTION_MARKERS"}}
	case !isMostlyText(b):
		return loaders.SniffResult{Match: false, Confidence: loaders.High, Reasons: []string{"BINARY_NO_MARKERS"}}
	}
	return loaders.SniffResult{Match: false, Confidence: loaders.Low, Reasons: []string{"NO_MARKERS"}}
}

// isMostlyText reports whether more than 85% of the first 4 KiB are
// printable ASCII or common whitespace.
func isMostlyText(b []byte) bool {
	if len(b) == 0 {
		return true
	}
	n := min(len(b), textWindow)
	printable := 0
	for _, c := range b[:n] {
		if c == '\t' || c == '\n' || c == '\r' || (c >= 32 && c <= 126) {
			printable++
		}
	}
	return float64(printable)/float64(n) > 0.85
}

func Load(b []byte, opts loaders.Options) loaders.Result {
	return loaders.Run(opts.Mode,
		func() loaders.Result { return parse(b, opts, true) },
		func() loaders.Result { return parse(b, opts, false) },
	)
}

type section int

const (
	sectionNone section = iota
	sectionMeta
	sectionData
)

type state struct {
	strict bool
	reg    *blocks.Registry
	tags   map[string]string
	voxels []voxel.Voxel
	seen   map[[3]int]struct{}
	diags  diag.Set
	tally  blocks.Tally
}

func parse(b []byte, opts loaders.Options, strict bool) loaders.Result {
	st := &state{
		strict: strict,
		reg:    opts.Registry,
		tags:   map[string]string{},
		seen:   map[[3]int]struct{}{},
	}
	res := loaders.Result{Format: loaders.FormatBO2, ModeUsed: loaders.UsedSalvage}
	if strict {
		res.ModeUsed = loaders.UsedStrict
	}

	if strict && !isMostlyText(b) {
		st.diags.Add(diag.Errorf(diag.CodeBO2TextDecodeFailed, "input is not parseable as text"))
		return st.finish(res, opts)
	}
	text := string(b)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\uFFFD")
	}

	cur := sectionNone
	sawMeta, sawData := false, false
	for i, raw := range strings.Split(text, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		if m := sectionRe.FindStringSubmatch(line); m != nil {
			if strings.EqualFold(m[1], "meta") {
				cur, sawMeta = sectionMeta, true
			} else {
				cur, sawData = sectionData, true
			}
			continue
		}
		switch cur {
		case sectionMeta:
			st.metaLine(line, lineNo)
		case sectionData:
			st.dataLine(line, lineNo)
		default:
			if strict {
				st.diags.Add(diag.Errorf(diag.CodeBO2SectionMissing, "line outside section: %q", line).AtLine(lineNo))
			} else {
				st.diags.Add(diag.Warnf(diag.CodeBO2SectionUnknownBytes, "skipping bytes outside known section").AtLine(lineNo))
			}
		}
	}
	if !sawMeta || !sawData {
		st.diags.Report(strict, diag.Errorf(diag.CodeBO2SigMismatch, "object must include [META] and [DATA] sections"))
	}
	return st.finish(res, opts)
}

func (st *state) metaLine(line string, lineNo int) {
	m := metaRe.FindStringSubmatch(line)
	if m == nil {
		st.diags.Report(st.strict, diag.Errorf(diag.CodeBO2MetaLineInvalid, "invalid [META] line: %q", line).AtLine(lineNo))
		return
	}
	key := strings.ToLower(strings.TrimSpace(m[1]))
	if _, ok := knownMetaKeys[key]; !ok {
		st.diags.Report(st.strict, diag.Errorf(diag.CodeBO2MetaTagUnknown, "unknown metadata key %q", key).AtLine(lineNo))
	}
	st.tags[key] = strings.TrimSpace(m[2])
}

func (st *state) dataLine(line string, lineNo int) {
	m := dataRe.FindStringSubmatch(line)
	if m == nil {
		st.diags.Report(st.strict, diag.Errorf(diag.CodeBO2BlockRecordInvalid, "invalid [DATA] record: %q", line).AtLine(lineNo))
		return
	}
	var c [3]int
	for k := 0; k < 3; k++ {
		n, err := strconv.ParseInt(m[k+1], 10, 32)
		if err != nil {
			st.diags.Report(st.strict, diag.Errorf(diag.CodeBO2CoordinateRange, "coordinate out of range: %q", line).AtLine(lineNo))
			return
		}
		c[k] = int(n)
	}
	if _, dup := st.seen[c]; dup {
		st.diags.Report(st.strict, diag.Errorf(diag.CodeBO2DuplicateVoxel, "duplicate voxel coordinate %d,%d,%d", c[0], c[1], c[2]).AtLine(lineNo))
		if st.strict {
			return
		}
	}
	st.seen[c] = struct{}{}

	res := st.resolveToken(m[4], lineNo)
	st.tally.Add(res)
	st.voxels = append(st.voxels, voxel.Voxel{X: c[0], Y: c[1], Z: c[2], BlockKey: res.Canonical})
}

// resolveToken accepts "id", "id:data", "id.data" (legacy numeric) and
// "ns:name[state]" (namespaced, state ignored). Numeric tokens are tried
// first so "1:0" is never read as a namespaced id.
func (st *state) resolveToken(raw string, lineNo int) blocks.Resolution {
	tok := strings.TrimSpace(raw)
	if tok == "" {
		return blocks.Resolution{Canonical: "unknown:empty", Unknown: true, Source: "empty"}
	}
	if m := legacyRe.FindStringSubmatch(tok); m != nil {
		id, errID := strconv.Atoi(m[1])
		data := 0
		var errData error
		if m[2] != "" {
			data, errData = strconv.Atoi(m[2])
		}
		if errID == nil && errData == nil {
			if data > 15 {
				st.diags.Add(diag.Warnf(diag.CodeBO2LegacyDataRange, "legacy data value %d exceeds 4 bits", data).AtLine(lineNo))
			}
			return st.reg.Resolve(blocks.Legacy(id, data))
		}
	}
	if m := namespacedRe.FindStringSubmatch(tok); m != nil {
		return st.reg.Resolve(blocks.Namespaced(m[1]))
	}
	return st.reg.Resolve(blocks.Namespaced(tok))
}

func (st *state) finish(res loaders.Result, opts loaders.Options) loaders.Result {
	res.Warnings = st.diags.Warnings
	res.Errors = st.diags.Errors
	res.Unknown = st.tally.Report()
	res.Metadata = st.tags
	res.CellsDecoded = len(st.voxels)
	if st.diags.HasErrors() {
		res.Valid = false
		return res
	}
	loaders.Finalize(&res, st.voxels, loaders.MetadataFrom(st.tags, opts.SourcePath), diag.CodeBO2FatalParseError)
	return res
}
