package diag

const StrictFallbackPrefix = "STRICT_FALLBACK_"

const (
	// Format selection.
	CodeFormatUnknown   = "FORMAT_UNKNOWN"
	CodeFormatAmbiguous = "FORMAT_AMBIGUOUS"

	// Pipeline level.
	CodeInvalidObject     = "INVALID_OBJECT"
	CodeInternalInvariant = "INTERNAL_INVARIANT"
	CodeWorkerFailure     = "WORKER_FAILURE"
	CodeReadFailed        = "READ_FAILED"
	CodeNoVoxels          = "NO_VOXELS"

	// Line-text (BO2).
	CodeBO2TextDecodeFailed    = "BO2_TEXT_DECODE_FAILED"
	CodeBO2MetaLineInvalid     = "BO2_META_LINE_INVALID"
	CodeBO2MetaTagUnknown      = "BO2_META_TAG_UNKNOWN"
	CodeBO2BlockRecordInvalid  = "BO2_BLOCK_RECORD_INVALID"
	CodeBO2DuplicateVoxel      = "BO2_DUPLICATE_VOXEL"
	CodeBO2SectionMissing      = "BO2_SECTION_MISSING"
	CodeBO2SigMismatch         = "BO2_SIG_MISMATCH"
	CodeBO2SectionUnknownBytes = "BO2_SECTION_UNKNOWN_BYTES"
	CodeBO2LegacyDataRange     = "BO2_LEGACY_DATA_RANGE"
	CodeBO2CoordinateRange     = "BO2_COORDINATE_RANGE"
	CodeBO2FatalParseError     = "BO2_FATAL_PARSE_ERROR"

	// Binary-tag (schematic).
	CodeSchemEnvelopeCorrupt     = "SCHEM_ENVELOPE_CORRUPT"
	CodeSchemNBTParseFailed      = "SCHEM_NBT_PARSE_FAILED"
	CodeSchemNBTTruncated        = "SCHEM_NBT_TRUNCATED"
	CodeSchemDimensionsInvalid   = "SCHEM_DIMENSIONS_INVALID"
	CodeSchemBlockArrayTruncated = "SCHEM_BLOCK_ARRAY_TRUNCATED"
	CodeSchemBlockDataTruncated  = "SCHEM_BLOCKDATA_TRUNCATED"
	CodeSchemVarintInvalid       = "SCHEM_BLOCKDATA_VARINT_INVALID"
	CodeSchemCountMismatch       = "SCHEM_BLOCKDATA_COUNT_MISMATCH"
	CodeSchemLayoutUnsupported   = "SCHEM_LAYOUT_UNSUPPORTED"
	CodeSchemCanonicalizeFailed  = "SCHEM_CANONICALIZE_FAILED"

	// Structured-object (hytale prefab).
	CodeHytaleJSONInvalid        = "HYTALE_JSON_INVALID"
	CodeHytaleMissingCoreField   = "HYTALE_SCHEMA_MISSING_CORE_FIELD"
	CodeHytaleBlockRecordInvalid = "HYTALE_BLOCK_RECORD_INVALID"
	CodeHytaleBlockUnknown       = "HYTALE_BLOCK_UNKNOWN"
)

var knownCodes = map[string]struct{}{
	CodeFormatUnknown:            {},
	CodeFormatAmbiguous:          {},
	CodeInvalidObject:            {},
	CodeInternalInvariant:        {},
	CodeWorkerFailure:            {},
	CodeReadFailed:               {},
	CodeNoVoxels:                 {},
	CodeBO2TextDecodeFailed:      {},
	CodeBO2MetaLineInvalid:       {},
	CodeBO2MetaTagUnknown:        {},
	CodeBO2BlockRecordInvalid:    {},
	CodeBO2DuplicateVoxel:        {},
	CodeBO2SectionMissing:        {},
	CodeBO2SigMismatch:           {},
	CodeBO2SectionUnknownBytes:   {},
	CodeBO2LegacyDataRange:       {},
	CodeBO2CoordinateRange:       {},
	CodeBO2FatalParseError:       {},
	CodeSchemEnvelopeCorrupt:     {},
	CodeSchemNBTParseFailed:      {},
	CodeSchemNBTTruncated:        {},
	CodeSchemDimensionsInvalid:   {},
	CodeSchemBlockArrayTruncated: {},
	CodeSchemBlockDataTruncated:  {},
	CodeSchemVarintInvalid:       {},
	CodeSchemCountMismatch:       {},
	CodeSchemLayoutUnsupported:   {},
	CodeSchemCanonicalizeFailed:  {},
	CodeHytaleJSONInvalid:        {},
	CodeHytaleMissingCoreField:   {},
	CodeHytaleBlockRecordInvalid: {},
	CodeHytaleBlockUnknown:       {},
}

// IsKnownCode reports whether code is one of the codes above, or a strict
// fallback wrapper around one.
func IsKnownCode(code string) bool {
	if len(code) > len(StrictFallbackPrefix) && code[:len(StrictFallbackPrefix)] == StrictFallbackPrefix {
		code = code[len(StrictFallbackPrefix):]
	}
	_, ok := knownCodes[code]
	return ok
}
