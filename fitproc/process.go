package fitproc

// Parse splits a FIT payload into its header region and data section and
// decodes the message stream, validating framing and CRCs. The definition
// table and all intermediate state are local to the call.
func Parse(data []byte) (*ParsedFit, error) {
	fr, err := parseFraming(data)
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords(fr.dataSection)
	if err != nil {
		return nil, err
	}
	return &ParsedFit{
		HeaderWithoutCRC: fr.headerWithoutCRC,
		HasHeaderCRC:     fr.hasHeaderCRC,
		DataSection:      fr.dataSection,
		Records:          records,
	}, nil
}

// Process decodes a FIT payload, applies the preprocessing options, and
// re-encodes the result with an updated header and recomputed CRCs.
//
// The pipeline is a pure synchronous transformation with four stages:
//
//  1. Parse validates framing/CRCs and decodes the message stream.
//  2. deriveWorkoutData computes summary metrics and, when smoothing is
//     enabled, the per-record speed/distance override values.
//  3. rewriteDataSection performs the single authoritative byte-level pass
//     that drops or overrides field values.
//  4. reencode rebuilds the file, and the rewritten data section is decoded
//     again so the returned records always describe the returned bytes.
func Process(data []byte, opts Options) (*Processed, error) {
	parsed, err := Parse(data)
	if err != nil {
		return nil, err
	}

	derived := deriveWorkoutData(parsed.Records, opts)

	rewritten, err := rewriteDataSection(parsed.DataSection, opts, derived.overrides)
	if err != nil {
		return nil, err
	}

	processedBytes, err := reencode(parsed.HeaderWithoutCRC, parsed.HasHeaderCRC, rewritten)
	if err != nil {
		return nil, err
	}

	records, err := decodeRecords(rewritten)
	if err != nil {
		return nil, err
	}

	return &Processed{
		Records:        records,
		ProcessedBytes: processedBytes,
		Summary:        derived.summary,
	}, nil
}
