// Package fitproc decodes FIT activity files, rewrites their data section
// according to user-selected preprocessing options, and re-encodes a
// structurally valid file with recomputed CRCs.
//
// The layout mirrors the official FIT file structure:
//
//   - A header whose first byte declares its own size, followed by a 4-byte
//     little-endian data payload length and (optionally) a two-byte CRC for
//     the header itself.
//   - A data section containing a stream of definition and data messages.
//     Data messages are keyed by the local message number declared in the
//     most recent definition message with the same local ID.
//   - A trailing two-byte CRC covering the header (including its CRC when
//     present) plus the entire data section.
package fitproc

// Options are the user-facing toggles that adjust how FIT bytes are rewritten.
type Options struct {
	// RemoveSpeedFields drops speed and enhanced_speed fields from record messages.
	RemoveSpeedFields bool `json:"remove_speed_fields"`
	// SmoothSpeed smooths derived speed values with a sliding window and writes
	// the smoothed speed/distance series back into the re-encoded file.
	SmoothSpeed bool `json:"smooth_speed"`
}

// Field is one decoded field of a data message.
type Field struct {
	Name    string   `json:"name"`
	Value   string   `json:"value"`
	Numeric *float64 `json:"numeric,omitempty"`
}

// Record is one decoded data message, in stream order. Definition messages
// feed the decoder's lookup table and are not part of the record list.
type Record struct {
	Kind   string  `json:"kind"`
	Global uint16  `json:"global_message_num"`
	Fields []Field `json:"fields"`
}

// ParsedFit holds the decomposed pieces of a FIT file used for later
// reconstruction.
type ParsedFit struct {
	HeaderWithoutCRC []byte
	HasHeaderCRC     bool
	DataSection      []byte
	Records          []Record
}

// WorkoutSummary contains derived overview metrics. Nil means the metric
// could not be computed from the available records.
type WorkoutSummary struct {
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	WorkoutType     *string  `json:"workout_type,omitempty"`
	DistanceMeters  *float64 `json:"distance_meters,omitempty"`
	SpeedMin        *float64 `json:"speed_min,omitempty"`
	SpeedMean       *float64 `json:"speed_mean,omitempty"`
	SpeedMax        *float64 `json:"speed_max,omitempty"`
	HeartRateMin    *float64 `json:"heart_rate_min,omitempty"`
	HeartRateMean   *float64 `json:"heart_rate_mean,omitempty"`
	HeartRateMax    *float64 `json:"heart_rate_max,omitempty"`
}

// Processed is the output of one Process call.
type Processed struct {
	// Records decoded from the processed bytes, so what callers display always
	// matches what they download.
	Records []Record `json:"records"`
	// ProcessedBytes is the re-encoded FIT payload with updated header and CRCs.
	ProcessedBytes []byte `json:"-"`
	// Summary holds metrics derived from the original records.
	Summary WorkoutSummary `json:"summary"`
}

// recordOverride carries per-data-record replacement values computed by the
// analytics pass and consumed by the byte rewrite pass. Indices align with
// the decoder's data record order.
type recordOverride struct {
	speed    *float64
	distance *float64
}
