package fitproc

import "fmt"

// InvalidHeaderError reports a framing violation: missing or short header,
// declared sizes inconsistent with the file length, truncated messages, or a
// data message without a preceding definition.
type InvalidHeaderError struct {
	Reason string
}

func (e *InvalidHeaderError) Error() string {
	return "invalid FIT file: " + e.Reason
}

// ParseError reports a semantic decode failure, including CRC mismatches on
// input and explicitly unsupported compressed-timestamp headers.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "failed to decode FIT file: " + e.Reason
}

func invalidHeaderf(format string, args ...any) error {
	return &InvalidHeaderError{Reason: fmt.Sprintf(format, args...)}
}

func parseErrorf(format string, args ...any) error {
	return &ParseError{Reason: fmt.Sprintf(format, args...)}
}
