package status

import "strings"

// Status is the canonical payment state the engine converges on, regardless
// of which vocabulary the gateway used on the wire.
type Status string

const (
	Initiated Status = "INITIATED"
	Pending   Status = "PENDING"
	Completed Status = "COMPLETED"
	Failed    Status = "FAILED"
	Unknown   Status = "UNKNOWN"
)

// Terminal reports whether a status is final. Terminal states are sticky:
// COMPLETED is never overwritten, FAILED only by a late COMPLETED.
func Terminal(s Status) bool {
	return s == Completed || s == Failed
}

// Normalize maps the gateway's payment_status vocabulary to a canonical
// Status. Only the per-item payment_status decides COMPLETED; the top-level
// result flag ("SUCCESS") reports envelope delivery, not payment outcome,
// and must not short-circuit the check.
func Normalize(rawStatus, rawResult string) Status {
	_ = rawResult

	switch strings.ToUpper(strings.TrimSpace(rawStatus)) {
	case "":
		return Unknown
	case "COMPLETED":
		return Completed
	case "PENDING", "INITIATED", "PROCESSING":
		return Pending
	default:
		return Failed
	}
}

// Parse returns the canonical Status for a stored string, falling back to
// UNKNOWN for anything outside the enum.
func Parse(s string) Status {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case Initiated:
		return Initiated
	case Pending:
		return Pending
	case Completed:
		return Completed
	case Failed:
		return Failed
	default:
		return Unknown
	}
}
