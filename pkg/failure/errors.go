package failure

type Severity int

// download control flow
const (
	// SeverityFatal ends the download; nothing retries it.
	SeverityFatal Severity = iota
	// SeverityRecoverable marks errors the pre-stream retry loop may try again.
	SeverityRecoverable
)

func (s Severity) String() string {
	switch s {
	case SeverityFatal:
		return "fatal"
	case SeverityRecoverable:
		return "recoverable"
	default:
		return "unknown"
	}
}

type ClassifiedError interface {
	error
	Severity() Severity
}
