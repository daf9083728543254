package automation

// ReportKind classifies the outcome of one answer-selection protocol run.
type ReportKind string

const (
	// ReportSelected means the option was clicked and visually verified.
	ReportSelected ReportKind = "selected"
	// ReportNoAnswer means no option was marked correct; nothing dispatched.
	ReportNoAnswer ReportKind = "no_clear_answer"
	// ReportLowConfidence means the best option fell below the gate.
	ReportLowConfidence ReportKind = "confidence_too_low"
	// ReportVerifyFailed means every attempt dispatched but none verified.
	ReportVerifyFailed ReportKind = "verification_failed"
)

// Report is the user-visible outcome of one selection run.
type Report struct {
	Kind         ReportKind
	QuestionText string
	OptionText   string
	Confidence   float64
	Attempts     int
	Detail       string
}

// ReportFunc receives selection reports. Wired to logging and the history
// store; a nil func drops them.
type ReportFunc func(Report)
