package validation

// DocumentState tracks where a document sits in the validate/fix lifecycle.
// The zero value is StateUnvalidated.
type DocumentState int

const (
	StateUnvalidated DocumentState = iota
	// StateClean validated with no fixable issues outstanding.
	StateClean
	// StateFixableIssues validated with repairs available, awaiting a
	// user decision.
	StateFixableIssues
	// StateFixed repaired and re-validated clean.
	StateFixed
	// StateRejected validated with hard errors or an unrepairable defect.
	StateRejected
)

func (s DocumentState) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateFixableIssues:
		return "fixable_issues"
	case StateFixed:
		return "fixed"
	case StateRejected:
		return "rejected"
	default:
		return "unvalidated"
	}
}

// CanProceed reports whether the document may be used for processing.
// Documents with outstanding fixable issues need explicit user approval
// first, so only the two settled good states qualify.
func (s DocumentState) CanProceed() bool {
	return s == StateClean || s == StateFixed
}

// UserActionRequired reports whether the document is parked waiting on a
// fix-or-reject decision.
func (s DocumentState) UserActionRequired() bool {
	return s == StateFixableIssues
}
