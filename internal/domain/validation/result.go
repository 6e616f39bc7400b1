package validation

// IssueType names a class of document defect.
type IssueType string

const (
	IssueMissingColumn       IssueType = "missing_column"
	IssueDuplicateColumn     IssueType = "duplicate_column"
	IssueEmptyColumn         IssueType = "empty_column"
	IssueRaggedRows          IssueType = "ragged_rows"
	IssueEmbeddedNewlines    IssueType = "embedded_newlines"
	IssueColumnMisalignment  IssueType = "column_misalignment"
	IssueInvalidDateFormat   IssueType = "invalid_date_format"
	IssueInvalidAmountFormat IssueType = "invalid_amount_format"
	IssueLowConversionRate   IssueType = "low_conversion_rate"
	IssueEmptyFile           IssueType = "empty_file"
	IssueDuplicateRows       IssueType = "duplicate_rows"
)

// Issue is one detected defect. Fixable issues can be handed to the Fixer;
// everything else needs a corrected re-upload.
type Issue struct {
	Type       IssueType         `json:"type"`
	Message    string            `json:"message"`
	Fixable    bool              `json:"fixable"`
	Suggestion string            `json:"suggestion,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// ValidationResult is the full verdict on one document.
type ValidationResult struct {
	Valid       bool          `json:"valid"`
	Errors      []string      `json:"errors"`
	Warnings    []string      `json:"warnings"`
	Issues      []Issue       `json:"issues_detected"`
	RecordCount int           `json:"record_count"`
	State       DocumentState `json:"state"`
}

// CanProceed reports whether the document may be processed as-is.
func (r *ValidationResult) CanProceed() bool {
	return r.State.CanProceed()
}

// UserActionRequired reports whether the caller must prompt for a
// fix-or-reject decision.
func (r *ValidationResult) UserActionRequired() bool {
	return r.State.UserActionRequired()
}

// FixableIssues returns the subset of issues a Fixer can attempt.
func (r *ValidationResult) FixableIssues() []Issue {
	var out []Issue
	for _, iss := range r.Issues {
		if iss.Fixable {
			out = append(out, iss)
		}
	}
	return out
}

// AddIssues appends detector findings and recomputes the verdict, since
// new fixable issues can flip the document out of a proceedable state.
func (r *ValidationResult) AddIssues(issues ...Issue) {
	r.Issues = append(r.Issues, issues...)
	r.finalize()
}

// finalize derives Valid and State from the accumulated findings. Valid
// tracks errors only; State additionally reflects outstanding fixable
// issues.
func (r *ValidationResult) finalize() {
	r.Valid = len(r.Errors) == 0
	switch {
	case !r.Valid:
		r.State = StateRejected
	case len(r.FixableIssues()) > 0:
		r.State = StateFixableIssues
	default:
		r.State = StateClean
	}
}

// FixResult reports the outcome of one repair attempt.
type FixResult struct {
	Type IssueType `json:"type"`
	// BackupPath is the pre-fix copy written before the file was touched.
	BackupPath string `json:"backup_path"`
	// Changed reports whether the repair altered the file contents.
	Changed bool `json:"changed"`
	// Resolved reports whether re-validation no longer finds the issue.
	Resolved bool `json:"resolved"`
	// Remaining lists issues still present after the fix.
	Remaining []Issue `json:"remaining,omitempty"`
}
