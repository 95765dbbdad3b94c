package models

import "strings"

// StatusCode is the value written into the status column.
type StatusCode string

const (
	StatusFound    StatusCode = "F"
	StatusTransfer StatusCode = "T"
	StatusSurplus  StatusCode = "S"
	StatusStolen   StatusCode = "ST"
)

// StatusOption pairs a status code with its display label.
type StatusOption struct {
	Code  StatusCode `json:"code"`
	Label string     `json:"label"`
}

// Statuses lists the supported scan statuses in display order.
var Statuses = []StatusOption{
	{Code: StatusFound, Label: "Found"},
	{Code: StatusTransfer, Label: "Transfer"},
	{Code: StatusSurplus, Label: "Surplus"},
	{Code: StatusStolen, Label: "Stolen"},
}

// ParseStatus accepts a status code or label, case-insensitively.
func ParseStatus(value string) (StatusCode, bool) {
	value = strings.TrimSpace(value)
	for _, opt := range Statuses {
		if strings.EqualFold(value, string(opt.Code)) || strings.EqualFold(value, opt.Label) {
			return opt.Code, true
		}
	}
	return "", false
}

// Label returns the display label for the code, or the code itself when unknown.
func (c StatusCode) Label() string {
	for _, opt := range Statuses {
		if opt.Code == c {
			return opt.Label
		}
	}
	return string(c)
}

// ScanSubmission is the input of every scan update.
type ScanSubmission struct {
	Identifier string
	Status     StatusCode
	Location   string
	Room       string
}

// OutcomeKind enumerates the terminal states of a submission.
type OutcomeKind string

const (
	OutcomeUpdated            OutcomeKind = "updated"
	OutcomeAlreadyProcessed   OutcomeKind = "already_processed"
	OutcomeAddedToUnmatched   OutcomeKind = "added_to_unmatched"
	OutcomeDuplicateUnmatched OutcomeKind = "duplicate_unmatched"
)

// MatchOutcome is the result of applying a submission.
type MatchOutcome struct {
	Kind OutcomeKind
	// Label is the asset name of the matched row.
	Label string
	// RowNumber is the 1-based spreadsheet row of the match, 0 when unmatched.
	RowNumber   int
	MarkedCount int
	TotalCount  int
}

// Found reports whether the identifier matched an inventory row.
func (o MatchOutcome) Found() bool {
	return o.Kind == OutcomeUpdated || o.Kind == OutcomeAlreadyProcessed
}

// Asset is a typed view of one inventory row.
type Asset struct {
	RowNumber   int
	Identifiers []string
	Name        string
	Description string
	Status      string
	Location    string
	Room        string
	Marked      string
}

// Processed reports whether the row already carries a status.
func (a Asset) Processed() bool {
	return a.Status != ""
}

// LookupResult is the read-only preview of a scanned identifier.
type LookupResult struct {
	Found       bool
	RowNumber   int
	Identifier  string
	Name        string
	Description string
	Marked      bool
}

// UnmatchedEntry is one row of the unmatched sheet.
type UnmatchedEntry struct {
	Identifier string `json:"data"`
	Location   string `json:"location,omitempty"`
	Room       string `json:"room,omitempty"`
}

// Progress is the processed count over the configured row range.
type Progress struct {
	MarkedCount int
	TotalCount  int
}
