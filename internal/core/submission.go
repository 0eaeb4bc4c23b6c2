package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// SubmitRequest carries raw submission fields as received from a client.
// An empty Operation means the client did not send one.
type SubmitRequest struct {
	Number    string
	Comment   string
	Operation string
}

// Submission is a validated request, ready to become an Entry.
type Submission struct {
	Number    decimal.Decimal
	Operation Operation
	Comment   string
}

// ParseSubmission validates req. When allowMissingOperation is set an absent
// operation is recorded as a subtraction, the way legacy clients behaved.
// Errors are *ValidationError.
func ParseSubmission(req SubmitRequest, allowMissingOperation bool) (Submission, error) {
	number, err := ParseAmount(req.Number)
	if err != nil {
		return Submission{}, &ValidationError{Field: "number", Err: err}
	}

	comment := SanitizeComment(req.Comment)
	if comment == "" {
		return Submission{}, &ValidationError{Field: "comment", Err: ErrEmptyComment}
	}
	if len([]rune(comment)) > MaxCommentLength {
		return Submission{}, &ValidationError{Field: "comment", Err: ErrCommentTooLong}
	}

	var op Operation
	if strings.TrimSpace(req.Operation) == "" {
		if !allowMissingOperation {
			return Submission{}, &ValidationError{Field: "operation", Err: ErrMissingOperation}
		}
		op = OperationSubtract
	} else {
		op, err = ParseOperation(req.Operation)
		if err != nil {
			return Submission{}, &ValidationError{Field: "operation", Err: err}
		}
	}

	return Submission{Number: number, Operation: op, Comment: comment}, nil
}

// SanitizeComment trims whitespace and drops control characters other than
// tab, newline and carriage return.
func SanitizeComment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		if r == 127 {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
