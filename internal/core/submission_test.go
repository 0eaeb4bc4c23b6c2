package core

import (
	"errors"
	"strings"
	"testing"
)

func TestParseSubmission(t *testing.T) {
	tests := []struct {
		name          string
		req           SubmitRequest
		allowMissing  bool
		wantErr       error
		wantField     string
		wantNumber    string
		wantOperation Operation
		wantComment   string
	}{
		{
			name:          "add",
			req:           SubmitRequest{Number: "100", Comment: "salary", Operation: "add"},
			wantNumber:    "100",
			wantOperation: OperationAdd,
			wantComment:   "salary",
		},
		{
			name:          "negative number coerced to magnitude",
			req:           SubmitRequest{Number: "-12.5", Comment: "refund", Operation: "subtract"},
			wantNumber:    "12.5",
			wantOperation: OperationSubtract,
			wantComment:   "refund",
		},
		{
			name:          "comment trimmed and control characters dropped",
			req:           SubmitRequest{Number: "1", Comment: "  bread\x00\x07  ", Operation: "add"},
			wantNumber:    "1",
			wantOperation: OperationAdd,
			wantComment:   "bread",
		},
		{
			name:      "non numeric number",
			req:       SubmitRequest{Number: "abc", Comment: "x", Operation: "add"},
			wantErr:   ErrInvalidNumber,
			wantField: "number",
		},
		{
			name:      "empty comment",
			req:       SubmitRequest{Number: "1", Comment: "   ", Operation: "add"},
			wantErr:   ErrEmptyComment,
			wantField: "comment",
		},
		{
			name:      "comment too long",
			req:       SubmitRequest{Number: "1", Comment: strings.Repeat("é", MaxCommentLength+1), Operation: "add"},
			wantErr:   ErrCommentTooLong,
			wantField: "comment",
		},
		{
			name:      "unknown operation",
			req:       SubmitRequest{Number: "1", Comment: "x", Operation: "divide"},
			wantErr:   ErrInvalidOperation,
			wantField: "operation",
		},
		{
			name:      "missing operation rejected",
			req:       SubmitRequest{Number: "1", Comment: "x"},
			wantErr:   ErrMissingOperation,
			wantField: "operation",
		},
		{
			name:          "missing operation defaults to subtract",
			req:           SubmitRequest{Number: "1", Comment: "x"},
			allowMissing:  true,
			wantNumber:    "1",
			wantOperation: OperationSubtract,
			wantComment:   "x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSubmission(tt.req, tt.allowMissing)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseSubmission() error = %v, want %v", err, tt.wantErr)
				}
				var ve *ValidationError
				if !errors.As(err, &ve) || ve.Field != tt.wantField {
					t.Fatalf("ParseSubmission() error = %#v, want field %q", err, tt.wantField)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSubmission() unexpected error: %v", err)
			}
			if got.Number.String() != tt.wantNumber {
				t.Errorf("Number = %s, want %s", got.Number, tt.wantNumber)
			}
			if got.Operation != tt.wantOperation {
				t.Errorf("Operation = %q, want %q", got.Operation, tt.wantOperation)
			}
			if got.Comment != tt.wantComment {
				t.Errorf("Comment = %q, want %q", got.Comment, tt.wantComment)
			}
		})
	}
}
