// Package driver implements the read/infer/persist loop that advances one
// dataset's Schema from raw CSV rows.
//
// # Error Codes Reference
//
// Technical errors surfaced by the Repository or by the driver itself are
// mapped to a user-facing message with a support code, grouped by the
// error taxonomy:
//
// # Dataset Errors (DS001-DS099)
//
//	DS001 - Dataset not found
//	        Action: Verify the dataset name and that it has been created
//	        Patterns: "dataset not found", "no such dataset"
//
// # Schema Errors (SC001-SC099)
//
//	SC001 - Schema invalid or corrupt
//	        Action: Re-run inference from the beginning for this dataset
//	        Patterns: "schema invalid", "decode schema", "unknown type"
//
// # Run Errors (RN001-RN099)
//
//	RN001 - Concurrent run detected
//	        Action: Wait for the other run to finish, or check for a stuck lock
//	        Patterns: "lock held", "already running", "concurrent run"
//
// # Upload Errors (UP001-UP099)
//
//	UP001 - Upload write failed
//	        Action: Check storage connectivity and retry
//	        Patterns: "write failed", "copy failed", "broken pipe"
//
// # Inference Errors (IN001-IN099)
//
//	IN001 - Inference failed
//	        Action: Check the source file for malformed rows and retry
//	        Patterns: "inference failed", "gather failed"
package driver

import (
	"errors"
	"fmt"
	"strings"
)

// Kind enumerates the error taxonomy from spec §7. ValueCoercionFailure is
// deliberately absent here: a value that fails to coerce never raises, it
// surfaces as a null value plus an exception entry (internal/subset).
type Kind string

const (
	DatasetNotFound  Kind = "dataset_not_found"
	SchemaInvalid    Kind = "schema_invalid"
	ConcurrentRun    Kind = "concurrent_run"
	UploadWriteError Kind = "upload_write_error"
	InferenceFailure Kind = "inference_failure"
)

// UserMessage is a user-friendly rendering of a technical error.
type UserMessage struct {
	Message string
	Action  string
	Code    string
}

// RunError is the error type BatchedDriver.Run returns for any of the
// taxonomy's fault kinds. It preserves the underlying technical error for
// logging while exposing a stable Kind for callers to branch on.
type RunError struct {
	Kind     Kind
	Dataset  string
	Position uint64
	Cause    error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("driver: %s: dataset %q at position %d: %v", e.Kind, e.Dataset, e.Position, e.Cause)
}

func (e *RunError) Unwrap() error {
	return e.Cause
}

// NewRunError wraps cause as a RunError of the given kind, recording the
// dataset and the schema position at the time of failure so the caller can
// resume from the last committed point.
func NewRunError(kind Kind, dataset string, position uint64, cause error) *RunError {
	return &RunError{Kind: kind, Dataset: dataset, Position: position, Cause: cause}
}

type errorPattern struct {
	pattern string
	kind    Kind
	msg     UserMessage
}

// errorPatterns maps technical error substrings (case-insensitive, first
// match wins) to a taxonomy Kind and user message. Grounded on the
// teacher's error_messages.go pattern table, narrowed to this domain's
// five fault kinds.
var errorPatterns = []errorPattern{
	{
		pattern: "dataset not found",
		kind:    DatasetNotFound,
		msg: UserMessage{
			Message: "The dataset could not be found",
			Action:  "Verify the dataset name and that it has been created",
			Code:    "DS001",
		},
	},
	{
		pattern: "no such dataset",
		kind:    DatasetNotFound,
		msg: UserMessage{
			Message: "The dataset could not be found",
			Action:  "Verify the dataset name and that it has been created",
			Code:    "DS001",
		},
	},
	{
		pattern: "decode schema",
		kind:    SchemaInvalid,
		msg: UserMessage{
			Message: "The saved schema is corrupt or in an unrecognized format",
			Action:  "Re-run inference from the beginning for this dataset",
			Code:    "SC001",
		},
	},
	{
		pattern: "unknown type",
		kind:    SchemaInvalid,
		msg: UserMessage{
			Message: "The saved schema references an unrecognized type",
			Action:  "Re-run inference from the beginning for this dataset",
			Code:    "SC001",
		},
	},
	{
		pattern: "schema invalid",
		kind:    SchemaInvalid,
		msg: UserMessage{
			Message: "The saved schema is invalid",
			Action:  "Re-run inference from the beginning for this dataset",
			Code:    "SC001",
		},
	},
	{
		pattern: "lock held",
		kind:    ConcurrentRun,
		msg: UserMessage{
			Message: "Another run is already in progress for this dataset",
			Action:  "Wait for the other run to finish, or check for a stuck lock",
			Code:    "RN001",
		},
	},
	{
		pattern: "already running",
		kind:    ConcurrentRun,
		msg: UserMessage{
			Message: "Another run is already in progress for this dataset",
			Action:  "Wait for the other run to finish, or check for a stuck lock",
			Code:    "RN001",
		},
	},
	{
		pattern: "concurrent run",
		kind:    ConcurrentRun,
		msg: UserMessage{
			Message: "Another run is already in progress for this dataset",
			Action:  "Wait for the other run to finish, or check for a stuck lock",
			Code:    "RN001",
		},
	},
	{
		pattern: "broken pipe",
		kind:    UploadWriteError,
		msg: UserMessage{
			Message: "Writing the dataset failed partway through",
			Action:  "Check storage connectivity and retry",
			Code:    "UP001",
		},
	},
	{
		pattern: "copy failed",
		kind:    UploadWriteError,
		msg: UserMessage{
			Message: "Writing the dataset failed",
			Action:  "Check storage connectivity and retry",
			Code:    "UP001",
		},
	},
	{
		pattern: "write failed",
		kind:    UploadWriteError,
		msg: UserMessage{
			Message: "Writing the dataset failed",
			Action:  "Check storage connectivity and retry",
			Code:    "UP001",
		},
	},
	{
		pattern: "inference failed",
		kind:    InferenceFailure,
		msg: UserMessage{
			Message: "Type inference failed for this batch",
			Action:  "Check the source file for malformed rows and retry",
			Code:    "IN001",
		},
	},
	{
		pattern: "gather failed",
		kind:    InferenceFailure,
		msg: UserMessage{
			Message: "Type inference failed for this batch",
			Action:  "Check the source file for malformed rows and retry",
			Code:    "IN001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again; contact support if this persists",
	Code:    "ERR000",
}

// MapError returns the user message for err. A RunError is matched by its
// Kind (the first pattern entry of that kind); any other error's message is
// matched against the known technical patterns. Anything unmatched falls
// back to a generic message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	var re *RunError
	if errors.As(err, &re) {
		for _, ep := range errorPatterns {
			if ep.kind == re.Kind {
				return ep.msg
			}
		}
	}
	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action" for display.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
