package core

// error_messages.go maps import failures to user-facing messages with a
// support code. Codes by kind:
//
//	IO001  - the file could not be opened or read
//	FMT001 - the file is not parseable comma-separated data
//	VAL001 - a row failed validation
//	REF001 - a car row names a manufacturer that is not stored
//	DB001  - duplicate record (unique constraint)
//	DB002  - other integrity constraint (foreign key, not null)
//	DB000  - any other storage failure
//
// Storage failures are refined by pattern (case-insensitive substring of the
// error text) when one matches:
//
//	DB004 - connection refused
//	DB005 - connection reset
//	DB006 - timeout / deadline exceeded
//	DB007 - deadlock / database is locked
//
// ERR000 is the fallback for errors that carry no kind.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string
	Action  string
	Code    string
}

var kindMessages = map[ErrorKind]UserMessage{
	KindIO: {
		Message: "The import file could not be read",
		Action:  "Check the path and the file permissions",
		Code:    "IO001",
	},
	KindFormat: {
		Message: "The file is not valid comma-separated data",
		Action:  "Ensure the file has a header line and comma-separated columns",
		Code:    "FMT001",
	},
	KindValidation: {
		Message: "A row failed validation",
		Action:  "Fix the reported line and run the import again",
		Code:    "VAL001",
	},
	KindReference: {
		Message: "A row references a manufacturer that does not exist",
		Action:  "Import manufacturers before cars",
		Code:    "REF001",
	},
	KindStorage: {
		Message: "A database operation failed",
		Action:  "Please try again",
		Code:    "DB000",
	},
}

var (
	duplicateMessage = UserMessage{
		Message: "The file contains a record that already exists",
		Action:  "Remove duplicate names from the file or from the store",
		Code:    "DB001",
	}
	constraintMessage = UserMessage{
		Message: "The data violates a database integrity constraint",
		Action:  "Check that referenced records exist and required values are set",
		Code:    "DB002",
	}
	unknownMessage = UserMessage{
		Message: "An unexpected error occurred",
		Action:  "Please try again or check the logs",
		Code:    "ERR000",
	}
)

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// storagePatterns refine KindStorage. First match wins.
var storagePatterns = []errorPattern{
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "deadline exceeded",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Raise IMPORT_TIMEOUT or split the file",
			Code:    "DB006",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Raise IMPORT_TIMEOUT or split the file",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
}

// MapError converts an import error into a user-friendly message.
// Returns an empty UserMessage for nil.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ie *ImportError
	if !errors.As(err, &ie) {
		return unknownMessage
	}

	switch ie.Kind {
	case KindIntegrity:
		if errors.Is(err, ErrDuplicate) {
			return duplicateMessage
		}
		return constraintMessage
	case KindStorage:
		errLower := strings.ToLower(err.Error())
		for _, p := range storagePatterns {
			if strings.Contains(errLower, p.pattern) {
				return p.msg
			}
		}
	}

	if msg, ok := kindMessages[ie.Kind]; ok {
		return msg
	}
	return unknownMessage
}

// FormatUserError returns a formatted error string for display.
// Format: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Code == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
