package core

// Error codes reference for import failures.
//
// MapError turns technical errors into short user messages carrying a code
// that can be quoted to support. Codes are grouped by category:
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Malformed item: an item is missing its id or pipeline tree
//	         Patterns: "malformed import item"
//
//	IMP002 - Malformed tree: a pipeline tree has an unexpected shape
//	         Patterns: "malformed pipeline tree"
//
//	IMP003 - Duplicate id: two items share a transient id
//	         Patterns: "duplicate transient id"
//
//	IMP004 - System busy: another import batch is running
//	         Patterns: "too many concurrent imports"
//
//	IMP005 - Batch too large: the batch exceeds the configured item limit
//	         Patterns: "batch too large"
//
// # Template Errors (TPL001-TPL099)
//
//	TPL001 - Template not found
//	         Patterns: "template not found"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key          Patterns: "duplicate key"
//	DB002 - Unique constraint      Patterns: "unique constraint", "violates unique"
//	DB003 - Connection refused     Patterns: "connection refused"
//	DB004 - Connection reset       Patterns: "connection reset"
//	DB005 - Deadlock               Patterns: "deadlock"
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Invalid payload       Patterns: "invalid payload"
//	REQ002 - Request cancelled     Patterns: "context canceled"
//	REQ003 - Request timeout       Patterns: "context deadline exceeded", "timeout"
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Check the logs for the original error.
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is ordered: the first pattern contained in the error wins.
var errorPatterns = []errorPattern{
	// Import errors
	{
		pattern: "malformed import item",
		msg: UserMessage{
			Message: "An import item is incomplete",
			Action:  "Make sure every item has an id and a pipeline tree",
			Code:    "IMP001",
		},
	},
	{
		pattern: "malformed pipeline tree",
		msg: UserMessage{
			Message: "A pipeline tree has an unexpected structure",
			Action:  "Check the activities and constants of the reported item",
			Code:    "IMP002",
		},
	},
	{
		pattern: "duplicate transient id",
		msg: UserMessage{
			Message: "Two items in the batch share the same id",
			Action:  "Give every item in the batch a unique id",
			Code:    "IMP003",
		},
	},
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "Another import is in progress",
			Action:  "Please wait a moment and try again",
			Code:    "IMP004",
		},
	},
	{
		pattern: "batch too large",
		msg: UserMessage{
			Message: "The batch contains too many templates",
			Action:  "Split the batch into smaller files",
			Code:    "IMP005",
		},
	},

	// Template errors
	{
		pattern: "template not found",
		msg: UserMessage{
			Message: "Template not found",
			Action:  "Verify the template id is correct",
			Code:    "TPL001",
		},
	},

	// Database errors
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Review the batch for templates that already exist",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Review the batch for duplicate values",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Review the batch for duplicate values",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},

	// Request errors
	{
		pattern: "invalid payload",
		msg: UserMessage{
			Message: "The import payload is not valid",
			Action:  "Check the payload against the documented format",
			Code:    "REQ001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller batch or try again later",
			Code:    "REQ003",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller batch or try again later",
			Code:    "REQ003",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, a generic fallback message with code ERR000 is
// returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
