package core

// error_messages.go maps technical errors to user-facing messages with a
// support code. Users quote the code; support looks it up here.
//
// # Import rejections (VAL, DUP)
//
//	VAL000 - Some rows failed validation        Patterns: "validation failed"
//	VAL001 - Invalid date                        Patterns: "invalid date"
//	VAL002 - Quantity is not a whole number      Patterns: "must be an integer"
//	VAL003 - SKU is empty                        Patterns: "sku must not be empty"
//	VAL004 - Row is incomplete                   Patterns: "incomplete row"
//	VAL005 - Date is empty                       Patterns: "date must not be empty"
//	DUP001 - Ledger entry already exists         Patterns: "duplicate ledger entries"
//	DUP002 - Entry repeated within the file      Patterns: "repeated within the file"
//
// # Database (DB)
//
//	DB001 - Entry imported concurrently          Patterns: "duplicate key"
//	DB002 - Unique value already exists          Patterns: "unique constraint", "violates unique"
//	DB004 - Unable to connect                    Patterns: "connection refused"
//	DB005 - Connection interrupted               Patterns: "connection reset"
//	DB006 - Operation timed out                  Patterns: "timeout"
//	DB007 - Conflicting operations               Patterns: "deadlock"
//	DB008 - Save failed                          Patterns: "storage failure"
//
// # Files (FILE)
//
//	FILE001 - File too large                     Patterns: "file too large"
//	FILE002 - Invalid CSV                        Patterns: "invalid csv"
//	FILE003 - Invalid workbook                   Patterns: "invalid xlsx", "unreadable sheet"
//	FILE004 - No file                            Patterns: "no file provided"
//	FILE005 - Empty file                         Patterns: "empty file"
//	FILE006 - Unsupported format                 Patterns: "unsupported file format"
//
// # Requests (UPL, RATE)
//
//	UPL002 - Too many imports in progress        Patterns: "too many imports"
//	UPL004 - Request cancelled                   Patterns: "context canceled"
//	UPL005 - Request timed out                   Patterns: "context deadline exceeded"
//	RATE001 - Too many requests                  Patterns: "rate limit"
//
// ERR000 is the fallback; check the logs for the technical error.
//
// Patterns match case-insensitively with strings.Contains. The first match
// wins, so specific patterns come before general ones.

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

var errorPatterns = []errorPattern{
	// Batch rejections. Their text also carries the first row diagnostics,
	// so they are matched before the row-level patterns.
	{
		pattern: "repeated within the file",
		msg: UserMessage{
			Message: "The file lists the same date and SKU more than once",
			Action:  "Merge or remove the repeated rows and upload again",
			Code:    "DUP002",
		},
	},
	{
		pattern: "duplicate ledger entries",
		msg: UserMessage{
			Message: "Some entries in this file already exist in the ledger",
			Action:  "Remove the listed SKU/date pairs and upload again",
			Code:    "DUP001",
		},
	},
	{
		pattern: "validation failed",
		msg: UserMessage{
			Message: "Some rows failed validation",
			Action:  "Fix the listed rows and upload again",
			Code:    "VAL000",
		},
	},

	// Database
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "An entry for this date and SKU was imported at the same time",
			Action:  "Nothing was saved. Upload again to see which entries already exist",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate entries in your file",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Review your data for duplicate date and SKU pairs",
			Code:    "DB002",
		},
	},
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
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try uploading a smaller file or check your connection",
			Code:    "UPL005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try uploading a smaller file or try again later",
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
		pattern: "storage failure",
		msg: UserMessage{
			Message: "The ledger could not be saved",
			Action:  "Nothing was imported. Please try again or contact support",
			Code:    "DB008",
		},
	},

	// Row validation
	{
		pattern: "invalid date",
		msg: UserMessage{
			Message: "Invalid date format detected",
			Action:  "Use a format such as 2025-08-20, 2025/08/20 or 20250820",
			Code:    "VAL001",
		},
	},
	{
		pattern: "must be an integer",
		msg: UserMessage{
			Message: "Quantity is not a whole number",
			Action:  "Use whole numbers without units or separators",
			Code:    "VAL002",
		},
	},
	{
		pattern: "sku must not be empty",
		msg: UserMessage{
			Message: "SKU is empty",
			Action:  "Fill in the SKU column for every row",
			Code:    "VAL003",
		},
	},
	{
		pattern: "incomplete row",
		msg: UserMessage{
			Message: "Row is incomplete",
			Action:  "Every row needs at least a date and a SKU",
			Code:    "VAL004",
		},
	},
	{
		pattern: "date must not be empty",
		msg: UserMessage{
			Message: "Date is empty",
			Action:  "Fill in the date column for every row",
			Code:    "VAL005",
		},
	},

	// Files
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller sheets",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure the file is comma-separated",
			Code:    "FILE002",
		},
	},
	{
		pattern: "invalid xlsx",
		msg: UserMessage{
			Message: "File is not a valid Excel workbook",
			Action:  "Save the file as .xlsx and try again",
			Code:    "FILE003",
		},
	},
	{
		pattern: "unreadable sheet",
		msg: UserMessage{
			Message: "The file could not be read",
			Action:  "Save the file as .xlsx or UTF-8 .csv and try again",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select an .xlsx or .csv file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with a header row and data rows",
			Code:    "FILE005",
		},
	},
	{
		pattern: "unsupported file format",
		msg: UserMessage{
			Message: "File type is not supported",
			Action:  "Upload an .xlsx or .csv file",
			Code:    "FILE006",
		},
	},

	// Requests
	{
		pattern: "too many imports",
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, the ERR000 fallback is returned.
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

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
