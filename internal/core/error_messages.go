package core

// error_messages.go maps technical errors to user-facing messages with a
// support code. Codes are grouped by category:
//
//	VAL001-VAL099   row and payload validation
//	REF001-REF099   city and country references
//	FILE001-FILE099 uploaded file handling
//	CUS001-CUS099   customer lookups
//	IMP001-IMP099   import runs (limiter, cancellation, rollback)
//	DB001-DB099     database constraint and connectivity failures
//	RATE001         request throttling
//	ERR000          anything else; check the logs for the technical error
//
// Typed errors are classified first with errors.Is / errors.As, so wrapping
// never hides the cause. Errors without a type (driver and network errors)
// fall back to case-insensitive substring patterns, first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/cms/internal/workbook"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorRule struct {
	match func(error) bool
	msg   UserMessage
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

func as[T error]() func(error) bool {
	return func(err error) bool {
		var target T
		return errors.As(err, &target)
	}
}

// errorRules is ordered: sentinel and specific types before the wrappers
// that carry them.
var errorRules = []errorRule{
	{is(ErrTooManyImports), UserMessage{
		Message: "System is busy processing other imports",
		Action:  "Please wait a moment and try again",
		Code:    "IMP002",
	}},
	{is(context.Canceled), UserMessage{
		Message: "Import was cancelled",
		Action:  "Start a new import when ready",
		Code:    "IMP001",
	}},
	{is(context.DeadlineExceeded), UserMessage{
		Message: "Import timed out",
		Action:  "Split the file into smaller workbooks and try again",
		Code:    "IMP004",
	}},
	{as[*DateFormatError](), UserMessage{
		Message: "Invalid date format detected",
		Action:  "Use one of the accepted date formats, for example 3/14/1990 or 1990-03-14",
		Code:    "VAL001",
	}},
	{is(ErrIncompleteRow), UserMessage{
		Message: "Required field is empty",
		Action:  "Every customer needs a name, a national ID and a date of birth",
		Code:    "VAL002",
	}},
	{is(ErrDuplicateKey), UserMessage{
		Message: "A customer with this national ID already exists",
		Action:  "Update the existing customer instead of creating a new one",
		Code:    "VAL003",
	}},
	{as[*ValidationError](), UserMessage{
		Message: "Some fields are invalid",
		Action:  "Correct the highlighted field and submit again",
		Code:    "VAL004",
	}},
	{as[*MalformedReferenceError](), UserMessage{
		Message: "City or country ID is not a number",
		Action:  "Use the numeric IDs listed under /api/cities and /api/countries",
		Code:    "REF001",
	}},
	{as[*ReferenceNotFoundError](), UserMessage{
		Message: "Referenced city or country does not exist",
		Action:  "Use the numeric IDs listed under /api/cities and /api/countries",
		Code:    "REF002",
	}},
	{is(workbook.ErrTooLarge), UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller workbooks",
		Code:    "FILE001",
	}},
	{is(workbook.ErrUnsupportedFormat), UserMessage{
		Message: "File is not an Excel workbook or CSV file",
		Action:  "Save the sheet as .xlsx or .csv and upload it again",
		Code:    "FILE002",
	}},
	{is(workbook.ErrEmptyFile), UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Please upload a workbook with data rows",
		Code:    "FILE003",
	}},
	{as[*WorkbookFormatError](), UserMessage{
		Message: "The workbook could not be read",
		Action:  "Open the file in a spreadsheet tool, save it as .xlsx and try again",
		Code:    "FILE005",
	}},
	{is(ErrImportNotFound), UserMessage{
		Message: "Import run not found",
		Action:  "Check the import ID in the import history",
		Code:    "IMP003",
	}},
	{is(ErrAlreadyRolledBack), UserMessage{
		Message: "Import was already rolled back",
		Action:  "No further action is needed",
		Code:    "IMP006",
	}},
	{is(ErrNotFound), UserMessage{
		Message: "Customer not found",
		Action:  "Check the customer ID",
		Code:    "CUS001",
	}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{"duplicate key", UserMessage{
		Message: "A record with this key already exists",
		Action:  "Review your data for duplicate national IDs",
		Code:    "DB001",
	}},
	{"violates unique", UserMessage{
		Message: "A duplicate value was found",
		Action:  "Review your data for duplicate national IDs",
		Code:    "DB002",
	}},
	{"violates foreign key", UserMessage{
		Message: "Referenced record does not exist",
		Action:  "Make sure cities, countries and parent customers exist first",
		Code:    "DB003",
	}},
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "DB006",
	}},
	{"deadlock", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}},
	{"no file provided", UserMessage{
		Message: "No file was selected",
		Action:  "Please select a workbook to upload",
		Code:    "FILE004",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. Unknown
// errors map to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, r := range errorRules {
		if r.match(err) {
			return r.msg
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

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
