package thread

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes controller errors.
type ErrorCode string

const (
	// ErrCodeNotFound: the id does not resolve to a thread in the store.
	ErrCodeNotFound ErrorCode = "NOT_FOUND_THREAD"

	// ErrCodeAnchorMissing: the thread exists but has no anchor in the
	// document (orphaned).
	ErrCodeAnchorMissing ErrorCode = "ANCHOR_MISSING"

	// ErrCodeInvalidRange: the range is empty or outside the document.
	ErrCodeInvalidRange ErrorCode = "INVALID_RANGE"

	// ErrCodeStoreUnavailable: no store is initialized for the document.
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"

	// ErrCodeEmptyComment: comment text is blank.
	ErrCodeEmptyComment ErrorCode = "EMPTY_COMMENT"
)

// Error is a recoverable controller failure.
type Error struct {
	Code     ErrorCode
	Message  string
	ThreadID string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.ThreadID != "" {
		msg = fmt.Sprintf("%s (thread=%s)", msg, e.ThreadID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// IsNotFound reports whether err is a NOT_FOUND_THREAD error.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// IsAnchorMissing reports whether err is an ANCHOR_MISSING error.
func IsAnchorMissing(err error) bool {
	return CodeOf(err) == ErrCodeAnchorMissing
}

// IsInvalidRange reports whether err is an INVALID_RANGE error.
func IsInvalidRange(err error) bool {
	return CodeOf(err) == ErrCodeInvalidRange
}

// IsStoreUnavailable reports whether err is a STORE_UNAVAILABLE error.
func IsStoreUnavailable(err error) bool {
	return CodeOf(err) == ErrCodeStoreUnavailable
}

// IsEmptyComment reports whether err is an EMPTY_COMMENT error.
func IsEmptyComment(err error) bool {
	return CodeOf(err) == ErrCodeEmptyComment
}

func notFound(id string) *Error {
	return &Error{Code: ErrCodeNotFound, Message: "thread does not exist", ThreadID: id}
}

func anchorMissing(id string) *Error {
	return &Error{Code: ErrCodeAnchorMissing, Message: "thread has no anchor in the document", ThreadID: id}
}

func storeUnavailable() *Error {
	return &Error{Code: ErrCodeStoreUnavailable, Message: "thread store is not initialized"}
}

func emptyComment(id string) *Error {
	return &Error{Code: ErrCodeEmptyComment, Message: "comment text is blank", ThreadID: id}
}
