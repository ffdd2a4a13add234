package chunked

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind int

const (
	NotAuthenticated ErrorKind = iota + 1
	NoChunk
	MissingUploadID
	NotFound
	Gone
	AlreadyComplete
	BadRange
	SizeLimitExceeded
	OffsetMismatch
	SizeMismatch
	ValidationFailed
	ConflictingWrite
	BadRequest
	Storage
	RecordStore
)

var kindNames = map[ErrorKind]string{
	NotAuthenticated:  "NOT_AUTHENTICATED",
	NoChunk:           "NO_CHUNK",
	MissingUploadID:   "MISSING_UPLOAD_ID",
	NotFound:          "NOT_FOUND",
	Gone:              "GONE",
	AlreadyComplete:   "ALREADY_COMPLETE",
	BadRange:          "BAD_RANGE",
	SizeLimitExceeded: "SIZE_LIMIT_EXCEEDED",
	OffsetMismatch:    "OFFSET_MISMATCH",
	SizeMismatch:      "SIZE_MISMATCH",
	ValidationFailed:  "VALIDATION_FAILED",
	ConflictingWrite:  "CONFLICTING_WRITE",
	BadRequest:        "BAD_REQUEST",
	Storage:           "STORAGE",
	RecordStore:       "RECORD_STORE",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Status is the HTTP status an error of this kind is reported with.
func (k ErrorKind) Status() int {
	switch k {
	case NotAuthenticated:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Gone:
		return http.StatusGone
	case Storage, RecordStore:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// Error is the only error type the coordinators return. Offset and Size are
// set for the kinds a caller can recover from by resending the right range.
type Error struct {
	Kind   ErrorKind
	Status int
	Detail string
	Offset *int64
	Size   *int64
	Err    error
}

func newError(kind ErrorKind, detail string) *Error {
	return &Error{Kind: kind, Status: kind.Status(), Detail: detail}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Detail, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Fields is the response body for the error.
func (e *Error) Fields() map[string]interface{} {
	fields := map[string]interface{}{"detail": e.Detail}
	if e.Offset != nil {
		fields["offset"] = *e.Offset
	}

	if e.Size != nil {
		fields["size"] = *e.Size
	}

	return fields
}

// IsKind reports whether err is, or wraps, an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func ErrNotAuthenticated() *Error {
	return newError(NotAuthenticated, "Authentication credentials were not provided")
}

func ErrNoChunk() *Error {
	return newError(NoChunk, "No chunk file was submitted")
}

func ErrMissingUploadID() *Error {
	return newError(MissingUploadID, `The "upload_id" is required`)
}

func errNotFound() *Error {
	return newError(NotFound, "Not found.")
}

func errGone() *Error {
	return newError(Gone, "Upload has expired")
}

func errAlreadyComplete() *Error {
	return newError(AlreadyComplete, `Upload has already been marked as "complete"`)
}

func errBadRange(detail string) *Error {
	return newError(BadRange, detail)
}

func errSizeLimitExceeded(max int64) *Error {
	return newError(SizeLimitExceeded, fmt.Sprintf("Size of file exceeds the limit (%d bytes)", max))
}

func errOffsetMismatch(offset int64) *Error {
	e := newError(OffsetMismatch, "Offsets do not match")
	e.Offset = &offset
	return e
}

func errChunkSizeMismatch() *Error {
	return newError(SizeMismatch, "File size doesn't match headers")
}

func errExpectedSizeMismatch(size int64) *Error {
	e := newError(SizeMismatch, "Expected file size does not match")
	e.Size = &size
	return e
}

func errConflictingWrite(size int64) *Error {
	e := newError(ConflictingWrite, "File is currently being written by another request")
	e.Size = &size
	return e
}

func errBadExpectedSize() *Error {
	return newError(BadRequest, `Invalid value for "expected_size", an integer is required`)
}

// ValidationError is for hooks rejecting a chunk.
func ValidationError(detail string) *Error {
	return newError(ValidationFailed, detail)
}

func storageError(err error, detail string) *Error {
	e := newError(Storage, detail)
	e.Err = err
	return e
}

func recordStoreError(err error, detail string) *Error {
	e := newError(RecordStore, detail)
	e.Err = err
	return e
}
