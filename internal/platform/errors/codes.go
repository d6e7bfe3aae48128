// Package errors provides structured error handling for the scoring service.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Request errors
	CodeMalformedRequest Code = "MALFORMED_REQUEST"
	CodeMethodNotAllowed Code = "METHOD_NOT_ALLOWED"
	CodeRequestTooLarge  Code = "REQUEST_TOO_LARGE"

	// Storage errors
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
	CodeScoreboardCorrupt  Code = "SCOREBOARD_CORRUPT"
)

// Status pairs a protocol status code with its reason phrase.
type Status struct {
	Code   int
	Reason string
}

var (
	// StatusOK is returned for every successfully served request.
	StatusOK = Status{Code: 200, Reason: "OK"}
	// StatusBadRequest is returned when the request line cannot be parsed.
	StatusBadRequest = Status{Code: 400, Reason: "Bad Request"}
	// StatusNope is the non-standard status returned for non-GET methods.
	StatusNope = Status{Code: 420, Reason: "NOPE"}
	// StatusInternal is returned when the server cannot read its own state.
	StatusInternal = Status{Code: 500, Reason: "Internal Server Error"}
)

// Status maps domain codes to protocol response statuses.
func (c Code) Status() Status {
	switch c {
	// 400 - the client sent something we cannot parse
	case CodeMalformedRequest,
		CodeRequestTooLarge:
		return StatusBadRequest

	// 420 - parsed fine, but only GET is served
	case CodeMethodNotAllowed:
		return StatusNope

	default:
		return StatusInternal
	}
}
