package errcodes

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

type Error struct {
	HTTPCode int
	Message  string
	Code     string
}

func (err *Error) Error() string {
	return err.Message
}

func (err *Error) As(target interface{}) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	*te = *err
	return true
}

func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.HTTPCode == err.HTTPCode && te.Code == err.Code
}

// IsNotFound reports whether err is, or wraps, a NotFound error.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.HTTPCode == http.StatusNotFound
}

// Unauthorized returns a 401 error for a missing or unusable identity token.
func Unauthorized(reason string) error {
	return &Error{
		http.StatusUnauthorized,
		reason,
		"unauthorized",
	}
}

// Forbidden returns a 403 error with a message indicating the action is
// forbidden.
func Forbidden(action string) error {
	return &Error{
		http.StatusForbidden,
		action + " is not allowed.",
		"forbidden",
	}
}

// NotFound returns a 404 error with a message indicating the given resource.
func NotFound(resource string) error {
	return &Error{
		http.StatusNotFound,
		resource + " not found.",
		"not_found",
	}
}

func UnsupportedMediaType() error {
	return &Error{
		http.StatusUnsupportedMediaType,
		"Unsupported Media Type",
		"unsupported_media_type",
	}
}

// UnsupportedFormat is returned when an upload is not a book container we
// can read.
func UnsupportedFormat(filename string) error {
	return &Error{
		http.StatusUnsupportedMediaType,
		fmt.Sprintf("%q is not an EPUB, PDF or CBZ file.", filename),
		"unsupported_format",
	}
}

// CorruptFile is returned when an upload claims a container format but
// cannot be opened as one.
func CorruptFile(container string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		fmt.Sprintf("The file could not be read as %s.", container),
		"corrupt_file",
	}
}

func UnknownParameter(param string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		fmt.Sprintf("Unknown Parameter %q", param),
		"unknown_parameter",
	}
}

func ValidationTypeError(msg string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		msg,
		"validation_type_error",
	}
}

func ValidationError(msg string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		msg,
		"validation_error",
	}
}

func MalformedPayload() error {
	return &Error{
		http.StatusBadRequest,
		"Malformed Payload",
		"malformed_payload",
	}
}

func EmptyRequestBody() error {
	return &Error{
		http.StatusBadRequest,
		"Request body can't be empty.",
		"empty_request_body",
	}
}

// UpstreamUnavailable is returned when a third-party service we proxy for
// fails.
func UpstreamUnavailable(service string) error {
	return &Error{
		http.StatusBadGateway,
		service + " is unavailable.",
		"upstream_unavailable",
	}
}

// PayloadTooLarge is returned when an upload exceeds upload_max_size.
func PayloadTooLarge() error {
	return &Error{
		http.StatusRequestEntityTooLarge,
		"The uploaded file is too large.",
		"payload_too_large",
	}
}
