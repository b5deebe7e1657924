package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

var ErrAmbiguousMatch = fmt.Errorf("ambiguous match")
var ErrBadResponse = fmt.Errorf("bad response")
var ErrInternal = fmt.Errorf("internal error")
var ErrMalformedPayload = fmt.Errorf("malformed payload")
var ErrNotFound = fmt.Errorf("not found")
var ErrProjectionFailure = fmt.Errorf("projection failure")
var ErrRemoteCallFailure = fmt.Errorf("remote call failure")

type myError struct {
	msg    string
	target error
}

func (m myError) Error() string        { return m.msg }
func (m myError) Is(target error) bool { return target == m.target }

func NewAmbiguousMatchError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrAmbiguousMatch,
	}
}

func NewMalformedPayloadError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrMalformedPayload,
	}
}

func NewNotFoundError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrNotFound,
	}
}

func NewProjectionError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrProjectionFailure,
	}
}

func NewRemoteCallError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrRemoteCallFailure,
	}
}

// NewErrorFromResponse maps an error response from the SensorThings service
// onto the error taxonomy. FROST style services respond with a JSON body of
// the form {"code": 404, "type": "error", "message": "..."}, but any body
// is tolerated.
func NewErrorFromResponse(code int, body []byte) error {
	report := &struct {
		Code    int    `json:"code"`
		Type    string `json:"type"`
		Message string `json:"message"`
	}{}

	detail := string(body)

	err := json.Unmarshal(body, report)
	if err == nil && report.Message != "" {
		detail = report.Message
	}

	if code == http.StatusNotFound {
		return NewNotFoundError(detail)
	}

	if code >= http.StatusBadRequest && code < http.StatusInternalServerError {
		return NewMalformedPayloadError(fmt.Sprintf("[code: %d] %s", code, detail))
	}

	return NewRemoteCallError(fmt.Sprintf("[code: %d] %s", code, detail))
}
