package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoToken is returned by calls that require authentication when no
	// token is set. No request is sent.
	ErrNoToken = errors.New("not authenticated")

	// ErrUnsupportedFormat is returned by Export for unknown formats.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// FieldError is one entry of a validation error list.
type FieldError struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type,omitempty"`
}

// Location joins the path of the invalid field with dots.
func (f FieldError) Location() string {
	parts := make([]string, len(f.Loc))
	for i, p := range f.Loc {
		parts[i] = fmt.Sprint(p)
	}
	return strings.Join(parts, ".")
}

// Error is a non-2xx response from the backend.
type Error struct {
	Status  int
	Message string
	Fields  []FieldError
}

func (e *Error) Error() string {
	return e.Message
}

type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// parseError turns an error response into an *Error. The message comes from
// "detail" (a string, or a list of field errors), then "error", then
// "message", and is "HTTP <status>" when the body says nothing usable.
func parseError(status int, body []byte) *Error {
	e := &Error{Status: status, Message: fmt.Sprintf("HTTP %d", status)}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return e
	}

	if len(eb.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(eb.Detail, &detail); err == nil && detail != "" {
			e.Message = detail
			return e
		}

		var fields []FieldError
		if err := json.Unmarshal(eb.Detail, &fields); err == nil && len(fields) > 0 {
			msgs := make([]string, len(fields))
			for i, f := range fields {
				msgs[i] = f.Location() + ": " + f.Msg
			}
			e.Fields = fields
			e.Message = strings.Join(msgs, "; ")
			return e
		}
	}

	switch {
	case eb.Error != "":
		e.Message = eb.Error
	case eb.Message != "":
		e.Message = eb.Message
	}
	return e
}
