package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error kinds. Every *Error matches exactly one of them with errors.Is.
var (
	ErrNetwork         = errors.New("network error")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrValidation      = errors.New("request rejected")
	ErrServer          = errors.New("server error")
)

type FieldError struct {
	Field   string
	Message string
}

type Error struct {
	Kind       error
	StatusCode int
	Detail     string
	Fields     []FieldError
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	for _, field := range e.Fields {
		fmt.Fprintf(&b, "; %s: %s", field.Field, field.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func IsNotFound(err error) bool {
	var gatewayErr *Error
	return errors.As(err, &gatewayErr) && gatewayErr.StatusCode == http.StatusNotFound
}

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type validationEntry struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// classifyStatus maps a non-2xx response to an *Error. The body is never
// treated as data.
func classifyStatus(statusCode int, body []byte) *Error {
	detail, fields := decodeErrorBody(body)

	gatewayErr := &Error{StatusCode: statusCode, Detail: detail, Fields: fields}
	switch {
	case statusCode == http.StatusUnauthorized:
		gatewayErr.Kind = ErrUnauthenticated
	case statusCode == http.StatusForbidden && strings.EqualFold(detail, "Not authenticated"):
		gatewayErr.Kind = ErrUnauthenticated
	case statusCode >= 500:
		gatewayErr.Kind = ErrServer
	default:
		gatewayErr.Kind = ErrValidation
	}
	if gatewayErr.Detail == "" && len(fields) == 0 {
		gatewayErr.Detail = http.StatusText(statusCode)
	}

	return gatewayErr
}

func decodeErrorBody(body []byte) (string, []FieldError) {
	var decoded errorBody
	if err := json.Unmarshal(body, &decoded); err != nil || len(decoded.Detail) == 0 {
		return strings.TrimSpace(string(body)), nil
	}

	var message string
	if err := json.Unmarshal(decoded.Detail, &message); err == nil {
		return message, nil
	}

	var entries []validationEntry
	if err := json.Unmarshal(decoded.Detail, &entries); err != nil {
		return strings.TrimSpace(string(decoded.Detail)), nil
	}

	fields := make([]FieldError, 0, len(entries))
	for _, entry := range entries {
		loc := make([]string, 0, len(entry.Loc))
		for _, part := range entry.Loc {
			loc = append(loc, fmt.Sprint(part))
		}
		fields = append(fields, FieldError{Field: strings.Join(loc, "."), Message: entry.Msg})
	}

	return "", fields
}
