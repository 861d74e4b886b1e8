package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

// APIError represents a service error response. Fields holds per-field
// validation messages when the service returned any.
type APIError struct {
	Status  int
	Message string
	Fields  map[string][]string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if msg := e.FirstMessage(); msg != "" {
		return msg
	}
	return http.StatusText(e.Status)
}

// Unauthenticated reports whether the service rejected the credential.
func (e *APIError) Unauthenticated() bool {
	return e.Status == http.StatusUnauthorized
}

// ServerError reports a 5xx response.
func (e *APIError) ServerError() bool {
	return e.Status >= 500
}

// FirstMessage returns the top-level message, or the first field message in
// field order when there is none.
func (e *APIError) FirstMessage() string {
	if e.Message != "" {
		return e.Message
	}
	for _, field := range e.sortedFields() {
		for _, msg := range e.Fields[field] {
			if msg != "" {
				return msg
			}
		}
	}
	return ""
}

// AllMessages aggregates every validation message, prefixed with its field,
// in deterministic field order. Forms with several inputs surface all of
// them, not only the first.
func (e *APIError) AllMessages() []string {
	var out []string
	if e.Message != "" {
		out = append(out, e.Message)
	}
	for _, field := range e.sortedFields() {
		for _, msg := range e.Fields[field] {
			if msg == "" {
				continue
			}
			out = append(out, fmt.Sprintf("%s: %s", humanField(field), msg))
		}
	}
	return out
}

func (e *APIError) sortedFields() []string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// decodeAPIError maps an error response body onto APIError. The service
// answers either a top-level message ("detail"/"message"/"error") or a map
// of field name to message list; both shapes are handled, anything else
// degrades to the HTTP status text.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil || len(data) == 0 {
		return apiErr
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return apiErr
	}
	for key, value := range raw {
		switch key {
		case "detail", "message", "error":
			var msg string
			if json.Unmarshal(value, &msg) == nil && msg != "" {
				apiErr.Message = msg
			}
		case "success", "code":
			// Envelope flags, not messages.
		default:
			msgs := decodeMessages(value)
			if len(msgs) == 0 {
				continue
			}
			if apiErr.Fields == nil {
				apiErr.Fields = make(map[string][]string)
			}
			apiErr.Fields[key] = msgs
		}
	}
	return apiErr
}

// decodeMessages accepts both "field": "msg" and "field": ["msg", ...].
func decodeMessages(value json.RawMessage) []string {
	var list []string
	if json.Unmarshal(value, &list) == nil {
		return list
	}
	var single string
	if json.Unmarshal(value, &single) == nil && single != "" {
		return []string{single}
	}
	return nil
}

func humanField(field string) string {
	if field == "non_field_errors" {
		return "form"
	}
	return strings.ReplaceAll(field, "_", " ")
}
