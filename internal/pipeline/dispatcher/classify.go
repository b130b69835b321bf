package dispatcher

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vietddude/dispatch/internal/infra/rpc/provider"
)

// Verdict is the terminal class of a received response.
type Verdict int

const (
	VerdictSuccess Verdict = iota
	// VerdictAPIError: the upstream answered with an error list
	VerdictAPIError
	// VerdictInvalidBody: the body is not JSON
	VerdictInvalidBody
)

func (v Verdict) String() string {
	switch v {
	case VerdictSuccess:
		return "success"
	case VerdictAPIError:
		return "api_error"
	default:
		return "invalid_body"
	}
}

// ClassifyResponse decides the terminal outcome of a response from its body
// alone and, for failures, the value stored under "error" in the error log.
// The status code never changes the verdict.
//
// A response whose top-level "errors" is a non-empty array (or any other
// non-null, non-array value) is an API error. An absent, null or empty
// "errors" is a success.
func ClassifyResponse(resp *provider.Response) (Verdict, any) {
	if !json.Valid(resp.Body) {
		return VerdictInvalidBody, fmt.Sprintf("invalid JSON response (http %d): %s",
			resp.StatusCode, preview(resp.Body))
	}

	if list, ok := errorList(resp.Body); ok {
		return VerdictAPIError, list
	}
	return VerdictSuccess, nil
}

// errorList extracts a non-empty top-level "errors" member.
func errorList(body []byte) (json.RawMessage, bool) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		// Valid JSON that is not an object carries no error list
		return nil, false
	}

	raw, ok := doc["errors"]
	if !ok {
		return nil, false
	}
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		return nil, false
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil && len(items) == 0 {
		return nil, false
	}
	return raw, true
}

func preview(b []byte) string {
	const limit = 200
	b = bytes.TrimSpace(b)
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
