package dispatcher

import (
	"testing"

	"github.com/vietddude/dispatch/internal/infra/rpc/provider"
)

func TestClassifyResponse(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Verdict
	}{
		{"object", 200, `{"id":"1"}`, VerdictSuccess},
		{"array document", 200, `[1,2]`, VerdictSuccess},
		{"empty errors", 200, `{"errors":[]}`, VerdictSuccess},
		{"null errors", 200, `{"errors": null}`, VerdictSuccess},
		{"errors present", 200, `{"errors":["x"]}`, VerdictAPIError},
		{"errors object", 200, `{"errors":{"code":1}}`, VerdictAPIError},
		{"client error with json", 404, `{"detail":"no route"}`, VerdictSuccess},
		{"server error with json", 500, `{"choices":[{"message":"ok"}]}`, VerdictSuccess},
		{"server error with error list", 503, `{"errors":["overloaded"]}`, VerdictAPIError},
		{"truncated", 200, `{"id":`, VerdictInvalidBody},
		{"empty", 200, ``, VerdictInvalidBody},
		{"html error page", 404, `<h1>404</h1>`, VerdictInvalidBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errValue := ClassifyResponse(&provider.Response{StatusCode: tt.status, Body: []byte(tt.body)})
			if got != tt.want {
				t.Errorf("verdict = %v, want %v", got, tt.want)
			}
			if (got == VerdictSuccess) != (errValue == nil) {
				t.Errorf("error value %v inconsistent with verdict %v", errValue, got)
			}
		})
	}
}
