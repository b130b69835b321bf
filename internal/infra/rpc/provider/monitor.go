package provider

import "strings"

// throttlePatterns are body fragments upstreams use to signal rate limiting
// without a 429 status.
var throttlePatterns = []string{
	"rate limit exceeded",
	"rate_limit_exceeded",
	"too many requests",
	"daily request count exceeded",
	"project rate limit",
	"monthly quota exceeded",
}

// DetectThrottlePattern checks if a message contains throttle patterns.
func DetectThrottlePattern(message string) bool {
	lowerMsg := strings.ToLower(message)

	for _, pattern := range throttlePatterns {
		if strings.Contains(lowerMsg, pattern) {
			return true
		}
	}

	return false
}
