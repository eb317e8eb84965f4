package domain

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	Redacted         = "[REDACTED]"
	RedactedEndpoint = "[REDACTED_ENDPOINT]"
)

var sensitiveKeys = map[string]struct{}{
	"accesstoken":      {},
	"refreshtoken":     {},
	"token":            {},
	"apikey":           {},
	"secret":           {},
	"signingsecret":    {},
	"password":         {},
	"privatekey":       {},
	"endpoint":         {},
	"providerendpoint": {},
	"downloadurl":      {},
	"rpcurl":           {},
	"dbpath":           {},
	"storepath":        {},
	"payload":          {},
}

var (
	urlPattern     = regexp.MustCompile(`https?://[^\s)\]]+`)
	jwtPattern     = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)
	bearerPattern  = regexp.MustCompile(`(?i)\bBearer\s+\S+`)
	tokPattern     = regexp.MustCompile(`(?i)\btok_[\w-]+`)
	envPattern     = regexp.MustCompile(`\b[A-Z][A-Z0-9_]*=\S+`)
	addressPattern = regexp.MustCompile(`0x[a-fA-F0-9]{40,}`)
	unixPath       = regexp.MustCompile(`(^|[\s"'(=:])/[A-Za-z0-9_.\-]+(/[A-Za-z0-9_.\-]+)+/?`)
	windowsPath    = regexp.MustCompile(`[A-Za-z]:\\[A-Za-z0-9_.\-\\]+`)
)

// RedactMessage strips infrastructure detail from error text before it reaches a caller.
func RedactMessage(msg string) string {
	msg = urlPattern.ReplaceAllString(msg, "[URL]")
	msg = jwtPattern.ReplaceAllString(msg, "[TOKEN]")
	msg = bearerPattern.ReplaceAllString(msg, "Bearer [REDACTED]")
	msg = tokPattern.ReplaceAllString(msg, "tok_***")
	msg = envPattern.ReplaceAllString(msg, "[ENV]")
	msg = addressPattern.ReplaceAllString(msg, "[ADDRESS]")
	msg = unixPath.ReplaceAllString(msg, "${1}[PATH]")
	msg = windowsPath.ReplaceAllString(msg, "[PATH]")
	return msg
}

// RedactString is the lighter pass applied to audit detail values: identifiers and
// addresses stay readable, credentials and endpoints do not.
func RedactString(s string) string {
	s = tokPattern.ReplaceAllString(s, "tok_***")
	s = bearerPattern.ReplaceAllString(s, "Bearer [REDACTED]")
	s = urlPattern.ReplaceAllString(s, RedactedEndpoint)
	s = jwtPattern.ReplaceAllString(s, "[TOKEN]")
	return s
}

// RedactDetails returns a redacted deep copy of an audit details map.
func RedactDetails(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}
	out, _ := redactValue(details).(map[string]any)
	return out
}

func redactValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return RedactString(val)
	case bool, int, int32, int64, uint, uint32, uint64, float32, float64:
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, raw := range val {
			if _, ok := sensitiveKeys[strings.ToLower(k)]; ok {
				out[k] = Redacted
				continue
			}
			out[k] = redactValue(raw)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, raw := range val {
			out[k] = redactValue(raw)
		}
		return redactValue(out)
	case []any:
		out := make([]any, len(val))
		for i, raw := range val {
			out[i] = redactValue(raw)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, raw := range val {
			out[i] = RedactString(raw)
		}
		return out
	case fmt.Stringer:
		return RedactString(val.String())
	default:
		return val
	}
}
