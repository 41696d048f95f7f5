package provisioning

import (
	"sort"
	"strings"
)

var sensitiveFields = []string{"key", "password", "token", "secret", "auth", "api_key", "authorization"}

// MaskSensitive returns a copy of data with values of sensitive-looking keys shortened.
// Strings longer than 10 characters keep their first 10; everything else becomes "***".
func MaskSensitive(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if isSensitive(k) {
			out[k] = maskValue(v)
			continue
		}
		out[k] = maskNested(v)
	}
	return out
}

func maskNested(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return MaskSensitive(t)
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, s := range t {
			m[k] = s
		}
		return MaskSensitive(m)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = maskNested(item)
		}
		return out
	}
	return v
}

func maskValue(v any) string {
	s, ok := v.(string)
	if ok && len(s) > 10 {
		return s[:10] + "..."
	}
	return "***"
}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	for _, f := range sensitiveFields {
		if strings.Contains(k, f) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
