package sales

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var thousandsPattern = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)

// lookup returns the first present, non-null value among keys.
func lookup(m map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func getStringField(m map[string]interface{}, keys ...string) (string, bool) {
	v, ok := lookup(m, keys...)
	if !ok {
		return "", false
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		return s, s != ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	default:
		return "", false
	}
}

// getFloat64Field reads a number that the model may have sent as a JSON
// number or as a string such as "3000", "$3.000" or "2,5".
func getFloat64Field(m map[string]interface{}, key string, aliases ...string) (float64, bool, error) {
	v, ok := lookup(m, append([]string{key}, aliases...)...)
	if !ok {
		return 0, false, nil
	}

	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case int:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, true, &ValidationError{Kind: KindInvalidNumber, Field: key, Value: v}
		}
		f = parsed
	case string:
		parsed, err := ParseNumber(val)
		if err != nil {
			return 0, true, &ValidationError{Kind: KindInvalidNumber, Field: key, Value: v}
		}
		f = parsed
	default:
		return 0, true, &ValidationError{Kind: KindInvalidNumber, Field: key, Value: v}
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, true, &ValidationError{Kind: KindInvalidNumber, Field: key, Value: v}
	}
	return f, true, nil
}

// ParseNumber parses a human-written amount. A dot followed by groups of
// three digits is a thousands separator; a comma is a decimal separator.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, " ", "")

	switch {
	case strings.Contains(s, ".") && strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case strings.Contains(s, ","):
		s = strings.Replace(s, ",", ".", 1)
	case thousandsPattern.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, strconv.ErrSyntax
	}
	return f, nil
}
