package service

import (
	"regexp"

	"github.com/uwscope/scope-web-sub000/internal/model"
)

var dateShape = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}(T\d{2}:\d{2}(:\d{2}(\.\d+)?)?(Z|[+-]\d{2}:?\d{2})?)?$`)

// HydrateDates walks a decoded JSON value and replaces every ISO-8601
// date-shaped string with a time.Time. Maps and slices are rewritten in place
// and returned.
func HydrateDates(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			t[k] = HydrateDates(child)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = HydrateDates(child)
		}
		return t
	case string:
		if !dateShape.MatchString(t) {
			return t
		}
		if parsed, err := model.ParseDate(t); err == nil {
			return parsed
		}
		return t
	default:
		return v
	}
}
