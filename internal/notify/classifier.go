package notify

import "strings"

// Category is the popup style a message renders with.
type Category string

const (
	CategoryAppointment Category = "appointment"
	CategorySpecimen    Category = "specimen"
	CategoryProgress    Category = "progress"
	CategoryResult      Category = "result"
	CategoryCompleted   Category = "completed"
	CategoryGeneric     Category = "generic"
)

type popupRule struct {
	keyword  string
	category Category
}

// popupRules maps message keywords to popup categories. Order matters: the
// first matching rule wins, so narrower phrases sit above broader ones
// ("result delivered" before "deliver").
var popupRules = []popupRule{
	{"appointment", CategoryAppointment},
	{"registered", CategoryAppointment},
	{"specimen", CategorySpecimen},
	{"sample", CategorySpecimen},
	{"result", CategoryResult},
	{"progress", CategoryProgress},
	{"processing", CategoryProgress},
	{"completed", CategoryCompleted},
	{"finished", CategoryCompleted},
}

// Classify picks the popup category for a message. Matching is
// case-insensitive substring against the subject first; a subject matching
// no rule falls back to the body text, and only then to the generic style.
func Classify(subject, content string) Category {
	if cat, ok := matchRules(subject); ok {
		return cat
	}
	if cat, ok := matchRules(content); ok {
		return cat
	}
	return CategoryGeneric
}

func matchRules(text string) (Category, bool) {
	t := strings.ToLower(text)
	for _, r := range popupRules {
		if strings.Contains(t, r.keyword) {
			return r.category, true
		}
	}
	return CategoryGeneric, false
}
