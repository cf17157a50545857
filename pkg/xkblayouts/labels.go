package xkblayouts

import (
	"codeberg.org/miketth/xkbtray/pkg/xkbtray"
	"strings"
)

// Labeler derives tray labels from XKB group names. Lookups go through
// user overrides, then the rules registry, then a name heuristic.
type Labeler struct {
	registry  *XkbConfigRegistry
	overrides map[string]string
}

// NewLabeler accepts a nil registry; overrides are keyed by group name or
// layout code.
func NewLabeler(registry *XkbConfigRegistry, overrides map[string]string) *Labeler {
	o := make(map[string]string, len(overrides))
	for k, v := range overrides {
		o[k] = v
	}

	return &Labeler{
		registry:  registry,
		overrides: o,
	}
}

func (l *Labeler) Describe(index int, groupName string) xkbtray.Layout {
	layout := xkbtray.Layout{
		Index: index,
		Name:  groupName,
	}

	match, found := l.registry.Lookup(groupName)
	if found {
		layout.Locale = match.Layout
		if match.Variant != "" {
			layout.Locale += "(" + match.Variant + ")"
		}
	}

	switch {
	case l.overrides[groupName] != "":
		layout.Label = l.overrides[groupName]
	case found && l.overrides[match.Layout] != "":
		layout.Label = l.overrides[match.Layout]
	case found && match.Short != "":
		layout.Label = strings.ToUpper(match.Short)
	case found && match.Layout != "":
		layout.Label = strings.ToUpper(match.Layout)
	default:
		layout.Label = ShortenName(groupName)
	}

	return layout
}

// ShortenName guesses a label from a bare group name.
func ShortenName(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "ru"), strings.Contains(lower, "russian"):
		return "RU"
	case strings.Contains(lower, "us"), strings.Contains(lower, "english"):
		return "EN"
	case strings.Contains(lower, "ua"):
		return "UA"
	}

	runes := []rune(name)
	if len(runes) > 2 {
		runes = runes[:2]
	}
	return strings.ToUpper(string(runes))
}
