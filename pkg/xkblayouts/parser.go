package xkblayouts

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
)

func ParseLayouts(path string) (*XkbConfigRegistry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	return DecodeLayouts(file)
}

func DecodeLayouts(r io.Reader) (*XkbConfigRegistry, error) {
	registry := &XkbConfigRegistry{}
	err := xml.NewDecoder(r).Decode(registry)
	if err != nil {
		return nil, fmt.Errorf("decode xml: %w", err)
	}

	return registry, nil
}

// Lookup finds the layout or variant whose description is exactly the
// given XKB group name, e.g. "English (US)" or "Russian (phonetic)".
func (r *XkbConfigRegistry) Lookup(groupName string) (Match, bool) {
	if r == nil {
		return Match{}, false
	}

	for _, l := range r.LayoutList.Layout {
		if l.ConfigItem.Description == groupName {
			return Match{
				Layout:    l.ConfigItem.Name,
				Short:     l.ConfigItem.ShortDescription,
				Languages: l.ConfigItem.LanguageList.ISO639,
			}, true
		}

		for _, v := range l.VariantList.Variant {
			if v.ConfigItem.Description != groupName {
				continue
			}

			short := v.ConfigItem.ShortDescription
			if short == "" {
				short = l.ConfigItem.ShortDescription
			}
			langs := append(append([]string{}, v.ConfigItem.LanguageList.ISO639...), l.ConfigItem.LanguageList.ISO639...)

			return Match{
				Layout:    l.ConfigItem.Name,
				Variant:   v.ConfigItem.Name,
				Short:     short,
				Languages: langs,
			}, true
		}
	}

	return Match{}, false
}
