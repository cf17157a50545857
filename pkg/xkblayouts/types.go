package xkblayouts

import "encoding/xml"

// XkbConfigRegistry is the root of an XKB rules registry file such as
// /usr/share/X11/xkb/rules/evdev.xml.
type XkbConfigRegistry struct {
	XMLName    xml.Name   `xml:"xkbConfigRegistry"`
	LayoutList LayoutList `xml:"layoutList"`
}

type ConfigItem struct {
	Name             string       `xml:"name"`
	ShortDescription string       `xml:"shortDescription"`
	Description      string       `xml:"description"`
	LanguageList     LanguageList `xml:"languageList"`
}

type LanguageList struct {
	ISO639 []string `xml:"iso639Id"`
}

type Variant struct {
	ConfigItem ConfigItem `xml:"configItem"`
}

type VariantList struct {
	Variant []Variant `xml:"variant"`
}

type Layout struct {
	ConfigItem  ConfigItem  `xml:"configItem"`
	VariantList VariantList `xml:"variantList"`
}

type LayoutList struct {
	Layout []Layout `xml:"layout"`
}

// Match is a registry hit for a group name.
type Match struct {
	Layout  string
	Variant string
	// Short is the variant's short description, or the layout's when the
	// variant has none.
	Short string
	// Languages holds ISO 639 codes, variant first then layout.
	Languages []string
}
