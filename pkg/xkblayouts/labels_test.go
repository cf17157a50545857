package xkblayouts

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testRegistry = `<?xml version="1.0" encoding="UTF-8"?>
<xkbConfigRegistry version="1.1">
  <layoutList>
    <layout>
      <configItem>
        <name>us</name>
        <shortDescription>en</shortDescription>
        <description>English (US)</description>
        <languageList><iso639Id>eng</iso639Id></languageList>
      </configItem>
      <variantList>
        <variant>
          <configItem>
            <name>dvorak</name>
            <description>English (Dvorak)</description>
          </configItem>
        </variant>
      </variantList>
    </layout>
    <layout>
      <configItem>
        <name>ru</name>
        <shortDescription>ru</shortDescription>
        <description>Russian</description>
        <languageList><iso639Id>rus</iso639Id></languageList>
      </configItem>
      <variantList>
        <variant>
          <configItem>
            <name>phonetic</name>
            <description>Russian (phonetic)</description>
          </configItem>
        </variant>
      </variantList>
    </layout>
    <layout>
      <configItem>
        <name>ua</name>
        <shortDescription>uk</shortDescription>
        <description>Ukrainian</description>
      </configItem>
    </layout>
    <layout>
      <configItem>
        <name>custom</name>
        <description>Custom</description>
      </configItem>
    </layout>
  </layoutList>
</xkbConfigRegistry>`

func testRegistryParsed(t *testing.T) *XkbConfigRegistry {
	t.Helper()
	reg, err := DecodeLayouts(strings.NewReader(testRegistry))
	require.NoError(t, err)
	return reg
}

func TestParseLayoutsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evdev.xml")
	require.NoError(t, os.WriteFile(path, []byte(testRegistry), 0o644))

	reg, err := ParseLayouts(path)
	require.NoError(t, err)
	require.Len(t, reg.LayoutList.Layout, 4)
	assert.Equal(t, "en", reg.LayoutList.Layout[0].ConfigItem.ShortDescription)
	assert.Equal(t, []string{"eng"}, reg.LayoutList.Layout[0].ConfigItem.LanguageList.ISO639)
}

func TestParseLayoutsErrors(t *testing.T) {
	_, err := ParseLayouts(filepath.Join(t.TempDir(), "missing.xml"))
	require.Error(t, err)

	_, err = DecodeLayouts(strings.NewReader("<xkbConfigRegistry><layoutList>"))
	require.Error(t, err)
}

func TestLookup(t *testing.T) {
	reg := testRegistryParsed(t)

	m, ok := reg.Lookup("Russian (phonetic)")
	require.True(t, ok)
	assert.Equal(t, "ru", m.Layout)
	assert.Equal(t, "phonetic", m.Variant)
	assert.Equal(t, "ru", m.Short)
	assert.Equal(t, []string{"rus"}, m.Languages)

	_, ok = reg.Lookup("Klingon")
	assert.False(t, ok)

	var nilReg *XkbConfigRegistry
	_, ok = nilReg.Lookup("Russian")
	assert.False(t, ok)
}

func TestLabelerFromRegistry(t *testing.T) {
	l := NewLabeler(testRegistryParsed(t), nil)

	cases := []struct {
		group  string
		label  string
		locale string
	}{
		{"English (US)", "EN", "us"},
		{"English (Dvorak)", "EN", "us(dvorak)"},
		{"Russian", "RU", "ru"},
		{"Ukrainian", "UK", "ua"},
		{"Custom", "CUSTOM", "custom"},
	}
	for i, c := range cases {
		layout := l.Describe(i, c.group)
		assert.Equal(t, i, layout.Index)
		assert.Equal(t, c.group, layout.Name)
		assert.Equal(t, c.label, layout.Label, c.group)
		assert.Equal(t, c.locale, layout.Locale, c.group)
	}
}

func TestLabelerOverrides(t *testing.T) {
	l := NewLabeler(testRegistryParsed(t), map[string]string{
		"ua":           "UA",
		"English (US)": "US",
	})

	assert.Equal(t, "UA", l.Describe(0, "Ukrainian").Label)
	assert.Equal(t, "US", l.Describe(1, "English (US)").Label)
	assert.Equal(t, "EN", l.Describe(2, "English (Dvorak)").Label)
}

func TestLabelerWithoutRegistry(t *testing.T) {
	l := NewLabeler(nil, map[string]string{"Greek": "ΕΛ"})

	assert.Equal(t, "EN", l.Describe(0, "English (US)").Label)
	assert.Equal(t, "RU", l.Describe(1, "Russian").Label)
	assert.Equal(t, "UA", l.Describe(2, "ua").Label)
	assert.Equal(t, "ΕΛ", l.Describe(3, "Greek").Label)

	layout := l.Describe(4, "German")
	assert.Equal(t, "GE", layout.Label)
	assert.Empty(t, layout.Locale)
}

func TestShortenName(t *testing.T) {
	assert.Equal(t, "RU", ShortenName("Russian"))
	assert.Equal(t, "EN", ShortenName("English (UK)"))
	assert.Equal(t, "EN", ShortenName("us"))
	assert.Equal(t, "UA", ShortenName("ua"))
	assert.Equal(t, "ÉS", ShortenName("éspañol"))
	assert.Equal(t, "X", ShortenName("x"))
	assert.Equal(t, "", ShortenName(""))
}
