package catalog

import (
	"strings"

	"github.com/gosimple/slug"
)

// GenerateVariantSlug builds the slug of a variant from the master common name,
// the color name and the selected feature value names in the order supplied.
// Duplicated values are kept.
func GenerateVariantSlug(commonName, colorName string, featureValueNames []string) string {
	parts := make([]string, 0, len(featureValueNames)+2)
	parts = append(parts, commonName, colorName)
	parts = append(parts, featureValueNames...)
	return makeSlug(strings.Join(parts, " "))
}

// GenerateMasterSlug builds the slug of a master from its common name alone.
func GenerateMasterSlug(commonName string) string {
	return makeSlug(commonName)
}

// wordSymbols are spelled out by the gosimple/slug English table ("and",
// "at"); they are plain separators here.
var wordSymbols = strings.NewReplacer("&", " ", "@", " ")

// makeSlug transliterates to ASCII and lowercases via gosimple/slug, then folds
// the underscores it keeps into the hyphen separator.
func makeSlug(value string) string {
	raw := slug.Make(wordSymbols.Replace(value))
	var b strings.Builder
	b.Grow(len(raw))
	lastHyphen := true
	for _, r := range raw {
		if r == '-' || r == '_' {
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
			continue
		}
		b.WriteRune(r)
		lastHyphen = false
	}
	return strings.TrimSuffix(b.String(), "-")
}
