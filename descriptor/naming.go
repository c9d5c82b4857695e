package descriptor

import "unicode"

// ExposedName converts a Go exported name to the default script-side name.
// Go uses PascalCase; the scripting runtimes use camelCase.
// e.g., "DistanceTo" -> "distanceTo", "X" -> "x", "URL" -> "url"
func ExposedName(name string) string {
	if name == "" {
		return name
	}
	runes := []rune(name)

	// Lowercase the leading run of uppercase characters, but keep the last
	// one of the run uppercase when it starts a new word ("URLPath" -> "urlPath").
	i := 0
	for i < len(runes) && unicode.IsUpper(runes[i]) {
		i++
	}
	if i > 1 && i < len(runes) {
		i--
	}
	for j := 0; j < i; j++ {
		runes[j] = unicode.ToLower(runes[j])
	}
	return string(runes)
}
