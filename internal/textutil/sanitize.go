package textutil

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// pathUnsafeReplacer maps filesystem-unsafe characters to safe alternatives.
// Separators and colons become dashes; the rest are dropped.
var pathUnsafeReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
	"\x00", "",
)

// SanitizeFileName makes a name safe to use as a single path component.
// The input is normalized to NFC first so the same title always produces
// the same file name regardless of how it was encoded upstream.
func SanitizeFileName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	out := strings.TrimSpace(pathUnsafeReplacer.Replace(name))
	return strings.Trim(out, ".")
}
