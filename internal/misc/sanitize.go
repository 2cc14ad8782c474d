package misc

import (
	"regexp"
	"strings"
)

var nameReplacer = strings.NewReplacer(
	"*", "all",
	".", "_",
	"//", ".",
	"/", ".",
)

var invalidNameChars = regexp.MustCompile(`[^a-z\-_0-9.]`)

// SanitizeName lowercases a metric name and replaces characters the receiver
// does not support: '*' becomes "all", '.' becomes '_', path separators
// become '.', and anything else outside [a-z-_0-9.] becomes '_'.
func SanitizeName(name string) string {
	name = nameReplacer.Replace(strings.ToLower(name))
	return invalidNameChars.ReplaceAllString(name, "_")
}
