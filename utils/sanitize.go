package utils

import "github.com/microcosm-cc/bluemonday"

var (
	richPolicy  = bluemonday.UGCPolicy()
	plainPolicy = bluemonday.StrictPolicy()
)

// Sanitize cleans user generated HTML (article bodies, comments) to prevent XSS.
func Sanitize(input string) string {
	return richPolicy.Sanitize(input)
}

// SanitizePlain strips every tag, for single-line fields such as titles and bios.
func SanitizePlain(input string) string {
	return plainPolicy.Sanitize(input)
}
