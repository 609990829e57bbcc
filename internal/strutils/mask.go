package strutils

import "regexp"

var keyParamRx = regexp.MustCompile(`([?&]key=)[^&]*`)

// MaskKey replaces the value of any "key" query parameter so URLs can be
// logged without exposing the API key.
func MaskKey(url string) string {
	return keyParamRx.ReplaceAllString(url, "${1}********")
}
