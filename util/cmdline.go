package util

import (
	"os"
	"regexp"
	"strings"
)

// percentRe matches Windows-style %NAME% references.
var percentRe = regexp.MustCompile(`%([A-Za-z_][A-Za-z0-9_()]*)%`)

// ExpandEnv replaces $NAME, ${NAME} and %NAME% references with the
// values of the corresponding environment variables.  Unset %NAME%
// references are left untouched, as the Windows shell does; unset
// $NAME references expand to the empty string.
func ExpandEnv(s string) string {
	s = percentRe.ReplaceAllStringFunc(s, func(ref string) string {
		name := ref[1 : len(ref)-1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return ref
	})
	if !strings.Contains(s, "$") {
		return s
	}
	return os.ExpandEnv(s)
}
