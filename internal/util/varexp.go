package util

import (
	"os"
	"regexp"
	"strings"
)

var envRegExp = regexp.MustCompile(`\${env:.+?}`)

// ExpandEnvVars replaces ${env:NAME} and ${env:NAME|default} with the value
// of the environment variable NAME.
func ExpandEnvVars(src string) string {
	return envRegExp.ReplaceAllStringFunc(src, func(s string) string {
		k, d, found := strings.Cut(fullVar(s), "|")
		if found {
			v, ok := os.LookupEnv(k)
			if ok {
				return v
			} else {
				return d
			}
		} else {
			return os.Getenv(k)
		}
	})
}

func fullVar(match string) string {
	return match[6 : len(match)-1]
}
