package secret

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
)

var bracedVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnvStrict expands $VAR and ${VAR} through os.ExpandEnv, with
// two extra rules: a braced ${VAR} naming an unset variable is an
// error rather than an empty substitution, and "$$" emits a literal
// "$". Bare $VAR keeps the permissive os.ExpandEnv behavior.
func ExpandEnvStrict(s string) (string, error) {
	// A NUL-delimited marker survives os.ExpandEnv untouched, which is
	// what lets "$$" escape expansion.
	const marker = "\x00dollar\x00"
	escaped := strings.ReplaceAll(s, "$$", marker)

	if missing := missingBracedVars(escaped); len(missing) > 0 {
		return "", fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return strings.ReplaceAll(os.ExpandEnv(escaped), marker, "$"), nil
}

// missingBracedVars returns the sorted ${VAR} names absent from the
// environment. Set-but-empty variables count as present.
func missingBracedVars(s string) []string {
	var missing []string
	for _, match := range bracedVarPattern.FindAllStringSubmatch(s, -1) {
		name := match[1]
		if _, ok := os.LookupEnv(name); !ok && !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
	}
	slices.Sort(missing)
	return missing
}
