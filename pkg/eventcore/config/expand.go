package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// envPattern matches ${NAME} and ${NAME:-fallback}.
var envPattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)(?::-([^}]*))?\}`)

// LookupFunc resolves a variable name.
type LookupFunc func(name string) (string, bool)

// UndefinedVariableError lists variables that were referenced without a
// fallback and could not be resolved.
type UndefinedVariableError struct {
	Names []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}

// ExpandEnv returns a copy of c with ${NAME} and ${NAME:-fallback} replaced
// in every string value, including strings inside nested maps and lists.
// Variables come from the process environment.
func ExpandEnv(c Config) (Config, error) {
	return Expand(c, os.LookupEnv)
}

// Expand is ExpandEnv with a custom lookup.
func Expand(c Config, lookup LookupFunc) (Config, error) {
	var missing []string
	out := expandValue(c.data, lookup, &missing)
	if len(missing) > 0 {
		return Config{}, &UndefinedVariableError{Names: missing}
	}
	return New(out.(map[string]any)), nil
}

func expandValue(v any, lookup LookupFunc, missing *[]string) any {
	switch val := v.(type) {
	case string:
		return expandString(val, lookup, missing)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = expandValue(item, lookup, missing)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = expandValue(item, lookup, missing)
		}
		return out
	default:
		return v
	}
}

func expandString(s string, lookup LookupFunc, missing *[]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envPattern.FindStringSubmatch(match)
		if val, ok := lookup(groups[1]); ok {
			return val
		}
		if strings.Contains(match, ":-") {
			return groups[2]
		}
		*missing = append(*missing, groups[1])
		return match
	})
}
