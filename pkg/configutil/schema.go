package configutil

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidSettings matches every *SettingsError.
var ErrInvalidSettings = errors.New("configutil: invalid settings")

// Schema lists the settings keys a provider understands.
type Schema struct {
	Required     []string
	Optional     []string
	AllowUnknown bool
}

// SettingsError names the provider block that failed and the offending keys.
type SettingsError struct {
	Scope    string
	Provider string
	Missing  []string
	Unknown  []string
}

func (e *SettingsError) Error() string {
	var b strings.Builder
	b.WriteString(e.Scope)
	if e.Provider != "" {
		fmt.Fprintf(&b, " (%s)", e.Provider)
	}
	b.WriteString(":")
	if len(e.Missing) > 0 {
		b.WriteString(" missing " + strings.Join(e.Missing, ", "))
	}
	if len(e.Unknown) > 0 {
		if len(e.Missing) > 0 {
			b.WriteString(";")
		}
		b.WriteString(" unknown " + strings.Join(e.Unknown, ", "))
	}
	return b.String()
}

func (e *SettingsError) Is(target error) bool { return target == ErrInvalidSettings }

// ValidateSettings checks the settings block of provider under scope (for
// example "vendors.llm"). Key matching ignores case, '_' and '-'. A required
// key holding nil, a blank string or an empty collection counts as missing.
func ValidateSettings(scope, provider string, input map[string]any, schema Schema) error {
	known := make(map[string]string, len(schema.Required)+len(schema.Optional))
	for _, k := range schema.Optional {
		known[normalizeKey(k)] = ""
	}
	present := make(map[string]bool, len(input))
	for k, v := range input {
		present[normalizeKey(k)] = !isEmptyValue(v)
	}

	serr := &SettingsError{Scope: scope, Provider: provider}
	for _, k := range schema.Required {
		nk := normalizeKey(k)
		known[nk] = k
		if !present[nk] {
			serr.Missing = append(serr.Missing, k)
		}
	}
	if !schema.AllowUnknown {
		for k := range input {
			if _, ok := known[normalizeKey(k)]; !ok {
				serr.Unknown = append(serr.Unknown, k)
			}
		}
	}
	if len(serr.Missing) == 0 && len(serr.Unknown) == 0 {
		return nil
	}
	sort.Strings(serr.Missing)
	sort.Strings(serr.Unknown)
	return serr
}

func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}
