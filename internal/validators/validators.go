// Package validators implements the syntactic field checks named in the
// system overview's "Validators" row: DTMF digit strings, phone numbers,
// extensions, URLs, date/times, and required-field presence. No example
// repository in the reference corpus implements field-syntax validation as
// its own component (see DESIGN.md), so these are built directly on
// regexp/net/url/time/strconv rather than a third-party validation library.
package validators

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var (
	dtmfPattern      = regexp.MustCompile(`^[0-9*#]+$`)
	phonePattern     = regexp.MustCompile(`^\+?[0-9][0-9\-. ]{5,19}$`)
	extensionPattern = regexp.MustCompile(`^[0-9]{2,6}$`)
)

// DTMF reports whether s is a non-empty string of valid DTMF digits
// (0-9, *, #).
func DTMF(s string) error {
	if s == "" {
		return fmt.Errorf("dtmf: empty input")
	}
	if !dtmfPattern.MatchString(s) {
		return fmt.Errorf("dtmf: %q contains non-DTMF characters", s)
	}
	return nil
}

// Phone reports whether s is a plausible phone number: an optional leading
// '+', then 6-20 digits/separators.
func Phone(s string) error {
	if !phonePattern.MatchString(s) {
		return fmt.Errorf("phone: %q is not a plausible phone number", s)
	}
	return nil
}

// Extension reports whether s is a plausible internal extension: 2-6
// digits, no separators.
func Extension(s string) error {
	if !extensionPattern.MatchString(s) {
		return fmt.Errorf("extension: %q must be 2-6 digits", s)
	}
	return nil
}

// URL reports whether s parses as an absolute URL with a scheme and host.
func URL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("url: %q: %w", s, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("url: %q is missing a scheme or host", s)
	}
	return nil
}

// DateTime accepts either RFC3339 timestamps or a bare "HH:MM" daily
// schedule time, matching the two shapes GeneralSettings and node schedule
// fields use in practice.
func DateTime(s string) error {
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return nil
	}
	if _, err := time.Parse("15:04", s); err == nil {
		return nil
	}
	return fmt.Errorf("datetime: %q is neither RFC3339 nor HH:MM", s)
}

// Required reports an error for each name in required whose value in fields
// is missing or blank.
func Required(fields map[string]string, required ...string) error {
	var missing []string
	for _, name := range required {
		if strings.TrimSpace(fields[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required: missing field(s): %s", strings.Join(missing, ", "))
	}
	return nil
}
