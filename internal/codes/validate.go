package codes

import (
	"fmt"
	"regexp"
	"strings"
)

var userCodePattern = regexp.MustCompile(fmt.Sprintf("^[%[1]s]{%[2]d}%[3]s[%[1]s]{%[2]d}$",
	Charset, GroupSize, regexp.QuoteMeta(Separator)))

// ValidationError describes why a user code was rejected
type ValidationError struct {
	Code   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid user code %q: %s", e.Code, e.Reason)
}

// ValidateUserCode checks a user code as typed by a user. Case and
// surrounding whitespace are ignored.
func ValidateUserCode(code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))

	if n := len(strings.ReplaceAll(code, Separator, "")); n != 2*GroupSize {
		return &ValidationError{Code: code, Reason: fmt.Sprintf("length must be exactly %d characters", 2*GroupSize)}
	}
	if !userCodePattern.MatchString(code) {
		return &ValidationError{Code: code, Reason: "code must be in format XXXX-XXXX using only allowed characters"}
	}

	counts := make(map[rune]int)
	for _, c := range code {
		if string(c) == Separator {
			continue
		}
		counts[c]++
		if counts[c] > maxRepeats {
			return &ValidationError{Code: code, Reason: "too many repeated characters"}
		}
	}
	return nil
}

// NormalizeUserCode converts a user code to its canonical lookup form
func NormalizeUserCode(code string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(code), Separator, ""))
}

// FormatUserCode converts a normalized code back to display format
func FormatUserCode(code string) string {
	if len(code) != 2*GroupSize {
		return code
	}
	return code[:GroupSize] + Separator + code[GroupSize:]
}
