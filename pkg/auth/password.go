package auth

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	MinPasswordLen = 8
	MaxPasswordLen = 128
)

// Strength is the qualitative bucket shown next to the password field
type Strength string

const (
	StrengthWeak       Strength = "weak"
	StrengthMedium     Strength = "medium"
	StrengthStrong     Strength = "strong"
	StrengthVeryStrong Strength = "very-strong"
)

// ValidationResult holds the outcome of a full password policy evaluation.
// Valid is true iff Errors is empty; Strength is independent of validity,
// so a password can pass every hard rule and still only be "medium".
type ValidationResult struct {
	Valid    bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Strength Strength `json:"strength"`
}

const specialChars = "!@#$%^&*()_+-=[]{}|;':\",.<>/?`~\\"

// Sequences attackers try first; matched case-insensitively anywhere in
// the password.
var weakSequences = []string{"123", "abc", "qwe", "asd"}

// ValidatePassword evaluates every policy rule and collects all violations
// rather than stopping at the first one, so the UI can show the complete
// list to the user.
func ValidatePassword(password string) ValidationResult {
	errs := make([]string, 0)
	score := 0

	if len(password) < MinPasswordLen {
		errs = append(errs, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	} else {
		score++
	}
	if len(password) > MaxPasswordLen {
		errs = append(errs, fmt.Sprintf("must be at most %d characters", MaxPasswordLen))
	}
	if len(password) >= 12 {
		score += 2
	}

	hasUpper, hasLower, hasDigit, hasSpecial := scanCharacterClasses(password)

	if hasUpper {
		score++
	} else {
		errs = append(errs, "must contain at least one uppercase letter")
	}
	if hasLower {
		score++
	} else {
		errs = append(errs, "must contain at least one lowercase letter")
	}
	if hasDigit {
		score++
	} else {
		errs = append(errs, "must contain at least one digit")
	}
	if hasSpecial {
		score++
	} else {
		errs = append(errs, "must contain at least one special character")
	}

	if hasRepeatedRun(password) {
		errs = append(errs, "must not contain 3 or more repeated characters in a row")
		score--
	}
	if containsWeakSequence(password) {
		errs = append(errs, "must not contain common sequences like '123' or 'abc'")
		score--
	}

	return ValidationResult{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Strength: bucketStrength(score),
	}
}

// CalculatePasswordStrength produces a continuous 0-100 score for UI
// strength meters. It is deliberately a separate heuristic from the
// bucketed strength in ValidatePassword; both move in the same direction
// but their numeric scales differ.
func CalculatePasswordStrength(password string) int {
	score := 0

	if len(password) >= MinPasswordLen {
		score += 25
	}
	if len(password) >= 12 {
		score += 10
	}
	if len(password) >= 16 {
		score += 5
	}

	hasUpper, hasLower, hasDigit, hasSpecial := scanCharacterClasses(password)
	if hasUpper {
		score += 10
	}
	if hasLower {
		score += 10
	}
	if hasDigit {
		score += 10
	}
	if hasSpecial {
		score += 10
	}

	// Character-set diversity: distinct runes reward passwords that are
	// not built from a handful of repeated symbols.
	unique := uniqueRuneCount(password)
	if unique >= 8 {
		score += 10
	}
	if unique >= 12 {
		score += 10
	}

	if hasRepeatedRun(password) {
		score -= 20
	}
	if containsWeakSequence(password) {
		score -= 20
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// IsPasswordSecure is the minimal bar used where special characters are
// not enforced: length, upper, lower, digit. Every password accepted by
// ValidatePassword also passes this check.
func IsPasswordSecure(password string) bool {
	if len(password) < MinPasswordLen {
		return false
	}
	hasUpper, hasLower, hasDigit, _ := scanCharacterClasses(password)
	return hasUpper && hasLower && hasDigit
}

func bucketStrength(score int) Strength {
	switch {
	case score < 3:
		return StrengthWeak
	case score <= 4:
		return StrengthMedium
	case score <= 6:
		return StrengthStrong
	default:
		return StrengthVeryStrong
	}
}

func scanCharacterClasses(password string) (hasUpper, hasLower, hasDigit, hasSpecial bool) {
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(specialChars, r):
			hasSpecial = true
		}
	}
	return
}

// hasRepeatedRun reports whether the password contains the same rune 3 or
// more times in a row.
func hasRepeatedRun(password string) bool {
	runes := []rune(password)
	run := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			run++
			if run >= 3 {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

func containsWeakSequence(password string) bool {
	lower := strings.ToLower(password)
	for _, seq := range weakSequences {
		if strings.Contains(lower, seq) {
			return true
		}
	}
	return false
}

func uniqueRuneCount(s string) int {
	seen := make(map[rune]struct{}, len(s))
	for _, r := range s {
		seen[r] = struct{}{}
	}
	return len(seen)
}
