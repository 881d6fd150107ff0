package security

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mabar/mabar-backend/pkg/config"
	"github.com/nbutton23/zxcvbn-go"
)

// SpecialCharacters is the set that satisfies the special character class.
const SpecialCharacters = `!@#$%^&*()_+-=[]{}|;':",./<>?`

// ErrWeakPassword is matched by every *PolicyError.
var ErrWeakPassword = errors.New("password does not satisfy policy")

// Violation identifies which policy rule a password failed.
type Violation string

const (
	ViolationTooShort       Violation = "too_short"
	ViolationTooLong        Violation = "too_long"
	ViolationMissingUpper   Violation = "missing_uppercase"
	ViolationMissingLower   Violation = "missing_lowercase"
	ViolationMissingDigit   Violation = "missing_digit"
	ViolationMissingSpecial Violation = "missing_special"
	ViolationTooGuessable   Violation = "too_guessable"
)

// PolicyError carries the failed rule and the bounds it was checked against.
type PolicyError struct {
	Violation Violation
	MinLength int
	MaxLength int
	Score     int
	MinScore  int
}

func (e *PolicyError) Error() string {
	switch e.Violation {
	case ViolationTooShort:
		return fmt.Sprintf("password shorter than %d characters", e.MinLength)
	case ViolationTooLong:
		return fmt.Sprintf("password longer than %d characters", e.MaxLength)
	case ViolationTooGuessable:
		return fmt.Sprintf("password strength score %d below %d", e.Score, e.MinScore)
	}
	return fmt.Sprintf("password violation: %s", e.Violation)
}

func (e *PolicyError) Is(target error) bool {
	return target == ErrWeakPassword
}

// Policy describes strength requirements and the argon2id cost used for hashing.
type Policy struct {
	Name             string
	MinLength        int
	MaxLength        int
	RequireUpper     bool
	RequireLower     bool
	RequireDigit     bool
	RequireSpecial   bool
	MinStrengthScore int
	// HistoryLength is accepted for configuration parity and is not enforced.
	HistoryLength int
	Argon         ArgonParams
}

// ProductionPolicy is the strict profile.
func ProductionPolicy() Policy {
	return Policy{
		Name:             config.AppEnvProd,
		MinLength:        12,
		MaxLength:        128,
		RequireUpper:     true,
		RequireLower:     true,
		RequireDigit:     true,
		RequireSpecial:   true,
		MinStrengthScore: 3,
		HistoryLength:    12,
		Argon: ArgonParams{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 4,
			SaltLen:     16,
			KeyLen:      32,
		},
	}
}

// DevelopmentPolicy keeps every character class but lowers length and cost.
func DevelopmentPolicy() Policy {
	return Policy{
		Name:             config.AppEnvDev,
		MinLength:        8,
		MaxLength:        128,
		RequireUpper:     true,
		RequireLower:     true,
		RequireDigit:     true,
		RequireSpecial:   true,
		MinStrengthScore: 1,
		Argon: ArgonParams{
			Memory:      4 * 1024,
			Time:        2,
			Parallelism: 2,
			SaltLen:     16,
			KeyLen:      32,
		},
	}
}

// PolicyFromConfig resolves the profile once at startup.
func PolicyFromConfig(app config.AppConfig, cfg config.PasswordConfig) Policy {
	if cfg.ResolvedProfile(app) == config.AppEnvProd {
		return ProductionPolicy()
	}
	return DevelopmentPolicy()
}

// ValidateStrength returns a *PolicyError for the first rule the password breaks.
func (p Policy) ValidateStrength(password string) error {
	length := utf8.RuneCountInString(password)
	if length < p.MinLength || length == 0 {
		return &PolicyError{Violation: ViolationTooShort, MinLength: p.MinLength, MaxLength: p.MaxLength}
	}
	if p.MaxLength > 0 && length > p.MaxLength {
		return &PolicyError{Violation: ViolationTooLong, MinLength: p.MinLength, MaxLength: p.MaxLength}
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(SpecialCharacters, r):
			hasSpecial = true
		}
	}
	switch {
	case p.RequireUpper && !hasUpper:
		return &PolicyError{Violation: ViolationMissingUpper}
	case p.RequireLower && !hasLower:
		return &PolicyError{Violation: ViolationMissingLower}
	case p.RequireDigit && !hasDigit:
		return &PolicyError{Violation: ViolationMissingDigit}
	case p.RequireSpecial && !hasSpecial:
		return &PolicyError{Violation: ViolationMissingSpecial}
	}

	// Scores of 0 and 1 are both "too guessable" to zxcvbn; the estimator only
	// gates when the profile asks for more than that.
	if p.MinStrengthScore > 1 {
		score := StrengthScore(password)
		if score < p.MinStrengthScore {
			return &PolicyError{Violation: ViolationTooGuessable, Score: score, MinScore: p.MinStrengthScore}
		}
	}
	return nil
}

// StrengthScore returns the zxcvbn 0-4 estimate for password.
func StrengthScore(password string) int {
	return zxcvbn.PasswordStrength(password, nil).Score
}

func (p Policy) requiredClasses() []string {
	classes := make([]string, 0, 4)
	if p.RequireUpper {
		classes = append(classes, upperAlphabet)
	}
	if p.RequireLower {
		classes = append(classes, lowerAlphabet)
	}
	if p.RequireDigit {
		classes = append(classes, digitAlphabet)
	}
	if p.RequireSpecial {
		classes = append(classes, generatorSpecials)
	}
	return classes
}
