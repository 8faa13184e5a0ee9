package account

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/recruitmate/recruitmate-cli/internal/models"
	"github.com/recruitmate/recruitmate-cli/internal/output"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	letterPattern   = regexp.MustCompile(`[A-Za-z]`)
	digitPattern    = regexp.MustCompile(`[0-9]`)
	specialPattern  = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// ValidEmail reports whether email looks like an address.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// PasswordProblems lists every rule password breaks.
func PasswordProblems(password string) []string {
	var problems []string
	if utf8.RuneCountInString(password) < MinPasswordLength {
		problems = append(problems, fmt.Sprintf("Password must be at least %d characters long", MinPasswordLength))
	}
	if !letterPattern.MatchString(password) {
		problems = append(problems, "Password must contain at least one letter")
	}
	if !digitPattern.MatchString(password) {
		problems = append(problems, "Password must contain at least one number")
	}
	if !specialPattern.MatchString(password) {
		problems = append(problems, "Password must contain at least one special character")
	}
	return problems
}

// UsernameProblems lists every rule username breaks.
func UsernameProblems(username string) []string {
	var problems []string
	n := utf8.RuneCountInString(username)
	if n < 3 {
		problems = append(problems, "Username must be at least 3 characters long")
	}
	if n > 30 {
		problems = append(problems, "Username must be less than 30 characters")
	}
	if !usernamePattern.MatchString(username) {
		problems = append(problems, "Username can only contain letters, numbers, underscores, and hyphens")
	}
	return problems
}

// validateRegistration checks every field and reports all problems together.
func validateRegistration(username, email, password string) error {
	fields := make(map[string][]string)
	if p := UsernameProblems(username); len(p) > 0 {
		fields["username"] = p
	}
	if !ValidEmail(email) {
		fields["email"] = []string{"Please enter a valid email address"}
	}
	if p := PasswordProblems(password); len(p) > 0 {
		fields["password"] = p
	}
	if len(fields) > 0 {
		return output.ErrValidationFields(fields)
	}
	return nil
}

func validateLogin(usernameOrEmail, password string) error {
	if strings.TrimSpace(usernameOrEmail) == "" {
		return output.ErrValidation("username_email", "Username or email is required")
	}
	if password == "" {
		return output.ErrValidation("password", "Password is required")
	}
	return nil
}

func validateProfileUpdate(u models.ProfileUpdate) error {
	if u.Empty() {
		return output.ErrUsageHint("Nothing to update", "Pass at least one of --username, --first-name, --last-name, --birth-date")
	}
	if u.Username != nil {
		if p := UsernameProblems(*u.Username); len(p) > 0 {
			return output.ErrValidationFields(map[string][]string{"username": p})
		}
	}
	if u.BirthDate != nil && *u.BirthDate != "" {
		if _, err := time.Parse(time.DateOnly, *u.BirthDate); err != nil {
			return output.ErrValidation("birth_date", "Birth date must be formatted as YYYY-MM-DD")
		}
	}
	return nil
}
