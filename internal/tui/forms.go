package tui

import (
	"errors"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
)

// ErrRequired is returned by required-field validators.
var ErrRequired = errors.New("this field is required")

// Validator checks a single field value.
type Validator func(string) error

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return ErrRequired
	}
	return nil
}

// chain runs validators in order and returns the first failure.
func chain(vs ...Validator) func(string) error {
	return func(s string) error {
		for _, v := range vs {
			if v == nil {
				continue
			}
			if err := v(s); err != nil {
				return err
			}
		}
		return nil
	}
}

// accessible reports whether prompts should use huh's screen-reader mode.
func accessible() bool {
	return os.Getenv("ACCESSIBLE") != ""
}

func run(fields ...huh.Field) error {
	return huh.NewForm(huh.NewGroup(fields...)).
		WithAccessible(accessible()).
		Run()
}

// ConfirmDangerous shows a confirmation prompt for irreversible actions.
func ConfirmDangerous(message string) (bool, error) {
	var result bool
	err := run(huh.NewConfirm().
		Title(message).
		Description("This action cannot be undone.").
		Affirmative("Yes, I'm sure").
		Negative("Cancel").
		Value(&result))
	if err != nil {
		return false, err
	}
	return result, nil
}

// TextArea shows a multiline input prompt for pasted text.
func TextArea(title, placeholder string, validate Validator) (string, error) {
	var result string
	err := run(huh.NewText().
		Title(title).
		Placeholder(placeholder).
		CharLimit(0).
		Value(&result).
		Validate(chain(required, validate)))
	return strings.TrimSpace(result), err
}

// Credentials prompts for a username or email and a password. A non-empty
// login is used as the initial value.
func Credentials(login string) (string, string, error) {
	password := ""
	err := run(
		huh.NewInput().
			Title("Username or email").
			Value(&login).
			Validate(required),
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&password).
			Validate(required),
	)
	return strings.TrimSpace(login), password, err
}

// Registration holds the values collected by RegistrationForm.
type Registration struct {
	Username string
	Email    string
	Password string
}

// RegistrationForm prompts for new-account details. Each validator runs
// as the user leaves its field; the password must be typed twice.
func RegistrationForm(reg Registration, username, email, password Validator) (Registration, error) {
	var confirm string
	err := run(
		huh.NewInput().
			Title("Username").
			Value(&reg.Username).
			Validate(chain(required, username)),
		huh.NewInput().
			Title("Email").
			Value(&reg.Email).
			Validate(chain(required, email)),
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&reg.Password).
			Validate(chain(required, password)),
		huh.NewInput().
			Title("Confirm password").
			EchoMode(huh.EchoModePassword).
			Value(&confirm).
			Validate(func(s string) error {
				if s != reg.Password {
					return errors.New("passwords do not match")
				}
				return nil
			}),
	)
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	return reg, err
}
