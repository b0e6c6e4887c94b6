package config

import (
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
)

// ErrNoPassword is returned when the password is unset and prompting is
// not allowed.
var ErrNoPassword = errors.New("password not set: use the config file or " + EnvPrefix + "PASSWORD")

// PasswordPrompt asks the user for a secret.
type PasswordPrompt func(message string) (string, error)

// SurveyPrompt reads a password from the terminal without echo.
func SurveyPrompt(message string) (string, error) {
	var password string
	if err := survey.AskOne(&survey.Password{Message: message}, &password); err != nil {
		return "", err
	}
	return password, nil
}

// EnsurePassword fills an unset password from prompt. A nil prompt means
// non-interactive. Without a user there is no login and nothing to ask.
func (c *Config) EnsurePassword(prompt PasswordPrompt) error {
	if c.User == "" || c.Password != "" {
		return nil
	}
	if prompt == nil {
		return ErrNoPassword
	}
	password, err := prompt(fmt.Sprintf("Password for %s at %s:", c.User, c.BaseURL))
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	if password == "" {
		return ErrNoPassword
	}
	c.Password = password
	return nil
}
