package profile

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrEmptyName is returned for a blank profile name.
var ErrEmptyName = errors.New("profile name is empty")

// Profile names become directory names under BaseDir, so path separators
// and dots are never allowed.
var validName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ValidateName checks that name is usable as a profile directory.
func ValidateName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid profile name %q: use 1-64 lowercase letters, digits, '-' or '_', starting with a letter or digit", name)
	}
	return nil
}
