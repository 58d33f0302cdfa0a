// Package e keeps error wrapping uniform across the codebase.
package e

import "fmt"

func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}

// WrapIfErr wraps err only when it is non-nil, so it can be used in
// deferred returns.
func WrapIfErr(msg string, err error) error {
	if err == nil {
		return nil
	}
	return Wrap(msg, err)
}
