package domain

import (
	"fmt"
	"strings"
)

// Recipient is one validated row of a dispatch roster. Immutable once
// produced; consumed exactly once by the dispatch engine.
type Recipient struct {
	Name       string
	RawNumber  string
	Identifier *string
}

func (r Recipient) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: recipient name is required", ErrValidation)
	}
	if strings.TrimSpace(r.RawNumber) == "" {
		return fmt.Errorf("%w: recipient number is required", ErrValidation)
	}
	if !PlausibleNumber(r.RawNumber) {
		return fmt.Errorf("%w: implausible number %q", ErrValidation, r.RawNumber)
	}
	return nil
}
