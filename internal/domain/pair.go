// Package domain defines core data structures used throughout the balance tracker.
package domain

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// CurrencyPair cryptocurrency trading pair.
type CurrencyPair struct {
	// Base base currency code.
	Base string
	// Quote quote currency code.
	Quote string
}

// NewCurrencyPair builds a pair from upper-cased currency codes.
func NewCurrencyPair(base, quote string) CurrencyPair {
	return CurrencyPair{Base: strings.ToUpper(base), Quote: strings.ToUpper(quote)}
}

// ParseCurrencyPair parses the BASE_QUOTE representation.
func ParseCurrencyPair(s string) (CurrencyPair, error) {
	elements := strings.Split(s, "_")
	if len(elements) != 2 || elements[0] == "" || elements[1] == "" {
		return CurrencyPair{}, errors.Errorf("invalid currency pair %q, expected BASE_QUOTE", s)
	}
	return NewCurrencyPair(elements[0], elements[1]), nil
}

// String returns the string representation.
func (p CurrencyPair) String() string {
	return fmt.Sprintf("%s_%s", p.Base, p.Quote)
}

// Symbol returns the concatenated symbol representation.
func (p CurrencyPair) Symbol() string {
	return fmt.Sprintf("%s%s", p.Base, p.Quote)
}

// Contains reports whether the currency is one of the pair's sides.
func (p CurrencyPair) Contains(currencyCode string) bool {
	return p.Base == currencyCode || p.Quote == currencyCode
}

// MarshalText implements encoding.TextMarshaler.
func (p CurrencyPair) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *CurrencyPair) UnmarshalText(text []byte) error {
	parsed, err := ParseCurrencyPair(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
