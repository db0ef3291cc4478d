package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a fixed-point currency amount. Amounts are never negative and are
// normalized to 2 decimal places, rounding half up. Every operation returns a
// new value; mixing currencies is an error, never a silent coercion.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// NewMoney builds a Money from an amount and an ISO currency code.
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	if currency == "" {
		return Money{}, ErrInvalidCurrency
	}
	if amount.IsNegative() {
		return Money{}, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	return Money{amount: amount.Round(2), currency: currency}, nil
}

// NewMoneyFromString parses a decimal string like "149.90".
func NewMoneyFromString(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return NewMoney(d, currency)
}

// Zero returns the zero amount in the given currency.
func Zero(currency string) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() string        { return m.currency }

func (m Money) IsZero() bool { return m.amount.IsZero() }

func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Add(other.amount).Round(2), currency: m.currency}, nil
}

// Subtract returns m minus other. A negative result is an error.
func (m Money) Subtract(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	result := m.amount.Sub(other.amount)
	if result.IsNegative() {
		return Money{}, fmt.Errorf("%w: %s - %s", ErrNegativeResult, m.amount, other.amount)
	}
	return Money{amount: result.Round(2), currency: m.currency}, nil
}

// Multiply scales the amount by a whole-number factor.
func (m Money) Multiply(factor int64) (Money, error) {
	return m.MultiplyDecimal(decimal.NewFromInt(factor))
}

// MultiplyDecimal scales the amount by an arbitrary decimal factor.
func (m Money) MultiplyDecimal(factor decimal.Decimal) (Money, error) {
	if factor.IsNegative() {
		return Money{}, fmt.Errorf("%w: factor %s", ErrInvalidAmount, factor)
	}
	return Money{amount: m.amount.Mul(factor).Round(2), currency: m.currency}, nil
}

func (m Money) GreaterThan(other Money) (bool, error) {
	if err := m.sameCurrency(other); err != nil {
		return false, err
	}
	return m.amount.GreaterThan(other.amount), nil
}

func (m Money) LessThan(other Money) (bool, error) {
	if err := m.sameCurrency(other); err != nil {
		return false, err
	}
	return m.amount.LessThan(other.amount), nil
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(2), m.currency)
}

func (m Money) sameCurrency(other Money) error {
	if m.currency != other.currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return nil
}
