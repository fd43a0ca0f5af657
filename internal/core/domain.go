package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  MovementType = "income"
	Expense MovementType = "expense"
)

type (
	MovementType string

	// User is an account record. Users are created at registration and
	// never updated or deleted.
	User struct {
		ID           int64
		Username     string
		PasswordHash string
		CreatedAt    time.Time
	}

	// Movement is a single ledger entry owned by one user. UserID and
	// CreatedAt are fixed at creation; edits may only touch Type,
	// Description, PaymentMethod and Amount.
	Movement struct {
		ID            int64
		UserID        int64
		Type          MovementType
		Description   string
		PaymentMethod string
		Amount        decimal.Decimal
		CreatedAt     time.Time
		Version       int64
	}

	// Totals aggregates a user's ledger. Balance is always
	// TotalIncome minus TotalExpense, computed with exact decimals.
	Totals struct {
		Balance      decimal.Decimal
		TotalIncome  decimal.Decimal
		TotalExpense decimal.Decimal
	}

	// Session links a cookie-borne opaque token to an authenticated user.
	Session struct {
		Token        string
		UserID       int64
		ExpiresAt    time.Time
		LastActivity time.Time
	}
)

var (
	ErrDuplicateUser      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrMovementNotFound covers both a nonexistent id and an id owned by
	// another user; callers must not be able to tell the two apart.
	ErrMovementNotFound = errors.New("movement not found")
	ErrSessionNotFound  = errors.New("session not found or expired")
)

// ValidationError reports a rejected field. The request persists nothing;
// the caller re-renders the form with Message inline.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func (t MovementType) Valid() bool {
	return t == Income || t == Expense
}

// NormalizeUsername trims surrounding whitespace and lowercases, so that
// "Ana" and " ana " identify the same account.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// ZeroTotals returns totals with all three sums at zero, never null.
func ZeroTotals() Totals {
	return Totals{
		Balance:      decimal.Zero,
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
	}
}

// Apply folds a movement into the running totals.
func (t Totals) Apply(m Movement) Totals {
	switch m.Type {
	case Income:
		t.TotalIncome = t.TotalIncome.Add(m.Amount)
		t.Balance = t.Balance.Add(m.Amount)
	case Expense:
		t.TotalExpense = t.TotalExpense.Add(m.Amount)
		t.Balance = t.Balance.Sub(m.Amount)
	}
	return t
}

func (m Movement) Validate() error {
	if !m.Type.Valid() {
		return &ValidationError{Field: "type", Message: "must be income or expense"}
	}
	if strings.TrimSpace(m.Description) == "" {
		return &ValidationError{Field: "description", Message: "cannot be empty"}
	}
	if len(m.Description) > 200 {
		return &ValidationError{Field: "description", Message: "too long (max 200 characters)"}
	}
	if strings.TrimSpace(m.PaymentMethod) == "" {
		return &ValidationError{Field: "payment_method", Message: "cannot be empty"}
	}
	if !m.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "must be positive"}
	}
	return nil
}
