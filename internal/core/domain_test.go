package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalizeUsername(t *testing.T) {
	cases := []struct {
		in  string
		out string
	}{
		{"Ana", "ana"},
		{" ana ", "ana"},
		{"ANA", "ana"},
		{"ana", "ana"},
	}
	for _, tc := range cases {
		if got := NormalizeUsername(tc.in); got != tc.out {
			t.Fatalf("NormalizeUsername(%q) = %q, want %q", tc.in, got, tc.out)
		}
	}
}

func TestMovementValidate(t *testing.T) {
	valid := Movement{
		Type:          Income,
		Description:   "Salary",
		PaymentMethod: "cash",
		Amount:        decimal.NewFromInt(2000000),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid movement rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(m Movement) Movement
		field  string
	}{
		{"unknown type", func(m Movement) Movement { m.Type = "transfer"; return m }, "type"},
		{"empty type", func(m Movement) Movement { m.Type = ""; return m }, "type"},
		{"empty description", func(m Movement) Movement { m.Description = "  "; return m }, "description"},
		{"empty payment method", func(m Movement) Movement { m.PaymentMethod = ""; return m }, "payment_method"},
		{"zero amount", func(m Movement) Movement { m.Amount = decimal.Zero; return m }, "amount"},
		{"negative amount", func(m Movement) Movement { m.Amount = decimal.NewFromInt(-10); return m }, "amount"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.mutate(valid).Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			ve, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, ve.Field)
			}
		})
	}
}

func TestTotalsApply(t *testing.T) {
	totals := ZeroTotals()
	totals = totals.Apply(Movement{Type: Income, Amount: decimal.NewFromInt(2000000)})
	totals = totals.Apply(Movement{Type: Expense, Amount: decimal.NewFromInt(500000)})

	if !totals.TotalIncome.Equal(decimal.NewFromInt(2000000)) {
		t.Fatalf("total income = %s", totals.TotalIncome)
	}
	if !totals.TotalExpense.Equal(decimal.NewFromInt(500000)) {
		t.Fatalf("total expense = %s", totals.TotalExpense)
	}
	if !totals.Balance.Equal(decimal.NewFromInt(1500000)) {
		t.Fatalf("balance = %s", totals.Balance)
	}
	if !totals.Balance.Equal(totals.TotalIncome.Sub(totals.TotalExpense)) {
		t.Fatal("balance must equal income minus expense")
	}
}
