package core

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrValidation is the sentinel wrapped by every ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError lists every problem found in a form submission.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return e.Problems[0]
	}
	return "invalid input:\n  - " + strings.Join(e.Problems, "\n  - ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// MaxDeposit caps a single deposit.
const MaxDeposit = 1_000_000

// ParseAmount parses a money amount typed by the user.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, &ValidationError{Problems: []string{"amount is required"}}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ValidationError{Problems: []string{fmt.Sprintf("amount %q is not a number", s)}}
	}
	return v, nil
}

func amountProblems(amount float64) []string {
	var problems []string
	if amount <= 0 {
		problems = append(problems, "amount must be greater than zero")
	}
	if math.Abs(amount*100-math.Round(amount*100)) > 1e-6 {
		problems = append(problems, "amount must have at most two decimal places")
	}
	return problems
}

// ValidateDeposit checks a deposit amount.
func ValidateDeposit(amount float64) error {
	problems := amountProblems(amount)
	if amount > MaxDeposit {
		problems = append(problems, fmt.Sprintf("amount must not exceed %d", MaxDeposit))
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ValidateWithdraw checks a withdrawal request against the cached balance.
func ValidateWithdraw(amount, balance float64, address, password string) error {
	problems := amountProblems(amount)
	if amount > balance {
		problems = append(problems, fmt.Sprintf("amount %.2f exceeds available balance %.2f", amount, balance))
	}
	if strings.TrimSpace(address) == "" {
		problems = append(problems, "withdrawal address is required")
	}
	if password == "" {
		problems = append(problems, "withdrawal password is required")
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
