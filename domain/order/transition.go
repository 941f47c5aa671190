package order

import (
	"fmt"
	"strings"
	"time"
)

// Submission is an order as received from the intake webhook, already
// decoded but not yet validated.
type Submission struct {
	Reference string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Company   string
	Plan      string
	Method    string
	Currency  string
}

// Validated is a submission whose enumerations have been parsed.
type Validated struct {
	Reference string
	Customer  Customer
	Plan      Plan
	Method    Method
	Currency  Currency
}

// Validate checks a submission and returns its typed form.
// Email and reference must be present; enumerations must be supported values.
// This is a PURE function.
func Validate(s Submission) (Validated, error) {
	var problems []string

	ref := strings.TrimSpace(s.Reference)
	email := strings.TrimSpace(s.Email)
	if email == "" {
		problems = append(problems, "email is required")
	}
	if ref == "" {
		problems = append(problems, "reference is required")
	}

	plan, err := ParsePlan(s.Plan)
	if err != nil {
		problems = append(problems, err.Error())
	}
	method, err := ParseMethod(s.Method)
	if err != nil {
		problems = append(problems, err.Error())
	}
	currency, err := ParseCurrency(s.Currency)
	if err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return Validated{}, &ValidationError{Problems: problems}
	}

	return Validated{
		Reference: ref,
		Customer: Customer{
			FirstName: strings.TrimSpace(s.FirstName),
			LastName:  strings.TrimSpace(s.LastName),
			Email:     email,
			Phone:     strings.TrimSpace(s.Phone),
			Company:   strings.TrimSpace(s.Company),
		},
		Plan:     plan,
		Method:   method,
		Currency: currency,
	}, nil
}

// New creates a pending order from a validated submission.
// This is a PURE function.
func New(v Validated, pricing Pricing, now time.Time) Order {
	o := Order{
		Reference:    v.Reference,
		Customer:     v.Customer,
		Plan:         v.Plan,
		Method:       v.Method,
		Currency:     v.Currency,
		Installments: pricing.Installments(v.Plan, v.Currency),
		Status:       StatusPendingVerification,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return AddNote(o, now, fmt.Sprintf("customer clicked paid at %s", now.UTC().Format(time.RFC3339)))
}

// Resubmit applies a repeated submission to an existing order. Customer, plan,
// method and currency are overwritten and the installments recomputed; status,
// creation time and any recorded payment are kept.
// This is a PURE function - returns a new Order.
func Resubmit(existing Order, v Validated, pricing Pricing, now time.Time) Order {
	o := existing
	o.Customer = v.Customer
	o.Plan = v.Plan
	o.Method = v.Method
	o.Currency = v.Currency

	fresh := pricing.Installments(v.Plan, v.Currency)
	for i := range fresh {
		if i < len(existing.Installments) && existing.Installments[i].PaidAt != nil {
			paidAt := *existing.Installments[i].PaidAt
			fresh[i].PaidAt = &paidAt
		}
	}
	o.Installments = fresh
	o.Notes = append([]Note(nil), existing.Notes...)
	o.UpdatedAt = now

	return AddNote(o, now, fmt.Sprintf("submission repeated at %s", now.UTC().Format(time.RFC3339)))
}

// MarkPaid settles an order on the given installment.
// Paid is terminal: a paid order is returned unchanged with ErrAlreadyPaid.
// This is a PURE function - returns a new Order.
func MarkPaid(o Order, installment int, now time.Time) (Order, error) {
	if o.IsPaid() {
		return o, ErrAlreadyPaid
	}
	if installment < 0 || installment >= len(o.Installments) {
		return o, fmt.Errorf("%w: %d", ErrInvalidInstallment, installment)
	}

	insts := make([]Installment, len(o.Installments))
	copy(insts, o.Installments)
	paidAt := now
	insts[installment].PaidAt = &paidAt

	o.Installments = insts
	o.Status = StatusPaid
	o.Notes = append([]Note(nil), o.Notes...)
	o.UpdatedAt = now

	return AddNote(o, now, fmt.Sprintf("installment %d marked paid at %s", installment+1, now.UTC().Format(time.RFC3339))), nil
}

// AddNote appends an audit note.
// This is a PURE function - returns a new Order.
func AddNote(o Order, at time.Time, text string) Order {
	notes := make([]Note, len(o.Notes), len(o.Notes)+1)
	copy(notes, o.Notes)
	o.Notes = append(notes, Note{At: at, Text: text})
	return o
}
