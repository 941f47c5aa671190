// Package order provides the installment order value types and the pure
// functions that derive payment schedules and status transitions.
// All types are immutable values; all functions are pure.
package order

import (
	"fmt"
	"time"
)

// Plan is an installment cadence.
type Plan string

const (
	PlanFourWeek   Plan = "4weeks"  // three payments over four weeks
	PlanThreeMonth Plan = "3months" // three payments over three months
)

// Method is the channel the customer pays through.
type Method string

const (
	MethodAirtel Method = "airtel"
	MethodOrange Method = "orange"
	MethodBank   Method = "bank"
)

// Currency is the billing currency of an order.
type Currency string

const (
	CurrencyUSD Currency = "usd"
	CurrencyCDF Currency = "cdf"
)

// Status represents the settlement state of an order.
type Status string

const (
	StatusPendingVerification Status = "pending_verification"
	StatusPaid                Status = "paid"
)

// InstallmentCount is the number of installments every order carries.
const InstallmentCount = 3

// Customer holds the contact details captured at intake.
type Customer struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Company   string // optional
}

// FullName returns "First Last".
func (c Customer) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Installment is one scheduled partial payment.
type Installment struct {
	Amount        float64
	DueOffsetDays int
	PaidAt        *time.Time
}

// IsPaid reports whether the installment has been settled.
func (i Installment) IsPaid() bool {
	return i.PaidAt != nil
}

// Note is an audit trail entry.
type Note struct {
	At   time.Time
	Text string
}

// Order is a recorded installment order (value type).
type Order struct {
	Reference    string
	Customer     Customer
	Plan         Plan
	Method       Method
	Currency     Currency
	Installments []Installment
	Status       Status
	Notes        []Note
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsPaid returns true once the order reached its terminal status.
func (o Order) IsPaid() bool {
	return o.Status == StatusPaid
}

// Total returns the sum of all installment amounts.
func (o Order) Total() float64 {
	var total float64
	for _, inst := range o.Installments {
		total += inst.Amount
	}
	return total
}

// DueDate returns the due date of installment i.
func (o Order) DueDate(i int) time.Time {
	return o.CreatedAt.Add(days(o.Installments[i].DueOffsetDays))
}

// Label returns the human label of a plan as shown to customers.
func (p Plan) Label() string {
	switch p {
	case PlanFourWeek:
		return "3x 4 semaines"
	case PlanThreeMonth:
		return "3x 3 mois"
	default:
		return string(p)
	}
}

// Label returns the display name of a payment method.
func (m Method) Label() string {
	switch m {
	case MethodAirtel:
		return "Airtel Money"
	case MethodOrange:
		return "Orange Money"
	case MethodBank:
		return "Virement Bancaire"
	default:
		return string(m)
	}
}

// Code returns the upper-case currency code ("USD", "CDF").
func (c Currency) Code() string {
	switch c {
	case CurrencyUSD:
		return "USD"
	case CurrencyCDF:
		return "CDF"
	default:
		return string(c)
	}
}

// ParsePlan validates a plan value.
func ParsePlan(s string) (Plan, error) {
	switch p := Plan(s); p {
	case PlanFourWeek, PlanThreeMonth:
		return p, nil
	}
	return "", fmt.Errorf("unsupported payment plan %q", s)
}

// ParseMethod validates a payment method value.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodAirtel, MethodOrange, MethodBank:
		return m, nil
	}
	return "", fmt.Errorf("unsupported payment method %q", s)
}

// ParseCurrency validates a currency value.
func ParseCurrency(s string) (Currency, error) {
	switch c := Currency(s); c {
	case CurrencyUSD, CurrencyCDF:
		return c, nil
	}
	return "", fmt.Errorf("unsupported currency %q", s)
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
