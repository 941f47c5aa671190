package order

import "time"

// DefaultCDFRate is the USD to CDF rate used when none is configured.
const DefaultCDFRate = 2350

// ReminderLeadDays is how many days before a due date a reminder fires.
const ReminderLeadDays = 2

// Pricing carries the conversion rate used to bill CDF orders.
type Pricing struct {
	CDFRate float64
}

// DefaultPricing returns pricing with DefaultCDFRate.
func DefaultPricing() Pricing {
	return Pricing{CDFRate: DefaultCDFRate}
}

// Installments computes the schedule for a plan and currency.
func (p Pricing) Installments(plan Plan, currency Currency) []Installment {
	return ComputeInstallments(plan, currency, p.CDFRate)
}

type billedStep struct {
	usd       float64
	offsetDay int
}

// The day-30 checkpoint of the three month plan is informational and not billed.
var schedules = map[Plan][InstallmentCount]billedStep{
	PlanFourWeek:   {{200, 0}, {200, 14}, {200, 28}},
	PlanThreeMonth: {{200, 0}, {235, 60}, {235, 90}},
}

// ComputeInstallments returns the three installments of a plan in the target
// currency. CDF amounts are the USD base multiplied by rate, without rounding.
// This is a PURE function.
func ComputeInstallments(plan Plan, currency Currency, rate float64) []Installment {
	steps, ok := schedules[plan]
	if !ok {
		return nil
	}

	multiplier := 1.0
	if currency == CurrencyCDF {
		multiplier = rate
	}

	out := make([]Installment, 0, InstallmentCount)
	for _, s := range steps {
		out = append(out, Installment{
			Amount:        s.usd * multiplier,
			DueOffsetDays: s.offsetDay,
		})
	}
	return out
}

// Amounts returns only the amounts of ComputeInstallments.
// This is a PURE function.
func Amounts(plan Plan, currency Currency, rate float64) []float64 {
	insts := ComputeInstallments(plan, currency, rate)
	out := make([]float64, len(insts))
	for i, inst := range insts {
		out[i] = inst.Amount
	}
	return out
}

// ReminderInstants returns the two instants at which reminders for the second
// and third installments must fire, each ReminderLeadDays before the due date.
// This is a PURE function.
func ReminderInstants(plan Plan, createdAt time.Time) []time.Time {
	steps, ok := schedules[plan]
	if !ok {
		return nil
	}

	out := make([]time.Time, 0, InstallmentCount-1)
	for _, s := range steps[1:] {
		out = append(out, createdAt.Add(days(s.offsetDay-ReminderLeadDays)))
	}
	return out
}
