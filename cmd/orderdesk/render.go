package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/eurekapx/orderdesk/domain/order"
	"github.com/eurekapx/orderdesk/domain/outbox"
)

var (
	accent  = lipgloss.Color("#0EA5E9")
	dim     = lipgloss.Color("#6B7280")
	success = lipgloss.Color("#22C55E")
	danger  = lipgloss.Color("#EF4444")
	warning = lipgloss.Color("#F59E0B")
)

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 2)

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(dim)
	passStyle   = lipgloss.NewStyle().Foreground(success)
	failStyle   = lipgloss.NewStyle().Foreground(danger)
	warnStyle   = lipgloss.NewStyle().Foreground(warning)
)

const dateLayout = "02/01/2006"

func statusStyle(status string) lipgloss.Style {
	switch status {
	case string(order.StatusPaid), string(outbox.StatusDone), string(outbox.ReminderSent):
		return passStyle
	case string(outbox.StatusFailed): // same value as outbox.ReminderFailed
		return failStyle
	case string(outbox.StatusRetrying), string(order.StatusPendingVerification):
		return warnStyle
	default:
		return dimStyle
	}
}

// row lays out cells in fixed-width columns.
func row(widths []int, cells ...string) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = lipgloss.NewStyle().Width(widths[i]).Render(c)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

// renderOrderList renders one line per order.
func renderOrderList(orders []order.Order) string {
	widths := []int{18, 26, 16, 22, 16}
	var b strings.Builder
	b.WriteString(headerStyle.Render(row(widths, "REFERENCE", "CUSTOMER", "PLAN", "STATUS", "TOTAL")))
	b.WriteString("\n")
	for _, o := range orders {
		status := statusStyle(string(o.Status)).Render(string(o.Status))
		b.WriteString(row(widths,
			o.Reference,
			o.Customer.FullName(),
			o.Plan.Label(),
			status,
			order.FormatAmount(o.Total(), o.Currency),
		))
		b.WriteString("\n")
	}
	return b.String()
}

// renderOrder renders an order with its schedule, outbox tasks and reminders.
func renderOrder(o order.Order, tasks []outbox.Task, reminders []outbox.Reminder) string {
	var b strings.Builder

	head := []string{
		titleStyle.Render(o.Reference) + "  " + statusStyle(string(o.Status)).Render(string(o.Status)),
		o.Customer.FullName() + dimStyle.Render(" <"+o.Customer.Email+">"),
		dimStyle.Render(o.Customer.Phone),
	}
	if o.Customer.Company != "" {
		head = append(head, dimStyle.Render(o.Customer.Company))
	}
	head = append(head, "",
		fmt.Sprintf("%s via %s, total %s", o.Plan.Label(), o.Method.Label(), order.FormatAmount(o.Total(), o.Currency)),
	)
	b.WriteString(boxStyle.Render(strings.Join(head, "\n")))
	b.WriteString("\n\n")

	b.WriteString(renderInstallments(o))

	if len(reminders) > 0 {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("Reminders"))
		b.WriteString("\n")
		for _, r := range reminders {
			line := fmt.Sprintf("  #%d  %s  %s", r.Installment+1, r.FireAt.Format(dateLayout),
				statusStyle(string(r.Status)).Render(string(r.Status)))
			if r.Error != "" {
				line += dimStyle.Render("  " + r.Error)
			}
			b.WriteString(line + "\n")
		}
	}

	if len(tasks) > 0 {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("Outbox"))
		b.WriteString("\n")
		for _, t := range tasks {
			line := fmt.Sprintf("  %-20s %s  %d/%d", t.Kind,
				statusStyle(string(t.Status)).Render(string(t.Status)), t.Attempt, t.MaxAttempts)
			if t.Error != "" {
				line += dimStyle.Render("  " + t.Error)
			}
			b.WriteString(line + "\n")
		}
	}

	if len(o.Notes) > 0 {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("Notes"))
		b.WriteString("\n")
		for _, n := range o.Notes {
			b.WriteString(dimStyle.Render("  "+n.At.Format(time.RFC3339)) + "  " + n.Text + "\n")
		}
	}

	return b.String()
}

func renderInstallments(o order.Order) string {
	widths := []int{6, 16, 14, 24}
	var b strings.Builder
	b.WriteString(headerStyle.Render(row(widths, "#", "AMOUNT", "DUE", "PAID")))
	b.WriteString("\n")
	for i, inst := range o.Installments {
		paid := dimStyle.Render("-")
		if inst.PaidAt != nil {
			paid = passStyle.Render(inst.PaidAt.Format(dateLayout))
		}
		b.WriteString(row(widths,
			fmt.Sprintf("%d", i+1),
			order.FormatAmount(inst.Amount, o.Currency),
			o.DueDate(i).Format(dateLayout),
			paid,
		))
		b.WriteString("\n")
	}
	return b.String()
}

// renderSchedule previews the installments and reminder instants of a plan
// for an order placed at from.
func renderSchedule(plan order.Plan, currency order.Currency, pricing order.Pricing, from time.Time) string {
	o := order.Order{
		Plan:         plan,
		Currency:     currency,
		Installments: pricing.Installments(plan, currency),
		CreatedAt:    from,
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(plan.Label()))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  from %s, total %s", from.Format(dateLayout), order.FormatAmount(o.Total(), currency))))
	b.WriteString("\n\n")
	b.WriteString(renderInstallments(o))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Reminders"))
	b.WriteString("\n")
	for i, at := range order.ReminderInstants(plan, from) {
		b.WriteString(fmt.Sprintf("  #%d  %s\n", i+2, at.Format(dateLayout)))
	}
	return b.String()
}
