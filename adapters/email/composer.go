package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/eurekapx/orderdesk/domain/order"
	"github.com/eurekapx/orderdesk/ports"
)

// Company holds the business details printed in emails.
type Company struct {
	Name         string
	Email        string // shown to customers
	AdminEmail   string // receives new order alerts; defaults to Email
	AirtelNumber string
	OrangeNumber string
}

// Composer implements ports.MessageComposer with html/template.
type Composer struct {
	company Company
	tmpl    *template.Template
}

// NewComposer parses the email templates for a company.
func NewComposer(company Company) (*Composer, error) {
	if company.Name == "" {
		return nil, errors.New("company name is required")
	}
	if company.AdminEmail == "" {
		company.AdminEmail = company.Email
	}

	tmpl, err := template.New("email").Funcs(template.FuncMap{
		"amount": order.FormatAmount,
		"date":   formatDate,
		"inc":    func(i int) int { return i + 1 },
	}).Parse(templates)
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &Composer{company: company, tmpl: tmpl}, nil
}

// messageData is the template input of every email.
type messageData struct {
	Company     Company
	Order       order.Order
	Installment int // zero based
	Amount      float64
	DueDate     time.Time
	Number      string // mobile money number for the order's method
}

func (c *Composer) data(o order.Order, installment int) (messageData, error) {
	if installment < 0 || installment >= len(o.Installments) {
		return messageData{}, fmt.Errorf("%w: %d", order.ErrInvalidInstallment, installment)
	}
	d := messageData{
		Company:     c.company,
		Order:       o,
		Installment: installment,
		Amount:      o.Installments[installment].Amount,
		DueDate:     o.DueDate(installment),
	}
	switch o.Method {
	case order.MethodAirtel:
		d.Number = c.company.AirtelNumber
	case order.MethodOrange:
		d.Number = c.company.OrangeNumber
	}
	return d, nil
}

// Invoice builds the pro-forma invoice with payment instructions for the first installment.
func (c *Composer) Invoice(o order.Order) (ports.EmailMessage, error) {
	d, err := c.data(o, 0)
	if err != nil {
		return ports.EmailMessage{}, err
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Bonjour %s,\n\n", o.Customer.FirstName)
	text.WriteString("Merci pour votre confiance ! Voici votre facture pro forma.\n\n")
	fmt.Fprintf(&text, "Plan: %s\n", o.Plan.Label())
	for i, inst := range o.Installments {
		fmt.Fprintf(&text, "Paiement %d: %s (échéance %s)\n", i+1, order.FormatAmount(inst.Amount, o.Currency), formatDate(o.DueDate(i)))
	}
	text.WriteString("\n")
	text.WriteString(c.instructionsText(d))
	fmt.Fprintf(&text, "Référence obligatoire: %s\n\n%s\n%s", o.Reference, c.company.Name, c.company.Email)

	return c.render("invoice", d, ports.EmailMessage{
		To:       o.Customer.Email,
		Subject:  "Facture Pro Forma N° " + o.Reference,
		TextBody: text.String(),
	})
}

// AdminAlert builds the new order notification for the operator.
func (c *Composer) AdminAlert(o order.Order) (ports.EmailMessage, error) {
	d, err := c.data(o, 0)
	if err != nil {
		return ports.EmailMessage{}, err
	}
	if c.company.AdminEmail == "" {
		return ports.EmailMessage{}, errors.New("no admin address configured")
	}

	text := fmt.Sprintf("Nouvelle commande %s\nClient: %s <%s>\nTéléphone: %s\nMéthode: %s\nMontant: %s\nPlan: %s\nDevise: %s\n",
		o.Reference, o.Customer.FullName(), o.Customer.Email, o.Customer.Phone,
		o.Method.Label(), order.FormatAmount(d.Amount, o.Currency), o.Plan.Label(), o.Currency.Code())

	return c.render("admin", d, ports.EmailMessage{
		To:       c.company.AdminEmail,
		Subject:  "🔔 NOUVELLE COMMANDE - " + o.Reference,
		TextBody: text,
	})
}

// Confirmation builds the payment receipt for an installment.
func (c *Composer) Confirmation(o order.Order, installment int) (ports.EmailMessage, error) {
	d, err := c.data(o, installment)
	if err != nil {
		return ports.EmailMessage{}, err
	}

	text := fmt.Sprintf("Paiement confirmé !\n\nMontant reçu: %s\n%s\n%s\n\nMerci de votre confiance !\n%s",
		order.FormatAmount(d.Amount, o.Currency), o.Method.Label(), o.Reference, c.company.Name)

	return c.render("confirmation", d, ports.EmailMessage{
		To:       o.Customer.Email,
		Subject:  "✅ Paiement confirmé - " + o.Reference,
		TextBody: text,
	})
}

// Reminder builds the notice sent two days before an installment is due.
func (c *Composer) Reminder(o order.Order, installment int) (ports.EmailMessage, error) {
	d, err := c.data(o, installment)
	if err != nil {
		return ports.EmailMessage{}, err
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Bonjour %s,\n\n", o.Customer.FirstName)
	fmt.Fprintf(&text, "Votre paiement %d de %s est attendu le %s.\n\n",
		installment+1, order.FormatAmount(d.Amount, o.Currency), formatDate(d.DueDate))
	text.WriteString(c.instructionsText(d))
	fmt.Fprintf(&text, "Référence: %s\n\n%s", o.Reference, c.company.Name)

	return c.render("reminder", d, ports.EmailMessage{
		To:       o.Customer.Email,
		Subject:  fmt.Sprintf("Rappel de paiement %d/%d - %s", installment+1, len(o.Installments), o.Reference),
		TextBody: text.String(),
	})
}

func (c *Composer) instructionsText(d messageData) string {
	if d.Number == "" {
		return "Virement Bancaire: les informations bancaires vous seront envoyées séparément.\n"
	}
	return fmt.Sprintf("%s\nNuméro: %s\nMontant: %s\n",
		d.Order.Method.Label(), d.Number, order.FormatAmount(d.Amount, d.Order.Currency))
}

func (c *Composer) render(name string, d messageData, msg ports.EmailMessage) (ports.EmailMessage, error) {
	var buf bytes.Buffer
	if err := c.tmpl.ExecuteTemplate(&buf, name, d); err != nil {
		return ports.EmailMessage{}, fmt.Errorf("execute %s template: %w", name, err)
	}
	msg.HTMLBody = buf.String()
	return msg, nil
}

func formatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// Ensure interface compliance.
var _ ports.MessageComposer = (*Composer)(nil)

const templates = `
{{define "footer"}}
<div style="text-align: center; color: #666; padding: 20px;">
  <p><strong>{{.Company.Name}}</strong></p>
  <p>Email: {{.Company.Email}}</p>
</div>
{{end}}

{{define "instructions"}}
{{if .Number}}
  <p><strong>{{.Order.Method.Label}}</strong></p>
  <p>Numéro: <strong>{{.Number}}</strong></p>
  <p>Montant: <strong>{{amount .Amount .Order.Currency}}</strong></p>
{{else}}
  <p><strong>{{.Order.Method.Label}}</strong></p>
  <p>Les informations bancaires vous seront envoyées séparément.</p>
{{end}}
{{end}}

{{define "invoice"}}
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background: #2563EB; color: white; padding: 30px; text-align: center;">
    <h1>FACTURE PRO FORMA</h1>
    <p>N° {{.Order.Reference}}</p>
    <p>En attente de vérification</p>
  </div>
  <div style="padding: 30px; background: #f9f9f9;">
    <h2>Bonjour {{.Order.Customer.FirstName}},</h2>
    <p>Merci pour votre confiance ! Voici votre facture pro forma.</p>
    <div style="background: white; padding: 20px; margin: 20px 0;">
      <h3>Informations Client</h3>
      <p><strong>Nom:</strong> {{.Order.Customer.FullName}}</p>
      <p><strong>Email:</strong> {{.Order.Customer.Email}}</p>
      <p><strong>Téléphone:</strong> {{.Order.Customer.Phone}}</p>
      {{with .Order.Customer.Company}}<p><strong>Entreprise:</strong> {{.}}</p>{{end}}
    </div>
    <div style="background: white; padding: 20px; margin: 20px 0;">
      <h3>{{.Order.Plan.Label}}</h3>
      <table>
      {{$o := .Order}}
      {{range $i, $inst := .Order.Installments}}
        <tr><td>Paiement {{inc $i}}</td><td>{{amount $inst.Amount $o.Currency}}</td><td>{{date ($o.DueDate $i)}}</td></tr>
      {{end}}
      </table>
    </div>
    <div style="background: white; padding: 20px; margin: 20px 0;">
      <h3>Instructions de Paiement</h3>
      {{template "instructions" .}}
      <p><strong>Référence obligatoire:</strong> {{.Order.Reference}}</p>
    </div>
    <p><strong>Important:</strong> Une fois le paiement effectué, vous recevrez automatiquement un reçu de confirmation.</p>
  </div>
  {{template "footer" .}}
</div>
{{end}}

{{define "admin"}}
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background: #2563EB; color: white; padding: 20px; text-align: center;">
    <h1>Nouvelle Commande Reçue!</h1>
  </div>
  <div style="padding: 20px; background: #f9f9f9;">
    <h2>Client: {{.Order.Customer.FullName}}</h2>
    <p><strong>Email:</strong> {{.Order.Customer.Email}}</p>
    <p><strong>Téléphone:</strong> {{.Order.Customer.Phone}}</p>
    {{with .Order.Customer.Company}}<p><strong>Entreprise:</strong> {{.}}</p>{{end}}
    <div style="background: #EA580C; color: white; padding: 20px; margin: 20px 0; text-align: center;">
      <h2>ACTION REQUISE</h2>
      <p><strong>Référence: {{.Order.Reference}}</strong></p>
      <p>Méthode: {{.Order.Method.Label}}</p>
      <p>Montant: {{amount .Amount .Order.Currency}}</p>
      <p>Vérifiez votre {{.Order.Method.Label}}</p>
    </div>
    <p><strong>Plan:</strong> {{.Order.Plan.Label}}</p>
    <p><strong>Devise:</strong> {{.Order.Currency.Code}}</p>
  </div>
</div>
{{end}}

{{define "confirmation"}}
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background: #10B981; color: white; padding: 30px; text-align: center;">
    <h1>PAIEMENT CONFIRMÉ !</h1>
    <p>Nous avons bien reçu votre paiement</p>
  </div>
  <div style="padding: 30px; background: #f9f9f9; text-align: center;">
    <h3>Montant reçu</h3>
    <p style="font-size: 2em; color: #10B981;"><strong>{{amount .Amount .Order.Currency}}</strong></p>
    <p>{{.Order.Method.Label}}</p>
    <p><strong>{{.Order.Reference}}</strong></p>
    <p>Rappels automatiques 2 jours avant chaque échéance.</p>
    <p>Merci de votre confiance !</p>
  </div>
  {{template "footer" .}}
</div>
{{end}}

{{define "reminder"}}
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background: #EA580C; color: white; padding: 30px; text-align: center;">
    <h1>RAPPEL DE PAIEMENT</h1>
    <p>N° {{.Order.Reference}}</p>
  </div>
  <div style="padding: 30px; background: #f9f9f9;">
    <h2>Bonjour {{.Order.Customer.FirstName}},</h2>
    <p>Votre paiement {{inc .Installment}} de <strong>{{amount .Amount .Order.Currency}}</strong> est attendu le <strong>{{date .DueDate}}</strong>.</p>
    {{template "instructions" .}}
    <p><strong>Référence:</strong> {{.Order.Reference}}</p>
  </div>
  {{template "footer" .}}
</div>
{{end}}
`
