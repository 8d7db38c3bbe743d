package notification

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sort"
	"time"

	"github.com/sitepass/subscription-whitelist/internal/domain/invoice"
	"github.com/sitepass/subscription-whitelist/internal/domain/notification"
	"github.com/sitepass/subscription-whitelist/internal/domain/report"
	"github.com/sitepass/subscription-whitelist/internal/domain/subscription"
	"github.com/sitepass/subscription-whitelist/internal/domain/user"
)

//go:embed templates/*.html
var templateFS embed.FS

const dateLayout = "2006-01-02"

// Content renders email messages. It performs no I/O.
type Content struct {
	templates *template.Template
	currency  string
}

func NewContent(currency string) (*Content, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}
	return &Content{templates: tmpl, currency: currency}, nil
}

func (c *Content) render(name string, data any) (string, error) {
	var body bytes.Buffer
	if err := c.templates.ExecuteTemplate(&body, name, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return body.String(), nil
}

type welcomeData struct {
	Name           string
	Type           subscription.Type
	SubscriptionID int64
	Amount         string
	Currency       string
	NextBilling    string
	Expiry         string
}

func (c *Content) BuildWelcome(u user.User, sub subscription.Subscription) (notification.Message, error) {
	data := welcomeData{
		Name:           u.Name(),
		Type:           sub.Type,
		SubscriptionID: sub.ID,
		Amount:         sub.Amount.StringFixed(2),
		Currency:       c.currency,
		NextBilling:    sub.NextBillingDate.Format(dateLayout),
	}
	if sub.ExpiryDate != nil {
		data.Expiry = sub.ExpiryDate.Format(dateLayout)
	}

	html, err := c.render("welcome.html", data)
	if err != nil {
		return notification.Message{}, err
	}
	return notification.Message{To: u.Email, Subject: "Your subscription is active", HTML: html}, nil
}

type invoiceData struct {
	Name           string
	InvoiceNumber  string
	SubscriptionID int64
	Amount         string
	Currency       string
	IssuedAt       string
	PaymentLink    string
}

func (c *Content) BuildInvoice(u user.User, inv invoice.Invoice, paymentLink string) (notification.Message, error) {
	html, err := c.render("invoice.html", invoiceData{
		Name:           u.Name(),
		InvoiceNumber:  inv.InvoiceNumber,
		SubscriptionID: inv.SubscriptionID,
		Amount:         inv.Amount.StringFixed(2),
		Currency:       c.currency,
		IssuedAt:       inv.CreatedAt.Format(dateLayout),
		PaymentLink:    paymentLink,
	})
	if err != nil {
		return notification.Message{}, err
	}
	return notification.Message{
		To:      u.Email,
		Subject: fmt.Sprintf("Invoice %s", inv.InvoiceNumber),
		HTML:    html,
	}, nil
}

type paymentData struct {
	Name          string
	InvoiceNumber string
	Amount        string
	Currency      string
	PaidAt        string
	PaymentMethod string
	TransactionID string
}

func (c *Content) BuildPaymentConfirmation(u user.User, inv invoice.Invoice) (notification.Message, error) {
	data := paymentData{
		Name:          u.Name(),
		InvoiceNumber: inv.InvoiceNumber,
		Amount:        inv.Amount.StringFixed(2),
		Currency:      c.currency,
	}
	if inv.PaidAt != nil {
		data.PaidAt = inv.PaidAt.Format(time.RFC1123)
	}
	if inv.PaymentMethod != nil {
		data.PaymentMethod = *inv.PaymentMethod
	}
	if inv.TransactionID != nil {
		data.TransactionID = *inv.TransactionID
	}

	html, err := c.render("payment_confirmed.html", data)
	if err != nil {
		return notification.Message{}, err
	}
	return notification.Message{
		To:      u.Email,
		Subject: fmt.Sprintf("Payment received for %s", inv.InvoiceNumber),
		HTML:    html,
	}, nil
}

type countRow struct {
	Key   string
	Count int64
}

type housekeepingData struct {
	Date                   string
	CancelledSubscriptions int64
	ExpiredURLs            int64
	WhitelistEntries       int
	Subscriptions          []countRow
	Invoices               []countRow
	URLs                   []countRow
}

func sortedCounts(m map[string]int64) []countRow {
	rows := make([]countRow, 0, len(m))
	for k, v := range m {
		rows = append(rows, countRow{Key: k, Count: v})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return rows
}

func (c *Content) BuildHousekeepingReport(to string, s report.HousekeepingSummary) (notification.Message, error) {
	date := s.GeneratedAt.Format(dateLayout)
	html, err := c.render("housekeeping_report.html", housekeepingData{
		Date:                   date,
		CancelledSubscriptions: s.CancelledSubscriptions,
		ExpiredURLs:            s.ExpiredURLs,
		WhitelistEntries:       s.WhitelistEntries,
		Subscriptions:          sortedCounts(s.Subscriptions),
		Invoices:               sortedCounts(s.Invoices),
		URLs:                   sortedCounts(s.URLs),
	})
	if err != nil {
		return notification.Message{}, err
	}
	return notification.Message{To: to, Subject: "Daily housekeeping " + date, HTML: html}, nil
}
