// Package email renders confirmation emails and hands them to the SMTP sender.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rai/storefront-triggers/modules/notifications/domain"
)

// OrderDateLayout is the en-US long date with a two-digit 12-hour clock.
const OrderDateLayout = "January 2, 2006 at 03:04 PM"

// StoreFront describes the shop named in the email.
type StoreFront struct {
	Name string
	// OrderURL is the base of the order tracking link; the order ID is appended.
	OrderURL string
}

// TemplateRenderer renders the fixed confirmation layout in en-US with USD amounts.
type TemplateRenderer struct {
	store    StoreFront
	location *time.Location
	now      func() time.Time
	printer  *message.Printer
	tmpl     *template.Template
}

func NewTemplateRenderer(store StoreFront, location *time.Location, now func() time.Time) *TemplateRenderer {
	if location == nil {
		location = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &TemplateRenderer{
		store:    store,
		location: location,
		now:      now,
		printer:  message.NewPrinter(language.AmericanEnglish),
		tmpl:     template.Must(template.New("confirmation").Parse(confirmationTemplate)),
	}
}

type lineView struct {
	Name      string
	Quantity  int64
	UnitPrice string
	LineTotal string
}

type confirmationView struct {
	StoreName    string
	OrderID      string
	OrderDate    string
	CustomerName string
	Phone        string
	Address      string
	Lines        []lineView
	GrandTotal   string
	OrderURL     string
	Year         int
}

// Render builds the subject and HTML body. The recipient is left empty.
func (r *TemplateRenderer) Render(c domain.Confirmation) (domain.Email, error) {
	c.ApplyDefaults()

	view := confirmationView{
		StoreName:    r.store.Name,
		OrderID:      c.OrderID,
		OrderDate:    c.PlacedAt.In(r.location).Format(OrderDateLayout),
		CustomerName: c.CustomerName,
		Phone:        c.Phone,
		Address:      c.Address,
		GrandTotal:   r.currency(c.Total),
		OrderURL:     strings.TrimRight(r.store.OrderURL, "/") + "/" + c.OrderID,
		Year:         r.now().In(r.location).Year(),
	}
	for _, line := range c.Lines {
		unit := "N/A"
		if line.UnitPrice.Valid && !line.UnitPrice.Decimal.IsZero() {
			unit = r.currency(line.UnitPrice.Decimal)
		}
		view.Lines = append(view.Lines, lineView{
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: unit,
			LineTotal: r.currency(line.LineTotal),
		})
	}

	var body bytes.Buffer
	if err := r.tmpl.Execute(&body, view); err != nil {
		return domain.Email{}, fmt.Errorf("rendering confirmation for order %s: %w", c.OrderID, err)
	}

	return domain.Email{
		Subject: fmt.Sprintf("Order Confirmation #%s from %s", c.ShortOrderID(), r.store.Name),
		HTML:    body.String(),
	}, nil
}

func (r *TemplateRenderer) currency(d decimal.Decimal) string {
	amount := d.Round(2)
	if amount.IsNegative() {
		return r.printer.Sprintf("-$%.2f", amount.Abs().InexactFloat64())
	}
	return r.printer.Sprintf("$%.2f", amount.InexactFloat64())
}

var _ domain.Renderer = (*TemplateRenderer)(nil)

const confirmationTemplate = `<div style="font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; line-height: 1.6; color: #333333; max-width: 600px; margin: 20px auto; border: 1px solid #e0e0e0; border-radius: 8px; overflow: hidden;">
  <div style="background-color: #4A90E2; color: white; padding: 25px 20px; text-align: center;">
    <h1 style="margin: 0; font-size: 26px; font-weight: 600;">Order Confirmation</h1>
  </div>
  <div style="padding: 25px 30px;">
    <p style="font-size: 16px;">Hello <strong>{{.CustomerName}}</strong>,</p>
    <p style="font-size: 16px;">Thank you for your order at <strong>{{.StoreName}}</strong>. We have received your order and it is now being processed.</p>
    <div style="background-color: #f9f9f9; padding: 15px; border-radius: 5px; margin: 20px 0;">
      <p style="margin: 5px 0;"><strong>Order ID:</strong> <span style="color: #4A90E2; font-weight: bold;">#{{.OrderID}}</span></p>
      <p style="margin: 5px 0;"><strong>Order Date:</strong> {{.OrderDate}}</p>
    </div>
    <h3 style="border-bottom: 2px solid #4A90E2; padding-bottom: 10px; color: #4A90E2;">Shipping Information:</h3>
    <div style="margin-bottom: 20px; padding: 10px; border: 1px dashed #ccc; border-radius: 4px;">
      <p style="margin: 3px 0;"><strong>Recipient:</strong> {{.CustomerName}}</p>
      <p style="margin: 3px 0;"><strong>Phone:</strong> {{.Phone}}</p>
      <p style="margin: 3px 0;"><strong>Address:</strong> {{.Address}}</p>
    </div>
    <h3 style="border-bottom: 2px solid #4A90E2; padding-bottom: 10px; color: #4A90E2;">Order Details:</h3>
    <table style="width: 100%; border-collapse: collapse; margin-bottom: 25px;">
      <thead>
        <tr style="background-color: #f0f8ff;">
          <th style="padding: 12px 8px; text-align: left;">Product</th>
          <th style="padding: 12px 8px; text-align: center;">Qty</th>
          <th style="padding: 12px 8px; text-align: right;">Unit Price</th>
          <th style="padding: 12px 8px; text-align: right;">Total</th>
        </tr>
      </thead>
      <tbody>
        {{- range .Lines}}
        <tr style="border-bottom: 1px solid #eee;">
          <td style="padding: 10px 5px; text-align: left;">{{.Name}}</td>
          <td style="padding: 10px 5px; text-align: center;">{{.Quantity}}</td>
          <td style="padding: 10px 5px; text-align: right;">{{.UnitPrice}}</td>
          <td style="padding: 10px 5px; text-align: right;">{{.LineTotal}}</td>
        </tr>
        {{- end}}
      </tbody>
    </table>
    <div style="text-align: right; margin-top: 25px; padding-top: 20px; border-top: 2px solid #eee;">
      <p style="font-size: 18px; font-weight: bold;">Grand Total: <span style="color: #D9534F;">{{.GrandTotal}}</span></p>
    </div>
    <p style="font-size: 16px;">We will notify you once your order has been shipped. You can track its status on your <a href="{{.OrderURL}}" style="color: #4A90E2;">order management page</a>.</p>
    <p style="font-size: 16px;">Sincerely,<br/>The <strong>{{.StoreName}}</strong> Team</p>
  </div>
  <div style="background-color: #f5f5f5; color: #888888; padding: 20px; text-align: center; font-size: 13px;">
    <p style="margin: 0;">&copy; {{.Year}} {{.StoreName}}. All rights reserved.</p>
  </div>
</div>
`
