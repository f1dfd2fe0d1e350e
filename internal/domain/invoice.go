package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceState mirrors the accounting host document states used here.
type InvoiceState string

const (
	InvoiceStateDraft  InvoiceState = "draft"
	InvoiceStatePosted InvoiceState = "posted"
)

// Invoice is a customer invoice issued for one intervention.
type Invoice struct {
	ID        string
	Number    string
	ClientID  string
	TicketID  string
	Origin    string
	Date      time.Time
	State     InvoiceState
	Lines     []InvoiceLine
	Total     decimal.Decimal
	CreatedAt time.Time
}

// InvoiceLine is either the labor line or one consumed part.
type InvoiceLine struct {
	ID         string
	InvoiceID  string
	ProductID  *string
	PartLineID *string
	Name       string
	Quantity   float64
	UnitPrice  decimal.Decimal
	Account    string
	Subtotal   decimal.Decimal
}

// NewInvoiceLine builds a line with its subtotal computed.
func NewInvoiceLine(name string, productID *string, qty float64, unitPrice decimal.Decimal, account string) InvoiceLine {
	return InvoiceLine{
		ProductID: productID,
		Name:      name,
		Quantity:  qty,
		UnitPrice: unitPrice,
		Account:   account,
		Subtotal:  decimal.NewFromFloat(qty).Mul(unitPrice).Round(MoneyPlaces),
	}
}

// SumLines totals the invoice lines.
func (i *Invoice) SumLines() decimal.Decimal {
	total := decimal.Zero
	for _, l := range i.Lines {
		total = total.Add(l.Subtotal)
	}
	return total
}
