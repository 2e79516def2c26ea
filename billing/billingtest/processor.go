// Package billingtest provides an in-memory [billing.Processor] for tests.
package billingtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrEthical07/goAccount/billing"
)

// ErrInjected is returned by calls configured to fail.
var ErrInjected = errors.New("injected processor failure")

type notFound struct{ id string }

func (e notFound) Error() string        { return "no such object: " + e.id }
func (e notFound) Is(target error) bool { return target == billing.ErrNotFound }

// Processor records every call and keeps customers, items, invoices and
// intents in memory. Fail maps a method name to the error it returns.
type Processor struct {
	mu sync.Mutex

	// IntentStatus is the status of intents created by PayInvoice. Defaults
	// to succeeded.
	IntentStatus string
	// SkipPayments makes PayInvoice return an invoice without payments.
	SkipPayments bool
	// PayDelay blocks PayInvoice until it elapses or ctx ends.
	PayDelay time.Duration
	Fail     map[string]error

	Calls     []string
	Customers map[string]billing.CustomerDetails
	Defaults  map[string]string
	Methods   map[string]string
	Items     []billing.InvoiceItemParams
	Invoices  map[string]*billing.Invoice
	Intents   map[string]*billing.PaymentIntent
	Refunds   []billing.RefundParams

	seq int
}

// New returns an empty processor.
func New() *Processor {
	return &Processor{
		Fail:      map[string]error{},
		Customers: map[string]billing.CustomerDetails{},
		Defaults:  map[string]string{},
		Methods:   map[string]string{},
		Invoices:  map[string]*billing.Invoice{},
		Intents:   map[string]*billing.PaymentIntent{},
	}
}

// CallCount returns how often method was called.
func (p *Processor) CallCount(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.Calls {
		if c == method {
			n++
		}
	}
	return n
}

func (p *Processor) enter(method string) error {
	p.Calls = append(p.Calls, method)
	return p.Fail[method]
}

func (p *Processor) nextID(prefix string) string {
	p.seq++
	return fmt.Sprintf("%s_%d", prefix, p.seq)
}

func (p *Processor) CreateCustomer(_ context.Context, d billing.CustomerDetails) (*billing.Customer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("CreateCustomer"); err != nil {
		return nil, err
	}
	id := p.nextID("cus")
	p.Customers[id] = d
	return &billing.Customer{ID: id, Email: d.Email, Name: d.Name}, nil
}

func (p *Processor) UpdateCustomer(_ context.Context, id string, d billing.CustomerDetails) (*billing.Customer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("UpdateCustomer"); err != nil {
		return nil, err
	}
	cur, ok := p.Customers[id]
	if !ok {
		return nil, notFound{id}
	}
	if d.Email != "" {
		cur.Email = d.Email
	}
	cur.Name, cur.Phone, cur.Address = d.Name, d.Phone, d.Address
	p.Customers[id] = cur
	return &billing.Customer{ID: id, Email: cur.Email, Name: cur.Name}, nil
}

func (p *Processor) DeleteCustomer(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("DeleteCustomer"); err != nil {
		return err
	}
	if _, ok := p.Customers[id]; !ok {
		return notFound{id}
	}
	delete(p.Customers, id)
	return nil
}

func (p *Processor) SetDefaultPaymentMethod(_ context.Context, customerID, pmID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("SetDefaultPaymentMethod"); err != nil {
		return err
	}
	p.Defaults[customerID] = pmID
	return nil
}

func (p *Processor) AttachPaymentMethod(_ context.Context, pmID, customerID string) (*billing.PaymentMethod, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("AttachPaymentMethod"); err != nil {
		return nil, err
	}
	p.Methods[pmID] = customerID
	return &billing.PaymentMethod{ID: pmID, Type: "card", Brand: "visa", Last4: "4242", Customer: customerID}, nil
}

func (p *Processor) DetachPaymentMethod(_ context.Context, pmID string) (*billing.PaymentMethod, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("DetachPaymentMethod"); err != nil {
		return nil, err
	}
	if _, ok := p.Methods[pmID]; !ok {
		return nil, notFound{pmID}
	}
	delete(p.Methods, pmID)
	return &billing.PaymentMethod{ID: pmID, Type: "card"}, nil
}

func (p *Processor) ListPaymentMethods(_ context.Context, customerID string) ([]billing.PaymentMethod, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("ListPaymentMethods"); err != nil {
		return nil, err
	}
	var out []billing.PaymentMethod
	for id, owner := range p.Methods {
		if owner == customerID {
			out = append(out, billing.PaymentMethod{ID: id, Type: "card", Customer: owner})
		}
	}
	return out, nil
}

func (p *Processor) CreateInvoiceItem(_ context.Context, params billing.InvoiceItemParams) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("CreateInvoiceItem"); err != nil {
		return "", err
	}
	p.Items = append(p.Items, params)
	return p.nextID("ii"), nil
}

func (p *Processor) CreateInvoice(_ context.Context, params billing.InvoiceParams) (*billing.Invoice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("CreateInvoice"); err != nil {
		return nil, err
	}
	var due int64
	for _, it := range p.Items {
		if it.Customer == params.Customer {
			due += it.Amount
		}
	}
	inv := &billing.Invoice{
		ID:          p.nextID("in"),
		Customer:    params.Customer,
		Status:      "draft",
		Currency:    "usd",
		AmountDue:   due,
		Description: params.Description,
		Created:     time.Now(),
	}
	p.Invoices[inv.ID] = inv
	cp := *inv
	return &cp, nil
}

func (p *Processor) FinalizeInvoice(_ context.Context, id string) (*billing.Invoice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("FinalizeInvoice"); err != nil {
		return nil, err
	}
	inv, ok := p.Invoices[id]
	if !ok {
		return nil, notFound{id}
	}
	inv.Status = "open"
	inv.InvoicePDF = "https://files.example.test/" + id + ".pdf"
	cp := *inv
	return &cp, nil
}

func (p *Processor) PayInvoice(ctx context.Context, id string, params billing.PayParams) (*billing.Invoice, error) {
	if p.PayDelay > 0 {
		select {
		case <-time.After(p.PayDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("PayInvoice"); err != nil {
		return nil, err
	}
	inv, ok := p.Invoices[id]
	if !ok {
		return nil, notFound{id}
	}
	inv.Status = "paid"
	inv.AmountPaid = inv.AmountDue
	if !p.SkipPayments {
		status := p.IntentStatus
		if status == "" {
			status = "succeeded"
		}
		intent := &billing.PaymentIntent{
			ID:            p.nextID("pi"),
			Status:        status,
			Amount:        inv.AmountDue,
			Currency:      inv.Currency,
			Customer:      inv.Customer,
			PaymentMethod: params.PaymentMethod,
		}
		p.Intents[intent.ID] = intent
		inv.PaymentIntentIDs = []string{intent.ID}
	}
	cp := *inv
	return &cp, nil
}

func (p *Processor) GetInvoice(_ context.Context, id string) (*billing.Invoice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("GetInvoice"); err != nil {
		return nil, err
	}
	inv, ok := p.Invoices[id]
	if !ok {
		return nil, notFound{id}
	}
	cp := *inv
	return &cp, nil
}

func (p *Processor) ListInvoices(_ context.Context, params billing.ListParams) (*billing.InvoicePage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("ListInvoices"); err != nil {
		return nil, err
	}
	page := &billing.InvoicePage{}
	for _, inv := range p.Invoices {
		if inv.Customer != params.Customer {
			continue
		}
		if len(page.Invoices) == params.Limit {
			page.HasMore = true
			break
		}
		page.Invoices = append(page.Invoices, *inv)
	}
	return page, nil
}

func (p *Processor) CreatePaymentIntent(_ context.Context, params billing.PaymentIntentParams) (*billing.PaymentIntent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("CreatePaymentIntent"); err != nil {
		return nil, err
	}
	status := "requires_payment_method"
	if params.PaymentMethod != "" {
		status = "succeeded"
	}
	intent := &billing.PaymentIntent{
		ID:            p.nextID("pi"),
		Status:        status,
		Amount:        params.Amount,
		Currency:      params.Currency,
		Customer:      params.Customer,
		PaymentMethod: params.PaymentMethod,
	}
	intent.ClientSecret = intent.ID + "_secret"
	p.Intents[intent.ID] = intent
	cp := *intent
	return &cp, nil
}

func (p *Processor) GetPaymentIntent(_ context.Context, id string) (*billing.PaymentIntent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("GetPaymentIntent"); err != nil {
		return nil, err
	}
	intent, ok := p.Intents[id]
	if !ok {
		return nil, notFound{id}
	}
	cp := *intent
	return &cp, nil
}

func (p *Processor) CreateRefund(_ context.Context, params billing.RefundParams) (*billing.Refund, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("CreateRefund"); err != nil {
		return nil, err
	}
	intent, ok := p.Intents[params.PaymentIntent]
	if !ok {
		return nil, notFound{params.PaymentIntent}
	}
	amount := params.Amount
	if amount == 0 {
		amount = intent.Amount
	}
	p.Refunds = append(p.Refunds, params)
	return &billing.Refund{
		ID:            p.nextID("re"),
		Amount:        amount,
		Currency:      intent.Currency,
		Status:        "succeeded",
		PaymentIntent: intent.ID,
	}, nil
}

var _ billing.Processor = (*Processor)(nil)
