package stripe

import (
	"context"
	"strconv"
	"time"

	stripeapi "github.com/stripe/stripe-go/v76"

	"github.com/MrEthical07/goAccount/billing"
)

func toCustomer(c *stripeapi.Customer) *billing.Customer {
	out := &billing.Customer{
		ID:      c.ID,
		Email:   c.Email,
		Name:    c.Name,
		Deleted: c.Deleted,
	}
	if c.InvoiceSettings != nil && c.InvoiceSettings.DefaultPaymentMethod != nil {
		out.DefaultPaymentMethod = c.InvoiceSettings.DefaultPaymentMethod.ID
	}
	return out
}

func toPaymentMethod(m *stripeapi.PaymentMethod) billing.PaymentMethod {
	pm := billing.PaymentMethod{
		ID:      m.ID,
		Type:    string(m.Type),
		Created: time.Unix(m.Created, 0).UTC(),
	}
	if m.Customer != nil {
		pm.Customer = m.Customer.ID
	}
	if m.Card != nil {
		pm.Brand, pm.Last4 = string(m.Card.Brand), m.Card.Last4
		pm.ExpMonth, pm.ExpYear = int(m.Card.ExpMonth), int(m.Card.ExpYear)
	}
	return pm
}

func toInvoice(i *stripeapi.Invoice) *billing.Invoice {
	inv := &billing.Invoice{
		ID:               i.ID,
		Status:           string(i.Status),
		Currency:         string(i.Currency),
		AmountDue:        i.AmountDue,
		AmountPaid:       i.AmountPaid,
		HostedInvoiceURL: i.HostedInvoiceURL,
		InvoicePDF:       i.InvoicePDF,
		Description:      i.Description,
		Created:          time.Unix(i.Created, 0).UTC(),
	}
	if i.Customer != nil {
		inv.Customer = i.Customer.ID
	}
	if i.PaymentIntent != nil && i.PaymentIntent.ID != "" {
		inv.PaymentIntentIDs = []string{i.PaymentIntent.ID}
	}
	return inv
}

func toPaymentIntent(pi *stripeapi.PaymentIntent) *billing.PaymentIntent {
	out := &billing.PaymentIntent{
		ID:           pi.ID,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		ClientSecret: pi.ClientSecret,
	}
	if pi.Customer != nil {
		out.Customer = pi.Customer.ID
	}
	if pi.PaymentMethod != nil {
		out.PaymentMethod = pi.PaymentMethod.ID
	}
	return out
}

func customerParams(ctx context.Context, d billing.CustomerDetails) *stripeapi.CustomerParams {
	p := &stripeapi.CustomerParams{
		Params: params(ctx, true),
		Name:   stripeapi.String(d.Name),
		Phone:  stripeapi.String(d.Phone),
	}
	if d.Email != "" {
		p.Email = stripeapi.String(d.Email)
	}
	if !d.Address.IsZero() {
		p.Address = &stripeapi.AddressParams{
			Line1:      stripeapi.String(d.Address.Line1),
			Line2:      stripeapi.String(d.Address.Line2),
			City:       stripeapi.String(d.Address.City),
			State:      stripeapi.String(d.Address.State),
			PostalCode: stripeapi.String(d.Address.PostalCode),
			Country:    stripeapi.String(d.Address.Country),
		}
	}
	return p
}

func (c *Client) CreateCustomer(ctx context.Context, d billing.CustomerDetails) (*billing.Customer, error) {
	p := customerParams(ctx, d)
	p.AddMetadata("customerId", d.AccountID)
	p.AddMetadata("source", "api")
	cus, err := c.api.Customers.New(p)
	if err != nil {
		return nil, apiError(err)
	}
	return toCustomer(cus), nil
}

func (c *Client) UpdateCustomer(ctx context.Context, id string, d billing.CustomerDetails) (*billing.Customer, error) {
	cus, err := c.api.Customers.Update(id, customerParams(ctx, d))
	if err != nil {
		return nil, apiError(err)
	}
	return toCustomer(cus), nil
}

func (c *Client) DeleteCustomer(ctx context.Context, id string) error {
	_, err := c.api.Customers.Del(id, &stripeapi.CustomerParams{Params: params(ctx, false)})
	return apiError(err)
}

func (c *Client) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	_, err := c.api.Customers.Update(customerID, &stripeapi.CustomerParams{
		Params: params(ctx, true),
		InvoiceSettings: &stripeapi.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripeapi.String(paymentMethodID),
		},
	})
	return apiError(err)
}

func (c *Client) AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) (*billing.PaymentMethod, error) {
	m, err := c.api.PaymentMethods.Attach(paymentMethodID, &stripeapi.PaymentMethodAttachParams{
		Params:   params(ctx, true),
		Customer: stripeapi.String(customerID),
	})
	if err != nil {
		return nil, apiError(err)
	}
	pm := toPaymentMethod(m)
	return &pm, nil
}

func (c *Client) DetachPaymentMethod(ctx context.Context, paymentMethodID string) (*billing.PaymentMethod, error) {
	m, err := c.api.PaymentMethods.Detach(paymentMethodID, &stripeapi.PaymentMethodDetachParams{
		Params: params(ctx, true),
	})
	if err != nil {
		return nil, apiError(err)
	}
	pm := toPaymentMethod(m)
	return &pm, nil
}

func (c *Client) ListPaymentMethods(ctx context.Context, customerID string) ([]billing.PaymentMethod, error) {
	it := c.api.PaymentMethods.List(&stripeapi.PaymentMethodListParams{
		ListParams: stripeapi.ListParams{Context: ctx},
		Customer:   stripeapi.String(customerID),
		Type:       stripeapi.String(string(stripeapi.PaymentMethodTypeCard)),
	})
	var methods []billing.PaymentMethod
	for it.Next() {
		methods = append(methods, toPaymentMethod(it.PaymentMethod()))
	}
	if err := it.Err(); err != nil {
		return nil, apiError(err)
	}
	return methods, nil
}

func (c *Client) CreateInvoiceItem(ctx context.Context, p billing.InvoiceItemParams) (string, error) {
	ip := &stripeapi.InvoiceItemParams{
		Params:      params(ctx, true),
		Customer:    stripeapi.String(p.Customer),
		Amount:      stripeapi.Int64(p.Amount),
		Currency:    stripeapi.String(p.Currency),
		Description: stripeapi.String(p.Description),
	}
	addMetadata(ip, p.Metadata)
	if p.Quantity > 0 {
		// The line total is in amount; quantity is informational only.
		ip.AddMetadata("quantity", strconv.FormatInt(p.Quantity, 10))
	}
	item, err := c.api.InvoiceItems.New(ip)
	if err != nil {
		return "", apiError(err)
	}
	return item.ID, nil
}

func (c *Client) CreateInvoice(ctx context.Context, p billing.InvoiceParams) (*billing.Invoice, error) {
	ip := &stripeapi.InvoiceParams{
		Params:                      params(ctx, true),
		Customer:                    stripeapi.String(p.Customer),
		AutoAdvance:                 stripeapi.Bool(true),
		CollectionMethod:            stripeapi.String(string(stripeapi.InvoiceCollectionMethodChargeAutomatically)),
		PendingInvoiceItemsBehavior: stripeapi.String("include"),
		PaymentSettings: &stripeapi.InvoicePaymentSettingsParams{
			PaymentMethodTypes: stripeapi.StringSlice([]string{"card"}),
			PaymentMethodOptions: &stripeapi.InvoicePaymentSettingsPaymentMethodOptionsParams{
				Card: &stripeapi.InvoicePaymentSettingsPaymentMethodOptionsCardParams{
					RequestThreeDSecure: stripeapi.String("automatic"),
				},
			},
		},
	}
	if p.Description != "" {
		ip.Description = stripeapi.String(p.Description)
	}
	addMetadata(ip, p.Metadata)
	inv, err := c.api.Invoices.New(ip)
	if err != nil {
		return nil, apiError(err)
	}
	return toInvoice(inv), nil
}

func (c *Client) FinalizeInvoice(ctx context.Context, id string) (*billing.Invoice, error) {
	inv, err := c.api.Invoices.FinalizeInvoice(id, &stripeapi.InvoiceFinalizeInvoiceParams{
		Params: params(ctx, true),
	})
	if err != nil {
		return nil, apiError(err)
	}
	return toInvoice(inv), nil
}

func (c *Client) PayInvoice(ctx context.Context, id string, p billing.PayParams) (*billing.Invoice, error) {
	pp := &stripeapi.InvoicePayParams{
		Params:     params(ctx, true),
		OffSession: stripeapi.Bool(true),
	}
	if p.PaymentMethod != "" {
		pp.PaymentMethod = stripeapi.String(p.PaymentMethod)
	}
	inv, err := c.api.Invoices.Pay(id, pp)
	if err != nil {
		return nil, apiError(err)
	}
	return toInvoice(inv), nil
}

func (c *Client) GetInvoice(ctx context.Context, id string) (*billing.Invoice, error) {
	inv, err := c.api.Invoices.Get(id, &stripeapi.InvoiceParams{Params: params(ctx, false)})
	if err != nil {
		return nil, apiError(err)
	}
	return toInvoice(inv), nil
}

func (c *Client) ListInvoices(ctx context.Context, p billing.ListParams) (*billing.InvoicePage, error) {
	lp := &stripeapi.InvoiceListParams{
		ListParams: stripeapi.ListParams{
			Context: ctx,
			Limit:   stripeapi.Int64(int64(p.Limit)),
			Single:  true,
		},
		Customer: stripeapi.String(p.Customer),
	}
	if p.StartingAfter != "" {
		lp.StartingAfter = stripeapi.String(p.StartingAfter)
	}

	it := c.api.Invoices.List(lp)
	page := &billing.InvoicePage{Invoices: make([]billing.Invoice, 0, p.Limit)}
	for it.Next() {
		page.Invoices = append(page.Invoices, *toInvoice(it.Invoice()))
	}
	if err := it.Err(); err != nil {
		return nil, apiError(err)
	}
	if meta := it.Meta(); meta != nil {
		page.HasMore = meta.HasMore
	}
	return page, nil
}

func (c *Client) CreatePaymentIntent(ctx context.Context, p billing.PaymentIntentParams) (*billing.PaymentIntent, error) {
	ip := &stripeapi.PaymentIntentParams{
		Params:   params(ctx, true),
		Amount:   stripeapi.Int64(p.Amount),
		Currency: stripeapi.String(p.Currency),
		AutomaticPaymentMethods: &stripeapi.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripeapi.Bool(true),
		},
	}
	if p.Customer != "" {
		ip.Customer = stripeapi.String(p.Customer)
	}
	if p.Description != "" {
		ip.Description = stripeapi.String(p.Description)
	}
	if p.PaymentMethod != "" {
		ip.PaymentMethod = stripeapi.String(p.PaymentMethod)
		ip.Confirm = stripeapi.Bool(true)
		ip.OffSession = stripeapi.Bool(true)
	}
	addMetadata(ip, p.Metadata)
	pi, err := c.api.PaymentIntents.New(ip)
	if err != nil {
		return nil, apiError(err)
	}
	return toPaymentIntent(pi), nil
}

func (c *Client) GetPaymentIntent(ctx context.Context, id string) (*billing.PaymentIntent, error) {
	pi, err := c.api.PaymentIntents.Get(id, &stripeapi.PaymentIntentParams{Params: params(ctx, false)})
	if err != nil {
		return nil, apiError(err)
	}
	return toPaymentIntent(pi), nil
}

func (c *Client) CreateRefund(ctx context.Context, p billing.RefundParams) (*billing.Refund, error) {
	rp := &stripeapi.RefundParams{
		Params:        params(ctx, true),
		PaymentIntent: stripeapi.String(p.PaymentIntent),
	}
	if p.Amount > 0 {
		rp.Amount = stripeapi.Int64(p.Amount)
	}
	rp.AddMetadata("reason", p.Reason)
	r, err := c.api.Refunds.New(rp)
	if err != nil {
		return nil, apiError(err)
	}
	out := &billing.Refund{
		ID:       r.ID,
		Amount:   r.Amount,
		Currency: string(r.Currency),
		Status:   string(r.Status),
	}
	if r.PaymentIntent != nil {
		out.PaymentIntent = r.PaymentIntent.ID
	}
	return out, nil
}
