package stripe

import (
	"context"
	"net/url"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"mcp-fleet/internal/shape"
	"mcp-fleet/internal/toolkit"
)

func (v *Vendor) tools() []server.ServerTool {
	return []server.ServerTool{
		// --- Customers ---
		{
			Tool: mcp.NewTool("stripe_list_customers",
				mcp.WithDescription("List customers, newest first. Optionally filter by exact email."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("email", mcp.Description("Exact email to match")),
				mcp.WithNumber("limit", mcp.Description("Max results (default 10, max 100)")),
				mcp.WithString("starting_after", mcp.Description("Customer ID cursor for the next page")),
			),
			Handler: toolkit.Handle(v.handleListCustomers),
		},
		{
			Tool: mcp.NewTool("stripe_retrieve_customer",
				mcp.WithDescription("Retrieve one customer by ID."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("customer_id", mcp.Required(), mcp.Description("Customer ID (cus_...)")),
			),
			Handler: toolkit.Handle(v.handleRetrieveCustomer),
		},
		{
			Tool: mcp.NewTool("stripe_create_customer",
				mcp.WithDescription("Create a customer."),
				mcp.WithString("email", mcp.Description("Email address")),
				mcp.WithString("name", mcp.Description("Full name or business name")),
				mcp.WithString("phone", mcp.Description("Phone number")),
				mcp.WithString("description", mcp.Description("Internal description")),
				mcp.WithObject("metadata", mcp.Description("Key/value metadata")),
			),
			Handler: toolkit.Handle(v.handleCreateCustomer),
		},
		{
			Tool: mcp.NewTool("stripe_update_customer",
				mcp.WithDescription("Update fields of an existing customer. Only provided fields change."),
				mcp.WithString("customer_id", mcp.Required(), mcp.Description("Customer ID (cus_...)")),
				mcp.WithString("email", mcp.Description("New email")),
				mcp.WithString("name", mcp.Description("New name")),
				mcp.WithString("phone", mcp.Description("New phone")),
				mcp.WithString("description", mcp.Description("New description")),
				mcp.WithObject("metadata", mcp.Description("Metadata keys to set")),
			),
			Handler: toolkit.Handle(v.handleUpdateCustomer),
		},

		// --- Payments ---
		{
			Tool: mcp.NewTool("stripe_list_payment_intents",
				mcp.WithDescription("List payment intents, optionally for one customer."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("customer", mcp.Description("Customer ID")),
				mcp.WithNumber("limit", mcp.Description("Max results (default 10, max 100)")),
			),
			Handler: toolkit.Handle(v.handleListPaymentIntents),
		},
		{
			Tool: mcp.NewTool("stripe_create_payment_intent",
				mcp.WithDescription("Create a payment intent. Amount is in the currency's minor unit (cents for USD)."),
				mcp.WithNumber("amount", mcp.Required(), mcp.Description("Amount in minor units")),
				mcp.WithString("currency", mcp.Required(), mcp.Description("Three-letter ISO currency code, e.g. usd")),
				mcp.WithString("customer", mcp.Description("Customer ID")),
				mcp.WithString("description", mcp.Description("Description shown to the customer")),
				mcp.WithArray("payment_method_types", mcp.WithStringItems(), mcp.Description("Allowed payment method types (default: automatic)")),
			),
			Handler: toolkit.Handle(v.handleCreatePaymentIntent),
		},
		{
			Tool: mcp.NewTool("stripe_list_charges",
				mcp.WithDescription("List charges, optionally for one customer."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("customer", mcp.Description("Customer ID")),
				mcp.WithNumber("limit", mcp.Description("Max results (default 10, max 100)")),
			),
			Handler: toolkit.Handle(v.handleListCharges),
		},
		{
			Tool: mcp.NewTool("stripe_create_refund",
				mcp.WithDescription("Refund a payment intent or charge, fully or partially."),
				mcp.WithDestructiveHintAnnotation(true),
				mcp.WithString("payment_intent", mcp.Description("Payment intent ID (pi_...)")),
				mcp.WithString("charge", mcp.Description("Charge ID (ch_...), when no payment intent is given")),
				mcp.WithNumber("amount", mcp.Description("Partial amount in minor units (default: full)")),
				mcp.WithString("reason", mcp.Enum("duplicate", "fraudulent", "requested_by_customer")),
			),
			Handler: toolkit.Handle(v.handleCreateRefund),
		},
		{
			Tool: mcp.NewTool("stripe_list_invoices",
				mcp.WithDescription("List invoices, optionally filtered by customer and status."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("customer", mcp.Description("Customer ID")),
				mcp.WithString("status", mcp.Enum("draft", "open", "paid", "uncollectible", "void")),
				mcp.WithNumber("limit", mcp.Description("Max results (default 10, max 100)")),
			),
			Handler: toolkit.Handle(v.handleListInvoices),
		},
		{
			Tool: mcp.NewTool("stripe_retrieve_balance",
				mcp.WithDescription("Retrieve the account's available and pending balance."),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: toolkit.Handle(v.handleRetrieveBalance),
		},

		// --- Catalog ---
		{
			Tool: mcp.NewTool("stripe_list_products",
				mcp.WithDescription("List products."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithBoolean("active", mcp.Description("Only active (true) or archived (false) products")),
				mcp.WithNumber("limit", mcp.Description("Max results (default 10, max 100)")),
			),
			Handler: toolkit.Handle(v.handleListProducts),
		},
		{
			Tool: mcp.NewTool("stripe_create_product",
				mcp.WithDescription("Create a product."),
				mcp.WithString("name", mcp.Required(), mcp.Description("Product name")),
				mcp.WithString("description", mcp.Description("Product description")),
			),
			Handler: toolkit.Handle(v.handleCreateProduct),
		},
		{
			Tool: mcp.NewTool("stripe_create_price",
				mcp.WithDescription("Create a one-off or recurring price for a product."),
				mcp.WithString("product", mcp.Required(), mcp.Description("Product ID (prod_...)")),
				mcp.WithNumber("unit_amount", mcp.Required(), mcp.Description("Amount in minor units")),
				mcp.WithString("currency", mcp.Required(), mcp.Description("Three-letter ISO currency code")),
				mcp.WithString("recurring_interval", mcp.Enum("day", "week", "month", "year"), mcp.Description("Billing interval for subscriptions")),
			),
			Handler: toolkit.Handle(v.handleCreatePrice),
		},
	}
}

// ---------------------------------------------------------------------------
// Reshaping
// ---------------------------------------------------------------------------

func customerOut(c map[string]any) map[string]any {
	return map[string]any{
		"id":          c["id"],
		"email":       c["email"],
		"name":        c["name"],
		"phone":       c["phone"],
		"description": c["description"],
		"balance":     c["balance"],
		"currency":    c["currency"],
		"delinquent":  c["delinquent"],
		"metadata":    c["metadata"],
		"created":     shape.Unix(c["created"]),
	}
}

func withAmount(out map[string]any, src map[string]any, field string) map[string]any {
	amount := int64(shape.Float(src[field]))
	currency := shape.String(src["currency"])
	out[field] = amount
	out["currency"] = currency
	if currency != "" {
		out["amount_display"] = AmountDisplay(amount, currency)
	}
	return out
}

func paymentIntentOut(p map[string]any) map[string]any {
	return withAmount(map[string]any{
		"id":            p["id"],
		"status":        p["status"],
		"customer":      p["customer"],
		"description":   p["description"],
		"client_secret": p["client_secret"],
		"created":       shape.Unix(p["created"]),
	}, p, "amount")
}

func chargeOut(c map[string]any) map[string]any {
	return withAmount(map[string]any{
		"id":              c["id"],
		"status":          c["status"],
		"paid":            c["paid"],
		"refunded":        c["refunded"],
		"amount_refunded": c["amount_refunded"],
		"customer":        c["customer"],
		"payment_intent":  c["payment_intent"],
		"receipt_url":     c["receipt_url"],
		"created":         shape.Unix(c["created"]),
	}, c, "amount")
}

func invoiceOut(i map[string]any) map[string]any {
	out := withAmount(map[string]any{
		"id":                 i["id"],
		"number":             i["number"],
		"status":             i["status"],
		"customer":           i["customer"],
		"amount_paid":        i["amount_paid"],
		"hosted_invoice_url": i["hosted_invoice_url"],
		"due_date":           shape.Unix(i["due_date"]),
		"created":            shape.Unix(i["created"]),
	}, i, "amount_due")
	return out
}

func productOut(p map[string]any) map[string]any {
	return map[string]any{
		"id":            p["id"],
		"name":          p["name"],
		"description":   p["description"],
		"active":        p["active"],
		"default_price": p["default_price"],
		"created":       shape.Unix(p["created"]),
	}
}

func mapEach(items []map[string]any, fn func(map[string]any) map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		out = append(out, fn(it))
	}
	return out
}

func listResult(key string, p page, fn func(map[string]any) map[string]any) map[string]any {
	items := mapEach(p.Data, fn)
	return map[string]any{key: items, "count": len(items), "has_more": p.HasMore}
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (v *Vendor) handleListCustomers(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	limit, err := toolkit.IntArg(req, "limit", 10, 1, 100)
	if err != nil {
		return nil, err
	}
	q := limitQuery(limit)
	setIf(q, "email", toolkit.OptionalString(req, "email"))
	setIf(q, "starting_after", toolkit.OptionalString(req, "starting_after"))

	p, err := v.list(ctx, "/customers", q)
	if err != nil {
		return nil, err
	}
	return listResult("customers", p, customerOut), nil
}

func (v *Vendor) handleRetrieveCustomer(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := toolkit.RequireString(req, "customer_id")
	if err != nil {
		return nil, err
	}
	var c map[string]any
	if err := toolkit.Lookup("customer "+id, v.api.Get(ctx, "/customers/"+url.PathEscape(id), nil, &c)); err != nil {
		return nil, err
	}
	if deleted, _ := c["deleted"].(bool); deleted {
		return nil, toolkit.NotFound("customer " + id)
	}
	return customerOut(c), nil
}

func customerForm(req mcp.CallToolRequest) (url.Values, error) {
	form := url.Values{}
	for _, f := range []string{"email", "name", "phone", "description"} {
		setIf(form, f, toolkit.OptionalString(req, f))
	}
	meta, err := toolkit.ObjectArg(req, "metadata")
	if err != nil {
		return nil, err
	}
	setMetadata(form, meta)
	return form, nil
}

func (v *Vendor) handleCreateCustomer(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	form, err := customerForm(req)
	if err != nil {
		return nil, err
	}
	var c map[string]any
	if err := v.post(ctx, "/customers", form, &c); err != nil {
		return nil, err
	}
	return customerOut(c), nil
}

func (v *Vendor) handleUpdateCustomer(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := toolkit.RequireString(req, "customer_id")
	if err != nil {
		return nil, err
	}
	form, err := customerForm(req)
	if err != nil {
		return nil, err
	}
	if len(form) == 0 {
		return nil, toolkit.Invalid("nothing to update")
	}
	var c map[string]any
	if err := toolkit.Lookup("customer "+id, v.post(ctx, "/customers/"+url.PathEscape(id), form, &c)); err != nil {
		return nil, err
	}
	return customerOut(c), nil
}

func (v *Vendor) handleListPaymentIntents(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	limit, err := toolkit.IntArg(req, "limit", 10, 1, 100)
	if err != nil {
		return nil, err
	}
	q := limitQuery(limit)
	setIf(q, "customer", toolkit.OptionalString(req, "customer"))
	p, err := v.list(ctx, "/payment_intents", q)
	if err != nil {
		return nil, err
	}
	return listResult("payment_intents", p, paymentIntentOut), nil
}

func (v *Vendor) handleCreatePaymentIntent(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	amount, ok, err := toolkit.OptionalInt(req, "amount")
	if err != nil {
		return nil, err
	}
	if !ok || amount <= 0 {
		return nil, toolkit.Invalid("amount must be a positive integer in minor units")
	}
	currency, err := toolkit.RequireString(req, "currency")
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"amount":   {strconv.Itoa(amount)},
		"currency": {currency},
	}
	setIf(form, "customer", toolkit.OptionalString(req, "customer"))
	setIf(form, "description", toolkit.OptionalString(req, "description"))
	if types := toolkit.StringList(req, "payment_method_types"); len(types) > 0 {
		for _, t := range types {
			form.Add("payment_method_types[]", t)
		}
	} else {
		form.Set("automatic_payment_methods[enabled]", "true")
	}

	var p map[string]any
	if err := v.post(ctx, "/payment_intents", form, &p); err != nil {
		return nil, err
	}
	return paymentIntentOut(p), nil
}

func (v *Vendor) handleListCharges(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	limit, err := toolkit.IntArg(req, "limit", 10, 1, 100)
	if err != nil {
		return nil, err
	}
	q := limitQuery(limit)
	setIf(q, "customer", toolkit.OptionalString(req, "customer"))
	p, err := v.list(ctx, "/charges", q)
	if err != nil {
		return nil, err
	}
	return listResult("charges", p, chargeOut), nil
}

func (v *Vendor) handleCreateRefund(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	pi := toolkit.OptionalString(req, "payment_intent")
	ch := toolkit.OptionalString(req, "charge")
	if pi == "" && ch == "" {
		return nil, toolkit.Invalid("payment_intent or charge is required")
	}
	form := url.Values{}
	setIf(form, "payment_intent", pi)
	if pi == "" {
		form.Set("charge", ch)
	}
	if amount, ok, err := toolkit.OptionalInt(req, "amount"); err != nil {
		return nil, err
	} else if ok {
		if amount <= 0 {
			return nil, toolkit.Invalid("amount must be positive")
		}
		form.Set("amount", strconv.Itoa(amount))
	}
	setIf(form, "reason", toolkit.OptionalString(req, "reason"))

	var r map[string]any
	if err := v.post(ctx, "/refunds", form, &r); err != nil {
		return nil, err
	}
	return withAmount(map[string]any{
		"id":             r["id"],
		"status":         r["status"],
		"reason":         r["reason"],
		"charge":         r["charge"],
		"payment_intent": r["payment_intent"],
		"created":        shape.Unix(r["created"]),
	}, r, "amount"), nil
}

func (v *Vendor) handleListInvoices(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	limit, err := toolkit.IntArg(req, "limit", 10, 1, 100)
	if err != nil {
		return nil, err
	}
	q := limitQuery(limit)
	setIf(q, "customer", toolkit.OptionalString(req, "customer"))
	setIf(q, "status", toolkit.OptionalString(req, "status"))
	p, err := v.list(ctx, "/invoices", q)
	if err != nil {
		return nil, err
	}
	return listResult("invoices", p, invoiceOut), nil
}

func (v *Vendor) handleRetrieveBalance(ctx context.Context, _ mcp.CallToolRequest) (any, error) {
	var b struct {
		Available []map[string]any `json:"available"`
		Pending   []map[string]any `json:"pending"`
		Livemode  bool             `json:"livemode"`
	}
	if err := v.api.Get(ctx, "/balance", nil, &b); err != nil {
		return nil, err
	}
	amounts := func(in []map[string]any) []map[string]any {
		return mapEach(in, func(m map[string]any) map[string]any {
			return withAmount(map[string]any{}, m, "amount")
		})
	}
	return map[string]any{
		"available": amounts(b.Available),
		"pending":   amounts(b.Pending),
		"livemode":  b.Livemode,
	}, nil
}

func (v *Vendor) handleListProducts(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	limit, err := toolkit.IntArg(req, "limit", 10, 1, 100)
	if err != nil {
		return nil, err
	}
	q := limitQuery(limit)
	if active, ok := toolkit.OptionalBool(req, "active"); ok {
		q.Set("active", strconv.FormatBool(active))
	}
	p, err := v.list(ctx, "/products", q)
	if err != nil {
		return nil, err
	}
	return listResult("products", p, productOut), nil
}

func (v *Vendor) handleCreateProduct(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	name, err := toolkit.RequireString(req, "name")
	if err != nil {
		return nil, err
	}
	form := url.Values{"name": {name}}
	setIf(form, "description", toolkit.OptionalString(req, "description"))
	var p map[string]any
	if err := v.post(ctx, "/products", form, &p); err != nil {
		return nil, err
	}
	return productOut(p), nil
}

func (v *Vendor) handleCreatePrice(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	product, err := toolkit.RequireString(req, "product")
	if err != nil {
		return nil, err
	}
	currency, err := toolkit.RequireString(req, "currency")
	if err != nil {
		return nil, err
	}
	amount, ok, err := toolkit.OptionalInt(req, "unit_amount")
	if err != nil {
		return nil, err
	}
	if !ok || amount < 0 {
		return nil, toolkit.Invalid("unit_amount must be a non-negative integer")
	}
	form := url.Values{
		"product":     {product},
		"currency":    {currency},
		"unit_amount": {strconv.Itoa(amount)},
	}
	setIf(form, "recurring[interval]", toolkit.OptionalString(req, "recurring_interval"))

	var p map[string]any
	if err := toolkit.Lookup("product "+product, v.post(ctx, "/prices", form, &p)); err != nil {
		return nil, err
	}
	out := withAmount(map[string]any{
		"id":        p["id"],
		"product":   p["product"],
		"type":      p["type"],
		"recurring": p["recurring"],
		"active":    p["active"],
	}, p, "unit_amount")
	return out, nil
}
