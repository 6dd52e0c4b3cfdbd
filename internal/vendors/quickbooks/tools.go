package quickbooks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"mcp-fleet/internal/shape"
	"mcp-fleet/internal/toolkit"
	"mcp-fleet/internal/upstream"
)

func (v *Vendor) tools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("quickbooks_query",
				mcp.WithDescription("Run a QuickBooks query, e.g. SELECT * FROM Customer WHERE Active = true MAXRESULTS 10."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("query", mcp.Required(), mcp.Description("QuickBooks SQL-like query (SELECT only)")),
			),
			Handler: toolkit.Handle(v.handleQuery),
		},
		{
			Tool: mcp.NewTool("quickbooks_list_accounts",
				mcp.WithDescription("List chart of accounts entries."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("account_type", mcp.Description("Filter by AccountType, e.g. Bank or Expense")),
				mcp.WithNumber("max_results", mcp.Description("Max results (default 100, max 1000)")),
			),
			Handler: toolkit.Handle(v.handleListAccounts),
		},
		{
			Tool: mcp.NewTool("quickbooks_list_customers",
				mcp.WithDescription("List active customers, optionally by display name fragment."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("name", mcp.Description("Display name contains")),
				mcp.WithNumber("max_results", mcp.Description("Max results (default 100, max 1000)")),
			),
			Handler: toolkit.Handle(v.handleListCustomers),
		},
		{
			Tool: mcp.NewTool("quickbooks_list_invoices",
				mcp.WithDescription("List invoices, newest first."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("customer_id", mcp.Description("Only invoices of this customer")),
				mcp.WithBoolean("unpaid_only", mcp.Description("Only invoices with an open balance")),
				mcp.WithNumber("max_results", mcp.Description("Max results (default 50, max 1000)")),
			),
			Handler: toolkit.Handle(v.handleListInvoices),
		},
		{
			Tool: mcp.NewTool("quickbooks_get_company_info",
				mcp.WithDescription("Company name, address and fiscal settings."),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: toolkit.Handle(v.handleCompanyInfo),
		},
		{
			Tool: mcp.NewTool("quickbooks_create_customer",
				mcp.WithDescription("Create a customer."),
				mcp.WithString("display_name", mcp.Required(), mcp.Description("Unique display name")),
				mcp.WithString("company_name", mcp.Description("Company name")),
				mcp.WithString("email", mcp.Description("Primary email")),
				mcp.WithString("phone", mcp.Description("Primary phone")),
			),
			Handler: toolkit.Handle(v.handleCreateCustomer),
		},
		{
			Tool: mcp.NewTool("quickbooks_create_invoice",
				mcp.WithDescription("Create an invoice with sales item lines."),
				mcp.WithString("customer_id", mcp.Required(), mcp.Description("Customer ID")),
				mcp.WithArray("lines", mcp.Required(), mcp.Description(
					"Lines: objects with amount, description, and optional item_id, quantity, unit_price")),
				mcp.WithString("due_date", mcp.Description("YYYY-MM-DD")),
			),
			Handler: toolkit.Handle(v.handleCreateInvoice),
		},
	}
}

var (
	customerFields = map[string]string{
		"id":           "Id",
		"display_name": "DisplayName",
		"company_name": "CompanyName",
		"email":        "PrimaryEmailAddr.Address",
		"phone":        "PrimaryPhone.FreeFormNumber",
		"balance":      "Balance",
		"active":       "Active",
	}
	invoiceFields = map[string]string{
		"id":            "Id",
		"doc_number":    "DocNumber",
		"txn_date":      "TxnDate",
		"due_date":      "DueDate",
		"total":         "TotalAmt",
		"balance":       "Balance",
		"customer_id":   "CustomerRef.value",
		"customer_name": "CustomerRef.name",
		"email_status":  "EmailStatus",
	}
	accountFields = map[string]string{
		"id":              "Id",
		"name":            "Name",
		"account_type":    "AccountType",
		"account_subtype": "AccountSubType",
		"classification":  "Classification",
		"current_balance": "CurrentBalance",
		"active":          "Active",
	}
)

// query runs a query and returns the entity rows it produced.
func (v *Vendor) query(ctx context.Context, q string) (string, []any, error) {
	base, err := v.company(ctx)
	if err != nil {
		return "", nil, err
	}
	var resp struct {
		QueryResponse map[string]any `json:"QueryResponse"`
	}
	err = v.api.Get(ctx, base+"/query", url.Values{"query": {q}, "minorversion": {minorVersion}}, &resp)
	if err != nil {
		return "", nil, err
	}
	// Rows sit under the entity name; the other keys are paging scalars.
	keys := make([]string, 0, len(resp.QueryResponse))
	for k := range resp.QueryResponse {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if rows, ok := resp.QueryResponse[k].([]any); ok {
			return k, rows, nil
		}
	}
	return "", []any{}, nil
}

func (v *Vendor) handleQuery(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	q, err := toolkit.RequireString(req, "query")
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(strings.ToLower(q), "select") {
		return nil, toolkit.Invalid("only SELECT queries are supported")
	}
	entity, rows, err := v.query(ctx, q)
	if err != nil {
		return nil, err
	}
	return map[string]any{"entity": entity, "rows": rows, "count": len(rows)}, nil
}

func maxResults(req mcp.CallToolRequest, def int) (string, error) {
	n, err := toolkit.IntArg(req, "max_results", def, 1, 1000)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(" MAXRESULTS %d", n), nil
}

func (v *Vendor) handleListAccounts(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	limit, err := maxResults(req, 100)
	if err != nil {
		return nil, err
	}
	q := "SELECT * FROM Account"
	if t := toolkit.OptionalString(req, "account_type"); t != "" {
		q += " WHERE AccountType = '" + escape(t) + "'"
	}
	_, rows, err := v.query(ctx, q+" ORDERBY Name"+limit)
	if err != nil {
		return nil, err
	}
	accounts := shape.PickEach(rows, accountFields)
	return map[string]any{"accounts": accounts, "count": len(accounts)}, nil
}

func (v *Vendor) handleListCustomers(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	limit, err := maxResults(req, 100)
	if err != nil {
		return nil, err
	}
	q := "SELECT * FROM Customer WHERE Active = true"
	if n := toolkit.OptionalString(req, "name"); n != "" {
		q += " AND DisplayName LIKE '%" + escape(n) + "%'"
	}
	_, rows, err := v.query(ctx, q+limit)
	if err != nil {
		return nil, err
	}
	customers := shape.PickEach(rows, customerFields)
	return map[string]any{"customers": customers, "count": len(customers)}, nil
}

func (v *Vendor) handleListInvoices(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	limit, err := maxResults(req, 50)
	if err != nil {
		return nil, err
	}
	var where []string
	if id := toolkit.OptionalString(req, "customer_id"); id != "" {
		where = append(where, "CustomerRef = '"+escape(id)+"'")
	}
	if toolkit.BoolArg(req, "unpaid_only", false) {
		where = append(where, "Balance > '0'")
	}
	q := "SELECT * FROM Invoice"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	_, rows, err := v.query(ctx, q+" ORDERBY TxnDate DESC"+limit)
	if err != nil {
		return nil, err
	}
	invoices := shape.PickEach(rows, invoiceFields)
	return map[string]any{"invoices": invoices, "count": len(invoices)}, nil
}

func (v *Vendor) handleCompanyInfo(ctx context.Context, _ mcp.CallToolRequest) (any, error) {
	base, err := v.company(ctx)
	if err != nil {
		return nil, err
	}
	realm := base[strings.LastIndex(base, "/")+1:]
	var resp struct {
		CompanyInfo map[string]any `json:"CompanyInfo"`
	}
	err = v.api.GetCached(ctx, base+"/companyinfo/"+realm, url.Values{"minorversion": {minorVersion}}, &resp)
	if err != nil {
		return nil, err
	}
	return shape.Pick(resp.CompanyInfo, map[string]string{
		"id":                  "Id",
		"company_name":        "CompanyName",
		"legal_name":          "LegalName",
		"country":             "Country",
		"email":               "Email.Address",
		"phone":               "PrimaryPhone.FreeFormNumber",
		"city":                "CompanyAddr.City",
		"fiscal_year_start":   "FiscalYearStartMonth",
		"company_start_date":  "CompanyStartDate",
		"supported_languages": "SupportedLanguages",
	}), nil
}

func (v *Vendor) create(ctx context.Context, entity string, body map[string]any) (map[string]any, error) {
	base, err := v.company(ctx)
	if err != nil {
		return nil, err
	}
	var resp map[string]any
	_, err = v.api.Do(ctx, upstream.Request{
		Method: http.MethodPost,
		Path:   base + "/" + strings.ToLower(entity),
		Query:  url.Values{"minorversion": {minorVersion}},
		JSON:   body,
	}, &resp)
	if err != nil {
		return nil, err
	}
	obj, _ := resp[entity].(map[string]any)
	return obj, nil
}

func (v *Vendor) handleCreateCustomer(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	name, err := toolkit.RequireString(req, "display_name")
	if err != nil {
		return nil, err
	}
	body := map[string]any{"DisplayName": name}
	if s := toolkit.OptionalString(req, "company_name"); s != "" {
		body["CompanyName"] = s
	}
	if s := toolkit.OptionalString(req, "email"); s != "" {
		body["PrimaryEmailAddr"] = map[string]string{"Address": s}
	}
	if s := toolkit.OptionalString(req, "phone"); s != "" {
		body["PrimaryPhone"] = map[string]string{"FreeFormNumber": s}
	}
	c, err := v.create(ctx, "Customer", body)
	if err != nil {
		return nil, err
	}
	return shape.Pick(c, customerFields), nil
}

// invoiceLine converts one tool line into a SalesItemLineDetail line.
func invoiceLine(i int, l map[string]any) (map[string]any, error) {
	qty, price := shape.Float(l["quantity"]), shape.Float(l["unit_price"])
	amount := shape.Float(l["amount"])
	if amount == 0 && qty > 0 && price > 0 {
		amount = qty * price
	}
	if amount <= 0 {
		return nil, toolkit.Invalid("lines[%d]: amount must be positive", i)
	}
	detail := map[string]any{}
	if id := shape.String(l["item_id"]); id != "" {
		detail["ItemRef"] = map[string]string{"value": id}
	}
	if qty > 0 {
		detail["Qty"] = qty
	}
	if price > 0 {
		detail["UnitPrice"] = price
	}
	return map[string]any{
		"Amount":              amount,
		"Description":         shape.String(l["description"]),
		"DetailType":          "SalesItemLineDetail",
		"SalesItemLineDetail": detail,
	}, nil
}

func (v *Vendor) handleCreateInvoice(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	customer, err := toolkit.RequireString(req, "customer_id")
	if err != nil {
		return nil, err
	}
	lines, err := toolkit.ObjectList(req, "lines")
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, toolkit.Invalid("lines must contain at least one line")
	}
	body := map[string]any{"CustomerRef": map[string]string{"value": customer}}
	out := make([]map[string]any, 0, len(lines))
	for i, l := range lines {
		line, err := invoiceLine(i, l)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	body["Line"] = out
	if d := toolkit.OptionalString(req, "due_date"); d != "" {
		body["DueDate"] = d
	}
	inv, err := v.create(ctx, "Invoice", body)
	if err != nil {
		return nil, err
	}
	return shape.Pick(inv, invoiceFields), nil
}
