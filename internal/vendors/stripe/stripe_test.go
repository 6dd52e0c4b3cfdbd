package stripe

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-fleet/internal/toolkit/tooltest"
)

type recorded struct {
	method string
	path   string
	auth   string
	idem   string
	form   map[string][]string
	query  map[string][]string
}

type fake struct {
	mu       sync.Mutex
	requests []recorded
	routes   map[string]func(w http.ResponseWriter)
}

func newFake(t *testing.T, routes map[string]func(w http.ResponseWriter)) (*fake, *Vendor) {
	t.Helper()
	f := &fake{routes: routes}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.mu.Lock()
		f.requests = append(f.requests, recorded{
			method: r.Method,
			path:   r.URL.Path,
			auth:   r.Header.Get("Authorization"),
			idem:   r.Header.Get("Idempotency-Key"),
			form:   r.PostForm,
			query:  r.URL.Query(),
		})
		f.mu.Unlock()
		h, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"message":"No such resource","type":"invalid_request_error"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		h(w)
	}))
	t.Cleanup(srv.Close)

	v, err := New(tooltest.Deps(Name, srv.URL))
	require.NoError(t, err)
	return f, v.(*Vendor)
}

func respond(body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) { w.Write([]byte(body)) }
}

func (f *fake) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func TestAmountDisplay(t *testing.T) {
	tests := []struct {
		amount   int64
		currency string
		want     string
	}{
		{1234, "usd", "12.34 USD"},
		{5, "eur", "0.05 EUR"},
		{-250, "gbp", "-2.50 GBP"},
		{1500, "jpy", "1500 JPY"},
		{700, "KRW", "700 KRW"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AmountDisplay(tt.amount, tt.currency))
	}
}

func TestListCustomers(t *testing.T) {
	f, v := newFake(t, map[string]func(http.ResponseWriter){
		"GET /customers": respond(`{"object":"list","has_more":true,"data":[
			{"id":"cus_1","email":"a@example.com","name":"Ada","created":1700000000,"metadata":{"tier":"gold"}}
		]}`),
	})
	ctx := tooltest.WithToken("sk_test_1")

	var out struct {
		Customers []map[string]any `json:"customers"`
		Count     int              `json:"count"`
		HasMore   bool             `json:"has_more"`
	}
	tooltest.Decode(t, ctx, v, "stripe_list_customers", map[string]any{"email": "a@example.com", "limit": 500}, &out)

	require.Len(t, out.Customers, 1)
	assert.Equal(t, "cus_1", out.Customers[0]["id"])
	assert.Equal(t, "2023-11-14T22:13:20Z", out.Customers[0]["created"])
	assert.True(t, out.HasMore)
	assert.Equal(t, 1, out.Count)

	req := f.last()
	assert.Equal(t, "Bearer sk_test_1", req.auth)
	assert.Equal(t, []string{"100"}, req.query["limit"])
	assert.Equal(t, []string{"a@example.com"}, req.query["email"])
}

func TestListNeverNull(t *testing.T) {
	_, v := newFake(t, map[string]func(http.ResponseWriter){
		"GET /charges": respond(`{"object":"list","data":null}`),
	})
	res := tooltest.Call(t, tooltest.WithToken("sk"), v, "stripe_list_charges", nil)
	assert.Contains(t, tooltest.Text(t, res), `"charges": []`)
}

func TestRetrieveDeletedCustomerIsNotFound(t *testing.T) {
	_, v := newFake(t, map[string]func(http.ResponseWriter){
		"GET /customers/cus_gone": respond(`{"id":"cus_gone","object":"customer","deleted":true}`),
	})
	res := tooltest.Call(t, tooltest.WithToken("sk"), v, "stripe_retrieve_customer", map[string]any{"customer_id": "cus_gone"})
	assert.False(t, res.IsError)
	assert.Contains(t, tooltest.Text(t, res), "customer cus_gone not found")

	out := tooltest.Failure(t, tooltest.WithToken("sk"), v, "stripe_retrieve_customer", map[string]any{"customer_id": "cus_missing"})
	assert.Equal(t, "customer cus_missing not found", out["error"])
}

func TestCustomerIDIsPathEscaped(t *testing.T) {
	f, v := newFake(t, nil)
	tooltest.Failure(t, tooltest.WithToken("sk"), v, "stripe_retrieve_customer",
		map[string]any{"customer_id": "cus_1?expand[]=sources"})
	req := f.last()
	assert.Equal(t, "/customers/cus_1?expand[]=sources", req.path)
	assert.Empty(t, req.query)

	tooltest.Failure(t, tooltest.WithToken("sk"), v, "stripe_update_customer",
		map[string]any{"customer_id": "cus_1/../balance", "name": "x"})
	assert.Equal(t, "/customers/cus_1/../balance", f.last().path)
}

func TestCreateCustomerSendsFormAndIdempotencyKey(t *testing.T) {
	f, v := newFake(t, map[string]func(http.ResponseWriter){
		"POST /customers": respond(`{"id":"cus_new","email":"b@example.com"}`),
	})
	var out map[string]any
	tooltest.Decode(t, tooltest.WithData(map[string]any{"api_key": "sk_data"}), v, "stripe_create_customer", map[string]any{
		"email":    "b@example.com",
		"name":     "Bea",
		"metadata": map[string]any{"plan": "pro"},
	}, &out)
	assert.Equal(t, "cus_new", out["id"])

	req := f.last()
	assert.Equal(t, "Bearer sk_data", req.auth)
	assert.NotEmpty(t, req.idem)
	assert.Equal(t, []string{"b@example.com"}, req.form["email"])
	assert.Equal(t, []string{"pro"}, req.form["metadata[plan]"])
}

func TestUpdateCustomerRequiresFields(t *testing.T) {
	_, v := newFake(t, nil)
	out := tooltest.Failure(t, tooltest.WithToken("sk"), v, "stripe_update_customer", map[string]any{"customer_id": "cus_1"})
	assert.Contains(t, out["error"], "nothing to update")
}

func TestCreatePaymentIntent(t *testing.T) {
	f, v := newFake(t, map[string]func(http.ResponseWriter){
		"POST /payment_intents": respond(`{"id":"pi_1","amount":1999,"currency":"usd","status":"requires_payment_method"}`),
	})
	var out map[string]any
	tooltest.Decode(t, tooltest.WithToken("sk"), v, "stripe_create_payment_intent", map[string]any{
		"amount": 1999, "currency": "usd",
	}, &out)
	assert.Equal(t, "19.99 USD", out["amount_display"])
	assert.Equal(t, []string{"true"}, f.last().form["automatic_payment_methods[enabled]"])

	fail := tooltest.Failure(t, tooltest.WithToken("sk"), v, "stripe_create_payment_intent", map[string]any{
		"amount": 0, "currency": "usd",
	})
	assert.Contains(t, fail["error"], "positive")
}

func TestCreateRefundValidation(t *testing.T) {
	f, v := newFake(t, map[string]func(http.ResponseWriter){
		"POST /refunds": respond(`{"id":"re_1","amount":500,"currency":"usd","status":"succeeded"}`),
	})
	out := tooltest.Failure(t, tooltest.WithToken("sk"), v, "stripe_create_refund", nil)
	assert.Contains(t, out["error"], "payment_intent or charge")

	var ok map[string]any
	tooltest.Decode(t, tooltest.WithToken("sk"), v, "stripe_create_refund", map[string]any{
		"charge": "ch_1", "amount": "500",
	}, &ok)
	assert.Equal(t, "5.00 USD", ok["amount_display"])
	assert.Equal(t, []string{"ch_1"}, f.last().form["charge"])
	assert.Equal(t, []string{"500"}, f.last().form["amount"])
}

func TestRetrieveBalance(t *testing.T) {
	_, v := newFake(t, map[string]func(http.ResponseWriter){
		"GET /balance": respond(`{"available":[{"amount":1000,"currency":"jpy"}],"pending":[],"livemode":false}`),
	})
	var out struct {
		Available []map[string]any `json:"available"`
		Pending   []map[string]any `json:"pending"`
	}
	tooltest.Decode(t, tooltest.WithToken("sk"), v, "stripe_retrieve_balance", nil, &out)
	require.Len(t, out.Available, 1)
	assert.Equal(t, "1000 JPY", out.Available[0]["amount_display"])
	assert.NotNil(t, out.Pending)
}

func TestUpstreamErrorMessage(t *testing.T) {
	_, v := newFake(t, map[string]func(http.ResponseWriter){
		"POST /products": func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "Missing required param: name."}})
		},
	})
	res := tooltest.Call(t, tooltest.WithToken("sk"), v, "stripe_create_product", map[string]any{"name": "Widget"})
	assert.True(t, res.IsError)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(tooltest.Text(t, res)), &out))
	assert.Equal(t, "Missing required param: name.", out["error"])
	assert.Equal(t, float64(400), out["status"])
}

func TestMissingSecretKey(t *testing.T) {
	t.Setenv(envSecretKey, "")
	_, v := newFake(t, nil)
	res := tooltest.Call(t, tooltest.WithToken(""), v, "stripe_list_products", nil)
	assert.True(t, res.IsError)
	assert.Contains(t, tooltest.Text(t, res), envSecretKey)
}
