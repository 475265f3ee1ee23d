package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nazeru/phoneshop-go/internal/account"
	"github.com/nazeru/phoneshop-go/internal/catalog"
	"github.com/nazeru/phoneshop-go/internal/customer"
	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/order/tx"
	"github.com/nazeru/phoneshop-go/internal/order/workflow"
	"github.com/nazeru/phoneshop-go/internal/reporting"
	"github.com/nazeru/phoneshop-go/internal/store/memory"
	"github.com/nazeru/phoneshop-go/pkg/metrics"
	"github.com/nazeru/phoneshop-go/pkg/tx/common"
)

type env struct {
	st     *memory.Store
	router http.Handler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := memory.New()
	exec, err := tx.New(common.TxModeLocal, st, nil)
	require.NoError(t, err)
	hasher := account.NewHasher(bcrypt.MinCost)
	reg := prometheus.NewRegistry()

	router := NewRouter(Deps{
		Orders: workflow.New(st, exec, hasher, workflow.Options{
			Policy:  domain.PermissivePolicy(),
			Metrics: metrics.NewWorkflowMetrics(reg),
		}),
		Catalog:   catalog.NewService(st),
		Customers: customer.NewService(st),
		Accounts:  account.NewService(st, hasher),
		Reports:   reporting.NewService(st, time.UTC),
		Health:    st,
		Metrics:   metrics.NewServerMetrics("test", reg),
		Timeout:   time.Second,
	})
	return &env{st: st, router: router}
}

func (e *env) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) product(t *testing.T, stock int) domain.Product {
	t.Helper()
	p := domain.Product{
		Title: "Alpha", Slug: "alpha", Brand: "Acme", Thumbnail: "a.png",
		Price: decimal.NewFromInt(100), Stock: stock, Active: true,
	}
	require.NoError(t, e.st.Products().Create(context.Background(), &p))
	return p
}

type dataResponse[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func orderBody(productID string, qty int) string {
	return `{"customer":{"name":"Lan","phone":"0900000000","address":"1 Main St"},` +
		`"items":[{"productId":"` + productID + `","quantity":` + strconv.Itoa(qty) + `}]}`
}

func TestCreateOrderAndCancel(t *testing.T) {
	e := newEnv(t)
	p := e.product(t, 5)

	rec := e.do(t, http.MethodPost, "/api/v1/orders", orderBody(p.ID, 2))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	created := decodeBody[dataResponse[domain.Order]](t, rec)
	assert.True(t, created.Success)
	assert.True(t, created.Data.FinalAmount.Equal(decimal.NewFromInt(200)))

	rec = e.do(t, http.MethodGet, "/api/v1/orders/"+created.Data.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/orders/"+created.Data.ID+"/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cancelled := decodeBody[dataResponse[domain.Order]](t, rec)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Data.OrderStatus)

	rec = e.do(t, http.MethodPost, "/api/v1/orders/"+created.Data.ID+"/cancel", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody[errorResponse](t, rec)
	assert.Equal(t, "INVALID_TRANSITION", body.Error.Code)
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	e := newEnv(t)
	p := e.product(t, 1)

	rec := e.do(t, http.MethodPost, "/api/v1/orders", orderBody(p.ID, 3), requestIDHeader, "req-42")
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody[errorResponse](t, rec)
	assert.Equal(t, "INSUFFICIENT_STOCK", body.Error.Code)
	assert.Equal(t, "insufficient stock for Alpha. Available: 1", body.Error.Message)
	assert.Equal(t, "req-42", body.Error.TraceID)
	assert.EqualValues(t, 1, body.Error.Details["available"])
}

func TestCreateOrderIdempotencyKey(t *testing.T) {
	e := newEnv(t)
	p := e.product(t, 5)

	first := e.do(t, http.MethodPost, "/api/v1/orders", orderBody(p.ID, 1), "Idempotency-Key", "abc")
	require.Equal(t, http.StatusCreated, first.Code)
	again := e.do(t, http.MethodPost, "/api/v1/orders", orderBody(p.ID, 1), "Idempotency-Key", "abc")
	require.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, "true", again.Header().Get("Idempotent-Replayed"))
	assert.Equal(t,
		decodeBody[dataResponse[domain.Order]](t, first).Data.ID,
		decodeBody[dataResponse[domain.Order]](t, again).Data.ID)

	long := strings.Repeat("k", 200)
	rec := e.do(t, http.MethodPost, "/api/v1/orders", orderBody(p.ID, 1), "Idempotency-Key", long)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBadRequests(t *testing.T) {
	e := newEnv(t)
	cases := []struct {
		method, path, body string
		code               int
	}{
		{http.MethodPost, "/api/v1/orders", "", http.StatusBadRequest},
		{http.MethodPost, "/api/v1/orders", "{", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/orders?limit=abc", "", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/orders/missing", "", http.StatusNotFound},
		{http.MethodPatch, "/api/v1/orders/missing/status", `{"orderStatus":"confirmed"}`, http.StatusNotFound},
		{http.MethodGet, "/api/v1/orders/revenue?period=week", "", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/orders/stats?startDate=2024-06-01&endDate=2024-05-01", "", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/products?minPrice=cheap", "", http.StatusBadRequest},
		{http.MethodPost, "/api/v1/auth/login", `{"username":"ghost","password":"secret1"}`, http.StatusNotFound},
		{http.MethodGet, "/api/v1/nothing-here", "", http.StatusNotFound},
	}
	for _, c := range cases {
		t.Run(c.method+" "+c.path, func(t *testing.T) {
			rec := e.do(t, c.method, c.path, c.body)
			assert.Equal(t, c.code, rec.Code, rec.Body.String())
		})
	}
}

func TestReportsEndpoints(t *testing.T) {
	e := newEnv(t)
	p := e.product(t, 10)
	rec := e.do(t, http.MethodPost, "/api/v1/orders", orderBody(p.ID, 2))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/orders/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody[dataResponse[domain.OrderStats]](t, rec)
	assert.Equal(t, 1, stats.Data.TotalOrders)
	assert.Equal(t, 1, stats.Data.PendingOrders)

	rec = e.do(t, http.MethodGet, "/api/v1/orders/best-selling?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	best := decodeBody[dataResponse[[]domain.BestSeller]](t, rec)
	require.Len(t, best.Data, 1)
	assert.Equal(t, "a.png", best.Data[0].Image)

	rec = e.do(t, http.MethodGet, "/api/v1/orders/revenue?period=month", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/customers/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cs := decodeBody[dataResponse[domain.CustomerStatsReport]](t, rec)
	assert.Equal(t, 1, cs.Data.Overview.TotalCustomers)
}

func TestCustomerAndAccountRoutes(t *testing.T) {
	e := newEnv(t)
	p := e.product(t, 10)
	rec := e.do(t, http.MethodPost, "/api/v1/orders", orderBody(p.ID, 1))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/customers/phone/0900000000", "")
	require.Equal(t, http.StatusOK, rec.Code)
	c := decodeBody[dataResponse[domain.Customer]](t, rec)
	assert.Equal(t, "user_0900000000", c.Data.Username)
	assert.NotContains(t, rec.Body.String(), "$2a$")

	rec = e.do(t, http.MethodGet, "/api/v1/customers/0900000000/orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[dataResponse[[]domain.Order]](t, rec).Data, 1)

	rec = e.do(t, http.MethodDelete, "/api/v1/customers/"+c.Data.AccountID, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/auth/login", `{"username":"user_0900000000","password":"0000"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decodeBody[dataResponse[struct {
		Role               domain.Role `json:"role"`
		MustRotatePassword bool        `json:"mustRotatePassword"`
	}]](t, rec)
	assert.Equal(t, domain.RoleCustomer, login.Data.Role)
	assert.True(t, login.Data.MustRotatePassword)

	rec = e.do(t, http.MethodPost, "/api/v1/auth/login", `{"username":"user_0900000000","password":"9999"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/users", `{"username":"mai","password":"hunter22","role":"admin"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	staff := decodeBody[dataResponse[domain.StaffAccount]](t, rec)

	rec = e.do(t, http.MethodPatch, "/api/v1/users/"+staff.Data.AccountID+"/password", `{"oldPassword":"hunter22","newPassword":"hunter33"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = e.do(t, http.MethodDelete, "/api/v1/users/"+staff.Data.AccountID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodPost, "/api/v1/auth/login", `{"username":"mai","password":"hunter33"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProductRoutes(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/v1/products", `{"title":"Beta","slug":"beta","brand":"Acme","thumbnail":"b.png","price":"300","stock":4}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decodeBody[dataResponse[domain.Product]](t, rec)
	assert.True(t, p.Data.Active)

	rec = e.do(t, http.MethodPatch, "/api/v1/products/"+p.Data.ID, `{"stock":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/products/low-stock?threshold=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[dataResponse[[]domain.Product]](t, rec).Data, 1)

	rec = e.do(t, http.MethodPost, "/api/v1/products/import", `[{"title":"Gamma","slug":"gamma","brand":"Acme","thumbnail":"g.png","price":"1","stock":1}]`)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeBody[dataResponse[catalog.ImportResult]](t, rec)
	assert.Equal(t, 1, res.Data.Imported)

	rec = e.do(t, http.MethodGet, "/api/v1/products?search=gam", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[dataResponse[[]domain.Product]](t, rec).Data, 1)

	rec = e.do(t, http.MethodDelete, "/api/v1/products/"+p.Data.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodGet, "/api/v1/products/"+p.Data.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterCustomer(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/v1/auth/register", `{"password":"hunter22","fullName":"Lan","phone":"0900000007"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c := decodeBody[dataResponse[domain.Customer]](t, rec)
	assert.Equal(t, "user_0900000007", c.Data.Username)
	assert.Zero(t, c.Data.TotalOrders)
	assert.NotContains(t, rec.Body.String(), "$2a$")

	rec = e.do(t, http.MethodPost, "/api/v1/auth/register", `{"username":"lan","password":"hunter22","fullName":"Lan","phone":"0900000007"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	p := e.product(t, 3)
	body := `{"customer":{"name":"Lan","phone":"0900000007","address":"1 Main St"},` +
		`"items":[{"productId":"` + p.ID + `","quantity":1}]}`
	rec = e.do(t, http.MethodPost, "/api/v1/orders", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, c.Data.AccountID, decodeBody[dataResponse[domain.Order]](t, rec).Data.CustomerID)

	rec = e.do(t, http.MethodPost, "/api/v1/auth/login", `{"username":"user_0900000007","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRequestBodyLimit(t *testing.T) {
	e := newEnv(t)
	big := `{"username":"mai","password":"hunter22","fullName":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	rec := e.do(t, http.MethodPost, "/api/v1/users", big)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[errorResponse](t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.Contains(t, body.Error.Message, "exceeds")

	// import accepts bodies above the default limit
	pad := strings.Repeat(" ", maxBodyBytes)
	rec = e.do(t, http.MethodPost, "/api/v1/products/import", `[`+pad+`{"title":"Gamma","slug":"gamma","brand":"Acme","thumbnail":"g.png","price":"1","stock":1}]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decodeBody[dataResponse[catalog.ImportResult]](t, rec).Data.Imported)
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("db down") }

func TestHealth(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	down := NewRouter(Deps{Health: downPinger{}, Metrics: metrics.NewServerMetrics("down", prometheus.NewRegistry())})
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestInternalErrorsAreHidden(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	writeError(rec, req, errors.New("pq: password authentication failed"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody[errorResponse](t, rec)
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.Equal(t, "internal server error", body.Error.Message)
}
