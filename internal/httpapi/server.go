// Package httpapi is the JSON HTTP surface of order-service.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/nazeru/phoneshop-go/internal/account"
	"github.com/nazeru/phoneshop-go/internal/catalog"
	"github.com/nazeru/phoneshop-go/internal/customer"
	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/order/workflow"
	"github.com/nazeru/phoneshop-go/internal/reporting"
	"github.com/nazeru/phoneshop-go/pkg/metrics"
)

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Orders    *workflow.Service
	Catalog   *catalog.Service
	Customers *customer.Service
	Accounts  *account.Service
	Reports   *reporting.Service
	Health    Pinger

	Metrics        *metrics.ServerMetrics
	MetricsHandler http.Handler
	Timeout        time.Duration
}

type api struct {
	Deps
}

func NewRouter(d Deps) http.Handler {
	a := &api{Deps: d}
	r := mux.NewRouter()
	r.Use(requestID, recoverer, instrument(d.Metrics))

	r.HandleFunc("/health", a.health).Methods(http.MethodGet)
	mh := d.MetricsHandler
	if mh == nil {
		mh = metrics.Handler()
	}
	r.Handle("/metrics", mh).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(timeout(d.Timeout), limitBody)

	v1.HandleFunc("/orders", a.createOrder).Methods(http.MethodPost)
	v1.HandleFunc("/orders", a.listOrders).Methods(http.MethodGet)
	v1.HandleFunc("/orders/stats", a.orderStats).Methods(http.MethodGet)
	v1.HandleFunc("/orders/best-selling", a.bestSelling).Methods(http.MethodGet)
	v1.HandleFunc("/orders/revenue", a.revenue).Methods(http.MethodGet)
	v1.HandleFunc("/orders/{id}", a.getOrder).Methods(http.MethodGet)
	v1.HandleFunc("/orders/{id}/status", a.setOrderStatus).Methods(http.MethodPatch)
	v1.HandleFunc("/orders/{id}/cancel", a.cancelOrder).Methods(http.MethodPost)

	v1.HandleFunc("/products", a.listProducts).Methods(http.MethodGet)
	v1.HandleFunc("/products", a.createProduct).Methods(http.MethodPost)
	v1.HandleFunc("/products/low-stock", a.lowStock).Methods(http.MethodGet)
	v1.HandleFunc("/products/import", a.importProducts).Methods(http.MethodPost)
	v1.HandleFunc("/products/{id}", a.getProduct).Methods(http.MethodGet)
	v1.HandleFunc("/products/{id}", a.updateProduct).Methods(http.MethodPatch)
	v1.HandleFunc("/products/{id}", a.deleteProduct).Methods(http.MethodDelete)

	v1.HandleFunc("/customers", a.listCustomers).Methods(http.MethodGet)
	v1.HandleFunc("/customers/stats", a.customerStats).Methods(http.MethodGet)
	v1.HandleFunc("/customers/phone/{phone}", a.customerByPhone).Methods(http.MethodGet)
	v1.HandleFunc("/customers/{phone}/orders", a.customerOrders).Methods(http.MethodGet)
	v1.HandleFunc("/customers/{id}", a.updateCustomer).Methods(http.MethodPatch)
	v1.HandleFunc("/customers/{id}", a.deleteCustomer).Methods(http.MethodDelete)

	v1.HandleFunc("/auth/login", a.login).Methods(http.MethodPost)
	v1.HandleFunc("/auth/register", a.register).Methods(http.MethodPost)
	v1.HandleFunc("/users", a.listUsers).Methods(http.MethodGet)
	v1.HandleFunc("/users", a.createUser).Methods(http.MethodPost)
	v1.HandleFunc("/users/{id}", a.getUser).Methods(http.MethodGet)
	v1.HandleFunc("/users/{id}", a.updateUser).Methods(http.MethodPatch)
	v1.HandleFunc("/users/{id}", a.deactivateUser).Methods(http.MethodDelete)
	v1.HandleFunc("/users/{id}/password", a.changePassword).Methods(http.MethodPatch)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, domain.NotFoundf("route %s %s not found", r.Method, r.URL.Path))
	})
	return r
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	if a.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.Health.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "down", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func queryInt(r *http.Request, key string) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, domain.Validationf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func queryDecimal(r *http.Request, key string) (*decimal.Decimal, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, domain.Validationf("%s must be a number", key)
	}
	return &d, nil
}
