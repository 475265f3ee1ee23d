package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/order/workflow"
	"github.com/nazeru/phoneshop-go/internal/store"
	"github.com/nazeru/phoneshop-go/pkg/idempotency"
)

// accountHeader names the staff account placing an order on a customer's
// behalf. It is informational only.
const accountHeader = "X-Account-ID"

func (a *api) createOrder(w http.ResponseWriter, r *http.Request) {
	key, ok := idempotency.Key(r)
	if !ok {
		writeError(w, r, domain.Validationf("%s is longer than %d characters", idempotency.Header, idempotency.MaxLen))
		return
	}
	var in workflow.CreateOrderInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.IdempotencyKey = key
	in.CreatedBy = strings.TrimSpace(r.Header.Get(accountHeader))

	res, err := a.Orders.CreateOrder(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.Replayed {
		idempotency.Replayed(w)
		writeData(w, http.StatusOK, res.Order)
		return
	}
	writeData(w, http.StatusCreated, res.Order)
}

func (a *api) listOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	orders, err := a.Orders.ListOrders(r.Context(), store.OrderFilter{
		Status:      domain.OrderStatus(strings.TrimSpace(q.Get("status"))),
		Phone:       q.Get("phone"),
		OrderNumber: strings.TrimSpace(q.Get("orderNumber")),
		Limit:       limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, orders)
}

func (a *api) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := a.Orders.GetOrder(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, o)
}

func (a *api) setOrderStatus(w http.ResponseWriter, r *http.Request) {
	var u workflow.StatusUpdate
	if err := decode(r, &u); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := a.Orders.SetOrderStatus(r.Context(), mux.Vars(r)["id"], u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, o)
}

func (a *api) cancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := a.Orders.CancelOrder(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, o)
}

func (a *api) dateRange(r *http.Request) (domain.DateRange, error) {
	q := r.URL.Query()
	return a.Reports.ParseRange(q.Get("startDate"), q.Get("endDate"))
}

func (a *api) orderStats(w http.ResponseWriter, r *http.Request) {
	rng, err := a.dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := a.Reports.OrderStats(r.Context(), rng)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

func (a *api) bestSelling(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	best, err := a.Reports.BestSelling(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, best)
}

func (a *api) revenue(w http.ResponseWriter, r *http.Request) {
	rng, err := a.dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	period := domain.Period(strings.TrimSpace(r.URL.Query().Get("period")))
	buckets, err := a.Reports.RevenueByPeriod(r.Context(), period, rng)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, buckets)
}
