package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/store"
)

func (a *api) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	minPrice, err := queryDecimal(r, "minPrice")
	if err != nil {
		writeError(w, r, err)
		return
	}
	maxPrice, err := queryDecimal(r, "maxPrice")
	if err != nil {
		writeError(w, r, err)
		return
	}
	inactive, _ := strconv.ParseBool(q.Get("includeInactive"))

	products, err := a.Catalog.List(r.Context(), store.ProductFilter{
		Search:          strings.TrimSpace(q.Get("search")),
		Brand:           strings.TrimSpace(q.Get("brand")),
		MinPrice:        minPrice,
		MaxPrice:        maxPrice,
		RAM:             strings.TrimSpace(q.Get("ram")),
		ROM:             strings.TrimSpace(q.Get("rom")),
		IncludeInactive: inactive,
		Sort:            store.ProductSort(strings.TrimSpace(q.Get("sort"))),
		Limit:           limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, products)
}

func (a *api) createProduct(w http.ResponseWriter, r *http.Request) {
	p := domain.Product{Active: true}
	if err := decode(r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := a.Catalog.Create(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, created)
}

func (a *api) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := a.Catalog.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

func (a *api) updateProduct(w http.ResponseWriter, r *http.Request) {
	var patch json.RawMessage
	if err := decode(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := a.Catalog.Update(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

func (a *api) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.Catalog.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, "product deleted")
}

func (a *api) lowStock(w http.ResponseWriter, r *http.Request) {
	threshold, err := queryInt(r, "threshold")
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	products, err := a.Catalog.LowStock(r.Context(), threshold, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, products)
}

// importProducts takes the JSON array of products as the request body.
func (a *api) importProducts(w http.ResponseWriter, r *http.Request) {
	res, err := a.Catalog.Import(r.Context(), r.Body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}
