package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/nazeru/phoneshop-go/internal/account"
	"github.com/nazeru/phoneshop-go/internal/customer"
	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/store"
)

func (a *api) listCustomers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	cs, err := a.Customers.List(r.Context(), store.CustomerFilter{Search: r.URL.Query().Get("search"), Limit: limit})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, cs)
}

func (a *api) customerStats(w http.ResponseWriter, r *http.Request) {
	top, err := queryInt(r, "top")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rep, err := a.Reports.CustomerStats(r.Context(), top)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, rep)
}

func (a *api) customerByPhone(w http.ResponseWriter, r *http.Request) {
	c, err := a.Customers.ByPhone(r.Context(), mux.Vars(r)["phone"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, c)
}

func (a *api) customerOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	orders, err := a.Customers.History(r.Context(), mux.Vars(r)["phone"], limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, orders)
}

func (a *api) updateCustomer(w http.ResponseWriter, r *http.Request) {
	var u customer.ProfileUpdate
	if err := decode(r, &u); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := a.Customers.UpdateProfile(r.Context(), mux.Vars(r)["id"], u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, c)
}

func (a *api) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := a.Customers.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, "customer deleted")
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := a.Accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (a *api) register(w http.ResponseWriter, r *http.Request) {
	var in account.Registration
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := a.Accounts.RegisterCustomer(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, c)
}

func (a *api) listUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	users, err := a.Accounts.List(r.Context(), store.AccountFilter{
		Search: strings.TrimSpace(q.Get("search")),
		Role:   domain.Role(strings.TrimSpace(q.Get("role"))),
		Limit:  limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, users)
}

func (a *api) createUser(w http.ResponseWriter, r *http.Request) {
	var in account.StaffInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := a.Accounts.CreateStaff(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, u)
}

func (a *api) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := a.Accounts.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, u)
}

func (a *api) updateUser(w http.ResponseWriter, r *http.Request) {
	var in account.StaffUpdate
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := a.Accounts.Update(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, u)
}

func (a *api) deactivateUser(w http.ResponseWriter, r *http.Request) {
	if err := a.Accounts.Deactivate(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, "user deactivated")
}

type passwordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (a *api) changePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.Accounts.ChangePassword(r.Context(), mux.Vars(r)["id"], req.OldPassword, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, "password changed")
}
