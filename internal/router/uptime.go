package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/patric-chuzhbe/flatapi/internal/auth"
	"github.com/patric-chuzhbe/flatapi/internal/uptime"
)

type uptimeService interface {
	CreateUser(ctx context.Context, in uptime.NewUser) error
	GetUser(ctx context.Context, tokenID, phone string) (*uptime.User, error)
	UpdateUser(ctx context.Context, tokenID string, in uptime.UserUpdate) error
	DeleteUser(ctx context.Context, tokenID, phone string) error

	Login(ctx context.Context, in uptime.Credentials) (*auth.Token, error)
	GetToken(ctx context.Context, id string) (*auth.Token, error)
	ExtendToken(ctx context.Context, in uptime.TokenExtension) (*auth.Token, error)
	Logout(ctx context.Context, id string) error

	CreateCheck(ctx context.Context, tokenID string, in uptime.NewCheck) (*uptime.Check, error)
	GetCheck(ctx context.Context, tokenID, id string) (*uptime.Check, error)
	UpdateCheck(ctx context.Context, tokenID string, in uptime.CheckUpdate) (*uptime.Check, error)
	DeleteCheck(ctx context.Context, tokenID, id string) error
	ListChecks(ctx context.Context, tokenID string) ([]uptime.Check, error)
}

type uptimeRouter struct {
	service uptimeService
}

// NewUptime returns the mux of the uptime monitor.
func NewUptime(service uptimeService, opts ...InitOption) *chi.Mux {
	router := newMux(newOptions(opts))
	u := &uptimeRouter{service: service}

	router.Route(`/api/users`, func(r chi.Router) {
		r.Post(`/`, u.postApiusers)
		r.With(auth.RequireToken).Get(`/`, u.getApiusers)
		r.With(auth.RequireToken).Put(`/`, u.putApiusers)
		r.With(auth.RequireToken).Delete(`/`, u.deleteApiusers)
	})
	router.Route(`/api/tokens`, func(r chi.Router) {
		r.Post(`/`, u.postApitokens)
		r.Get(`/`, u.getApitokens)
		r.Put(`/`, u.putApitokens)
		r.Delete(`/`, u.deleteApitokens)
	})
	router.Route(`/api/checks`, func(r chi.Router) {
		r.Use(auth.RequireToken)
		r.Post(`/`, u.postApichecks)
		r.Get(`/`, u.getApichecks)
		r.Put(`/`, u.putApichecks)
		r.Delete(`/`, u.deleteApichecks)
		r.Get(`/all`, u.getApichecksall)
	})

	return router
}

func (u *uptimeRouter) postApiusers(response http.ResponseWriter, request *http.Request) {
	var in uptime.NewUser
	decodeBody(request, &in)

	if err := u.service.CreateUser(request.Context(), in); err != nil {
		renderError(response, err)
		return
	}

	renderJSON(response, nil)
}

func (u *uptimeRouter) getApiusers(response http.ResponseWriter, request *http.Request) {
	user, err := u.service.GetUser(request.Context(), auth.TokenFromContext(request.Context()), request.URL.Query().Get("phone"))
	if err != nil {
		renderError(response, err)
		return
	}

	renderJSON(response, user)
}

func (u *uptimeRouter) putApiusers(response http.ResponseWriter, request *http.Request) {
	var in uptime.UserUpdate
	decodeBody(request, &in)

	if err := u.service.UpdateUser(request.Context(), auth.TokenFromContext(request.Context()), in); err != nil {
		renderError(response, err)
		return
	}

	renderJSON(response, nil)
}

func (u *uptimeRouter) deleteApiusers(response http.ResponseWriter, request *http.Request) {
	err := u.service.DeleteUser(request.Context(), auth.TokenFromContext(request.Context()), request.URL.Query().Get("phone"))
	if err != nil {
		renderError(response, err)
		return
	}

	renderJSON(response, nil)
}

func (u *uptimeRouter) postApitokens(response http.ResponseWriter, request *http.Request) {
	var in uptime.Credentials
	decodeBody(request, &in)

	token, err := u.service.Login(request.Context(), in)
	if err != nil {
		renderError(response, err)
		return
	}

	renderJSON(response, token)
}

func (u *uptimeRouter) getApitokens(response http.ResponseWriter, request *http.Request) {
	token, err := u.service.GetToken(request.Context(), request.URL.Query().Get("id"))
	if err != nil {
		renderError(response, err)
		return
	}

	renderJSON(response, token)
}

func (u *uptimeRouter) putApitokens(response http.ResponseWriter, request *http.Request) {
	var in uptime.TokenExtension
	decodeBody(request, &in)

	token, err := u.service.ExtendToken(request.Context(), in)
	if err != nil {
		renderError(response, err)
		return
	}

	renderJSON(response, token)
}

func (u *uptimeRouter) deleteApitokens(response http.ResponseWriter, request *http.Request) {
	if err := u.service.Logout(request.Context(), request.URL.Query().Get("id")); err != nil {
		renderError(response, err)
		return
	}

	renderJSON(response, nil)
}

func (u *uptimeRouter) postApichecks(response http.ResponseWriter, request *http.Request) {
	var in uptime.NewCheck
	decodeBody(request, &in)

	check, err := u.service.CreateCheck(request.Context(), auth.TokenFromContext(request.Context()), in)
	if err != nil {
		renderError(response, err)
		return
	}

	renderJSON(response, check)
}

func (u *uptimeRouter) getApichecks(response http.ResponseWriter, request *http.Request) {
	check, err := u.service.GetCheck(request.Context(), auth.TokenFromContext(request.Context()), request.URL.Query().Get("id"))
	if err != nil {
		renderError(response, err)
		return
	}

	renderJSON(response, check)
}

func (u *uptimeRouter) putApichecks(response http.ResponseWriter, request *http.Request) {
	var in uptime.CheckUpdate
	decodeBody(request, &in)

	check, err := u.service.UpdateCheck(request.Context(), auth.TokenFromContext(request.Context()), in)
	if err != nil {
		renderError(response, err)
		return
	}

	renderJSON(response, check)
}

func (u *uptimeRouter) deleteApichecks(response http.ResponseWriter, request *http.Request) {
	err := u.service.DeleteCheck(request.Context(), auth.TokenFromContext(request.Context()), request.URL.Query().Get("id"))
	if err != nil {
		renderError(response, err)
		return
	}

	renderJSON(response, nil)
}

func (u *uptimeRouter) getApichecksall(response http.ResponseWriter, request *http.Request) {
	checks, err := u.service.ListChecks(request.Context(), auth.TokenFromContext(request.Context()))
	if err != nil {
		renderError(response, err)
		return
	}

	renderJSON(response, checks)
}
