package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/patric-chuzhbe/flatapi/internal/auth"
	"github.com/patric-chuzhbe/flatapi/internal/pizza"
)

// CartIDHeader carries the cart to pay for.
const CartIDHeader = "cartid"

type pizzaService interface {
	CreateUser(ctx context.Context, in pizza.NewUser) error
	GetUser(ctx context.Context, tokenID, email string) (*pizza.User, error)
	UpdateUser(ctx context.Context, tokenID string, in pizza.UserUpdate) error
	DeleteUser(ctx context.Context, tokenID, email string) error

	Login(ctx context.Context, in pizza.Credentials) (*auth.Token, error)
	GetToken(ctx context.Context, id string) (*auth.Token, error)
	ExtendToken(ctx context.Context, in pizza.TokenExtension) (*auth.Token, error)
	Logout(ctx context.Context, id string) error

	Menu(ctx context.Context, tokenID string) (pizza.Menu, error)
	CreateCart(ctx context.Context, tokenID string, items []pizza.CartItem) (string, error)
	ListCarts(ctx context.Context, tokenID string) ([]pizza.Cart, error)
	DeleteCart(ctx context.Context, tokenID, cartID string) error
	Purchase(ctx context.Context, tokenID, cartID string) (string, error)
}

type pizzaRouter struct {
	service pizzaService
}

type cartCreatedResponse struct {
	CartID string `json:"CartId"`
}

type cartsResponse struct {
	Cart []pizza.Cart `json:"Cart"`
}

type purchaseResponse struct {
	PurchaseID string `json:"PurchaseId"`
}

type emailPayload struct {
	Email string `json:"email"`
}

// NewPizza returns the mux of the pizza ordering API.
func NewPizza(service pizzaService, opts ...InitOption) *chi.Mux {
	router := newMux(newOptions(opts))
	p := &pizzaRouter{service: service}

	router.Route(`/api/users`, func(r chi.Router) {
		r.Post(`/`, p.postApiusers)
		r.With(auth.RequireToken).Get(`/`, p.getApiusers)
		r.With(auth.RequireToken).Put(`/`, p.putApiusers)
		r.With(auth.RequireToken).Delete(`/`, p.deleteApiusers)
	})
	router.Route(`/api/tokens`, func(r chi.Router) {
		r.Post(`/`, p.postApitokens)
		r.Get(`/`, p.getApitokens)
		r.Put(`/`, p.putApitokens)
		r.Delete(`/`, p.deleteApitokens)
	})
	router.With(auth.RequireToken).Get(`/api/menu`, p.getApimenu)
	router.Route(`/api/cart`, func(r chi.Router) {
		r.Use(auth.RequireToken)
		r.Post(`/`, p.postApicart)
		r.Get(`/`, p.getApicart)
		r.Delete(`/`, p.deleteApicart)
	})
	router.With(auth.RequireToken).Post(`/api/purchase`, p.postApipurchase)

	return router
}

// emailOf takes the identity key from the query, falling back to the body.
func emailOf(request *http.Request) string {
	if email := request.URL.Query().Get("email"); email != "" {
		return email
	}

	var payload emailPayload
	decodeBody(request, &payload)

	return payload.Email
}

func (p *pizzaRouter) postApiusers(response http.ResponseWriter, request *http.Request) {
	var in pizza.NewUser
	decodeBody(request, &in)

	if err := p.service.CreateUser(request.Context(), in); err != nil {
		renderError(response, err)
		return
	}

	renderJSON(response, nil)
}

func (p *pizzaRouter) getApiusers(response http.ResponseWriter, request *http.Request) {
	user, err := p.service.GetUser(request.Context(), auth.TokenFromContext(request.Context()), emailOf(request))
	if err != nil {
		renderError(response, err)
		return
	}

	renderJSON(response, user)
}

func (p *pizzaRouter) putApiusers(response http.ResponseWriter, request *http.Request) {
	var in pizza.UserUpdate
	decodeBody(request, &in)

	if err := p.service.UpdateUser(request.Context(), auth.TokenFromContext(request.Context()), in); err != nil {
		renderError(response, err)
		return
	}

	renderJSON(response, nil)
}

func (p *pizzaRouter) deleteApiusers(response http.ResponseWriter, request *http.Request) {
	if err := p.service.DeleteUser(request.Context(), auth.TokenFromContext(request.Context()), emailOf(request)); err != nil {
		renderError(response, err)
		return
	}

	renderJSON(response, nil)
}

func (p *pizzaRouter) postApitokens(response http.ResponseWriter, request *http.Request) {
	var in pizza.Credentials
	decodeBody(request, &in)

	token, err := p.service.Login(request.Context(), in)
	if err != nil {
		renderError(response, err)
		return
	}

	renderJSON(response, token)
}

func (p *pizzaRouter) getApitokens(response http.ResponseWriter, request *http.Request) {
	token, err := p.service.GetToken(request.Context(), request.URL.Query().Get("id"))
	if err != nil {
		renderError(response, err)
		return
	}

	renderJSON(response, token)
}

func (p *pizzaRouter) putApitokens(response http.ResponseWriter, request *http.Request) {
	var in pizza.TokenExtension
	decodeBody(request, &in)

	token, err := p.service.ExtendToken(request.Context(), in)
	if err != nil {
		renderError(response, err)
		return
	}

	renderJSON(response, token)
}

func (p *pizzaRouter) deleteApitokens(response http.ResponseWriter, request *http.Request) {
	if err := p.service.Logout(request.Context(), request.URL.Query().Get("id")); err != nil {
		renderError(response, err)
		return
	}

	renderJSON(response, nil)
}

func (p *pizzaRouter) getApimenu(response http.ResponseWriter, request *http.Request) {
	menu, err := p.service.Menu(request.Context(), auth.TokenFromContext(request.Context()))
	if err != nil {
		renderError(response, err)
		return
	}

	renderJSON(response, menu)
}

func (p *pizzaRouter) postApicart(response http.ResponseWriter, request *http.Request) {
	var items []pizza.CartItem
	decodeBody(request, &items)

	cartID, err := p.service.CreateCart(request.Context(), auth.TokenFromContext(request.Context()), items)
	if err != nil {
		renderError(response, err)
		return
	}

	renderJSON(response, cartCreatedResponse{CartID: cartID})
}

func (p *pizzaRouter) getApicart(response http.ResponseWriter, request *http.Request) {
	carts, err := p.service.ListCarts(request.Context(), auth.TokenFromContext(request.Context()))
	if err != nil {
		renderError(response, err)
		return
	}

	renderJSON(response, cartsResponse{Cart: carts})
}

func (p *pizzaRouter) deleteApicart(response http.ResponseWriter, request *http.Request) {
	err := p.service.DeleteCart(request.Context(), auth.TokenFromContext(request.Context()), request.URL.Query().Get("cartId"))
	if err != nil {
		renderError(response, err)
		return
	}

	renderJSON(response, nil)
}

func (p *pizzaRouter) postApipurchase(response http.ResponseWriter, request *http.Request) {
	purchaseID, err := p.service.Purchase(request.Context(), auth.TokenFromContext(request.Context()), request.Header.Get(CartIDHeader))
	if err != nil {
		renderError(response, err)
		return
	}

	renderJSON(response, purchaseResponse{PurchaseID: purchaseID})
}
