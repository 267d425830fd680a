package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"lingxian-cart/internal/domain"
)

// DefaultCartRoot is the cart resource path relative to the API base URL.
const DefaultCartRoot = "/user/cart"

// Caller issues one enveloped request.
type Caller interface {
	Call(ctx context.Context, method, path string, body interface{}) (*domain.Envelope, error)
}

// CartAPI maps each cart operation to its endpoint.
type CartAPI struct {
	caller Caller
	root   string
}

func NewCartAPI(caller Caller, root string) *CartAPI {
	if root == "" {
		root = DefaultCartRoot
	}
	return &CartAPI{caller: caller, root: "/" + strings.Trim(root, "/")}
}

type addRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type selectRequest struct {
	Selected bool `json:"selected"`
}

// List fetches the full cart. A success envelope without data is treated as a
// malformed response so the caller keeps its cached cart.
func (a *CartAPI) List(ctx context.Context) (*domain.Cart, error) {
	env, err := a.caller.Call(ctx, http.MethodGet, a.root, nil)
	if err != nil {
		return nil, err
	}
	if !env.HasData() {
		return nil, &domain.TransportError{Err: errors.New("cart response has no data")}
	}
	var c domain.Cart
	if err := env.Decode(&c); err != nil {
		return nil, &domain.TransportError{Err: fmt.Errorf("decode cart: %w", err)}
	}
	return &c, nil
}

func (a *CartAPI) Add(ctx context.Context, productID string, quantity int) error {
	_, err := a.caller.Call(ctx, http.MethodPost, a.root, addRequest{ProductID: productID, Quantity: quantity})
	return err
}

func (a *CartAPI) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	_, err := a.caller.Call(ctx, http.MethodPut, a.item(id), quantityRequest{Quantity: quantity})
	return err
}

func (a *CartAPI) Remove(ctx context.Context, id string) error {
	_, err := a.caller.Call(ctx, http.MethodDelete, a.item(id), nil)
	return err
}

func (a *CartAPI) Select(ctx context.Context, id string, selected bool) error {
	_, err := a.caller.Call(ctx, http.MethodPut, a.item(id)+"/select", selectRequest{Selected: selected})
	return err
}

func (a *CartAPI) SelectMerchant(ctx context.Context, merchantID string, selected bool) error {
	path := a.root + "/merchant/" + url.PathEscape(merchantID) + "/select"
	_, err := a.caller.Call(ctx, http.MethodPut, path, selectRequest{Selected: selected})
	return err
}

func (a *CartAPI) SelectAll(ctx context.Context, selected bool) error {
	_, err := a.caller.Call(ctx, http.MethodPut, a.root+"/select-all", selectRequest{Selected: selected})
	return err
}

func (a *CartAPI) Clear(ctx context.Context) error {
	_, err := a.caller.Call(ctx, http.MethodDelete, a.root, nil)
	return err
}

func (a *CartAPI) item(id string) string {
	return a.root + "/" + url.PathEscape(id)
}
