package domain

import "encoding/json"

// Envelope codes used by the cart backend.
const (
	CodeSuccess         = 200
	CodeBadRequest      = 400
	CodeUnauthorized    = 401
	CodeForbidden       = 403
	CodeNotFound        = 404
	CodeInternal        = 500
	CodeProductNotExist = 3001
	CodeProductOffShelf = 3002
	CodeStockNotEnough  = 3003
)

// Envelope wraps every backend response.
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// OK reports whether the envelope signals success.
func (e *Envelope) OK() bool {
	return e.Code == CodeSuccess
}

// Err returns nil for a successful envelope and a *BusinessError otherwise.
func (e *Envelope) Err() error {
	if e.OK() {
		return nil
	}
	return NewBusinessError(e.Code, e.Message)
}

// HasData reports whether the envelope carries a non-null payload.
func (e *Envelope) HasData() bool {
	return len(e.Data) > 0 && string(e.Data) != "null"
}

// Decode unmarshals the data payload into v. An empty payload leaves v untouched.
func (e *Envelope) Decode(v interface{}) error {
	if !e.HasData() {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}
