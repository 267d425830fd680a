package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"lingxian-cart/internal/domain"
	"lingxian-cart/internal/session"
)

const devLoginPath = "/user/auth/dev-login"

// LoginResult is the payload of a successful login.
type LoginResult struct {
	Token    string          `json:"token"`
	UserInfo json.RawMessage `json:"userInfo"`
}

// Login exchanges a user id for a bearer token on backends that enable
// development login, and stores the credentials in sess.
func Login(ctx context.Context, caller Caller, sess session.Store, userID string) (*LoginResult, error) {
	env, err := caller.Call(ctx, http.MethodPost, devLoginPath, map[string]string{"userId": userID})
	if err != nil {
		return nil, err
	}
	var res LoginResult
	if err := env.Decode(&res); err != nil {
		return nil, &domain.TransportError{Err: fmt.Errorf("decode login: %w", err)}
	}
	if res.Token == "" {
		return nil, domain.NewBusinessError(domain.CodeUnauthorized, "login returned no token")
	}
	if err := sess.Set(ctx, session.KeyToken, res.Token); err != nil {
		return nil, err
	}
	if len(res.UserInfo) > 0 {
		if err := sess.Set(ctx, session.KeyUserInfo, string(res.UserInfo)); err != nil {
			return nil, err
		}
	}
	return &res, nil
}
