package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"sweet-shop/internal/apierr"
	"sweet-shop/internal/models"
	"sweet-shop/internal/sweetapi"
	"sweet-shop/internal/util"

	"go.uber.org/zap"
)

// Registrar is the remote register endpoint
type Registrar interface {
	Register(ctx context.Context, body sweetapi.RegisterRequest) (json.RawMessage, error)
}

// Login authenticates against the sweets service, keeps the token for sid
// and returns the resolved session with the cookie to set.
func (r *Resolver) Login(ctx context.Context, sid, username, password string, secure bool) (models.Session, *http.Cookie, error) {
	ctx, span := util.StartSpan(ctx, "SessionResolver.Login")
	defer span.End()

	if username == "" || password == "" {
		return models.GuestSession(), nil, apierr.New(apierr.KindValidationFailed, http.StatusBadRequest, "Please enter email and password")
	}
	if r.auth == nil {
		return models.GuestSession(), nil, fmt.Errorf("no authenticator configured")
	}

	token, err := r.auth.Login(ctx, username, password)
	if err != nil {
		return models.GuestSession(), nil, err
	}

	if r.store != nil {
		if err := r.store.SaveToken(ctx, sid, token); err != nil {
			// the cookie still carries the token, so the login stands
			r.logger.Error("Failed to persist session token",
				util.SessionField(sid),
				zap.Error(err))
		}
	}

	s := r.Resolve(ctx, staticSource(token))
	r.logger.Info("Session logged in",
		util.SessionField(sid),
		zap.String("role", string(s.Role)))

	return s, LoginCookie(token, secure), nil
}

// Clear drops every local copy of the token for sid and returns the cookie
// that expires the browser's copy.
func (r *Resolver) Clear(ctx context.Context, sid string) *http.Cookie {
	if r.store != nil && sid != "" {
		if err := r.store.ClearToken(ctx, sid); err != nil {
			r.logger.Error("Failed to clear session token",
				util.SessionField(sid),
				zap.Error(err))
		}
	}
	return ExpiredCookie()
}

// Register creates an account. Confirmation must match password.
func Register(ctx context.Context, reg Registrar, username, email, password, confirm string) error {
	if username == "" || email == "" || password == "" {
		return apierr.New(apierr.KindValidationFailed, http.StatusBadRequest, "Please fill all fields")
	}
	if password != confirm {
		return apierr.New(apierr.KindValidationFailed, http.StatusBadRequest, "Passwords do not match")
	}

	_, err := reg.Register(ctx, sweetapi.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
	return err
}

type staticSource string

func (s staticSource) Token(context.Context) (string, bool) {
	return string(s), s != ""
}
