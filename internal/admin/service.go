// Package admin forwards catalog management requests for admin sessions.
package admin

import (
	"context"
	"net/url"
	"strings"

	"sweet-shop/internal/apierr"
	"sweet-shop/internal/models"
	"sweet-shop/internal/sweetapi"
	"sweet-shop/internal/util"

	"go.uber.org/zap"
)

// Catalog is the remote catalog management API
type Catalog interface {
	CreateSweet(ctx context.Context, token string, in sweetapi.SweetInput) (*models.Product, error)
	UpdateSweet(ctx context.Context, token string, id int64, in sweetapi.SweetInput) (*models.Product, error)
	DeleteSweet(ctx context.Context, token string, id int64) error
	RestockSweet(ctx context.Context, token string, id int64, quantity int) (*models.Product, error)
}

// Service validates admin input before forwarding it
type Service struct {
	catalog Catalog
	logger  *zap.Logger
}

// NewService creates an admin service
func NewService(catalog Catalog) *Service {
	return &Service{
		catalog: catalog,
		logger:  util.GetLogger(),
	}
}

// Create adds a new sweet to the catalog
func (s *Service) Create(ctx context.Context, sess models.Session, in sweetapi.SweetInput) (*models.Product, error) {
	if err := requireLogin(sess); err != nil {
		return nil, err
	}
	in, err := validate(in)
	if err != nil {
		return nil, err
	}

	p, err := s.catalog.CreateSweet(ctx, sess.Token, in)
	if err != nil {
		s.logFailure("create", 0, err)
		return nil, err
	}
	s.logger.Info("Sweet created", zap.Int64("product_id", p.ID), zap.String("name", p.Name))
	return p, nil
}

// Update replaces an existing sweet
func (s *Service) Update(ctx context.Context, sess models.Session, id int64, in sweetapi.SweetInput) (*models.Product, error) {
	if err := requireLogin(sess); err != nil {
		return nil, err
	}
	in, err := validate(in)
	if err != nil {
		return nil, err
	}

	p, err := s.catalog.UpdateSweet(ctx, sess.Token, id, in)
	if err != nil {
		s.logFailure("update", id, err)
		return nil, err
	}
	s.logger.Info("Sweet updated", zap.Int64("product_id", id))
	return p, nil
}

// Delete removes a sweet
func (s *Service) Delete(ctx context.Context, sess models.Session, id int64) error {
	if err := requireLogin(sess); err != nil {
		return err
	}
	if err := s.catalog.DeleteSweet(ctx, sess.Token, id); err != nil {
		s.logFailure("delete", id, err)
		return err
	}
	s.logger.Info("Sweet deleted", zap.Int64("product_id", id))
	return nil
}

// Restock adds quantity units to a sweet's stock
func (s *Service) Restock(ctx context.Context, sess models.Session, id int64, quantity int) (*models.Product, error) {
	if err := requireLogin(sess); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, apierr.New(apierr.KindValidationFailed, 0, "Restock quantity must be greater than zero")
	}

	p, err := s.catalog.RestockSweet(ctx, sess.Token, id, quantity)
	if err != nil {
		s.logFailure("restock", id, err)
		return nil, err
	}
	s.logger.Info("Sweet restocked",
		zap.Int64("product_id", id),
		zap.Int("added", quantity),
		zap.Int("stock", p.Quantity))
	return p, nil
}

// ErrorRedirect is where the dashboard sends the browser after a failed action
func ErrorRedirect(err error) string {
	return "/admin?error=" + url.QueryEscape(apierr.Message(err))
}

func (s *Service) logFailure(action string, id int64, err error) {
	s.logger.Warn("Admin action failed",
		zap.String("action", action),
		zap.Int64("product_id", id),
		zap.String("kind", string(apierr.KindOf(err))),
		zap.Error(err))
}

// Role is only a display hint, the server decides whether the token may
// manage the catalog. Guests are refused locally since they have no token.
func requireLogin(sess models.Session) error {
	if !sess.IsAuthenticated() {
		return apierr.New(apierr.KindNotAuthenticated, 0, "Please log in as an admin")
	}
	return nil
}

func validate(in sweetapi.SweetInput) (sweetapi.SweetInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)

	switch {
	case in.Name == "":
		return in, apierr.New(apierr.KindValidationFailed, 0, "Name is required")
	case in.Category == "":
		return in, apierr.New(apierr.KindValidationFailed, 0, "Category is required")
	case in.Price.IsNegative():
		return in, apierr.New(apierr.KindValidationFailed, 0, "Price cannot be negative")
	case in.Quantity < 0:
		return in, apierr.New(apierr.KindValidationFailed, 0, "Quantity cannot be negative")
	}
	return in, nil
}
