// Package sweetapi is the typed HTTP client for the remote sweets service.
package sweetapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sweet-shop/internal/apierr"
	"sweet-shop/internal/models"
	"sweet-shop/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Token is the login response body
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// RegisterRequest is the register request body
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SweetInput is the product payload for create and update
type SweetInput struct {
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// MarshalJSON writes price as a JSON number, the backend schema declares a float
func (in SweetInput) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name     string      `json:"name"`
		Category string      `json:"category"`
		Price    json.Number `json:"price"`
		Quantity int         `json:"quantity"`
	}{
		Name:     in.Name,
		Category: in.Category,
		Price:    json.Number(in.Price.String()),
		Quantity: in.Quantity,
	})
}

type quantityBody struct {
	Quantity int `json:"quantity"`
}

// Client talks to the sweets REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new sweets API client
func NewClient(baseURL string, timeout time.Duration) *Client {
	return NewClientWithHTTP(baseURL, &http.Client{Timeout: timeout})
}

// NewClientWithHTTP creates a client around a caller-provided http.Client
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     util.GetLogger(),
	}
}

// Login exchanges credentials for a bearer token
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := c.newRequest(ctx, http.MethodPost, "/api/auth/login", "", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tok Token
	if err := c.do(req, "login", &tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", apierr.Transport(fmt.Errorf("login response carried no access_token"))
	}
	return tok.AccessToken, nil
}

// Register creates a new account and returns the created record
func (c *Client) Register(ctx context.Context, body RegisterRequest) (json.RawMessage, error) {
	var created json.RawMessage
	err := c.sendJSON(ctx, http.MethodPost, "/api/auth/register", "", "register", body, &created)
	return created, err
}

// ListSweets returns the unfiltered catalog
func (c *Client) ListSweets(ctx context.Context, token string) ([]models.Product, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/sweets", token, nil)
	if err != nil {
		return nil, err
	}

	products := []models.Product{}
	if err := c.do(req, "list_sweets", &products); err != nil {
		return nil, err
	}
	return products, nil
}

// SearchSweets returns the catalog filtered by query
func (c *Client) SearchSweets(ctx context.Context, token string, query url.Values) ([]models.Product, error) {
	path := "/api/sweets/search"
	if qs := query.Encode(); qs != "" {
		path += "?" + qs
	}

	req, err := c.newRequest(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}

	products := []models.Product{}
	if err := c.do(req, "search_sweets", &products); err != nil {
		return nil, err
	}
	return products, nil
}

// CreateSweet creates a product through the create endpoint
func (c *Client) CreateSweet(ctx context.Context, token string, in SweetInput) (*models.Product, error) {
	var p models.Product
	if err := c.sendJSON(ctx, http.MethodPost, "/api/sweets/create", token, "create_sweet", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateSweet replaces a product's fields
func (c *Client) UpdateSweet(ctx context.Context, token string, id int64, in SweetInput) (*models.Product, error) {
	var p models.Product
	if err := c.sendJSON(ctx, http.MethodPut, sweetPath(id, ""), token, "update_sweet", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteSweet removes a product
func (c *Client) DeleteSweet(ctx context.Context, token string, id int64) error {
	req, err := c.newRequest(ctx, http.MethodDelete, sweetPath(id, ""), token, nil)
	if err != nil {
		return err
	}
	return c.do(req, "delete_sweet", nil)
}

// RestockSweet adds quantity units to a product's stock
func (c *Client) RestockSweet(ctx context.Context, token string, id int64, quantity int) (*models.Product, error) {
	var p models.Product
	body := quantityBody{Quantity: quantity}
	if err := c.sendJSON(ctx, http.MethodPost, sweetPath(id, "restock"), token, "restock_sweet", body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PurchaseSweet buys quantity units of a product
func (c *Client) PurchaseSweet(ctx context.Context, token string, id int64, quantity int) (*models.Product, error) {
	var p models.Product
	body := quantityBody{Quantity: quantity}
	if err := c.sendJSON(ctx, http.MethodPost, sweetPath(id, "purchase"), token, "purchase_sweet", body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ProbeRestock sends the deliberately invalid restock request used as a
// capability probe and returns the raw status code. The empty body can never
// restock anything: admins get a validation error, everyone else an auth error.
func (c *Client) ProbeRestock(ctx context.Context, token string) (int, error) {
	ctx, span := util.StartSpan(ctx, "SweetAPI.ProbeRestock")
	defer span.End()

	req, err := c.newRequest(ctx, http.MethodPost, sweetPath(0, "restock"), token, strings.NewReader("{}"))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe("probe_restock", 0, start)
		span.RecordError(err)
		return 0, apierr.Transport(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	c.observe("probe_restock", resp.StatusCode, start)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp.StatusCode, nil
}

func (c *Client) sendJSON(ctx context.Context, method, path, token, op string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s body: %w", op, err)
	}

	req, err := c.newRequest(ctx, method, path, token, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, op, out)
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do executes req and decodes a 2xx JSON body into out. Non-2xx responses
// are classified into *apierr.Error using the body's detail or message.
func (c *Client) do(req *http.Request, op string, out any) error {
	ctx, span := util.StartSpan(req.Context(), "SweetAPI."+op)
	defer span.End()
	req = req.WithContext(ctx)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(op, 0, start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		c.logger.Warn("Sweets service unreachable",
			zap.String("operation", op),
			zap.Error(err))
		return apierr.Transport(err)
	}
	defer resp.Body.Close()

	c.observe(op, resp.StatusCode, start)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return apierr.Transport(fmt.Errorf("failed to read %s response: %w", op, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := apierr.FromStatus(resp.StatusCode, errorMessage(raw))
		span.SetStatus(codes.Error, string(apiErr.Kind))
		c.logger.Debug("Sweets service rejected request",
			zap.String("operation", op),
			zap.Int("status", resp.StatusCode),
			zap.String("kind", string(apiErr.Kind)),
			zap.String("message", apiErr.Message))
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		span.RecordError(err)
		return apierr.Transport(fmt.Errorf("failed to decode %s response: %w", op, err))
	}
	return nil
}

func (c *Client) observe(op string, status int, start time.Time) {
	util.SweetAPIRequestDuration.WithLabelValues(op, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
}

// errorMessage extracts detail or message from an error body. FastAPI
// validation errors carry detail as a list; those fall back to the raw text.
func errorMessage(raw []byte) string {
	var body struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw))
	}
	if s, ok := body.Detail.(string); ok && s != "" {
		return s
	}
	if body.Message != "" {
		return body.Message
	}
	if body.Detail != nil {
		if b, err := json.Marshal(body.Detail); err == nil {
			return string(b)
		}
	}
	return ""
}

func sweetPath(id int64, action string) string {
	p := "/api/sweets/" + strconv.FormatInt(id, 10)
	if action != "" {
		p += "/" + action
	}
	return p
}
