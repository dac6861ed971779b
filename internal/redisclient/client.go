package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sweet-shop/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

//go:embed scripts/refresh_session.lua
var refreshSessionScript string

//go:embed scripts/extend_lock.lua
var extendLockScript string

// Client keeps per browser session state: the bearer token, the cart
// snapshot and the purchase lock.
type Client struct {
	rdb           *redis.Client
	sessionTTL    time.Duration
	lockTTL       time.Duration
	releaseScript *redis.Script
	extendScript  *redis.Script
	refreshScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int, sessionTTL, lockTTL time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return New(rdb, sessionTTL, lockTTL), nil
}

// New wraps an existing connection
func New(rdb *redis.Client, sessionTTL, lockTTL time.Duration) *Client {
	return &Client{
		rdb:           rdb,
		sessionTTL:    sessionTTL,
		lockTTL:       lockTTL,
		releaseScript: redis.NewScript(releaseLockScript),
		extendScript:  redis.NewScript(extendLockScript),
		refreshScript: redis.NewScript(refreshSessionScript),
	}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func tokenKey(sid string) string {
	return fmt.Sprintf("session:%s:token", sid)
}

func cartKey(sid string) string {
	return fmt.Sprintf("session:%s:cart", sid)
}

func lockKey(sid string) string {
	return fmt.Sprintf("lock:purchase:%s", sid)
}

// LoadToken returns the stored token, empty when the session has none
func (c *Client) LoadToken(ctx context.Context, sid string) (string, error) {
	tok, err := c.rdb.Get(ctx, tokenKey(sid)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	return tok, nil
}

// SaveToken stores the token with the session TTL
func (c *Client) SaveToken(ctx context.Context, sid, token string) error {
	if err := c.rdb.Set(ctx, tokenKey(sid), token, c.sessionTTL).Err(); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// ClearToken drops the stored token
func (c *Client) ClearToken(ctx context.Context, sid string) error {
	return c.rdb.Del(ctx, tokenKey(sid)).Err()
}

// SaveCart stores the cart snapshot. An empty cart deletes the key.
func (c *Client) SaveCart(ctx context.Context, sid string, lines []models.CartLine) error {
	if len(lines) == 0 {
		return c.ClearCart(ctx, sid)
	}

	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	return c.rdb.Set(ctx, cartKey(sid), data, c.sessionTTL).Err()
}

// LoadCart returns the cart snapshot, nil when there is none
func (c *Client) LoadCart(ctx context.Context, sid string) ([]models.CartLine, error) {
	data, err := c.rdb.Get(ctx, cartKey(sid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	var lines []models.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	return lines, nil
}

// ClearCart drops the cart snapshot
func (c *Client) ClearCart(ctx context.Context, sid string) error {
	return c.rdb.Del(ctx, cartKey(sid)).Err()
}

// Touch slides the expiry of the session's token and cart
func (c *Client) Touch(ctx context.Context, sid string) error {
	_, err := c.refreshScript.Run(ctx, c.rdb,
		[]string{tokenKey(sid), cartKey(sid)},
		int(c.sessionTTL.Seconds())).Result()
	if err != nil {
		return fmt.Errorf("refresh session script failed: %w", err)
	}
	return nil
}

// Acquire takes the purchase lock of a browser session and returns the
// owner token that Extend and Release need. ok is false if another checkout
// holds it.
func (c *Client) Acquire(ctx context.Context, sid string) (owner string, ok bool, err error) {
	owner = uuid.NewString()
	ok, err = c.rdb.SetNX(ctx, lockKey(sid), owner, c.lockTTL).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return owner, true, nil
}

// Extend resets the lock TTL. Returns false if owner no longer holds it.
func (c *Client) Extend(ctx context.Context, sid, owner string) (bool, error) {
	n, err := c.extendScript.Run(ctx, c.rdb, []string{lockKey(sid)}, owner, c.lockTTL.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("extend lock script failed: %w", err)
	}
	return n == 1, nil
}

// Release drops the purchase lock if owner still holds it
func (c *Client) Release(ctx context.Context, sid, owner string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{lockKey(sid)}, owner).Result()
	if err != nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}
