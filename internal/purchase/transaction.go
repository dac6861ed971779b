// Package purchase commits a cart against the remote inventory.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sweet-shop/internal/apierr"
	"sweet-shop/internal/models"
	"sweet-shop/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrPurchaseInFlight is returned when the session already has a checkout running
var ErrPurchaseInFlight = errors.New("a purchase is already in progress")

// errLockLost halts a checkout whose lock expired between two lines
var errLockLost = apierr.New(apierr.KindUnknown, 0, "Checkout was interrupted, please try again")

// Purchaser buys quantity units of one product
type Purchaser interface {
	PurchaseSweet(ctx context.Context, token string, productID int64, quantity int) (*models.Product, error)
}

// Recorder receives every finished outcome, e.g. to build a receipt
type Recorder interface {
	RecordOutcome(ctx context.Context, sid string, s models.Session, outcome models.PurchaseOutcome) error
}

// Guard serializes checkouts of one browser session. Acquire hands out an
// owner token per checkout; Extend must be called before each further line
// so a long checkout never outlives its lock.
type Guard interface {
	Acquire(ctx context.Context, sid string) (owner string, ok bool, err error)
	Extend(ctx context.Context, sid, owner string) (bool, error)
	Release(ctx context.Context, sid, owner string) error
}

// Transaction commits cart lines one at a time
type Transaction struct {
	purchaser Purchaser
	recorder  Recorder
	guard     Guard
	logger    *zap.Logger
}

// NewTransaction creates a purchase transaction. recorder and guard may be nil.
func NewTransaction(purchaser Purchaser, recorder Recorder, guard Guard) *Transaction {
	return &Transaction{
		purchaser: purchaser,
		recorder:  recorder,
		guard:     guard,
		logger:    util.GetLogger(),
	}
}

// Checkout runs Commit for a browser session under the in-flight guard
// and hands the outcome to the recorder.
func (t *Transaction) Checkout(ctx context.Context, sid string, s models.Session, lines []models.CartLine) (models.PurchaseOutcome, error) {
	var beforeLine func(context.Context) error
	if t.guard != nil {
		owner, ok, err := t.guard.Acquire(ctx, sid)
		if err != nil {
			return models.PurchaseOutcome{}, fmt.Errorf("failed to acquire purchase lock: %w", err)
		}
		if !ok {
			util.PurchaseAttemptsTotal.WithLabelValues("in_flight").Inc()
			return models.PurchaseOutcome{}, ErrPurchaseInFlight
		}
		defer func() {
			if err := t.guard.Release(context.WithoutCancel(ctx), sid, owner); err != nil {
				t.logger.Error("Failed to release purchase lock",
					util.SessionField(sid),
					zap.Error(err))
			}
		}()
		beforeLine = func(ctx context.Context) error {
			held, err := t.guard.Extend(ctx, sid, owner)
			if err != nil {
				return &apierr.Error{
					Kind:    apierr.KindUnknown,
					Message: errLockLost.Message,
					Err:     fmt.Errorf("failed to extend purchase lock: %w", err),
				}
			}
			if !held {
				return errLockLost
			}
			return nil
		}
	}

	outcome := t.commit(ctx, s, lines, beforeLine)

	if t.recorder != nil && (len(outcome.CommittedLines) > 0 || outcome.FailedLine != nil) {
		if err := t.recorder.RecordOutcome(ctx, sid, s, outcome); err != nil {
			t.logger.Error("Failed to record purchase outcome",
				util.SessionField(sid),
				zap.Error(err))
		}
	}

	return outcome, nil
}

// Commit purchases lines strictly in order, issuing line n+1 only after
// line n succeeded. It stops at the first failure: later lines are not
// attempted and committed lines are not undone.
func (t *Transaction) Commit(ctx context.Context, s models.Session, lines []models.CartLine) models.PurchaseOutcome {
	return t.commit(ctx, s, lines, nil)
}

// commit runs beforeLine ahead of every line after the first; an error from
// it halts the commit at that line like a failed purchase.
func (t *Transaction) commit(ctx context.Context, s models.Session, lines []models.CartLine, beforeLine func(context.Context) error) models.PurchaseOutcome {
	ctx, span := util.StartSpan(ctx, "PurchaseTransaction.Commit")
	defer span.End()

	outcome := models.PurchaseOutcome{CommittedLines: []models.CartLine{}}

	if !s.IsAuthenticated() {
		outcome.Err = apierr.New(apierr.KindNotAuthenticated, 0, "Please log in to complete your purchase")
		util.PurchaseAttemptsTotal.WithLabelValues(string(apierr.KindNotAuthenticated)).Inc()
		return outcome
	}

	start := time.Now()
	defer func() {
		util.PurchaseLatency.Observe(time.Since(start).Seconds())
	}()

	for i, line := range lines {
		var err error
		if i > 0 && beforeLine != nil {
			err = beforeLine(ctx)
		}
		if err == nil {
			_, err = t.purchaser.PurchaseSweet(ctx, s.Token, line.ProductID, line.Quantity)
		}
		if err != nil {
			failed := line
			outcome.FailedLine = &failed
			outcome.Err = err

			kind := apierr.KindOf(err)
			util.PurchaseAttemptsTotal.WithLabelValues(string(kind)).Inc()
			span.RecordError(err)
			t.logger.Warn("Purchase halted",
				zap.Int("line", i+1),
				zap.Int("lines", len(lines)),
				zap.Int64("product_id", line.ProductID),
				zap.String("kind", string(kind)),
				zap.Error(err))
			return outcome
		}

		outcome.CommittedLines = append(outcome.CommittedLines, line)
		util.PurchaseLinesCommittedTotal.Inc()
	}

	util.PurchaseAttemptsTotal.WithLabelValues("success").Inc()
	t.logger.Info("Purchase committed",
		zap.Int("lines", len(lines)),
		zap.String("total", Total(outcome.CommittedLines).StringFixed(2)))
	return outcome
}

// Succeeded reports whether every line committed
func Succeeded(o models.PurchaseOutcome) bool {
	return o.Err == nil && o.FailedLine == nil
}

// NeedsLogin reports whether the caller should send the user to log in.
// The cart must be kept in that case.
func NeedsLogin(o models.PurchaseOutcome) bool {
	return errors.Is(o.Err, apierr.ErrNotAuthenticated)
}

// Total returns Σ quantity × unit price of lines
func Total(lines []models.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
