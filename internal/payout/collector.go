package payout

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/silostrike/backend/internal/models"
	"github.com/silostrike/backend/internal/store"
	log "github.com/sirupsen/logrus"
)

const (
	lockKey     = "lock:fee_collection"
	lockTTL     = 2 * time.Minute
	claimBatch  = 10
	runDeadline = 2 * time.Minute
)

// releaseScript deletes the lock only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Payer sends one transfer. Implemented by Client.
type Payer interface {
	Payout(ctx context.Context, req PayoutRequest) (*PayoutResponse, error)
}

// WithdrawalStore is the persistence the collector drives.
type WithdrawalStore interface {
	Reserve(ctx context.Context, destination string, threshold decimal.Decimal) (*models.FeeWithdrawal, error)
	ClaimPending(ctx context.Context, limit int) ([]models.FeeWithdrawal, error)
	MarkPaid(ctx context.Context, id, reference string) error
	MarkFailed(ctx context.Context, id, reason string, maxAttempts int) (string, error)
	RequeueStuck(ctx context.Context, cutoff time.Time) (int64, error)
}

// CollectorConfig controls fee withdrawals.
type CollectorConfig struct {
	Destination string
	Threshold   decimal.Decimal
	MaxAttempts int
	// StuckAfter returns processing withdrawals to pending, covering a crash mid-payout.
	StuckAfter time.Duration
}

// CollectResult summarizes one run.
type CollectResult struct {
	Skipped  bool   `json:"skipped,omitempty"`
	Reserved string `json:"reserved,omitempty"`
	Paid     int    `json:"paid"`
	Failed   int    `json:"failed"`
	Requeued int64  `json:"requeued"`
}

// Collector moves accrued fees to the settlement address. It implements
// game.FeeTrigger; runs never overlap across instances thanks to a Redis lock.
type Collector struct {
	store WithdrawalStore
	payer Payer
	rdb   *redis.Client
	cfg   CollectorConfig
	wg    sync.WaitGroup
	now   func() time.Time
}

// NewCollector creates a collector. payer and rdb may be nil.
func NewCollector(store WithdrawalStore, payer Payer, rdb *redis.Client, cfg CollectorConfig) *Collector {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.StuckAfter <= 0 {
		cfg.StuckAfter = 10 * time.Minute
	}
	return &Collector{store: store, payer: payer, rdb: rdb, cfg: cfg, now: time.Now}
}

// TriggerWithdrawal starts a collection run in the background.
func (c *Collector) TriggerWithdrawal() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), runDeadline)
		defer cancel()
		if _, err := c.Collect(ctx); err != nil {
			log.WithError(err).Error("fee collection failed")
		}
	}()
}

// Wait blocks until background runs finish.
func (c *Collector) Wait() {
	c.wg.Wait()
}

// Collect reserves accrued fees above the threshold and pays out pending withdrawals.
func (c *Collector) Collect(ctx context.Context) (*CollectResult, error) {
	res := &CollectResult{}
	if c.payer == nil || c.cfg.Destination == "" {
		res.Skipped = true
		return res, nil
	}

	release, ok, err := c.lock(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Debug("fee collection already running")
		res.Skipped = true
		return res, nil
	}
	defer release()

	if res.Requeued, err = c.store.RequeueStuck(ctx, c.now().Add(-c.cfg.StuckAfter)); err != nil {
		return nil, err
	}

	w, err := c.store.Reserve(ctx, c.cfg.Destination, c.cfg.Threshold)
	if err != nil {
		return nil, err
	}
	if w != nil {
		res.Reserved = w.ID
		log.WithFields(log.Fields{"withdrawal_id": w.ID, "amount": w.Amount.String()}).Info("reserved accrued fees")
	}

	claimed, err := c.store.ClaimPending(ctx, claimBatch)
	if err != nil {
		return nil, err
	}
	for _, w := range claimed {
		if c.pay(ctx, w) {
			res.Paid++
		} else {
			res.Failed++
		}
	}
	return res, nil
}

func (c *Collector) pay(ctx context.Context, w models.FeeWithdrawal) bool {
	entry := log.WithFields(log.Fields{"withdrawal_id": w.ID, "amount": w.Amount.String(), "attempt": w.Attempts})

	resp, err := c.payer.Payout(ctx, PayoutRequest{Reference: w.ID, Destination: w.Destination, Amount: w.Amount})
	if err != nil {
		status, markErr := c.store.MarkFailed(ctx, w.ID, err.Error(), c.cfg.MaxAttempts)
		if markErr != nil {
			entry.WithError(markErr).Error("failed to record payout failure")
			return false
		}
		if status == store.WithdrawalFailed {
			entry.WithError(err).Error("fee withdrawal failed permanently, amount returned to accrued")
		} else {
			entry.WithError(err).Warn("fee withdrawal failed, will retry")
		}
		return false
	}

	if err := c.store.MarkPaid(ctx, w.ID, resp.TransactionID); err != nil {
		entry.WithError(err).Error("payout sent but not recorded")
		return false
	}
	entry.WithField("transaction_id", resp.TransactionID).Info("fee withdrawal paid")
	return true
}

// lock takes the cross-instance collection lock. Without Redis every run proceeds.
func (c *Collector) lock(ctx context.Context) (func(), bool, error) {
	if c.rdb == nil {
		return func() {}, true, nil
	}
	token := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, lockKey, token, lockTTL).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return func() {
		if err := releaseScript.Run(context.Background(), c.rdb, []string{lockKey}, token).Err(); err != nil {
			log.WithError(err).Warn("failed to release fee collection lock")
		}
	}, true, nil
}
