package changefeed

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/varda/pkg/eventbus"
	"github.com/iota-uz/varda/pkg/retry"
)

const (
	relayBatchSize  = 500
	relayIdleSleep  = time.Second
	relayMaxBackoff = 30 * time.Second
)

// Relay streams committed change records to in-process subscribers in id
// order. Downstream change-data-capture consumers subscribe to *Record
// events on the bus. The cursor survives restarts in
// z9_changefeed_cursor.
type Relay struct {
	pool *pgxpool.Pool
	bus  eventbus.EventBus
	log  *logrus.Entry
	name string
}

func NewRelay(pool *pgxpool.Pool, bus eventbus.EventBus, log *logrus.Logger, consumerName string) *Relay {
	return &Relay{
		pool: pool,
		bus:  bus,
		log:  log.WithField("component", "changefeed.relay"),
		name: consumerName,
	}
}

const (
	selectCursorQuery = `SELECT last_id FROM z9_changefeed_cursor WHERE consumer = $1`
	upsertCursorQuery = `
		INSERT INTO z9_changefeed_cursor (consumer, last_id) VALUES ($1, $2)
		ON CONFLICT (consumer) DO UPDATE SET last_id = EXCLUDED.last_id`
	selectBatchQuery = `
		SELECT id, model_name, instance_id,
			COALESCE(parent_model_name, ''), COALESCE(parent_instance_id, 0),
			trigger_model_name, trigger_instance_id, history_type, changed_timestamp
		FROM z9_related_object_changed
		WHERE id > $1
		ORDER BY id
		LIMIT $2`
)

// Run polls until the context is cancelled.
func (r *Relay) Run(ctx context.Context) {
	failures := 0
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := r.relayOnce(ctx)
		if err != nil {
			failures++
			wait := retry.Backoff(failures, relayMaxBackoff)
			r.log.WithError(err).WithField("backoff", wait).Warn("relay pass failed")
			if !sleep(ctx, wait) {
				return
			}
			continue
		}
		failures = 0
		if n == 0 {
			if !sleep(ctx, relayIdleSleep) {
				return
			}
		}
	}
}

func (r *Relay) relayOnce(ctx context.Context) (int, error) {
	var cursor int64
	if err := r.pool.QueryRow(ctx, selectCursorQuery, r.name).Scan(&cursor); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, err
		}
		cursor = 0
	}

	rows, err := r.pool.Query(ctx, selectBatchQuery, cursor, relayBatchSize)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	records := make([]Record, 0, relayBatchSize)
	for rows.Next() {
		var rec Record
		var ht string
		if err := rows.Scan(
			&rec.ID, &rec.ModelName, &rec.InstanceID,
			&rec.ParentModelName, &rec.ParentInstanceID,
			&rec.TriggerModelName, &rec.TriggerInstanceID,
			&ht, &rec.ChangedTimestamp,
		); err != nil {
			return 0, err
		}
		rec.HistoryType = HistoryType(ht)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, rec := range records {
		r.bus.Publish(&rec)
		cursor = rec.ID
	}
	if len(records) > 0 {
		if _, err := r.pool.Exec(ctx, upsertCursorQuery, r.name, cursor); err != nil {
			return 0, err
		}
	}
	return len(records), nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
