package changefeed

import (
	"context"
	"fmt"

	"github.com/iota-uz/varda/pkg/constants"
	"github.com/iota-uz/varda/pkg/metrics"
	"github.com/iota-uz/varda/pkg/repo"
)

// Publisher writes change records inside the caller's transaction, so a
// reader can never observe a business row without its change record.
type Publisher interface {
	Record(ctx context.Context, tx repo.Tx, change Change) (int64, error)
}

type publisher struct {
	m *metrics.Metrics
}

func NewPublisher() Publisher {
	return &publisher{m: metrics.Use()}
}

const insertChangeQuery = `
	INSERT INTO z9_related_object_changed (
		model_name, instance_id, parent_model_name, parent_instance_id,
		trigger_model_name, trigger_instance_id, history_type, changed_timestamp
	) VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, 0), $5, $6, $7,
		COALESCE($8, transaction_timestamp()))
	RETURNING id`

func (p *publisher) Record(ctx context.Context, tx repo.Tx, change Change) (int64, error) {
	if err := change.validate(); err != nil {
		return 0, err
	}
	if ctx.Value(constants.TxKey) == nil {
		return 0, fmt.Errorf("changefeed: record requires an explicit transaction")
	}

	var ts any
	if !change.ChangedTimestamp.IsZero() {
		ts = change.ChangedTimestamp
	}

	var id int64
	err := tx.QueryRow(ctx, insertChangeQuery,
		change.ModelName,
		change.InstanceID,
		change.ParentModelName,
		change.ParentInstanceID,
		change.TriggerModelName,
		change.TriggerInstanceID,
		string(change.HistoryType),
		ts,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("changefeed enqueue: %w", err)
	}

	p.m.ChangefeedEnqueued.WithLabelValues(change.ModelName, string(change.HistoryType)).Inc()
	return id, nil
}
