package changefeed

import (
	"fmt"
	"time"
)

// HistoryType mirrors the simple-history change markers.
type HistoryType string

const (
	Created  HistoryType = "+"
	Modified HistoryType = "~"
	Deleted  HistoryType = "-"
)

func (h HistoryType) Valid() bool {
	return h == Created || h == Modified || h == Deleted
}

// Change is one append-only change record. Every monitored write emits at
// least one, naming the affected top-level entity (child or employee) and
// the entity that triggered the write.
type Change struct {
	ModelName         string
	InstanceID        int64
	ParentModelName   string
	ParentInstanceID  int64
	TriggerModelName  string
	TriggerInstanceID int64
	HistoryType       HistoryType
	// ChangedTimestamp is filled from transaction_timestamp() when zero,
	// so all records of one transaction share a commit timestamp.
	ChangedTimestamp time.Time
}

func (c Change) validate() error {
	if c.ModelName == "" {
		return fmt.Errorf("changefeed: model_name is required")
	}
	if c.InstanceID == 0 {
		return fmt.Errorf("changefeed: instance_id is required")
	}
	if c.TriggerModelName == "" {
		return fmt.Errorf("changefeed: trigger_model_name is required")
	}
	if !c.HistoryType.Valid() {
		return fmt.Errorf("changefeed: invalid history_type %q", c.HistoryType)
	}
	return nil
}

// Record is a Change as read back from storage, with its assigned id.
type Record struct {
	ID int64
	Change
}
