package persistence

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Record is one tag read.
type Record struct {
	ID      int64
	Code    string
	Device  string
	Antenna int
	ReadAt  time.Time
	Synced  bool
}

// ErrInvalidRecord reports a record that cannot be stored.
var ErrInvalidRecord = errors.New("invalid record")

func (r *Record) validate() error {
	if r == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}
	if strings.TrimSpace(r.Code) == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidRecord)
	}
	return nil
}

// RecordFromPayload converts an envelope payload into a Record. Recognized
// keys are code, device, antenna and read_at; code is required.
func RecordFromPayload(payload map[string]any) (Record, error) {
	var rec Record
	code, _ := payload["code"].(string)
	rec.Code = strings.TrimSpace(code)
	if rec.Code == "" {
		return Record{}, fmt.Errorf("%w: payload has no code", ErrInvalidRecord)
	}
	if device, ok := payload["device"].(string); ok {
		rec.Device = device
	}
	switch antenna := payload["antenna"].(type) {
	case float64:
		rec.Antenna = int(antenna)
	case int:
		rec.Antenna = antenna
	case nil:
	default:
		return Record{}, fmt.Errorf("%w: antenna is %T", ErrInvalidRecord, antenna)
	}
	if readAt, ok := payload["read_at"].(string); ok && readAt != "" {
		ts, err := time.Parse(time.RFC3339Nano, readAt)
		if err != nil {
			return Record{}, fmt.Errorf("%w: read_at: %v", ErrInvalidRecord, err)
		}
		rec.ReadAt = ts
	}
	return rec, nil
}
