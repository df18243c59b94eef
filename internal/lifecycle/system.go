package lifecycle

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fleetglass/fleetglass/internal/fabric"
	"github.com/fleetglass/fleetglass/pkg/models"
)

// RecordLog appends a system log entry and publishes it on the system
// topic. Append failures are reported but never affect the caller's own
// committed mutation.
func (e *Engine) RecordLog(ctx context.Context, entry *models.LogEntry) {
	if entry.ID == "" {
		entry.ID = "log-" + uuid.New().String()
	}
	if entry.Level == "" {
		entry.Level = models.LevelInfo
	}
	entry.Timestamp = e.clock.Now()

	if err := e.store.AppendLog(ctx, entry); err != nil {
		log.Warn().Err(err).Msg("failed to append system log")
		return
	}
	e.hub.Publish(fabric.TopicSystem, fabric.EventSystemLog, *entry)
}

// RaiseAlert stores a new unacknowledged alert and publishes it.
func (e *Engine) RaiseAlert(ctx context.Context, alert *models.Alert) (*models.Alert, error) {
	if alert.ID == "" {
		alert.ID = "alert-" + uuid.New().String()
	}
	if alert.Level == "" {
		alert.Level = models.LevelWarn
	}
	alert.Timestamp = e.clock.Now()
	alert.Acknowledged = false
	alert.AckBy = ""
	alert.AckAt = nil

	if err := e.store.InsertAlert(ctx, alert); err != nil {
		return nil, err
	}
	log.Warn().Str("alert", alert.ID).Str("agent", alert.AgentID).Str("message", alert.Message).Msg("alert raised")
	e.hub.Publish(fabric.TopicSystem, fabric.EventSystemAlert, *alert)
	return alert, nil
}

// raiseAlert is the internal convenience used by engine transitions.
func (e *Engine) raiseAlert(ctx context.Context, level models.LogLevel, agentID, message string) {
	if _, err := e.RaiseAlert(ctx, &models.Alert{Level: level, AgentID: agentID, Message: message, Source: "lifecycle"}); err != nil {
		log.Warn().Err(err).Msg("failed to raise alert")
	}
}

// AcknowledgeAlert records who acknowledged an alert and when. Settable
// exactly once: acknowledging an already-acknowledged alert is a no-op
// that returns the existing record.
func (e *Engine) AcknowledgeAlert(ctx context.Context, id, by string) (*models.Alert, error) {
	now := e.clock.Now()
	return e.store.UpdateAlert(ctx, id, func(a *models.Alert) error {
		if a.Acknowledged {
			return nil // idempotent beyond the first ack
		}
		a.Acknowledged = true
		a.AckBy = by
		a.AckAt = &now
		return nil
	})
}
