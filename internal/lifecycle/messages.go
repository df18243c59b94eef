package lifecycle

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fleetglass/fleetglass/internal/fabric"
	"github.com/fleetglass/fleetglass/internal/fault"
	"github.com/fleetglass/fleetglass/pkg/models"
)

// Message processing pipeline: pending → processing → completed|failed,
// forward only. ProcessingTime is stamped exactly once, on reaching a final
// processing state, as elapsed wall time since the message was created.
//
// Simulated asynchronous completion runs through the tracked scheduler, so
// it can be cancelled when the message is deleted and flushed
// deterministically in tests.

// AcceptMessage stores a new message in pending, bumps the owning agent's
// daily counters by direction, publishes message.new, and schedules the
// simulated deferred completion.
func (e *Engine) AcceptMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if msg.AgentID == "" {
		return nil, fault.Validation("message", "agentId is required")
	}
	if msg.Channel == "" {
		return nil, fault.Validation("message", "channel is required")
	}
	if !models.ValidDirection(msg.Direction) {
		return nil, fault.Validation("message", "unknown direction %q", msg.Direction)
	}
	if msg.ContentType == "" {
		msg.ContentType = models.ContentText
	}
	if !models.ValidContentType(msg.ContentType) {
		return nil, fault.Validation("message", "unknown contentType %q", msg.ContentType)
	}
	if _, err := e.store.GetAgent(ctx, msg.AgentID); err != nil {
		return nil, err
	}

	if msg.ID == "" {
		msg.ID = "msg-" + uuid.New().String()
	}
	msg.Timestamp = e.clock.Now()
	msg.ProcessingStatus = models.ProcessingPending
	msg.ProcessingTimeMs = nil

	if err := e.store.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}

	switch msg.Direction {
	case models.DirectionIncoming:
		e.bumpTodayStats(ctx, msg.AgentID, func(s *models.TodayStats) { s.MessagesReceived++ })
	case models.DirectionOutgoing:
		e.bumpTodayStats(ctx, msg.AgentID, func(s *models.TodayStats) { s.MessagesSent++ })
	}

	log.Info().Str("message", msg.ID).Str("agent", msg.AgentID).Str("channel", msg.Channel).Msg("message accepted")
	e.hub.Publish(fabric.TopicMessages, fabric.EventMessageNew, *msg)

	id := msg.ID
	e.sched.Schedule(messageKey(id), e.processingDelay, func() {
		if _, err := e.CompleteMessageProcessing(context.Background(), id); err != nil {
			log.Warn().Err(err).Str("message", id).Msg("deferred message completion failed")
		}
	})
	return msg, nil
}

// MarkMessageProcessing advances a pending message to processing.
func (e *Engine) MarkMessageProcessing(ctx context.Context, id string) (*models.Message, error) {
	return e.store.UpdateMessage(ctx, id, func(m *models.Message) error {
		if m.ProcessingStatus != models.ProcessingPending {
			return fault.InvalidTransition("message", "cannot start processing message in %s", m.ProcessingStatus)
		}
		m.ProcessingStatus = models.ProcessingInProgress
		return nil
	})
}

// CompleteMessageProcessing finishes processing and stamps ProcessingTime.
func (e *Engine) CompleteMessageProcessing(ctx context.Context, id string) (*models.Message, error) {
	return e.finishProcessing(ctx, id, models.ProcessingCompleted)
}

// FailMessageProcessing marks processing failed and stamps ProcessingTime.
func (e *Engine) FailMessageProcessing(ctx context.Context, id string) (*models.Message, error) {
	return e.finishProcessing(ctx, id, models.ProcessingFailed)
}

func (e *Engine) finishProcessing(ctx context.Context, id string, final models.ProcessingStatus) (*models.Message, error) {
	now := e.clock.Now()
	updated, err := e.store.UpdateMessage(ctx, id, func(m *models.Message) error {
		if m.ProcessingStatus != models.ProcessingPending && m.ProcessingStatus != models.ProcessingInProgress {
			return fault.InvalidTransition("message", "message already %s", m.ProcessingStatus)
		}
		m.ProcessingStatus = final
		elapsed := now.Sub(m.Timestamp).Milliseconds()
		if elapsed < 0 {
			elapsed = 0
		}
		m.ProcessingTimeMs = &elapsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	// A manual completion supersedes the scheduled one.
	e.sched.Cancel(messageKey(id))
	return updated, nil
}

// DeleteMessage removes a message, cancelling any pending deferred
// completion first.
func (e *Engine) DeleteMessage(ctx context.Context, id string) error {
	e.sched.Cancel(messageKey(id))
	return e.store.DeleteMessage(ctx, id)
}

func messageKey(id string) string { return "message:" + id }
