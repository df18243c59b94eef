package lifecycle

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fleetglass/fleetglass/internal/fault"
	"github.com/fleetglass/fleetglass/pkg/models"
)

// RegisterSkill adds a skill to the catalog with zeroed stats. Both id and
// name are unique; a duplicate of either fails with Conflict.
func (e *Engine) RegisterSkill(ctx context.Context, skill *models.Skill) (*models.Skill, error) {
	if skill.Name == "" {
		return nil, fault.Validation("skill", "name is required")
	}
	if skill.ID == "" {
		skill.ID = "skill-" + uuid.New().String()
	}
	skill.CreatedAt = e.clock.Now()
	skill.Stats = models.SkillStats{}
	skill.RecentCalls = []models.SkillCall{}

	if err := e.store.InsertSkill(ctx, skill); err != nil {
		return nil, err
	}
	log.Info().Str("skill", skill.ID).Str("name", skill.Name).Str("category", skill.Category).Msg("skill registered")
	return skill, nil
}

// RecordSkillCall updates a skill's cumulative stats for one invocation.
//
// The average execution time is maintained with the running-mean
// recurrence new = (old*(n-1) + t) / n applied in call order, not
// recomputed from a stored sum, so the value matches the recurrence
// exactly even where floating point would let a sum-based mean diverge.
// The call is pushed onto RecentCalls (most recent first, capped).
func (e *Engine) RecordSkillCall(ctx context.Context, skillID string, call models.SkillCall) (*models.Skill, error) {
	if call.ExecutionTimeMs < 0 {
		return nil, fault.Validation("skill", "executionTime must be >= 0")
	}
	if call.AgentID != "" {
		if _, err := e.store.GetAgent(ctx, call.AgentID); err != nil {
			return nil, err
		}
	}

	call.ID = "call-" + uuid.New().String()
	call.SkillID = skillID
	call.Timestamp = e.clock.Now()

	updated, err := e.store.UpdateSkill(ctx, skillID, func(s *models.Skill) error {
		s.Stats.TotalCalls++
		if call.Success {
			s.Stats.SuccessCalls++
		} else {
			s.Stats.FailedCalls++
		}
		n := float64(s.Stats.TotalCalls)
		s.Stats.AvgExecutionTime = (s.Stats.AvgExecutionTime*(n-1) + float64(call.ExecutionTimeMs)) / n

		s.RecentCalls = append([]models.SkillCall{call}, s.RecentCalls...)
		if len(s.RecentCalls) > models.MaxRecentCalls {
			s.RecentCalls = s.RecentCalls[:models.MaxRecentCalls]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if call.AgentID != "" {
		e.bumpTodayStats(ctx, call.AgentID, func(s *models.TodayStats) { s.SkillsCalled++ })
	}

	outcome := "ok"
	if !call.Success {
		outcome = "failed"
	}
	e.RecordLog(ctx, &models.LogEntry{
		Level:   models.LevelDebug,
		Source:  "skills",
		AgentID: call.AgentID,
		Message: fmt.Sprintf("skill %s called (%s, %dms)", updated.Name, outcome, call.ExecutionTimeMs),
	})
	return updated, nil
}
