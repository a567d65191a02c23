package scheduler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TaskClaimExpiry = "routing.claim_expiry"

const TaskNightRelease = "routing.night_release"

const TaskNotificationOutboxDue = "notification.outbox.due"

type ClaimExpiryPayload struct {
	LeadID string `json:"leadId"`
	Round  int    `json:"round"`
}

type NightReleasePayload struct {
	LeadID string `json:"leadId"`
}

type NotificationOutboxDuePayload struct {
	OutboxID string `json:"outboxId"`
}

// claimExpiryTaskID is unique per lead and round, so re-broadcasting the same
// round never stacks timers.
func claimExpiryTaskID(leadID uuid.UUID, round int) string {
	return fmt.Sprintf("claim-expiry:%s:%d", leadID, round)
}

// nightReleaseTaskID includes the release instant so a lead held on two
// different nights gets two timers.
func nightReleaseTaskID(leadID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("night-release:%s:%d", leadID, at.Unix())
}

func NewClaimExpiryTask(payload ClaimExpiryPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskClaimExpiry, data), nil
}

func ParseClaimExpiryPayload(task *asynq.Task) (ClaimExpiryPayload, error) {
	var payload ClaimExpiryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ClaimExpiryPayload{}, err
	}
	return payload, nil
}

func NewNightReleaseTask(payload NightReleasePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNightRelease, data), nil
}

func ParseNightReleasePayload(task *asynq.Task) (NightReleasePayload, error) {
	var payload NightReleasePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NightReleasePayload{}, err
	}
	return payload, nil
}

func NewNotificationOutboxDueTask(payload NotificationOutboxDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationOutboxDue, data), nil
}

func ParseNotificationOutboxDuePayload(task *asynq.Task) (NotificationOutboxDuePayload, error) {
	var payload NotificationOutboxDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NotificationOutboxDuePayload{}, err
	}
	return payload, nil
}
