// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package playthrough

import (
	"fmt"
	"time"
)

// QueueStatus is the state of a queued activation request.
type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusActivated  QueueStatus = "activated"
	QueueStatusCancelled  QueueStatus = "cancelled"
	QueueStatusFailed     QueueStatus = "failed"
)

// IsTerminal reports whether the status can never change again.
func (s QueueStatus) IsTerminal() bool {
	switch s {
	case QueueStatusActivated, QueueStatusCancelled, QueueStatusFailed:
		return true
	default:
		return false
	}
}

// QueueEntry is a pending or resolved activation request.
// A nil QueuedByUserID means the host or the system queued it.
type QueueEntry struct {
	ID              string      `json:"id"`
	PlaythroughID   string      `json:"playthroughId"`
	RuleID          string      `json:"ruleId"`
	DifficultyLevel int         `json:"difficultyLevel"`
	Position        int         `json:"position"`
	QueuedByUserID  *string     `json:"queuedByUserId,omitempty"`
	Status          QueueStatus `json:"status"`
	QueuedAt        time.Time   `json:"queuedAt"`
	ProcessedAt     *time.Time  `json:"processedAt,omitempty"`
	FailureReason   string      `json:"failureReason,omitempty"`
}

// NewQueueEntry creates a pending entry.
func NewQueueEntry(id, playthroughID, ruleID string, level, position int, queuedBy *string, now time.Time) *QueueEntry {
	return &QueueEntry{
		ID:              id,
		PlaythroughID:   playthroughID,
		RuleID:          ruleID,
		DifficultyLevel: level,
		Position:        position,
		QueuedByUserID:  queuedBy,
		Status:          QueueStatusPending,
		QueuedAt:        now,
	}
}

// IsPending reports whether the entry still waits for activation.
func (e *QueueEntry) IsPending() bool {
	return e.Status == QueueStatusPending
}

func (e *QueueEntry) resolve(status QueueStatus, now time.Time) error {
	if e.Status.IsTerminal() {
		return fmt.Errorf("%w: queue entry %s is already %s", ErrInvalidState, e.ID, e.Status)
	}
	e.Status = status
	e.ProcessedAt = &now
	return nil
}

// MarkProcessing flags the entry while its activation is written.
func (e *QueueEntry) MarkProcessing() error {
	if e.Status != QueueStatusPending {
		return fmt.Errorf("%w: queue entry %s is %s", ErrInvalidState, e.ID, e.Status)
	}
	e.Status = QueueStatusProcessing
	return nil
}

// MarkActivated resolves the entry successfully.
func (e *QueueEntry) MarkActivated(now time.Time) error {
	return e.resolve(QueueStatusActivated, now)
}

// MarkFailed resolves the entry as failed with reason.
func (e *QueueEntry) MarkFailed(now time.Time, reason string) error {
	if err := e.resolve(QueueStatusFailed, now); err != nil {
		return err
	}
	e.FailureReason = reason
	return nil
}

// Cancel resolves a pending entry as cancelled.
func (e *QueueEntry) Cancel(now time.Time, reason string) error {
	if e.Status != QueueStatusPending {
		return fmt.Errorf("%w: only pending entries can be cancelled, entry %s is %s", ErrInvalidState, e.ID, e.Status)
	}
	if err := e.resolve(QueueStatusCancelled, now); err != nil {
		return err
	}
	e.FailureReason = reason
	return nil
}
