package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradeledger-api/internal/models"
)

// Notification subjects mirror the product's notification types. Delivery to
// end users is another system's job; the ledger only announces what happened.
const (
	subjectGradePosted         = "grades.grade_posted"
	subjectGradeLocked         = "grades.grade_locked"
	subjectModificationAttempt = "grades.modification_attempt"
	subjectIntegrityAlert      = "grades.integrity_alert"
)

// GradeNotifier fans ledger happenings out to external collaborators.
// Implementations must never fail the admission that triggered them.
type GradeNotifier interface {
	GradePosted(ctx context.Context, event models.GradeEvent)
	GradeLocked(ctx context.Context, event models.GradeEvent)
	ModificationAttempt(ctx context.Context, event models.GradeEvent)
	IntegrityAlert(ctx context.Context, lane models.LaneKey, failedEventID string)
}

type gradeNotification struct {
	Type      string    `json:"type"`
	Lane      string    `json:"lane"`
	EventID   string    `json:"event_id,omitempty"`
	EventType string    `json:"event_type,omitempty"`
	Score     float64   `json:"score,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

type natsGradeNotifier struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

// NewNATSGradeNotifier publishes grade notifications on NATS subjects.
func NewNATSGradeNotifier(conn *nats.Conn, logger zerolog.Logger) GradeNotifier {
	return &natsGradeNotifier{
		conn:   conn,
		logger: logger.With().Str("component", "grade_notifier").Logger(),
	}
}

func (n *natsGradeNotifier) GradePosted(ctx context.Context, event models.GradeEvent) {
	n.publish(subjectGradePosted, notificationFor("grade_posted", event))
}

func (n *natsGradeNotifier) GradeLocked(ctx context.Context, event models.GradeEvent) {
	n.publish(subjectGradeLocked, notificationFor("grade_locked", event))
}

func (n *natsGradeNotifier) ModificationAttempt(ctx context.Context, event models.GradeEvent) {
	n.publish(subjectModificationAttempt, notificationFor("modification_attempt", event))
}

func (n *natsGradeNotifier) IntegrityAlert(ctx context.Context, lane models.LaneKey, failedEventID string) {
	n.publish(subjectIntegrityAlert, gradeNotification{
		Type:    "integrity_alert",
		Lane:    lane.String(),
		EventID: failedEventID,
		SentAt:  time.Now().UTC(),
	})
}

func (n *natsGradeNotifier) publish(subject string, notification gradeNotification) {
	if n.conn == nil {
		return
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		n.logger.Warn().Err(err).Str("subject", subject).Msg("failed to encode notification")
		return
	}

	if err := n.conn.Publish(subject, payload); err != nil {
		n.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish notification")
	}
}

func notificationFor(notificationType string, event models.GradeEvent) gradeNotification {
	return gradeNotification{
		Type:      notificationType,
		Lane:      event.Lane().String(),
		EventID:   event.ID,
		EventType: string(event.EventType),
		Score:     event.Score,
		SentAt:    time.Now().UTC(),
	}
}
