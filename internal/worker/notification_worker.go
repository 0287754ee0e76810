package worker

import (
	"context"
	"encoding/json"

	"stocklink/internal/infra"

	"github.com/rs/zerolog/log"
)

// NotificationJobPayload is the job envelope sent to QueueNotifications.
type NotificationJobPayload struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NotificationWorker emails the operations inbox about events that need a
// human: movements out of retry budget, pulls aborted mid-run.
type NotificationWorker struct {
	mailer   *infra.Mailer
	opsEmail string
}

func NewNotificationWorker(mailer *infra.Mailer, opsEmail string) *NotificationWorker {
	return &NotificationWorker{mailer: mailer, opsEmail: opsEmail}
}

func (w *NotificationWorker) Process(_ context.Context, raw json.RawMessage) {
	var payload NotificationJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("notification_worker: invalid payload")
		return
	}
	if w.opsEmail == "" {
		log.Warn().Str("subject", payload.Subject).Msg("notification_worker: no ops email configured - dropping")
		return
	}

	if err := w.mailer.Send(w.opsEmail, payload.Subject, payload.Body); err != nil {
		log.Error().Err(err).Str("to", w.opsEmail).Msg("notification_worker: failed to send email")
		return
	}
	log.Info().Str("subject", payload.Subject).Msg("notification_worker: notification sent")
}
