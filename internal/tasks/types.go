package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeVerificationEmail  = "email:verification"
	TypePasswordResetEmail = "email:password_reset"
	TypeEmailChangeEmail   = "email:change_confirm"
	TypeCleanupUnverified  = "cleanup:unverified"
)

// EmailTokenPayload carries the recipient and the out-of-band token for
// one of the transactional emails. The worker builds the link from its
// own base URL config.
type EmailTokenPayload struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// Transactional email is fire-and-forget: failures are logged by the
// worker, never retried, never surfaced to the user.
var emailOpts = []asynq.Option{asynq.MaxRetry(0), asynq.Queue("default")}

func NewVerificationEmailTask(email, token string) (*asynq.Task, error) {
	data, err := json.Marshal(EmailTokenPayload{Email: email, Token: token})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeVerificationEmail, data, emailOpts...), nil
}

func NewPasswordResetEmailTask(email, token string) (*asynq.Task, error) {
	data, err := json.Marshal(EmailTokenPayload{Email: email, Token: token})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePasswordResetEmail, data, emailOpts...), nil
}

func NewEmailChangeEmailTask(email, token string) (*asynq.Task, error) {
	data, err := json.Marshal(EmailTokenPayload{Email: email, Token: token})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEmailChangeEmail, data, emailOpts...), nil
}

// NewCleanupUnverifiedTask is enqueued on a schedule by the worker's
// cron registration.
func NewCleanupUnverifiedTask() *asynq.Task {
	return asynq.NewTask(TypeCleanupUnverified, nil, asynq.Queue("low"))
}
