package service

import (
	"context"
	"log/slog"

	"github.com/sakif/elibrary/internal/model"
)

// Notifier delivers a password-reset reference to a user.
type Notifier interface {
	SendPasswordReset(ctx context.Context, user *model.User, reference string) error
}

// LogNotifier writes the reset reference to the log instead of sending mail.
// It is the only Notifier shipped; mail delivery is out of scope.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) SendPasswordReset(_ context.Context, user *model.User, reference string) error {
	n.Logger.Info("password reset requested",
		slog.Int64("userID", user.ID),
		slog.String("email", user.Email),
		slog.String("reference", reference),
	)
	return nil
}
