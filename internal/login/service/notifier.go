package service

import (
	"context"
	"log/slog"

	"github.com/empuxa/totp-login/internal/login/domain"
)

// Notifier delivers the login code to the account out of band. Delivery is
// fire-and-forget from the protocol's perspective: a failed send is logged
// but never fails the phase.
type Notifier interface {
	Send(ctx context.Context, account domain.Account, code string, sourceIP string) error
}

// LogNotifier writes codes to the log instead of delivering them. Intended
// for development and tests only.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Send(ctx context.Context, account domain.Account, code string, sourceIP string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "login code issued",
		"identifier", account.Identifier,
		"code", code,
		"source_ip", sourceIP,
	)
	return nil
}
