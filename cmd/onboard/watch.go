package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ai-receptionist/user-portal/user-portal-backend/internal/notifications"
	"ai-receptionist/user-portal/user-portal-backend/internal/onboarding"
	"ai-receptionist/user-portal/user-portal-backend/internal/wizard"
)

// watchCmd waits on the pending-approval screen
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Wait for the approval decision on a submitted onboarding",
	Long: `Subscribe to approval updates and block until the submitted onboarding
is approved or rejected, or until --timeout expires.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func notificationsURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + "/notifications/ws")
	if err != nil {
		return "", fmt.Errorf("invalid API base URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported API base URL scheme %q", u.Scheme)
	}
	return u.String(), nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	out := cmd.OutOrStdout()

	wsURL, err := notificationsURL(cfg.Onboarding.APIBaseURL)
	if err != nil {
		return err
	}
	dialer := websocket.Dialer{HandshakeTimeout: cfg.Onboarding.RequestTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL, http.Header{"Authorization": {"Bearer " + token}})
	if err != nil {
		return fmt.Errorf("connect to notifications: %w", err)
	}
	defer conn.Close()

	// Subscribed first, so a decision made while fetching is still delivered.
	gateway := wizard.NewHTTPGateway(cfg.Onboarding.APIBaseURL, token, cfg.Onboarding.RequestTimeout)
	snap, err := gateway.FetchExisting(ctx)
	if errors.Is(err, onboarding.ErrNotFound) {
		return errors.New("no saved onboarding to watch")
	}
	if err != nil {
		return err
	}
	if snap.StatusOnboarding != onboarding.StatusCompleted {
		return fmt.Errorf("onboarding is not submitted yet (status %s)", snap.StatusOnboarding)
	}
	if snap.ApprovalStatus.Decided() {
		reportApproval(out, snap.ApprovalStatus)
		return nil
	}
	fmt.Fprintln(out, "Waiting for approval...")

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var msg notifications.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("gave up waiting for approval: %w", ctx.Err())
			}
			return fmt.Errorf("notification stream closed: %w", err)
		}
		logger.Debug("Notification received",
			zap.String("type", string(msg.Type)),
			zap.String("approval_status", string(msg.ApprovalStatus)))
		if msg.Settled() {
			reportApproval(out, msg.ApprovalStatus)
			return nil
		}
	}
}

func reportApproval(out io.Writer, approval onboarding.ApprovalStatus) {
	if approval == onboarding.ApprovalApproved {
		fmt.Fprintf(out, "Onboarding approved; continue at %s\n", destinations().URL(wizard.RedirectMainApp))
		return
	}
	fmt.Fprintln(out, "Onboarding rejected")
}
