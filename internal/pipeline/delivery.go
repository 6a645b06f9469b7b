package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"iprisk-backend/internal/invoker"
	"iprisk-backend/internal/notify"
	"iprisk-backend/internal/reports"
	"iprisk-backend/internal/retry"
	"iprisk-backend/internal/runs"
	"iprisk-backend/internal/shared/metrics"
	"iprisk-backend/internal/shared/telemetry"
	"iprisk-backend/internal/shared/util"
	"iprisk-backend/internal/users"
)

const guestPrefix = "guest:"

// Reasons recorded when no notification is sent.
const (
	skipNotifierDisabled = "notifier_disabled"
	skipNoContact        = "no_contact"
	skipOptedOut         = "opted_out"
)

type deliveryInput struct {
	Paid       bool `json:"paid"`
	HasContact bool `json:"hasContact"`
}

type deliveryOutput struct {
	Status           runs.Status `json:"status"`
	NotificationSent bool        `json:"notificationSent"`
	SkipReason       string      `json:"skipReason,omitempty"`
}

func (s *Service) deliver(ctx context.Context, run runs.Run, task invoker.Task) (stageResult, error) {
	contact, hasContact, err := s.contact(ctx, run.UserID)
	if err != nil {
		return stageResult{}, fmt.Errorf("load contact: %w", err)
	}
	res := stageResult{input: deliveryInput{Paid: run.Paid, HasContact: hasContact}}

	updated, err := s.Runs.Transition(ctx, run.ID, runs.Update{
		Status:   runs.StatusComplete,
		Progress: runs.Progress(ProgressComplete),
	})
	if err != nil {
		return res, fmt.Errorf("update run: %w", err)
	}
	res.run = updated
	out := deliveryOutput{Status: updated.Status}
	telemetry.Info("analysis_run.status", map[string]any{
		"request_id":      telemetry.RequestIDFromContext(ctx),
		"analysis_run_id": run.ID,
		"status":          string(updated.Status),
	})

	switch {
	case s.Notifier == nil || !s.Notifier.Enabled():
		out.SkipReason = skipNotifierDisabled
	case !hasContact:
		out.SkipReason = skipNoContact
	case contact.EmailOptOut:
		out.SkipReason = skipOptedOut
	}
	if out.SkipReason != "" {
		metrics.IncNotification("skipped")
		res.output = out
		return res, nil
	}

	msg := s.composeMessage(ctx, updated, contact)
	_, err = retry.Do(ctx, s.retryOptions(ctx, "notify"), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.Notifier.Send(ctx, msg)
	})
	if err != nil {
		metrics.IncNotification("failed")
		res.output = out
		return res, fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}

	metrics.IncNotification("sent")
	out.NotificationSent = true
	if err := s.Runs.MarkNotificationSent(ctx, run.ID); err != nil {
		telemetry.Warn("pipeline.delivery.mark_sent_failed", map[string]any{
			"request_id":      telemetry.RequestIDFromContext(ctx),
			"analysis_run_id": run.ID,
			"error":           util.SanitizeMessage(err.Error()),
		})
	} else {
		res.run.NotificationSent = true
	}
	res.output = out
	return res, nil
}

// contact returns the owner's contact details. Guests and unknown users have none.
func (s *Service) contact(ctx context.Context, userID string) (users.User, bool, error) {
	if s.Users == nil || userID == "" || strings.HasPrefix(userID, guestPrefix) {
		return users.User{}, false, nil
	}
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return users.User{}, false, nil
		}
		return users.User{}, false, err
	}
	if strings.TrimSpace(user.Email) == "" {
		return user, false, nil
	}
	return user, true, nil
}

// composeMessage builds the completion email. Paid runs link to the full
// report; unpaid runs get the preview and an upgrade link.
func (s *Service) composeMessage(ctx context.Context, run runs.Run, user users.User) notify.Message {
	base := strings.TrimRight(s.AppBaseURL, "/")
	reportURL := base + "/reports/" + run.ID
	score := 0
	if run.RiskScore != nil {
		score = *run.RiskScore
	}

	var excerpt string
	if s.Reports != nil {
		if report, err := s.Reports.Latest(ctx, run.ID); err == nil {
			excerpt = summaryExcerpt(report.ExecutiveSummary)
		} else if !errors.Is(err, reports.ErrNotFound) {
			telemetry.Warn("pipeline.delivery.report_load_failed", map[string]any{
				"request_id":      telemetry.RequestIDFromContext(ctx),
				"analysis_run_id": run.ID,
				"error":           util.SanitizeMessage(err.Error()),
			})
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", user.DisplayName())
	fmt.Fprintf(&b, "Your IP risk analysis is complete. Overall risk: %s (%d/100).\n\n", run.RiskLevel, score)
	if excerpt != "" {
		b.WriteString(excerpt)
		b.WriteString("\n\n")
	}

	msg := notify.Message{To: user.Email, ToName: user.FullName}
	if run.Paid {
		msg.Subject = "Your IP risk report is ready"
		fmt.Fprintf(&b, "Read the full report, including every conflict and the mitigation plan:\n%s\n", reportURL)
	} else {
		msg.Subject = "Your IP risk preview is ready"
		fmt.Fprintf(&b, "View your preview:\n%s\n\n", reportURL)
		fmt.Fprintf(&b, "Unlock the full report with conflict details and a mitigation plan:\n%s/upgrade\n", reportURL)
	}
	msg.Body = b.String()
	return msg
}
