package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/uow"
	"staybook/internal/domain/access"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/shared/daterange"
)

const (
	completeFinishedStaysKey = "booking.complete_finished"
	defaultSweepBatch        = 200
)

// CompleteFinishedStaysCommand moves approved bookings whose checkout has
// passed to completed, acting as the system principal.
type CompleteFinishedStaysCommand struct {
	Now time.Time
}

func (c CompleteFinishedStaysCommand) Key() string { return completeFinishedStaysKey }

// CompleteFinishedStaysHandler runs outside the transaction middleware. Each
// booking is completed through Commands in its own unit of work so one
// contended property cannot hold back the sweep.
type CompleteFinishedStaysHandler struct {
	UoWFactory uow.UoWFactory
	Commands   commands.Bus
	BatchSize  int
	Logger     *slog.Logger
}

func (h *CompleteFinishedStaysHandler) Handle(ctx context.Context, cmd CompleteFinishedStaysCommand) (*dto.CompletionReport, error) {
	now := cmd.Now
	if now.IsZero() {
		now = time.Now()
	}
	cutoff := daterange.Day(now.UTC())

	due, err := h.listDue(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	report := &dto.CompletionReport{Completed: []string{}}
	for _, b := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		_, err := commands.Dispatch[TransitionBookingCommand, *dto.Booking](ctx, h.Commands, TransitionBookingCommand{
			Actor:     access.System(),
			BookingID: string(b.ID),
			Status:    string(domainbooking.StatusCompleted),
			At:        now,
		})
		if err != nil {
			report.Failed = append(report.Failed, string(b.ID))
			if h.Logger != nil {
				level := slog.LevelWarn
				if errors.Is(err, domainbooking.ErrInvalidTransition) {
					level = slog.LevelInfo
				}
				h.Logger.Log(ctx, level, "booking completion skipped", "booking_id", b.ID, "error", err)
			}
			continue
		}
		report.Completed = append(report.Completed, string(b.ID))
	}
	if h.Logger != nil && len(due) > 0 {
		h.Logger.Info("completion sweep finished", "cutoff", daterange.Format(cutoff), "completed", len(report.Completed), "failed", len(report.Failed))
	}
	return report, nil
}

func (h *CompleteFinishedStaysHandler) listDue(ctx context.Context, cutoff time.Time) ([]*domainbooking.Booking, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	limit := h.BatchSize
	if limit <= 0 {
		limit = defaultSweepBatch
	}
	return unit.Bookings().ListApprovedEndingBefore(execCtx, cutoff, limit)
}

var _ commands.Handler[CompleteFinishedStaysCommand, *dto.CompletionReport] = (*CompleteFinishedStaysHandler)(nil)
