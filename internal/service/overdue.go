package service

import (
	"context"

	"github.com/rpk6432/library-service/internal/model"
	"github.com/rpk6432/library-service/internal/notify"
	"github.com/rpk6432/library-service/internal/repository"
)

// SweepResult summarises one overdue sweep.
type SweepResult struct {
	Overdue int // matching borrowings
	Failed  int // notifications that could not be delivered
}

// OverdueSweep reports active borrowings that are due today or earlier.
type OverdueSweep struct {
	borrowings repository.BorrowingRepository
	notifier   notify.Notifier
	options
}

func NewOverdueSweep(borrowings repository.BorrowingRepository, n notify.Notifier, opts ...Option) *OverdueSweep {
	return &OverdueSweep{borrowings: borrowings, notifier: n, options: buildOptions(opts)}
}

// Run sends one notification per overdue borrowing, or a single "nothing
// overdue" message.  Notifications are sent synchronously and their
// failures are logged and counted; only a failed scan is returned.
func (s *OverdueSweep) Run(ctx context.Context) (res SweepResult, err error) {
	ctx, span := startSpan(ctx, "overdue.run")
	defer func() { endSpan(span, err) }()

	today := model.Date(s.now())
	rows, err := s.borrowings.ListOverdue(ctx, today)
	if err != nil {
		return SweepResult{}, err
	}
	if len(rows) == 0 {
		if err := s.notifier.Send(ctx, notify.NothingOverdueMessage); err != nil {
			s.log.Warn("overdue notification failed", "err", err)
			res.Failed++
		}
		return res, nil
	}

	for _, o := range rows {
		res.Overdue++
		days := model.DaysBetween(o.ExpectedReturnDate, today)
		if err := s.notifier.Send(ctx, notify.OverdueMessage(o.UserEmail, o.BookTitle, days)); err != nil {
			s.log.Warn("overdue notification failed", "borrowing_id", o.BorrowingID, "err", err)
			res.Failed++
		}
	}
	s.log.Info("overdue sweep finished", "overdue", res.Overdue, "failed", res.Failed)
	return res, nil
}
