package workday

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seu-repo/pdv-core/internal/domain"
	"github.com/seu-repo/pdv-core/internal/ports"
)

var ErrNoOpenWorkday = errors.New("no open workday for location")

// Service manages the operational day. Opening and closing are durable
// locally first; the remote workday service is synced best-effort with
// the same offline tolerance as ticket sync.
type Service struct {
	workdays ports.WorkdayRepository
	tickets  ports.TicketRepository
	remote   ports.WorkdayService
	timeout  time.Duration
	log      *zap.Logger

	tz           *time.Location
	rolloverHour int
}

func NewService(workdays ports.WorkdayRepository, tickets ports.TicketRepository, remote ports.WorkdayService, timeout time.Duration, tz *time.Location, rolloverHour int, log *zap.Logger) *Service {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if tz == nil {
		tz = time.Local
	}
	return &Service{
		workdays:     workdays,
		tickets:      tickets,
		remote:       remote,
		timeout:      timeout,
		tz:           tz,
		rolloverHour: rolloverHour,
		log:          log,
	}
}

// CurrentBusinessDate is the operational date right now.
func (s *Service) CurrentBusinessDate() string {
	return domain.BusinessDate(time.Now(), s.tz, s.rolloverHour)
}

// Open starts a workday for the location, or returns the one already
// open. The remote sync failing leaves the workday usable offline.
func (s *Service) Open(ctx context.Context, creds ports.Credentials, locationID, user string) (*domain.Workday, error) {
	existing, err := s.workdays.FindOpen(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	w := &domain.Workday{
		ID:           uuid.NewString(),
		LocationID:   locationID,
		BusinessDate: s.CurrentBusinessDate(),
		OpenedBy:     user,
		OpenedAt:     time.Now(),
	}
	if err := s.workdays.Save(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to persist workday: %w", err)
	}

	s.syncRemote(ctx, creds, w)

	s.log.Info("workday opened",
		zap.String("workday_id", w.ID),
		zap.String("business_date", w.BusinessDate),
		zap.String("opened_by", user),
	)
	return w, nil
}

// Current returns the open workday for the location, or ErrNoOpenWorkday.
func (s *Service) Current(ctx context.Context, locationID string) (*domain.Workday, error) {
	w, err := s.workdays.FindOpen(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrNoOpenWorkday
	}
	return w, nil
}

// Close totals the day's tickets, closes the workday locally and reports
// it to the remote service best-effort.
func (s *Service) Close(ctx context.Context, creds ports.Credentials, locationID string) (*domain.Workday, error) {
	w, err := s.Current(ctx, locationID)
	if err != nil {
		return nil, err
	}

	tickets, err := s.tickets.FindByBusinessDate(ctx, locationID, w.BusinessDate)
	if err != nil {
		return nil, err
	}
	w.GrossCents = 0
	w.TicketCount = int64(len(tickets))
	for i := range tickets {
		w.GrossCents += tickets[i].TotalCents
	}

	now := time.Now()
	w.ClosedAt = &now
	if err := s.workdays.Save(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to close workday: %w", err)
	}

	if w.RemoteID == "" {
		s.syncRemote(ctx, creds, w)
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.remote.EndWorkday(callCtx, creds, w); err != nil {
		s.log.Warn("remote workday close failed, will remain local only",
			zap.String("workday_id", w.ID),
			zap.Error(err),
		)
	}

	s.log.Info("workday closed",
		zap.String("workday_id", w.ID),
		zap.Int64("gross_cents", w.GrossCents),
		zap.Int64("ticket_count", w.TicketCount),
	)
	return w, nil
}

func (s *Service) syncRemote(ctx context.Context, creds ports.Credentials, w *domain.Workday) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	remoteID, err := s.remote.SyncWorkday(callCtx, creds, w)
	if err != nil {
		s.log.Warn("remote workday sync failed, continuing offline",
			zap.String("workday_id", w.ID),
			zap.Error(err),
		)
		return
	}
	w.RemoteID = remoteID
	if err := s.workdays.Save(ctx, w); err != nil {
		s.log.Error("failed to store remote workday id", zap.Error(err))
	}
}
