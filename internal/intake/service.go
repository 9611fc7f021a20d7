package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/cpr-booking-platform/internal/bookings"
	"github.com/wolfman30/cpr-booking-platform/internal/normalize"
	"github.com/wolfman30/cpr-booking-platform/internal/observability/metrics"
	"github.com/wolfman30/cpr-booking-platform/internal/simplybook"
	"github.com/wolfman30/cpr-booking-platform/pkg/logging"
)

var intakeTracer = otel.Tracer("cpr.internal.intake")

// ErrInternal marks an intake that failed after validation, for example
// when the booking record could not be saved.
var ErrInternal = errors.New("intake: internal failure")

// Scheduler is the remote booking system as the intake flow uses it.
type Scheduler interface {
	GetToken(ctx context.Context) (string, error)
	ResolveEventID(ctx context.Context, token, name string) simplybook.EventResolution
	CheckAvailability(ctx context.Context, token string, eventID int, unitID *int, date, tm string) simplybook.Availability
	Book(ctx context.Context, token string, req simplybook.BookRequest) (*simplybook.BookResult, error)
}

// Confirmer sends the customer a confirmation once a booking is saved.
type Confirmer interface {
	SendBookingConfirmation(ctx context.Context, rec *bookings.Record, synced bool) error
}

// Options wires the optional collaborators of a Service.
type Options struct {
	// Scheduler may be nil, which disables remote sync.
	Scheduler Scheduler
	Confirmer Confirmer
	Locker    SessionLocker
	Metrics   *metrics.IntakeMetrics
	Logger    *logging.Logger
}

// Service turns completed bookings into stored records and mirrors them to
// the remote scheduler on a best-effort basis.
type Service struct {
	store     bookings.Store
	scheduler Scheduler
	confirmer Confirmer
	locker    SessionLocker
	validate  *validator.Validate
	metrics   *metrics.IntakeMetrics
	logger    *logging.Logger
}

func NewService(store bookings.Store, opts Options) *Service {
	if store == nil {
		panic("intake: booking store required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Locker == nil {
		opts.Locker = NewMemoryLocker()
	}
	return &Service{
		store:     store,
		scheduler: opts.Scheduler,
		confirmer: opts.Confirmer,
		locker:    opts.Locker,
		validate:  newValidator(),
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
}

// Process validates req, syncs it to the remote scheduler and saves the
// internal record. Only validation (*ValidationError) and internal save
// failures (ErrInternal) are returned as errors; remote problems are
// reported in Result.Sync. On ErrInternal the partial result is still
// returned.
func (s *Service) Process(ctx context.Context, req Request) (res *Result, err error) {
	ctx, span := intakeTracer.Start(ctx, "intake.process")
	defer span.End()

	req = req.trimmed()
	if err := validateRequest(s.validate, req); err != nil {
		span.SetStatus(codes.Error, "validation")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("cpr.session_id", req.SessionID),
		attribute.String("cpr.service", req.Service),
	)
	logger := s.logger.With("session_id", req.SessionID, "service", req.Service)

	res = &Result{}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("intake panic", "panic", r)
			res.Success = false
			res.Message = msgSaveFailed
			if res.Booking != nil {
				res.Message = msgSavedIncomplete
			}
			err = fmt.Errorf("%w: panic: %v", ErrInternal, r)
			span.SetStatus(codes.Error, "panic")
		}
	}()

	if req.SessionID != "" {
		unlock, lerr := s.locker.Lock(ctx, req.SessionID)
		if lerr != nil {
			logger.Warn("session lock unavailable; continuing", "error", lerr)
		} else {
			defer unlock()
		}
	}

	phone, quality := normalize.NormalizePhone(req.Phone)
	if quality != normalize.PhoneFormatted {
		logger.Warn("phone normalized with reduced confidence", "quality", quality.String())
	}
	date, dateErr := normalize.NormalizeDate(req.Date)
	tm, timeErr := normalize.NormalizeTime(req.Time)

	sync := s.syncRemote(ctx, logger, req, phone, normalized{date: date, dateErr: dateErr, tm: tm, timeErr: timeErr})
	res.Sync = sync.report
	res.Availability = sync.availability
	res.SimplybookResponse = sync.response

	recordDate := req.Date
	if dateErr == nil {
		recordDate = normalize.ISODateTime(date)
	}
	participants := int(req.Participants)
	if participants < 1 {
		participants = 1
	}
	// The placeholder only satisfies the scheduler; never store it over a real number.
	recordPhone := phone
	if quality == normalize.PhonePlaceholder {
		recordPhone = ""
	}
	fields := bookings.Fields{
		ClientName:   req.CustomerName,
		Email:        req.Email,
		Phone:        recordPhone,
		Service:      req.Service,
		Participants: participants,
		Date:         recordDate,
		Time:         req.Time,
		Notes:        req.Notes,
	}

	rec, created, serr := s.upsert(ctx, req.SessionID, fields)
	if serr != nil {
		logger.Error("booking save failed", "error", serr)
		span.RecordError(serr)
		span.SetStatus(codes.Error, "save")
		s.metrics.ObserveIntake(string(res.Sync.Outcome), false)
		res.Message = msgSaveFailed
		return res, fmt.Errorf("%w: %v", ErrInternal, serr)
	}
	res.Booking = rec
	res.Created = created
	res.Success = true
	res.Message = messageFor(res.Sync)
	s.metrics.ObserveIntake(string(res.Sync.Outcome), true)

	logger.Info("booking intake complete",
		"booking_id", rec.ID,
		"created", created,
		"sync", string(res.Sync.Outcome),
		"reason", res.Sync.Reason,
	)

	if created && s.confirmer != nil {
		if cerr := s.confirmer.SendBookingConfirmation(ctx, rec, res.Sync.Outcome == SyncConfirmed); cerr != nil {
			logger.Warn("confirmation email failed", "error", cerr, "booking_id", rec.ID)
		}
	}
	return res, nil
}

func (s *Service) upsert(ctx context.Context, sessionID string, fields bookings.Fields) (*bookings.Record, bool, error) {
	ctx, span := intakeTracer.Start(ctx, "intake.save")
	defer span.End()
	rec, created, err := s.store.UpsertBySessionID(ctx, sessionID, fields)
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}
	span.SetAttributes(attribute.String("cpr.booking_id", rec.ID), attribute.Bool("cpr.created", created))
	return rec, created, nil
}

type normalized struct {
	date    string
	dateErr error
	tm      string
	timeErr error
}

type remoteSync struct {
	report       SyncReport
	availability *simplybook.Availability
	response     any
}

// syncRemote runs the scheduler stages. Every failure becomes an outcome;
// nothing here may stop the internal save.
func (s *Service) syncRemote(ctx context.Context, logger *logging.Logger, req Request, phone string, n normalized) (out remoteSync) {
	if s.scheduler == nil {
		out.report.Outcome = SyncDisabled
		return out
	}
	ctx, span := intakeTracer.Start(ctx, "intake.remote_sync")
	defer func() {
		span.SetAttributes(attribute.String("cpr.sync_outcome", string(out.report.Outcome)))
		span.End()
	}()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("remote sync panic", "panic", r)
			out.report.Outcome = SyncFailed
			out.report.Error = fmt.Sprint(r)
			out.response = map[string]string{"error": out.report.Error}
		}
	}()

	fail := func(stage string, err error) remoteSync {
		logger.Warn("remote sync failed", "stage", stage, "error", err)
		span.RecordError(err)
		out.report.Outcome = SyncFailed
		out.report.Error = err.Error()
		out.response = map[string]string{"error": err.Error()}
		return out
	}

	token, err := s.scheduler.GetToken(ctx)
	if err != nil {
		return fail("token", err)
	}

	resolution := s.scheduler.ResolveEventID(ctx, token, req.Service)
	out.report.EventID = resolution.EventID
	out.report.EventName = resolution.EventName
	out.report.MatchTier = resolution.Tier

	switch {
	case n.dateErr != nil:
		logger.Warn("remote sync skipped: unreadable date", "date", req.Date)
		out.report.Outcome = SyncSkippedNormalization
		out.report.Reason = "date"
		return out
	case n.timeErr != nil:
		logger.Warn("remote sync skipped: unreadable time", "time", req.Time)
		out.report.Outcome = SyncSkippedNormalization
		out.report.Reason = "time"
		return out
	}
	out.report.Date = n.date
	out.report.Time = n.tm

	unitID := simplybook.ParseUnitID(req.UnitID)
	avail := s.scheduler.CheckAvailability(ctx, token, resolution.EventID, unitID, n.date, n.tm)
	out.availability = &avail
	if !avail.Available {
		// Advisory: the remote decides in Book.
		logger.Warn("requested slot not listed as available; booking anyway",
			"event_id", resolution.EventID,
			"date", n.date,
			"time", n.tm,
			"alternatives", len(avail.Alternatives),
		)
	}

	name := req.CustomerName
	if name == "" {
		name = req.Email
	}
	bookStart := time.Now()
	result, err := s.scheduler.Book(ctx, token, simplybook.BookRequest{
		EventID: resolution.EventID,
		UnitID:  unitID,
		Date:    n.date,
		Time:    n.tm,
		Client:  simplybook.ClientData{Name: name, Email: req.Email, Phone: phone},
		Additional: map[string]any{
			"participants": max(int(req.Participants), 1),
			"notes":        req.Notes,
			"session_id":   req.SessionID,
		},
	})
	if err != nil {
		return fail("book", err)
	}
	out.response = result
	if result.Error != nil {
		out.report.Outcome = SyncRejected
		out.report.Reason = result.Error.Kind.String()
		out.report.Error = result.Error.Message
		return out
	}
	out.report.Outcome = SyncConfirmed
	logger.Info("remote booking confirmed", "event_id", resolution.EventID, "elapsed", time.Since(bookStart).String())
	return out
}
