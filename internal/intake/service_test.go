package intake

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/cpr-booking-platform/internal/bookings"
	"github.com/wolfman30/cpr-booking-platform/internal/normalize"
	"github.com/wolfman30/cpr-booking-platform/internal/simplybook"
)

type fakeScheduler struct {
	mu         sync.Mutex
	tokenErr   error
	available  bool
	bookErr    error
	bookResult *simplybook.BookResult
	panicOn    string
	booked     []simplybook.BookRequest
}

func (f *fakeScheduler) GetToken(ctx context.Context) (string, error) {
	if f.panicOn == "token" {
		panic("token exploded")
	}
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return "tok", nil
}

func (f *fakeScheduler) ResolveEventID(ctx context.Context, token, name string) simplybook.EventResolution {
	return simplybook.EventResolution{EventID: 2, EventName: name, Tier: simplybook.MatchExact}
}

func (f *fakeScheduler) CheckAvailability(ctx context.Context, token string, eventID int, unitID *int, date, tm string) simplybook.Availability {
	return simplybook.Availability{Available: f.available, Date: date, Time: tm}
}

func (f *fakeScheduler) Book(ctx context.Context, token string, req simplybook.BookRequest) (*simplybook.BookResult, error) {
	f.mu.Lock()
	f.booked = append(f.booked, req)
	f.mu.Unlock()
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	if f.bookResult != nil {
		return f.bookResult, nil
	}
	return &simplybook.BookResult{Bookings: []simplybook.BookedSlot{{ID: "77"}}}, nil
}

type fakeConfirmer struct {
	sent   []*bookings.Record
	synced []bool
	err    error
}

func (f *fakeConfirmer) SendBookingConfirmation(ctx context.Context, rec *bookings.Record, synced bool) error {
	f.sent = append(f.sent, rec)
	f.synced = append(f.synced, synced)
	return f.err
}

type panickingConfirmer struct{}

func (panickingConfirmer) SendBookingConfirmation(ctx context.Context, rec *bookings.Record, synced bool) error {
	panic("template exploded")
}

type failingStore struct {
	bookings.Store
}

func (failingStore) UpsertBySessionID(ctx context.Context, sessionID string, fields bookings.Fields) (*bookings.Record, bool, error) {
	return nil, false, errors.New("db down")
}

func validRequest() Request {
	return Request{
		SessionID:    "cs_test_1",
		CustomerName: "Jane Doe",
		Email:        "jane@example.com",
		Phone:        "(555) 123-4567",
		Service:      "BLS Provider",
		Date:         "April 14, 2025",
		Time:         "2:00 PM",
		Participants: 2,
	}
}

func TestProcessValidation(t *testing.T) {
	svc := NewService(bookings.NewMemoryStore(), Options{})
	_, err := svc.Process(context.Background(), Request{Email: "  ", Service: "BLS"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t, []string{"email", "date", "time"}, verr.Missing)
}

func TestProcessConfirmed(t *testing.T) {
	store := bookings.NewMemoryStore()
	sched := &fakeScheduler{available: true}
	confirmer := &fakeConfirmer{}
	svc := NewService(store, Options{Scheduler: sched, Confirmer: confirmer})

	res, err := svc.Process(context.Background(), validRequest())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, SyncConfirmed, res.Sync.Outcome)
	assert.Equal(t, msgConfirmed, res.Message)
	require.NotNil(t, res.Booking)
	assert.Equal(t, "+15551234567", res.Booking.Phone)
	assert.Equal(t, "2025-04-14T00:00:00.000Z", res.Booking.Date)
	assert.Equal(t, "2:00 PM", res.Booking.Time)
	assert.Equal(t, 2, res.Booking.Participants)

	require.Len(t, sched.booked, 1)
	assert.Equal(t, "2025-04-14", sched.booked[0].Date)
	assert.Equal(t, "14:00:00", sched.booked[0].Time)
	assert.Nil(t, sched.booked[0].UnitID)

	require.Len(t, confirmer.sent, 1)
	assert.True(t, confirmer.synced[0])
}

func TestProcessUpsertIdempotence(t *testing.T) {
	store := bookings.NewMemoryStore()
	confirmer := &fakeConfirmer{}
	svc := NewService(store, Options{Scheduler: &fakeScheduler{available: true}, Confirmer: confirmer})

	first := validRequest()
	_, err := svc.Process(context.Background(), first)
	require.NoError(t, err)

	second := validRequest()
	second.Participants = 5
	res, err := svc.Process(context.Background(), second)
	require.NoError(t, err)
	assert.False(t, res.Created)

	all, err := store.List(context.Background(), bookings.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 5, all[0].Participants)
	assert.Len(t, confirmer.sent, 1, "redelivery must not resend confirmation")
}

func TestProcessRedeliveryWithoutPhoneKeepsStoredPhone(t *testing.T) {
	store := bookings.NewMemoryStore()
	sched := &fakeScheduler{available: true}
	svc := NewService(store, Options{Scheduler: sched})

	_, err := svc.Process(context.Background(), validRequest())
	require.NoError(t, err)

	second := validRequest()
	second.Phone = ""
	second.Participants = 3
	res, err := svc.Process(context.Background(), second)
	require.NoError(t, err)
	assert.False(t, res.Created)

	all, err := store.List(context.Background(), bookings.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "+15551234567", all[0].Phone)
	assert.Equal(t, 3, all[0].Participants)

	require.Len(t, sched.booked, 2)
	assert.Equal(t, normalize.PlaceholderPhone, sched.booked[1].Client.Phone, "scheduler still needs a phone")
}

func TestProcessPlaceholderPhoneNotStored(t *testing.T) {
	req := validRequest()
	req.Phone = "n/a"
	svc := NewService(bookings.NewMemoryStore(), Options{})
	res, err := svc.Process(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, res.Booking.Phone)
}

func TestProcessConcurrentSameSession(t *testing.T) {
	store := bookings.NewMemoryStore()
	svc := NewService(store, Options{Scheduler: &fakeScheduler{available: true}})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Process(context.Background(), validRequest())
		}()
	}
	wg.Wait()

	all, _ := store.List(context.Background(), bookings.ListFilter{})
	assert.Len(t, all, 1)
}

func TestProcessRemoteRejectionIsSoft(t *testing.T) {
	tests := []struct {
		name    string
		remote  *simplybook.RemoteError
		message string
	}{
		{"unit unavailable", &simplybook.RemoteError{Code: -32000, Message: "Unit not available", Kind: simplybook.ErrorKindUnitUnavailable}, msgUnavailable},
		{"event unavailable", &simplybook.RemoteError{Code: -32000, Message: "Event unavailable", Kind: simplybook.ErrorKindEventUnavailable}, msgUnavailable},
		{"other", &simplybook.RemoteError{Code: -32050, Message: "Client email invalid"}, msgRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := bookings.NewMemoryStore()
			sched := &fakeScheduler{bookResult: &simplybook.BookResult{Error: tt.remote}}
			svc := NewService(store, Options{Scheduler: sched})

			res, err := svc.Process(context.Background(), validRequest())
			require.NoError(t, err)
			assert.True(t, res.Success)
			assert.Equal(t, SyncRejected, res.Sync.Outcome)
			assert.Equal(t, tt.message, res.Message)
			assert.NotNil(t, res.Booking)
			assert.NotNil(t, res.Availability)
			assert.False(t, res.Availability.Available)

			resp, ok := res.SimplybookResponse.(*simplybook.BookResult)
			require.True(t, ok)
			assert.Equal(t, tt.remote.Message, resp.Error.Message)
		})
	}
}

func TestProcessUnreadableDateSkipsRemote(t *testing.T) {
	store := bookings.NewMemoryStore()
	sched := &fakeScheduler{available: true}
	svc := NewService(store, Options{Scheduler: sched})

	req := validRequest()
	req.Date = "next Tuesday"
	res, err := svc.Process(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, SyncSkippedNormalization, res.Sync.Outcome)
	assert.Equal(t, "date", res.Sync.Reason)
	assert.Equal(t, msgSkipped, res.Message)
	assert.Empty(t, sched.booked)
	assert.Equal(t, "next Tuesday", res.Booking.Date)
}

func TestProcessUnreadableTimeSkipsRemote(t *testing.T) {
	sched := &fakeScheduler{available: true}
	svc := NewService(bookings.NewMemoryStore(), Options{Scheduler: sched})

	req := validRequest()
	req.Time = "after lunch"
	res, err := svc.Process(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "time", res.Sync.Reason)
	assert.Equal(t, "after lunch", res.Booking.Time)
	assert.Empty(t, sched.booked)
}

func TestProcessRemoteFailuresDoNotBlockSave(t *testing.T) {
	cases := map[string]*fakeScheduler{
		"token error": {tokenErr: errors.New("login refused")},
		"book error":  {bookErr: errors.New("connection reset")},
		"panic":       {panicOn: "token"},
	}
	for name, sched := range cases {
		t.Run(name, func(t *testing.T) {
			store := bookings.NewMemoryStore()
			svc := NewService(store, Options{Scheduler: sched})

			res, err := svc.Process(context.Background(), validRequest())
			require.NoError(t, err)
			assert.True(t, res.Success)
			assert.Equal(t, SyncFailed, res.Sync.Outcome)
			assert.Equal(t, msgFailed, res.Message)
			assert.NotEmpty(t, res.Sync.Error)

			all, _ := store.List(context.Background(), bookings.ListFilter{})
			assert.Len(t, all, 1)
		})
	}
}

func TestProcessAvailabilityIsAdvisory(t *testing.T) {
	sched := &fakeScheduler{available: false}
	svc := NewService(bookings.NewMemoryStore(), Options{Scheduler: sched})

	res, err := svc.Process(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Len(t, sched.booked, 1)
	assert.Equal(t, SyncConfirmed, res.Sync.Outcome)
	assert.False(t, res.Availability.Available)
}

func TestProcessWithoutScheduler(t *testing.T) {
	svc := NewService(bookings.NewMemoryStore(), Options{})
	res, err := svc.Process(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, SyncDisabled, res.Sync.Outcome)
	assert.Equal(t, msgReceived, res.Message)
}

func TestProcessSaveFailure(t *testing.T) {
	svc := NewService(failingStore{}, Options{Scheduler: &fakeScheduler{available: true}})
	res, err := svc.Process(context.Background(), validRequest())
	require.ErrorIs(t, err, ErrInternal)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Nil(t, res.Booking)
	assert.Equal(t, SyncConfirmed, res.Sync.Outcome)
}

func TestProcessConfirmationFailureIgnored(t *testing.T) {
	svc := NewService(bookings.NewMemoryStore(), Options{Confirmer: &fakeConfirmer{err: errors.New("smtp down")}})
	res, err := svc.Process(context.Background(), validRequest())
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestProcessPanicAfterSaveKeepsBooking(t *testing.T) {
	svc := NewService(bookings.NewMemoryStore(), Options{Confirmer: panickingConfirmer{}})
	res, err := svc.Process(context.Background(), validRequest())
	require.ErrorIs(t, err, ErrInternal)
	require.NotNil(t, res)
	require.NotNil(t, res.Booking)
	assert.False(t, res.Success)
	assert.Equal(t, msgSavedIncomplete, res.Message)
}

func TestProcessDefaultsParticipantsAndUnit(t *testing.T) {
	sched := &fakeScheduler{available: true}
	svc := NewService(bookings.NewMemoryStore(), Options{Scheduler: sched})

	req := validRequest()
	req.Participants = 0
	req.UnitID = "3"
	res, err := svc.Process(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Booking.Participants)
	require.NotNil(t, sched.booked[0].UnitID)
	assert.Equal(t, 3, *sched.booked[0].UnitID)
}
