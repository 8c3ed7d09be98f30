package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"lifeline-plus/internal/delivery/dto"
	"lifeline-plus/internal/delivery/http/middleware"
	"lifeline-plus/internal/domain/entity"
	"lifeline-plus/internal/infrastructure/geocoder"
	"lifeline-plus/internal/infrastructure/sms"
	"lifeline-plus/internal/repository"
	"lifeline-plus/internal/service"
	"lifeline-plus/internal/service/alertfeed"
	"lifeline-plus/internal/service/location"
	"lifeline-plus/internal/testutil"
	"lifeline-plus/pkg/metrics"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const receiver = "+15550009999"

type sentMessage struct {
	to   string
	body string
}

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeDispatcher) Send(ctx context.Context, to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", fmt.Errorf("%w: %w", sms.ErrDispatch, f.err)
	}
	f.sent = append(f.sent, sentMessage{to: to, body: body})
	return fmt.Sprintf("SM%032d", len(f.sent)), nil
}

type fakeAcquirer struct {
	pos   location.Position
	err   error
	calls int
}

func (f *fakeAcquirer) Acquire(ctx context.Context, req location.Request) (location.Position, error) {
	f.calls++
	if f.err != nil {
		return location.Position{}, f.err
	}
	if req.Latitude != nil && req.Longitude != nil {
		return location.Position{Latitude: *req.Latitude, Longitude: *req.Longitude, Source: entity.LocationSourceDevice}, nil
	}
	return f.pos, nil
}

type fakeGeocoder struct {
	place string
	err   error
}

func (f fakeGeocoder) Reverse(ctx context.Context, lat, lng float64) (string, error) {
	return f.place, f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []alertfeed.Event
}

func (f *fakePublisher) Publish(ctx context.Context, event alertfeed.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

type emergencyFixture struct {
	db         *gorm.DB
	uc         EmergencyUsecase
	dispatcher *fakeDispatcher
	acquirer   *fakeAcquirer
	publisher  *fakePublisher
	metrics    *metrics.Metrics
}

func newEmergencyFixture(t *testing.T) *emergencyFixture {
	t.Helper()
	db := testutil.NewDB(t)
	log := testutil.QuietLogger()

	f := &emergencyFixture{
		db:         db,
		dispatcher: &fakeDispatcher{},
		acquirer:   &fakeAcquirer{pos: location.Degraded},
		publisher:  &fakePublisher{},
		metrics:    metrics.NewMetrics(prometheus.NewRegistry()),
	}
	f.uc = NewEmergencyUsecase(
		db, log,
		repository.NewEmergencyAlertRepository(),
		repository.NewDoctorProfileRepository(),
		service.NewAuditService(db, log, repository.NewAuditLogRepository()),
		f.acquirer, f.dispatcher,
		fakeGeocoder{place: "5th Ave, New York"},
		f.publisher, f.metrics, receiver,
	)
	return f
}

func ptr(v float64) *float64 { return &v }

func doctorCtx(id uuid.UUID) context.Context {
	return middleware.WithUser(context.Background(), id, "doc@example.com", entity.RoleDoctor, "tok")
}

func (f *emergencyFixture) alerts(t *testing.T) []entity.EmergencyAlert {
	t.Helper()
	var alerts []entity.EmergencyAlert
	require.NoError(t, f.db.Find(&alerts).Error)
	return alerts
}

func TestSubmitAlert_Success(t *testing.T) {
	f := newEmergencyFixture(t)

	resp, err := f.uc.SubmitAlert(context.Background(), &dto.SubmitAlertRequest{
		PatientName:   "Jo",
		PatientPhone:  "555-1000",
		EmergencyType: "cardiac",
		Latitude:      ptr(40.0),
		Longitude:     ptr(-74.0),
	})
	require.NoError(t, err)
	assert.Equal(t, string(OutcomeSuccess), resp.Outcome)
	assert.NotEmpty(t, resp.MessageSID)

	alerts := f.alerts(t)
	require.Len(t, alerts, 1)
	assert.Equal(t, entity.AlertStatusActive, alerts[0].Status)
	assert.Equal(t, 40.0, alerts[0].Latitude)
	assert.Equal(t, -74.0, alerts[0].Longitude)
	assert.Equal(t, entity.LocationSourceDevice, alerts[0].LocationSource)
	assert.Equal(t, resp.MessageSID, alerts[0].NotificationSID)
	assert.Nil(t, alerts[0].AssignedDoctorID)

	require.Len(t, f.dispatcher.sent, 1)
	assert.Equal(t, receiver, f.dispatcher.sent[0].to)
	assert.Contains(t, f.dispatcher.sent[0].body, "cardiac")
	assert.Contains(t, f.dispatcher.sent[0].body, "555-1000")
	assert.Contains(t, f.dispatcher.sent[0].body, alerts[0].ID.String())
	assert.Contains(t, f.dispatcher.sent[0].body, "https://maps.google.com/?q=40,-74")

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, alertfeed.EventAlertCreated, f.publisher.events[0].Type)
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.AlertOutcomes.WithLabelValues("success")))

	var audits int64
	f.db.Model(&entity.AuditLog{}).Where("action = ?", entity.AuditActionAlertCreate).Count(&audits)
	assert.Equal(t, int64(1), audits)
}

func TestSubmitAlert_ValidationHasNoSideEffects(t *testing.T) {
	tests := []struct {
		name string
		req  dto.SubmitAlertRequest
		want error
	}{
		{"blank name", dto.SubmitAlertRequest{PatientName: "  ", PatientPhone: "555", EmergencyType: "cardiac"}, ErrAlertFieldsRequired},
		{"missing phone", dto.SubmitAlertRequest{PatientName: "Jo", EmergencyType: "cardiac"}, ErrAlertFieldsRequired},
		{"unknown type", dto.SubmitAlertRequest{PatientName: "Jo", PatientPhone: "555", EmergencyType: "flu"}, ErrInvalidEmergencyType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEmergencyFixture(t)

			_, err := f.uc.SubmitAlert(context.Background(), &tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.alerts(t))
			assert.Empty(t, f.dispatcher.sent)
			assert.Zero(t, f.acquirer.calls)
		})
	}
}

func TestSubmitAlert_LocationFailureDegrades(t *testing.T) {
	f := newEmergencyFixture(t)
	f.acquirer.err = location.ErrLocationUnavailable

	resp, err := f.uc.SubmitAlert(context.Background(), &dto.SubmitAlertRequest{
		PatientName:   "Sam",
		PatientPhone:  "555-2000",
		EmergencyType: "breathing",
	})
	require.NoError(t, err)
	assert.Contains(t, []string{string(OutcomeSuccess), string(OutcomePartial)}, resp.Outcome)

	alerts := f.alerts(t)
	require.Len(t, alerts, 1)
	assert.Equal(t, 0.0, alerts[0].Latitude)
	assert.Equal(t, 0.0, alerts[0].Longitude)
	assert.Equal(t, entity.LocationSourceNone, alerts[0].LocationSource)

	require.Len(t, f.dispatcher.sent, 1)
	assert.Contains(t, f.dispatcher.sent[0].body, "Location: unavailable")
	assert.NotContains(t, f.dispatcher.sent[0].body, "maps.google.com")
}

func TestSubmitAlert_DispatchFailureIsPartial(t *testing.T) {
	f := newEmergencyFixture(t)
	f.dispatcher.err = errors.New("twilio unreachable")

	resp, err := f.uc.SubmitAlert(context.Background(), &dto.SubmitAlertRequest{
		PatientName:   "Jo",
		PatientPhone:  "555-1000",
		EmergencyType: "stroke",
		Latitude:      ptr(40.0),
		Longitude:     ptr(-74.0),
	})
	require.NoError(t, err)
	assert.Equal(t, string(OutcomePartial), resp.Outcome)
	assert.NotEmpty(t, resp.Warning)
	assert.Empty(t, resp.MessageSID)

	alerts := f.alerts(t)
	require.Len(t, alerts, 1)
	assert.Equal(t, entity.AlertStatusActive, alerts[0].Status)
	assert.Contains(t, alerts[0].NotificationError, "twilio unreachable")
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.AlertOutcomes.WithLabelValues("partial")))
}

func TestSubmitAlert_PersistFailureSkipsDispatch(t *testing.T) {
	f := newEmergencyFixture(t)
	require.NoError(t, f.db.Migrator().DropTable(&entity.EmergencyAlert{}))

	_, err := f.uc.SubmitAlert(context.Background(), &dto.SubmitAlertRequest{
		PatientName:   "Jo",
		PatientPhone:  "555-1000",
		EmergencyType: "injury",
	})
	require.Error(t, err)
	assert.Empty(t, f.dispatcher.sent)
	assert.Empty(t, f.publisher.events)
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.AlertOutcomes.WithLabelValues("failure")))
}

func TestSubmitAlert_LinksLoggedInPatient(t *testing.T) {
	f := newEmergencyFixture(t)
	patient := testutil.SeedUser(t, f.db, "jo@example.com", entity.RoleIDPatient)
	ctx := middleware.WithUser(context.Background(), patient.ID, patient.Email, entity.RolePatient, "tok")

	_, err := f.uc.SubmitAlert(ctx, &dto.SubmitAlertRequest{PatientName: "Jo", PatientPhone: "555-1000", EmergencyType: "Allergic"})
	require.NoError(t, err)

	mine, err := f.uc.ListMyAlerts(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, mine.Total)
	assert.Equal(t, "allergic", mine.Alerts[0].EmergencyType)
	require.NotNil(t, mine.Alerts[0].PatientID)
	assert.Equal(t, patient.ID, *mine.Alerts[0].PatientID)
}

func TestAssignAndResolve(t *testing.T) {
	f := newEmergencyFixture(t)
	doc := testutil.SeedDoctor(t, f.db, "a@example.com", "LIC-1", ptr(40.1), ptr(-74.0))
	other := testutil.SeedDoctor(t, f.db, "b@example.com", "LIC-2", nil, nil)

	resp, err := f.uc.SubmitAlert(context.Background(), &dto.SubmitAlertRequest{
		PatientName: "Jo", PatientPhone: "555-1000", EmergencyType: "cardiac",
		Latitude: ptr(40.0), Longitude: ptr(-74.0),
	})
	require.NoError(t, err)
	alertID := resp.Alert.ID

	open, err := f.uc.ListOpenAlerts(doctorCtx(doc.UserID))
	require.NoError(t, err)
	require.Equal(t, 1, open.Total)
	require.NotNil(t, open.Alerts[0].DistanceKm)
	assert.InDelta(t, 11.1, *open.Alerts[0].DistanceKm, 0.2)

	_, err = f.uc.ResolveAlert(doctorCtx(doc.UserID), alertID)
	assert.ErrorIs(t, err, ErrAlertNotResolvable)

	assigned, err := f.uc.AssignAlert(doctorCtx(doc.UserID), alertID)
	require.NoError(t, err)
	assert.Equal(t, string(entity.AlertStatusAssigned), assigned.Status)
	require.NotNil(t, assigned.AssignedDoctorID)
	assert.Equal(t, doc.UserID, *assigned.AssignedDoctorID)

	_, err = f.uc.AssignAlert(doctorCtx(other.UserID), alertID)
	assert.ErrorIs(t, err, ErrAlertNotAssignable)

	_, err = f.uc.ResolveAlert(doctorCtx(other.UserID), alertID)
	assert.ErrorIs(t, err, ErrAlertNotResolvable)

	resolved, err := f.uc.ResolveAlert(doctorCtx(doc.UserID), alertID)
	require.NoError(t, err)
	assert.Equal(t, string(entity.AlertStatusResolved), resolved.Status)
	assert.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, doc.UserID, *resolved.AssignedDoctorID)

	open, err = f.uc.ListOpenAlerts(doctorCtx(doc.UserID))
	require.NoError(t, err)
	assert.Zero(t, open.Total)

	types := make([]alertfeed.EventType, 0, len(f.publisher.events))
	for _, ev := range f.publisher.events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []alertfeed.EventType{alertfeed.EventAlertCreated, alertfeed.EventAlertAssigned, alertfeed.EventAlertResolved}, types)
}

func TestAssignAlert_ConcurrentDoctorsOneWins(t *testing.T) {
	f := newEmergencyFixture(t)
	resp, err := f.uc.SubmitAlert(context.Background(), &dto.SubmitAlertRequest{PatientName: "Jo", PatientPhone: "555", EmergencyType: "other"})
	require.NoError(t, err)

	const doctors = 5
	var wg sync.WaitGroup
	results := make(chan error, doctors)
	for i := 0; i < doctors; i++ {
		doc := testutil.SeedDoctor(t, f.db, fmt.Sprintf("d%d@example.com", i), fmt.Sprintf("LIC-%d", i), nil, nil)
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := f.uc.AssignAlert(doctorCtx(id), resp.Alert.ID)
			results <- err
		}(doc.UserID)
	}
	wg.Wait()
	close(results)

	var won, lost int
	for err := range results {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrAlertNotAssignable):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, doctors-1, lost)
}

func TestAssignAlert_NotFound(t *testing.T) {
	f := newEmergencyFixture(t)
	_, err := f.uc.AssignAlert(doctorCtx(uuid.New()), uuid.New())
	assert.ErrorIs(t, err, ErrAlertNotFound)
}

func TestSendSOS(t *testing.T) {
	t.Run("missing coordinates", func(t *testing.T) {
		f := newEmergencyFixture(t)
		_, err := f.uc.SendSOS(context.Background(), &dto.SendSOSRequest{Latitude: ptr(40)})
		assert.ErrorIs(t, err, ErrMissingCoordinates)
		assert.Empty(t, f.dispatcher.sent)
	})

	t.Run("geocoded message", func(t *testing.T) {
		f := newEmergencyFixture(t)
		sid, err := f.uc.SendSOS(context.Background(), &dto.SendSOSRequest{Latitude: ptr(40.7484), Longitude: ptr(-73.9857)})
		require.NoError(t, err)
		assert.NotEmpty(t, sid)
		require.Len(t, f.dispatcher.sent, 1)
		assert.Equal(t, receiver, f.dispatcher.sent[0].to)
		assert.Contains(t, f.dispatcher.sent[0].body, "SOS Alert")
		assert.Contains(t, f.dispatcher.sent[0].body, "5th Ave, New York")
		assert.Contains(t, f.dispatcher.sent[0].body, "https://maps.google.com/?q=40.7484,-73.9857")
		assert.Empty(t, f.alerts(t))
	})

	t.Run("geocoder failure falls back", func(t *testing.T) {
		f := newEmergencyFixture(t)
		f.uc.(*emergencyUsecase).geocoder = fakeGeocoder{err: geocoder.ErrNoResult}
		_, err := f.uc.SendSOS(context.Background(), &dto.SendSOSRequest{Latitude: ptr(1), Longitude: ptr(2)})
		require.NoError(t, err)
		assert.Contains(t, f.dispatcher.sent[0].body, "Unknown Location")
	})

	t.Run("dispatch failure", func(t *testing.T) {
		f := newEmergencyFixture(t)
		f.dispatcher.err = errors.New("boom")
		_, err := f.uc.SendSOS(context.Background(), &dto.SendSOSRequest{Latitude: ptr(1), Longitude: ptr(2)})
		assert.ErrorIs(t, err, sms.ErrDispatch)
	})
}

func TestNotifyEmergencySMS_RecordsOnAlert(t *testing.T) {
	f := newEmergencyFixture(t)
	f.dispatcher.err = errors.New("down")
	resp, err := f.uc.SubmitAlert(context.Background(), &dto.SubmitAlertRequest{PatientName: "Jo", PatientPhone: "555", EmergencyType: "other"})
	require.NoError(t, err)
	require.Equal(t, string(OutcomePartial), resp.Outcome)

	f.dispatcher.err = nil
	sid, err := f.uc.NotifyEmergencySMS(context.Background(), &dto.EmergencySMSRequest{
		AlertID:       resp.Alert.ID.String(),
		Phone:         "+15551230000",
		EmergencyType: "other",
		Location:      "Main St",
	})
	require.NoError(t, err)

	alerts := f.alerts(t)
	require.Len(t, alerts, 1)
	assert.Equal(t, sid, alerts[0].NotificationSID)
	assert.Empty(t, alerts[0].NotificationError)
	assert.Contains(t, f.dispatcher.sent[0].body, "Alert ID: "+resp.Alert.ID.String())
}

func TestNotifyEmergencySMS_KeepsDeliveredSID(t *testing.T) {
	f := newEmergencyFixture(t)
	resp, err := f.uc.SubmitAlert(context.Background(), &dto.SubmitAlertRequest{
		PatientName: "Jo", PatientPhone: "555-1000", EmergencyType: "cardiac",
		Latitude: ptr(40.0), Longitude: ptr(-74.0),
	})
	require.NoError(t, err)
	require.Equal(t, string(OutcomeSuccess), resp.Outcome)
	delivered := resp.MessageSID

	req := &dto.EmergencySMSRequest{
		AlertID:       resp.Alert.ID.String(),
		Phone:         "+15551230000",
		EmergencyType: "cardiac",
		Location:      "Main St",
	}

	f.dispatcher.err = errors.New("down")
	_, err = f.uc.NotifyEmergencySMS(context.Background(), req)
	assert.ErrorIs(t, err, sms.ErrDispatch)

	f.dispatcher.err = nil
	other, err := f.uc.NotifyEmergencySMS(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, delivered, other)

	alerts := f.alerts(t)
	require.Len(t, alerts, 1)
	assert.Equal(t, delivered, alerts[0].NotificationSID)
	assert.Empty(t, alerts[0].NotificationError)
}
