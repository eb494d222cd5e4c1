package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/applysync/internal/apperror"
	"github.com/sakif/applysync/internal/events"
	"github.com/sakif/applysync/internal/metrics"
	"github.com/sakif/applysync/internal/model"
	"github.com/sakif/applysync/internal/repository/mock"
	"github.com/sakif/applysync/internal/repository/sqlite"
)

// =========================================================================
// TEST DOUBLES
// =========================================================================

// recordingPublisher keeps every event it is handed.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.SubscriberCreated
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.SubscriberCreated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) published() []events.SubscriberCreated {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.SubscriberCreated(nil), p.events...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newMockedService wires the service to a gomock repository.
func newMockedService(t *testing.T) (*SubscriptionService, *mock.MockSubscriberRepository, *recordingPublisher) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mock.NewMockSubscriberRepository(ctrl)
	pub := &recordingPublisher{}
	return NewSubscriptionService(repo, pub, metrics.New(), discardLogger()), repo, pub
}

// newSQLiteService wires the service to a real in-memory store.
func newSQLiteService(t *testing.T) (*SubscriptionService, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.New(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSubscriptionService(db, events.NopPublisher{}, metrics.New(), discardLogger()), db
}

// =========================================================================
// VALIDATION
// =========================================================================

func TestValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"new@example.com", true},
		{"first.last+tag@sub.example.co.uk", true},
		{"a@b.c", true},
		{"Mixed@Case.IO", true},
		{"", false},
		{"not-an-email", false},
		{"missing-domain@", false},
		{"@missing-local.com", false},
		{"no-dot@localhost", false},
		{"two@@example.com", false},
		{"a@b@example.com", false},
		{"space in@example.com", false},
		{" lead@example.com", false},
		{"trail@example.com ", false},
		{"tab\t@example.com", false},
		{"nbsp\u00a0x@example.com", false},
		{"bom\ufeff@example.com", false},
		{"dot-at-end@example.", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidEmail(tt.email))
		})
	}
}

func TestSubmit_InvalidInputNeverTouchesStore(t *testing.T) {
	// The gomock controller fails the test on ANY unexpected repo call.
	svc, _, pub := newMockedService(t)

	for _, email := range []string{"", "not-an-email", "a@b", "x y@z.io"} {
		outcome, err := svc.Submit(context.Background(), email)

		assert.Equal(t, OutcomeInvalidInput, outcome, email)
		assert.True(t, errors.Is(err, apperror.ErrValidation), email)

		var appErr *apperror.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, MessageInvalidEmail, appErr.Message)
		assert.Equal(t, "email", appErr.Field)
	}
	assert.Empty(t, pub.published())
}

// =========================================================================
// OUTCOMES
// =========================================================================

func TestSubmit_NewEmail(t *testing.T) {
	svc, repo, pub := newMockedService(t)
	ctx := context.Background()

	gomock.InOrder(
		repo.EXPECT().FindByEmail(gomock.Any(), "new@example.com").
			Return(nil, apperror.NotFound("subscriber", "new@example.com")),
		repo.EXPECT().Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, s *model.Subscriber) error {
				assert.Equal(t, "new@example.com", s.Email)
				s.ID = "cv37rs3pp9olc6atsptg"
				return nil
			}),
	)

	outcome, err := svc.Submit(ctx, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSubscribed, outcome)

	published := pub.published()
	require.Len(t, published, 1)
	assert.Equal(t, "cv37rs3pp9olc6atsptg", published[0].ID)
	assert.Equal(t, events.EventSubscriberCreated, published[0].Event)
}

func TestSubmit_ExistingEmail(t *testing.T) {
	svc, repo, pub := newMockedService(t)

	repo.EXPECT().FindByEmail(gomock.Any(), "old@example.com").
		Return(&model.Subscriber{ID: "x", Email: "old@example.com"}, nil)
	// No Create expectation: calling it would fail the test.

	outcome, err := svc.Submit(context.Background(), "old@example.com")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadySubscribed, outcome)
	assert.Empty(t, pub.published())
}

func TestSubmit_LostInsertRaceIsAlreadySubscribed(t *testing.T) {
	svc, repo, pub := newMockedService(t)

	repo.EXPECT().FindByEmail(gomock.Any(), "race@example.com").
		Return(nil, apperror.NotFound("subscriber", "race@example.com"))
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).
		Return(apperror.Conflict("subscriber", "race@example.com"))

	outcome, err := svc.Submit(context.Background(), "race@example.com")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadySubscribed, outcome)
	assert.Empty(t, pub.published())
}

func TestSubmit_LookupFailure(t *testing.T) {
	svc, repo, _ := newMockedService(t)
	cause := errors.New("redis: connection refused")

	repo.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(nil, cause)

	outcome, err := svc.Submit(context.Background(), "x@example.com")
	assert.Equal(t, OutcomeStoreFailure, outcome)
	assert.True(t, errors.Is(err, apperror.ErrUnavailable))
	assert.True(t, errors.Is(err, cause), "cause must stay in the chain for logs")
	assert.Equal(t, MessageStoreFailure, err.Error())
}

func TestSubmit_InsertFailure(t *testing.T) {
	svc, repo, pub := newMockedService(t)

	repo.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).
		Return(nil, apperror.NotFound("subscriber", "x@example.com"))
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).
		Return(errors.New("disk I/O error"))

	outcome, err := svc.Submit(context.Background(), "x@example.com")
	assert.Equal(t, OutcomeStoreFailure, outcome)
	assert.True(t, errors.Is(err, apperror.ErrUnavailable))
	assert.Empty(t, pub.published())
}

func TestSubmit_PublishFailureDoesNotChangeOutcome(t *testing.T) {
	svc, repo, pub := newMockedService(t)
	pub.err = errors.New("kafka: broker not available")

	repo.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).
		Return(nil, apperror.NotFound("subscriber", "x@example.com"))
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

	outcome, err := svc.Submit(context.Background(), "x@example.com")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSubscribed, outcome)
}

func TestSubmit_PublishSurvivesCancelledRequest(t *testing.T) {
	svc, repo, pub := newMockedService(t)
	ctx, cancel := context.WithCancel(context.Background())

	repo.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).
		Return(nil, apperror.NotFound("subscriber", "x@example.com"))
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, *model.Subscriber) error {
			cancel() // client hung up right after the insert
			return nil
		})

	outcome, err := svc.Submit(ctx, "x@example.com")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSubscribed, outcome)
	assert.Len(t, pub.published(), 1)
}

func TestSubmit_CountsOutcomes(t *testing.T) {
	m := metrics.New()
	db, err := sqlite.New(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	svc := NewSubscriptionService(db, events.NopPublisher{}, m, discardLogger())
	ctx := context.Background()

	_, _ = svc.Submit(ctx, "bad")
	_, _ = svc.Submit(ctx, "count@example.com")
	_, _ = svc.Submit(ctx, "count@example.com")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()

	assert.Contains(t, body, `applysync_subscriptions_total{outcome="invalid_input"} 1`)
	assert.Contains(t, body, `applysync_subscriptions_total{outcome="subscribed"} 1`)
	assert.Contains(t, body, `applysync_subscriptions_total{outcome="already_subscribed"} 1`)
}

// =========================================================================
// AGAINST A REAL STORE
// =========================================================================

func TestSubmit_TwiceIsIdempotent(t *testing.T) {
	svc, db := newSQLiteService(t)
	ctx := context.Background()

	first, err := svc.Submit(ctx, "new@example.com")
	require.NoError(t, err)
	second, err := svc.Submit(ctx, "new@example.com")
	require.NoError(t, err)

	assert.Equal(t, OutcomeSubscribed, first)
	assert.Equal(t, OutcomeAlreadySubscribed, second)

	found, err := db.FindByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", found.Email)
}

func TestSubmit_CaseVariantsAreDistinct(t *testing.T) {
	svc, _ := newSQLiteService(t)
	ctx := context.Background()

	a, err := svc.Submit(ctx, "Case@example.com")
	require.NoError(t, err)
	b, err := svc.Submit(ctx, "case@example.com")
	require.NoError(t, err)

	assert.Equal(t, OutcomeSubscribed, a)
	assert.Equal(t, OutcomeSubscribed, b)
}

// Two near-simultaneous submissions: exactly one Subscribed, one
// AlreadySubscribed, never two Subscribed.
func TestSubmit_ConcurrentSameEmail(t *testing.T) {
	for range 20 {
		svc, _ := newSQLiteService(t)
		ctx := context.Background()

		outcomes := make([]Outcome, 2)
		var g errgroup.Group
		for i := range outcomes {
			g.Go(func() error {
				o, err := svc.Submit(ctx, "race@example.com")
				outcomes[i] = o
				return err
			})
		}
		require.NoError(t, g.Wait())

		assert.ElementsMatch(t, []Outcome{OutcomeSubscribed, OutcomeAlreadySubscribed}, outcomes)
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "invalid_input", OutcomeInvalidInput.String())
	assert.Equal(t, "already_subscribed", OutcomeAlreadySubscribed.String())
	assert.Equal(t, "subscribed", OutcomeSubscribed.String())
	assert.Equal(t, "store_failure", OutcomeStoreFailure.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
