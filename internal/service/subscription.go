// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes the store
//
// The service takes a repository.SubscriberRepository (interface), not a
// concrete store, so the same logic runs over SQLite, Postgres, Redis, or a
// mock in tests.
package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"time"

	"github.com/sakif/applysync/internal/apperror"
	"github.com/sakif/applysync/internal/events"
	"github.com/sakif/applysync/internal/metrics"
	"github.com/sakif/applysync/internal/model"
	"github.com/sakif/applysync/internal/repository"
)

// User-facing messages. Handlers send these verbatim.
const (
	MessageInvalidEmail      = "Please provide a valid email address"
	MessageSubscribed        = "Thanks for subscribing! We'll be in touch soon."
	MessageAlreadySubscribed = "You're already subscribed!"
	MessageStoreFailure      = "Something went wrong. Please try again later."
)

// publishTimeout caps a Publisher that blocks. KafkaPublisher only buffers
// and returns at once.
const publishTimeout = 5 * time.Second

// emailPattern accepts local@domain.tld where no part contains whitespace or
// a second "@". The class excludes every Unicode space separator, \v and the
// BOM as well as RE2's ASCII \s set.
var emailPattern = regexp.MustCompile(`^[^\s\v\p{Z}\x{FEFF}@]+@[^\s\v\p{Z}\x{FEFF}@]+\.[^\s\v\p{Z}\x{FEFF}@]+$`)

// ValidEmail reports whether email has the shape local@domain.tld.
// It does not normalize: "A@x.io" and "a@x.io" are distinct subscribers.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// Outcome is the result of one subscription attempt.
type Outcome int

const (
	OutcomeInvalidInput Outcome = iota
	OutcomeAlreadySubscribed
	OutcomeSubscribed
	OutcomeStoreFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInvalidInput:
		return "invalid_input"
	case OutcomeAlreadySubscribed:
		return "already_subscribed"
	case OutcomeSubscribed:
		return "subscribed"
	case OutcomeStoreFailure:
		return "store_failure"
	}
	return "unknown"
}

// SubscriptionService registers email addresses.
type SubscriptionService struct {
	repo      repository.SubscriberRepository
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewSubscriptionService wires the service. publisher may be events.NopPublisher{}.
func NewSubscriptionService(repo repository.SubscriberRepository, publisher events.Publisher, m *metrics.Metrics, logger *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		repo:      repo,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// Submit subscribes email.
//
// RETURN CONTRACT:
//   - OutcomeInvalidInput, apperror.ErrValidation: bad shape, store untouched
//   - OutcomeAlreadySubscribed, nil: email already stored (not an error)
//   - OutcomeSubscribed, nil: a new record was inserted
//   - OutcomeStoreFailure, apperror.ErrUnavailable: lookup or insert failed
//
// CHECK-THEN-ACT:
// FindByEmail is only a fast path that saves a write for repeat visitors. Two
// concurrent calls can both miss it; the store's unique constraint then lets
// exactly one Create through and the loser gets ErrConflict, which we report
// as AlreadySubscribed.
func (s *SubscriptionService) Submit(ctx context.Context, email string) (Outcome, error) {
	outcome, err := s.submit(ctx, email)
	s.metrics.ObserveSubscription(outcome.String())
	return outcome, err
}

func (s *SubscriptionService) submit(ctx context.Context, email string) (Outcome, error) {
	if !ValidEmail(email) {
		return OutcomeInvalidInput, apperror.ValidationFailed("email", MessageInvalidEmail)
	}

	_, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return OutcomeAlreadySubscribed, nil
	case !errors.Is(err, apperror.ErrNotFound):
		return s.storeFailure("looking up subscriber", err)
	}

	sub := &model.Subscriber{Email: email}
	if err := s.repo.Create(ctx, sub); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			s.logger.Debug("subscriber inserted concurrently", slog.String("email", email))
			return OutcomeAlreadySubscribed, nil
		}
		return s.storeFailure("creating subscriber", err)
	}

	s.logger.Info("subscriber created",
		slog.String("id", sub.ID),
		slog.String("email", sub.Email),
	)
	s.publish(ctx, sub)

	return OutcomeSubscribed, nil
}

func (s *SubscriptionService) storeFailure(op string, err error) (Outcome, error) {
	s.logger.Error("subscription store failure",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return OutcomeStoreFailure, apperror.Unavailable(MessageStoreFailure, err)
}

// publish announces a new subscriber. The record is already committed, so a
// broker failure is logged and otherwise ignored. The request context may be
// cancelled as soon as the response is written, hence WithoutCancel.
func (s *SubscriptionService) publish(ctx context.Context, sub *model.Subscriber) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	ev := events.NewSubscriberCreated(sub.ID, sub.Email, sub.CreatedAt)
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish subscriber event",
			slog.String("id", sub.ID),
			slog.String("error", err.Error()),
		)
	}
}
