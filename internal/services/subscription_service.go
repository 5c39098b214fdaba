package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Nifargo/todo-app-server/internal/models"
)

type subscriptionServiceImpl struct {
	logger zerolog.Logger
	pgPool *pgxpool.Pool
}

func NewSubscriptionService(
	logger zerolog.Logger,
	pgPool *pgxpool.Pool,
) SubscriptionService {
	return &subscriptionServiceImpl{
		logger: logger,
		pgPool: pgPool,
	}
}

func (s *subscriptionServiceImpl) RegisterSubscription(ctx context.Context, params RegisterSubscriptionParams) (*models.PushSubscription, error) {
	subUUID, err := uuid.NewV7()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate subscription uuid")
		return nil, err
	}

	sub := &models.PushSubscription{
		ID:        subUUID.String(),
		UserID:    params.UserID,
		Endpoint:  params.Endpoint,
		P256dh:    params.P256dh,
		Auth:      params.Auth,
		CreatedAt: time.Now(),
	}

	// Re-registering the same browser endpoint refreshes the keys
	// instead of piling up duplicates.
	const upsertSubscriptionQuery = `
INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh, auth, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (endpoint) DO UPDATE
SET user_id = EXCLUDED.user_id,
    p256dh = EXCLUDED.p256dh,
    auth = EXCLUDED.auth
RETURNING id, created_at
`
	err = s.pgPool.QueryRow(
		ctx,
		upsertSubscriptionQuery,
		sub.ID,
		sub.UserID,
		sub.Endpoint,
		sub.P256dh,
		sub.Auth,
		sub.CreatedAt,
	).Scan(
		&sub.ID,
		&sub.CreatedAt,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", sub.UserID).
			Msg("failed to upsert subscription")
		return nil, err
	}

	s.logger.Info().
		Str("subscription_id", sub.ID).
		Str("user_id", sub.UserID).
		Msg("registered subscription")
	return sub, nil
}

func (s *subscriptionServiceImpl) DeleteUserSubscription(ctx context.Context, userID, subscriptionID string) error {
	const deleteUserSubscriptionQuery = `
DELETE FROM push_subscriptions
WHERE id = $1 AND user_id = $2
`
	tag, err := s.pgPool.Exec(
		ctx,
		deleteUserSubscriptionQuery,
		subscriptionID,
		userID,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("subscription_id", subscriptionID).
			Str("user_id", userID).
			Msg("failed to delete subscription")
		return err
	}
	if tag.RowsAffected() == 0 {
		s.logger.Warn().
			Str("subscription_id", subscriptionID).
			Str("user_id", userID).
			Msg("subscription not found")
		return ErrSubscriptionNotFound
	}

	s.logger.Info().
		Str("subscription_id", subscriptionID).
		Str("user_id", userID).
		Msg("deleted subscription")
	return nil
}

func (s *subscriptionServiceImpl) DeleteSubscription(ctx context.Context, subscriptionID string) error {
	const deleteSubscriptionQuery = `
DELETE FROM push_subscriptions
WHERE id = $1
`
	tag, err := s.pgPool.Exec(
		ctx,
		deleteSubscriptionQuery,
		subscriptionID,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("subscription_id", subscriptionID).
			Msg("failed to delete subscription")
		return err
	}
	if tag.RowsAffected() == 0 {
		s.logger.Warn().
			Str("subscription_id", subscriptionID).
			Msg("subscription not found")
		return ErrSubscriptionNotFound
	}

	s.logger.Info().
		Str("subscription_id", subscriptionID).
		Msg("deleted subscription")
	return nil
}

func (s *subscriptionServiceImpl) GetSubscriptionsByUserID(ctx context.Context, userID string) ([]models.PushSubscription, error) {
	const selectSubscriptionsQuery = `
SELECT id, user_id, endpoint, p256dh, auth, created_at
FROM push_subscriptions
WHERE user_id = $1
`
	return s.selectSubscriptions(ctx, selectSubscriptionsQuery, userID)
}

func (s *subscriptionServiceImpl) GetAllSubscriptions(ctx context.Context) ([]models.PushSubscription, error) {
	const selectAllSubscriptionsQuery = `
SELECT id, user_id, endpoint, p256dh, auth, created_at
FROM push_subscriptions
`
	return s.selectSubscriptions(ctx, selectAllSubscriptionsQuery)
}

func (s *subscriptionServiceImpl) selectSubscriptions(ctx context.Context, query string, args ...any) ([]models.PushSubscription, error) {
	rows, err := s.pgPool.Query(ctx, query, args...)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to select subscriptions")
		return nil, err
	}
	defer rows.Close()

	subs := make([]models.PushSubscription, 0, 8)
	for rows.Next() {
		var sub models.PushSubscription
		err = rows.Scan(
			&sub.ID,
			&sub.UserID,
			&sub.Endpoint,
			&sub.P256dh,
			&sub.Auth,
			&sub.CreatedAt,
		)
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to scan subscription")
			return nil, err
		}
		subs = append(subs, sub)
	}

	err = rows.Err()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to iterate over rows")
		return nil, err
	}
	return subs, nil
}
