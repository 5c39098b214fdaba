package services

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Nifargo/todo-app-server/internal/models"
)

type settingsServiceImpl struct {
	logger zerolog.Logger
	pgPool *pgxpool.Pool
}

func NewSettingsService(
	logger zerolog.Logger,
	pgPool *pgxpool.Pool,
) SettingsService {
	return &settingsServiceImpl{
		logger: logger,
		pgPool: pgPool,
	}
}

func defaultSettings(userID string) *models.UserSettings {
	return &models.UserSettings{
		UserID:               userID,
		NotificationsEnabled: false,
		Timezone:             "UTC",
	}
}

func (s *settingsServiceImpl) GetSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	settings := &models.UserSettings{UserID: userID}

	const selectSettingsQuery = `
SELECT notifications_enabled,
       timezone
FROM user_settings
WHERE user_id = $1
`
	err := s.pgPool.QueryRow(
		ctx,
		selectSettingsQuery,
		userID,
	).Scan(
		&settings.NotificationsEnabled,
		&settings.Timezone,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return defaultSettings(userID), nil
		}

		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to select settings")
		return nil, err
	}
	return settings, nil
}

func (s *settingsServiceImpl) PutSettings(ctx context.Context, settings models.UserSettings) error {
	if settings.Timezone == "" {
		settings.Timezone = "UTC"
	}
	_, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		s.logger.Error().
			Str("timezone", settings.Timezone).
			Msg("invalid timezone")
		return ErrInvalidTimezone
	}

	const upsertSettingsQuery = `
INSERT INTO user_settings (user_id, notifications_enabled, timezone)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE
SET notifications_enabled = EXCLUDED.notifications_enabled,
    timezone = EXCLUDED.timezone
`
	_, err = s.pgPool.Exec(
		ctx,
		upsertSettingsQuery,
		settings.UserID,
		settings.NotificationsEnabled,
		settings.Timezone,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", settings.UserID).
			Msg("failed to upsert settings")
		return err
	}

	s.logger.Info().
		Str("user_id", settings.UserID).
		Bool("notifications_enabled", settings.NotificationsEnabled).
		Str("timezone", settings.Timezone).
		Msg("saved settings")
	return nil
}

func (s *settingsServiceImpl) GetAllSettings(ctx context.Context) ([]models.UserSettings, error) {
	const selectAllSettingsQuery = `
SELECT user_id,
       notifications_enabled,
       timezone
FROM user_settings
`
	rows, err := s.pgPool.Query(ctx, selectAllSettingsQuery)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to select all settings")
		return nil, err
	}
	defer rows.Close()

	settings := make([]models.UserSettings, 0, 64)
	for rows.Next() {
		var st models.UserSettings
		err = rows.Scan(
			&st.UserID,
			&st.NotificationsEnabled,
			&st.Timezone,
		)
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to scan settings")
			return nil, err
		}
		settings = append(settings, st)
	}

	err = rows.Err()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to iterate over rows")
		return nil, err
	}
	return settings, nil
}
