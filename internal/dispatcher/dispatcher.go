// Package dispatcher implements the scheduled reminder worker: one run
// scans every user's open tasks, groups the due and overdue ones, and
// requests a single grouped push per registered endpoint.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Nifargo/todo-app-server/internal/models"
	"github.com/Nifargo/todo-app-server/internal/push"
	"github.com/Nifargo/todo-app-server/internal/tasklist"
)

// TaskSource is the slice of the task store the dispatcher reads and
// stamps.
type TaskSource interface {
	GetOpenTasks(ctx context.Context) ([]models.Task, error)
	StampNotified(ctx context.Context, userID string, taskIDs []string, date string) error
}

type SettingsSource interface {
	GetAllSettings(ctx context.Context) ([]models.UserSettings, error)
}

type SubscriptionSource interface {
	GetAllSubscriptions(ctx context.Context) ([]models.PushSubscription, error)
	DeleteSubscription(ctx context.Context, subscriptionID string) error
}

// defaultConcurrency bounds how many users are notified in parallel.
const defaultConcurrency = 8

type Dispatcher struct {
	logger        zerolog.Logger
	tasks         TaskSource
	settings      SettingsSource
	subscriptions SubscriptionSource
	gateway       push.Gateway
	concurrency   int
	now           func() time.Time
}

func New(
	logger zerolog.Logger,
	tasks TaskSource,
	settings SettingsSource,
	subscriptions SubscriptionSource,
	gateway push.Gateway,
) *Dispatcher {
	return &Dispatcher{
		logger:        logger,
		tasks:         tasks,
		settings:      settings,
		subscriptions: subscriptions,
		gateway:       gateway,
		concurrency:   defaultConcurrency,
		now:           time.Now,
	}
}

// Run performs one dispatch pass. Failures notifying a single user or
// endpoint are logged and do not abort the rest of the pass; an error
// reading the collections aborts the run so the scheduler is alerted.
func (d *Dispatcher) Run(ctx context.Context) error {
	settings, err := d.settings.GetAllSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}

	subscriptions, err := d.subscriptions.GetAllSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("failed to read subscriptions: %w", err)
	}

	tasks, err := d.tasks.GetOpenTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to read open tasks: %w", err)
	}

	subsByUser := make(map[string][]models.PushSubscription, len(settings))
	for _, sub := range subscriptions {
		subsByUser[sub.UserID] = append(subsByUser[sub.UserID], sub)
	}
	tasksByUser := make(map[string][]models.Task, len(settings))
	for _, task := range tasks {
		tasksByUser[task.UserID] = append(tasksByUser[task.UserID], task)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for _, st := range settings {
		st := st
		g.Go(func() error {
			// Per-user failures stay inside notifyUser.
			d.notifyUser(gctx, st, tasksByUser[st.UserID], subsByUser[st.UserID])
			return nil
		})
	}
	err = g.Wait()

	d.logger.Info().
		Int("users", len(settings)).
		Int("open_tasks", len(tasks)).
		Msg("dispatch pass finished")
	return err
}

func (d *Dispatcher) notifyUser(
	ctx context.Context,
	settings models.UserSettings,
	tasks []models.Task,
	subscriptions []models.PushSubscription,
) {
	if !settings.NotificationsEnabled {
		return
	}

	logger := d.logger.With().Str("user_id", settings.UserID).Logger()

	// "Today" is computed in the user's own timezone so a run near
	// midnight does not shift due dates by a day.
	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		logger.Warn().
			Str("timezone", settings.Timezone).
			Msg("unknown timezone, falling back to UTC")
		loc = time.UTC
	}
	today := tasklist.Date(d.now().In(loc))

	var (
		overdue  int
		dueToday int
		taskIDs  []string
	)
	for _, task := range tasks {
		if task.Completed || task.DueDate == "" {
			continue
		}
		// Already reminded today for this task.
		if task.LastNotificationDate == today {
			continue
		}
		switch {
		case task.DueDate < today:
			overdue++
		case task.DueDate == today:
			dueToday++
		default:
			continue
		}
		taskIDs = append(taskIDs, task.ID)
	}

	if len(taskIDs) == 0 || len(subscriptions) == 0 {
		return
	}

	msg := push.Message{
		Title: "Task reminders",
		Body:  reminderBody(overdue, dueToday),
		Data:  map[string]string{"view": "today"},
	}

	sent := false
	for _, sub := range subscriptions {
		err = d.gateway.Send(ctx, sub, msg)
		if err != nil {
			if errors.Is(err, push.ErrEndpointGone) {
				// Prune it so the next run does not fail again.
				delErr := d.subscriptions.DeleteSubscription(ctx, sub.ID)
				if delErr != nil {
					logger.Error().
						Err(delErr).
						Str("subscription_id", sub.ID).
						Msg("failed to prune gone endpoint")
				} else {
					logger.Info().
						Str("subscription_id", sub.ID).
						Msg("pruned gone endpoint")
				}
				continue
			}
			logger.Error().
				Err(err).
				Str("subscription_id", sub.ID).
				Msg("failed to send reminder")
			continue
		}
		sent = true
	}

	if !sent {
		return
	}

	err = d.tasks.StampNotified(ctx, settings.UserID, taskIDs, today)
	if err != nil {
		logger.Error().
			Err(err).
			Msg("failed to stamp notified tasks")
		return
	}

	logger.Info().
		Int("overdue", overdue).
		Int("due_today", dueToday).
		Msg("sent reminders")
}

// reminderBody summarizes counts like "2 overdue, 1 due today".
func reminderBody(overdue, dueToday int) string {
	switch {
	case overdue > 0 && dueToday > 0:
		return fmt.Sprintf("%s overdue, %s due today",
			countTasks(overdue), countTasks(dueToday))
	case overdue > 0:
		return fmt.Sprintf("%s overdue", countTasks(overdue))
	default:
		return fmt.Sprintf("%s due today", countTasks(dueToday))
	}
}

func countTasks(n int) string {
	if n == 1 {
		return "1 task"
	}
	return fmt.Sprintf("%d tasks", n)
}
