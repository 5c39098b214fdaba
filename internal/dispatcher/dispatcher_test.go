package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Nifargo/todo-app-server/internal/models"
	"github.com/Nifargo/todo-app-server/internal/push"
)

var testNow = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

type fakeTaskSource struct {
	mu      sync.Mutex
	tasks   []models.Task
	stamped map[string][]string // userID -> task ids
	err     error
}

func (f *fakeTaskSource) GetOpenTasks(context.Context) ([]models.Task, error) {
	return f.tasks, f.err
}

func (f *fakeTaskSource) StampNotified(_ context.Context, userID string, taskIDs []string, date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stamped == nil {
		f.stamped = make(map[string][]string)
	}
	f.stamped[userID] = append(f.stamped[userID], taskIDs...)
	for i := range f.tasks {
		for _, id := range taskIDs {
			if f.tasks[i].ID == id {
				f.tasks[i].LastNotificationDate = date
			}
		}
	}
	return nil
}

type fakeSettingsSource struct {
	settings []models.UserSettings
	err      error
}

func (f *fakeSettingsSource) GetAllSettings(context.Context) ([]models.UserSettings, error) {
	return f.settings, f.err
}

type fakeSubscriptionSource struct {
	mu      sync.Mutex
	subs    []models.PushSubscription
	deleted []string
}

func (f *fakeSubscriptionSource) GetAllSubscriptions(context.Context) ([]models.PushSubscription, error) {
	return f.subs, nil
}

func (f *fakeSubscriptionSource) DeleteSubscription(_ context.Context, subscriptionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, subscriptionID)
	return nil
}

type fakeGateway struct {
	mu   sync.Mutex
	sent []push.Message
	// errs maps endpoint to the error Send returns for it.
	errs map[string]error
}

func (f *fakeGateway) Send(_ context.Context, sub models.PushSubscription, msg push.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[sub.Endpoint]; ok {
		return err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newTestDispatcher(tasks *fakeTaskSource, settings *fakeSettingsSource, subs *fakeSubscriptionSource, gw *fakeGateway) *Dispatcher {
	d := New(zerolog.Nop(), tasks, settings, subs, gw)
	d.now = func() time.Time { return testNow }
	return d
}

func enabledUser(userID string) models.UserSettings {
	return models.UserSettings{
		UserID:               userID,
		NotificationsEnabled: true,
		Timezone:             "UTC",
	}
}

func sub(id, userID string) models.PushSubscription {
	return models.PushSubscription{
		ID:       id,
		UserID:   userID,
		Endpoint: "https://push.example.com/" + id,
	}
}

func TestDispatcher_SendsGroupedReminder(t *testing.T) {
	tasks := &fakeTaskSource{tasks: []models.Task{
		{ID: "t1", UserID: "u1", Text: "a", DueDate: "2026-03-14"},
		{ID: "t2", UserID: "u1", Text: "b", DueDate: "2026-03-13"},
		{ID: "t3", UserID: "u1", Text: "c", DueDate: "2026-03-15"},
		{ID: "t4", UserID: "u1", Text: "future", DueDate: "2026-03-20"},
	}}
	settings := &fakeSettingsSource{settings: []models.UserSettings{enabledUser("u1")}}
	subs := &fakeSubscriptionSource{subs: []models.PushSubscription{sub("s1", "u1")}}
	gw := &fakeGateway{}

	d := newTestDispatcher(tasks, settings, subs, gw)
	require.NoError(t, d.Run(context.Background()))

	require.Len(t, gw.sent, 1)
	require.Equal(t, "2 tasks overdue, 1 task due today", gw.sent[0].Body)
	require.ElementsMatch(t, []string{"t1", "t2", "t3"}, tasks.stamped["u1"])
}

func TestDispatcher_SameDayRunIsIdempotent(t *testing.T) {
	tasks := &fakeTaskSource{tasks: []models.Task{
		{ID: "t1", UserID: "u1", Text: "a", DueDate: "2026-03-15"},
	}}
	settings := &fakeSettingsSource{settings: []models.UserSettings{enabledUser("u1")}}
	subs := &fakeSubscriptionSource{subs: []models.PushSubscription{sub("s1", "u1")}}
	gw := &fakeGateway{}

	d := newTestDispatcher(tasks, settings, subs, gw)
	require.NoError(t, d.Run(context.Background()))
	require.NoError(t, d.Run(context.Background()))

	require.Len(t, gw.sent, 1)
}

func TestDispatcher_SkipsDisabledAndQuietUsers(t *testing.T) {
	tasks := &fakeTaskSource{tasks: []models.Task{
		{ID: "t1", UserID: "disabled", Text: "a", DueDate: "2026-03-14"},
		{ID: "t2", UserID: "nothing-due", Text: "b", DueDate: "2026-03-20"},
		{ID: "t3", UserID: "no-endpoints", Text: "c", DueDate: "2026-03-14"},
	}}
	settings := &fakeSettingsSource{settings: []models.UserSettings{
		{UserID: "disabled", NotificationsEnabled: false, Timezone: "UTC"},
		enabledUser("nothing-due"),
		enabledUser("no-endpoints"),
	}}
	subs := &fakeSubscriptionSource{subs: []models.PushSubscription{
		sub("s1", "disabled"),
		sub("s2", "nothing-due"),
	}}
	gw := &fakeGateway{}

	d := newTestDispatcher(tasks, settings, subs, gw)
	require.NoError(t, d.Run(context.Background()))

	require.Empty(t, gw.sent)
	require.Empty(t, tasks.stamped)
}

func TestDispatcher_PrunesGoneEndpoints(t *testing.T) {
	tasks := &fakeTaskSource{tasks: []models.Task{
		{ID: "t1", UserID: "u1", Text: "a", DueDate: "2026-03-14"},
	}}
	settings := &fakeSettingsSource{settings: []models.UserSettings{enabledUser("u1")}}
	gone := sub("gone", "u1")
	alive := sub("alive", "u1")
	subs := &fakeSubscriptionSource{subs: []models.PushSubscription{gone, alive}}
	gw := &fakeGateway{errs: map[string]error{
		gone.Endpoint: push.ErrEndpointGone,
	}}

	d := newTestDispatcher(tasks, settings, subs, gw)
	require.NoError(t, d.Run(context.Background()))

	require.Equal(t, []string{"gone"}, subs.deleted)
	// The healthy endpoint still got the reminder and the tasks were
	// stamped.
	require.Len(t, gw.sent, 1)
	require.Equal(t, []string{"t1"}, tasks.stamped["u1"])
}

func TestDispatcher_TransientFailureDoesNotStamp(t *testing.T) {
	tasks := &fakeTaskSource{tasks: []models.Task{
		{ID: "t1", UserID: "u1", Text: "a", DueDate: "2026-03-14"},
	}}
	settings := &fakeSettingsSource{settings: []models.UserSettings{enabledUser("u1")}}
	flaky := sub("flaky", "u1")
	subs := &fakeSubscriptionSource{subs: []models.PushSubscription{flaky}}
	gw := &fakeGateway{errs: map[string]error{
		flaky.Endpoint: errors.New("push service unavailable"),
	}}

	d := newTestDispatcher(tasks, settings, subs, gw)
	require.NoError(t, d.Run(context.Background()))

	require.Empty(t, tasks.stamped)
	require.Empty(t, subs.deleted)
}

func TestDispatcher_UserFailureIsolated(t *testing.T) {
	tasks := &fakeTaskSource{tasks: []models.Task{
		{ID: "t1", UserID: "broken", Text: "a", DueDate: "2026-03-14"},
		{ID: "t2", UserID: "healthy", Text: "b", DueDate: "2026-03-14"},
	}}
	settings := &fakeSettingsSource{settings: []models.UserSettings{
		enabledUser("broken"),
		enabledUser("healthy"),
	}}
	broken := sub("b1", "broken")
	subs := &fakeSubscriptionSource{subs: []models.PushSubscription{
		broken,
		sub("h1", "healthy"),
	}}
	gw := &fakeGateway{errs: map[string]error{
		broken.Endpoint: errors.New("boom"),
	}}

	d := newTestDispatcher(tasks, settings, subs, gw)
	require.NoError(t, d.Run(context.Background()))

	require.Len(t, gw.sent, 1)
	require.Equal(t, []string{"t2"}, tasks.stamped["healthy"])
}

func TestDispatcher_UsesUserTimezone(t *testing.T) {
	// 2026-03-15 09:00 UTC is still 2026-03-14 in Honolulu (UTC-10),
	// so a task due 2026-03-15 is not yet due today there.
	tasks := &fakeTaskSource{tasks: []models.Task{
		{ID: "t1", UserID: "u1", Text: "a", DueDate: "2026-03-15"},
	}}
	settings := &fakeSettingsSource{settings: []models.UserSettings{
		{UserID: "u1", NotificationsEnabled: true, Timezone: "Pacific/Honolulu"},
	}}
	subs := &fakeSubscriptionSource{subs: []models.PushSubscription{sub("s1", "u1")}}
	gw := &fakeGateway{}

	d := newTestDispatcher(tasks, settings, subs, gw)
	require.NoError(t, d.Run(context.Background()))

	require.Empty(t, gw.sent)
}

func TestDispatcher_ReadFailureAbortsRun(t *testing.T) {
	settings := &fakeSettingsSource{err: errors.New("store down")}
	d := newTestDispatcher(&fakeTaskSource{}, settings, &fakeSubscriptionSource{}, &fakeGateway{})

	require.Error(t, d.Run(context.Background()))
}

func TestReminderBody(t *testing.T) {
	require.Equal(t, "1 task overdue", reminderBody(1, 0))
	require.Equal(t, "1 task due today", reminderBody(0, 1))
	require.Equal(t, "3 tasks overdue, 2 tasks due today", reminderBody(3, 2))
}
