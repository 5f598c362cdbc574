package notifications_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jrsteele09/customs-console/customsapi"
	"github.com/jrsteele09/customs-console/customsapi/apifake"
	"github.com/jrsteele09/customs-console/gateway"
	"github.com/jrsteele09/customs-console/notifications"
	"github.com/jrsteele09/customs-console/sessions"
	"github.com/jrsteele09/customs-console/users"
	"github.com/stretchr/testify/require"
)

type syncFixture struct {
	fake    *apifake.Server
	account *apifake.Account
	state   *sessions.State
	store   *notifications.Store
	syncer  *notifications.Syncer
}

func setupSyncer(t *testing.T, opts ...notifications.Option) *syncFixture {
	t.Helper()
	fake := apifake.New(t)
	acc := fake.AddAccount(apifake.Account{
		User:          users.User{FullName: "Jasur Nematov", Email: "jasur@example.com"},
		Password:      "secret1",
		CompanyStatus: "active",
		SoundEnabled:  false,
	})

	state, err := sessions.NewState(sessions.NewInMemoryRepo())
	require.NoError(t, err)
	user := acc.User
	require.NoError(t, state.SetAuth(fake.IssueToken(acc.User.Email), &user, false))

	gw, err := gateway.New(fake.URL, state)
	require.NoError(t, err)

	store := notifications.NewStore()
	syncer, err := notifications.NewSyncer(store, customsapi.NewNotificationsAPI(gw), state, opts...)
	require.NoError(t, err)
	t.Cleanup(syncer.Stop)

	return &syncFixture{fake: fake, account: acc, state: state, store: store, syncer: syncer}
}

func (f *syncFixture) seed(notes ...customsapi.Notification) {
	for _, n := range notes {
		f.fake.AddNotification(f.account.User.ID, n)
	}
}

func TestNewSyncer_Validation(t *testing.T) {
	_, err := notifications.NewSyncer(nil, nil, nil)
	require.Error(t, err)

	f := setupSyncer(t)
	_, err = notifications.NewSyncer(f.store, &stubAPI{}, f.state, notifications.WithInterval(time.Millisecond))
	require.Error(t, err)
	_, err = notifications.NewSyncer(f.store, &stubAPI{}, f.state, notifications.WithPageSize(0))
	require.Error(t, err)
}

func TestSyncer_StartLoadsPanel(t *testing.T) {
	f := setupSyncer(t, notifications.WithPageSize(2))
	f.seed(note(1, 1, false), note(2, 2, true), note(3, 3, false))

	require.NoError(t, f.syncer.Start(context.Background()))
	require.True(t, f.syncer.Running())

	snap := f.store.Snapshot()
	require.Equal(t, []int64{3, 2}, ids(snap))
	require.Equal(t, 2, snap.UnreadCount)
	require.Eventually(t, func() bool {
		return !f.store.Snapshot().SoundEnabled
	}, time.Second, 5*time.Millisecond)

	// second Start is a no-op
	require.NoError(t, f.syncer.Start(context.Background()))
	require.Equal(t, 1, f.fake.Calls(apifake.RouteList))
}

func TestSyncer_Polls(t *testing.T) {
	f := setupSyncer(t, notifications.WithInterval(time.Second))
	require.NoError(t, f.syncer.Start(context.Background()))
	require.Empty(t, f.store.Snapshot().Notifications)

	f.seed(note(1, 1, false))
	require.Eventually(t, func() bool {
		return f.store.Snapshot().UnreadCount == 1
	}, 3*time.Second, 20*time.Millisecond)

	// A closed panel only polls the counter.
	require.Equal(t, 1, f.fake.Calls(apifake.RouteList))
	require.Empty(t, f.store.Snapshot().Notifications)

	f.syncer.Stop()
	require.False(t, f.syncer.Running())
	calls := f.fake.Calls(apifake.RouteUnreadCount)
	time.Sleep(1500 * time.Millisecond)
	require.Equal(t, calls, f.fake.Calls(apifake.RouteUnreadCount))
}

func TestSyncer_PollsListWhilePanelOpen(t *testing.T) {
	f := setupSyncer(t, notifications.WithInterval(time.Second))
	require.NoError(t, f.syncer.Start(context.Background()))
	f.store.TogglePanel()

	f.seed(note(1, 1, false))
	require.Eventually(t, func() bool {
		return len(f.store.Snapshot().Notifications) == 1
	}, 3*time.Second, 20*time.Millisecond)
	require.Equal(t, 1, f.store.Snapshot().UnreadCount)
	require.Zero(t, f.fake.Calls(apifake.RouteUnreadCount))
}

func TestSyncer_RefreshUnread(t *testing.T) {
	f := setupSyncer(t)
	f.seed(note(1, 1, false), note(2, 2, false), note(3, 3, true))

	require.NoError(t, f.syncer.RefreshUnread(context.Background()))
	require.Equal(t, 2, f.store.Snapshot().UnreadCount)
	require.Empty(t, f.store.Snapshot().Notifications)

	f.state.Logout()
	f.store.Reset()
	f.seed(note(4, 4, false))
	require.Error(t, f.syncer.RefreshUnread(context.Background()))
	require.Zero(t, f.store.Snapshot().UnreadCount)
}

func TestSyncer_Mutations(t *testing.T) {
	f := setupSyncer(t)
	f.seed(note(1, 1, false), note(2, 2, false), note(3, 3, true))
	ctx := context.Background()
	require.NoError(t, f.syncer.Refresh(ctx))
	require.Equal(t, 2, f.store.Snapshot().UnreadCount)

	require.NoError(t, f.syncer.MarkAsRead(ctx, 1))
	require.Equal(t, 1, f.store.Snapshot().UnreadCount)
	require.Equal(t, 1, f.fake.Calls(apifake.RouteMarkOneRead))

	require.NoError(t, f.syncer.Delete(ctx, 3))
	require.Equal(t, []int64{2, 1}, ids(f.store.Snapshot()))
	require.Equal(t, 1, f.store.Snapshot().UnreadCount)

	require.NoError(t, f.syncer.MarkAllRead(ctx))
	require.Nil(t, f.fake.LastMarkRead().NotificationIDs)
	snap := f.store.Snapshot()
	require.Zero(t, snap.UnreadCount)
	require.True(t, snap.Notifications[0].IsRead)

	require.NoError(t, f.syncer.ToggleSound(ctx, true))
	require.True(t, f.store.Snapshot().SoundEnabled)
	require.True(t, f.fake.SoundEnabled("jasur@example.com"))

	require.NoError(t, f.syncer.ClearAll(ctx))
	require.Empty(t, f.store.Snapshot().Notifications)
	require.Empty(t, f.fake.Notifications(f.account.User.ID))
}

func TestSyncer_ServerFailureLeavesStore(t *testing.T) {
	f := setupSyncer(t)
	f.seed(note(1, 1, false))
	ctx := context.Background()
	require.NoError(t, f.syncer.Refresh(ctx))

	f.fake.Fail(apifake.RouteMarkOneRead, http.StatusInternalServerError, "down")
	require.Error(t, f.syncer.MarkAsRead(ctx, 1))
	require.Equal(t, 1, f.store.Snapshot().UnreadCount)

	f.fake.Fail(apifake.RouteDeleteOne, http.StatusNotFound, "gone")
	require.Error(t, f.syncer.Delete(ctx, 1))
	require.Len(t, f.store.Snapshot().Notifications, 1)
}

func TestSyncer_DiscardsResultsAfterLogout(t *testing.T) {
	f := setupSyncer(t)
	f.seed(note(1, 1, false))

	release := f.fake.Hold(apifake.RouteList)
	defer release()

	done := make(chan error, 1)
	go func() {
		done <- f.syncer.Refresh(context.Background())
	}()
	require.Eventually(t, func() bool {
		return f.fake.Calls(apifake.RouteList) == 1
	}, time.Second, 5*time.Millisecond)

	f.state.Logout()
	release()
	require.NoError(t, <-done)
	require.Empty(t, f.store.Snapshot().Notifications)
	require.Zero(t, f.store.Snapshot().UnreadCount)
}

// stubAPI satisfies notifications.API for constructor tests.
type stubAPI struct{}

func (stubAPI) List(context.Context, customsapi.ListOptions) (*customsapi.NotificationList, error) {
	return &customsapi.NotificationList{}, nil
}
func (stubAPI) UnreadCount(context.Context) (int, error)  { return 0, nil }
func (stubAPI) MarkRead(context.Context, ...int64) error  { return nil }
func (stubAPI) MarkOneRead(context.Context, int64) error  { return nil }
func (stubAPI) Delete(context.Context, int64) error       { return nil }
func (stubAPI) DeleteAll(context.Context) error           { return nil }
func (stubAPI) SetSound(context.Context, bool) error      { return nil }
func (stubAPI) SoundStatus(context.Context) (bool, error) { return true, nil }
