package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loft-algerie/messaging/internal/domain"
)

func TestNotificationLifecycle(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	svc := NewNotificationService(notificationStore{st})
	u := st.addUser(domain.UserMember, "Bilal")
	v := st.addUser(domain.UserMember, "Chahra")

	n, err := svc.Create(ctx, []string{u}, NotificationInput{Title: "Task assigned", Message: "Clean loft 12"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = svc.Create(ctx, []string{u, v}, NotificationInput{Title: "Maintenance", Type: domain.NotificationWarning})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	count, err := svc.CountUnread(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	list, err := svc.List(ctx, u, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Maintenance", list[0].Title, "newest first")
	assert.Equal(t, domain.NotificationInfo, list[1].Type, "type defaults to info")

	assert.ErrorIs(t, svc.MarkRead(ctx, list[0].ID, v), domain.ErrNotificationNotFound, "owner only")
	require.NoError(t, svc.MarkRead(ctx, list[0].ID, u))
	count, _ = svc.CountUnread(ctx, u)
	assert.Equal(t, 1, count)

	marked, err := svc.MarkAllRead(ctx, u)
	require.NoError(t, err)
	assert.EqualValues(t, 1, marked)
	count, _ = svc.CountUnread(ctx, u)
	assert.Equal(t, 0, count)
}

func TestNotificationCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewNotificationService(notificationStore{newMemStore()})

	_, err := svc.Create(ctx, nil, NotificationInput{Title: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Create(ctx, []string{"u"}, NotificationInput{Title: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Create(ctx, []string{"u"}, NotificationInput{Title: "x", Type: "urgent"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNotificationsDegradeWhenTableMissing(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	st.noTable = true
	svc := NewNotificationService(notificationStore{st})

	count, err := svc.CountUnread(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	list, err := svc.List(ctx, "u", 10)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	n, err := svc.Create(ctx, []string{"u"}, NotificationInput{Title: "x"})
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, 1, st.existsCalls, "capability looked up once")
}

func TestNotificationCapabilityFlipsOnUndefinedTable(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	svc := NewNotificationService(notificationStore{st})
	require.True(t, svc.Available(ctx))

	// table dropped after the lookup
	st.noTable = true
	count, err := svc.CountUnread(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.False(t, svc.Available(ctx))
	assert.Equal(t, 1, st.existsCalls)
}

func TestNotifyIsFireAndForget(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	st := newMemStore()
	svc := NewNotificationService(notificationStore{st})
	u := st.addUser(domain.UserMember, "Bilal")

	svc.Notify(ctx, []string{u}, NotificationInput{Title: "Reservation confirmed"})
	cancel()
	svc.Notify(ctx, []string{u}, NotificationInput{Title: ""})
	svc.Notify(ctx, nil, NotificationInput{Title: "nobody"})
	svc.Wait()

	require.Len(t, st.notifications, 1, "request cancellation does not abort delivery")
	assert.Equal(t, "Reservation confirmed", st.notifications[0].Title)
}

func TestMarkReadSendsReceiptToSender(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	svc := NewNotificationService(notificationStore{st})
	manager := st.addUser(domain.UserManager, "Yasmine")
	agent := st.addUser(domain.UserMember, "Bilal")

	_, err := svc.Create(ctx, []string{agent}, NotificationInput{Title: "Task assigned", SenderID: &manager})
	require.NoError(t, err)
	task := st.notificationsFor(agent)[0]

	require.NoError(t, svc.MarkRead(ctx, task.ID, agent))
	svc.Wait()

	got := st.notificationsFor(manager)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ReceiptTitle, got[0].Title)
	assert.Equal(t, `Your notification "Task assigned" has been read by Bilal.`, got[0].Message)
	require.NotNil(t, got[0].SenderID)
	assert.Equal(t, agent, *got[0].SenderID)

	// reading again does not send another receipt
	require.NoError(t, svc.MarkRead(ctx, task.ID, agent))
	svc.Wait()
	assert.Len(t, st.notificationsFor(manager), 1)

	// reading the receipt does not bounce back
	require.NoError(t, svc.MarkRead(ctx, got[0].ID, manager))
	svc.Wait()
	assert.Len(t, st.notificationsFor(agent), 1)
}

func TestMarkReadWithoutSenderSendsNothing(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	svc := NewNotificationService(notificationStore{st})
	u := st.addUser(domain.UserMember, "Bilal")

	_, err := svc.Create(ctx, []string{u}, NotificationInput{Title: "Bill due"})
	require.NoError(t, err)
	require.NoError(t, svc.MarkRead(ctx, st.notificationsFor(u)[0].ID, u))
	svc.Wait()

	assert.Len(t, st.notifications, 1)
}

func TestDeleteNotification(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	svc := NewNotificationService(notificationStore{st})
	u := st.addUser(domain.UserMember, "Bilal")
	v := st.addUser(domain.UserMember, "Chahra")

	_, err := svc.Create(ctx, []string{u}, NotificationInput{Title: "Maintenance"})
	require.NoError(t, err)
	id := st.notificationsFor(u)[0].ID

	assert.ErrorIs(t, svc.Delete(ctx, id, v), domain.ErrNotificationNotFound, "owner only")
	require.NoError(t, svc.Delete(ctx, id, u))
	assert.Empty(t, st.notificationsFor(u))
	assert.ErrorIs(t, svc.Delete(ctx, id, u), domain.ErrNotificationNotFound)

	st.noTable = true
	assert.ErrorIs(t, svc.Delete(ctx, id, u), domain.ErrNotificationNotFound)
	assert.False(t, svc.Available(ctx))
}

func TestFailedCapabilityCheckBacksOff(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	st.existsErr = errors.New("connection refused")
	svc := NewNotificationService(notificationStore{st})
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	assert.True(t, svc.Available(ctx), "unknown counts as available")
	assert.True(t, svc.Available(ctx))
	assert.Equal(t, 1, st.existsCalls, "no second lookup inside the backoff")

	now = now.Add(recheckBackoff + time.Second)
	st.existsErr = nil
	st.noTable = true
	assert.False(t, svc.Available(ctx))
	assert.Equal(t, 2, st.existsCalls)
}

func TestCapabilityCheckDoesNotBlockOtherCalls(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	st.existsGate = make(chan struct{})
	svc := NewNotificationService(notificationStore{st})

	done := make(chan bool)
	go func() { done <- svc.Available(ctx) }()
	require.Eventually(t, func() bool {
		st.mu.Lock()
		defer st.mu.Unlock()
		return st.existsCalls == 1
	}, time.Second, 5*time.Millisecond)

	returned := make(chan struct{})
	go func() {
		_, _ = svc.CountUnread(ctx, "u")
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("call waited for the running lookup")
	}

	close(st.existsGate)
	assert.True(t, <-done)
	assert.Equal(t, 1, st.existsCalls)
}
