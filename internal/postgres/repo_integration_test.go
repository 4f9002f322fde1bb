package postgres

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/loft-algerie/messaging/internal/domain"
	"github.com/loft-algerie/messaging/internal/pg"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestDB loads migrations/schema.sql into a throwaway schema of the database named
// by DATABASE_URL and returns a pool bound to it.
func newTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	schema := "msg_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	admin, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = admin.Exec(ctx, "DROP SCHEMA "+schema+" CASCADE")
		_ = admin.Close(ctx)
	})

	pool, err := pg.NewPool(ctx, pg.Config{DSN: withSearchPath(dsn, schema), MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	ddl, err := os.ReadFile("../../migrations/schema.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(ddl))
	require.NoError(t, err)
	return pool
}

func withSearchPath(dsn, schema string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "search_path=" + schema
	}
	return dsn + " search_path=" + schema
}

func addProfile(t *testing.T, db *pgxpool.Pool, name string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(context.Background(), `INSERT INTO profiles (id, full_name) VALUES ($1, $2)`, id, name)
	require.NoError(t, err)
	return id
}

type repos struct {
	convs *ConversationRepository
	parts *ParticipantRepository
	msgs  *MessageRepository
	notes *NotificationRepository
}

func newRepos(db *pgxpool.Pool) repos {
	return repos{
		convs: NewConversationRepository(db),
		parts: NewParticipantRepository(db),
		msgs:  NewMessageRepository(db),
		notes: NewNotificationRepository(db),
	}
}

func (r repos) send(t *testing.T, convID, senderID, content string) *domain.Message {
	t.Helper()
	m := &domain.Message{ConversationID: convID, SenderID: senderID, Content: content, Type: domain.MessageText}
	require.NoError(t, r.msgs.Append(context.Background(), m))
	return m
}

func (r repos) unread(t *testing.T, userID string) map[string]int {
	t.Helper()
	counts, err := r.msgs.UnreadByConversation(context.Background(), userID)
	require.NoError(t, err)
	return counts
}

func TestReadStateAgainstPostgres(t *testing.T) {
	db := newTestDB(t)
	r := newRepos(db)
	ctx := context.Background()

	alice := addProfile(t, db, "Alice")
	bob := addProfile(t, db, "Bob")
	outsider := addProfile(t, db, "Eve")

	conv := &domain.Conversation{Type: domain.ConversationDirect}
	require.NoError(t, r.convs.Create(ctx, conv, alice, []string{bob}))
	require.NotEmpty(t, conv.ID)

	parts, err := r.parts.ListByConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	for _, p := range parts {
		assert.Nil(t, p.LastReadAt, "new participant %s has read nothing", p.UserID)
	}

	t.Run("default inclusion", func(t *testing.T) {
		assert.Equal(t, map[string]int{conv.ID: 0}, r.unread(t, alice))
		assert.Equal(t, map[string]int{conv.ID: 0}, r.unread(t, bob))
		assert.Empty(t, r.unread(t, outsider))
	})

	t.Run("sender exclusion", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			r.send(t, conv.ID, bob, fmt.Sprintf("hello %d", i))
		}
		assert.Equal(t, 3, r.unread(t, alice)[conv.ID])
		assert.Equal(t, 0, r.unread(t, bob)[conv.ID])
	})

	t.Run("mark read clears until another sender writes", func(t *testing.T) {
		first, err := r.parts.AdvanceWatermark(ctx, conv.ID, alice)
		require.NoError(t, err)
		assert.Equal(t, 0, r.unread(t, alice)[conv.ID])

		r.send(t, conv.ID, alice, "my own message")
		assert.Equal(t, 0, r.unread(t, alice)[conv.ID])

		second, err := r.parts.AdvanceWatermark(ctx, conv.ID, alice)
		require.NoError(t, err, "repeat mark-read is not an error")
		assert.False(t, second.Before(first), "watermark never moves backwards")
		assert.Equal(t, 0, r.unread(t, alice)[conv.ID])

		r.send(t, conv.ID, bob, "one more")
		assert.Equal(t, 1, r.unread(t, alice)[conv.ID])
	})

	t.Run("access gate", func(t *testing.T) {
		ok, err := r.parts.Exists(ctx, conv.ID, outsider)
		require.NoError(t, err)
		assert.False(t, ok)

		err = r.msgs.Append(ctx, &domain.Message{ConversationID: conv.ID, SenderID: outsider, Content: "let me in", Type: domain.MessageText})
		assert.ErrorIs(t, err, domain.ErrNotParticipant)

		_, err = r.parts.AdvanceWatermark(ctx, conv.ID, outsider)
		assert.ErrorIs(t, err, domain.ErrNotParticipant)

		msgs, err := r.msgs.List(ctx, conv.ID)
		require.NoError(t, err)
		assert.Len(t, msgs, 5, "rejected append left nothing behind")
	})

	t.Run("list is oldest first", func(t *testing.T) {
		msgs, err := r.msgs.List(ctx, conv.ID)
		require.NoError(t, err)
		for i := 1; i < len(msgs); i++ {
			assert.False(t, msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt))
		}
	})
}

func TestNotificationsAgainstPostgres(t *testing.T) {
	db := newTestDB(t)
	r := newRepos(db)
	ctx := context.Background()

	owner := addProfile(t, db, "Owner")
	sender := addProfile(t, db, "Sender")

	ok, err := r.notes.TableExists(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	n := &domain.Notification{UserID: owner, Title: "Task", Message: "assigned", Type: domain.NotificationInfo, SenderID: &sender}
	require.NoError(t, r.notes.Create(ctx, n))

	count, err := r.notes.CountUnread(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = r.notes.MarkRead(ctx, n.ID, sender)
	assert.ErrorIs(t, err, domain.ErrNotificationNotFound, "only the owner can mark it read")

	marked, err := r.notes.MarkRead(ctx, n.ID, owner)
	require.NoError(t, err)
	assert.True(t, marked.FirstRead)
	assert.True(t, marked.IsRead)
	assert.Equal(t, "Owner", marked.ReaderName)
	assert.True(t, marked.NeedsReceipt())

	again, err := r.notes.MarkRead(ctx, n.ID, owner)
	require.NoError(t, err)
	assert.False(t, again.FirstRead)

	count, err = r.notes.CountUnread(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	assert.ErrorIs(t, r.notes.Delete(ctx, n.ID, sender), domain.ErrNotificationNotFound)
	require.NoError(t, r.notes.Delete(ctx, n.ID, owner))
	assert.ErrorIs(t, r.notes.Delete(ctx, n.ID, owner), domain.ErrNotificationNotFound)

	_, err = db.Exec(ctx, `DROP TABLE notifications`)
	require.NoError(t, err)
	ok, err = r.notes.TableExists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
