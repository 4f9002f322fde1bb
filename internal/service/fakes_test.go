package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loft-algerie/messaging/internal/domain"
)

// memStore mimics the relational semantics of the postgres repositories closely
// enough to exercise the services: a monotonic clock, conditional message insert and
// the GREATEST watermark update.
type memStore struct {
	mu sync.Mutex

	clock time.Time

	convs    map[string]*domain.Conversation
	parts    map[string]map[string]*domain.Participant
	messages []domain.Message

	users map[string]domain.UserSummary
	teams map[string][]string // team id -> members

	notifications []domain.Notification
	noTable       bool
	existsCalls   int
	existsErr     error
	existsGate    chan struct{} // when set, TableExists waits for it
	searches      int
}

func newMemStore() *memStore {
	return &memStore{
		clock: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		convs: map[string]*domain.Conversation{},
		parts: map[string]map[string]*domain.Participant{},
		users: map[string]domain.UserSummary{},
		teams: map[string][]string{},
	}
}

func (s *memStore) now() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

func (s *memStore) addUser(role domain.UserRole, name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.users[id] = domain.UserSummary{ID: id, FullName: name, Email: strings.ToLower(name) + "@loft.dz", Role: role}
	return id
}

func (s *memStore) addTeam(members ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams[uuid.NewString()] = members
}

// conversations

func (s *memStore) Create(_ context.Context, conv *domain.Conversation, creatorID string, inviteeIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	conv.ID = uuid.NewString()
	conv.CreatedAt, conv.UpdatedAt = now, now
	cp := *conv
	s.convs[conv.ID] = &cp

	rows := map[string]*domain.Participant{
		creatorID: {ConversationID: conv.ID, UserID: creatorID, Role: domain.RoleAdmin, JoinedAt: now},
	}
	for _, id := range inviteeIDs {
		if _, ok := rows[id]; ok {
			continue
		}
		rows[id] = &domain.Participant{ConversationID: conv.ID, UserID: id, Role: domain.RoleMember, JoinedAt: now}
	}
	s.parts[conv.ID] = rows
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) FindDirect(_ context.Context, a, b string) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.convs {
		rows := s.parts[id]
		if c.Type != domain.ConversationDirect || len(rows) != 2 {
			continue
		}
		if rows[a] != nil && rows[b] != nil {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrConversationNotFound
}

func (s *memStore) ListForUser(_ context.Context, userID string) ([]domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Conversation
	for id, rows := range s.parts {
		p, ok := rows[userID]
		if !ok {
			continue
		}
		c := *s.convs[id]
		c.UnreadCount = s.unreadLocked(p)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// participants

func (s *memStore) Exists(_ context.Context, convID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.parts[convID][userID]
	return ok, nil
}

func (s *memStore) ListByConversation(_ context.Context, convID string) ([]domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Participant
	for _, p := range s.parts[convID] {
		out = append(out, *p)
	}
	return out, nil
}

func (s *memStore) AdvanceWatermark(_ context.Context, convID, userID string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parts[convID][userID]
	if !ok {
		return time.Time{}, domain.ErrNotParticipant
	}
	now := s.now()
	if p.LastReadAt == nil || now.After(*p.LastReadAt) {
		p.LastReadAt = &now
	}
	return *p.LastReadAt, nil
}

func (s *memStore) watermark(convID, userID string) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.parts[convID][userID]; ok {
		return p.LastReadAt
	}
	return nil
}

// messages

func (s *memStore) Append(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.parts[m.ConversationID][m.SenderID]; !ok {
		return domain.ErrNotParticipant
	}
	m.ID = uuid.NewString()
	m.CreatedAt = s.now()
	s.messages = append(s.messages, *m)
	s.convs[m.ConversationID].UpdatedAt = m.CreatedAt
	return nil
}

func (s *memStore) List(_ context.Context, convID string) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Message{}
	for _, m := range s.messages {
		if m.ConversationID == convID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) ListBefore(ctx context.Context, convID, before string, limit int) ([]domain.Message, string, error) {
	all, _ := s.List(ctx, convID)
	end := len(all)
	if before != "" {
		end = 0
		for i, m := range all {
			if m.ID == before {
				end = i
				break
			}
		}
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	page := all[start:end]
	next := ""
	if start > 0 && len(page) == limit {
		next = page[0].ID
	}
	return page, next, nil
}

func (s *memStore) UnreadByConversation(_ context.Context, userID string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]int{}
	for convID, rows := range s.parts {
		if p, ok := rows[userID]; ok {
			out[convID] = s.unreadLocked(p)
		}
	}
	return out, nil
}

func (s *memStore) unreadLocked(p *domain.Participant) int {
	wm := p.Watermark()
	n := 0
	for _, m := range s.messages {
		if m.ConversationID == p.ConversationID && m.SenderID != p.UserID && m.CreatedAt.After(wm) {
			n++
		}
	}
	return n
}

// users

func (s *memStore) GetSummary(_ context.Context, id string) (*domain.UserSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (s *memStore) RecipientScope(_ context.Context, userID string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scope := map[string]struct{}{}
	for id, u := range s.users {
		if u.Role == domain.UserAdmin {
			scope[id] = struct{}{}
		}
	}
	for _, members := range s.teams {
		in := false
		for _, m := range members {
			in = in || m == userID
		}
		if !in {
			continue
		}
		for _, m := range members {
			scope[m] = struct{}{}
		}
	}
	return scope, nil
}

func (s *memStore) Search(_ context.Context, excludeID, q string, within []string, limit int) ([]domain.UserSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches++

	allowed := map[string]bool{}
	for _, id := range within {
		allowed[id] = true
	}
	q = strings.ToLower(q)
	var out []domain.UserSummary
	for id, u := range s.users {
		if id == excludeID || (within != nil && !allowed[id]) {
			continue
		}
		if strings.Contains(strings.ToLower(u.FullName), q) || strings.Contains(u.Email, q) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// notifications

type notificationStore struct{ *memStore }

func (s notificationStore) TableExists(context.Context) (bool, error) {
	s.mu.Lock()
	gate := s.existsGate
	s.existsCalls++
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	return !s.noTable, nil
}

func (s notificationStore) Create(_ context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.noTable {
		return domain.ErrFeatureUnavailable
	}
	n.ID = uuid.NewString()
	n.CreatedAt = s.now()
	s.notifications = append(s.notifications, *n)
	return nil
}

func (s notificationStore) CreateBulk(_ context.Context, userIDs []string, tmpl domain.Notification) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.noTable {
		return 0, domain.ErrFeatureUnavailable
	}
	for _, id := range userIDs {
		n := tmpl
		n.ID, n.UserID, n.CreatedAt = uuid.NewString(), id, s.now()
		s.notifications = append(s.notifications, n)
	}
	return int64(len(userIDs)), nil
}

func (s notificationStore) CountUnread(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.noTable {
		return 0, domain.ErrFeatureUnavailable
	}
	n := 0
	for _, x := range s.notifications {
		if x.UserID == userID && !x.IsRead {
			n++
		}
	}
	return n, nil
}

func (s notificationStore) List(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.noTable {
		return nil, domain.ErrFeatureUnavailable
	}
	var out []domain.Notification
	for i := len(s.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		if s.notifications[i].UserID == userID {
			out = append(out, s.notifications[i])
		}
	}
	return out, nil
}

func (s notificationStore) MarkRead(_ context.Context, id, userID string) (*domain.MarkedNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.noTable {
		return nil, domain.ErrFeatureUnavailable
	}
	for i := range s.notifications {
		n := &s.notifications[i]
		if n.ID == id && n.UserID == userID {
			m := &domain.MarkedNotification{
				Notification: *n,
				ReaderName:   s.users[userID].FullName,
				FirstRead:    !n.IsRead,
			}
			n.IsRead = true
			m.IsRead = true
			return m, nil
		}
	}
	return nil, domain.ErrNotificationNotFound
}

func (s notificationStore) Delete(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.noTable {
		return domain.ErrFeatureUnavailable
	}
	for i := range s.notifications {
		if s.notifications[i].ID == id && s.notifications[i].UserID == userID {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotificationNotFound
}

// notificationsFor returns a copy of the user's notifications, oldest first.
func (s *memStore) notificationsFor(userID string) []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

func (s notificationStore) MarkAllRead(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.notifications {
		if s.notifications[i].UserID == userID && !s.notifications[i].IsRead {
			s.notifications[i].IsRead = true
			n++
		}
	}
	return n, nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu       sync.Mutex
	messages []domain.Message
	reads    []string
}

func (p *recordingPublisher) PublishMessage(_ context.Context, m domain.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, m)
}

func (p *recordingPublisher) PublishRead(_ context.Context, convID, userID string, _ time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads = append(p.reads, convID+":"+userID)
}
