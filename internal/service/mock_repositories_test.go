package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/noteduco342/chatsync/internal/events"
	"github.com/noteduco342/chatsync/internal/models"
	"github.com/noteduco342/chatsync/internal/repository"
	"gorm.io/gorm"
)

// fakeStore is the shared in-memory state behind the mock repositories. Every
// method takes the lock, so the mocks are safe for concurrent tests.
type fakeStore struct {
	mu sync.Mutex

	users        map[uint]*models.User
	groups       map[uint]*models.Group
	members      map[uint][]uint
	convs        map[uint]*models.Conversation
	participants map[uint][]uint
	messages     map[uint]*models.Message
	reads        map[uint][]uint
	nextID       uint

	// raceFailures makes the next n FindOrCreate calls report a lost race.
	raceFailures int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:        make(map[uint]*models.User),
		groups:       make(map[uint]*models.Group),
		members:      make(map[uint][]uint),
		convs:        make(map[uint]*models.Conversation),
		participants: make(map[uint][]uint),
		messages:     make(map[uint]*models.Message),
		reads:        make(map[uint][]uint),
		nextID:       1,
	}
}

func (s *fakeStore) id() uint {
	id := s.nextID
	s.nextID++
	return id
}

func hasID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// MockUserRepository implements repository.UserRepositoryInterface.
type MockUserRepository struct{ s *fakeStore }

func NewMockUserRepository(s *fakeStore) *MockUserRepository { return &MockUserRepository{s: s} }

func (m *MockUserRepository) Create(_ context.Context, user *models.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if u.Email == user.Email || u.Username == user.Username {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.ID == 0 {
		user.ID = m.s.id()
	}
	if user.Status == "" {
		user.Status = models.StatusOffline
	}
	if user.DefaultStatus == "" {
		user.DefaultStatus = models.StatusOnline
	}
	if user.IdleTimeoutMs == 0 {
		user.IdleTimeoutMs = models.DefaultIdleTimeoutMs
	}
	cp := *user
	m.s.users[user.ID] = &cp
	return nil
}

func (m *MockUserRepository) find(match func(*models.User) bool) (*models.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockUserRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Email == email })
}

func (m *MockUserRepository) FindByUsername(_ context.Context, username string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Username == username })
}

func (m *MockUserRepository) FindByID(_ context.Context, id uint) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ID == id })
}

func (m *MockUserRepository) FindByIDs(_ context.Context, ids []uint) ([]models.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []models.User
	for _, id := range ids {
		if u, ok := m.s.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *MockUserRepository) ListExcluding(_ context.Context, userID uint) ([]models.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []models.User
	for id, u := range m.s.users {
		if id != userID {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockUserRepository) UpdateProfile(_ context.Context, user *models.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[user.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.Username = user.Username
	u.FullName = user.FullName
	u.Avatar = user.Avatar
	u.IdleTimeoutMs = user.IdleTimeoutMs
	u.DefaultStatus = user.DefaultStatus
	u.UpdatedAt = time.Now()
	return nil
}

func (m *MockUserRepository) UpdateStatus(_ context.Context, userID uint, status models.UserStatus, lastSeen *time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.Status = status
	if lastSeen != nil {
		t := *lastSeen
		u.LastSeen = &t
	}
	return nil
}

// MockGroupRepository implements repository.GroupRepositoryInterface.
type MockGroupRepository struct{ s *fakeStore }

func NewMockGroupRepository(s *fakeStore) *MockGroupRepository { return &MockGroupRepository{s: s} }

func (m *MockGroupRepository) Create(_ context.Context, group *models.Group, memberIDs []uint) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if group.ID == 0 {
		group.ID = m.s.id()
	}
	group.CreatedAt = time.Now()
	cp := *group
	m.s.groups[group.ID] = &cp
	m.s.members[group.ID] = append([]uint(nil), memberIDs...)
	return nil
}

func (m *MockGroupRepository) FindByID(_ context.Context, id uint) (*models.Group, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	g, ok := m.s.groups[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *g
	cp.Members = nil
	for _, uid := range m.s.members[id] {
		cp.Members = append(cp.Members, models.GroupMember{GroupID: id, UserID: uid})
	}
	return &cp, nil
}

func (m *MockGroupRepository) Update(_ context.Context, group *models.Group) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	g, ok := m.s.groups[group.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	g.Name, g.Image, g.IsPrivate = group.Name, group.Image, group.IsPrivate
	return nil
}

func (m *MockGroupRepository) AddMember(_ context.Context, groupID, userID uint) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if !hasID(m.s.members[groupID], userID) {
		m.s.members[groupID] = append(m.s.members[groupID], userID)
	}
	return nil
}

func (m *MockGroupRepository) RemoveMember(_ context.Context, groupID, userID uint) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var kept []uint
	for _, id := range m.s.members[groupID] {
		if id != userID {
			kept = append(kept, id)
		}
	}
	m.s.members[groupID] = kept
	return nil
}

func (m *MockGroupRepository) MemberIDs(_ context.Context, groupID uint) ([]uint, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return append([]uint(nil), m.s.members[groupID]...), nil
}

func (m *MockGroupRepository) IsMember(_ context.Context, groupID, userID uint) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return hasID(m.s.members[groupID], userID), nil
}

func (m *MockGroupRepository) GetUserGroups(_ context.Context, userID uint) ([]models.Group, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []models.Group
	for id, g := range m.s.groups {
		if hasID(m.s.members[id], userID) {
			out = append(out, *g)
		}
	}
	return out, nil
}

// MockConversationRepository implements repository.ConversationRepositoryInterface.
type MockConversationRepository struct {
	s *fakeStore

	// creations counts inserted conversations.
	creations int
}

func NewMockConversationRepository(s *fakeStore) *MockConversationRepository {
	return &MockConversationRepository{s: s}
}

func (m *MockConversationRepository) snapshot(c *models.Conversation) *models.Conversation {
	cp := *c
	cp.Participants = nil
	for _, uid := range m.s.participants[c.ID] {
		p := models.ConversationParticipant{ConversationID: c.ID, UserID: uid}
		if u, ok := m.s.users[uid]; ok {
			p.User = *u
		}
		cp.Participants = append(cp.Participants, p)
	}
	return &cp
}

func (m *MockConversationRepository) findOrCreate(match func(*models.Conversation) bool, build func() *models.Conversation, ids []uint) (*models.Conversation, bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.raceFailures > 0 {
		m.s.raceFailures--
		return nil, false, repository.ErrConversationRace
	}
	for _, c := range m.s.convs {
		if match(c) {
			return m.snapshot(c), false, nil
		}
	}
	c := build()
	c.ID = m.s.id()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	m.s.convs[c.ID] = c
	m.s.participants[c.ID] = append([]uint(nil), ids...)
	m.creations++
	return m.snapshot(c), true, nil
}

func (m *MockConversationRepository) FindOrCreateDirect(_ context.Context, participantIDs []uint) (*models.Conversation, bool, error) {
	key := models.ParticipantKey(participantIDs)
	return m.findOrCreate(
		func(c *models.Conversation) bool { return c.ParticipantKey != nil && *c.ParticipantKey == key },
		func() *models.Conversation { return &models.Conversation{ParticipantKey: &key} },
		participantIDs,
	)
}

func (m *MockConversationRepository) FindOrCreateGroup(_ context.Context, groupID uint, name *string, participantIDs []uint) (*models.Conversation, bool, error) {
	return m.findOrCreate(
		func(c *models.Conversation) bool { return c.GroupID != nil && *c.GroupID == groupID },
		func() *models.Conversation {
			gid := groupID
			return &models.Conversation{IsGroup: true, GroupID: &gid, Name: name}
		},
		participantIDs,
	)
}

func (m *MockConversationRepository) FindByID(_ context.Context, id uint) (*models.Conversation, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.convs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return m.snapshot(c), nil
}

func (m *MockConversationRepository) ListForUser(_ context.Context, userID uint) ([]models.Conversation, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []models.Conversation
	for id, c := range m.s.convs {
		if hasID(m.s.participants[id], userID) {
			out = append(out, *m.snapshot(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *MockConversationRepository) ListSummaries(_ context.Context, userID uint, limit int) ([]repository.ConversationSummaryRow, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []repository.ConversationSummaryRow
	for id, c := range m.s.convs {
		if hasID(m.s.participants[id], userID) {
			out = append(out, repository.ConversationSummaryRow{
				ConversationID:   id,
				IsGroup:          c.IsGroup,
				ParticipantCount: int64(len(m.s.participants[id])),
			})
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockConversationRepository) IsParticipant(_ context.Context, conversationID, userID uint) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return hasID(m.s.participants[conversationID], userID), nil
}

func (m *MockConversationRepository) ParticipantIDs(_ context.Context, conversationID uint) ([]uint, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return append([]uint(nil), m.s.participants[conversationID]...), nil
}

func (m *MockConversationRepository) UpdateName(_ context.Context, conversationID uint, name *string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.convs[conversationID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.Name = name
	return nil
}

// MockMessageRepository implements repository.MessageRepositoryInterface.
type MockMessageRepository struct{ s *fakeStore }

func NewMockMessageRepository(s *fakeStore) *MockMessageRepository {
	return &MockMessageRepository{s: s}
}

func (m *MockMessageRepository) snapshot(msg *models.Message) *models.Message {
	cp := *msg
	cp.Files = append([]models.File(nil), msg.Files...)
	cp.ReadBy = nil
	for _, uid := range m.s.reads[msg.ID] {
		cp.ReadBy = append(cp.ReadBy, models.MessageRead{MessageID: msg.ID, UserID: uid})
	}
	if u, ok := m.s.users[msg.SenderID]; ok {
		cp.Sender = *u
	}
	return &cp
}

func (m *MockMessageRepository) Create(_ context.Context, message *models.Message) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.messages {
		if existing.ClientID == message.ClientID && existing.SenderID == message.SenderID {
			return gorm.ErrDuplicatedKey
		}
	}
	message.ID = m.s.id()
	message.CreatedAt = time.Now()
	for i := range message.Files {
		message.Files[i].ID = m.s.id()
		message.Files[i].MessageID = message.ID
		message.Files[i].Position = i
	}
	cp := *message
	m.s.messages[message.ID] = &cp
	return nil
}

func (m *MockMessageRepository) live(id uint) (*models.Message, bool) {
	msg, ok := m.s.messages[id]
	if !ok || msg.DeletedAt.Valid {
		return nil, false
	}
	return msg, true
}

func (m *MockMessageRepository) FindByID(_ context.Context, id uint) (*models.Message, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	msg, ok := m.live(id)
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return m.snapshot(msg), nil
}

func (m *MockMessageRepository) FindByClientID(_ context.Context, clientID string, senderID uint) (*models.Message, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, msg := range m.s.messages {
		if msg.ClientID == clientID && msg.SenderID == senderID && !msg.DeletedAt.Valid {
			return m.snapshot(msg), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockMessageRepository) ListByConversation(_ context.Context, conversationID uint) ([]models.Message, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []models.Message
	for _, msg := range m.s.messages {
		if msg.ConversationID == conversationID && !msg.DeletedAt.Valid {
			out = append(out, *m.snapshot(msg))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockMessageRepository) UpdateContent(_ context.Context, messageID uint, content string, editedAt time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	msg, ok := m.live(messageID)
	if !ok {
		return gorm.ErrRecordNotFound
	}
	msg.Content = content
	msg.EditedAt = &editedAt
	return nil
}

func (m *MockMessageRepository) Delete(_ context.Context, messageID uint) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	msg, ok := m.live(messageID)
	if !ok {
		return gorm.ErrRecordNotFound
	}
	msg.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	return nil
}

// MockReceiptRepository implements repository.ReceiptRepositoryInterface.
type MockReceiptRepository struct{ s *fakeStore }

func NewMockReceiptRepository(s *fakeStore) *MockReceiptRepository {
	return &MockReceiptRepository{s: s}
}

func (m *MockReceiptRepository) AddReader(_ context.Context, messageID, userID uint) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if hasID(m.s.reads[messageID], userID) {
		return false, nil
	}
	m.s.reads[messageID] = append(m.s.reads[messageID], userID)
	return true, nil
}

func (m *MockReceiptRepository) MarkConversationRead(_ context.Context, conversationID, userID uint) ([]uint, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var ids []uint
	for id, msg := range m.s.messages {
		if m.unread(msg, conversationID, userID) {
			m.s.reads[id] = append(m.s.reads[id], userID)
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MockReceiptRepository) unread(msg *models.Message, conversationID, userID uint) bool {
	return msg.ConversationID == conversationID &&
		msg.SenderID != userID &&
		!msg.DeletedAt.Valid &&
		!hasID(m.s.reads[msg.ID], userID)
}

func (m *MockReceiptRepository) UnreadCounts(_ context.Context, userID uint) ([]repository.UnreadRow, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var rows []repository.UnreadRow
	for convID := range m.s.convs {
		if !hasID(m.s.participants[convID], userID) {
			continue
		}
		row := repository.UnreadRow{ConversationID: convID}
		for _, msg := range m.s.messages {
			if m.unread(msg, convID, userID) {
				row.UnreadCount++
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (m *MockReceiptRepository) UnreadCountFor(_ context.Context, userID, conversationID uint) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, msg := range m.s.messages {
		if m.unread(msg, conversationID, userID) {
			n++
		}
	}
	return n, nil
}

// recordingPublisher keeps every published event in order.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, topic, name string, payload interface{}) error {
	evt, err := events.NewEvent(topic, name, payload)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) all() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

func (p *recordingPublisher) on(topic string) []events.Event {
	var out []events.Event
	for _, e := range p.all() {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

var (
	_ repository.UserRepositoryInterface         = (*MockUserRepository)(nil)
	_ repository.GroupRepositoryInterface        = (*MockGroupRepository)(nil)
	_ repository.ConversationRepositoryInterface = (*MockConversationRepository)(nil)
	_ repository.MessageRepositoryInterface      = (*MockMessageRepository)(nil)
	_ repository.ReceiptRepositoryInterface      = (*MockReceiptRepository)(nil)
)
