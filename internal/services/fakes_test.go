package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Joello61/candi-tracker-api/internal/models"
)

var t0 = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: t0} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memCodes struct {
	mu     sync.Mutex
	nextID int64
	rows   []*models.VerificationCode
}

func (m *memCodes) ReplaceActive(_ context.Context, code *models.VerificationCode, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.UserID == code.UserID && c.Kind == code.Kind && !c.Used {
			c.Used = true
			at := now
			c.UsedAt = &at
		}
	}
	m.nextID++
	code.ID = m.nextID
	code.CreatedAt = now
	cp := *code
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memCodes) FindActive(_ context.Context, userID int64, kind models.VerificationKind, now time.Time) (*models.VerificationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.rows) - 1; i >= 0; i-- {
		c := m.rows[i]
		if c.UserID == userID && c.Kind == kind && !c.Used && c.ExpiresAt.After(now) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memCodes) IncrementAttempts(_ context.Context, id int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.ID == id {
			if c.Attempts < c.MaxAttempts {
				c.Attempts++
			}
			return c.Attempts, nil
		}
	}
	return 0, errors.New("code not found")
}

func (m *memCodes) MarkUsed(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.ID == id {
			c.Used = true
			c.UsedAt = &at
		}
	}
	return nil
}

func (m *memCodes) DeleteExpired(_ context.Context, now, usedBefore time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*models.VerificationCode
	var n int64
	for _, c := range m.rows {
		if c.ExpiresAt.Before(now) || (c.Used && c.CreatedAt.Before(usedBefore)) {
			n++
			continue
		}
		kept = append(kept, c)
	}
	m.rows = kept
	return n, nil
}

func (m *memCodes) active(userID int64, kind models.VerificationKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.rows {
		if c.UserID == userID && c.Kind == kind && !c.Used {
			n++
		}
	}
	return n
}

type memAttempts struct {
	mu     sync.Mutex
	nextID int64
	rows   []*models.VerificationAttempt
}

func sameSlot(a *models.VerificationAttempt, userID int64, kind models.VerificationKind, method models.DeliveryMethod, target string) bool {
	return a.UserID == userID && a.Kind == kind && a.Method == method && a.Target == target
}

func (m *memAttempts) Latest(_ context.Context, userID int64, kind models.VerificationKind, method models.DeliveryMethod, target string) (*models.VerificationAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.VerificationAttempt
	for _, a := range m.rows {
		if sameSlot(a, userID, kind, method, target) && (latest == nil || a.SentAt.After(latest.SentAt)) {
			latest = a
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *memAttempts) CountSince(_ context.Context, userID int64, kind models.VerificationKind, method models.DeliveryMethod, target string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.rows {
		if sameSlot(a, userID, kind, method, target) && !a.SentAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memAttempts) Create(_ context.Context, a *models.VerificationAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.ID = m.nextID
	cp := *a
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memAttempts) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.rows {
		if a.ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memAttempts) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*models.VerificationAttempt
	var n int64
	for _, a := range m.rows {
		if a.SentAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, a)
	}
	m.rows = kept
	return n, nil
}

type recordingEmail struct {
	mu   sync.Mutex
	sent []EmailMessage
	err  error
}

func (r *recordingEmail) Send(_ context.Context, msg EmailMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingEmail) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type smsMessage struct{ To, Message string }

type recordingSMS struct {
	mu   sync.Mutex
	sent []smsMessage
	err  error
}

func (r *recordingSMS) Send(_ context.Context, to, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, smsMessage{To: to, Message: message})
	return nil
}

func (r *recordingSMS) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

// fixedCodes hands out the given codes in order.
func fixedCodes(codes ...string) func() (string, error) {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
}

type memUsers struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*models.User
}

func newMemUsers(users ...*models.User) *memUsers {
	m := &memUsers{rows: map[int64]*models.User{}}
	for _, u := range users {
		cp := *u
		m.rows[u.ID] = &cp
		if u.ID > m.nextID {
			m.nextID = u.ID
		}
	}
	return m
}

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	u.ID = m.nextID
	cp := *u
	m.rows[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.rows[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.rows {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUsers) Update(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.rows[u.ID] = &cp
	return nil
}

func (m *memUsers) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *memUsers) ListIDs(_ context.Context, afterID int64, limit int) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id, u := range m.rows {
		if id > afterID && u.EmailVerified {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *memUsers) with(id int64, fn func(u *models.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.rows[id]; ok {
		fn(u)
	}
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, userID int64, hash string) error {
	return m.with(userID, func(u *models.User) {
		u.PasswordHash = hash
		u.RefreshToken = nil
	})
}

func (m *memUsers) MarkEmailVerified(_ context.Context, userID int64, at time.Time) error {
	return m.with(userID, func(u *models.User) {
		u.EmailVerified = true
		u.EmailVerifiedAt = &at
	})
}

func (m *memUsers) MarkPhoneVerified(_ context.Context, userID int64, phone string) error {
	return m.with(userID, func(u *models.User) {
		u.Phone = phone
		u.PhoneVerified = true
	})
}

func (m *memUsers) SetTwoFactor(_ context.Context, userID int64, enabled bool) error {
	return m.with(userID, func(u *models.User) { u.TwoFactorEnabled = enabled })
}

func (m *memUsers) UpdateRefresh(_ context.Context, userID int64, token string, expiresAt time.Time) error {
	return m.with(userID, func(u *models.User) {
		u.RefreshToken = &token
		u.RefreshExpiresAt = &expiresAt
		u.RefreshRevoked = false
	})
}

func (m *memUsers) RotateRefresh(_ context.Context, oldToken, newToken string, newExpiresAt time.Time) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.rows {
		if u.RefreshToken != nil && *u.RefreshToken == oldToken && !u.RefreshRevoked {
			u.RefreshToken = &newToken
			u.RefreshExpiresAt = &newExpiresAt
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUsers) ClearRefresh(_ context.Context, userID int64) error {
	return m.with(userID, func(u *models.User) { u.RefreshToken = nil })
}

func (m *memUsers) GetByRefreshToken(_ context.Context, token string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.rows {
		if u.RefreshToken != nil && *u.RefreshToken == token {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

type memSettings struct {
	mu   sync.Mutex
	rows map[int64]*models.NotificationSetting
	err  error
}

func newMemSettings(rows ...*models.NotificationSetting) *memSettings {
	m := &memSettings{rows: map[int64]*models.NotificationSetting{}}
	for _, r := range rows {
		m.rows[r.UserID] = r
	}
	return m
}

func (m *memSettings) Get(_ context.Context, userID int64) (*models.NotificationSetting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if s, ok := m.rows[userID]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (m *memSettings) Upsert(_ context.Context, s *models.NotificationSetting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.rows[s.UserID] = &cp
	return nil
}

type memNotifications struct {
	mu     sync.Mutex
	nextID int64
	rows   []*models.Notification
	err    error
}

func (m *memNotifications) Create(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.nextID++
	n.ID = m.nextID
	cp := *n
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memNotifications) ListByUser(_ context.Context, userID int64, f models.NotificationFilter) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for _, n := range m.rows {
		if n.UserID == userID && (!f.UnreadOnly || !n.IsRead) {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (m *memNotifications) CountUnread(_ context.Context, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := 0
	for _, n := range m.rows {
		if n.UserID == userID && !n.IsRead {
			c++
		}
	}
	return c, nil
}

func (m *memNotifications) MarkRead(_ context.Context, id, userID int64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.rows {
		if n.ID == id && n.UserID == userID {
			n.IsRead = true
			n.ReadAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (m *memNotifications) MarkAllRead(_ context.Context, userID int64, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c int64
	for _, n := range m.rows {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			n.ReadAt = &at
			c++
		}
	}
	return c, nil
}

func (m *memNotifications) Delete(_ context.Context, id, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.rows {
		if n.ID == id && n.UserID == userID {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memNotifications) DeleteMany(_ context.Context, userID int64, ids []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var kept []*models.Notification
	var c int64
	for _, n := range m.rows {
		if n.UserID == userID && want[n.ID] {
			c++
			continue
		}
		kept = append(kept, n)
	}
	m.rows = kept
	return c, nil
}

func (m *memNotifications) DeleteReadBefore(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*models.Notification
	var c int64
	for _, n := range m.rows {
		if n.IsRead && n.CreatedAt.Before(before) {
			c++
			continue
		}
		kept = append(kept, n)
	}
	m.rows = kept
	return c, nil
}

func (m *memNotifications) byType(t models.NotificationType) []models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for _, n := range m.rows {
		if n.Type == t {
			out = append(out, *n)
		}
	}
	return out
}

type recordingPublisher struct {
	mu  sync.Mutex
	got []int64
}

func (p *recordingPublisher) Publish(userID int64, _ *models.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, userID)
}
