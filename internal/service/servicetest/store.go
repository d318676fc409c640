// Package servicetest 提供内存仓储，供各服务包测试使用。
package servicetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"dictat/internal/domain"
)

type txKey struct{}

// Store 内存数据库。RunInTx 用互斥锁串行化事务（等价于行锁），出错时回滚快照
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	now  func() time.Time

	users          map[string]domain.User
	dictations     map[string]domain.Dictation
	transcriptions map[string]domain.Transcription
	revisions      []domain.TranscriptionRevision
	audit          []domain.AuditLog

	// FailAudit 非空时审计写入返回该错误
	FailAudit error
}

func NewStore() *Store {
	return &Store{
		now:            time.Now,
		users:          map[string]domain.User{},
		dictations:     map[string]domain.Dictation{},
		transcriptions: map[string]domain.Transcription{},
	}
}

type snapshot struct {
	users          map[string]domain.User
	dictations     map[string]domain.Dictation
	transcriptions map[string]domain.Transcription
	revisions      []domain.TranscriptionRevision
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot{
		users:          cloneMap(s.users),
		dictations:     cloneMap(s.dictations),
		transcriptions: cloneMap(s.transcriptions),
		revisions:      append([]domain.TranscriptionRevision(nil), s.revisions...),
	}
}

func (s *Store) restore(sn snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users, s.dictations, s.transcriptions, s.revisions = sn.users, sn.dictations, sn.transcriptions, sn.revisions
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	sn := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(sn)
		return err
	}
	return nil
}

func (s *Store) Users() *Users                   { return &Users{s} }
func (s *Store) Dictations() *Dictations         { return &Dictations{s} }
func (s *Store) Transcriptions() *Transcriptions { return &Transcriptions{s} }
func (s *Store) Audit() *Audit                   { return &Audit{s} }

func notFound(what string) error { return fmt.Errorf("%s: %w", what, domain.ErrNotFound) }

func page[T any](items []T, offset, limit int) []T {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// ---- users ----

type Users struct{ s *Store }

func (r *Users) Create(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.users {
		if strings.EqualFold(e.Email, u.Email) {
			return fmt.Errorf("user: %w", domain.ErrAlreadyExists)
		}
	}
	now := r.s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	r.s.users[u.ID] = *u
	return nil
}

func (r *Users) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok || u.DeletedAt.Valid {
		return nil, notFound("user")
	}
	return &u, nil
}

func (r *Users) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) && !u.DeletedAt.Valid {
			return &u, nil
		}
	}
	return nil, notFound("user")
}

func (r *Users) List(_ context.Context, f domain.UserFilter) ([]domain.User, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.User
	for _, u := range r.s.users {
		if u.DeletedAt.Valid && !f.WithDeleted {
			continue
		}
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if q := strings.TrimSpace(f.Query); q != "" && !strings.Contains(u.Email, q) && !strings.Contains(u.FullName, q) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Offset, f.Limit), int64(len(out)), nil
}

func (r *Users) Update(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.ID]; !ok {
		return notFound("user")
	}
	u.UpdatedAt = r.s.now()
	r.s.users[u.ID] = *u
	return nil
}

// ---- dictations ----

type Dictations struct{ s *Store }

func (r *Dictations) Create(_ context.Context, d *domain.Dictation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.dictations[d.ID]; ok {
		return fmt.Errorf("dictation: %w", domain.ErrAlreadyExists)
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = r.s.now()
	}
	d.UpdatedAt = d.CreatedAt
	r.s.dictations[d.ID] = *d
	return nil
}

func (r *Dictations) Get(_ context.Context, id string) (*domain.Dictation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.dictations[id]
	if !ok || d.DeletedAt.Valid {
		return nil, notFound("dictation")
	}
	return &d, nil
}

func (r *Dictations) GetForUpdate(ctx context.Context, id string) (*domain.Dictation, error) {
	return r.Get(ctx, id)
}

func (r *Dictations) Save(_ context.Context, d *domain.Dictation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d.UpdatedAt = r.s.now()
	r.s.dictations[d.ID] = *d
	return nil
}

func (r *Dictations) SoftDelete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.dictations[id]
	if !ok || d.DeletedAt.Valid {
		return notFound("dictation")
	}
	d.DeletedAt.Time, d.DeletedAt.Valid = r.s.now(), true
	r.s.dictations[id] = d
	return nil
}

func (r *Dictations) filter(keep func(d domain.Dictation) bool) []domain.Dictation {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Dictation
	for _, d := range r.s.dictations {
		if !d.DeletedAt.Valid && keep(d) {
			out = append(out, d)
		}
	}
	return out
}

func openForClaim(d domain.Dictation) bool {
	return (d.Status == domain.DictationPending || d.Status == domain.DictationAssigned) && d.SecretaryID == nil
}

func (r *Dictations) List(_ context.Context, f domain.DictationFilter) ([]domain.Dictation, int64, error) {
	out := r.filter(func(d domain.Dictation) bool {
		switch {
		case f.DoctorID != "" && d.DoctorID != f.DoctorID,
			f.VisibleToSecretary != "" && !openForClaim(d) && !d.ClaimedBy(f.VisibleToSecretary),
			f.Status != "" && d.Status != f.Status,
			f.Priority != "" && d.Priority != f.Priority,
			f.From != nil && d.CreatedAt.Before(*f.From),
			f.To != nil && d.CreatedAt.After(*f.To):
			return false
		}
		return true
	})
	sort.SliceStable(out, func(i, j int) bool {
		if a, b := out[i].Priority.Rank(), out[j].Priority.Rank(); a != b {
			return a > b
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, f.Offset, f.Limit), int64(len(out)), nil
}

func (r *Dictations) Queue(_ context.Context, offset, limit int) ([]domain.Dictation, int64, error) {
	out := r.filter(openForClaim)
	sort.SliceStable(out, func(i, j int) bool {
		if a, b := out[i].Priority.Rank(), out[j].Priority.Rank(); a != b {
			return a > b
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return page(out, offset, limit), int64(len(out)), nil
}

// All 测试断言用：包含软删记录
func (r *Dictations) All() []domain.Dictation {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Dictation, 0, len(r.s.dictations))
	for _, d := range r.s.dictations {
		out = append(out, d)
	}
	return out
}

// ---- transcriptions ----

type Transcriptions struct{ s *Store }

func (r *Transcriptions) Create(_ context.Context, t *domain.Transcription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.transcriptions {
		if e.DictationID == t.DictationID {
			return fmt.Errorf("transcription: %w", domain.ErrAlreadyExists)
		}
	}
	now := r.s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	r.s.transcriptions[t.ID] = *t
	return nil
}

func (r *Transcriptions) Get(_ context.Context, id string) (*domain.Transcription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transcriptions[id]
	if !ok {
		return nil, notFound("transcription")
	}
	return &t, nil
}

func (r *Transcriptions) GetForUpdate(ctx context.Context, id string) (*domain.Transcription, error) {
	return r.Get(ctx, id)
}

func (r *Transcriptions) GetByDictation(_ context.Context, dictationID string) (*domain.Transcription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.transcriptions {
		if t.DictationID == dictationID {
			return &t, nil
		}
	}
	return nil, notFound("transcription")
}

func (r *Transcriptions) Save(_ context.Context, t *domain.Transcription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.UpdatedAt = r.s.now()
	r.s.transcriptions[t.ID] = *t
	return nil
}

func (r *Transcriptions) AddRevision(_ context.Context, rev *domain.TranscriptionRevision) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.revisions {
		if e.TranscriptionID == rev.TranscriptionID && e.Version == rev.Version {
			return fmt.Errorf("transcription revision: %w", domain.ErrAlreadyExists)
		}
	}
	rev.CreatedAt = r.s.now()
	r.s.revisions = append(r.s.revisions, *rev)
	return nil
}

func (r *Transcriptions) Revisions(_ context.Context, transcriptionID string) ([]domain.TranscriptionRevision, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.TranscriptionRevision
	for _, e := range r.s.revisions {
		if e.TranscriptionID == transcriptionID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Count 测试断言用
func (r *Transcriptions) Count() int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.transcriptions)
}

// ---- audit ----

type Audit struct{ s *Store }

func (r *Audit) Append(_ context.Context, e *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailAudit != nil {
		return r.s.FailAudit
	}
	e.CreatedAt = r.s.now()
	r.s.audit = append(r.s.audit, *e)
	return nil
}

func (r *Audit) match(f domain.AuditFilter, e domain.AuditLog) bool {
	switch {
	case f.UserID != "" && (e.UserID == nil || *e.UserID != f.UserID),
		f.Action != "" && e.Action != f.Action,
		f.ResourceType != "" && e.ResourceType != f.ResourceType,
		f.ResourceID != "" && e.ResourceID != f.ResourceID,
		f.From != nil && e.CreatedAt.Before(*f.From),
		f.To != nil && e.CreatedAt.After(*f.To):
		return false
	}
	return true
}

func (r *Audit) Query(_ context.Context, f domain.AuditFilter) ([]domain.AuditLog, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.AuditLog
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		if r.match(f, r.s.audit[i]) {
			out = append(out, r.s.audit[i])
		}
	}
	return page(out, f.Offset, f.Limit), int64(len(out)), nil
}

func (r *Audit) CountByAction(_ context.Context, f domain.AuditFilter) ([]domain.AuditCount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := map[domain.AuditAction]int64{}
	for _, e := range r.s.audit {
		if r.match(f, e) {
			counts[e.Action]++
		}
	}
	out := make([]domain.AuditCount, 0, len(counts))
	for a, n := range counts {
		out = append(out, domain.AuditCount{Action: a, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Action < out[j].Action
	})
	return out, nil
}

// Actions 按写入顺序返回审计动作，测试断言用
func (r *Audit) Actions() []domain.AuditAction {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.AuditAction, 0, len(r.s.audit))
	for _, e := range r.s.audit {
		out = append(out, e.Action)
	}
	return out
}

// AddUser 测试夹具：直接写入一个已激活用户
func (s *Store) AddUser(id string, role domain.Role) domain.Actor {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.users[id] = domain.User{
		ID:        id,
		Email:     id + "@example.test",
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return domain.Actor{ID: id, Role: role}
}
