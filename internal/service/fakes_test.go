package service

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/webinarflow/whatsapp-dispatch/internal/model"
	"github.com/webinarflow/whatsapp-dispatch/internal/repository"
)

// In-memory fakes implementing the repository interfaces. They mirror the
// conditional-update semantics of the SQL implementations (claim and
// quota CAS included) so concurrency tests exercise the real contract.

// ---------- accounts ----------

type memAccounts struct {
	mu       sync.Mutex
	nextID   int
	accounts map[int]*model.Account
}

func newMemAccounts(accounts ...*model.Account) *memAccounts {
	m := &memAccounts{accounts: map[int]*model.Account{}}
	for _, a := range accounts {
		m.nextID++
		if a.ID == 0 {
			a.ID = m.nextID
		}
		cp := *a
		m.accounts[a.ID] = &cp
	}
	return m
}

func copyAccount(a *model.Account) *model.Account {
	cp := *a
	if a.LastUsedAt != nil {
		t := *a.LastUsedAt
		cp.LastUsedAt = &t
	}
	return &cp
}

func (m *memAccounts) Create(a *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.ID = m.nextID
	m.accounts[a.ID] = copyAccount(a)
	return nil
}

func (m *memAccounts) Update(a *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.ID] = copyAccount(a)
	return nil
}

func (m *memAccounts) GetByID(id int) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %d not found", id)
	}
	return copyAccount(a), nil
}

func (m *memAccounts) ListByTenant(tenantID int, status string) ([]*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Account{}
	for _, a := range m.accounts {
		if a.TenantID == tenantID && (status == "" || a.Status == status) {
			out = append(out, copyAccount(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memAccounts) UpdateStatus(accountID int, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[accountID]; ok {
		a.Status = status
	}
	return nil
}

func (m *memAccounts) Delete(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, id)
	return nil
}

func (m *memAccounts) ListEligible(tenantID int, scope string) ([]*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Account{}
	for _, a := range m.accounts {
		if a.TenantID == tenantID && a.Scope == scope && a.Status == model.AccountConnected {
			out = append(out, copyAccount(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		iu, ju := out[i].LastUsedAt, out[j].LastUsedAt
		if iu == nil && ju != nil {
			return true
		}
		if iu != nil && ju == nil {
			return false
		}
		if iu != nil && ju != nil && !iu.Equal(*ju) {
			return iu.Before(*ju)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memAccounts) ReserveQuota(a *model.Account, oldHour, oldDay int, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.accounts[a.ID]
	if !ok || cur.Status != model.AccountConnected {
		return false, nil
	}
	if cur.MessagesSentThisHour != oldHour || cur.MessagesSentToday != oldDay {
		return false, nil
	}
	cur.MessagesSentThisHour = a.MessagesSentThisHour
	cur.MessagesSentToday = a.MessagesSentToday
	cur.LastHourResetAt = a.LastHourResetAt
	cur.LastDayResetKey = a.LastDayResetKey
	used := now
	cur.LastUsedAt = &used
	return true, nil
}

var _ repository.AccountRepositoryInterface = (*memAccounts)(nil)

// ---------- messages ----------

type memMessages struct {
	mu     sync.Mutex
	nextID int
	msgs   map[int]*model.Message
}

func newMemMessages(msgs ...*model.Message) *memMessages {
	m := &memMessages{msgs: map[int]*model.Message{}}
	for _, msg := range msgs {
		m.nextID++
		if msg.ID == 0 {
			msg.ID = m.nextID
		}
		cp := *msg
		m.msgs[msg.ID] = &cp
	}
	return m
}

func copyMessage(msg *model.Message) *model.Message {
	cp := *msg
	return &cp
}

func (m *memMessages) Create(msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	msg.ID = m.nextID
	if msg.Status == "" {
		msg.Status = model.MessageQueued
	}
	m.msgs[msg.ID] = copyMessage(msg)
	return nil
}

func (m *memMessages) GetByID(id int) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.msgs[id]
	if !ok {
		return nil, nil
	}
	return copyMessage(msg), nil
}

func (m *memMessages) List(f model.MessageFilter) ([]*model.Message, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Message{}
	for _, msg := range m.msgs {
		if msg.TenantID != f.TenantID {
			continue
		}
		if f.Status != "" && msg.Status != f.Status {
			continue
		}
		if f.BroadcastID != 0 && (msg.BroadcastID == nil || *msg.BroadcastID != f.BroadcastID) {
			continue
		}
		if f.SequenceID != 0 && (msg.SequenceID == nil || *msg.SequenceID != f.SequenceID) {
			continue
		}
		out = append(out, copyMessage(msg))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memMessages) ExistsForOccurrence(sequenceID, leadID int, occurrenceAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.msgs {
		if msg.SequenceID != nil && *msg.SequenceID == sequenceID &&
			msg.LeadID == leadID &&
			msg.OccurrenceAt != nil && msg.OccurrenceAt.Equal(occurrenceAt) &&
			msg.Status != model.MessageCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (m *memMessages) ExistsForBroadcast(broadcastID, leadID int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.msgs {
		if msg.BroadcastID != nil && *msg.BroadcastID == broadcastID &&
			msg.LeadID == leadID &&
			msg.Status != model.MessageCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (m *memMessages) FetchDue(now time.Time, limit int) ([]*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Message{}
	for _, msg := range m.msgs {
		if msg.Status == model.MessageQueued && !msg.SendAt.After(now) {
			out = append(out, copyMessage(msg))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SendAt.Equal(out[j].SendAt) {
			return out[i].SendAt.Before(out[j].SendAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memMessages) Claim(id int, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.msgs[id]
	if !ok || msg.Status != model.MessageQueued {
		return false, nil
	}
	msg.Status = model.MessageSending
	claimed := now
	msg.ClaimedAt = &claimed
	return true, nil
}

func (m *memMessages) Release(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.msgs[id]; ok && msg.Status == model.MessageSending {
		msg.Status = model.MessageQueued
		msg.ClaimedAt = nil
	}
	return nil
}

func (m *memMessages) BeginAttempt(id, accountID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.msgs[id]
	if !ok || msg.Status != model.MessageSending {
		return 0, fmt.Errorf("message %d no longer in sending state", id)
	}
	msg.Attempts++
	msg.AssignedAccountID = &accountID
	return msg.Attempts, nil
}

func (m *memMessages) MarkSent(id, attempt int, providerMessageID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.msgs[id]
	if !ok || msg.Status != model.MessageSending || msg.Attempts != attempt {
		return false, nil
	}
	msg.Status = model.MessageSent
	msg.ProviderMessageID = &providerMessageID
	msg.LastError = ""
	msg.ClaimedAt = nil
	return true, nil
}

func (m *memMessages) MarkFailed(id, attempt int, lastError string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.msgs[id]
	if !ok || msg.Status != model.MessageSending || msg.Attempts != attempt {
		return false, nil
	}
	msg.Status = model.MessageFailed
	msg.LastError = lastError
	msg.ClaimedAt = nil
	return true, nil
}

func (m *memMessages) Requeue(id, attempt int, sendAt time.Time, lastError string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.msgs[id]
	if !ok || msg.Status != model.MessageSending || msg.Attempts != attempt {
		return false, nil
	}
	msg.Status = model.MessageQueued
	msg.SendAt = sendAt
	msg.LastError = lastError
	msg.ClaimedAt = nil
	msg.AssignedAccountID = nil
	return true, nil
}

func (m *memMessages) RecoverStale(olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, msg := range m.msgs {
		if msg.Status == model.MessageSending && msg.ClaimedAt != nil && msg.ClaimedAt.Before(olderThan) {
			msg.Status = model.MessageQueued
			msg.ClaimedAt = nil
			n++
		}
	}
	return n, nil
}

func (m *memMessages) CancelQueued(id int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.msgs[id]
	if !ok || msg.Status != model.MessageQueued {
		return false, nil
	}
	msg.Status = model.MessageCancelled
	return true, nil
}

func (m *memMessages) CancelQueuedByBroadcast(broadcastID int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, msg := range m.msgs {
		if msg.BroadcastID != nil && *msg.BroadcastID == broadcastID && msg.Status == model.MessageQueued {
			msg.Status = model.MessageCancelled
			n++
		}
	}
	return n, nil
}

var _ repository.MessageRepositoryInterface = (*memMessages)(nil)

// ---------- broadcasts ----------

type memBroadcasts struct {
	mu         sync.Mutex
	nextID     int
	broadcasts map[int]*model.Broadcast
}

func newMemBroadcasts(broadcasts ...*model.Broadcast) *memBroadcasts {
	m := &memBroadcasts{broadcasts: map[int]*model.Broadcast{}}
	for _, b := range broadcasts {
		m.nextID++
		if b.ID == 0 {
			b.ID = m.nextID
		}
		cp := *b
		m.broadcasts[b.ID] = &cp
	}
	return m
}

func (m *memBroadcasts) Create(b *model.Broadcast) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	b.ID = m.nextID
	cp := *b
	m.broadcasts[b.ID] = &cp
	return nil
}

// update overwrites a stored broadcast; test setup only.
func (m *memBroadcasts) update(b *model.Broadcast) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.broadcasts[b.ID] = &cp
	return nil
}

func (m *memBroadcasts) GetByID(id int) (*model.Broadcast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.broadcasts[id]
	if !ok {
		return nil, fmt.Errorf("broadcast %d not found", id)
	}
	cp := *b
	return &cp, nil
}

func (m *memBroadcasts) ListByTenant(tenantID int, status string, offset, limit int) ([]*model.Broadcast, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Broadcast{}
	for _, b := range m.broadcasts {
		if b.TenantID == tenantID && (status == "" || b.Status == status) {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *memBroadcasts) UpdateStatus(broadcastID int, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.broadcasts[broadcastID]; ok {
		b.Status = status
	}
	return nil
}

func (m *memBroadcasts) FixTotals(broadcastID, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.broadcasts[broadcastID]; ok {
		b.TotalRecipients = total
		b.PendingCount = total
		b.Status = model.BroadcastSending
	}
	return nil
}

func (m *memBroadcasts) ApplyTerminal(broadcastID int, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.broadcasts[broadcastID]
	if !ok || b.PendingCount <= 0 {
		return nil
	}
	b.PendingCount--
	switch status {
	case model.MessageSent:
		b.SentCount++
	case model.MessageFailed:
		b.FailedCount++
	case model.MessageCancelled:
		b.CancelledCount++
	}
	if b.PendingCount == 0 && b.Status == model.BroadcastSending {
		b.Status = model.BroadcastCompleted
	}
	return nil
}

func (m *memBroadcasts) ApplyCancelled(broadcastID int, n int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.broadcasts[broadcastID]; ok {
		b.PendingCount -= int(n)
		b.CancelledCount += int(n)
		b.Status = model.BroadcastCancelled
	}
	return nil
}

var _ repository.BroadcastRepositoryInterface = (*memBroadcasts)(nil)

// ---------- sequences and occurrences ----------

type memSequences struct {
	mu          sync.Mutex
	nextID      int
	sequences   map[int]*model.Sequence
	occurrences map[int]*model.Occurrence
}

func newMemSequences(sequences []*model.Sequence, occurrences []*model.Occurrence) *memSequences {
	m := &memSequences{sequences: map[int]*model.Sequence{}, occurrences: map[int]*model.Occurrence{}}
	for _, s := range sequences {
		m.nextID++
		if s.ID == 0 {
			s.ID = m.nextID
		}
		cp := *s
		m.sequences[s.ID] = &cp
	}
	for i, o := range occurrences {
		if o.ID == 0 {
			o.ID = i + 1
		}
		cp := *o
		m.occurrences[o.ID] = &cp
	}
	return m
}

func (m *memSequences) Create(s *model.Sequence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.ID = m.nextID
	cp := *s
	m.sequences[s.ID] = &cp
	return nil
}

func (m *memSequences) Update(s *model.Sequence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sequences[s.ID] = &cp
	return nil
}

func (m *memSequences) GetByID(id int) (*model.Sequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sequences[id]
	if !ok {
		return nil, fmt.Errorf("sequence %d not found", id)
	}
	cp := *s
	return &cp, nil
}

func (m *memSequences) ListByTenant(tenantID int) ([]*model.Sequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Sequence{}
	for _, s := range m.sequences {
		if s.TenantID == tenantID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memSequences) ListEnabledForWebinar(webinarID int) ([]*model.Sequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Sequence{}
	for _, s := range m.sequences {
		if s.WebinarID == webinarID && s.Enabled {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memSequences) SetEnabled(sequenceID int, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sequences[sequenceID]; ok {
		s.Enabled = enabled
	}
	return nil
}

func (m *memSequences) GetOccurrenceByID(id int) (*model.Occurrence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.occurrences[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (m *memSequences) ListOccurrencesBetween(from, to time.Time) ([]*model.Occurrence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Occurrence{}
	for _, o := range m.occurrences {
		if !o.StartsAt.Before(from) && !o.StartsAt.After(to) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

var _ repository.SequenceRepositoryInterface = (*memSequences)(nil)

// ---------- leads ----------

type memLeads struct {
	leads []*model.Lead
}

func newMemLeads(leads ...*model.Lead) *memLeads {
	for i, l := range leads {
		if l.ID == 0 {
			l.ID = i + 1
		}
	}
	return &memLeads{leads: leads}
}

func (m *memLeads) GetByID(id int) (*model.Lead, error) {
	for _, l := range m.leads {
		if l.ID == id {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memLeads) ListAll(tenantID int) ([]*model.Lead, error) {
	out := []*model.Lead{}
	for _, l := range m.leads {
		if l.TenantID == tenantID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memLeads) ListByIDs(tenantID int, ids []int) ([]*model.Lead, error) {
	want := map[int]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := []*model.Lead{}
	for _, l := range m.leads {
		if l.TenantID == tenantID && want[l.ID] {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memLeads) ListByOccurrence(occurrenceID int) ([]*model.Lead, error) {
	out := []*model.Lead{}
	for _, l := range m.leads {
		if l.OccurrenceID != nil && *l.OccurrenceID == occurrenceID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memLeads) ListRegisteredBetween(tenantID int, from, to time.Time) ([]*model.Lead, error) {
	out := []*model.Lead{}
	for _, l := range m.leads {
		if l.TenantID == tenantID && !l.RegisteredAt.Before(from) && !l.RegisteredAt.After(to) {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

var _ repository.LeadRepositoryInterface = (*memLeads)(nil)

// ---------- tenants ----------

type memTenants struct {
	tenants map[int]*model.Tenant
}

func newMemTenants(tenants ...*model.Tenant) *memTenants {
	m := &memTenants{tenants: map[int]*model.Tenant{}}
	for _, t := range tenants {
		m.tenants[t.ID] = t
	}
	return m
}

func (m *memTenants) GetByID(id int) (*model.Tenant, error) {
	t, ok := m.tenants[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

var _ repository.TenantRepositoryInterface = (*memTenants)(nil)

// ---------- channel adapter ----------

type sentRecord struct {
	AccountID int
	Target    string
	Payload   string
}

// fakeAdapter records sends and returns scripted results.
type fakeAdapter struct {
	mu   sync.Mutex
	sent []sentRecord
	// SendFunc overrides the default always-succeed behavior.
	SendFunc func(a *model.Account, target, payload string) (string, error)
}

func (f *fakeAdapter) Connect(a *model.Account) (string, error) {
	return model.AccountConnected, nil
}

func (f *fakeAdapter) Send(a *model.Account, target, payload string) (string, error) {
	f.mu.Lock()
	f.sent = append(f.sent, sentRecord{AccountID: a.ID, Target: target, Payload: payload})
	fn := f.SendFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(a, target, payload)
	}
	return fmt.Sprintf("prov-%d", len(f.sent)), nil
}

func (f *fakeAdapter) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}
