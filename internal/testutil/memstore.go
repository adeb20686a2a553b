package testutil

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/repository"
)

// ErrInjected is returned by operations armed with FailOn.
var ErrInjected = errors.New("injected failure")

// MemStore is an in-memory repository.UnitOfWork. A transaction holds the
// store lock for its whole duration and a failed transaction restores the
// snapshot taken when it began, so tests observe the same all-or-nothing
// behavior as the Postgres store.
type MemStore struct {
	mu       sync.Mutex
	state    *memState
	failures map[string]error
	now      func() time.Time
}

type memState struct {
	loans     map[int32]*domain.Loan
	items     map[int32]*domain.Item
	patrons   map[int32]*domain.Patron
	sanctions map[int32]*domain.Sanction
	users     map[int32]*domain.User
	audit     []domain.AuditEntry
	nextID    int32
	nextAudit int64
}

func NewMemStore(now func() time.Time) *MemStore {
	if now == nil {
		now = time.Now
	}
	return &MemStore{
		state: &memState{
			loans:     map[int32]*domain.Loan{},
			items:     map[int32]*domain.Item{},
			patrons:   map[int32]*domain.Patron{},
			sanctions: map[int32]*domain.Sanction{},
			users:     map[int32]*domain.User{},
		},
		failures: map[string]error{},
		now:      now,
	}
}

func (st *memState) clone() *memState {
	c := &memState{
		loans:     make(map[int32]*domain.Loan, len(st.loans)),
		items:     make(map[int32]*domain.Item, len(st.items)),
		patrons:   make(map[int32]*domain.Patron, len(st.patrons)),
		sanctions: make(map[int32]*domain.Sanction, len(st.sanctions)),
		users:     make(map[int32]*domain.User, len(st.users)),
		audit:     append([]domain.AuditEntry(nil), st.audit...),
		nextID:    st.nextID,
		nextAudit: st.nextAudit,
	}
	for id, l := range st.loans {
		c.loans[id] = l.Clone()
	}
	for id, i := range st.items {
		c.items[id] = i.Clone()
	}
	for id, p := range st.patrons {
		cp := *p
		c.patrons[id] = &cp
	}
	for id, s := range st.sanctions {
		c.sanctions[id] = s.Clone()
	}
	for id, u := range st.users {
		cu := *u
		c.users[id] = &cu
	}
	return c
}

func (st *memState) id() int32 {
	st.nextID++
	return st.nextID
}

// FailOn arms op (e.g. "audit.Create", "loans.Update") to fail with err
// until cleared with a nil err.
func (s *MemStore) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *MemStore) fail(op string) error {
	return s.failures[op]
}

// WithinTx implements repository.UnitOfWork.
func (s *MemStore) WithinTx(ctx context.Context, fn func(repos repository.Repositories) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("tx.Begin"); err != nil {
		return domain.NewPersistenceError("begin transaction", err)
	}
	snapshot := s.state.clone()
	defer func() {
		if p := recover(); p != nil {
			s.state = snapshot
			panic(p)
		}
	}()

	if err = fn(s.repos(true)); err != nil {
		s.state = snapshot
		return err
	}
	if ferr := s.fail("tx.Commit"); ferr != nil {
		s.state = snapshot
		return domain.NewPersistenceError("commit transaction", ferr)
	}
	return nil
}

// Repositories returns repositories that lock the store per call, for use
// outside WithinTx.
func (s *MemStore) Repositories() repository.Repositories {
	return s.repos(false)
}

func (s *MemStore) repos(inTx bool) repository.Repositories {
	return repository.Repositories{
		Loans:     &memLoans{s: s, inTx: inTx},
		Items:     &memItems{s: s, inTx: inTx},
		Patrons:   &memPatrons{s: s, inTx: inTx},
		Sanctions: &memSanctions{s: s, inTx: inTx},
		Audit:     &memAudit{s: s, inTx: inTx},
		Users:     &memUsers{s: s, inTx: inTx},
	}
}

// AuditQuery returns a repository.AuditQueryRepository over the stored entries.
func (s *MemStore) AuditQuery() repository.AuditQueryRepository {
	return &memAudit{s: s}
}

func (s *MemStore) lock(inTx bool) func() {
	if inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Seeding and inspection helpers.

func (s *MemStore) AddItem(item domain.Item) *domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == 0 {
		item.ID = s.state.id()
	}
	if item.Availability == "" {
		item.Availability = domain.ItemAvailable
	}
	s.state.items[item.ID] = &item
	return item.Clone()
}

func (s *MemStore) AddPatron(p domain.Patron) *domain.Patron {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.state.id()
	}
	s.state.patrons[p.ID] = &p
	cp := p
	return &cp
}

func (s *MemStore) AddUser(u domain.User) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.state.id()
	}
	s.state.users[u.ID] = &u
	cu := u
	return &cu
}

func (s *MemStore) AddLoan(l domain.Loan) *domain.Loan {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == 0 {
		l.ID = s.state.id()
	}
	s.state.loans[l.ID] = l.Clone()
	return l.Clone()
}

func (s *MemStore) AddSanction(sn domain.Sanction) *domain.Sanction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sn.ID == 0 {
		sn.ID = s.state.id()
	}
	s.state.sanctions[sn.ID] = sn.Clone()
	return sn.Clone()
}

func (s *MemStore) Loan(id int32) *domain.Loan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.loans[id].Clone()
}

func (s *MemStore) Item(id int32) *domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.items[id].Clone()
}

func (s *MemStore) LoanCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.loans)
}

func (s *MemStore) SanctionsOf(patronID int32) []domain.Sanction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.sanctionsOf(patronID)
}

// AuditEntries returns every stored entry in insertion order.
func (s *MemStore) AuditEntries() []domain.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditEntry(nil), s.state.audit...)
}

// AuditFor returns the entries of one entity in insertion order.
func (s *MemStore) AuditFor(entityType, entityID string) []domain.AuditEntry {
	var out []domain.AuditEntry
	for _, e := range s.AuditEntries() {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out
}

func (st *memState) sanctionsOf(patronID int32) []domain.Sanction {
	var out []domain.Sanction
	for _, sn := range st.sanctions {
		if sn.PatronID == patronID {
			out = append(out, *sn.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

type memLoans struct {
	s    *MemStore
	inTx bool
}

func (r *memLoans) Create(ctx context.Context, loan *domain.Loan) error {
	defer r.s.lock(r.inTx)()
	if err := r.s.fail("loans.Create"); err != nil {
		return domain.NewPersistenceError("create loan", err)
	}
	if loan.Status.IsUnresolved() {
		for _, l := range r.s.state.loans {
			if l.ItemID == loan.ItemID && l.Status.IsUnresolved() {
				return domain.NewConflictError("create loan", "item %d already has an unresolved loan", loan.ItemID)
			}
		}
	}
	loan.ID = r.s.state.id()
	r.s.state.loans[loan.ID] = loan.Clone()
	return nil
}

func (r *memLoans) get(op string, id int32) (*domain.Loan, error) {
	if err := r.s.fail(op); err != nil {
		return nil, domain.NewPersistenceError(op, err)
	}
	l, ok := r.s.state.loans[id]
	if !ok {
		return nil, domain.NewNotFoundError(op, "loan", id)
	}
	return l.Clone(), nil
}

func (r *memLoans) GetByID(ctx context.Context, id int32) (*domain.Loan, error) {
	defer r.s.lock(r.inTx)()
	return r.get("loans.GetByID", id)
}

func (r *memLoans) GetForUpdate(ctx context.Context, id int32) (*domain.Loan, error) {
	defer r.s.lock(r.inTx)()
	return r.get("loans.GetForUpdate", id)
}

func (r *memLoans) Update(ctx context.Context, loan *domain.Loan) error {
	defer r.s.lock(r.inTx)()
	if err := r.s.fail("loans.Update"); err != nil {
		return domain.NewPersistenceError("update loan", err)
	}
	if _, ok := r.s.state.loans[loan.ID]; !ok {
		return domain.NewNotFoundError("update loan", "loan", loan.ID)
	}
	r.s.state.loans[loan.ID] = loan.Clone()
	return nil
}

func (r *memLoans) CountUnresolvedByItem(ctx context.Context, itemID int32) (int32, error) {
	defer r.s.lock(r.inTx)()
	var n int32
	for _, l := range r.s.state.loans {
		if l.ItemID == itemID && l.Status.IsUnresolved() {
			n++
		}
	}
	return n, nil
}

func (r *memLoans) List(ctx context.Context, filter domain.LoanFilter) ([]domain.Loan, int32, error) {
	defer r.s.lock(r.inTx)()
	today := r.s.now()
	var matched []domain.Loan
	for _, l := range r.s.state.loans {
		switch {
		case filter.Status == domain.LoanStatusOverdue:
			if l.DaysOverdueAt(today) == 0 {
				continue
			}
		case filter.Status != "" && l.Status != filter.Status:
			continue
		}
		if filter.ItemID != nil && l.ItemID != *filter.ItemID {
			continue
		}
		if filter.PatronID != nil && (l.PatronID == nil || *l.PatronID != *filter.PatronID) {
			continue
		}
		matched = append(matched, *l.Clone())
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int32(len(matched))
	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	start := (page - 1) * size
	if start >= total {
		return []domain.Loan{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *memLoans) ListOverdue(ctx context.Context, asOf time.Time) ([]domain.Loan, error) {
	defer r.s.lock(r.inTx)()
	if err := r.s.fail("loans.ListOverdue"); err != nil {
		return nil, domain.NewPersistenceError("list overdue loans", err)
	}
	var out []domain.Loan
	for _, l := range r.s.state.loans {
		if l.DaysOverdueAt(asOf) > 0 {
			out = append(out, *l.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memLoans) RefreshDaysOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	defer r.s.lock(r.inTx)()
	if err := r.s.fail("loans.RefreshDaysOverdue"); err != nil {
		return 0, domain.NewPersistenceError("refresh days overdue", err)
	}
	var n int64
	for _, l := range r.s.state.loans {
		if l.Status != domain.LoanStatusActive {
			continue
		}
		if d := l.DaysOverdueAt(asOf); d != l.DaysOverdue {
			l.DaysOverdue = d
			n++
		}
	}
	return n, nil
}

type memItems struct {
	s    *MemStore
	inTx bool
}

func (r *memItems) Create(ctx context.Context, item *domain.Item) error {
	defer r.s.lock(r.inTx)()
	if err := r.s.fail("items.Create"); err != nil {
		return domain.NewPersistenceError("create item", err)
	}
	for _, i := range r.s.state.items {
		if i.Barcode == item.Barcode {
			return domain.NewConflictError("create item", "barcode %s is already registered", item.Barcode)
		}
	}
	if item.Availability == "" {
		item.Availability = domain.ItemAvailable
	}
	item.ID = r.s.state.id()
	r.s.state.items[item.ID] = item.Clone()
	return nil
}

func (r *memItems) get(op string, id int32) (*domain.Item, error) {
	i, ok := r.s.state.items[id]
	if !ok {
		return nil, domain.NewNotFoundError(op, "item", id)
	}
	return i.Clone(), nil
}

func (r *memItems) GetByID(ctx context.Context, id int32) (*domain.Item, error) {
	defer r.s.lock(r.inTx)()
	return r.get("get item", id)
}

func (r *memItems) GetForUpdate(ctx context.Context, id int32) (*domain.Item, error) {
	defer r.s.lock(r.inTx)()
	return r.get("lock item", id)
}

func (r *memItems) List(ctx context.Context, page, pageSize int32) ([]domain.Item, int32, error) {
	defer r.s.lock(r.inTx)()
	var all []domain.Item
	for _, i := range r.s.state.items {
		all = append(all, *i.Clone())
	}
	sort.Slice(all, func(a, b int) bool {
		if all[a].Title != all[b].Title {
			return all[a].Title < all[b].Title
		}
		return all[a].ID < all[b].ID
	})
	total := int32(len(all))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start >= total {
		return []domain.Item{}, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *memItems) UpdateAvailability(ctx context.Context, id int32, availability domain.ItemAvailability) error {
	defer r.s.lock(r.inTx)()
	if err := r.s.fail("items.UpdateAvailability"); err != nil {
		return domain.NewPersistenceError("update item availability", err)
	}
	i, ok := r.s.state.items[id]
	if !ok {
		return domain.NewNotFoundError("update item availability", "item", id)
	}
	i.Availability = availability
	i.UpdatedAt = r.s.now()
	return nil
}

type memPatrons struct {
	s    *MemStore
	inTx bool
}

func (r *memPatrons) Create(ctx context.Context, p *domain.Patron) error {
	defer r.s.lock(r.inTx)()
	p.ID = r.s.state.id()
	cp := *p
	r.s.state.patrons[p.ID] = &cp
	return nil
}

func (r *memPatrons) GetByID(ctx context.Context, id int32) (*domain.Patron, error) {
	defer r.s.lock(r.inTx)()
	p, ok := r.s.state.patrons[id]
	if !ok {
		return nil, domain.NewNotFoundError("get patron", "patron", id)
	}
	cp := *p
	return &cp, nil
}

func (r *memPatrons) GetByNationalID(ctx context.Context, nationalID string) (*domain.Patron, error) {
	defer r.s.lock(r.inTx)()
	for _, p := range r.s.state.patrons {
		if p.NationalID == nationalID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.NewNotFoundError("get patron by national id", "patron", nationalID)
}

type memSanctions struct {
	s    *MemStore
	inTx bool
}

func (r *memSanctions) Create(ctx context.Context, sn *domain.Sanction) error {
	defer r.s.lock(r.inTx)()
	if err := r.s.fail("sanctions.Create"); err != nil {
		return domain.NewPersistenceError("create sanction", err)
	}
	sn.ID = r.s.state.id()
	r.s.state.sanctions[sn.ID] = sn.Clone()
	return nil
}

func (r *memSanctions) get(op string, id int32) (*domain.Sanction, error) {
	sn, ok := r.s.state.sanctions[id]
	if !ok {
		return nil, domain.NewNotFoundError(op, "sanction", id)
	}
	return sn.Clone(), nil
}

func (r *memSanctions) GetByID(ctx context.Context, id int32) (*domain.Sanction, error) {
	defer r.s.lock(r.inTx)()
	return r.get("get sanction", id)
}

func (r *memSanctions) GetForUpdate(ctx context.Context, id int32) (*domain.Sanction, error) {
	defer r.s.lock(r.inTx)()
	return r.get("lock sanction", id)
}

func (r *memSanctions) Update(ctx context.Context, sn *domain.Sanction) error {
	defer r.s.lock(r.inTx)()
	if _, ok := r.s.state.sanctions[sn.ID]; !ok {
		return domain.NewNotFoundError("update sanction", "sanction", sn.ID)
	}
	r.s.state.sanctions[sn.ID] = sn.Clone()
	return nil
}

func (r *memSanctions) HasActive(ctx context.Context, patronID int32, asOf time.Time) (bool, error) {
	defer r.s.lock(r.inTx)()
	for _, sn := range r.s.state.sanctions {
		if sn.PatronID == patronID && sn.InForceAt(asOf) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memSanctions) ListByPatron(ctx context.Context, patronID int32) ([]domain.Sanction, error) {
	defer r.s.lock(r.inTx)()
	return r.s.state.sanctionsOf(patronID), nil
}

type memUsers struct {
	s    *MemStore
	inTx bool
}

func (r *memUsers) GetByID(ctx context.Context, id int32) (*domain.User, error) {
	defer r.s.lock(r.inTx)()
	u, ok := r.s.state.users[id]
	if !ok {
		return nil, domain.NewNotFoundError("get user", "user", id)
	}
	cu := *u
	return &cu, nil
}

func (r *memUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	defer r.s.lock(r.inTx)()
	for _, u := range r.s.state.users {
		if strings.EqualFold(u.Email, email) {
			cu := *u
			return &cu, nil
		}
	}
	return nil, domain.NewNotFoundError("get user by email", "user", email)
}

type memAudit struct {
	s    *MemStore
	inTx bool
}

func (r *memAudit) insert(entry *domain.AuditEntry) {
	r.s.state.nextAudit++
	entry.ID = r.s.state.nextAudit
	r.s.state.audit = append(r.s.state.audit, *entry)
}

func (r *memAudit) Create(ctx context.Context, entry *domain.AuditEntry) error {
	defer r.s.lock(r.inTx)()
	if err := r.s.fail("audit.Create"); err != nil {
		return domain.NewPersistenceError("create audit entry", err)
	}
	r.insert(entry)
	return nil
}

// CreateIsolated fails without touching the rest of the transaction, like
// the savepoint-guarded insert.
func (r *memAudit) CreateIsolated(ctx context.Context, entry *domain.AuditEntry) error {
	defer r.s.lock(r.inTx)()
	if err := r.s.fail("audit.Create"); err != nil {
		return domain.NewPersistenceError("create audit entry", err)
	}
	r.insert(entry)
	return nil
}

func (r *memAudit) List(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, error) {
	defer r.s.lock(r.inTx)()
	var out []domain.AuditEntry
	for _, e := range r.s.state.audit {
		if f.ActorID != nil && (e.ActorID == nil || *e.ActorID != *f.ActorID) {
			continue
		}
		if f.EntityType != "" && e.EntityType != f.EntityType {
			continue
		}
		if f.EntityID != "" && e.EntityID != f.EntityID {
			continue
		}
		if f.From != nil && e.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !e.CreatedAt.Before(*f.To) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	start := int(f.Offset)
	if start >= len(out) {
		return []domain.AuditEntry{}, nil
	}
	end := start + int(limit)
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], nil
}
