package service

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/mentorship_slots/internal/clock"
	"github.com/Freeeeeet/mentorship_slots/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"
)

var testNow = time.Date(2030, 5, 6, 9, 0, 0, 0, time.UTC)

type memTxKey struct{}

// memDB is an in-memory store. Transactions are serialized and restore a
// snapshot on error.
type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextSlotID    int64
	nextBookingID int64
	nextSchedule  int64

	slots     map[int64]model.Slot
	bookings  map[int64]model.Booking
	schedules map[int64]model.RecurringSchedule
	projects  map[int64]*model.Project
	enrolled  map[int64][]int64 // student -> projects
	tasks     map[[2]int64]int  // (project, student) -> count
	users     map[int64]*model.User

	failBookingCreate error
	quotaLocks        int
}

func newMemDB() *memDB {
	return &memDB{
		slots:     map[int64]model.Slot{},
		bookings:  map[int64]model.Booking{},
		schedules: map[int64]model.RecurringSchedule{},
		projects:  map[int64]*model.Project{},
		enrolled:  map[int64][]int64{},
		tasks:     map[[2]int64]int{},
		users:     map[int64]*model.User{},
	}
}

func (db *memDB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}

	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	slots := maps.Clone(db.slots)
	bookings := maps.Clone(db.bookings)
	nextSlot, nextBooking := db.nextSlotID, db.nextBookingID
	db.mu.Unlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		db.mu.Lock()
		db.slots, db.bookings = slots, bookings
		db.nextSlotID, db.nextBookingID = nextSlot, nextBooking
		db.mu.Unlock()
		return err
	}
	return nil
}

// --- seed helpers ---

func (db *memDB) addUser(id int64, role model.Role) {
	db.users[id] = &model.User{ID: id, Role: role, Email: "user" + string(rune('a'+id%26)) + "@example.com"}
}

func (db *memDB) addProject(id int64, status model.ProjectStatus, teacherIDs ...int64) {
	db.projects[id] = &model.Project{ID: id, Name: "Project", Status: status, TeacherIDs: teacherIDs}
}

func (db *memDB) enroll(studentID, projectID int64, tasks int) {
	db.enrolled[studentID] = append(db.enrolled[studentID], projectID)
	db.tasks[[2]int64{projectID, studentID}] = tasks
}

func (db *memDB) addSlot(teacherID int64, start time.Time) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.nextSlotID++
	db.slots[db.nextSlotID] = model.Slot{
		ID:        db.nextSlotID,
		TeacherID: teacherID,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	}
	return db.nextSlotID
}

func (db *memDB) slot(id int64) model.Slot {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.slots[id]
}

func (db *memDB) slotCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.slots)
}

func (db *memDB) activeBookingsForSlot(slotID int64) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, b := range db.bookings {
		if b.SlotID == slotID && b.Status.IsActive() {
			n++
		}
	}
	return n
}

// --- SlotStore ---

func (db *memDB) Create(ctx context.Context, slot *model.Slot) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.nextSlotID++
	slot.ID = db.nextSlotID
	slot.CreatedAt = testNow
	db.slots[slot.ID] = *slot
	return nil
}

func (db *memDB) GetByID(ctx context.Context, id int64) (*model.Slot, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	s, ok := db.slots[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (db *memDB) ListFree(ctx context.Context, teacherID int64, from, to time.Time) ([]*model.Slot, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []*model.Slot
	for _, s := range db.slots {
		if s.TeacherID == teacherID && !s.IsBooked && !s.StartTime.Before(from) && s.StartTime.Before(to) {
			out = append(out, &s)
		}
	}
	slices.SortFunc(out, func(a, b *model.Slot) int { return a.StartTime.Compare(b.StartTime) })
	return out, nil
}

func (db *memDB) SlotExists(ctx context.Context, teacherID int64, start time.Time) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, s := range db.slots {
		if s.TeacherID == teacherID && s.StartTime.Equal(start) {
			return true, nil
		}
	}
	return false, nil
}

func (db *memDB) Claim(ctx context.Context, slotID int64, meetingURL string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	s, ok := db.slots[slotID]
	if !ok || s.IsBooked {
		return false, nil
	}
	s.IsBooked = true
	s.MeetingURL = &meetingURL
	s.Version++
	db.slots[slotID] = s
	return true, nil
}

func (db *memDB) Release(ctx context.Context, slotID int64) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	s, ok := db.slots[slotID]
	if !ok || !s.IsBooked {
		return false, nil
	}
	s.IsBooked = false
	s.MeetingURL = nil
	s.Version++
	db.slots[slotID] = s
	return true, nil
}

// --- ProjectDirectory / TaskCounter / UserDirectory ---

func (db *memDB) FindProjectWithTeacher(ctx context.Context, projectID, teacherID int64) (*model.Project, error) {
	p, ok := db.projects[projectID]
	if !ok || !slices.Contains(p.TeacherIDs, teacherID) {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (db *memDB) ListActiveProjectIDsForStudent(ctx context.Context, studentID int64) ([]int64, error) {
	var ids []int64
	for _, id := range db.enrolled[studentID] {
		if p, ok := db.projects[id]; ok && p.Status == model.ProjectStatusInProgress {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (db *memDB) ListStudentIDs(ctx context.Context, projectID int64) ([]int64, error) {
	var ids []int64
	for studentID, projects := range db.enrolled {
		if slices.Contains(projects, projectID) {
			ids = append(ids, studentID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (db *memDB) CountTasksForStudentInProject(ctx context.Context, projectID, studentID int64) (int, error) {
	return db.tasks[[2]int64{projectID, studentID}], nil
}

func (db *memDB) GetByIDs(ctx context.Context, ids []int64) ([]*model.User, error) {
	var out []*model.User
	for _, id := range ids {
		if u, ok := db.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// bookingStore adapts memDB to BookingStore; method names clash with SlotStore.
type bookingStore struct{ db *memDB }

func (s bookingStore) Create(ctx context.Context, booking *model.Booking) error {
	db := s.db
	if db.failBookingCreate != nil {
		return db.failBookingCreate
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, b := range db.bookings {
		if b.SlotID == booking.SlotID && b.Status.IsActive() {
			return errors.New("duplicate active booking for slot")
		}
	}
	db.nextBookingID++
	booking.ID = db.nextBookingID
	booking.CreatedAt = testNow
	booking.UpdatedAt = testNow
	stored := *booking
	stored.StudentIDs = slices.Clone(booking.StudentIDs)
	stored.Slot = nil
	db.bookings[booking.ID] = stored
	return nil
}

func (s bookingStore) withSlot(b model.Booking) *model.Booking {
	slot := s.db.slots[b.SlotID]
	b.Slot = &slot
	b.StudentIDs = slices.Clone(b.StudentIDs)
	return &b
}

func (s bookingStore) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.bookings[id]
	if !ok {
		return nil, nil
	}
	return s.withSlot(b), nil
}

func (s bookingStore) GetActiveBySlotID(ctx context.Context, slotID int64) (*model.Booking, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, b := range s.db.bookings {
		if b.SlotID == slotID && b.Status.IsActive() {
			return s.withSlot(b), nil
		}
	}
	return nil, nil
}

func (s bookingStore) filter(keep func(b model.Booking) bool) []*model.Booking {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*model.Booking
	for _, b := range s.db.bookings {
		if keep(b) {
			out = append(out, s.withSlot(b))
		}
	}
	slices.SortFunc(out, func(a, b *model.Booking) int { return int(a.ID - b.ID) })
	return out
}

func (s bookingStore) ListByStudent(ctx context.Context, studentID int64) ([]*model.Booking, error) {
	return s.filter(func(b model.Booking) bool { return b.HasStudent(studentID) }), nil
}

func (s bookingStore) ListByTeacher(ctx context.Context, teacherID int64) ([]*model.Booking, error) {
	return s.filter(func(b model.Booking) bool { return s.db.slots[b.SlotID].TeacherID == teacherID }), nil
}

func (s bookingStore) ListDueReminders(ctx context.Context, from, to time.Time) ([]*model.Booking, error) {
	return s.filter(func(b model.Booking) bool {
		start := s.db.slots[b.SlotID].StartTime
		return b.Status == model.BookingStatusConfirmed && b.RemindedAt == nil &&
			!start.Before(from) && start.Before(to)
	}), nil
}

func (s bookingStore) CountActiveForStudentInProject(ctx context.Context, projectID, studentID int64) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for _, b := range s.db.bookings {
		if b.ProjectID == projectID && b.HasStudent(studentID) && b.Status != model.BookingStatusCanceled {
			n++
		}
	}
	return n, nil
}

func (s bookingStore) LockStudentQuota(ctx context.Context, projectID, studentID int64) error {
	if ctx.Value(memTxKey{}) == nil {
		return errors.New("quota lock outside transaction")
	}
	s.db.mu.Lock()
	s.db.quotaLocks++
	s.db.mu.Unlock()
	return nil
}

func (s bookingStore) UpdateStatus(ctx context.Context, id int64, from []model.BookingStatus, to model.BookingStatus) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.bookings[id]
	if !ok || !slices.Contains(from, b.Status) {
		return false, nil
	}
	b.Status = to
	s.db.bookings[id] = b
	return true, nil
}

func (s bookingStore) Complete(ctx context.Context, id int64, minutes, agreements string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.bookings[id]
	if !ok || b.Status != model.BookingStatusConfirmed {
		return false, nil
	}
	b.Status = model.BookingStatusCompleted
	b.Minutes = &minutes
	b.Agreements = &agreements
	s.db.bookings[id] = b
	return true, nil
}

func (s bookingStore) MarkReminded(ctx context.Context, id int64, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b := s.db.bookings[id]
	b.RemindedAt = &at
	s.db.bookings[id] = b
	return nil
}

// scheduleStore adapts memDB to RecurringScheduleStore.
type scheduleStore struct{ db *memDB }

func (s scheduleStore) Create(ctx context.Context, rs *model.RecurringSchedule) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.nextSchedule++
	rs.ID = s.db.nextSchedule
	s.db.schedules[rs.ID] = *rs
	return nil
}

func (s scheduleStore) list(keep func(model.RecurringSchedule) bool) []*model.RecurringSchedule {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*model.RecurringSchedule
	for _, rs := range s.db.schedules {
		if keep(rs) {
			out = append(out, &rs)
		}
	}
	slices.SortFunc(out, func(a, b *model.RecurringSchedule) int { return int(a.ID - b.ID) })
	return out
}

func (s scheduleStore) GetByTeacherID(ctx context.Context, teacherID int64) ([]*model.RecurringSchedule, error) {
	return s.list(func(rs model.RecurringSchedule) bool { return rs.TeacherID == teacherID }), nil
}

func (s scheduleStore) GetAllActive(ctx context.Context) ([]*model.RecurringSchedule, error) {
	return s.list(func(rs model.RecurringSchedule) bool { return rs.IsActive }), nil
}

func (s scheduleStore) DeactivateGroup(ctx context.Context, teacherID int64, groupID uuid.UUID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for id, rs := range s.db.schedules {
		if rs.TeacherID == teacherID && rs.GroupID == groupID && rs.IsActive {
			rs.IsActive = false
			s.db.schedules[id] = rs
			n++
		}
	}
	return n, nil
}

// --- collaborators ---

type meetingFunc func(ctx context.Context, req model.MeetingRequest) (string, error)

func (f meetingFunc) CreateSession(ctx context.Context, req model.MeetingRequest) (string, error) {
	return f(ctx, req)
}

func staticMeeting(url string) meetingFunc {
	return func(context.Context, model.MeetingRequest) (string, error) { return url, nil }
}

type dispatched struct {
	recipients []int64
	summary    model.SessionSummary
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []dispatched
}

func (n *recordingNotifier) Dispatch(_ context.Context, recipients []*model.User, summary model.SessionSummary) {
	ids := make([]int64, 0, len(recipients))
	for _, u := range recipients {
		ids = append(ids, u.ID)
	}
	slices.Sort(ids)

	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, dispatched{recipients: ids, summary: summary})
}

func (n *recordingNotifier) all() []dispatched {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.sent)
}

type recordingMetrics struct {
	mu        sync.Mutex
	outcomes  map[string]int
	fallbacks int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{outcomes: map[string]int{}}
}

func (m *recordingMetrics) ObserveReservation(kind, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[kind+"/"+outcome]++
}

func (m *recordingMetrics) ObserveMeetingLinkFallback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks++
}

type recordingCache struct {
	mu          sync.Mutex
	entries     map[int64][]*model.Slot
	invalidated []int64
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: map[int64][]*model.Slot{}}
}

func (c *recordingCache) GetFree(_ context.Context, teacherID int64, _, _ time.Time) ([]*model.Slot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[teacherID]
	return s, ok
}

func (c *recordingCache) SetFree(_ context.Context, teacherID int64, _, _ time.Time, slots []*model.Slot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[teacherID] = slots
}

func (c *recordingCache) Invalidate(_ context.Context, teacherID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, teacherID)
	c.invalidated = append(c.invalidated, teacherID)
}

// --- fixture ---

const (
	teacherID      int64 = 100
	otherTeacherID int64 = 101
	adminID        int64 = 900
	studentID      int64 = 1
	teammateID     int64 = 2
	projectID      int64 = 10
	otherProjectID int64 = 11
)

type fixture struct {
	db       *memDB
	notifier *recordingNotifier
	metrics  *recordingMetrics
	cache    *recordingCache
	deps     Dependencies
}

// newFixture seeds one in-progress project taught by teacherID with studentID
// and teammateID enrolled (studentTasks tasks for studentID).
func newFixture(t *testing.T, studentTasks int) *fixture {
	t.Helper()

	db := newMemDB()
	db.addUser(teacherID, model.RoleTeacher)
	db.addUser(otherTeacherID, model.RoleTeacher)
	db.addUser(adminID, model.RoleAdmin)
	db.addUser(studentID, model.RoleStudent)
	db.addUser(teammateID, model.RoleStudent)
	db.addProject(projectID, model.ProjectStatusInProgress, teacherID)
	db.addProject(otherProjectID, model.ProjectStatusInProgress, otherTeacherID)
	db.enroll(studentID, projectID, studentTasks)
	db.enroll(teammateID, projectID, 1)

	f := &fixture{
		db:       db,
		notifier: &recordingNotifier{},
		metrics:  newRecordingMetrics(),
		cache:    newRecordingCache(),
	}
	f.deps = Dependencies{
		Tx:       db,
		Slots:    db,
		Bookings: bookingStore{db: db},
		Projects: db,
		Tasks:    db,
		Users:    db,
		Meetings: staticMeeting("https://meet.example.com/session"),
		Notifier: f.notifier,
		Cache:    f.cache,
		Metrics:  f.metrics,
		Clock:    clock.NewFixed(testNow),
		Logger:   zaptest.NewLogger(t),
	}
	return f
}

func (f *fixture) futureSlot(offset time.Duration) int64 {
	return f.db.addSlot(teacherID, testNow.Add(offset))
}

func ptr[T any](v T) *T { return &v }

var (
	studentActor = model.Actor{UserID: studentID, Role: model.RoleStudent}
	teacherActor = model.Actor{UserID: teacherID, Role: model.RoleTeacher}
	adminActor   = model.Actor{UserID: adminID, Role: model.RoleAdmin}
)
