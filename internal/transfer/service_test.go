package transfer_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/classward/classward/internal/audit"
	"github.com/classward/classward/internal/groups"
	"github.com/classward/classward/internal/ownership"
	"github.com/classward/classward/internal/shared"
	"github.com/classward/classward/internal/transfer"
)

type enrKey struct {
	studentID int64
	groupID   int64
}

type memState struct {
	groups      map[int64]groups.Group
	enrollments map[enrKey]bool
	requests    map[uuid.UUID]transfer.Request
}

func (s *memState) occupancy(groupID int64) int {
	count := 0
	for key := range s.enrollments {
		if key.groupID == groupID {
			count++
		}
	}
	return count
}

// memStore backs both the groups reads and the ownership resolver. The
// lock registries hand out per-row mutexes so transactions can model
// FOR UPDATE the way Postgres grants it.
type memStore struct {
	mu         sync.Mutex
	state      *memState
	reqLocks   map[uuid.UUID]*sync.Mutex
	groupLocks map[int64]*sync.Mutex
}

func (m *memStore) requestLock(id uuid.UUID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reqLocks == nil {
		m.reqLocks = map[uuid.UUID]*sync.Mutex{}
	}
	lock, ok := m.reqLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.reqLocks[id] = lock
	}
	return lock
}

func (m *memStore) groupLock(id int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.groupLocks == nil {
		m.groupLocks = map[int64]*sync.Mutex{}
	}
	lock, ok := m.groupLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.groupLocks[id] = lock
	}
	return lock
}

func (m *memStore) Get(_ context.Context, id int64) (groups.Group, error) {
	return m.GetGroup(context.Background(), id)
}

func (m *memStore) GetGroup(_ context.Context, id int64) (groups.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	group, ok := m.state.groups[id]
	if !ok {
		return groups.Group{}, shared.E(shared.KindNotFound, "group not found")
	}
	return group, nil
}

func (m *memStore) Occupancy(_ context.Context, groupID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.occupancy(groupID), nil
}

func (m *memStore) EnrollmentExists(_ context.Context, studentID, groupID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.enrollments[enrKey{studentID, groupID}], nil
}

func (m *memStore) GroupIDsOwnedByTeacher(_ context.Context, teacherID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id, group := range m.state.groups {
		if group.OwnerTeacherID == teacherID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) GroupIDsOfStudent(_ context.Context, studentID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for key := range m.state.enrollments {
		if key.studentID == studentID {
			ids = append(ids, key.groupID)
		}
	}
	return ids, nil
}

// memRepo implements Repository against memStore the way Postgres runs
// the real one at Read Committed: every statement reads the latest
// committed state, FOR UPDATE rows block other transactions until the
// holder finishes, and writes buffer until commit. A transaction that
// returns an error discards its buffer, mirroring rollback. Races that
// the row locks exist to close stay observable here, which a fake that
// serializes whole transactions would hide.
type memRepo struct {
	store *memStore
}

func (m *memRepo) WithTx(_ context.Context, fn func(tx transfer.TxRepository) error) error {
	tx := &memTx{store: m.store}
	defer tx.release()
	if err := fn(tx); err != nil {
		return err
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, write := range tx.writes {
		write(m.store.state)
	}
	return nil
}

func (m *memRepo) GetRequest(_ context.Context, id uuid.UUID) (transfer.Request, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	req, ok := m.store.state.requests[id]
	if !ok {
		return transfer.Request{}, shared.E(shared.KindNotFound, "transfer request not found")
	}
	return req, nil
}

func (m *memRepo) ListRequests(_ context.Context, filters transfer.ListFilters) ([]transfer.Request, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var out []transfer.Request
	for _, req := range m.store.state.requests {
		if filters.StudentID != 0 && req.StudentID != filters.StudentID {
			continue
		}
		if filters.Status != "" && req.Status != filters.Status {
			continue
		}
		if filters.GroupIDs != nil && !touchesAny(req, filters.GroupIDs) {
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

func touchesAny(req transfer.Request, groupIDs []int64) bool {
	for _, id := range groupIDs {
		if req.SourceGroupID == id || req.TargetGroupID == id {
			return true
		}
	}
	return false
}

func (m *memRepo) CreatePending(_ context.Context, req transfer.Request) (transfer.Request, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, existing := range m.store.state.requests {
		if existing.StudentID == req.StudentID && existing.Status == transfer.StatusPending {
			return transfer.Request{}, shared.E(shared.KindConflict, "student already has a pending transfer request")
		}
	}
	req.SourceApproval = transfer.ApprovalPending
	req.TargetApproval = transfer.ApprovalPending
	req.Status = transfer.StatusPending
	m.store.state.requests[req.ID] = req
	return req, nil
}

type memTx struct {
	store  *memStore
	held   map[*sync.Mutex]bool
	locks  []*sync.Mutex
	writes []func(*memState)
}

func (t *memTx) acquire(lock *sync.Mutex) {
	if t.held[lock] {
		return
	}
	lock.Lock()
	if t.held == nil {
		t.held = map[*sync.Mutex]bool{}
	}
	t.held[lock] = true
	t.locks = append(t.locks, lock)
}

func (t *memTx) release() {
	for i := len(t.locks) - 1; i >= 0; i-- {
		t.locks[i].Unlock()
	}
	t.locks = nil
	t.held = nil
}

func (t *memTx) getRequest(id uuid.UUID) (transfer.Request, bool) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	req, ok := t.store.state.requests[id]
	return req, ok
}

func (t *memTx) GetRequestForUpdate(_ context.Context, id uuid.UUID) (transfer.Request, error) {
	t.acquire(t.store.requestLock(id))
	req, ok := t.getRequest(id)
	if !ok {
		return transfer.Request{}, shared.E(shared.KindNotFound, "transfer request not found")
	}
	return req, nil
}

func (t *memTx) SetApprovals(_ context.Context, id uuid.UUID, source, target transfer.ApprovalState) error {
	t.acquire(t.store.requestLock(id))
	if _, ok := t.getRequest(id); !ok {
		return shared.E(shared.KindNotFound, "transfer request not found")
	}
	t.writes = append(t.writes, func(s *memState) {
		req := s.requests[id]
		req.SourceApproval = source
		req.TargetApproval = target
		s.requests[id] = req
	})
	return nil
}

func (t *memTx) SetStatus(_ context.Context, id uuid.UUID, status transfer.RequestStatus, resolvedBy *int64) error {
	t.acquire(t.store.requestLock(id))
	if _, ok := t.getRequest(id); !ok {
		return shared.E(shared.KindNotFound, "transfer request not found")
	}
	t.writes = append(t.writes, func(s *memState) {
		req := s.requests[id]
		req.Status = status
		req.ResolvedBy = resolvedBy
		s.requests[id] = req
	})
	return nil
}

func (t *memTx) MoveEnrollment(_ context.Context, studentID, fromGroupID, toGroupID int64) error {
	from := enrKey{studentID, fromGroupID}
	t.store.mu.Lock()
	enrolled := t.store.state.enrollments[from]
	t.store.mu.Unlock()
	if !enrolled {
		return shared.E(shared.KindValidation, "student is not enrolled in the source group")
	}

	// The group-row lock queues concurrent moves; the occupancy read after
	// it sees whatever the previous holder committed.
	t.acquire(t.store.groupLock(toGroupID))
	t.store.mu.Lock()
	target, ok := t.store.state.groups[toGroupID]
	occupancy := t.store.state.occupancy(toGroupID)
	t.store.mu.Unlock()
	if !ok || target.Status != groups.GroupActive || occupancy >= target.Capacity {
		return shared.E(shared.KindConflict, "target group is at capacity or not active")
	}

	t.writes = append(t.writes, func(s *memState) {
		delete(s.enrollments, from)
		s.enrollments[enrKey{studentID, toGroupID}] = true
	})
	return nil
}

type stubAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (a *stubAuditor) Record(_ context.Context, event audit.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
}

func (a *stubAuditor) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Action)
	}
	return out
}

const (
	teacherA  int64 = 101
	teacherB  int64 = 102
	student   int64 = 201
	adminUser int64 = 1
)

func newFixture(targetCapacity int) (*transfer.Service, *memStore, *stubAuditor) {
	store := &memStore{state: &memState{
		groups: map[int64]groups.Group{
			1: {ID: 1, Name: "Alpha", OwnerTeacherID: teacherA, Capacity: 30, Status: groups.GroupActive},
			2: {ID: 2, Name: "Beta", OwnerTeacherID: teacherB, Capacity: targetCapacity, Status: groups.GroupActive},
		},
		enrollments: map[enrKey]bool{
			{student, 1}: true,
		},
		requests: map[uuid.UUID]transfer.Request{},
	}}
	auditor := &stubAuditor{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := transfer.NewService(&memRepo{store: store}, store, ownership.NewResolver(store), auditor, nil, logger)
	return service, store, auditor
}

func submit(t *testing.T, service *transfer.Service) transfer.Request {
	t.Helper()
	req, err := service.Create(context.Background(), transfer.CreateRequestInput{
		StudentID:     student,
		SourceGroupID: 1,
		TargetGroupID: 2,
		Reason:        "schedule clash",
	})
	require.NoError(t, err)
	require.Equal(t, transfer.StatusPending, req.Status)
	require.Equal(t, transfer.ApprovalPending, req.SourceApproval)
	require.Equal(t, transfer.ApprovalPending, req.TargetApproval)
	return req
}

func TestDualApprovalMovesEnrollment(t *testing.T) {
	service, store, auditor := newFixture(5)
	req := submit(t, service)
	ctx := context.Background()

	mid, err := service.ReviewAsOwner(ctx, teacherA, req.ID, transfer.VerdictApprove)
	require.NoError(t, err)
	require.Equal(t, transfer.StatusPending, mid.Status)
	require.Equal(t, transfer.ApprovalApproved, mid.SourceApproval)
	require.Equal(t, transfer.ApprovalPending, mid.TargetApproval)

	done, err := service.ReviewAsOwner(ctx, teacherB, req.ID, transfer.VerdictApprove)
	require.NoError(t, err)
	require.Equal(t, transfer.StatusApproved, done.Status)

	inSource, err := store.EnrollmentExists(ctx, student, 1)
	require.NoError(t, err)
	require.False(t, inSource)
	inTarget, err := store.EnrollmentExists(ctx, student, 2)
	require.NoError(t, err)
	require.True(t, inTarget)

	require.Equal(t, []string{audit.ActionSubmit, audit.ActionApprove, audit.ActionApprove}, auditor.actions())
}

func TestSingleRejectionFinalises(t *testing.T) {
	service, store, auditor := newFixture(5)
	req := submit(t, service)
	ctx := context.Background()

	_, err := service.ReviewAsOwner(ctx, teacherA, req.ID, transfer.VerdictApprove)
	require.NoError(t, err)

	done, err := service.ReviewAsOwner(ctx, teacherB, req.ID, transfer.VerdictReject)
	require.NoError(t, err)
	require.Equal(t, transfer.StatusRejected, done.Status)
	require.Equal(t, transfer.ApprovalApproved, done.SourceApproval)
	require.Equal(t, transfer.ApprovalRejected, done.TargetApproval)

	inSource, err := store.EnrollmentExists(ctx, student, 1)
	require.NoError(t, err)
	require.True(t, inSource)

	// A rejected request may not be reviewed again.
	_, err = service.ReviewAsOwner(ctx, teacherA, req.ID, transfer.VerdictApprove)
	require.True(t, shared.IsKind(err, shared.KindConflict))

	require.Contains(t, auditor.actions(), audit.ActionReject)
}

func TestExecutionFailureMarksFailed(t *testing.T) {
	service, store, auditor := newFixture(1)
	req := submit(t, service)
	ctx := context.Background()

	_, err := service.ReviewAsOwner(ctx, teacherA, req.ID, transfer.VerdictApprove)
	require.NoError(t, err)

	// Another student takes the last seat before the second approval.
	store.mu.Lock()
	store.state.enrollments[enrKey{202, 2}] = true
	store.mu.Unlock()

	failed, err := service.ReviewAsOwner(ctx, teacherB, req.ID, transfer.VerdictApprove)
	require.True(t, shared.IsKind(err, shared.KindConflict))
	require.Equal(t, transfer.StatusFailed, failed.Status)

	// The student stays in the source group.
	inSource, err := store.EnrollmentExists(ctx, student, 1)
	require.NoError(t, err)
	require.True(t, inSource)

	// Both approvals survive the rollback.
	persisted, err := (&memRepo{store: store}).GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, transfer.StatusFailed, persisted.Status)
	require.Equal(t, transfer.ApprovalApproved, persisted.SourceApproval)
	require.Equal(t, transfer.ApprovalApproved, persisted.TargetApproval)

	// FAILED is terminal.
	_, err = service.ReviewAsAdmin(ctx, adminUser, req.ID, transfer.VerdictApprove)
	require.True(t, shared.IsKind(err, shared.KindConflict))

	require.Contains(t, auditor.actions(), audit.ActionFail)
}

func TestSameTeacherOwnsBothSides(t *testing.T) {
	service, store, _ := newFixture(5)
	store.mu.Lock()
	group := store.state.groups[2]
	group.OwnerTeacherID = teacherA
	store.state.groups[2] = group
	store.mu.Unlock()

	req := submit(t, service)

	done, err := service.ReviewAsOwner(context.Background(), teacherA, req.ID, transfer.VerdictApprove)
	require.NoError(t, err)
	require.Equal(t, transfer.StatusApproved, done.Status)
	require.Equal(t, transfer.ApprovalApproved, done.SourceApproval)
	require.Equal(t, transfer.ApprovalApproved, done.TargetApproval)
}

func TestReviewByNonOwnerDenied(t *testing.T) {
	service, _, _ := newFixture(5)
	req := submit(t, service)

	_, err := service.ReviewAsOwner(context.Background(), 999, req.ID, transfer.VerdictApprove)
	require.True(t, shared.IsKind(err, shared.KindOwnershipViolation))
}

func TestAdminOverrideApprove(t *testing.T) {
	service, store, auditor := newFixture(5)
	req := submit(t, service)
	ctx := context.Background()

	done, err := service.ReviewAsAdmin(ctx, adminUser, req.ID, transfer.VerdictApprove)
	require.NoError(t, err)
	require.Equal(t, transfer.StatusApproved, done.Status)
	require.NotNil(t, done.ResolvedBy)
	require.Equal(t, adminUser, *done.ResolvedBy)
	// Side approvals stay as they were when the override landed.
	require.Equal(t, transfer.ApprovalPending, done.SourceApproval)
	require.Equal(t, transfer.ApprovalPending, done.TargetApproval)

	inTarget, err := store.EnrollmentExists(ctx, student, 2)
	require.NoError(t, err)
	require.True(t, inTarget)

	require.Contains(t, auditor.actions(), audit.ActionOverride)
}

func TestAdminOverrideFailsAtCapacity(t *testing.T) {
	service, store, _ := newFixture(1)
	req := submit(t, service)
	ctx := context.Background()

	store.mu.Lock()
	store.state.enrollments[enrKey{202, 2}] = true
	store.mu.Unlock()

	failed, err := service.ReviewAsAdmin(ctx, adminUser, req.ID, transfer.VerdictApprove)
	require.True(t, shared.IsKind(err, shared.KindConflict))
	require.Equal(t, transfer.StatusFailed, failed.Status)

	inSource, err := store.EnrollmentExists(ctx, student, 1)
	require.NoError(t, err)
	require.True(t, inSource)
}

func TestCreateValidations(t *testing.T) {
	service, _, _ := newFixture(5)
	ctx := context.Background()

	_, err := service.Create(ctx, transfer.CreateRequestInput{StudentID: student, SourceGroupID: 1, TargetGroupID: 1})
	require.True(t, shared.IsKind(err, shared.KindValidation))

	_, err = service.Create(ctx, transfer.CreateRequestInput{StudentID: student, SourceGroupID: 1, TargetGroupID: 42})
	require.True(t, shared.IsKind(err, shared.KindValidation))

	// Not enrolled in the claimed source group.
	_, err = service.Create(ctx, transfer.CreateRequestInput{StudentID: 777, SourceGroupID: 1, TargetGroupID: 2})
	require.True(t, shared.IsKind(err, shared.KindValidation))
}

func TestCreateRejectsFullTarget(t *testing.T) {
	service, store, _ := newFixture(1)
	store.mu.Lock()
	store.state.enrollments[enrKey{202, 2}] = true
	store.mu.Unlock()

	_, err := service.Create(context.Background(), transfer.CreateRequestInput{
		StudentID: student, SourceGroupID: 1, TargetGroupID: 2,
	})
	require.True(t, shared.IsKind(err, shared.KindConflict))
}

func TestSecondPendingRequestConflicts(t *testing.T) {
	service, _, _ := newFixture(5)
	submit(t, service)

	_, err := service.Create(context.Background(), transfer.CreateRequestInput{
		StudentID: student, SourceGroupID: 1, TargetGroupID: 2,
	})
	require.True(t, shared.IsKind(err, shared.KindConflict))
}

func TestConcurrentSubmissionsSingleWinner(t *testing.T) {
	service, _, _ := newFixture(5)
	ctx := context.Background()

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.Create(ctx, transfer.CreateRequestInput{
				StudentID: student, SourceGroupID: 1, TargetGroupID: 2,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.True(t, shared.IsKind(err, shared.KindConflict))
		}
	}
	require.Equal(t, 1, succeeded)
}

func TestConcurrentApprovalsExecuteOnce(t *testing.T) {
	service, store, _ := newFixture(5)
	req := submit(t, service)
	ctx := context.Background()

	reviewers := []int64{teacherA, teacherB}
	errs := make([]error, len(reviewers))
	var wg sync.WaitGroup
	for i, reviewer := range reviewers {
		wg.Add(1)
		go func(i int, reviewer int64) {
			defer wg.Done()
			_, errs[i] = service.ReviewAsOwner(ctx, reviewer, req.ID, transfer.VerdictApprove)
		}(i, reviewer)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	persisted, err := (&memRepo{store: store}).GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, transfer.StatusApproved, persisted.Status)

	inSource, err := store.EnrollmentExists(ctx, student, 1)
	require.NoError(t, err)
	require.False(t, inSource)
	inTarget, err := store.EnrollmentExists(ctx, student, 2)
	require.NoError(t, err)
	require.True(t, inTarget)
}

func TestConcurrentExecutionsRespectCapacity(t *testing.T) {
	service, store, _ := newFixture(2)
	ctx := context.Background()

	// One teacher owns both sides so a single approval executes the move,
	// and one of the two target seats is already taken. Two students race
	// for the last seat.
	store.mu.Lock()
	group := store.state.groups[2]
	group.OwnerTeacherID = teacherA
	store.state.groups[2] = group
	store.state.enrollments[enrKey{202, 2}] = true
	store.state.enrollments[enrKey{203, 1}] = true
	store.mu.Unlock()

	first, err := service.Create(ctx, transfer.CreateRequestInput{
		StudentID: student, SourceGroupID: 1, TargetGroupID: 2,
	})
	require.NoError(t, err)
	second, err := service.Create(ctx, transfer.CreateRequestInput{
		StudentID: 203, SourceGroupID: 1, TargetGroupID: 2,
	})
	require.NoError(t, err)

	requests := []uuid.UUID{first.ID, second.ID}
	errs := make([]error, len(requests))
	var wg sync.WaitGroup
	for i, id := range requests {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = service.ReviewAsOwner(ctx, teacherA, id, transfer.VerdictApprove)
		}(i, id)
	}
	wg.Wait()

	var approved, failed int
	for i, id := range requests {
		persisted, err := (&memRepo{store: store}).GetRequest(ctx, id)
		require.NoError(t, err)
		switch persisted.Status {
		case transfer.StatusApproved:
			require.NoError(t, errs[i])
			approved++
		case transfer.StatusFailed:
			require.True(t, shared.IsKind(errs[i], shared.KindConflict))
			failed++
		default:
			t.Fatalf("request %s left in status %s", id, persisted.Status)
		}
	}
	require.Equal(t, 1, approved)
	require.Equal(t, 1, failed)

	occupancy, err := store.Occupancy(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 2, occupancy)
}

func TestDirectReassign(t *testing.T) {
	service, store, auditor := newFixture(5)
	ctx := context.Background()

	err := service.DirectReassign(ctx, transfer.ReassignInput{
		AdminID: adminUser, StudentID: student, FromGroupID: 1, ToGroupID: 2,
	})
	require.NoError(t, err)

	inTarget, err := store.EnrollmentExists(ctx, student, 2)
	require.NoError(t, err)
	require.True(t, inTarget)
	require.Contains(t, auditor.actions(), audit.ActionReassign)

	// Reassigning a student who is not in the claimed source group.
	err = service.DirectReassign(ctx, transfer.ReassignInput{
		AdminID: adminUser, StudentID: 777, FromGroupID: 1, ToGroupID: 2,
	})
	require.True(t, shared.IsKind(err, shared.KindValidation))
}

func TestVisibility(t *testing.T) {
	service, _, _ := newFixture(5)
	req := submit(t, service)
	ctx := context.Background()

	adminActor := shared.Actor{UserID: adminUser, Role: shared.RoleAdmin}
	ownerActor := shared.Actor{UserID: teacherA, Role: shared.RoleTeacher}
	strangerTeacher := shared.Actor{UserID: 999, Role: shared.RoleTeacher}
	subject := shared.Actor{UserID: student, Role: shared.RoleStudent}
	otherStudent := shared.Actor{UserID: 202, Role: shared.RoleStudent}

	for _, actor := range []shared.Actor{adminActor, ownerActor, subject} {
		got, err := service.Get(ctx, actor, req.ID)
		require.NoError(t, err)
		require.Equal(t, req.ID, got.ID)
	}
	for _, actor := range []shared.Actor{strangerTeacher, otherStudent} {
		_, err := service.Get(ctx, actor, req.ID)
		require.True(t, shared.IsKind(err, shared.KindNotFound))
	}

	listed, err := service.List(ctx, ownerActor, transfer.ListFilters{})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	listed, err = service.List(ctx, strangerTeacher, transfer.ListFilters{})
	require.NoError(t, err)
	require.Empty(t, listed)
}
