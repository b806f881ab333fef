package reminders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
)

// memStore keeps tasks in memory and resolves them under a mutex, the way the
// row lock serialises concurrent runs in Postgres.
type memStore struct {
	mu         sync.Mutex
	tasks      map[uuid.UUID]*DueTask
	order      []uuid.UUID
	outcomes   map[uuid.UUID]Outcome
	failFor    uuid.UUID
	askedLimit int
	// afterList runs once ListDue has taken its snapshot.
	afterList func(s *memStore)
}

func newMemStore(tasks ...DueTask) *memStore {
	s := &memStore{tasks: map[uuid.UUID]*DueTask{}, outcomes: map[uuid.UUID]Outcome{}}
	for i := range tasks {
		t := tasks[i]
		s.tasks[t.ID] = &t
		s.order = append(s.order, t.ID)
	}
	return s
}

func (s *memStore) ListDue(ctx context.Context, asOf time.Time, limit int) ([]DueTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.askedLimit = limit
	var out []DueTask
	for _, id := range s.order {
		t := s.tasks[id]
		if t.Status == StatusPending && !t.SendAt.After(asOf) && len(out) < limit {
			out = append(out, *t)
		}
	}
	if s.afterList != nil {
		s.afterList(s)
	}
	return out, nil
}

func (s *memStore) Resolve(ctx context.Context, id uuid.UUID, decide func(context.Context, string) Outcome) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == s.failFor {
		return false, errors.New("connection reset")
	}
	t := s.tasks[id]
	if t.Status != StatusPending {
		return false, nil
	}
	out := decide(ctx, t.BookingStatus)
	t.Status = out.Status
	s.outcomes[id] = out
	return true, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []Delivery
	sent  bool
	err   error
}

func (n *fakeNotifier) Notify(ctx context.Context, kind Kind, d Delivery) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, d)
	return n.sent, n.err
}

var dispatchNow = time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)

func dueTask(email, bookingStatus string) DueTask {
	return DueTask{
		Task: Task{
			ID:        uuid.New(),
			BookingID: uuid.New(),
			Kind:      KindReminder,
			SendAt:    dispatchNow.Add(-time.Minute),
			Status:    StatusPending,
		},
		BookingStatus:  bookingStatus,
		Date:           "2025-03-12",
		StartTime:      "10:00",
		EndTime:        "11:00",
		RecipientName:  "Ana",
		RecipientEmail: email,
		ServiceTitle:   "Consultation",
	}
}

func TestRunDueOutcomes(t *testing.T) {
	sent := dueTask("ana@example.com", "confirmed")
	noEmail := dueTask("", "pending")
	cancelled := dueTask("ana@example.com", "cancelled")
	store := newMemStore(sent, noEmail, cancelled)
	notifier := &fakeNotifier{sent: true}
	m := metrics.NewReminderMetrics(prometheus.NewRegistry())

	n, err := NewWorker(store, notifier, m, nil).RunDue(context.Background(), dispatchNow, 50)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, StatusSent, store.outcomes[sent.ID].Status)
	require.NotNil(t, store.outcomes[sent.ID].SentAt)
	assert.Equal(t, dispatchNow, *store.outcomes[sent.ID].SentAt)

	assert.Equal(t, StatusFailed, store.outcomes[noEmail.ID].Status)
	assert.Equal(t, reasonMissingEmail, store.outcomes[noEmail.ID].ErrorMessage)

	assert.Equal(t, StatusSkipped, store.outcomes[cancelled.ID].Status)
	assert.Equal(t, reasonBookingCancelled, store.outcomes[cancelled.ID].ErrorMessage)

	require.Len(t, notifier.calls, 1, "notifier is only called for the deliverable task")
	assert.Equal(t, sent.ID, notifier.calls[0].TaskID)
}

func TestRunDueSkipsBookingCancelledAfterSelection(t *testing.T) {
	task := dueTask("ana@example.com", "confirmed")
	store := newMemStore(task)
	store.afterList = func(s *memStore) {
		s.tasks[task.ID].BookingStatus = "cancelled"
	}
	notifier := &fakeNotifier{sent: true}

	n, err := NewWorker(store, notifier, nil, nil).RunDue(context.Background(), dispatchNow, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, notifier.calls, "a booking cancelled after selection must not be notified")
	assert.Equal(t, StatusSkipped, store.outcomes[task.ID].Status)
	assert.Equal(t, reasonBookingCancelled, store.outcomes[task.ID].ErrorMessage)
}

func TestRunDueNotifierResults(t *testing.T) {
	disabled := dueTask("a@example.com", "confirmed")
	store := newMemStore(disabled)
	_, err := NewWorker(store, &fakeNotifier{sent: false}, nil, nil).RunDue(context.Background(), dispatchNow, 10)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, store.outcomes[disabled.ID].Status)

	broken := dueTask("b@example.com", "confirmed")
	store = newMemStore(broken)
	_, err = NewWorker(store, &fakeNotifier{err: errors.New("smtp 550")}, nil, nil).RunDue(context.Background(), dispatchNow, 10)
	require.NoError(t, err)
	out := store.outcomes[broken.ID]
	assert.Equal(t, StatusFailed, out.Status)
	assert.Contains(t, out.ErrorMessage, "smtp 550")
	assert.Contains(t, out.ErrorMessage, broken.ID.String())
	assert.Nil(t, out.SentAt)
}

func TestRunDueIsIdempotent(t *testing.T) {
	store := newMemStore(dueTask("a@example.com", "confirmed"), dueTask("b@example.com", "pending"))
	notifier := &fakeNotifier{sent: true}
	w := NewWorker(store, notifier, nil, nil)

	first, err := w.RunDue(context.Background(), dispatchNow, 50)
	require.NoError(t, err)
	second, err := w.RunDue(context.Background(), dispatchNow, 50)
	require.NoError(t, err)

	assert.Equal(t, 2, first)
	assert.Equal(t, 0, second)
	assert.Len(t, notifier.calls, 2)
}

func TestRunDueConcurrentRunsSendOnce(t *testing.T) {
	var tasks []DueTask
	for i := 0; i < 20; i++ {
		tasks = append(tasks, dueTask("x@example.com", "confirmed"))
	}
	store := newMemStore(tasks...)
	notifier := &fakeNotifier{sent: true}
	w := NewWorker(store, notifier, nil, nil)

	var wg sync.WaitGroup
	totals := make([]int, 4)
	for i := range totals {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			totals[i], _ = w.RunDue(context.Background(), dispatchNow, 50)
		}(i)
	}
	wg.Wait()

	sum := 0
	for _, n := range totals {
		sum += n
	}
	assert.Equal(t, 20, sum)
	assert.Len(t, notifier.calls, 20)
}

func TestRunDueContinuesAfterTaskError(t *testing.T) {
	bad := dueTask("a@example.com", "confirmed")
	good := dueTask("b@example.com", "confirmed")
	store := newMemStore(bad, good)
	store.failFor = bad.ID

	n, err := NewWorker(store, &fakeNotifier{sent: true}, nil, nil).RunDue(context.Background(), dispatchNow, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, StatusSent, store.outcomes[good.ID].Status)
}

func TestRunDueClampsLimitAndSkipsFuture(t *testing.T) {
	future := dueTask("a@example.com", "confirmed")
	future.SendAt = dispatchNow.Add(time.Hour)
	store := newMemStore(future)

	n, err := NewWorker(store, &fakeNotifier{sent: true}, nil, nil).RunDue(context.Background(), dispatchNow, 500)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, MaxBatchLimit, store.askedLimit)

	_, err = NewWorker(store, &fakeNotifier{sent: true}, nil, nil).RunDue(context.Background(), dispatchNow, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, store.askedLimit)
}
