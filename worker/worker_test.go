package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/ZeapZeaper/Zeaper-api-sub000/models"
	"github.com/ZeapZeaper/Zeaper-api-sub000/queue"
)

type fakeSource struct {
	mu     sync.Mutex
	jobs   []*queue.Job
	acked  []string
	failed []string
}

func (f *fakeSource) Dequeue(ctx context.Context) (*queue.Job, string, error) {
	f.mu.Lock()
	if len(f.jobs) > 0 {
		job := f.jobs[0]
		f.jobs = f.jobs[1:]
		f.mu.Unlock()
		raw, _ := json.Marshal(job)
		return job, string(raw), nil
	}
	f.mu.Unlock()

	// Behave like a blocking pop hitting its timeout.
	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return nil, "", errors.New("pop timeout")
	}
}

func (f *fakeSource) Ack(_ context.Context, raw string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, raw)
	return nil
}

func (f *fakeSource) Fail(_ context.Context, job *queue.Job, raw string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, job.ID)
	return nil
}

func mustTask(t *testing.T, taskType models.TaskType, payload any) models.WorkerTask {
	t.Helper()
	task, err := models.NewWorkerTask(taskType, payload)
	if err != nil {
		t.Fatal(err)
	}
	return task
}

// A failing task must not abort the remaining tasks, and the job is
// still acknowledged after every task was attempted.
func TestProcess_TaskFailureIsIsolated(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var executed []models.TaskType

	record := func(taskType models.TaskType, fail bool) Handler {
		return func(ctx context.Context, _ json.RawMessage) error {
			mu.Lock()
			executed = append(executed, taskType)
			mu.Unlock()
			if fail {
				return errors.New("smtp down")
			}
			return nil
		}
	}

	handlers := map[models.TaskType]Handler{
		models.TaskNotifyShop:  record(models.TaskNotifyShop, false),
		models.TaskSendReceipt: record(models.TaskSendReceipt, true), // email fails
		models.TaskNotifyBuyer: record(models.TaskNotifyBuyer, false),
	}

	source := &fakeSource{}
	w := New(zaptest.NewLogger(t), source, handlers, 1)

	job := &queue.Job{ID: "ZP-1", Tasks: []models.WorkerTask{
		mustTask(t, models.TaskNotifyShop, models.ShopTaskPayload{ShopID: 1}),
		mustTask(t, models.TaskSendReceipt, models.ReceiptTaskPayload{OrderID: "ZPO-1"}),
		mustTask(t, models.TaskNotifyBuyer, models.BuyerTaskPayload{UserID: "u1"}),
	}}
	raw, _ := json.Marshal(job)

	w.process(context.Background(), job, string(raw))

	want := []models.TaskType{models.TaskNotifyShop, models.TaskSendReceipt, models.TaskNotifyBuyer}
	if len(executed) != len(want) {
		t.Fatalf("executed %v, want %v", executed, want)
	}
	for i := range want {
		if executed[i] != want[i] {
			t.Errorf("task %d = %s, want %s (sequential order)", i, executed[i], want[i])
		}
	}
	if len(source.acked) != 1 {
		t.Errorf("acked = %d, want 1 (job completes despite task failure)", len(source.acked))
	}
	if len(source.failed) != 0 {
		t.Errorf("job failed = %v, want none", source.failed)
	}
}

func TestProcess_UnknownTaskTypeDoesNotFailJob(t *testing.T) {
	t.Parallel()

	source := &fakeSource{}
	w := New(zaptest.NewLogger(t), source, map[models.TaskType]Handler{}, 1)

	job := &queue.Job{ID: "ZP-2", Tasks: []models.WorkerTask{
		mustTask(t, models.TaskType("no_such"), struct{}{}),
	}}
	raw, _ := json.Marshal(job)
	w.process(context.Background(), job, string(raw))

	if len(source.acked) != 1 {
		t.Errorf("acked = %d, want 1", len(source.acked))
	}
}

func TestRun_DrainsAndStops(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	count := 0
	handlers := map[models.TaskType]Handler{
		models.TaskNotifyBuyer: func(ctx context.Context, _ json.RawMessage) error {
			mu.Lock()
			count++
			mu.Unlock()
			return nil
		},
	}

	source := &fakeSource{jobs: []*queue.Job{
		{ID: "ZP-1", Tasks: []models.WorkerTask{mustTask(t, models.TaskNotifyBuyer, models.BuyerTaskPayload{})}},
		{ID: "ZP-2", Tasks: []models.WorkerTask{mustTask(t, models.TaskNotifyBuyer, models.BuyerTaskPayload{})}},
	}}

	w := New(zaptest.NewLogger(t), source, handlers, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := w.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run returned %v, want deadline exceeded", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if count != 2 {
		t.Errorf("tasks executed = %d, want 2", count)
	}
	if len(source.acked) != 2 {
		t.Errorf("acked = %d, want 2", len(source.acked))
	}
}

func TestHandlers_DecodeAndDispatch(t *testing.T) {
	t.Parallel()

	n := &recordingNotifier{}
	m := &recordingMailer{}
	b := &recordingBuyers{}
	handlers := Handlers(n, m, b)

	run := func(taskType models.TaskType, payload any) {
		t.Helper()
		task := mustTask(t, taskType, payload)
		if err := handlers[taskType](context.Background(), task.Payload); err != nil {
			t.Fatalf("%s: %v", taskType, err)
		}
	}

	run(models.TaskNotifyShop, models.ShopTaskPayload{ShopID: 5, OrderID: "ZPO-1"})
	run(models.TaskNotifyBuyer, models.BuyerTaskPayload{UserID: "u1"})
	run(models.TaskSendReceipt, models.ReceiptTaskPayload{OrderID: "ZPO-1", Email: "a@b.c"})
	run(models.TaskNotifyAdmins, models.AdminTaskPayload{OrderID: "ZPO-1"})
	run(models.TaskCreditPoints, models.PointsTaskPayload{UserID: "u1", Points: 17})
	run(models.TaskMarkHasOrdered, models.BuyerTaskPayload{UserID: "u1"})
	run(models.TaskVendorPayout, models.ShopTaskPayload{ShopID: 5, Revenue: 8000})

	if n.shops != 1 || n.buyers != 1 || n.admins != 1 || n.payouts != 1 {
		t.Errorf("notifier calls: %+v", n)
	}
	if m.receipts != 1 {
		t.Errorf("mailer calls: %d", m.receipts)
	}
	if b.points != 17 || !b.hasOrdered {
		t.Errorf("buyer updates: %+v", b)
	}

	// Corrupt payloads surface as task errors.
	if err := handlers[models.TaskCreditPoints](context.Background(), json.RawMessage(`"nope"`)); err == nil {
		t.Error("corrupt payload accepted")
	}
}

type recordingNotifier struct {
	shops, buyers, admins, payouts int
}

func (r *recordingNotifier) NotifyShop(context.Context, models.ShopTaskPayload) error {
	r.shops++
	return nil
}
func (r *recordingNotifier) NotifyBuyer(context.Context, models.BuyerTaskPayload) error {
	r.buyers++
	return nil
}
func (r *recordingNotifier) NotifyAdmins(context.Context, models.AdminTaskPayload) error {
	r.admins++
	return nil
}
func (r *recordingNotifier) NotifyPayout(context.Context, models.ShopTaskPayload) error {
	r.payouts++
	return nil
}

type recordingMailer struct{ receipts int }

func (r *recordingMailer) SendReceipt(context.Context, models.ReceiptTaskPayload) error {
	r.receipts++
	return nil
}

type recordingBuyers struct {
	points     int
	hasOrdered bool
}

func (r *recordingBuyers) CreditPoints(_ context.Context, _ string, points int) error {
	r.points += points
	return nil
}
func (r *recordingBuyers) MarkHasOrdered(context.Context, string) error {
	r.hasOrdered = true
	return nil
}
