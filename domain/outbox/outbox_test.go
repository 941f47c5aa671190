package outbox_test

import (
	"strings"
	"testing"
	"time"

	"github.com/eurekapx/orderdesk/domain/outbox"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewTask(t *testing.T) {
	task, err := outbox.NewTask("t1", "R1", outbox.KindInvoiceEmail, outbox.EmailPayload{Installment: 0}, 0, now)
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	if task.Status != outbox.StatusPending {
		t.Errorf("Status = %s, want pending", task.Status)
	}
	if task.Attempt != 1 {
		t.Errorf("Attempt = %d, want 1", task.Attempt)
	}
	if task.MaxAttempts != outbox.DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", task.MaxAttempts, outbox.DefaultMaxAttempts)
	}

	var p outbox.EmailPayload
	if err := task.DecodePayload(&p); err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if !task.IsDue(now) {
		t.Error("new task should be due")
	}
}

func TestReminderPayload_RoundTrip(t *testing.T) {
	fireAt := now.Add(12 * 24 * time.Hour)
	task, err := outbox.NewTask("t1", "R1", outbox.KindRegisterReminder, outbox.ReminderPayload{Installment: 1, FireAt: fireAt}, 3, now)
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}

	var p outbox.ReminderPayload
	if err := task.DecodePayload(&p); err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if p.Installment != 1 || !p.FireAt.Equal(fireAt) {
		t.Errorf("payload = %+v", p)
	}
}

func TestMarkFailed_RetriesThenFails(t *testing.T) {
	task, _ := outbox.NewTask("t1", "R1", outbox.KindAdminEmail, struct{}{}, 2, now)

	failed := outbox.MarkFailed(task, "smtp down", now)
	if failed.Status != outbox.StatusRetrying {
		t.Fatalf("Status = %s, want retrying", failed.Status)
	}
	if failed.NextAttempt == nil || !failed.NextAttempt.Equal(now.Add(time.Minute)) {
		t.Errorf("NextAttempt = %v, want +1m", failed.NextAttempt)
	}
	if failed.IsDue(now) {
		t.Error("retrying task should not be due before NextAttempt")
	}
	if !failed.IsDue(now.Add(time.Minute)) {
		t.Error("retrying task should be due at NextAttempt")
	}

	retry := outbox.IncrementAttempt(failed, now.Add(time.Minute))
	if retry.Attempt != 2 || retry.Status != outbox.StatusPending {
		t.Fatalf("after increment: attempt=%d status=%s", retry.Attempt, retry.Status)
	}

	final := outbox.MarkFailed(retry, "smtp down", now.Add(2*time.Minute))
	if final.Status != outbox.StatusFailed {
		t.Errorf("Status = %s, want failed", final.Status)
	}
	if final.IsDue(now.Add(time.Hour)) {
		t.Error("failed task should never be due")
	}
}

func TestMarkDone(t *testing.T) {
	task, _ := outbox.NewTask("t1", "R1", outbox.KindAdminEmail, struct{}{}, 2, now)
	task = outbox.MarkFailed(task, "boom", now)
	done := outbox.MarkDone(task, now.Add(time.Minute))
	if done.Status != outbox.StatusDone || done.Error != "" || done.NextAttempt != nil {
		t.Errorf("unexpected done task: %+v", done)
	}
}

func TestCalculateNextAttempt(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Minute},
		{1, time.Minute},
		{2, 5 * time.Minute},
		{3, 30 * time.Minute},
		{10, 30 * time.Minute},
	}
	for _, tt := range tests {
		if got := outbox.CalculateNextAttempt(tt.attempt, now); !got.Equal(now.Add(tt.want)) {
			t.Errorf("CalculateNextAttempt(%d) = %v, want +%v", tt.attempt, got, tt.want)
		}
	}
}

func TestMarkFailed_TruncatesError(t *testing.T) {
	task, _ := outbox.NewTask("t1", "R1", outbox.KindAdminEmail, struct{}{}, 1, now)
	failed := outbox.MarkFailed(task, strings.Repeat("x", 2000), now)
	if len(failed.Error) != 1003 {
		t.Errorf("len(Error) = %d, want 1003", len(failed.Error))
	}
}

func TestReminderLifecycle(t *testing.T) {
	fireAt := now.Add(time.Hour)
	r := outbox.NewReminder("r1", "R1", 1, fireAt, now)
	if r.IsDue(now) {
		t.Error("reminder should not be due before FireAt")
	}
	if !r.IsDue(fireAt) {
		t.Error("reminder should be due at FireAt")
	}

	moved := outbox.Reschedule(r, fireAt.Add(time.Hour), now)
	if !moved.FireAt.Equal(fireAt.Add(time.Hour)) {
		t.Error("Reschedule did not move FireAt")
	}

	sent := outbox.MarkSent(moved, fireAt)
	if sent.Status != outbox.ReminderSent || sent.SentAt == nil {
		t.Errorf("unexpected sent reminder: %+v", sent)
	}
	if got := outbox.Reschedule(sent, fireAt.Add(48*time.Hour), now); got.Status != outbox.ReminderSent {
		t.Error("a sent reminder must not be rescheduled")
	}

	if outbox.MarkSkipped(r, now).Status != outbox.ReminderSkipped {
		t.Error("MarkSkipped did not set status")
	}
	if f := outbox.MarkReminderFailed(r, "boom", now); f.Status != outbox.ReminderFailed || f.Error != "boom" {
		t.Errorf("unexpected failed reminder: %+v", f)
	}
}
