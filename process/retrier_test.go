package process

import (
	"testing"
	"time"

	"github.com/robfig/cron"
	"github.com/spf13/viper"

	"zkmail/config"
	"zkmail/database"
)

type stubProc struct {
	err  error
	seen int
}

func (s *stubProc) Process(w *ReceivedMsg) error {
	s.seen++
	return s.err
}

func TestRetryQueue(t *testing.T) {
	withDb(t, func(t *testing.T, d database.Database) {
		viper.Set(config.RetryCount, 3)

		q, e := d.InsertQueue(testMailContent, "lookup timed out", date)
		if e != nil {
			t.Fatal(e)
		}

		// Still failing temporarily: stays queued with one more retry
		proc := &stubProc{err: tempErr()}
		retryQueue(d, proc)
		if proc.seen != 1 {
			t.Fatalf("Expected one processed message, got %v", proc.seen)
		}
		queued := findQueued(t, d, q.Id)
		if queued == nil {
			t.Fatal("Expected the message to stay queued")
		}
		if queued.Retries != 1 {
			t.Errorf("Expected one retry, got %v", queued.Retries)
		}

		// Second temporary failure: q.Retries+1 reaches the limit minus one
		retryQueue(d, proc)
		queued = findQueued(t, d, q.Id)
		if queued == nil || queued.Retries != 2 {
			t.Fatalf("Expected two retries, got %+v", queued)
		}

		// Third failure hits the limit and drops the message
		retryQueue(d, proc)
		if findQueued(t, d, q.Id) != nil {
			t.Error("Expected the message to be dropped at the retry limit")
		}
	})
}

func TestRetryQueue_success(t *testing.T) {
	withDb(t, func(t *testing.T, d database.Database) {
		viper.Set(config.RetryCount, 3)

		q, e := d.InsertQueue(testMailContent, "lookup timed out", date)
		if e != nil {
			t.Fatal(e)
		}

		retryQueue(d, &stubProc{})
		if findQueued(t, d, q.Id) != nil {
			t.Error("Expected the message to leave the queue after success")
		}
	})
}

func TestRetrySchedule(t *testing.T) {
	config.SetConfigDefaults()

	sched, e := cron.Parse(config.GetString(config.RetryCronSpec))
	if e != nil {
		t.Fatal(e)
	}

	next := sched.Next(time.Date(2018, 12, 1, 10, 30, 15, 0, time.UTC))
	if next.Second() != 0 {
		t.Errorf("Expected retries to fire on the minute, got %v", next)
	}
	if gap := sched.Next(next).Sub(next); gap != time.Minute {
		t.Errorf("Expected one retry pass per minute, got %v", gap)
	}
}

func findQueued(t *testing.T, d database.Database, id int64) *database.QueuedMsg {
	queue, e := d.GetQueue()
	if e != nil {
		t.Fatal(e)
	}
	for _, q := range queue {
		if q.Id == id {
			return q
		}
	}
	return nil
}
