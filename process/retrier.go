package process

import (
	"log"
	"time"

	"github.com/robfig/cron"

	"zkmail/config"
	"zkmail/database"
	"zkmail/inputs"
)

/**
 * Re-runs messages whose key lookup failed temporarily, on a cron spec,
 * until the retry limit.
 */
func StartRetries(db database.Database, proc MsgProcessor) {
	cr := cron.New()
	e := cr.AddFunc(config.GetString(config.RetryCronSpec), func() {
		retryQueue(db, proc)
	})
	if e != nil {
		log.Fatal(e)
	}
	cr.Start()
}

func retryQueue(db database.Database, proc MsgProcessor) {
	msgs, e := db.GetQueue()
	if e != nil {
		log.Println(e)
		return
	}

	limit := config.GetInt(config.RetryCount)
	for _, q := range msgs {
		e := proc.Process(&ReceivedMsg{
			Content:   q.Content,
			Timestamp: time.Now(),
		})
		if e == nil || !inputs.IsTempFail(e) {
			// Done, or failed for good: either way the queue is finished
			// with it. The saver already recorded the outcome.
			if e != nil {
				log.Printf("dropping queued message %v: %v", q.Id, e)
			}
			if e := db.DeleteQueue(q.Id); e != nil {
				log.Println(e)
			}
			continue
		}

		if q.Retries+1 >= limit {
			log.Printf("dropping queued message %v after %v retries: %v", q.Id, q.Retries+1, e)
			if e := db.DeleteQueue(q.Id); e != nil {
				log.Println(e)
			}
			continue
		}
		if e := db.IncrementRetries(q.Id); e != nil {
			log.Println(e)
		}
	}
}
