package process

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/pkg/errors"

	"zkmail/database"
	"zkmail/inputs"
)

/**
 * Persists one extraction row per signature. Messages whose key lookups all
 * failed temporarily go to the retry queue instead.
 */
type saver struct {
	db database.Database
	// queueRetries is off when the saver runs inside the retry loop itself,
	// so a still-failing message is not queued twice.
	queueRetries bool
}

func (s *saver) Process(wrap *ReceivedMsg) error {
	if len(wrap.Results) == 0 {
		return errors.New("no DKIM signature found")
	}

	if allTempFailed(wrap.Results) {
		if s.queueRetries {
			if _, e := s.db.InsertQueue(wrap.Content, wrap.Results[0].Err.Error(), time.Now()); e != nil {
				return e
			}
		}
		return wrap.Results[0].Err
	}

	from, subject := messageMeta(wrap.Content)

	errs := make([]string, 0)
	for _, res := range wrap.Results {
		x := &database.Extraction{
			Domain:    res.Domain,
			Selector:  res.Selector,
			Algorithm: res.Algorithm,
			MsgFrom:   from,
			Subject:   subject,
			Verdict:   Verdict(res),
			Timestamp: time.Now(),
		}
		if res.Inputs != nil {
			b, e := json.Marshal(res.Inputs)
			if e != nil {
				errs = append(errs, e.Error())
				continue
			}
			x.Inputs = b
		}
		if _, e := s.db.InsertExtraction(x); e != nil {
			errs = append(errs, e.Error())
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, ","))
	}
	return nil
}

// Verdict renders a result the way it is stored and reported.
func Verdict(res *inputs.Result) string {
	switch {
	case res.Err == nil && res.Inputs != nil:
		return "pass"
	case res.Err == nil:
		return "pass (not provable)"
	case inputs.IsTempFail(res.Err):
		return "temperror: " + res.Err.Error()
	case inputs.IsFail(res.Err):
		return "fail: " + res.Err.Error()
	default:
		return "permerror: " + res.Err.Error()
	}
}

func allTempFailed(results []*inputs.Result) bool {
	for _, res := range results {
		if !inputs.IsTempFail(res.Err) {
			return false
		}
	}
	return true
}

func messageMeta(content []byte) (from, subject string) {
	m, e := message.Read(bytes.NewReader(content))
	if e != nil || m == nil {
		return "", ""
	}
	return m.Header.Get("From"), m.Header.Get("Subject")
}

func NewSaver(db database.Database) MsgProcessor {
	return &saver{db: db, queueRetries: true}
}

// NewRetrySaver is the saver used by the retry loop.
func NewRetrySaver(db database.Database) MsgProcessor {
	return &saver{db: db, queueRetries: false}
}
