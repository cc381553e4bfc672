package keys

import (
	"log"
	"time"

	"zkmail/database"
)

// CachedSource keeps fetched records in the store so that repeated
// extractions for the same signing domain skip the network, and so that a
// record observed once stays available across restarts.
type CachedSource struct {
	next Source
	db   database.Database
	ttl  time.Duration
}

func NewCachedSource(next Source, db database.Database, ttl time.Duration) *CachedSource {
	return &CachedSource{
		next: next,
		db:   db,
		ttl:  ttl,
	}
}

func (s *CachedSource) Fetch(domain, selector string) (*Record, error) {
	cached, e := s.db.GetDomainKey(domain, selector)
	if e == nil && time.Since(cached.Fetched) < s.ttl {
		return ParseRecord(cached.Record)
	}
	if e != nil && e != database.NotFound {
		log.Printf("domain key cache read failed: %v", e)
	}

	rec, err := s.next.Fetch(domain, selector)
	if err != nil {
		// Serve a stale cached record rather than fail on a temporary
		// lookup problem.
		if cached != nil {
			if t, ok := err.(interface{ Temporary() bool }); ok && t.Temporary() {
				return ParseRecord(cached.Record)
			}
		}
		return nil, err
	}

	// The verbatim record text is what gets cached, so restrictions the
	// record carries survive a round trip through the store.
	if e := s.db.PutDomainKey(domain, selector, rec.Raw, time.Now()); e != nil {
		log.Printf("domain key cache write failed: %v", e)
	}
	return rec, nil
}
