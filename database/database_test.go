package database

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"

	"zkmail/config"
)

var date = time.Date(2018, 12, 1, 0, 0, 0, 0, time.UTC)

func withDb(t *testing.T, f func(t *testing.T, d Database)) {
	viper.Set(config.DbConnectionString, "file::memory:?mode=memory&cache=shared")
	viper.Set(config.DbDriverName, "sqlite3")
	database := NewDatabase()
	f(t, database)
}

func TestUserCrud(t *testing.T) {
	withDb(t, func(t *testing.T, d Database) {
		email := "hello@blah.com"
		// CREATE
		usr, e := d.InsertUser(email, []byte("testing"), false)
		if e != nil {
			t.Error(e)
		}

		// READ
		usr2, pw, e := d.GetUserAndPassword(email)
		if e != nil {
			t.Error(e)
		}
		if diff := cmp.Diff(usr, usr2); diff != "" {
			t.Errorf("User different after GetUserAndPassword %s", diff)
		}
		if string(pw) != "testing" {
			t.Errorf("Wrong password bytes after GetUserAndPassword")
		}

		usrs, e := d.GetUsers()
		if e != nil {
			t.Error(e)
		}
		if diff := cmp.Diff(usrs, []*Usr{usr}); diff != "" {
			t.Errorf("User different after GetUsers %s", diff)
		}

		// UPDATE
		e = d.SetUserPassword(email, []byte("changed"))
		if e != nil {
			t.Error(e)
		}
		_, pw, _ = d.GetUserAndPassword(email)
		if string(pw) != "changed" {
			t.Errorf("Wrong password bytes after SetUserPassword")
		}

		e = d.SetUserPassword("nobody@blah.com", []byte("changed"))
		if e == nil {
			t.Error("Expected error changing password of non-existent user")
		}

		// DELETE
		e = d.DeleteUser(email)
		if e != nil {
			t.Error(e)
		}
		_, _, e = d.GetUserAndPassword(email)
		if e != NotFound {
			t.Error("Expected NotFound retrieving after deletion")
		}
	})
}

func TestExtractionCrud(t *testing.T) {
	withDb(t, func(t *testing.T, d Database) {
		// CREATE
		x, e := d.InsertExtraction(&Extraction{
			Domain:    "example.com",
			Selector:  "brisbane",
			Algorithm: "rsa-sha256",
			MsgFrom:   "joe@football.example.com",
			Subject:   "Is dinner ready?",
			Verdict:   "pass",
			Inputs:    []byte(`{"bodyHash":"abc"}`),
			Timestamp: date,
		})
		if e != nil {
			t.Error(e)
		}
		if x.Id == 0 {
			t.Error("x.Id should have been set")
		}

		// READ
		x2, e := d.GetExtraction(x.Id)
		if e != nil {
			t.Error(e)
		}
		if diff := cmp.Diff(x, x2); diff != "" {
			t.Errorf("Extraction different after GetExtraction %s", diff)
		}

		xs, e := d.GetExtractions(1)
		if e != nil {
			t.Error(e)
		}
		if diff := cmp.Diff(xs, []*Extraction{x}); diff != "" {
			t.Errorf("Extraction different after GetExtractions %s", diff)
		}

		_, e = d.GetExtraction(-1)
		if e != NotFound {
			t.Error("Expected NotFound when looking for non-existent extraction")
		}
	})
}

func TestDomainKeyCrud(t *testing.T) {
	withDb(t, func(t *testing.T, d Database) {
		_, e := d.GetDomainKey("example.com", "brisbane")
		if e != NotFound {
			t.Error("Expected NotFound before inserting domain key")
		}

		// CREATE
		e = d.PutDomainKey("example.com", "brisbane", "v=DKIM1; p=AAAA", date)
		if e != nil {
			t.Error(e)
		}

		// READ
		k, e := d.GetDomainKey("example.com", "brisbane")
		if e != nil {
			t.Error(e)
		}
		if k.Record != "v=DKIM1; p=AAAA" || !k.Fetched.Equal(date) {
			t.Errorf("Wrong domain key after retrieval: %+v", k)
		}

		// UPDATE (upsert on the same domain and selector)
		later := date.Add(time.Hour)
		e = d.PutDomainKey("example.com", "brisbane", "v=DKIM1; p=BBBB", later)
		if e != nil {
			t.Error(e)
		}
		k2, e := d.GetDomainKey("example.com", "brisbane")
		if e != nil {
			t.Error(e)
		}
		if k2.Id != k.Id {
			t.Error("Expected the upsert to keep the same row")
		}
		if k2.Record != "v=DKIM1; p=BBBB" || !k2.Fetched.Equal(later) {
			t.Errorf("Wrong domain key after upsert: %+v", k2)
		}
	})
}

func TestQueueCrud(t *testing.T) {
	withDb(t, func(t *testing.T, d Database) {
		msgs, e := d.GetQueue()
		if e != nil {
			t.Error(e)
		}
		if len(msgs) > 0 {
			t.Error("Expected empty queue")
		}

		// CREATE
		msg, e := d.InsertQueue([]byte("hello"), "lookup timed out", date)
		if e != nil {
			t.Error(e)
		}

		// READ
		msgs, e = d.GetQueue()
		if e != nil {
			t.Error(e)
		}
		if diff := cmp.Diff(msgs, []*QueuedMsg{msg}); diff != "" {
			t.Errorf("Difference in queued messages after retrieval %s", diff)
		}

		// UPDATE
		e = d.IncrementRetries(msg.Id)
		if e != nil {
			t.Error(e)
		}

		msgs, e = d.GetQueue()
		if e != nil {
			t.Error(e)
		}
		msg.Retries = 1
		if diff := cmp.Diff(msgs, []*QueuedMsg{msg}); diff != "" {
			t.Errorf("Difference in queued messages after updating retries %s", diff)
		}

		e = d.DeleteQueue(0)
		if e == nil {
			t.Error("Expected error deleting non-existent queue")
		}

		e = d.DeleteQueue(msg.Id)
		if e != nil {
			t.Error(e)
		}

		msgs, e = d.GetQueue()
		if e != nil {
			t.Error(e)
		}
		if len(msgs) > 0 {
			t.Error("Expected empty queue after deletion")
		}
	})
}
