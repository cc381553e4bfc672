package database

import (
	"database/sql"
	"errors"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"zkmail/config"
)

type HasId struct {
	Id int64
}

type Usr struct {
	HasId
	Email string
	Admin bool
}

// An Extraction is one stored verification outcome. Inputs holds the
// serialized email-inputs document when the signature was provable.
type Extraction struct {
	HasId
	Domain    string
	Selector  string
	Algorithm string
	MsgFrom   string
	Subject   string
	Verdict   string
	Inputs    []byte
	Timestamp time.Time
}

// A DomainKey is a cached domain key TXT record.
type DomainKey struct {
	HasId
	Domain   string
	Selector string
	Record   string
	Fetched  time.Time
}

// A QueuedMsg is a message whose key lookup hit a temporary failure and is
// waiting for a retry.
type QueuedMsg struct {
	HasId
	Content   []byte
	Reason    string
	Timestamp time.Time
	Retries   int
}

// Interface
type Database interface {
	InsertUser(email string, passwordBytes []byte, admin bool) (*Usr, error)
	GetUserAndPassword(email string) (*Usr, []byte, error)
	GetUsers() ([]*Usr, error)
	DeleteUser(email string) error
	SetUserPassword(email string, passwordBytes []byte) error

	InsertExtraction(x *Extraction) (*Extraction, error)
	GetExtractions(limit int) ([]*Extraction, error)
	GetExtraction(id int64) (*Extraction, error)

	GetDomainKey(domain, selector string) (*DomainKey, error)
	PutDomainKey(domain, selector, record string, fetched time.Time) error

	InsertQueue(content []byte, reason string, timestamp time.Time) (*QueuedMsg, error)
	GetQueue() ([]*QueuedMsg, error)
	IncrementRetries(queueId int64) error
	DeleteQueue(queueId int64) error
}

var NotFound = errors.New("not found")

type sqlDb struct {
	db  *sql.DB
	mut *sync.RWMutex
}

func (db *sqlDb) InsertUser(email string, passwordBytes []byte, admin bool) (*Usr, error) {
	db.mut.Lock()
	defer db.mut.Unlock()
	usr := &Usr{
		Email: email,
		Admin: admin,
	}
	res, e := db.db.Exec(`
		INSERT INTO users (email, passwordBytes, admin)
		VALUES (?, ?, ?)
	`, email, passwordBytes, admin)
	return usr, checkErrorsSetId(&usr.HasId, res, e)
}

func (db *sqlDb) GetUserAndPassword(email string) (*Usr, []byte, error) {
	db.mut.RLock()
	defer db.mut.RUnlock()
	row := db.db.QueryRow(`
		SELECT id, email, passwordBytes, admin
		FROM users
		WHERE email = ?
	`, email)
	u := &Usr{}
	var pw []byte
	e := row.Scan(&u.Id, &u.Email, &pw, &u.Admin)
	if e == sql.ErrNoRows {
		return nil, nil, NotFound
	}
	if e != nil {
		return nil, nil, e
	}
	return u, pw, nil
}

func (db *sqlDb) GetUsers() ([]*Usr, error) {
	db.mut.RLock()
	defer db.mut.RUnlock()
	rows, e := db.db.Query(`
		SELECT id, email, admin
		FROM users
	`)
	if e != nil {
		return nil, e
	}
	users := make([]*Usr, 0)
	for rows.Next() {
		u := &Usr{}
		e := rows.Scan(&u.Id, &u.Email, &u.Admin)
		if e != nil {
			return nil, e
		}
		users = append(users, u)
	}
	return users, nil
}

func (db *sqlDb) DeleteUser(email string) error {
	db.mut.Lock()
	defer db.mut.Unlock()
	return checkOneRowAffected(db.db.Exec(`
		DELETE FROM users
		WHERE email = ?
	`, email))
}

func (db *sqlDb) SetUserPassword(email string, passwordBytes []byte) error {
	db.mut.Lock()
	defer db.mut.Unlock()
	return checkOneRowAffected(db.db.Exec(`
		UPDATE users
		SET passwordBytes = ?
		WHERE email = ?
	`, passwordBytes, email))
}

func (db *sqlDb) InsertExtraction(x *Extraction) (*Extraction, error) {
	db.mut.Lock()
	defer db.mut.Unlock()
	r, e := db.db.Exec(`
		INSERT INTO extractions (domain, selector, algorithm, msgfrom, subject, verdict, inputs, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, x.Domain, x.Selector, x.Algorithm, x.MsgFrom, x.Subject, x.Verdict, x.Inputs, x.Timestamp)
	return x, checkErrorsSetId(&x.HasId, r, e)
}

func (db *sqlDb) GetExtractions(limit int) ([]*Extraction, error) {
	db.mut.RLock()
	defer db.mut.RUnlock()
	rows, e := db.db.Query(`
		SELECT id, domain, selector, algorithm, msgfrom, subject, verdict, inputs, ts
		FROM extractions
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if e != nil {
		return nil, e
	}
	xs := make([]*Extraction, 0)
	for rows.Next() {
		x := &Extraction{}
		e := rows.Scan(&x.Id, &x.Domain, &x.Selector, &x.Algorithm, &x.MsgFrom, &x.Subject, &x.Verdict, &x.Inputs, &x.Timestamp)
		if e != nil {
			return nil, e
		}
		xs = append(xs, x)
	}
	return xs, nil
}

func (db *sqlDb) GetExtraction(id int64) (*Extraction, error) {
	db.mut.RLock()
	defer db.mut.RUnlock()
	x := &Extraction{}
	e := db.db.QueryRow(`
		SELECT id, domain, selector, algorithm, msgfrom, subject, verdict, inputs, ts
		FROM extractions
		WHERE id = ?
	`, id).Scan(&x.Id, &x.Domain, &x.Selector, &x.Algorithm, &x.MsgFrom, &x.Subject, &x.Verdict, &x.Inputs, &x.Timestamp)
	if e == sql.ErrNoRows {
		return nil, NotFound
	}
	if e != nil {
		return nil, e
	}
	return x, nil
}

func (db *sqlDb) GetDomainKey(domain, selector string) (*DomainKey, error) {
	db.mut.RLock()
	defer db.mut.RUnlock()
	k := &DomainKey{}
	e := db.db.QueryRow(`
		SELECT id, domain, selector, record, fetched
		FROM domainkeys
		WHERE domain = ?
		AND selector = ?
	`, domain, selector).Scan(&k.Id, &k.Domain, &k.Selector, &k.Record, &k.Fetched)
	if e == sql.ErrNoRows {
		return nil, NotFound
	}
	if e != nil {
		return nil, e
	}
	return k, nil
}

func (db *sqlDb) PutDomainKey(domain, selector, record string, fetched time.Time) error {
	db.mut.Lock()
	defer db.mut.Unlock()
	_, e := db.db.Exec(`
		INSERT INTO domainkeys (domain, selector, record, fetched)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (domain, selector) DO UPDATE SET record = excluded.record, fetched = excluded.fetched
	`, domain, selector, record, fetched)
	return e
}

func (db *sqlDb) InsertQueue(content []byte, reason string, timestamp time.Time) (*QueuedMsg, error) {
	db.mut.Lock()
	defer db.mut.Unlock()
	msg := &QueuedMsg{
		Content:   content,
		Reason:    reason,
		Timestamp: timestamp,
	}
	r, e := db.db.Exec(`
		INSERT INTO queue (content, reason, ts)
		VALUES (?, ?, ?)
	`, content, reason, timestamp)
	return msg, checkErrorsSetId(&msg.HasId, r, e)
}

func (db *sqlDb) GetQueue() ([]*QueuedMsg, error) {
	db.mut.RLock()
	defer db.mut.RUnlock()
	rows, e := db.db.Query(`
		SELECT id, content, reason, ts, retries
		FROM queue
	`)
	if e != nil {
		return nil, e
	}
	var queue []*QueuedMsg
	for rows.Next() {
		msg := &QueuedMsg{}
		e := rows.Scan(&msg.Id, &msg.Content, &msg.Reason, &msg.Timestamp, &msg.Retries)
		if e != nil {
			return nil, e
		}
		queue = append(queue, msg)
	}
	return queue, nil
}

func (db *sqlDb) IncrementRetries(queueId int64) error {
	db.mut.Lock()
	defer db.mut.Unlock()
	return checkOneRowAffected(db.db.Exec(`
		UPDATE queue
	  	SET retries = retries + 1
		WHERE id = ?
		`, queueId))
}

func (db *sqlDb) DeleteQueue(queueId int64) error {
	db.mut.Lock()
	defer db.mut.Unlock()
	return checkOneRowAffected(db.db.Exec(`
		DELETE FROM queue
		WHERE id = ?
		`, queueId))
}

func checkErrorsSetId(o *HasId, r sql.Result, e error) error {
	if e != nil {
		return e
	}
	i, e := r.LastInsertId()
	if e != nil {
		return e
	}
	o.Id = i
	return nil
}

func checkOneRowAffected(r sql.Result, e error) error {
	if e != nil {
		return e
	}
	i, e := r.RowsAffected()
	if e != nil {
		return e
	}
	if i != 1 {
		return NotFound
	}
	return nil
}

func NewDatabase() Database {
	db, err := sql.Open(config.GetString(config.DbDriverName), config.GetString(config.DbConnectionString))
	if err != nil {
		log.Fatal(err)
	}
	initSql := `
		CREATE TABLE IF NOT EXISTS users (
			id integer primary key,
			email text,
			passwordBytes blob,
			admin bool
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users (
			email
		);
		CREATE TABLE IF NOT EXISTS extractions (
			id integer primary key,
			domain text,
			selector text,
			algorithm text,
			msgfrom text,
			subject text,
			verdict text,
			inputs blob,
			ts timestamp
		);
		CREATE TABLE IF NOT EXISTS domainkeys (
			id integer primary key,
			domain text,
			selector text,
			record text,
			fetched timestamp
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_domainkeys ON domainkeys (
			domain, selector
		);
		CREATE TABLE IF NOT EXISTS queue (
		  	id integer primary key,
		  	content blob,
		  	reason text,
		  	ts timestamp,
		  	retries integer default 0
		);
	`
	_, err = db.Exec(initSql)
	if err != nil {
		log.Fatal(err)
	}
	return &sqlDb{
		db:  db,
		mut: new(sync.RWMutex),
	}
}
