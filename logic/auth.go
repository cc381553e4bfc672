package logic

import (
	"golang.org/x/crypto/bcrypt"

	"zkmail/database"
)

/**
 * A wrapper around the store for correctly handling login
 */
type Login interface {
	Login(email, password string) (*database.Usr, error)
	NewUser(email, password string, admin bool) (*database.Usr, error)
	ChangePassword(email, password string) error
}

type dbLogin struct {
	db database.Database
}

func NewLogin(db database.Database) Login {
	return &dbLogin{db: db}
}

func (l dbLogin) Login(email, password string) (*database.Usr, error) {
	user, passwordBytes, e := l.db.GetUserAndPassword(email)
	if e != nil {
		return nil, e
	}
	e = bcrypt.CompareHashAndPassword(passwordBytes, []byte(password))
	if e != nil {
		return nil, e
	}
	return user, nil
}

func (l dbLogin) NewUser(email, password string, admin bool) (*database.Usr, error) {
	passwordBytes, e := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if e != nil {
		return nil, e
	}
	usr, e := l.db.InsertUser(email, passwordBytes, admin)
	if e != nil {
		return nil, e
	}
	return usr, nil
}

func (l dbLogin) ChangePassword(email, password string) error {
	passwordBytes, e := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if e != nil {
		return e
	}
	return l.db.SetUserPassword(email, passwordBytes)
}
