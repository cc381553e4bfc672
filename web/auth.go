package web

import (
	"crypto/rand"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"zkmail/config"
	"zkmail/database"
)

type AuthenticatedHandler = func(w http.ResponseWriter, r *http.Request, u *database.Usr)

type UserClaims struct {
	jwt.StandardClaims
	*database.Usr
}

func (c UserClaims) Valid() error {
	return c.StandardClaims.Valid()
}

func loadJwtSecret() []byte {
	jwtSecret, e := ioutil.ReadFile(config.GetString(config.JwtTokenSecretFile))
	if os.IsNotExist(e) {
		jwtSecret = generateAndSaveJwtSecret()
	} else if e != nil {
		log.Fatal(e)
	}
	return jwtSecret
}

func generateAndSaveJwtSecret() []byte {
	jwtSecret := make([]byte, 64)
	_, e := rand.Read(jwtSecret)
	if e != nil {
		log.Fatal(e)
	}
	e = ioutil.WriteFile(config.GetString(config.JwtTokenSecretFile), jwtSecret, 0700)
	if e != nil {
		log.Fatal(e)
	}
	return jwtSecret
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if e := decodeJson(r, &req); e != nil {
		writeError(w, http.StatusBadRequest, e)
		return
	}

	usr, err := a.lg.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, errors.New("invalid credentials"))
		return
	}

	claims := UserClaims{
		jwt.StandardClaims{
			ExpiresAt: time.Now().Add(time.Hour * 240).Unix(),
		},
		usr,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(a.jwtSecret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     config.GetString(config.JwtCookieName),
		Value:    tokenString,
		HttpOnly: true,
		Secure:   config.GetBool(config.HttpUseTls),
		Expires:  time.Now().Add(time.Hour * 240),
	})
	writeJson(w, http.StatusOK, map[string]string{"token": tokenString})
}

func (a *api) checkLogin(next AuthenticatedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			cookie, e := r.Cookie(config.GetString(config.JwtCookieName))
			if e == http.ErrNoCookie {
				writeError(w, http.StatusUnauthorized, errors.New("authentication required"))
				return
			}
			tokenString = cookie.Value
		}

		var claims UserClaims
		_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return a.jwtSecret, nil
		})
		if err != nil {
			writeError(w, http.StatusUnauthorized, errors.New("invalid token"))
			return
		}
		if err := claims.Valid(); err != nil {
			writeError(w, http.StatusUnauthorized, errors.New("invalid token"))
			return
		}
		next(w, r, claims.Usr)
	})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}
