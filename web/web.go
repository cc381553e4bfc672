package web

import (
	"crypto/tls"
	"encoding/json"
	"log"
	"net"
	"net/http"

	"github.com/gorilla/mux"

	"zkmail/config"
	"zkmail/database"
	"zkmail/inputs"
	"zkmail/logic"
)

type api struct {
	lg        logic.Login
	db        database.Database
	keys      inputs.KeySource
	jwtSecret []byte
}

// StartApi serves the JSON API: login, extraction, stored results.
func StartApi(lg logic.Login, db database.Database, ks inputs.KeySource, tlsC *tls.Config) {
	a := &api{
		lg:        lg,
		db:        db,
		keys:      ks,
		jwtSecret: loadJwtSecret(),
	}

	server := &http.Server{Addr: config.GetString(config.HttpAddress), Handler: a.router()}

	go func() {
		l, e := net.Listen("tcp", server.Addr)
		if e != nil {
			log.Fatal(e)
		}
		if config.GetBool(config.HttpUseTls) {
			l = tls.NewListener(l, tlsC)
		}
		log.Println("Started API server at ", server.Addr)
		if err := server.Serve(l); err != nil {
			log.Fatal(err)
		}
	}()
}

func (a *api) router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", a.healthz).Methods(http.MethodGet)
	router.HandleFunc("/api/login", a.login).Methods(http.MethodPost)
	router.Handle("/api/extract", a.checkLogin(a.extract)).Methods(http.MethodPost)
	router.Handle("/api/results", a.checkLogin(a.results)).Methods(http.MethodGet)
	router.Handle("/api/results/{id:[0-9]+}", a.checkLogin(a.result)).Methods(http.MethodGet)
	return router
}

func writeJson(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if e := json.NewEncoder(w).Encode(v); e != nil {
		log.Print(e)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, e error) {
	writeJson(w, status, errorBody{Error: e.Error()})
}
