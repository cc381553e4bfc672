package web

import (
	"bytes"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"zkmail/config"
	"zkmail/database"
	"zkmail/inputs"
	"zkmail/process"
)

type resultBody struct {
	Id        int64               `json:"id"`
	Domain    string              `json:"domain"`
	Selector  string              `json:"selector"`
	Algorithm string              `json:"algorithm"`
	From      string              `json:"from,omitempty"`
	Subject   string              `json:"subject,omitempty"`
	Verdict   string              `json:"verdict"`
	Inputs    *inputs.EmailInputs `json:"inputs,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

func (a *api) healthz(w http.ResponseWriter, r *http.Request) {
	// The store is the only hard dependency worth probing
	if _, e := a.db.GetUsers(); e != nil {
		writeError(w, http.StatusInternalServerError, e)
		return
	}
	writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

// extract takes a raw message body, runs the extraction chain synchronously
// and returns the first provable inputs document. All verdicts are stored.
func (a *api) extract(w http.ResponseWriter, r *http.Request, u *database.Usr) {
	content, e := ioutil.ReadAll(io.LimitReader(r.Body, int64(config.GetInt(config.MaxMessageBytes))))
	if e != nil {
		writeError(w, http.StatusBadRequest, e)
		return
	}

	opts := &inputs.Options{
		Keys:     a.keys,
		Domain:   r.URL.Query().Get("domain"),
		Selector: r.URL.Query().Get("selector"),
	}
	results, e := inputs.Extract(bytes.NewReader(content), opts)
	if e != nil {
		writeError(w, http.StatusUnprocessableEntity, e)
		return
	}

	saver := process.NewSaver(a.db)
	wrap := &process.ReceivedMsg{Content: content, Timestamp: time.Now(), Results: results}
	if e := saver.Process(wrap); e != nil && len(results) == 0 {
		writeError(w, http.StatusUnprocessableEntity, e)
		return
	}

	doc, e := inputs.Pick(results)
	if e != nil {
		writeError(w, http.StatusUnprocessableEntity, e)
		return
	}
	writeJson(w, http.StatusOK, doc)
}

func (a *api) results(w http.ResponseWriter, r *http.Request, u *database.Usr) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, e := strconv.Atoi(s); e == nil && n > 0 {
			limit = n
		}
	}
	xs, e := a.db.GetExtractions(limit)
	if e != nil {
		writeError(w, http.StatusInternalServerError, e)
		return
	}

	body := make([]*resultBody, 0, len(xs))
	for _, x := range xs {
		body = append(body, toResultBody(x))
	}
	writeJson(w, http.StatusOK, body)
}

func (a *api) result(w http.ResponseWriter, r *http.Request, u *database.Usr) {
	id, e := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if e != nil {
		writeError(w, http.StatusBadRequest, e)
		return
	}
	x, e := a.db.GetExtraction(id)
	if e == database.NotFound {
		writeError(w, http.StatusNotFound, e)
		return
	}
	if e != nil {
		writeError(w, http.StatusInternalServerError, e)
		return
	}
	writeJson(w, http.StatusOK, toResultBody(x))
}

func toResultBody(x *database.Extraction) *resultBody {
	body := &resultBody{
		Id:        x.Id,
		Domain:    x.Domain,
		Selector:  x.Selector,
		Algorithm: x.Algorithm,
		From:      x.MsgFrom,
		Subject:   x.Subject,
		Verdict:   x.Verdict,
		Timestamp: x.Timestamp,
	}
	if len(x.Inputs) > 0 {
		doc := &inputs.EmailInputs{}
		if e := json.Unmarshal(x.Inputs, doc); e == nil {
			body.Inputs = doc
		}
	}
	return body
}

func decodeJson(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
