package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"zkmail/config"
	"zkmail/database"
	"zkmail/inputs"
	"zkmail/keys"
	"zkmail/logic"
)

const dnsPublicKey = "v=DKIM1; p=MIGfMA0GCSqGSIb3DQEBAQUAA4GNADCBiQ" +
	"KBgQDwIRP/UC3SBsEmGqZ9ZJW3/DkMoGeLnQg1fWn7/zYt" +
	"IxN2SnFCjxOCKG9v3b4jYfcTNh5ijSsq631uBItLa7od+v" +
	"/RtdC2UzJ1lWT947qR+Rcac2gbto/NMqJ0fzfVjH4OuKhi" +
	"tdY9tf6mcwGjaNBcWToIMmPSPDdQPNUYckcQ2QIDAQAB"

const verifiedMailString = `DKIM-Signature: v=1; a=rsa-sha256; s=brisbane; d=example.com;
      c=simple/simple; q=dns/txt; i=joe@football.example.com;
      h=Received : From : To : Subject : Date : Message-ID;
      bh=2jUSOH9NhtVGCQWNr9BrIAPreKQjO6Sn7XIkfJVOzv8=;
      b=AuUoFEfDxTDkHlLXSZEpZj79LICEps6eda7W3deTVFOk4yAUoqOB
      4nujc7YopdG5dWLSdNg6xNAZpOPr+kHxt1IrE+NahM6L/LbvaHut
      KVdkLLkpVaVVQPzeRDI009SO2Il5Lu7rDNH6mZckBdrIx0orEtZV
      4bmp/YzhwvcubU4=;
Received: from client1.football.example.com  [192.0.2.1]
      by submitserver.example.com with SUBMISSION;
      Fri, 11 Jul 2003 21:01:54 -0700 (PDT)
From: Joe SixPack <joe@football.example.com>
To: Suzie Q <suzie@shopping.example.net>
Subject: Is dinner ready?
Date: Fri, 11 Jul 2003 21:00:37 -0700 (PDT)
Message-ID: <20030712040037.46341.5F8J@football.example.com>

Hi.

We lost the game. Are you hungry yet?

Joe.
`

type testKeys struct{}

func (testKeys) Fetch(domain, selector string) (*keys.Record, error) {
	if domain == "example.com" && selector == "brisbane" {
		return keys.ParseRecord(dnsPublicKey)
	}
	return nil, fmt.Errorf("unknown test DNS record %v._domainkey.%v", selector, domain)
}

func withApi(t *testing.T, f func(t *testing.T, a *api, lg logic.Login)) {
	viper.Set(config.DbConnectionString, "file::memory:?mode=memory&cache=shared")
	viper.Set(config.DbDriverName, "sqlite3")
	viper.Set(config.MaxMessageBytes, 1024*1024)
	viper.Set(config.JwtCookieName, "zkmail-token")

	db := database.NewDatabase()
	lg := logic.NewLogin(db)
	a := &api{
		lg:        lg,
		db:        db,
		keys:      testKeys{},
		jwtSecret: []byte("test-secret"),
	}
	f(t, a, lg)
}

func loginToken(t *testing.T, a *api, username, password string) string {
	body := fmt.Sprintf(`{"username":%q,"password":%q}`, username, password)
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	a.router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected login to succeed, got %v: %v", rec.Code, rec.Body)
	}
	var resp map[string]string
	if e := json.NewDecoder(rec.Body).Decode(&resp); e != nil {
		t.Fatal(e)
	}
	return resp["token"]
}

func TestApi_extract(t *testing.T) {
	withApi(t, func(t *testing.T, a *api, lg logic.Login) {
		if _, e := lg.NewUser("admin@zkmail.test", "hunter2", true); e != nil {
			t.Fatal(e)
		}
		token := loginToken(t, a, "admin@zkmail.test", "hunter2")

		mail := strings.Replace(verifiedMailString, "\n", "\r\n", -1)
		req := httptest.NewRequest(http.MethodPost, "/api/extract", strings.NewReader(mail))
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		a.router().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected extraction to succeed, got %v: %v", rec.Code, rec.Body)
		}

		var doc inputs.EmailInputs
		if e := json.NewDecoder(rec.Body).Decode(&doc); e != nil {
			t.Fatal(e)
		}
		if doc.BodyHash != "2jUSOH9NhtVGCQWNr9BrIAPreKQjO6Sn7XIkfJVOzv8=" {
			t.Errorf("Expected the known body hash, got %v", doc.BodyHash)
		}

		// The verdict is stored and served back
		req = httptest.NewRequest(http.MethodGet, "/api/results?limit=1", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec = httptest.NewRecorder()
		a.router().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected results to succeed, got %v: %v", rec.Code, rec.Body)
		}
		var results []*resultBody
		if e := json.NewDecoder(rec.Body).Decode(&results); e != nil {
			t.Fatal(e)
		}
		if len(results) != 1 {
			t.Fatalf("Expected one result, got %v", len(results))
		}
		if results[0].Verdict != "pass" {
			t.Errorf("Expected verdict pass, got %v", results[0].Verdict)
		}
		if results[0].Inputs == nil {
			t.Error("Expected the stored inputs document")
		}

		req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/results/%d", results[0].Id), nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec = httptest.NewRecorder()
		a.router().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected result lookup to succeed, got %v: %v", rec.Code, rec.Body)
		}

		req = httptest.NewRequest(http.MethodGet, "/api/results/999999", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec = httptest.NewRecorder()
		a.router().ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404 for an unknown result, got %v", rec.Code)
		}
	})
}

func TestApi_unauthorized(t *testing.T) {
	withApi(t, func(t *testing.T, a *api, lg logic.Login) {
		req := httptest.NewRequest(http.MethodPost, "/api/extract", strings.NewReader("blah"))
		rec := httptest.NewRecorder()
		a.router().ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401 without a token, got %v", rec.Code)
		}

		body := `{"username":"nobody@zkmail.test","password":"wrong"}`
		req = httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(body))
		rec = httptest.NewRecorder()
		a.router().ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401 for bad credentials, got %v", rec.Code)
		}
	})
}

func TestApi_healthz(t *testing.T) {
	withApi(t, func(t *testing.T, a *api, lg logic.Login) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		a.router().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200 from healthz, got %v", rec.Code)
		}
	})
}
