package smtp

import (
	"bytes"
	"io"
	"io/ioutil"
	"log"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-smtp"

	"zkmail/config"
	"zkmail/process"
)

/**
 * Accepts messages over SMTP and feeds them to the extraction chain. Lets
 * anything that can speak SMTP (a mail server alias, a forwarding rule, a
 * script) submit emails for proving.
 */
func StartIngest(proc process.MsgProcessor) {
	b := &ingestBackend{
		proc: proc,
	}
	s := smtp.NewServer(b)
	s.Addr = config.GetString(config.SmtpAddress)
	s.Domain = config.GetString(config.ServerName)
	idle := time.Duration(config.GetInt(config.MaxIdleSeconds)) * time.Second
	s.ReadTimeout = idle
	s.WriteTimeout = idle
	s.MaxMessageBytes = config.GetInt(config.MaxMessageBytes)
	s.MaxRecipients = config.GetInt(config.MaxRecipients)
	s.AuthDisabled = true

	go func() {
		log.Println("Starting SMTP ingestion at ", s.Addr)
		if err := s.ListenAndServe(); err != nil {
			log.Fatal(err)
		}
	}()
}

type ingestBackend struct {
	proc process.MsgProcessor
}

func (b *ingestBackend) Login(state *smtp.ConnectionState, username, password string) (smtp.Session, error) {
	return nil, smtp.ErrAuthUnsupported
}

func (b *ingestBackend) AnonymousLogin(state *smtp.ConnectionState) (smtp.Session, error) {
	return &ingestSession{proc: b.proc}, nil
}

type ingestSession struct {
	proc process.MsgProcessor
	from string
	to   []string
}

func (s *ingestSession) Mail(from string) error {
	s.from = from
	return nil
}

func (s *ingestSession) Rcpt(to string) error {
	s.to = append(s.to, to)
	return nil
}

func (s *ingestSession) Data(r io.Reader) error {
	content, e := ioutil.ReadAll(r)
	// Check we can read all the content
	if e != nil {
		return e
	}

	// Check we can parse it as a spec compliant message
	if _, e := message.Read(bytes.NewBuffer(content)); e != nil {
		return e
	}

	// Pass it on
	return s.proc.Process(&process.ReceivedMsg{
		From:      s.from,
		To:        s.to,
		Content:   content,
		Timestamp: time.Now(),
	})
}

func (s *ingestSession) Reset() {
	s.from = ""
	s.to = nil
}

func (*ingestSession) Logout() error {
	return nil
}
