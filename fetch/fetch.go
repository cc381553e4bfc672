// Package fetch pulls messages out of an IMAP mailbox and runs them through
// the extraction chain, so proofs can be made from mail that already landed
// in an inbox.
package fetch

import (
	"io/ioutil"
	"log"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/pkg/errors"

	"zkmail/process"
)

type Options struct {
	Address  string
	UseTls   bool
	Username string
	Password string
	Mailbox  string
	// Limit caps the pull to the most recent N messages. 0 means all.
	Limit uint32
}

func Fetch(opts Options, proc process.MsgProcessor) error {
	c, err := dial(opts)
	if err != nil {
		return errors.Wrap(err, "connecting to IMAP server")
	}
	defer c.Logout()

	if err := c.Login(opts.Username, opts.Password); err != nil {
		return errors.Wrap(err, "IMAP login")
	}

	mbox, err := c.Select(opts.Mailbox, true)
	if err != nil {
		return errors.Wrap(err, "selecting mailbox")
	}
	if mbox.Messages == 0 {
		log.Printf("Mailbox %v is empty", opts.Mailbox)
		return nil
	}

	from := uint32(1)
	if opts.Limit > 0 && mbox.Messages > opts.Limit {
		from = mbox.Messages - opts.Limit + 1
	}
	seqset := new(imap.SeqSet)
	seqset.AddRange(from, mbox.Messages)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchEnvelope}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	processed, failed := 0, 0
	for msg := range messages {
		r := msg.GetBody(section)
		if r == nil {
			failed++
			continue
		}
		content, e := ioutil.ReadAll(r)
		if e != nil {
			failed++
			continue
		}

		wrap := &process.ReceivedMsg{
			Content:   content,
			Timestamp: time.Now(),
		}
		if msg.Envelope != nil {
			wrap.From = formatAddresses(msg.Envelope.From)
		}
		if e := proc.Process(wrap); e != nil {
			log.Printf("message %v: %v", msg.SeqNum, e)
			failed++
			continue
		}
		processed++
	}

	if err := <-done; err != nil {
		return errors.Wrap(err, "fetching messages")
	}

	log.Printf("Fetched %v messages, %v processed, %v failed", mbox.Messages-from+1, processed, failed)
	return nil
}

func dial(opts Options) (*client.Client, error) {
	if opts.UseTls {
		return client.DialTLS(opts.Address, nil)
	}
	return client.Dial(opts.Address)
}

func formatAddresses(addrs []*imap.Address) string {
	if len(addrs) == 0 {
		return ""
	}
	a := addrs[0]
	if a.MailboxName == "" || a.HostName == "" {
		return ""
	}
	return a.MailboxName + "@" + a.HostName
}
