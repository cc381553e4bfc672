// Package dnsfake runs a DNS server answering domain key queries with a
// fixed record. This lets local development and tests resolve signatures
// without exposing anything to the internet.
package dnsfake

import (
	"io/ioutil"
	"log"
	"strings"

	"github.com/miekg/dns"

	"zkmail/config"
)

func Start() {
	record, e := ioutil.ReadFile(config.GetString(config.FakeDnsRecordFile))
	if e != nil {
		log.Fatal(e)
	}
	Serve(
		config.GetString(config.FakeDnsAddress),
		config.GetString(config.FakeDnsDomain),
		strings.TrimSpace(string(record)),
	)
}

// Serve answers every _domainkey TXT query under domain with record.
func Serve(addr, domain, record string) {
	s := &dns.Server{
		Addr: addr,
		Net:  "udp",
	}
	dns.HandleFunc(domain+".", func(writer dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		for _, q := range r.Question {
			if q.Qtype != dns.TypeTXT || !strings.Contains(q.Name, "._domainkey.") {
				continue
			}
			m.Answer = append(m.Answer, &dns.TXT{
				Hdr: dns.RR_Header{Name: q.Name, Rrtype: q.Qtype, Class: dns.ClassINET, Ttl: 0},
				Txt: chunk(record, 255),
			})
		}

		e := writer.WriteMsg(m)
		if e != nil {
			log.Print(e)
		}
	})

	go func() { log.Fatal(s.ListenAndServe()) }()
	log.Printf("Started FAKE DNS SERVER at " + addr)
}

func chunk(buf string, lim int) []string {
	var chunk string
	chunks := make([]string, 0, len(buf)/lim+1)
	for len(buf) >= lim {
		chunk, buf = buf[:lim], buf[lim:]
		chunks = append(chunks, chunk)
	}
	if len(buf) > 0 {
		chunks = append(chunks, buf[:len(buf)])
	}
	return chunks
}
