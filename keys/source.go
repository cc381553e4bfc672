package keys

import (
	"strings"

	"github.com/miekg/dns"
)

// A Source resolves domain key records.
type Source interface {
	Fetch(domain, selector string) (*Record, error)
}

type lookupError struct {
	msg  string
	temp bool
}

func (e *lookupError) Error() string   { return "keys: " + e.msg }
func (e *lookupError) Temporary() bool { return e.temp }

// DNSSource fetches domain keys over DNS TXT against a fixed server.
type DNSSource struct {
	Server string
	client *dns.Client
}

func NewDNSSource(server string) *DNSSource {
	return &DNSSource{
		Server: server,
		client: new(dns.Client),
	}
}

func (s *DNSSource) Fetch(domain, selector string) (*Record, error) {
	txt, err := s.lookupTXT(selector + "._domainkey." + domain)
	if err != nil {
		return nil, err
	}
	return ParseRecord(txt)
}

func (s *DNSSource) lookupTXT(name string) (string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeTXT)

	in, _, err := s.client.Exchange(m, s.Server)
	if err != nil {
		// Network trouble, worth retrying
		return "", &lookupError{msg: "key unavailable: " + err.Error(), temp: true}
	}
	if in.Rcode == dns.RcodeServerFailure {
		return "", &lookupError{msg: "key unavailable: SERVFAIL", temp: true}
	}
	if in.Rcode != dns.RcodeSuccess {
		return "", &lookupError{msg: "no key for signature: " + dns.RcodeToString[in.Rcode]}
	}

	// Long keys are split over multiple strings
	var sb strings.Builder
	for _, rr := range in.Answer {
		if t, ok := rr.(*dns.TXT); ok {
			sb.WriteString(strings.Join(t.Txt, ""))
		}
	}
	if sb.Len() == 0 {
		return "", &lookupError{msg: "no key for signature: empty TXT answer"}
	}
	return sb.String(), nil
}
