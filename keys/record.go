// Package keys resolves and generates DKIM domain keys. A domain key is the
// TXT record published at <selector>._domainkey.<domain>, RFC 6376 section
// 3.6.1.
package keys

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// A Record is a parsed domain key.
type Record struct {
	// Raw is the record text as published, kept verbatim for caching.
	Raw string
	// KeyAlgo is the k= tag, "rsa" or "ed25519".
	KeyAlgo string
	// Key is the parsed public key.
	Key crypto.PublicKey
	// KeyData is the raw key material from the p= tag: DER for RSA, the raw
	// 32 bytes for ed25519.
	KeyData []byte
	// HashAlgos is the h= tag, nil when every algorithm is acceptable.
	HashAlgos []string
	// Services is the s= tag, nil when the record carries a wildcard.
	Services []string
	// Flags is the t= tag.
	Flags []string
}

// ParseRecord parses the joined TXT strings of a domain key record.
func ParseRecord(txt string) (*Record, error) {
	params, err := parseTagValues(txt)
	if err != nil {
		return nil, errors.Wrap(err, "key syntax error")
	}

	if v, ok := params["v"]; ok && v != "DKIM1" {
		return nil, errors.New("incompatible public key version")
	}

	p, ok := params["p"]
	if !ok {
		return nil, errors.New("key syntax error: missing public key data")
	}
	if p == "" {
		return nil, errors.New("key revoked")
	}
	b, err := base64.StdEncoding.DecodeString(stripWhitespace(p))
	if err != nil {
		return nil, errors.Wrap(err, "key syntax error")
	}

	rec := &Record{Raw: txt}
	switch params["k"] {
	case "rsa", "":
		pub, err := x509.ParsePKIXPublicKey(b)
		if err != nil {
			return nil, errors.Wrap(err, "key syntax error")
		}
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("key syntax error: not an RSA public key")
		}
		// RFC 8301 section 3.2
		if rsaPub.Size()*8 < 1024 {
			return nil, errors.Errorf("key is too short: want 1024 bits, has %v bits", rsaPub.Size()*8)
		}
		rec.Key = rsaPub
		rec.KeyAlgo = "rsa"
	case "ed25519":
		if len(b) != ed25519.PublicKeySize {
			return nil, errors.New("key syntax error: wrong ed25519 key size")
		}
		rec.Key = ed25519.PublicKey(b)
		rec.KeyAlgo = "ed25519"
	default:
		return nil, errors.New("unsupported key algorithm")
	}
	rec.KeyData = b

	if hashesStr, ok := params["h"]; ok {
		rec.HashAlgos = splitTagList(hashesStr)
	}
	if servicesStr, ok := params["s"]; ok {
		services := splitTagList(servicesStr)
		hasWildcard := false
		for _, s := range services {
			if s == "*" {
				hasWildcard = true
				break
			}
		}
		if !hasWildcard {
			rec.Services = services
		}
	}
	if flagsStr, ok := params["t"]; ok {
		rec.Flags = splitTagList(flagsStr)
	}

	return rec, nil
}

// RecordString formats the TXT record to publish for a public key.
func RecordString(pub crypto.PublicKey) (string, error) {
	var keyData []byte
	var algo string
	switch pub := pub.(type) {
	case *rsa.PublicKey:
		b, err := x509.MarshalPKIXPublicKey(pub)
		if err != nil {
			return "", err
		}
		keyData = b
		algo = "rsa"
	case ed25519.PublicKey:
		keyData = pub
		algo = "ed25519"
	default:
		return "", fmt.Errorf("keys: unsupported public key type %T", pub)
	}
	return "v=DKIM1; k=" + algo + "; p=" + base64.StdEncoding.EncodeToString(keyData), nil
}

func parseTagValues(s string) (map[string]string, error) {
	pairs := strings.Split(s, ";")
	params := make(map[string]string)
	for _, s := range pairs {
		kv := strings.SplitN(s, "=", 2)
		if len(kv) != 2 {
			if strings.TrimSpace(s) == "" {
				continue
			}
			return params, errors.New("malformed tag list")
		}
		params[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return params, nil
}

func splitTagList(s string) []string {
	tags := strings.Split(s, ":")
	for i, t := range tags {
		tags[i] = strings.TrimSpace(t)
	}
	return tags
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			return -1
		}
		return r
	}, s)
}
