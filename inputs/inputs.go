// Package inputs verifies DKIM signatures (RFC 6376) and captures the exact
// byte strings the verifier hashed. Email proof circuits need the raw
// canonicalized material, not just a pass/fail verdict, so the verification
// core lives here instead of behind a library call.
package inputs

import (
	"time"

	"zkmail/keys"
)

// EmailInputs is the document handed to the prover. Field names are part of
// the wire contract and must stay camelCase.
type EmailInputs struct {
	// Base64 DER of the signer's RSA public key, exactly the DNS p= value.
	PublicKey string `json:"publicKey"`
	// Base64 signature, the b= tag with folding whitespace removed.
	Signature string `json:"signature"`
	// The canonicalized signed header block, ending with the
	// DKIM-Signature field with b= emptied. No trailing CRLF: this is the
	// exact message the RSA signature covers.
	Headers string `json:"headers"`
	// The canonicalized body, after l= truncation if any.
	Body string `json:"body"`
	// Base64 of the computed body hash.
	BodyHash string `json:"bodyHash"`
}

// A Result describes the outcome for one DKIM-Signature field.
type Result struct {
	Domain     string
	Selector   string
	Algorithm  string
	Identifier string
	HeaderKeys []string
	BodyLength int64
	Time       time.Time
	Expiration time.Time

	// Inputs is set only when the signature verified and the key is RSA.
	Inputs *EmailInputs
	// Err is nil if the signature is valid.
	Err error
}

// A KeySource resolves a domain key record for a signing domain and
// selector. DNS, cache and file-backed implementations live in the keys
// package.
type KeySource interface {
	Fetch(domain, selector string) (*keys.Record, error)
}

type permError string

func (e permError) Error() string { return "inputs: " + string(e) }

// IsPermFail reports whether err is a permanent failure: a malformed
// message, a missing required tag, a revoked key. Retrying cannot help.
func IsPermFail(err error) bool {
	_, ok := err.(permError)
	return ok
}

type failError string

func (e failError) Error() string { return "inputs: " + string(e) }

// IsFail reports whether err means the signature itself did not verify.
func IsFail(err error) bool {
	_, ok := err.(failError)
	return ok
}

// IsTempFail reports whether err is worth retrying, typically a DNS lookup
// that timed out while fetching the domain key.
func IsTempFail(err error) bool {
	t, ok := err.(interface{ Temporary() bool })
	return ok && t.Temporary()
}
