package inputs

import (
	"bufio"
	"bytes"
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/subtle"
	"encoding/base64"
	"io"
	"io/ioutil"
	"strconv"
	"strings"
	"time"
)

var now = time.Now

const sigFieldName = "DKIM-Signature"

var requiredTags = []string{"v", "a", "b", "bh", "d", "h", "s"}

// Options controls extraction. Keys is required; Domain and Selector narrow
// which DKIM-Signature fields are considered.
type Options struct {
	Keys     KeySource
	Domain   string
	Selector string
}

// Extract verifies every DKIM-Signature field of the message and returns one
// Result per considered signature, capturing the prover inputs for each
// signature that verifies with an RSA key. A message with no signature (or
// none matching the Domain/Selector filter) yields an empty slice.
func Extract(r io.Reader, opts *Options) ([]*Result, error) {
	if opts == nil || opts.Keys == nil {
		return nil, permError("no key source configured")
	}

	bufr := bufio.NewReader(r)
	h, err := readHeader(bufr)
	if err != nil {
		return nil, err
	}
	body, err := ioutil.ReadAll(bufr)
	if err != nil {
		return nil, err
	}

	var results []*Result
	for _, kv := range h {
		k, v := parseHeaderField(kv)
		if !strings.EqualFold(k, sigFieldName) {
			continue
		}

		res, err := extractOne(h, body, kv, v, opts)
		if res == nil {
			// Filtered out by Domain/Selector
			continue
		}
		res.Err = err
		results = append(results, res)
	}
	return results, nil
}

// Pick returns the inputs document of the first verified RSA signature, or
// the first error encountered when there is none.
func Pick(results []*Result) (*EmailInputs, error) {
	var firstErr error
	for _, res := range results {
		if res.Inputs != nil {
			return res.Inputs, nil
		}
		if firstErr == nil {
			if res.Err != nil {
				firstErr = res.Err
			} else {
				firstErr = permError("signature verified but is not usable by the prover")
			}
		}
	}
	if firstErr == nil {
		firstErr = permError("no DKIM signature found")
	}
	return nil, firstErr
}

func extractOne(h header, body []byte, sigField, sigValue string, opts *Options) (*Result, error) {
	res := new(Result)

	params, err := parseHeaderParams(sigValue)
	if err != nil {
		return res, permError("malformed signature tags: " + err.Error())
	}

	res.Domain = stripWhitespace(params["d"])
	res.Selector = stripWhitespace(params["s"])
	if opts.Domain != "" && !strings.EqualFold(res.Domain, opts.Domain) {
		return nil, nil
	}
	if opts.Selector != "" && !strings.EqualFold(res.Selector, opts.Selector) {
		return nil, nil
	}

	if params["v"] != "1" {
		return res, permError("incompatible signature version")
	}
	for _, tag := range requiredTags {
		if _, ok := params[tag]; !ok {
			return res, permError("signature missing required tag")
		}
	}

	if i, ok := params["i"]; ok {
		res.Identifier = stripWhitespace(i)
		if !strings.HasSuffix(res.Identifier, "@"+res.Domain) && !strings.HasSuffix(res.Identifier, "."+res.Domain) {
			return res, permError("domain mismatch")
		}
	} else {
		res.Identifier = "@" + res.Domain
	}

	headerKeys := parseTagList(params["h"])
	ok := false
	for _, k := range headerKeys {
		if strings.ToLower(k) == "from" {
			ok = true
			break
		}
	}
	if !ok {
		return res, permError("From field not signed")
	}
	res.HeaderKeys = headerKeys

	if timeStr, ok := params["t"]; ok {
		t, err := parseTime(timeStr)
		if err != nil {
			return res, permError("malformed time: " + err.Error())
		}
		res.Time = t
	}
	if expiresStr, ok := params["x"]; ok {
		t, err := parseTime(expiresStr)
		if err != nil {
			return res, permError("malformed expiration time: " + err.Error())
		}
		res.Expiration = t
		if now().After(t) {
			return res, permError("signature has expired")
		}
	}

	if methodsStr, ok := params["q"]; ok {
		supported := false
		for _, m := range parseTagList(methodsStr) {
			if m == "dns/txt" {
				supported = true
			}
		}
		if !supported {
			return res, permError("unsupported public key query method")
		}
	}

	record, err := opts.Keys.Fetch(res.Domain, res.Selector)
	if err != nil {
		return res, err
	}

	algos := strings.SplitN(stripWhitespace(params["a"]), "-", 2)
	if len(algos) != 2 {
		return res, permError("malformed algorithm name")
	}
	keyAlgo := algos[0]
	hashAlgo := algos[1]
	res.Algorithm = keyAlgo + "-" + hashAlgo

	if record.HashAlgos != nil {
		ok := false
		for _, algo := range record.HashAlgos {
			if algo == hashAlgo {
				ok = true
				break
			}
		}
		if !ok {
			return res, permError("inappropriate hash algorithm")
		}
	}
	var hash crypto.Hash
	switch hashAlgo {
	case "sha1":
		// RFC 8301 section 3.1
		return res, permError("hash algorithm too weak: sha1")
	case "sha256":
		hash = crypto.SHA256
	default:
		return res, permError("unsupported hash algorithm")
	}

	if record.KeyAlgo != keyAlgo {
		return res, permError("inappropriate key algorithm")
	}
	if record.Services != nil {
		ok := false
		for _, s := range record.Services {
			if s == "email" {
				ok = true
				break
			}
		}
		if !ok {
			return res, permError("inappropriate service")
		}
	}

	headerCan, bodyCan := parseCanonicalization(params["c"])
	if _, ok := canonicalizers[headerCan]; !ok {
		return res, permError("unsupported header canonicalization algorithm")
	}
	if _, ok := canonicalizers[bodyCan]; !ok {
		return res, permError("unsupported body canonicalization algorithm")
	}

	var bodyLen int64 = -1
	if lenStr, ok := params["l"]; ok {
		l, err := strconv.ParseInt(stripWhitespace(lenStr), 10, 64)
		if err != nil {
			return res, permError("malformed body length: " + err.Error())
		} else if l < 0 {
			return res, permError("malformed body length: negative value")
		}
		bodyLen = l
	}
	res.BodyLength = bodyLen

	bodyHashed, err := decodeBase64String(params["bh"])
	if err != nil {
		return res, permError("malformed body hash: " + err.Error())
	}
	sig, err := decodeBase64String(params["b"])
	if err != nil {
		return res, permError("malformed signature: " + err.Error())
	}

	// Canonicalize and hash the body, keeping the canonical bytes: they are
	// half of the prover's witness.
	hasher := hash.New()
	var bodyBuf bytes.Buffer
	var w io.Writer = io.MultiWriter(hasher, &bodyBuf)
	if bodyLen >= 0 {
		w = &limitedWriter{W: w, N: bodyLen}
	}
	wc := canonicalizers[bodyCan].CanonicalizeBody(w)
	if _, err := wc.Write(body); err != nil {
		return res, err
	}
	if err := wc.Close(); err != nil {
		return res, err
	}
	computedBodyHash := hasher.Sum(nil)
	if subtle.ConstantTimeCompare(computedBodyHash, bodyHashed) != 1 {
		return res, failError("body hash did not verify")
	}

	// Data hash: the signed header fields in h= order, then the
	// DKIM-Signature field itself with b= emptied, unterminated.
	hasher.Reset()
	var hdrBuf strings.Builder
	picker := newHeaderPicker(h)
	for _, key := range headerKeys {
		kv := picker.Pick(key)
		if kv == "" {
			// Signed nonexistent fields contribute nothing
			continue
		}

		kv = canonicalizers[headerCan].CanonicalizeHeader(kv)
		hasher.Write([]byte(kv))
		hdrBuf.WriteString(kv)
	}
	canSigField := removeSignature(sigField)
	canSigField = canonicalizers[headerCan].CanonicalizeHeader(canSigField)
	canSigField = strings.TrimRight(canSigField, "\r\n")
	hasher.Write([]byte(canSigField))
	hdrBuf.WriteString(canSigField)
	hashed := hasher.Sum(nil)

	switch pub := record.Key.(type) {
	case *rsa.PublicKey:
		if err := rsa.VerifyPKCS1v15(pub, hash, hashed, sig); err != nil {
			return res, failError("signature did not verify: " + err.Error())
		}
	case ed25519.PublicKey:
		if !ed25519.Verify(pub, hashed, sig) {
			return res, failError("signature did not verify")
		}
	default:
		return res, permError("unsupported key algorithm")
	}

	if record.KeyAlgo != "rsa" {
		// Valid, but the circuits only take RSA keys. Leave Inputs unset so
		// callers can tell "verified" from "provable".
		return res, nil
	}

	res.Inputs = &EmailInputs{
		PublicKey: base64.StdEncoding.EncodeToString(record.KeyData),
		Signature: stripWhitespace(params["b"]),
		Headers:   hdrBuf.String(),
		Body:      bodyBuf.String(),
		BodyHash:  base64.StdEncoding.EncodeToString(computedBodyHash),
	}
	return res, nil
}

func parseTime(s string) (time.Time, error) {
	sec, err := strconv.ParseInt(stripWhitespace(s), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0), nil
}

func decodeBase64String(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(stripWhitespace(s))
}
