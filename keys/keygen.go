package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
)

// Generate creates a fresh RSA signing keypair. 2048 bits is a safe
// default, 1024 the minimum verifiers accept.
func Generate(bits int) (*rsa.PrivateKey, error) {
	if bits < 1024 {
		return nil, errors.New("keys: refusing to generate a key below 1024 bits")
	}
	return rsa.GenerateKey(rand.Reader, bits)
}

// WritePrivateKey stores the key as PKCS#1 PEM, readable only by the owner.
func WritePrivateKey(path string, pk *rsa.PrivateKey) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrap(err, "creating key file")
	}
	defer f.Close()

	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(pk),
	}
	if err := pem.Encode(f, block); err != nil {
		return errors.Wrap(err, "encoding key file")
	}
	return f.Close()
}

// ReadPrivateKey loads a PKCS#1 PEM private key.
func ReadPrivateKey(path string) (*rsa.PrivateKey, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading key file")
	}
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, errors.New("keys: no PEM block in key file")
	}
	pk, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "parsing key file")
	}
	return pk, nil
}
