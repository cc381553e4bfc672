package keys

import (
	"crypto/x509"
	"encoding/pem"
	"io/ioutil"
	"strings"

	"github.com/pkg/errors"
)

// FileSource serves one fixed key for every domain and selector, from either
// a TXT record file or a PEM public key. Used for offline extraction and
// test fixtures where DNS is unavailable or unwanted.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Fetch(domain, selector string) (*Record, error) {
	b, err := ioutil.ReadFile(s.Path)
	if err != nil {
		return nil, errors.Wrap(err, "reading key file")
	}

	content := strings.TrimSpace(string(b))
	if strings.HasPrefix(content, "-----BEGIN") {
		block, _ := pem.Decode(b)
		if block == nil {
			return nil, errors.New("keys: no PEM block in key file")
		}
		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(err, "parsing key file")
		}
		txt, err := RecordString(pub)
		if err != nil {
			return nil, err
		}
		return ParseRecord(txt)
	}

	// Raw record text, possibly wrapped over several lines
	return ParseRecord(strings.Join(strings.Fields(content), ""))
}
