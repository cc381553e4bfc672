package process

import (
	"encoding/json"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"

	"zkmail/inputs"
)

/**
 * Writes the inputs document of the first provable signature to a file.
 * Terminal link of the one-shot command chain.
 */
type fileWriter struct {
	path string
}

func (w *fileWriter) Process(wrap *ReceivedMsg) error {
	doc, e := inputs.Pick(wrap.Results)
	if e != nil {
		return e
	}

	// Never leave a previous run's document behind
	if e := os.Remove(w.path); e != nil && !os.IsNotExist(e) {
		return errors.Wrap(e, "removing stale output")
	}

	b, e := json.MarshalIndent(doc, "", "  ")
	if e != nil {
		return e
	}
	b = append(b, '\n')
	return ioutil.WriteFile(w.path, b, 0644)
}

func NewFileWriter(path string) MsgProcessor {
	return &fileWriter{path: path}
}
