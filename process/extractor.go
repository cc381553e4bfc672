package process

import (
	"bytes"

	"github.com/pkg/errors"

	"zkmail/config"
	"zkmail/inputs"
)

type extractor struct {
	keys inputs.KeySource
	next MsgProcessor
}

func (d extractor) Process(msg *ReceivedMsg) error {
	res, e := inputs.Extract(bytes.NewReader(msg.Content), &inputs.Options{Keys: d.keys})
	if e != nil {
		return e
	}
	msg.Results = res

	if config.GetBool(config.SignatureMandatory) {
		ok := false
		for _, r := range res {
			if r.Err == nil {
				ok = true
				break
			}
		}
		if !ok {
			return errors.New("no valid DKIM signature")
		}
	}

	return d.next.Process(msg)
}

func NewExtractor(keys inputs.KeySource, next MsgProcessor) MsgProcessor {
	return &extractor{
		keys: keys,
		next: next,
	}
}
