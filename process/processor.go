// Package process wires extraction into a chain of message processors, one
// responsibility per link.
package process

import (
	"time"

	"zkmail/inputs"
)

type MsgProcessor interface {
	Process(*ReceivedMsg) error
}

// A ReceivedMsg travels down the processor chain, collecting extraction
// results on the way.
type ReceivedMsg struct {
	From      string
	To        []string
	Content   []byte
	Timestamp time.Time
	Results   []*inputs.Result
}
