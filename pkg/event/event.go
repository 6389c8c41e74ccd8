// Package event defines the Event envelope that crosses the trigger
// boundary: the shape a webhook listener or broker consumer produces,
// and the workflow lookup contract consumes.
package event

import (
	"bytes"
	"encoding/json"

	"github.com/lyzr/wkflws/pkg/intrinsic"
)

// Event is created by a trigger listener and is immutable thereafter.
// Identifier is used both as the trace/correlation key and as the
// broker partition key.
type Event struct {
	Identifier string            `json:"identifier"`
	Metadata   map[string]string `json:"metadata"`
	Data       interface{}       `json:"data"`
}

// WithMetadata returns a copy of e with key set in Metadata, leaving e
// untouched. cmd/trigger uses it to attach the "node_id" entry to a new
// event.
func (e Event) WithMetadata(key, value string) Event {
	md := make(map[string]string, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		md[k] = v
	}
	md[key] = value
	e.Metadata = md
	return e
}

// Decode parses a serialized Event with json.Number enabled and
// normalizes Data through intrinsic.NormalizeDecoded, so a JSON number
// anywhere inside Data arrives as decimal.Decimal rather than float64
// — matching what every Choice comparator and intrinsic arithmetic
// operator requires of a workflow's input.
func Decode(data []byte) (Event, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var evt Event
	if err := dec.Decode(&evt); err != nil {
		return Event{}, err
	}
	if evt.Data != nil {
		evt.Data = intrinsic.NormalizeDecoded(evt.Data)
	}
	return evt, nil
}
