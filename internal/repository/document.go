package repository

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/zhirschtritt/eventapi/internal/domain"
)

// decodeDocument turns a stored JSON document back into an event, attaching
// the store identifier. Numbers are kept as json.Number so large integers
// round-trip unchanged.
func decodeDocument(id string, raw []byte) (domain.Event, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var event domain.Event
	if err := dec.Decode(&event); err != nil {
		return nil, fmt.Errorf("failed to decode event %s: %w", id, err)
	}
	if event == nil {
		event = domain.Event{}
	}
	event[domain.IDField] = id

	return event, nil
}

func encodeDocument(event domain.Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}
	return data, nil
}
