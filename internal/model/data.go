package model

import (
	"fmt"
	"strconv"
	"strings"
)

// EventID identifies a collision event
type EventID struct {
	Run           uint64 `msgpack:"run" json:"run"`
	LumiBlock     uint64 `msgpack:"lumi" json:"lumi"`
	Event         uint64 `msgpack:"event" json:"event"`
	BunchCrossing uint64 `msgpack:"bx,omitempty" json:"bx,omitempty"`
}

// Less orders IDs by run, luminosity block and event number
func (id EventID) Less(other EventID) bool {
	if id.Run != other.Run {
		return id.Run < other.Run
	}
	if id.LumiBlock != other.LumiBlock {
		return id.LumiBlock < other.LumiBlock
	}
	return id.Event < other.Event
}

// Equal compares run, luminosity block and event number. The bunch crossing is ignored.
func (id EventID) Equal(other EventID) bool {
	return id.Run == other.Run && id.LumiBlock == other.LumiBlock && id.Event == other.Event
}

func (id EventID) String() string {
	return fmt.Sprintf("%d:%d:%d", id.Run, id.LumiBlock, id.Event)
}

// ParseEventID parses the "run:lumi:event" form produced by String
func ParseEventID(s string) (EventID, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return EventID{}, fmt.Errorf("malformed event ID %q", s)
	}

	var fields [3]uint64
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return EventID{}, fmt.Errorf("malformed event ID %q: %w", s, err)
		}
		fields[i] = n
	}
	return EventID{Run: fields[0], LumiBlock: fields[1], Event: fields[2]}, nil
}

// Event is one record read from an ntuple file
type Event struct {
	ID     EventID            `msgpack:"id" json:"id"`
	Weight float64            `msgpack:"weight" json:"weight"`
	Values map[string]float64 `msgpack:"values" json:"values"`
}

// Value returns a branch value and whether it is present
func (e *Event) Value(name string) (float64, bool) {
	if e == nil || e.Values == nil {
		return 0, false
	}
	v, ok := e.Values[name]
	return v, ok
}

// ToMap converts the event to a map representation
func (e *Event) ToMap() map[string]interface{} {
	values := make(map[string]interface{}, len(e.Values))
	for k, v := range e.Values {
		values[k] = v
	}

	return map[string]interface{}{
		"run":    e.ID.Run,
		"lumi":   e.ID.LumiBlock,
		"event":  e.ID.Event,
		"weight": e.Weight,
		"values": values,
	}
}
