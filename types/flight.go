package types

import "time"

// FlightRecord is one flight's reported field set. Values are kept exactly as
// the transport produced them; nothing is type-checked.
type FlightRecord map[string]any

// Field names clients report.
const (
	FieldUsername     = "RobloxUsername"
	FieldSquawk       = "Squawk"
	FieldLatitude     = "lat"
	FieldLongitude    = "lon"
	FieldLivery       = "livery"
	FieldAltitude     = "altitude"
	FieldSpeed        = "speed"
	FieldHeading      = "Heading"
	FieldAircraftType = "AircraftType"
)

// RequiredFields lists the keys a new flight must carry, in reporting order.
var RequiredFields = []string{
	FieldUsername,
	FieldSquawk,
	FieldLatitude,
	FieldLongitude,
	FieldLivery,
	FieldAltitude,
	FieldSpeed,
	FieldHeading,
	FieldAircraftType,
}

// Clone returns a deep copy of the record. Nested JSON objects and arrays
// are copied too, so callers may mutate the result freely.
func (f FlightRecord) Clone() FlightRecord {
	out := make(FlightRecord, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(v))
		for k, e := range v {
			m[k] = cloneValue(e)
		}
		return m
	case FlightRecord:
		return v.Clone()
	case []any:
		s := make([]any, len(v))
		for i, e := range v {
			s[i] = cloneValue(e)
		}
		return s
	default:
		return v
	}
}

// Username returns the reported username and whether the key is present.
func (f FlightRecord) Username() (any, bool) {
	v, ok := f[FieldUsername]
	return v, ok
}

type EventKind string

const (
	EventAdded   EventKind = "added"
	EventUpdated EventKind = "updated"
	EventRemoved EventKind = "removed"
)

// Event describes a single successful registry mutation.
type Event struct {
	Kind     EventKind    `json:"kind"`
	Username any          `json:"username"`
	Record   FlightRecord `json:"record,omitempty"`
	Removed  int          `json:"removed,omitempty"`
	Time     time.Time    `json:"time"`
}
