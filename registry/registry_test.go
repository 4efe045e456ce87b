package registry

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vainnor/active-flights/types"
)

func flight(username string) types.FlightRecord {
	return types.FlightRecord{
		"RobloxUsername": username,
		"Squawk":         "1200",
		"lat":            json.Number("0"),
		"lon":            json.Number("0"),
		"livery":         "x",
		"altitude":       json.Number("1000"),
		"speed":          json.Number("100"),
		"Heading":        json.Number("90"),
		"AircraftType":   "737",
	}
}

type recordingListener struct {
	events []types.Event
}

func (l *recordingListener) FlightsChanged(ev types.Event) {
	l.events = append(l.events, ev)
}

func TestList_Empty(t *testing.T) {
	r := New()
	got := r.List()
	require.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, 0, r.Len())
}

func TestAdd_AppendsInOrder(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(flight("A")))
	require.NoError(t, r.Add(flight("B")))
	require.NoError(t, r.Add(flight("A")))

	got := r.List()
	require.Len(t, got, 3)
	want := []types.FlightRecord{flight("A"), flight("B"), flight("A")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestAdd_MissingFields(t *testing.T) {
	tests := []struct {
		name    string
		omit    []string
		wantErr []string
	}{
		{name: "one key", omit: []string{"livery"}, wantErr: []string{"livery"}},
		{name: "username", omit: []string{"RobloxUsername"}, wantErr: []string{"RobloxUsername"}},
		{
			name:    "declaration order",
			omit:    []string{"AircraftType", "lat", "Squawk"},
			wantErr: []string{"Squawk", "lat", "AircraftType"},
		},
		{name: "everything", omit: types.RequiredFields, wantErr: types.RequiredFields},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			require.NoError(t, r.Add(flight("existing")))

			fields := flight("A")
			for _, k := range tt.omit {
				delete(fields, k)
			}
			err := r.Add(fields)

			require.ErrorIs(t, err, ErrMissingFields)
			var mfe *MissingFieldsError
			require.ErrorAs(t, err, &mfe)
			assert.Equal(t, tt.wantErr, mfe.Keys)
			assert.Equal(t, 1, r.Len())
		})
	}
}

func TestAdd_AcceptsAnyValueTypes(t *testing.T) {
	r := New()
	fields := flight("A")
	fields["altitude"] = "very high"
	fields["lat"] = map[string]any{"deg": 1}
	fields["extra"] = true

	require.NoError(t, r.Add(fields))
	if diff := cmp.Diff([]types.FlightRecord{fields}, r.List()); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestAdd_StoresCopy(t *testing.T) {
	r := New()
	fields := flight("A")
	require.NoError(t, r.Add(fields))

	fields["Squawk"] = "7700"
	listed := r.List()
	listed[0]["Squawk"] = "7500"

	assert.Equal(t, "1200", r.List()[0]["Squawk"])
}

func TestList_NestedValuesAreCopied(t *testing.T) {
	r := New()
	fields := flight("A")
	fields["route"] = map[string]any{"from": "IRFD", "waypoints": []any{"GRASS", "SHELL"}}
	require.NoError(t, r.Add(fields))

	fields["route"].(map[string]any)["from"] = "ITKO"
	listed := r.List()
	route := listed[0]["route"].(map[string]any)
	route["from"] = "IPPH"
	route["waypoints"].([]any)[0] = "DIRECT"

	want := map[string]any{"from": "IRFD", "waypoints": []any{"GRASS", "SHELL"}}
	if diff := cmp.Diff(want, r.List()[0]["route"]); diff != "" {
		t.Errorf("stored route changed (-want +got):\n%s", diff)
	}
}

func TestUpdateByUsername_MergesFirstMatch(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(flight("A")))
	require.NoError(t, r.Add(flight("B")))
	require.NoError(t, r.Add(flight("A")))

	err := r.UpdateByUsername(types.FlightRecord{
		"RobloxUsername": "A",
		"altitude":       json.Number("2000"),
		"remarks":        "climbing",
	})
	require.NoError(t, err)

	got := r.List()
	first := flight("A")
	first["altitude"] = json.Number("2000")
	first["remarks"] = "climbing"
	want := []types.FlightRecord{first, flight("B"), flight("A")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateByUsername_UsernameOnly(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(flight("A")))

	require.NoError(t, r.UpdateByUsername(types.FlightRecord{"RobloxUsername": "A"}))
	if diff := cmp.Diff([]types.FlightRecord{flight("A")}, r.List()); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateByUsername_Errors(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(flight("A")))
	before := r.List()

	err := r.UpdateByUsername(types.FlightRecord{"altitude": json.Number("5")})
	assert.ErrorIs(t, err, ErrMissingKey)

	err = r.UpdateByUsername(types.FlightRecord{"RobloxUsername": "Z", "altitude": json.Number("5")})
	assert.ErrorIs(t, err, ErrNotFound)

	// A number never matches a string username.
	err = r.UpdateByUsername(types.FlightRecord{"RobloxUsername": json.Number("1"), "altitude": json.Number("5")})
	assert.ErrorIs(t, err, ErrNotFound)

	if diff := cmp.Diff(before, r.List()); diff != "" {
		t.Errorf("registry changed after failed updates (-want +got):\n%s", diff)
	}
}

func TestRemoveByUsername(t *testing.T) {
	tests := []struct {
		name        string
		username    string
		wantRemoved int
		wantLeft    []string
	}{
		{name: "no match", username: "Z", wantRemoved: 0, wantLeft: []string{"A", "B", "A", "C"}},
		{name: "single match", username: "B", wantRemoved: 1, wantLeft: []string{"A", "A", "C"}},
		{name: "many matches", username: "A", wantRemoved: 2, wantLeft: []string{"B", "C"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			for _, u := range []string{"A", "B", "A", "C"} {
				require.NoError(t, r.Add(flight(u)))
			}

			removed, err := r.RemoveByUsername(types.FlightRecord{"RobloxUsername": tt.username})
			require.NoError(t, err)
			assert.Equal(t, tt.wantRemoved, removed)

			var left []string
			for _, f := range r.List() {
				left = append(left, f["RobloxUsername"].(string))
			}
			assert.Equal(t, tt.wantLeft, left)
		})
	}
}

func TestRemoveByUsername_MissingKey(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(flight("A")))

	_, err := r.RemoveByUsername(types.FlightRecord{"Squawk": "1200"})
	assert.ErrorIs(t, err, ErrMissingKey)
	assert.Equal(t, 1, r.Len())
}

func TestNestedUsernameDoesNotPanic(t *testing.T) {
	r := New()
	fields := flight("A")
	fields["RobloxUsername"] = []any{"A", "B"}
	require.NoError(t, r.Add(fields))

	require.NoError(t, r.UpdateByUsername(types.FlightRecord{"RobloxUsername": []any{"A", "B"}, "Squawk": "7000"}))
	removed, err := r.RemoveByUsername(types.FlightRecord{"RobloxUsername": []any{"A", "B"}})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestScenario_AddUpdateRemove(t *testing.T) {
	r := New()
	in := flight("A")
	require.NoError(t, r.Add(in))
	if diff := cmp.Diff([]types.FlightRecord{in}, r.List()); diff != "" {
		t.Fatalf("after add (-want +got):\n%s", diff)
	}

	require.NoError(t, r.UpdateByUsername(types.FlightRecord{"RobloxUsername": "A", "altitude": json.Number("2000")}))
	got := r.List()
	require.Len(t, got, 1)
	assert.Equal(t, json.Number("2000"), got[0]["altitude"])
	assert.Equal(t, "1200", got[0]["Squawk"])

	_, err := r.RemoveByUsername(types.FlightRecord{"RobloxUsername": "A"})
	require.NoError(t, err)
	assert.Empty(t, r.List())
}

func TestListener_ReceivesEventsInOrder(t *testing.T) {
	l := &recordingListener{}
	r := New(l)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	require.NoError(t, r.Add(flight("A")))
	require.NoError(t, r.UpdateByUsername(types.FlightRecord{"RobloxUsername": "A", "Squawk": "7000"}))
	_, err := r.RemoveByUsername(types.FlightRecord{"RobloxUsername": "nobody"})
	require.NoError(t, err)
	_, err = r.RemoveByUsername(types.FlightRecord{"RobloxUsername": "A"})
	require.NoError(t, err)
	require.Error(t, r.Add(types.FlightRecord{}))

	require.Len(t, l.events, 3)
	assert.Equal(t, types.EventAdded, l.events[0].Kind)
	assert.Equal(t, types.EventUpdated, l.events[1].Kind)
	assert.Equal(t, "7000", l.events[1].Record["Squawk"])
	assert.Equal(t, types.EventRemoved, l.events[2].Kind)
	assert.Equal(t, 1, l.events[2].Removed)
	for _, ev := range l.events {
		assert.Equal(t, "A", ev.Username)
		assert.Equal(t, fixed, ev.Time)
	}
}

func TestConcurrentOperations(t *testing.T) {
	r := New()
	const workers = 16
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				name := fmt.Sprintf("pilot-%d", w)
				assert.NoError(t, r.Add(flight(name)))
				_ = r.UpdateByUsername(types.FlightRecord{"RobloxUsername": name, "speed": json.Number("250")})
				_ = r.List()
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, workers*perWorker, r.Len())

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			removed, err := r.RemoveByUsername(types.FlightRecord{"RobloxUsername": fmt.Sprintf("pilot-%d", w)})
			assert.NoError(t, err)
			assert.Equal(t, perWorker, removed)
		}(w)
	}
	wg.Wait()
	assert.Empty(t, r.List())
}
