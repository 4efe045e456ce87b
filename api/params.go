package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/vainnor/active-flights/types"
)

var errInvalidBody = errors.New("invalid JSON body")

// parseFields turns a request into the field mapping handed to the registry.
// Requests using the route's write method carry a JSON object body; every
// other method carries the fields as query parameters.
func parseFields(w http.ResponseWriter, r *http.Request, writeMethod string, maxBytes int64) (types.FlightRecord, error) {
	if r.Method != writeMethod {
		return queryFields(r), nil
	}
	return bodyFields(http.MaxBytesReader(w, r.Body, maxBytes))
}

// queryFields keeps the first value of each parameter.
func queryFields(r *http.Request) types.FlightRecord {
	fields := types.FlightRecord{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}
	return fields
}

func bodyFields(body io.Reader) (types.FlightRecord, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var fields types.FlightRecord
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: body is null", errInvalidBody)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: unexpected data after object", errInvalidBody)
	}
	return fields, nil
}
