package api

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error       string   `json:"error"`
	MissingKeys []string `json:"missing_keys,omitempty"`
}

const (
	msgFlightAdded   = "Flight added"
	msgFlightUpdated = "Flight updated"
	msgFlightRemoved = "Flight removed"

	errMissingData     = "Missing data"
	errMissingUsername = "Missing RobloxUsername"
	errFlightNotFound  = "Flight not found"
	errInvalidJSON     = "Invalid JSON body"
	errNotFound        = "Not found"
	errMethod          = "Method not allowed"
	errRateLimited     = "Rate limit exceeded"
)
