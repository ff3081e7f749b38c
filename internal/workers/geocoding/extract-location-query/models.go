// internal/workers/geocoding/extract-location-query/models.go
package extractlocationquery

import "encoding/json"

const (
	// NoneValue is what the model answers when nothing could be extracted.
	NoneValue = "None"

	ValidationFailedMessage = "Validation failed: Location is not valid."

	KeyOriginalMessage = "original_message"
	KeyError           = "error"
)

type Status string

const (
	StatusSuccess          Status = "success"
	StatusValidationFailed Status = "validation_failed"
)

// Result is the pipeline outcome. Payload is the flat mapping it
// serializes to; it always carries original_message.
type Result struct {
	Status   Status                 `json:"status"`
	Payload  map[string]interface{} `json:"payload"`
	Location string                 `json:"-"`
}

func (r *Result) IsSuccess() bool {
	return r.Status == StatusSuccess
}

func (r *Result) OriginalMessage() string {
	s, _ := r.Payload[KeyOriginalMessage].(string)
	return s
}

// MarshalJSON renders only the payload.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Payload)
}
