package tracing

import "encoding/json"

// TraceState represents the derived trace-level outcome.
type TraceState string

const (
	StateInProgress TraceState = "IN_PROGRESS"
	StateOK         TraceState = "OK"
	StateError      TraceState = "ERROR"
)

// TraceInfo is the trace-level metadata envelope. RequestTime and
// ExecutionDuration are milliseconds since epoch, a different unit from the
// nanosecond span timestamps. RequestTime is set when the trace is built,
// not when its first span started.
type TraceInfo struct {
	TraceID           string
	TraceLocation     TraceLocation
	RequestTime       int64
	State             TraceState
	RequestPreview    string
	ResponsePreview   string
	ClientRequestID   string
	ExecutionDuration *int64
	TraceMetadata     map[string]string
	Tags              map[string]string
}

// traceInfoWire is the JSON shape of TraceInfo. The decode side also
// carries the deprecated request_id and status aliases.
type traceInfoWire struct {
	TraceID           string            `json:"trace_id,omitempty"`
	RequestID         string            `json:"request_id,omitempty"` // deprecated alias for trace_id
	TraceLocation     json.RawMessage   `json:"trace_location,omitempty"`
	RequestTime       int64             `json:"request_time"`
	State             TraceState        `json:"state,omitempty"`
	Status            TraceState        `json:"status,omitempty"` // deprecated alias for state
	RequestPreview    string            `json:"request_preview,omitempty"`
	ResponsePreview   string            `json:"response_preview,omitempty"`
	ClientRequestID   string            `json:"client_request_id,omitempty"`
	ExecutionDuration *int64            `json:"execution_duration,omitempty"`
	TraceMetadata     map[string]string `json:"trace_metadata"`
	TraceTags         map[string]string `json:"tags"`
}

// MarshalJSON encodes TraceInfo in the trace-store wire format. Only the
// current field names are written; deprecated aliases are decode-only.
func (i TraceInfo) MarshalJSON() ([]byte, error) {
	var loc json.RawMessage
	if i.TraceLocation != nil {
		encoded, err := EncodeLocation(i.TraceLocation)
		if err != nil {
			return nil, err
		}
		loc = encoded
	}
	w := traceInfoWire{
		TraceID:           i.TraceID,
		TraceLocation:     loc,
		RequestTime:       i.RequestTime,
		State:             i.State,
		RequestPreview:    i.RequestPreview,
		ResponsePreview:   i.ResponsePreview,
		ClientRequestID:   i.ClientRequestID,
		ExecutionDuration: i.ExecutionDuration,
		TraceMetadata:     i.TraceMetadata,
		TraceTags:         i.Tags,
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes TraceInfo, resolving the deprecated request_id and
// status aliases (the new name wins when both are present).
func (i *TraceInfo) UnmarshalJSON(data []byte) error {
	var w traceInfoWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	loc, err := DecodeLocation(w.TraceLocation)
	if err != nil {
		return err
	}
	*i = TraceInfo{
		TraceID:           preferNew(w.TraceID, w.RequestID),
		TraceLocation:     loc,
		RequestTime:       w.RequestTime,
		State:             preferNew(w.State, w.Status),
		RequestPreview:    w.RequestPreview,
		ResponsePreview:   w.ResponsePreview,
		ClientRequestID:   w.ClientRequestID,
		ExecutionDuration: w.ExecutionDuration,
		TraceMetadata:     w.TraceMetadata,
		Tags:              w.TraceTags,
	}
	return nil
}
