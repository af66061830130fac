package tracing

import (
	"encoding/json"
	"fmt"
)

// TraceLocationType discriminates where a trace is stored.
type TraceLocationType string

const (
	LocationTypeExperiment     TraceLocationType = "MLFLOW_EXPERIMENT"
	LocationTypeInferenceTable TraceLocationType = "INFERENCE_TABLE"
)

// TraceLocation identifies the storage target a trace belongs to. Concrete
// variants are ExperimentLocation and InferenceTableLocation; the wire form
// carries a "type" discriminant.
type TraceLocation interface {
	LocationType() TraceLocationType
}

// ExperimentLocation stores traces under an experiment.
type ExperimentLocation struct {
	ExperimentID string `json:"experiment_id"`
}

func (ExperimentLocation) LocationType() TraceLocationType { return LocationTypeExperiment }

// InferenceTableLocation stores traces in an inference table.
type InferenceTableLocation struct {
	TableName string `json:"table_name"`
	Database  string `json:"database"`
	Catalog   string `json:"catalog"`
}

func (InferenceTableLocation) LocationType() TraceLocationType { return LocationTypeInferenceTable }

// locationDecoders dispatches on the wire discriminant. Adding a variant
// means adding an entry here.
var locationDecoders = map[TraceLocationType]func(json.RawMessage) (TraceLocation, error){
	LocationTypeExperiment: func(raw json.RawMessage) (TraceLocation, error) {
		var loc ExperimentLocation
		if err := json.Unmarshal(raw, &loc); err != nil {
			return nil, err
		}
		return loc, nil
	},
	LocationTypeInferenceTable: func(raw json.RawMessage) (TraceLocation, error) {
		var loc InferenceTableLocation
		if err := json.Unmarshal(raw, &loc); err != nil {
			return nil, err
		}
		return loc, nil
	},
}

// EncodeLocation serializes a location with its type discriminant.
func EncodeLocation(loc TraceLocation) ([]byte, error) {
	if loc == nil {
		return []byte("null"), nil
	}
	body, err := json.Marshal(loc)
	if err != nil {
		return nil, fmt.Errorf("tracing: marshal trace location: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("tracing: reshape trace location: %w", err)
	}
	fields["type"], _ = json.Marshal(loc.LocationType())
	return json.Marshal(fields)
}

// DecodeLocation deserializes a location, dispatching on the "type" field.
// Unknown discriminants degrade to the experiment variant using whatever
// experiment_id is present, so new server-side variants never break old
// clients.
func DecodeLocation(data []byte) (TraceLocation, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var head struct {
		Type TraceLocationType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("tracing: decode trace location: %w", err)
	}
	decode, ok := locationDecoders[head.Type]
	if !ok {
		decode = locationDecoders[LocationTypeExperiment]
	}
	loc, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("tracing: decode trace location %q: %w", head.Type, err)
	}
	return loc, nil
}
