package tracing

import (
	"encoding/json"
	"fmt"
)

// preferNew resolves a renamed wire field pair: the new name wins, the
// deprecated one is the fallback. Centralized so every alias pair behaves
// identically.
func preferNew[T comparable](newVal, oldVal T) T {
	var zero T
	if newVal != zero {
		return newVal
	}
	return oldVal
}

// DecodeOption configures wire decoding.
type DecodeOption func(*decodeOptions)

type decodeOptions struct {
	strict bool
}

// DecodeStrict makes missing required fields (trace_id, span_id, name,
// start_time_ns on spans; trace_id on trace info) a decode error instead of
// defaulting them. The default policy is lenient: missing fields take zero
// values so partial payloads from older servers still decode.
func DecodeStrict() DecodeOption {
	return func(o *decodeOptions) { o.strict = true }
}

func resolveDecodeOptions(opts []DecodeOption) decodeOptions {
	var o decodeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// DecodeSpan decodes a single span from its wire form.
func DecodeSpan(data []byte, opts ...DecodeOption) (Span, error) {
	var s Span
	if err := json.Unmarshal(data, &s); err != nil {
		return Span{}, fmt.Errorf("tracing: decode span: %w", err)
	}
	if resolveDecodeOptions(opts).strict {
		if err := checkSpanRequired(data); err != nil {
			return Span{}, err
		}
	}
	return s, nil
}

// DecodeTraceInfo decodes a trace-info envelope from its wire form.
func DecodeTraceInfo(data []byte, opts ...DecodeOption) (TraceInfo, error) {
	var info TraceInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return TraceInfo{}, fmt.Errorf("tracing: decode trace info: %w", err)
	}
	if resolveDecodeOptions(opts).strict && info.TraceID == "" {
		return TraceInfo{}, fmt.Errorf("tracing: decode trace info: missing trace_id")
	}
	return info, nil
}

// DecodeTrace decodes a full trace from its wire form.
func DecodeTrace(data []byte, opts ...DecodeOption) (Trace, error) {
	var wire struct {
		Info json.RawMessage `json:"info"`
		Data struct {
			Spans []json.RawMessage `json:"spans"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return Trace{}, fmt.Errorf("tracing: decode trace: %w", err)
	}

	var t Trace
	if len(wire.Info) > 0 {
		info, err := DecodeTraceInfo(wire.Info, opts...)
		if err != nil {
			return Trace{}, err
		}
		t.Info = info
	}
	t.Data.Spans = make([]Span, 0, len(wire.Data.Spans))
	for i, raw := range wire.Data.Spans {
		s, err := DecodeSpan(raw, opts...)
		if err != nil {
			return Trace{}, fmt.Errorf("tracing: decode trace: span %d: %w", i, err)
		}
		t.Data.Spans = append(t.Data.Spans, s)
	}
	return t, nil
}

// EncodeTrace serializes a trace to its wire form. Non-serializable values
// in span inputs or outputs surface here as an error rather than being
// dropped.
func EncodeTrace(t Trace) ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("tracing: encode trace: %w", err)
	}
	return data, nil
}

// checkSpanRequired probes the raw payload for fields the strict policy
// requires. Probing the raw bytes distinguishes an absent start_time_ns
// from an explicit zero.
func checkSpanRequired(data []byte) error {
	var probe struct {
		TraceID     *string `json:"trace_id"`
		SpanID      *string `json:"span_id"`
		Name        *string `json:"name"`
		StartTimeNs *int64  `json:"start_time_ns"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("tracing: decode span: %w", err)
	}
	switch {
	case probe.TraceID == nil || *probe.TraceID == "":
		return fmt.Errorf("tracing: decode span: missing trace_id")
	case probe.SpanID == nil || *probe.SpanID == "":
		return fmt.Errorf("tracing: decode span: missing span_id")
	case probe.Name == nil || *probe.Name == "":
		return fmt.Errorf("tracing: decode span: missing name")
	case probe.StartTimeNs == nil:
		return fmt.Errorf("tracing: decode span: missing start_time_ns")
	}
	return nil
}
