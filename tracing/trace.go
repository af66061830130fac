package tracing

// Trace is the complete, immutable record of one logical operation: the
// metadata envelope plus the span tree. It is the unit exchanged with the
// remote trace store.
type Trace struct {
	Info TraceInfo `json:"info"`
	Data TraceData `json:"data"`
}
