package tracing

// SpanType categorizes what a span measured. It is an open string value, not
// a closed enum: callers may introduce custom types without a contract
// change. The constants below are the well-known types understood by
// downstream tooling.
type SpanType string

const (
	SpanTypeUnknown   SpanType = "UNKNOWN"
	SpanTypeAgent     SpanType = "AGENT"
	SpanTypeChain     SpanType = "CHAIN"
	SpanTypeLLM       SpanType = "LLM"
	SpanTypeTool      SpanType = "TOOL"
	SpanTypeRetriever SpanType = "RETRIEVER"
	SpanTypeEmbedding SpanType = "EMBEDDING"
	SpanTypeParser    SpanType = "PARSER"
	SpanTypeReranker  SpanType = "RERANKER"
	SpanTypeChatModel SpanType = "CHAT_MODEL"
	SpanTypeMemory    SpanType = "MEMORY"
	SpanTypeWorkflow  SpanType = "WORKFLOW"
	SpanTypeTask      SpanType = "TASK"
	SpanTypeGuardrail SpanType = "GUARDRAIL"
	SpanTypeEvaluator SpanType = "EVALUATOR"
)

var wellKnownSpanTypes = map[SpanType]struct{}{
	SpanTypeUnknown: {}, SpanTypeAgent: {}, SpanTypeChain: {},
	SpanTypeLLM: {}, SpanTypeTool: {}, SpanTypeRetriever: {},
	SpanTypeEmbedding: {}, SpanTypeParser: {}, SpanTypeReranker: {},
	SpanTypeChatModel: {}, SpanTypeMemory: {}, SpanTypeWorkflow: {},
	SpanTypeTask: {}, SpanTypeGuardrail: {}, SpanTypeEvaluator: {},
}

// IsWellKnown reports whether t is one of the predefined span types.
func (t SpanType) IsWellKnown() bool {
	_, ok := wellKnownSpanTypes[t]
	return ok
}

// IsLLMRelated reports whether t describes a model invocation (LLM or chat
// model) rather than surrounding orchestration.
func (t SpanType) IsLLMRelated() bool {
	return t == SpanTypeLLM || t == SpanTypeChatModel
}
