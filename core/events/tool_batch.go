package events

const (
	// KindToolBatchReceived identifies a batch of tool calls arriving from the endpoint.
	KindToolBatchReceived Kind = "tool_batch.received"
	// KindToolBatchExecuting identifies the start of sequential execution.
	KindToolBatchExecuting Kind = "tool_batch.executing"
	// KindToolBatchCompleted identifies a batch whose calls all succeeded.
	KindToolBatchCompleted Kind = "tool_batch.completed"
	// KindToolBatchFailed identifies a batch where at least one call failed.
	KindToolBatchFailed Kind = "tool_batch.failed"
)

// ToolBatchStateChanged carries a batch state transition.
type ToolBatchStateChanged struct {
	Base
	BatchID  string
	Calls    int
	Failures int
}

// NewToolBatchStateChanged creates a tool batch event of the given kind.
func NewToolBatchStateChanged(kind Kind, batchID string, calls, failures int) ToolBatchStateChanged {
	return ToolBatchStateChanged{Base: NewBase(kind), BatchID: batchID, Calls: calls, Failures: failures}
}
