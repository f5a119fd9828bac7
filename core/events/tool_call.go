package events

const (
	// KindToolCallStarted identifies the start of one call of a batch.
	KindToolCallStarted Kind = "tool_call.started"
	// KindToolCallCompleted identifies a call that produced its result.
	KindToolCallCompleted Kind = "tool_call.completed"
	// KindToolCallFailed identifies a call answered with the apology result.
	KindToolCallFailed Kind = "tool_call.failed"
)

// ToolCallStarted carries the raw arguments the endpoint sent.
type ToolCallStarted struct {
	Base
	BatchID   string
	ID        string
	Name      string
	Arguments string
}

func NewToolCallStarted(batchID, id, name, arguments string) ToolCallStarted {
	return ToolCallStarted{Base: NewBase(KindToolCallStarted), BatchID: batchID, ID: id, Name: name, Arguments: arguments}
}

// ToolCallCompleted carries the text sent back to the endpoint for the call.
type ToolCallCompleted struct {
	Base
	BatchID string
	ID      string
	Name    string
	Result  string
}

func NewToolCallCompleted(batchID, id, name, result string) ToolCallCompleted {
	return ToolCallCompleted{Base: NewBase(KindToolCallCompleted), BatchID: batchID, ID: id, Name: name, Result: result}
}

// ToolCallFailed carries why a call failed. The endpoint only sees the
// generic apology.
type ToolCallFailed struct {
	Base
	BatchID string
	ID      string
	Name    string
	Error   string
}

func NewToolCallFailed(batchID, id, name, err string) ToolCallFailed {
	return ToolCallFailed{Base: NewBase(KindToolCallFailed), BatchID: batchID, ID: id, Name: name, Error: err}
}
