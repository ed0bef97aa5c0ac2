package agent

// Chunk is one increment of a streamed exchange. The set of variants is
// closed: generation text, partial tool-call assembly, and tool results.
// Consumers map each variant to its wire shape with an exhaustive type
// switch.
type Chunk interface {
	isChunk()
}

// TextChunk is an increment of generated assistant text.
type TextChunk struct {
	Content string
}

// ToolCallChunk is a partial tool call being assembled: the first chunk for
// a call carries its id and name, later ones carry argument JSON deltas.
type ToolCallChunk struct {
	ID        string
	Name      string
	ArgsDelta string
	Index     int
}

// ToolResultChunk reports one completed tool execution.
type ToolResultChunk struct {
	Content string
	Status  string // "success" or "error"
}

func (TextChunk) isChunk()       {}
func (ToolCallChunk) isChunk()   {}
func (ToolResultChunk) isChunk() {}
