package core

// Prompt variable names shared by the memory channels and the prompt template.
const (
	// InputKey is the latest human message.
	InputKey = "input"

	// ChatHistoryKey is filled by the recent-turn buffer.
	ChatHistoryKey = "chat_history"

	// ContextKey is filled by the semantic retrieval store.
	ContextKey = "context"
)

// HumanPrefix labels human lines in transcripts and memory entries.
const HumanPrefix = "Human"

// Turn is one human/character exchange.
// It is the only value memory channels read when recording a turn; the
// variables they expose to the prompt are never fed back into them.
type Turn struct {
	Input    string `json:"input"`
	Response string `json:"response"`
}
