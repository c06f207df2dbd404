// Package memory provides the two conversation memory channels used to
// assemble a character's prompt.
//
// Channels:
//   - BufferMemory: the recent-turn buffer, a verbatim and unbounded log of
//     the conversation, exposed to the prompt as "chat_history".
//   - RetrieverMemory: the semantic retrieval store. Every turn becomes one
//     Entry embedded into a vector Store; the top-K entries most similar to
//     the latest input are exposed to the prompt as "context". Rolling
//     summaries are seeded into it before the first turn.
//   - CombinedMemory: runs both channels for one turn, loading every
//     channel's variable and recording the turn into each of them.
//
// Architecture:
//   - Store: vector storage backend (chromem-go in memory/store/chromem)
//   - Embedder: text-to-vector conversion (mock, ONNX, OpenAI, Gemini, with
//     a ristretto cache decorator in memory/embedder/cache)
//
// Neither channel bounds its growth. Retrieval cost and memory use grow with
// the conversation for as long as the process lives.
package memory
