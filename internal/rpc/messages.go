package rpc

// ChatRequest is the top-level request for one chat turn.
type ChatRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
	Message        string `json:"message"`
	ModelID        string `json:"modelId,omitempty"`
	Visibility     string `json:"visibility,omitempty"`
}

// ChatStreamRequest is the bidirectional stream payload for Connect RPC.
// The first message must carry the chat turn; subsequent messages carry
// control signals.
type ChatStreamRequest struct {
	Chat   *ChatRequest `json:"chat,omitempty"`
	Cancel bool         `json:"cancel,omitempty"`
}
