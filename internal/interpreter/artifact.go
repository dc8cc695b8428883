package interpreter

// Status is the artifact lifecycle state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusStreaming Status = "streaming"
)

// Artifact is the client-side reconstruction of content being generated.
// It is owned exclusively by the Interpreter. Visible flips on when the
// artifact starts streaming and stays on; a finished document remains shown.
type Artifact struct {
	DocumentID string `json:"documentId"`
	Title      string `json:"title"`
	Kind       string `json:"kind"`
	Content    string `json:"content"`
	Status     Status `json:"status"`
	Visible    bool   `json:"visible"`
}
