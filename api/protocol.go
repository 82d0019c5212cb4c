package api

const (
	postNoteMaxSize      = 64 * 1024 // 64 KiB
	idempotencyKeyMaxLen = 255

	headerIdempotencyKey = "Idempotency-Key"
)

// POST /api/notes request body. Pointers tell a missing field apart from a zero value.
type createNoteRequest struct {
	Content      *string `json:"content"`
	Confidential *bool   `json:"confidential"`
}

// POST /api/notes response body
type createNoteResponse struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}
