package types

// QAResponse is the externally visible result of one pipeline run.
// Citations is always serialized, as null when absent.
type QAResponse struct {
	Answer    string       `json:"answer"`
	Context   string       `json:"context"`
	Citations *CitationMap `json:"citations"`
}

type DataResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type SearchResponse struct {
	Passages []Passage `json:"passages"`
	Context  string    `json:"context"`
}

type UploadResponse struct {
	OriginalName string `json:"original_name,omitempty"`
	Chunks       int    `json:"chunks"`
}

type ProcessingDocumentStatus struct {
	Status         string  `json:"status"`
	Message        string  `json:"message"`
	Progress       float64 `json:"progress"`
	TotalPages     int     `json:"total_pages"`
	ProcessedPages int     `json:"processed_pages"`
}
