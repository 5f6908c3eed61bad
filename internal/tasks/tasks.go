package tasks

import "encoding/json"

// Task type identifiers registered on the asynq mux.
const (
	// TypeDocumentIndexing runs one indexing batch for a tenant, then the
	// tenant-queue follow-up dispatch.
	TypeDocumentIndexing = "document_indexing:batch"
	// TypeDocumentIndexingSync re-syncs a single online document against its
	// source and re-indexes it when the source changed.
	TypeDocumentIndexingSync = "document_indexing:sync"
	// TypeRecoverDocumentIndexing resumes indexing for a recovered document.
	TypeRecoverDocumentIndexing = "document_indexing:recover"
	// TypeRetryDocumentIndexing re-runs indexing for failed documents.
	TypeRetryDocumentIndexing = "document_indexing:retry"

	// TypeAddDocumentToIndex / TypeRemoveDocumentFromIndex maintain the
	// vector index after enable/disable/archive transitions.
	TypeAddDocumentToIndex      = "document_index:add"
	TypeRemoveDocumentFromIndex = "document_index:remove"

	// TypeDealDatasetVectorIndex applies add/remove/update at dataset scope
	// after an indexing-technique or embedding-model change.
	TypeDealDatasetVectorIndex = "dataset_vector_index:deal"
	// TypeRegenerateSummaryIndex rebuilds summary vectors after an embedding
	// model change.
	TypeRegenerateSummaryIndex = "summary_index:regenerate"
)

// Queue names served by the worker. Priority routing between plans happens
// by queue choice, not by task type.
const (
	QueuePriority = "priority"
	QueueNormal   = "normal"
)

// TaskKindDocumentIndexing scopes tenant-isolated queue keys for document
// indexing work.
const TaskKindDocumentIndexing = "document_indexing"

type DocumentIndexingPayload struct {
	TenantID    string   `json:"tenant_id"`
	DatasetID   string   `json:"dataset_id"`
	DocumentIDs []string `json:"document_ids"`
}

type DocumentIndexingSyncPayload struct {
	DatasetID  string `json:"dataset_id"`
	DocumentID string `json:"document_id"`
}

type RecoverDocumentIndexingPayload struct {
	DatasetID  string `json:"dataset_id"`
	DocumentID string `json:"document_id"`
}

type RetryDocumentIndexingPayload struct {
	DatasetID   string   `json:"dataset_id"`
	DocumentIDs []string `json:"document_ids"`
	UserID      string   `json:"user_id"`
}

type DocumentIndexPayload struct {
	DocumentID string `json:"document_id"`
}

type DealDatasetVectorIndexPayload struct {
	DatasetID string `json:"dataset_id"`
	Action    string `json:"action"`
}

type RegenerateSummaryIndexPayload struct {
	DatasetID   string `json:"dataset_id"`
	Reason      string `json:"reason"`
	VectorsOnly bool   `json:"vectors_only"`
}

// Encode marshals a payload for asynq. Payload structs contain only
// marshal-safe fields, so the error is ignored.
func Encode(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
