package models

import (
	"encoding/json"
	"time"
)

// Indexing status values a Document moves through. "paused" is not a status:
// pausing is tracked by the orthogonal IsPaused flag so a paused document
// keeps the status it was interrupted in.
const (
	IndexingStatusWaiting   = "waiting"
	IndexingStatusParsing   = "parsing"
	IndexingStatusIndexing  = "indexing"
	IndexingStatusCompleted = "completed"
	IndexingStatusError     = "error"
)

// Indexing techniques a Dataset can be configured with.
const (
	IndexingTechniqueHighQuality = "high_quality"
	IndexingTechniqueEconomy     = "economy"
)

// Dataset provider values. "external" datasets delegate retrieval to an
// external knowledge API and carry a binding row instead of local documents.
const (
	DatasetProviderVendor   = "vendor"
	DatasetProviderExternal = "external"
)

type Dataset struct {
	ID                     string          `db:"id"`
	TenantID               string          `db:"tenant_id"`
	Name                   string          `db:"name"`
	Description            *string         `db:"description"`
	Provider               string          `db:"provider"`
	Permission             string          `db:"permission"`
	DataSourceType         string          `db:"data_source_type"`
	IndexingTechnique      string          `db:"indexing_technique"`
	RetrievalModel         *string         `db:"retrieval_model"`
	EmbeddingModel         *string         `db:"embedding_model"`
	EmbeddingModelProvider *string         `db:"embedding_model_provider"`
	CollectionBindingID    *string         `db:"collection_binding_id"`
	BuiltInFieldEnabled    bool            `db:"built_in_field_enabled"`
	RetrievalConfig        json.RawMessage `db:"retrieval_config"`
	CreatedBy              string          `db:"created_by"`
	CreatedAt              time.Time       `db:"created_at"`
	UpdatedAt              time.Time       `db:"updated_at"`
}

type Document struct {
	ID                  string          `db:"id"`
	TenantID            string          `db:"tenant_id"`
	DatasetID           string          `db:"dataset_id"`
	Position            int             `db:"position"`
	Batch               string          `db:"batch"`
	Name                string          `db:"name"`
	DataSourceType      string          `db:"data_source_type"`
	DataSourceInfo      json.RawMessage `db:"data_source_info"`
	DocForm             string          `db:"doc_form"`
	DocMetadata         json.RawMessage `db:"doc_metadata"`
	CreatedFrom         string          `db:"created_from"`
	CreatedBy           string          `db:"created_by"`
	IndexingStatus      string          `db:"indexing_status"`
	ProcessingStartedAt *time.Time      `db:"processing_started_at"`
	CompletedAt         *time.Time      `db:"completed_at"`
	Error               *string         `db:"error"`
	StoppedAt           *time.Time      `db:"stopped_at"`
	IsPaused            bool            `db:"is_paused"`
	PausedBy            *string         `db:"paused_by"`
	PausedAt            *time.Time      `db:"paused_at"`
	Enabled             bool            `db:"enabled"`
	DisabledAt          *time.Time      `db:"disabled_at"`
	DisabledBy          *string         `db:"disabled_by"`
	Archived            bool            `db:"archived"`
	ArchivedAt          *time.Time      `db:"archived_at"`
	ArchivedBy          *string         `db:"archived_by"`
	CreatedAt           time.Time       `db:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at"`
}

// DataSourceInfoMap decodes the free-form data_source_info JSON. A nil or
// malformed payload decodes to an empty map rather than failing the caller.
func (d *Document) DataSourceInfoMap() map[string]any {
	out := map[string]any{}
	if len(d.DataSourceInfo) == 0 {
		return out
	}
	_ = json.Unmarshal(d.DataSourceInfo, &out)
	return out
}

// DocMetadataMap decodes doc_metadata the same way.
func (d *Document) DocMetadataMap() map[string]any {
	out := map[string]any{}
	if len(d.DocMetadata) == 0 {
		return out
	}
	_ = json.Unmarshal(d.DocMetadata, &out)
	return out
}

// UploadFile is a user-uploaded file referenced by documents whose data
// source is a local file upload.
type UploadFile struct {
	ID          string    `db:"id"`
	TenantID    string    `db:"tenant_id"`
	StorageType string    `db:"storage_type"`
	Key         string    `db:"key"`
	Name        string    `db:"name"`
	Size        int64     `db:"size"`
	Extension   string    `db:"extension"`
	MimeType    string    `db:"mime_type"`
	SourceURL   string    `db:"source_url"`
	Used        bool      `db:"used"`
	CreatedBy   string    `db:"created_by"`
	CreatedAt   time.Time `db:"created_at"`
}

// DatasourceFile is a file persisted by a datasource plugin run (images,
// binary attachments). Streaming messages reference these by an id embedded
// in a URL.
type DatasourceFile struct {
	ID        string    `db:"id"`
	TenantID  string    `db:"tenant_id"`
	Key       string    `db:"key"`
	MimeType  string    `db:"mime_type"`
	Size      int64     `db:"size"`
	SourceURL string    `db:"source_url"`
	CreatedAt time.Time `db:"created_at"`
}

// ExternalKnowledgeBinding links an external-provider dataset to its external
// knowledge base and API.
type ExternalKnowledgeBinding struct {
	ID                     string    `db:"id"`
	TenantID               string    `db:"tenant_id"`
	DatasetID              string    `db:"dataset_id"`
	ExternalKnowledgeID    string    `db:"external_knowledge_id"`
	ExternalKnowledgeAPIID string    `db:"external_knowledge_api_id"`
	CreatedBy              string    `db:"created_by"`
	CreatedAt              time.Time `db:"created_at"`
}

// CollectionBinding maps an embedding (provider, model) pair to the vector
// collection backing all high_quality datasets using that pair.
type CollectionBinding struct {
	ID             string    `db:"id"`
	ProviderName   string    `db:"provider_name"`
	ModelName      string    `db:"model_name"`
	CollectionName string    `db:"collection_name"`
	Type           string    `db:"type"`
	CreatedAt      time.Time `db:"created_at"`
}

// Tenant roles with dataset edit rights.
const (
	TenantRoleOwner  = "owner"
	TenantRoleAdmin  = "admin"
	TenantRoleEditor = "editor"
	TenantRoleNormal = "normal"
)

// Account is the acting user identity passed into lifecycle operations.
type Account struct {
	ID              string `db:"id"`
	Name            string `db:"name"`
	Email           string `db:"email"`
	CurrentTenantID string `db:"current_tenant_id"`
	CurrentRole     string `db:"current_role"`
}

// IsDatasetEditor reports whether the account may modify datasets in its
// current tenant.
func (a *Account) IsDatasetEditor() bool {
	switch a.CurrentRole {
	case TenantRoleOwner, TenantRoleAdmin, TenantRoleEditor:
		return true
	}
	return false
}
