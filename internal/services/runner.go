package services

import (
	"context"

	"corpus/internal/models"
)

// IndexingRunner executes the extract/transform/load pipeline over a batch of
// documents. The pipeline itself lives behind this contract; dispatch and
// lifecycle code only care about three outcomes: success, a pause interrupt
// (models.DocumentIsPausedError), or any other failure.
type IndexingRunner interface {
	Run(ctx context.Context, documents []*models.Document) error
}

// DatasourceCredentialProvider resolves stored credentials for a datasource
// plugin. A nil map with a nil error means the plugin authenticates itself.
type DatasourceCredentialProvider interface {
	GetDatasourceCredentials(ctx context.Context, tenantID, provider, pluginID, credentialID string) (map[string]string, error)
}

// OnlineDocumentExtractor inspects a single remote page.
type OnlineDocumentExtractor interface {
	// LastEditedTime returns the page's last-edited timestamp as reported by
	// the remote source.
	LastEditedTime(ctx context.Context) (string, error)
}

// OnlineDocumentExtractorParams identifies one page of an online document
// source.
type OnlineDocumentExtractorParams struct {
	TenantID    string
	WorkspaceID string
	PageID      string
	PageType    string
	AccessToken string
}

// ExtractorFactory builds extractors for sync checks against online document
// sources.
type ExtractorFactory interface {
	NewOnlineDocumentExtractor(params OnlineDocumentExtractorParams) (OnlineDocumentExtractor, error)
}
