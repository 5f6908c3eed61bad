package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"corpus/internal/models"
	"corpus/internal/services"
	"corpus/internal/store"
	"corpus/internal/tasks"
)

const (
	notionProvider = "notion_datasource"
	notionPluginID = "langgenius/notion_datasource"
)

// HandleDocumentIndexingSync checks an online document against its source and
// re-indexes it when the source page changed since the last import. Unlike
// the batch task, a failed re-index here writes the error onto the document:
// there is no user watching a sync run, so the failure has to be visible
// later.
func HandleDocumentIndexingSync(deps Deps) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p tasks.DocumentIndexingSyncPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode sync payload: %v: %w", err, asynq.SkipRetry)
		}
		logger := logrus.WithFields(logrus.Fields{
			"dataset_id":  p.DatasetID,
			"document_id": p.DocumentID,
		})

		document, err := deps.Documents.GetDocument(ctx, p.DatasetID, p.DocumentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				logger.Info("document not found, skipping sync")
				return nil
			}
			return fmt.Errorf("load document %s: %w", p.DocumentID, err)
		}

		info := document.DataSourceInfoMap()
		workspaceID, _ := info["notion_workspace_id"].(string)
		pageID, _ := info["notion_page_id"].(string)
		pageType, _ := info["type"].(string)
		lastEdited, _ := info["last_edited_time"].(string)
		if workspaceID == "" || pageID == "" {
			logger.Info("document has no online source info, skipping sync")
			return nil
		}

		credentialID, _ := info["credential_id"].(string)
		credentials, err := deps.Credentials.GetDatasourceCredentials(ctx, document.TenantID, notionProvider, notionPluginID, credentialID)
		if err != nil {
			return fmt.Errorf("load datasource credentials: %w", err)
		}

		extractor, err := deps.Extractors.NewOnlineDocumentExtractor(services.OnlineDocumentExtractorParams{
			TenantID:    document.TenantID,
			WorkspaceID: workspaceID,
			PageID:      pageID,
			PageType:    pageType,
			AccessToken: credentials["integration_secret"],
		})
		if err != nil {
			return fmt.Errorf("build extractor for document %s: %w", p.DocumentID, err)
		}

		latest, err := extractor.LastEditedTime(ctx)
		if err != nil {
			return fmt.Errorf("check source for document %s: %w", p.DocumentID, err)
		}
		if latest == lastEdited {
			logger.Debug("source unchanged, nothing to sync")
			return nil
		}

		now := time.Now().UTC()
		document.IndexingStatus = models.IndexingStatusParsing
		document.ProcessingStartedAt = &now
		if err := deps.Documents.UpdateDocument(ctx, document); err != nil {
			return fmt.Errorf("mark document parsing for sync: %w", err)
		}

		if err := deps.Runner.Run(ctx, []*models.Document{document}); err != nil {
			if models.IsDocumentIsPausedError(err) {
				logger.Info("sync paused by user")
				return nil
			}
			stopped := time.Now().UTC()
			msg := err.Error()
			document.IndexingStatus = models.IndexingStatusError
			document.Error = &msg
			document.StoppedAt = &stopped
			if uerr := deps.Documents.UpdateDocument(ctx, document); uerr != nil {
				return fmt.Errorf("record sync failure for document %s: %w", p.DocumentID, uerr)
			}
			logger.WithError(err).Warn("document sync re-index failed")
			return nil
		}
		logger.Info("synced document from source")
		return nil
	}
}
