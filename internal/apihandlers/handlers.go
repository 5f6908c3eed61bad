package apihandlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"corpus/internal/app"
	"corpus/internal/models"
	"corpus/internal/services"
)

type APIHandler struct {
	App *app.App
}

func NewAPIHandler(app *app.App) *APIHandler {
	return &APIHandler{App: app}
}

// AccountMiddleware resolves the acting account from gateway headers and
// stores it on the request context. Requests without an account id pass
// through with no account; the handlers reject mutations in that case.
func AccountMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.GetHeader("X-Account-Id"); id != "" {
			c.Set("account", &models.Account{
				ID:              id,
				Name:            c.GetHeader("X-Account-Name"),
				Email:           c.GetHeader("X-Account-Email"),
				CurrentTenantID: c.GetHeader("X-Tenant-Id"),
				CurrentRole:     c.GetHeader("X-Account-Role"),
			})
		}
		c.Next()
	}
}

// currentAccount returns the account set by AccountMiddleware, or nil.
func currentAccount(c *gin.Context) *models.Account {
	if v, ok := c.Get("account"); ok {
		if account, ok := v.(*models.Account); ok {
			return account
		}
	}
	return nil
}

type documentIDsRequest struct {
	DocumentIDs []string `json:"document_ids" binding:"required"`
}

// ProcessDocumentsHandler submits a batch of documents for indexing through
// the billing-aware dispatch proxy.
func (h *APIHandler) ProcessDocumentsHandler(c *gin.Context) {
	datasetID := c.Param("dataset_id")
	var req documentIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	dataset, _, ok := h.datasetForUpdate(c, datasetID)
	if !ok {
		return
	}

	if err := h.App.IndexingProxy.Delay(c.Request.Context(), dataset.TenantID, dataset.ID, req.DocumentIDs); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"result": "success"})
}

// DocumentProcessingHandler pauses or resumes a document's indexing run.
// The action path segment is "pause" or "resume".
func (h *APIHandler) DocumentProcessingHandler(c *gin.Context) {
	datasetID := c.Param("dataset_id")
	documentID := c.Param("document_id")
	action := c.Param("action")

	dataset, user, ok := h.datasetForUpdate(c, datasetID)
	if !ok {
		return
	}

	document, err := h.App.Documents.GetDocument(c.Request.Context(), dataset.ID, documentID)
	if err != nil {
		RespondError(c, err)
		return
	}

	switch action {
	case "pause":
		err = h.App.DocumentService.PauseDocument(c.Request.Context(), document, user)
	case "resume":
		err = h.App.DocumentService.RecoverDocument(c.Request.Context(), document)
	default:
		BadRequest(c, fmt.Sprintf("Invalid processing action: %s", action))
		return
	}
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "success"})
}

// RetryDocumentsHandler re-queues errored documents for indexing.
func (h *APIHandler) RetryDocumentsHandler(c *gin.Context) {
	datasetID := c.Param("dataset_id")
	var req documentIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	dataset, user, ok := h.datasetForUpdate(c, datasetID)
	if !ok {
		return
	}

	documents, err := h.App.Documents.GetDocumentsByIDs(c.Request.Context(), dataset.ID, req.DocumentIDs)
	if err != nil {
		RespondError(c, err)
		return
	}

	if err := h.App.DocumentService.RetryDocuments(c.Request.Context(), dataset.ID, documents, user); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"result": "success"})
}

// BatchDocumentStatusHandler applies enable/disable/archive/un_archive to a
// batch of documents.
func (h *APIHandler) BatchDocumentStatusHandler(c *gin.Context) {
	datasetID := c.Param("dataset_id")
	action := c.Param("action")
	var req documentIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	dataset, user, ok := h.datasetForUpdate(c, datasetID)
	if !ok {
		return
	}

	if err := h.App.DocumentService.BatchUpdateDocumentStatus(c.Request.Context(), dataset, req.DocumentIDs, action, user); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "success"})
}

type renameDocumentRequest struct {
	Name string `json:"name" binding:"required"`
}

// RenameDocumentHandler renames a document and, for uploaded files, the
// backing upload file record.
func (h *APIHandler) RenameDocumentHandler(c *gin.Context) {
	datasetID := c.Param("dataset_id")
	documentID := c.Param("document_id")
	var req renameDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	document, err := h.App.DocumentService.RenameDocument(c.Request.Context(), datasetID, documentID, req.Name, currentAccount(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": document.ID, "name": document.Name}})
}

type updateDatasetRequest struct {
	Name                   *string `json:"name"`
	Description            *string `json:"description"`
	Permission             *string `json:"permission"`
	IndexingTechnique      *string `json:"indexing_technique"`
	RetrievalModel         *string `json:"retrieval_model"`
	ExternalRetrievalModel *string `json:"external_retrieval_model"`
	EmbeddingModel         *string `json:"embedding_model"`
	EmbeddingModelProvider *string `json:"embedding_model_provider"`
	ExternalKnowledgeID    *string `json:"external_knowledge_id"`
	ExternalKnowledgeAPIID *string `json:"external_knowledge_api_id"`
}

// UpdateDatasetHandler applies a partial dataset update, including indexing
// technique and embedding model transitions.
func (h *APIHandler) UpdateDatasetHandler(c *gin.Context) {
	datasetID := c.Param("dataset_id")
	var req updateDatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	params := services.UpdateDatasetParams{
		Name:                   req.Name,
		Description:            req.Description,
		SetDescription:         req.Description != nil,
		Permission:             req.Permission,
		IndexingTechnique:      req.IndexingTechnique,
		RetrievalModel:         req.RetrievalModel,
		ExternalRetrievalModel: req.ExternalRetrievalModel,
		EmbeddingModel:         req.EmbeddingModel,
		EmbeddingModelProvider: req.EmbeddingModelProvider,
		ExternalKnowledgeID:    req.ExternalKnowledgeID,
		ExternalKnowledgeAPIID: req.ExternalKnowledgeAPIID,
	}

	dataset, err := h.App.DatasetService.UpdateDataset(c.Request.Context(), datasetID, params, currentAccount(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": dataset})
}

// datasetForUpdate loads the dataset and enforces the acting account's
// permission on it, writing the error response itself on failure.
func (h *APIHandler) datasetForUpdate(c *gin.Context, datasetID string) (*models.Dataset, *models.Account, bool) {
	dataset, err := h.App.Datasets.GetDataset(c.Request.Context(), datasetID)
	if err != nil {
		RespondError(c, err)
		return nil, nil, false
	}
	user := currentAccount(c)
	if err := services.CheckDatasetPermission(dataset, user); err != nil {
		RespondError(c, err)
		return nil, nil, false
	}
	return dataset, user, true
}
