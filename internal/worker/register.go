package worker

import (
	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"corpus/internal/tasks"
)

// RegisterHandlers wires every task type onto the mux. The sync handler is
// only registered when its datasource collaborators are present.
func RegisterHandlers(mux *asynq.ServeMux, deps Deps) {
	mux.HandleFunc(tasks.TypeDocumentIndexing, HandleDocumentIndexing(deps))
	mux.HandleFunc(tasks.TypeRecoverDocumentIndexing, HandleRecoverDocumentIndexing(deps))
	mux.HandleFunc(tasks.TypeRetryDocumentIndexing, HandleRetryDocumentIndexing(deps))
	mux.HandleFunc(tasks.TypeAddDocumentToIndex, HandleAddDocumentToIndex(deps))
	mux.HandleFunc(tasks.TypeRemoveDocumentFromIndex, HandleRemoveDocumentFromIndex(deps))
	mux.HandleFunc(tasks.TypeDealDatasetVectorIndex, HandleDealDatasetVectorIndex(deps))
	mux.HandleFunc(tasks.TypeRegenerateSummaryIndex, HandleRegenerateSummaryIndex(deps))

	if deps.Credentials != nil && deps.Extractors != nil {
		mux.HandleFunc(tasks.TypeDocumentIndexingSync, HandleDocumentIndexingSync(deps))
	} else {
		log.Warn("datasource credentials or extractors not configured, skipping sync handler registration")
	}
}
