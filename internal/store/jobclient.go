package store

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"corpus/internal/tasks"
)

// AsynqJobClient is the concrete JobClient backed by an asynq client.
var _ JobClient = (*AsynqJobClient)(nil)

type AsynqJobClient struct {
	client *asynq.Client
}

func NewAsynqJobClient(redisAddr, redisPassword string, redisDB int) *AsynqJobClient {
	cli := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})
	return &AsynqJobClient{client: cli}
}

func (jc *AsynqJobClient) Close() error {
	return jc.client.Close()
}

func (jc *AsynqJobClient) enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error {
	info, err := jc.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	log.WithFields(log.Fields{"type": task.Type(), "queue": info.Queue, "task_id": info.ID}).
		Debug("task enqueued")
	return nil
}

func (jc *AsynqJobClient) EnqueueDocumentIndexing(ctx context.Context, queue, tenantID, datasetID string, documentIDs []string) error {
	payload := tasks.DocumentIndexingPayload{
		TenantID:    tenantID,
		DatasetID:   datasetID,
		DocumentIDs: documentIDs,
	}
	task := asynq.NewTask(tasks.TypeDocumentIndexing, tasks.Encode(payload))
	return jc.enqueue(ctx, task, asynq.Queue(queue))
}

func (jc *AsynqJobClient) EnqueueDocumentIndexingSync(ctx context.Context, datasetID, documentID string) error {
	payload := tasks.DocumentIndexingSyncPayload{DatasetID: datasetID, DocumentID: documentID}
	task := asynq.NewTask(tasks.TypeDocumentIndexingSync, tasks.Encode(payload))
	return jc.enqueue(ctx, task, asynq.Queue(tasks.QueueNormal))
}

func (jc *AsynqJobClient) EnqueueRecoverDocumentIndexing(ctx context.Context, datasetID, documentID string) error {
	payload := tasks.RecoverDocumentIndexingPayload{DatasetID: datasetID, DocumentID: documentID}
	task := asynq.NewTask(tasks.TypeRecoverDocumentIndexing, tasks.Encode(payload))
	return jc.enqueue(ctx, task, asynq.Queue(tasks.QueueNormal))
}

func (jc *AsynqJobClient) EnqueueRetryDocumentIndexing(ctx context.Context, datasetID string, documentIDs []string, userID string) error {
	payload := tasks.RetryDocumentIndexingPayload{
		DatasetID:   datasetID,
		DocumentIDs: documentIDs,
		UserID:      userID,
	}
	task := asynq.NewTask(tasks.TypeRetryDocumentIndexing, tasks.Encode(payload))
	return jc.enqueue(ctx, task, asynq.Queue(tasks.QueueNormal))
}

func (jc *AsynqJobClient) EnqueueAddDocumentToIndex(ctx context.Context, documentID string) error {
	task := asynq.NewTask(tasks.TypeAddDocumentToIndex, tasks.Encode(tasks.DocumentIndexPayload{DocumentID: documentID}))
	return jc.enqueue(ctx, task, asynq.Queue(tasks.QueueNormal))
}

func (jc *AsynqJobClient) EnqueueRemoveDocumentFromIndex(ctx context.Context, documentID string) error {
	task := asynq.NewTask(tasks.TypeRemoveDocumentFromIndex, tasks.Encode(tasks.DocumentIndexPayload{DocumentID: documentID}))
	return jc.enqueue(ctx, task, asynq.Queue(tasks.QueueNormal))
}

func (jc *AsynqJobClient) EnqueueDealDatasetVectorIndex(ctx context.Context, datasetID, action string) error {
	payload := tasks.DealDatasetVectorIndexPayload{DatasetID: datasetID, Action: action}
	task := asynq.NewTask(tasks.TypeDealDatasetVectorIndex, tasks.Encode(payload))
	return jc.enqueue(ctx, task, asynq.Queue(tasks.QueueNormal))
}

func (jc *AsynqJobClient) EnqueueRegenerateSummaryIndex(ctx context.Context, datasetID, reason string, vectorsOnly bool) error {
	payload := tasks.RegenerateSummaryIndexPayload{
		DatasetID:   datasetID,
		Reason:      reason,
		VectorsOnly: vectorsOnly,
	}
	task := asynq.NewTask(tasks.TypeRegenerateSummaryIndex, tasks.Encode(payload))
	return jc.enqueue(ctx, task, asynq.Queue(tasks.QueueNormal))
}
