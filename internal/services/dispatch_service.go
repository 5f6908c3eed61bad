package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"corpus/internal/redisx"
	"corpus/internal/store"
	"corpus/internal/taskqueue"
	"corpus/internal/tasks"
)

// DocumentIndexingProxy routes document indexing work by tenant plan.
// Self-hosted deployments (billing disabled) enqueue straight onto the
// priority queue. Billed tenants go through the tenant-isolated queue so a
// single tenant cannot occupy every worker: sandbox tenants on the normal
// queue, paid tenants on the priority queue.
type DocumentIndexingProxy struct {
	features FeatureService
	jobs     store.JobClient
	redis    redisx.Client
	taskTTL  time.Duration
	log      *logrus.Entry
}

func NewDocumentIndexingProxy(features FeatureService, jobs store.JobClient, redis redisx.Client, taskTTL time.Duration) *DocumentIndexingProxy {
	return &DocumentIndexingProxy{
		features: features,
		jobs:     jobs,
		redis:    redis,
		taskTTL:  taskTTL,
		log:      logrus.WithField("component", "document_indexing_proxy"),
	}
}

// Delay dispatches an indexing batch for the given documents. Feature
// resolution failures are returned as-is so the caller can surface them;
// no dispatch happens in that case.
func (p *DocumentIndexingProxy) Delay(ctx context.Context, tenantID, datasetID string, documentIDs []string) error {
	features, err := p.features.GetFeatures(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("get features for tenant %s: %w", tenantID, err)
	}

	if !features.Billing.Enabled {
		return p.jobs.EnqueueDocumentIndexing(ctx, tasks.QueuePriority, tenantID, datasetID, documentIDs)
	}

	queue := tasks.QueuePriority
	if features.Billing.Subscription.Plan == PlanSandbox {
		queue = tasks.QueueNormal
	}
	return p.delayTenantIsolated(ctx, queue, tenantID, datasetID, documentIDs)
}

// delayTenantIsolated submits through the per-tenant FIFO. When the tenant
// already has a batch in flight the work is only parked on the waiting list;
// the running worker drains it during cleanup. Otherwise the running flag is
// set before the broker enqueue so a racing submission parks instead of
// double-dispatching.
func (p *DocumentIndexingProxy) delayTenantIsolated(ctx context.Context, queue, tenantID, datasetID string, documentIDs []string) error {
	q := taskqueue.New(p.redis, tenantID, tasks.TaskKindDocumentIndexing, p.taskTTL)

	running, err := q.IsTaskRunning(ctx)
	if err != nil {
		return fmt.Errorf("check running flag for tenant %s: %w", tenantID, err)
	}
	if running {
		p.log.WithFields(logrus.Fields{
			"tenant_id":  tenantID,
			"dataset_id": datasetID,
		}).Debug("tenant busy, parking indexing batch on waiting queue")
		return q.Push(ctx, taskqueue.Task{TenantID: tenantID, DatasetID: datasetID, DocumentIDs: documentIDs})
	}

	if err := q.SetTaskWaitingTime(ctx); err != nil {
		return fmt.Errorf("set running flag for tenant %s: %w", tenantID, err)
	}
	return p.jobs.EnqueueDocumentIndexing(ctx, queue, tenantID, datasetID, documentIDs)
}
