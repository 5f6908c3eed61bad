package services

import "context"

// Plan identifies a tenant's billing subscription tier.
type Plan string

const (
	PlanSandbox      Plan = "sandbox"
	PlanProfessional Plan = "professional"
	PlanTeam         Plan = "team"
)

type Subscription struct {
	Plan Plan
}

type BillingFeatures struct {
	Enabled      bool
	Subscription Subscription
}

// VectorSpaceFeatures carries the tenant's vector-space quota. A limit of
// zero or below means unlimited.
type VectorSpaceFeatures struct {
	Limit int64
	Size  int64
}

type Features struct {
	Billing     BillingFeatures
	VectorSpace VectorSpaceFeatures
}

// FeatureService resolves billing-sensitive features for a tenant. Failures
// must propagate to the caller: dispatch routing may not silently fall back
// on stale or default plan data.
type FeatureService interface {
	GetFeatures(ctx context.Context, tenantID string) (*Features, error)
}

// StaticFeatureService serves a fixed feature set, used for self-hosted
// deployments where billing is disabled.
type StaticFeatureService struct {
	features Features
}

var _ FeatureService = (*StaticFeatureService)(nil)

func NewStaticFeatureService(features Features) *StaticFeatureService {
	return &StaticFeatureService{features: features}
}

// NewSelfHostedFeatureService returns features with billing disabled and no
// vector-space quota.
func NewSelfHostedFeatureService() *StaticFeatureService {
	return &StaticFeatureService{}
}

func (s *StaticFeatureService) GetFeatures(_ context.Context, _ string) (*Features, error) {
	f := s.features
	return &f, nil
}
