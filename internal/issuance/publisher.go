package issuance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"carbon-market/mrv-backend/pkg/retry"
)

// Request asks the external minting service to issue credits for an approved
// report. The workflow's one-way terminal guarantee plus the outbox primary
// key on ReportID make the emission at-most-once.
type Request struct {
	ReportID    uuid.UUID  `db:"report_id" json:"report_id"`
	NetCredits  int        `db:"net_credits" json:"net_credits"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	PublishedAt *time.Time `db:"published_at" json:"published_at,omitempty"`
}

// Publisher delivers issuance requests to the minting collaborator.
// Delivery is fire-and-forget; the core never waits on minting.
type Publisher interface {
	Publish(ctx context.Context, req Request) error
}

// SNSPublisher publishes issuance requests to an SNS topic consumed by the
// minting service
type SNSPublisher struct {
	client   *sns.Client
	topicARN string
	logger   *zap.Logger
}

// NewSNSPublisher creates a publisher bound to the issuance topic
func NewSNSPublisher(ctx context.Context, region, topicARN string, logger *zap.Logger) (*SNSPublisher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &SNSPublisher{
		client:   sns.NewFromConfig(cfg),
		topicARN: topicARN,
		logger:   logger,
	}, nil
}

// Publish sends one issuance request
func (p *SNSPublisher) Publish(ctx context.Context, req Request) error {
	body, err := json.Marshal(map[string]interface{}{
		"report_id":   req.ReportID.String(),
		"net_credits": req.NetCredits,
	})
	if err != nil {
		return fmt.Errorf("failed to encode issuance request: %w", err)
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String("credit_issuance_request"),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish issuance request: %w", err)
	}

	p.logger.Info("Credit issuance request published",
		zap.String("report_id", req.ReportID.String()),
		zap.Int("net_credits", req.NetCredits))
	return nil
}

// LogPublisher is a stand-in publisher for environments without a topic
type LogPublisher struct {
	Logger *zap.Logger
}

// Publish logs the request instead of delivering it
func (p *LogPublisher) Publish(ctx context.Context, req Request) error {
	p.Logger.Info("Credit issuance request (log only)",
		zap.String("report_id", req.ReportID.String()),
		zap.Int("net_credits", req.NetCredits))
	return nil
}

// OutboxStore is the persistence surface the dispatcher drains. Rows are
// written in the same transaction as the approving state transition.
type OutboxStore interface {
	PendingIssuance(ctx context.Context, limit int) ([]Request, error)
	MarkIssuancePublished(ctx context.Context, reportID uuid.UUID) error
}

// Dispatcher drains the issuance outbox and delivers each pending request
// with backoff. Redelivery after a crash is safe: requests already published
// are marked and skipped, and the minting side keys on report_id.
type Dispatcher struct {
	store     OutboxStore
	publisher Publisher
	retryCfg  retry.Config
	logger    *zap.Logger
}

// NewDispatcher creates an outbox dispatcher
func NewDispatcher(store OutboxStore, publisher Publisher, logger *zap.Logger) *Dispatcher {
	cfg := retry.DefaultConfig()
	cfg.Logger = logger
	return &Dispatcher{
		store:     store,
		publisher: publisher,
		retryCfg:  cfg,
		logger:    logger,
	}
}

// DispatchPending publishes up to limit unsent issuance requests
func (d *Dispatcher) DispatchPending(ctx context.Context, limit int) error {
	pending, err := d.store.PendingIssuance(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to load pending issuance requests: %w", err)
	}

	for _, req := range pending {
		req := req
		err := retry.Do(ctx, d.retryCfg, func() error {
			return d.publisher.Publish(ctx, req)
		})
		if err != nil {
			d.logger.Error("Issuance delivery failed, will retry on next run",
				zap.String("report_id", req.ReportID.String()),
				zap.Error(err))
			continue
		}
		if err := d.store.MarkIssuancePublished(ctx, req.ReportID); err != nil {
			return fmt.Errorf("failed to mark issuance published: %w", err)
		}
	}
	return nil
}
