package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nimburion/docprobe/pkg/observability/logger"
)

// MaxBatchWrite is the DynamoDB limit on put/delete requests per BatchWriteItem call.
const MaxBatchWrite = 25

// maxUnprocessedRounds bounds how often unprocessed batch items are resubmitted.
const maxUnprocessedRounds = 5

// Adapter provides DynamoDB connectivity.
type Adapter struct {
	client  *dynamodb.Client
	logger  logger.Logger
	timeout time.Duration
	mu      sync.RWMutex
	closed  bool
}

// Config holds DynamoDB adapter configuration.
type Config struct {
	Region string
	// Endpoint targets DynamoDB Local or LocalStack instead of AWS.
	Endpoint         string
	AccessKeyID      string
	SecretAccessKey  string
	SessionToken     string
	OperationTimeout time.Duration
}

// NewAdapter builds an SDK v2 client, honouring a custom endpoint, and verifies
// connectivity. It does not create tables; see EnsureTable.
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("aws region is required")
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 5 * time.Second
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	var opts []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	adapter := &Adapter{
		client:  dynamodb.NewFromConfig(awsCfg, opts...),
		logger:  log,
		timeout: cfg.OperationTimeout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.OperationTimeout)
	defer cancel()
	if err := adapter.Ping(ctx); err != nil {
		return nil, err
	}

	log.Info("DynamoDB adapter initialized", "region", cfg.Region, "endpoint", cfg.Endpoint)
	return adapter, nil
}

func (a *Adapter) Client() *dynamodb.Client {
	return a.client
}

func (a *Adapter) checkOpen() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return fmt.Errorf("dynamodb adapter is closed")
	}
	return nil
}

func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.checkOpen(); err != nil {
		return err
	}

	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	_, err := a.client.ListTables(opCtx, &dynamodb.ListTablesInput{Limit: aws.Int32(1)})
	if err != nil {
		return fmt.Errorf("dynamodb ping failed: %w", err)
	}
	return nil
}

func (a *Adapter) HealthCheck(ctx context.Context) error {
	hcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.Ping(hcCtx); err != nil {
		a.logger.Error("DynamoDB health check failed", "error", err)
		return fmt.Errorf("dynamodb health check failed: %w", err)
	}
	return nil
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

// EnsureTable creates table with a string hash key named hashKey when it does not
// exist yet, and waits until it is active.
func (a *Adapter) EnsureTable(ctx context.Context, table, hashKey string) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	_, err := a.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("describe table %s: %w", table, err)
	}

	_, err = a.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(hashKey), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(hashKey), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(a.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)}, time.Minute); err != nil {
		return fmt.Errorf("wait for table %s: %w", table, err)
	}
	a.logger.Info("DynamoDB table created", "table", table, "hash_key", hashKey)
	return nil
}

func (a *Adapter) PutItem(ctx context.Context, input *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.client.PutItem(opCtx, input)
}

func (a *Adapter) GetItem(ctx context.Context, input *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.client.GetItem(opCtx, input)
}

func (a *Adapter) DeleteItem(ctx context.Context, input *dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.client.DeleteItem(opCtx, input)
}

// ScanAll reads every item of input.TableName, following pagination.
func (a *Adapter) ScanAll(ctx context.Context, input *dynamodb.ScanInput) ([]map[string]types.AttributeValue, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewScanPaginator(a.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(opCtx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// BatchWrite submits requests against table in chunks of MaxBatchWrite, resubmitting
// unprocessed items a bounded number of times.
func (a *Adapter) BatchWrite(ctx context.Context, table string, requests []types.WriteRequest) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	for start := 0; start < len(requests); start += MaxBatchWrite {
		end := min(start+MaxBatchWrite, len(requests))
		pending := map[string][]types.WriteRequest{table: requests[start:end]}
		for round := 0; len(pending[table]) > 0; round++ {
			if round == maxUnprocessedRounds {
				return fmt.Errorf("batch write to %s: %d item(s) left unprocessed", table, len(pending[table]))
			}
			out, err := a.client.BatchWriteItem(opCtx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return fmt.Errorf("batch write to %s: %w", table, err)
			}
			pending = out.UnprocessedItems
			if pending == nil {
				break
			}
		}
	}
	return nil
}

func (a *Adapter) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}

func IsThrottlingError(err error) bool {
	if err == nil {
		return false
	}
	var pte *types.ProvisionedThroughputExceededException
	return errors.As(err, &pte)
}

// IsConditionFailed reports whether err is a failed ConditionExpression.
func IsConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
