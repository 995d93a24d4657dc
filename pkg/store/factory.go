package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nimburion/docprobe/pkg/config"
	"github.com/nimburion/docprobe/pkg/observability/logger"
	"github.com/nimburion/docprobe/pkg/repository/document"
	"github.com/nimburion/docprobe/pkg/store/dynamodb"
	"github.com/nimburion/docprobe/pkg/store/mongodb"
)

// NewDocumentAdapter connects to the store selected by cfg.Type and binds it to
// cfg.Collection. For DynamoDB the table is created when missing.
func NewDocumentAdapter(cfg config.StoreConfig, log logger.Logger) (document.Adapter, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case config.StoreTypeMemory:
		log.Info("Using in-memory document store", "collection", cfg.Collection)
		return document.NewMemoryAdapter(), nil
	case config.StoreTypeMongoDB:
		adapter, err := mongodb.NewAdapter(mongodb.Config{
			URL:              cfg.URL,
			Database:         cfg.Database,
			Username:         cfg.Username,
			Password:         cfg.Password,
			ConnectTimeout:   cfg.ConnectTimeout,
			OperationTimeout: cfg.OperationTimeout,
		}, log)
		if err != nil {
			return nil, err
		}
		docs, err := document.NewMongoAdapter(adapter, cfg.Collection)
		if err != nil {
			_ = adapter.Close()
			return nil, err
		}
		return docs, nil
	case config.StoreTypeDynamoDB:
		adapter, err := dynamodb.NewAdapter(dynamodb.Config{
			Region:           cfg.Region,
			Endpoint:         cfg.Endpoint,
			AccessKeyID:      cfg.AccessKeyID,
			SecretAccessKey:  cfg.SecretAccessKey,
			SessionToken:     cfg.SessionToken,
			OperationTimeout: cfg.OperationTimeout,
		}, log)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout(cfg))
		defer cancel()
		if err := adapter.EnsureTable(ctx, cfg.Collection, document.IDField); err != nil {
			_ = adapter.Close()
			return nil, err
		}
		docs, err := document.NewDynamoAdapter(adapter, cfg.Collection)
		if err != nil {
			_ = adapter.Close()
			return nil, err
		}
		return docs, nil
	default:
		return nil, fmt.Errorf("unsupported store.type %q (supported: memory, mongodb, dynamodb)", cfg.Type)
	}
}

func connectTimeout(cfg config.StoreConfig) time.Duration {
	if cfg.ConnectTimeout > 0 {
		return cfg.ConnectTimeout
	}
	return time.Minute
}
