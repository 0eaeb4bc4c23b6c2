package backend

import (
	"context"
	"fmt"
	"log/slog"

	"saldo/internal/amqp"
	"saldo/internal/events"
	"saldo/internal/kafka"
	"saldo/internal/sheets"
	gsheet "saldo/internal/sheets/google"
	sheetsmem "saldo/internal/sheets/memory"
	"saldo/internal/store"
	"saldo/internal/store/memory"
	"saldo/internal/store/mongo"
	"saldo/internal/store/postgres"
	"saldo/internal/store/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With("component", "backend"),
	}
}

// CreateStore implements Factory.CreateStore
func (f *DefaultFactory) CreateStore(ctx context.Context, config Config) (store.EntryStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		st, err := sqlite.Open(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
		return st, nil
	case PostgresBackend:
		st, err := postgres.Open(ctx, config.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
		}
		f.logger.Info("Initialized Postgres store")
		return st, nil
	case MongoBackend:
		st, err := mongo.Open(ctx, config.MongoURI, config.MongoDatabase, config.MongoCollection, config.LegacyScope)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MongoDB store: %w", err)
		}
		f.logger.Info("Initialized MongoDB store",
			"database", config.MongoDatabase,
			"collection", config.MongoCollection,
			"legacy_scope", config.LegacyScope)
		return st, nil
	case MemoryBackend:
		st, err := memory.NewFromFile(config.MemorySeedFile)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize memory store: %w", err)
		}
		f.logger.Info("Initialized memory store", "seed_file", config.MemorySeedFile)
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// CreatePublisher implements Factory.CreatePublisher
func (f *DefaultFactory) CreatePublisher(config Config) (events.Publisher, error) {
	if err := config.validateEvents(); err != nil {
		return nil, err
	}

	switch config.Events {
	case AMQPEvents:
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
		}
		f.logger.Info("Initialized AMQP publisher",
			"exchange", config.AMQPExchange,
			"queue", config.AMQPQueue)
		return client, nil
	case KafkaEvents:
		f.logger.Info("Initialized Kafka publisher",
			"brokers", config.KafkaBrokers,
			"topic", config.KafkaTopic)
		return kafka.NewPublisher(config.KafkaBrokers, config.KafkaTopic), nil
	default:
		return events.NopPublisher{}, nil
	}
}

// CreateConsumer implements Factory.CreateConsumer
func (f *DefaultFactory) CreateConsumer(config Config) (events.Consumer, error) {
	if err := config.validateEvents(); err != nil {
		return nil, err
	}

	switch config.Events {
	case AMQPEvents:
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
		}
		return client, nil
	case KafkaEvents:
		return kafka.NewConsumer(config.KafkaBrokers, config.KafkaTopic, config.KafkaGroupID), nil
	default:
		return nil, fmt.Errorf("events backend %q cannot be consumed", config.Events)
	}
}

// CreateMirror implements Factory.CreateMirror
func (f *DefaultFactory) CreateMirror(ctx context.Context, config Config) (sheets.Mirror, error) {
	if config.GoogleSpreadsheetID == "" {
		f.logger.Warn("No GOOGLE_SPREADSHEET_ID provided, mirroring to memory")
		return sheetsmem.New(), nil
	}

	cli, err := gsheet.New(ctx, config.GoogleSpreadsheetID, config.GoogleSheetName, config.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets mirror",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"sheet", config.GoogleSheetName)
	return cli, nil
}
