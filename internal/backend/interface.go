package backend

import (
	"context"
	"time"

	"saldo/internal/events"
	"saldo/internal/sheets"
	"saldo/internal/store"
)

// Factory creates the process-wide adapters from configuration. Every
// returned value owns its connections and must be closed by the caller.
type Factory interface {
	// CreateStore opens the entry store selected by config.Type.
	CreateStore(ctx context.Context, config Config) (store.EntryStore, error)
	// CreatePublisher returns the event publisher selected by config.Events.
	CreatePublisher(config Config) (events.Publisher, error)
	// CreateConsumer returns the event consumer selected by config.Events.
	CreateConsumer(config Config) (events.Consumer, error)
	// CreateMirror returns the spreadsheet mirror used by the worker.
	CreateMirror(ctx context.Context, config Config) (sheets.Mirror, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Entry store
	Type BackendType

	SQLiteDBPath    string
	PostgresURL     string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	MemorySeedFile  string
	// LegacyScope is the scope that reads documents stored without one.
	LegacyScope string

	// Event bus
	Events EventsType

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Google Sheets mirror. An empty spreadsheet ID selects the in-memory mirror.
	GoogleSpreadsheetID string
	GoogleSheetName     string
	// Location is the zone mirrored dates are written in.
	Location *time.Location
}

// BackendType represents the type of entry store
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MongoBackend    BackendType = "mongo"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend, MongoBackend:
		return true
	default:
		return false
	}
}

// EventsType selects the event bus.
type EventsType string

const (
	NoEvents    EventsType = "none"
	AMQPEvents  EventsType = "amqp"
	KafkaEvents EventsType = "kafka"
)

func (et EventsType) String() string {
	return string(et)
}

func (et EventsType) IsValid() bool {
	switch et {
	case NoEvents, AMQPEvents, KafkaEvents:
		return true
	default:
		return false
	}
}
