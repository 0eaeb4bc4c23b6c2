package backend

import (
	"fmt"

	"saldo/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}
	eventsType := EventsType(appConfig.EventsBackend)
	if !eventsType.IsValid() {
		return Config{}, fmt.Errorf("invalid events backend in config: %s", appConfig.EventsBackend)
	}

	loc, err := appConfig.Location()
	if err != nil {
		return Config{}, fmt.Errorf("ledger timezone: %w", err)
	}

	return Config{
		Type: backendType,

		SQLiteDBPath:    appConfig.SQLiteDBPath,
		PostgresURL:     appConfig.PostgresURL,
		MongoURI:        appConfig.MongoURI,
		MongoDatabase:   appConfig.MongoDatabase,
		MongoCollection: appConfig.MongoCollection,
		MemorySeedFile:  appConfig.MemorySeedFile,
		LegacyScope:     appConfig.ResolvedLegacyScope(),

		Events:       eventsType,
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
		KafkaBrokers: appConfig.KafkaBrokers,
		KafkaTopic:   appConfig.KafkaTopic,
		KafkaGroupID: appConfig.KafkaGroupID,

		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		GoogleSheetName:     appConfig.GoogleSheetName,
		Location:            loc,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.PostgresURL == "" {
			return fmt.Errorf("Postgres URL is required for postgres backend")
		}
	case MongoBackend:
		if c.MongoURI == "" {
			return fmt.Errorf("MongoDB URI is required for mongo backend")
		}
		if c.MongoDatabase == "" || c.MongoCollection == "" {
			return fmt.Errorf("MongoDB database and collection are required for mongo backend")
		}
	case MemoryBackend:
		// Seed file is optional
	}

	return c.validateEvents()
}

func (c Config) validateEvents() error {
	switch c.Events {
	case NoEvents, "":
	case AMQPEvents:
		if c.AMQPURL == "" || c.AMQPExchange == "" || c.AMQPQueue == "" {
			return fmt.Errorf("AMQP URL, exchange and queue are required for amqp events")
		}
	case KafkaEvents:
		if len(c.KafkaBrokers) == 0 || c.KafkaTopic == "" {
			return fmt.Errorf("Kafka brokers and topic are required for kafka events")
		}
	default:
		return fmt.Errorf("invalid events backend: %s", c.Events)
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, PostgresBackend, MongoBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}
