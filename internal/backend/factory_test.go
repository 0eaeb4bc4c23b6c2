package backend

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"saldo/internal/config"
	"saldo/internal/events"
	"saldo/internal/kafka"
	sheetsmem "saldo/internal/sheets/memory"
	"saldo/internal/store"
)

func testFactory() Factory {
	return NewFactory(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"memory", Config{Type: MemoryBackend}, ""},
		{"sqlite without path", Config{Type: SQLiteBackend}, "SQLite database path"},
		{"postgres without url", Config{Type: PostgresBackend}, "Postgres URL"},
		{"mongo without uri", Config{Type: MongoBackend, MongoDatabase: "sum", MongoCollection: "entries"}, "MongoDB URI"},
		{"mongo without collection", Config{Type: MongoBackend, MongoURI: "mongodb://x"}, "database and collection"},
		{"unknown type", Config{Type: "sheets"}, "invalid backend type"},
		{"amqp incomplete", Config{Type: MemoryBackend, Events: AMQPEvents, AMQPURL: "amqp://x"}, "AMQP URL, exchange and queue"},
		{"kafka without brokers", Config{Type: MemoryBackend, Events: KafkaEvents, KafkaTopic: "t"}, "Kafka brokers"},
		{"unknown events", Config{Type: MemoryBackend, Events: "nats"}, "invalid events backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}

	app := &config.Config{
		DataBackend:     "mongo",
		MongoURI:        "mongodb://localhost:27017",
		MongoDatabase:   "sum",
		MongoCollection: "entries",
		EventsBackend:   "kafka",
		KafkaBrokers:    []string{"a:9092", "b:9092"},
		KafkaTopic:      "entry_recorded",
		Timezone:        "UTC",
		GoogleSheetName: "Ledger",
	}
	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Type != MongoBackend || cfg.Events != KafkaEvents || len(cfg.KafkaBrokers) != 2 || cfg.MongoCollection != "entries" {
		t.Fatalf("config = %+v", cfg)
	}
	if cfg.Location == nil || cfg.Location.String() != "UTC" {
		t.Fatalf("location = %v", cfg.Location)
	}
	if cfg.LegacyScope != "default" {
		t.Fatalf("legacy scope = %q, want default", cfg.LegacyScope)
	}

	app.AuthUsername = "alice"
	if cfg, err = FromAppConfig(app); err != nil || cfg.LegacyScope != "alice" {
		t.Fatalf("legacy scope with auth = %q, %v; want alice", cfg.LegacyScope, err)
	}
	app.AuthUsername = ""

	app.EventsBackend = "nats"
	if _, err := FromAppConfig(app); err == nil {
		t.Fatal("expected error for unknown events backend")
	}
}

func TestCreateStore_Memory(t *testing.T) {
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.json")
	data := `[{"id":"1","number":5,"comment":"old","date":"2020-01-01T00:00:00.000Z"}]`
	if err := os.WriteFile(seed, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	st, err := testFactory().CreateStore(context.Background(), Config{Type: MemoryBackend, MemorySeedFile: seed})
	if err != nil {
		t.Fatalf("CreateStore() error = %v", err)
	}
	defer st.Close()

	all, err := st.FindAll(context.Background(), store.DefaultScope)
	if err != nil || len(all) != 1 || !all[0].Operation.IsLegacy() {
		t.Fatalf("seeded entries = %+v, err = %v", all, err)
	}
}

func TestCreateStore_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "saldo.db")
	st, err := testFactory().CreateStore(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("CreateStore() error = %v", err)
	}
	defer st.Close()

	if err := st.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestCreateStore_InvalidConfig(t *testing.T) {
	if _, err := testFactory().CreateStore(context.Background(), Config{Type: PostgresBackend}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestCreatePublisher(t *testing.T) {
	f := testFactory()

	pub, err := f.CreatePublisher(Config{Events: NoEvents})
	if err != nil {
		t.Fatalf("CreatePublisher(none) error = %v", err)
	}
	if _, ok := pub.(events.NopPublisher); !ok {
		t.Fatalf("publisher = %T, want NopPublisher", pub)
	}

	pub, err = f.CreatePublisher(Config{Events: KafkaEvents, KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "t"})
	if err != nil {
		t.Fatalf("CreatePublisher(kafka) error = %v", err)
	}
	if _, ok := pub.(*kafka.Publisher); !ok {
		t.Fatalf("publisher = %T, want *kafka.Publisher", pub)
	}
	_ = pub.Close()
}

func TestCreateConsumer(t *testing.T) {
	f := testFactory()
	if _, err := f.CreateConsumer(Config{Events: NoEvents}); err == nil {
		t.Fatal("expected error for none")
	}
	c, err := f.CreateConsumer(Config{Events: KafkaEvents, KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "t", KafkaGroupID: "g"})
	if err != nil {
		t.Fatalf("CreateConsumer(kafka) error = %v", err)
	}
	_ = c.Close()
}

func TestCreateMirror_MemoryWithoutSpreadsheet(t *testing.T) {
	m, err := testFactory().CreateMirror(context.Background(), Config{})
	if err != nil {
		t.Fatalf("CreateMirror() error = %v", err)
	}
	if _, ok := m.(*sheetsmem.Store); !ok {
		t.Fatalf("mirror = %T", m)
	}
}
