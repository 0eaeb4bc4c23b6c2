// Package mongo stores ledger entries as documents, compatible with
// collections written before entries carried an operation or a scope.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"saldo/internal/core"
	"saldo/internal/store"
)

type Store struct {
	client      *mongo.Client
	coll        *mongo.Collection
	legacyScope string
}

// document is the stored shape. id, number and date are read raw because
// older documents hold numeric ids, double amounts or BSON dates.
type document struct {
	ObjectID  primitive.ObjectID `bson:"_id,omitempty"`
	ID        bson.RawValue      `bson:"id"`
	Scope     string             `bson:"scope,omitempty"`
	Number    bson.RawValue      `bson:"number"`
	Operation string             `bson:"operation,omitempty"`
	Comment   string             `bson:"comment"`
	Date      bson.RawValue      `bson:"date"`
}

type newDocument struct {
	ID        string               `bson:"id"`
	Scope     string               `bson:"scope"`
	Number    primitive.Decimal128 `bson:"number"`
	Operation string               `bson:"operation,omitempty"`
	Comment   string               `bson:"comment"`
	Date      string               `bson:"date"`
}

// Open connects to uri and prepares database/collection. Documents without a
// scope are read as belonging to legacyScope; empty means store.DefaultScope.
func Open(ctx context.Context, uri, database, collection, legacyScope string) (*Store, error) {
	if legacyScope == "" {
		legacyScope = store.DefaultScope
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "scope", Value: 1}, {Key: "date", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &Store{client: client, coll: coll, legacyScope: legacyScope}, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Insert(ctx context.Context, scope string, e core.Entry) error {
	number, err := primitive.ParseDecimal128(e.Number.String())
	if err != nil {
		return fmt.Errorf("encode number %s: %w", e.Number, err)
	}
	doc := newDocument{
		ID:        e.ID,
		Scope:     scope,
		Number:    number,
		Operation: string(e.Operation),
		Comment:   e.Comment,
		Date:      core.FormatDate(e.Date),
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

func (s *Store) FindAll(ctx context.Context, scope string) ([]core.Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	return s.find(ctx, scope, opts)
}

func (s *Store) FindAllSortedByDateDesc(ctx context.Context, scope string) ([]core.Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}})
	entries, err := s.find(ctx, scope, opts)
	if err != nil {
		return nil, err
	}
	// BSON orders strings and dates apart; re-sort on parsed time, keeping _id order for ties.
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Date.After(entries[j].Date) })
	return entries, nil
}

func (s *Store) find(ctx context.Context, scope string, opts *options.FindOptions) ([]core.Entry, error) {
	cur, err := s.coll.Find(ctx, scopeFilter(scope, s.legacyScope), opts)
	if err != nil {
		return nil, fmt.Errorf("find entries: %w", err)
	}
	defer cur.Close(ctx)

	entries := []core.Entry{}
	for cur.Next(ctx) {
		var doc document
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode entry: %w", err)
		}
		e, err := doc.entry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// scopeFilter matches the scope; legacyScope also owns documents written
// without one.
func scopeFilter(scope, legacyScope string) bson.M {
	if scope == legacyScope {
		return bson.M{"$or": bson.A{
			bson.M{"scope": scope},
			bson.M{"scope": bson.M{"$exists": false}},
		}}
	}
	return bson.M{"scope": scope}
}

func (d document) entry() (core.Entry, error) {
	id, err := idFromRaw(d.ID)
	if err != nil {
		return core.Entry{}, err
	}
	if id == "" {
		id = d.ObjectID.Hex()
	}
	number, err := numberFromRaw(d.Number)
	if err != nil {
		return core.Entry{}, fmt.Errorf("entry %s: %w", id, err)
	}
	date, err := dateFromRaw(d.Date)
	if err != nil {
		return core.Entry{}, fmt.Errorf("entry %s: %w", id, err)
	}
	op := core.Operation(d.Operation)
	if !op.Valid() {
		return core.Entry{}, fmt.Errorf("entry %s: unknown operation %q", id, d.Operation)
	}
	// Legacy documents were subtracted as signed values, so a negative one
	// was a credit.
	if number.IsNegative() && op.IsLegacy() {
		op = core.OperationAdd
	}
	return core.Entry{
		ID:        id,
		Number:    number.Abs(),
		Operation: op,
		Comment:   d.Comment,
		Date:      date,
	}, nil
}

func idFromRaw(rv bson.RawValue) (string, error) {
	switch rv.Type {
	case 0, bson.TypeNull, bson.TypeUndefined:
		return "", nil
	case bson.TypeString:
		return rv.StringValue(), nil
	case bson.TypeInt32:
		return strconv.FormatInt(int64(rv.Int32()), 10), nil
	case bson.TypeInt64:
		return strconv.FormatInt(rv.Int64(), 10), nil
	case bson.TypeDouble:
		return strconv.FormatFloat(rv.Double(), 'f', -1, 64), nil
	case bson.TypeObjectID:
		return rv.ObjectID().Hex(), nil
	}
	return "", fmt.Errorf("unsupported id type %s", rv.Type)
}

// numberFromRaw reads any numeric representation as a signed decimal.
func numberFromRaw(rv bson.RawValue) (decimal.Decimal, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch rv.Type {
	case bson.TypeDecimal128:
		d, err = decimal.NewFromString(rv.Decimal128().String())
	case bson.TypeDouble:
		f := rv.Double()
		if math.IsNaN(f) {
			return decimal.Zero, errors.New("number is NaN")
		}
		if math.IsInf(f, 0) {
			return decimal.Zero, errors.New("number is infinite")
		}
		d = decimal.NewFromFloat(f)
	case bson.TypeInt32:
		d = decimal.NewFromInt32(rv.Int32())
	case bson.TypeInt64:
		d = decimal.NewFromInt(rv.Int64())
	case bson.TypeString:
		d, err = decimal.NewFromString(rv.StringValue())
	default:
		return decimal.Zero, fmt.Errorf("unsupported number type %s", rv.Type)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse number: %w", err)
	}
	return d, nil
}

func dateFromRaw(rv bson.RawValue) (time.Time, error) {
	switch rv.Type {
	case bson.TypeString:
		return core.ParseDate(rv.StringValue())
	case bson.TypeDateTime:
		return rv.Time().UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unsupported date type %s", rv.Type)
}
