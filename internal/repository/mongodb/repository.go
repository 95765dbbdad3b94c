package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/assetscan/internal/domain/models"
)

const (
	scanEventsCollection = "scan_events"
	snapshotsCollection  = "progress_snapshots"
)

// MongoDBRepository records scan events and progress snapshots in MongoDB.
type MongoDBRepository struct {
	client *mongo.Client
	dbName string
}

// NewMongoDBRepository creates a new MongoDB repository.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{
		client: client,
		dbName: dbName,
	}, nil
}

// RecordScan stores one processed submission.
func (r *MongoDBRepository) RecordScan(ctx context.Context, event models.ScanEvent) error {
	if _, err := r.collection(scanEventsCollection).InsertOne(ctx, event); err != nil {
		return fmt.Errorf("failed to insert scan event: %w", err)
	}
	return nil
}

// RecordProgress stores a progress snapshot.
func (r *MongoDBRepository) RecordProgress(ctx context.Context, snapshot models.ProgressSnapshot) error {
	if _, err := r.collection(snapshotsCollection).InsertOne(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to insert progress snapshot: %w", err)
	}
	return nil
}

// RecentScans returns up to limit scan events, newest first.
func (r *MongoDBRepository) RecentScans(ctx context.Context, limit int) ([]models.ScanEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "scanned_at", Value: -1}}).SetLimit(int64(limit))
	cursor, err := r.collection(scanEventsCollection).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []models.ScanEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode scan events: %w", err)
	}
	return events, nil
}

// LatestProgress returns the most recent snapshot, or false when none exist.
func (r *MongoDBRepository) LatestProgress(ctx context.Context) (models.ProgressSnapshot, bool, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "taken_at", Value: -1}})

	var snapshot models.ProgressSnapshot
	err := r.collection(snapshotsCollection).FindOne(ctx, bson.D{}, opts).Decode(&snapshot)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ProgressSnapshot{}, false, nil
	}
	if err != nil {
		return models.ProgressSnapshot{}, false, fmt.Errorf("failed to query progress snapshot: %w", err)
	}
	return snapshot, true, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *MongoDBRepository) collection(name string) *mongo.Collection {
	return r.client.Database(r.dbName).Collection(name)
}
