package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/guttosm/entity-gateway/internal/errs"
	"github.com/guttosm/entity-gateway/internal/logger"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository stores one entity type in a MongoDB collection.
// Entities must map their id to the "_id" field.
type MongoRepository[T Entity] struct {
	collection *mongo.Collection
	log        zerolog.Logger
}

// NewMongoRepository creates a repository over collection and ensures the given indexes.
func NewMongoRepository[T Entity](ctx context.Context, db *MongoDB, collection string, indexes ...mongo.IndexModel) (*MongoRepository[T], error) {
	r := &MongoRepository[T]{
		collection: db.Collection(collection),
		log:        logger.Component("repository").With().Str("collection", collection).Logger(),
	}
	if len(indexes) > 0 {
		if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
			return nil, errs.Store("create indexes", err)
		}
	}
	return r, nil
}

// Index is a convenience for a non-unique ascending index on fields.
func Index(fields ...string) mongo.IndexModel {
	keys := bson.D{}
	for _, f := range fields {
		keys = append(keys, bson.E{Key: f, Value: 1})
	}
	return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(false)}
}

// Insert implements Repository.
func (r *MongoRepository[T]) Insert(ctx context.Context, entity T) (T, error) {
	var zero T
	if _, err := r.collection.InsertOne(ctx, entity); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return zero, errs.Store("insert", errors.Join(ErrDuplicateID, err))
		}
		return zero, errs.Store("insert", err)
	}
	return entity, nil
}

// SelectByID implements Repository.
func (r *MongoRepository[T]) SelectByID(ctx context.Context, id uuid.UUID) (T, error) {
	var entity T
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&entity)
	if errors.Is(err, mongo.ErrNoDocuments) {
		var zero T
		return zero, errs.ErrNotFound
	}
	if err != nil {
		var zero T
		return zero, errs.Store("select", err)
	}
	return entity, nil
}

// Update implements Repository.
func (r *MongoRepository[T]) Update(ctx context.Context, entity T) (T, error) {
	var zero T
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": entity.GetID()}, entity)
	if err != nil {
		return zero, errs.Store("update", err)
	}
	if res.MatchedCount == 0 {
		return zero, errs.ErrNotFound
	}
	return entity, nil
}

// Delete implements Repository.
func (r *MongoRepository[T]) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, errs.Store("delete", err)
	}
	return res.DeletedCount > 0, nil
}

// SelectCandidates implements Repository. Documents are returned in _id order.
func (r *MongoRepository[T]) SelectCandidates(ctx context.Context) ([]T, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, errs.Store("select candidates", err)
	}
	defer func() {
		if cerr := cursor.Close(ctx); cerr != nil {
			r.log.Warn().Err(cerr).Msg("Failed to close cursor")
		}
	}()

	var out []T
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errs.Store("decode candidates", err)
	}
	return out, nil
}

// Count implements Repository.
func (r *MongoRepository[T]) Count(ctx context.Context) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, errs.Store("count", err)
	}
	return n, nil
}

var _ Repository[Entity] = (*MongoRepository[Entity])(nil)
