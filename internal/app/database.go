// Package app provides database initialization and setup.
package app

import (
	"context"
	"time"

	"github.com/guttosm/entity-gateway/config"
	"github.com/guttosm/entity-gateway/internal/circuitbreaker"
	"github.com/guttosm/entity-gateway/internal/domain/model"
	"github.com/guttosm/entity-gateway/internal/repository"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
)

// Collection names of the entity types.
const (
	TransactionsCollection = "transactions"
	CategoriesCollection   = "categories"
	GoalsCollection        = "goals"
)

// Repositories holds the persistence collaborator of every entity type.
type Repositories struct {
	Transactions repository.Repository[model.Transaction]
	Categories   repository.Repository[model.Category]
	Goals        repository.Repository[model.Goal]

	// DB and CircuitBreakers are set only when MongoDB is in use.
	DB              *repository.MongoDB
	CircuitBreakers map[string]*circuitbreaker.CircuitBreaker
}

// InitializeRepositories connects to MongoDB when enabled and wraps each
// collection in a circuit breaker. When MongoDB is disabled or unreachable
// the in-memory repositories are used.
func InitializeRepositories(cfg config.DatabaseConfig) *Repositories {
	if cfg.Enabled {
		repos, err := mongoRepositories(cfg)
		if err == nil {
			log.Info().Msg("Connected to MongoDB")
			return repos
		}
		log.Error().Err(err).Msg("Failed to connect to MongoDB - continuing with in-memory repositories")
	}

	return &Repositories{
		Transactions: repository.NewMemoryRepository[model.Transaction](),
		Categories:   repository.NewMemoryRepository[model.Category](),
		Goals:        repository.NewMemoryRepository[model.Goal](),
	}
}

func mongoRepositories(cfg config.DatabaseConfig) (*Repositories, error) {
	db, err := repository.NewMongoDB(cfg.URI, cfg.DatabaseName)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repos := &Repositories{DB: db, CircuitBreakers: make(map[string]*circuitbreaker.CircuitBreaker)}

	transactions, err := mongoCollection[model.Transaction](ctx, db, cfg, repos, TransactionsCollection,
		repository.Index("user_id", "date"), repository.Index("category_id"))
	if err != nil {
		_ = db.Close(context.Background())
		return nil, err
	}
	categories, err := mongoCollection[model.Category](ctx, db, cfg, repos, CategoriesCollection,
		repository.Index("user_id"))
	if err != nil {
		_ = db.Close(context.Background())
		return nil, err
	}
	goals, err := mongoCollection[model.Goal](ctx, db, cfg, repos, GoalsCollection,
		repository.Index("user_id", "status"))
	if err != nil {
		_ = db.Close(context.Background())
		return nil, err
	}

	repos.Transactions = transactions
	repos.Categories = categories
	repos.Goals = goals
	return repos, nil
}

func mongoCollection[T repository.Entity](
	ctx context.Context,
	db *repository.MongoDB,
	cfg config.DatabaseConfig,
	repos *Repositories,
	collection string,
	indexes ...mongo.IndexModel,
) (repository.Repository[T], error) {
	repo, err := repository.NewMongoRepository[T](ctx, db, collection, indexes...)
	if err != nil {
		return nil, err
	}

	name := "mongodb-" + collection
	wrapped := repository.WithCircuitBreaker[T](repo, circuitbreaker.Config{
		FailureThreshold: cfg.CircuitBreakerFailureThreshold,
		SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
		Timeout:          cfg.CircuitBreakerTimeout,
		Name:             name,
	})
	repos.CircuitBreakers[name] = wrapped.CircuitBreaker()
	return wrapped, nil
}

// Close disconnects from MongoDB if connected.
func (r *Repositories) Close(ctx context.Context) error {
	if r.DB == nil {
		return nil
	}
	return r.DB.Close(ctx)
}
