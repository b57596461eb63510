// Package app provides gateway initialization.
package app

import (
	"fmt"

	"github.com/guttosm/entity-gateway/internal/cache"
	"github.com/guttosm/entity-gateway/internal/domain/model"
	"github.com/guttosm/entity-gateway/internal/gateway"
	"github.com/guttosm/entity-gateway/internal/http"
	"github.com/guttosm/entity-gateway/internal/query"
	"github.com/guttosm/entity-gateway/internal/repository"
)

// Gateways holds the entity gateway of every entity type.
type Gateways struct {
	Transactions *gateway.Gateway[model.Transaction]
	Categories   *gateway.Gateway[model.Category]
	Goals        *gateway.Gateway[model.Goal]
}

// InitializeGateways builds one gateway per registered entity type.
func InitializeGateways(c *CacheComponents, repos *Repositories) (*Gateways, error) {
	transactions, err := newGateway(c, model.TypeTransaction, repos.Transactions)
	if err != nil {
		return nil, err
	}
	categories, err := newGateway(c, model.TypeCategory, repos.Categories)
	if err != nil {
		return nil, err
	}
	goals, err := newGateway(c, model.TypeGoal, repos.Goals)
	if err != nil {
		return nil, err
	}
	return &Gateways{Transactions: transactions, Categories: categories, Goals: goals}, nil
}

func newGateway[T query.Record](c *CacheComponents, entityType string, repo repository.Repository[T]) (*gateway.Gateway[T], error) {
	cfg, ok := c.Engine.Registry().Lookup(entityType)
	if !ok {
		return nil, fmt.Errorf("entity type %q is not registered", entityType)
	}

	var codec cache.Codec[T] = cache.JSONCodec[T]{}
	if c.Binary {
		codec = cache.BSONCodec[T]{}
	}
	return gateway.New(cfg, repo, c.Store, c.Engine, codec)
}

// Routes returns the API route groups of every gateway plus the cache admin routes.
func (g *Gateways) Routes(c *CacheComponents) []http.RouteGroup {
	return []http.RouteGroup{
		http.NewEntityHandler(g.Transactions, model.SearchFields[model.TypeTransaction]),
		http.NewEntityHandler(g.Categories, model.SearchFields[model.TypeCategory]),
		http.NewEntityHandler(g.Goals, model.SearchFields[model.TypeGoal]),
		http.NewCacheHandler(c.Engine, g.Transactions, g.Categories, g.Goals),
	}
}
