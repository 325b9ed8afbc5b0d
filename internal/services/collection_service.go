package services

import (
	"context"
	"errors"

	"github.com/vectra-io/vectra/internal/core"
	"github.com/vectra-io/vectra/internal/models"
)

// CollectionService fronts the collection registry. All operations are
// scoped to the authenticated caller; ownership filtering happens in the
// store, so nothing here can see another user's collections.
type CollectionService struct {
	db core.DbClient
}

func NewCollectionService(db core.DbClient) *CollectionService {
	return &CollectionService{db: db}
}

func (s *CollectionService) List(ctx context.Context, userID string) ([]models.Collection, error) {
	return s.db.ListCollections(ctx, userID)
}

func (s *CollectionService) Get(ctx context.Context, userID, idOrName string) (*models.Collection, error) {
	return s.db.GetCollection(ctx, userID, idOrName)
}

func (s *CollectionService) Create(ctx context.Context, userID, name string, metadata map[string]any) (*models.Collection, error) {
	if name == "" {
		return nil, errors.New("collection name is required")
	}
	return s.db.CreateCollection(ctx, userID, name, metadata)
}

func (s *CollectionService) Update(ctx context.Context, userID, id string, newName *string, metadata map[string]any) (*models.Collection, error) {
	return s.db.UpdateCollection(ctx, userID, id, newName, metadata)
}

func (s *CollectionService) Delete(ctx context.Context, userID, id string) (int64, error) {
	return s.db.DeleteCollection(ctx, userID, id)
}
