package taxonomy

import (
	"context"

	"github.com/dmitrijs2005/contentkeeper/internal/server/models"
)

// Repository stores the terms of one taxonomy (categories or tags).
type Repository interface {
	Create(ctx context.Context, term *models.Term) error
	List(ctx context.Context) ([]models.Term, error)
	Delete(ctx context.Context, id string) error
}
