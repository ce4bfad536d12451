package environment

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, env *Environment) error
	Update(ctx context.Context, env *Environment) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*Environment, error)
	FindAll(ctx context.Context, filters EnvironmentFilters) ([]Environment, error)
	MarkSynced(ctx context.Context, id string, at time.Time) error
}
