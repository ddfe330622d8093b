// Package source defines where listings come from.
package source

import (
	"context"
	"errors"

	"github.com/fruitsalade/drivetracker/pkg/models"
)

// ErrFetch marks a failed listing fetch.
var ErrFetch = errors.New("fetch listing")

// Lister returns the complete current listing. The order of records is not
// significant.
type Lister interface {
	List(ctx context.Context) ([]models.FileRecord, error)
	Name() string
}

// ListerFunc adapts a function to Lister.
type ListerFunc func(ctx context.Context) ([]models.FileRecord, error)

// List calls f.
func (f ListerFunc) List(ctx context.Context) ([]models.FileRecord, error) {
	return f(ctx)
}

// Name implements Lister.
func (f ListerFunc) Name() string {
	return "func"
}
