package provider

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/tradermind/internal/types"
	"github.com/rxtech-lab/tradermind/pkg/errors"
)

// Universe resolves a dataset key to the symbols it contains.
type Universe interface {
	Symbols(ctx context.Context, key types.DatasetKey) ([]string, error)
}

// StaticUniverse serves symbol lists from configuration.
type StaticUniverse struct {
	All    []string
	Groups map[string][]string
}

// NewStaticUniverse creates a universe from configured lists. When all is
// empty the all-symbols key resolves to the union of the groups.
func NewStaticUniverse(all []string, groups map[string][]string) *StaticUniverse {
	return &StaticUniverse{All: all, Groups: groups}
}

func (u *StaticUniverse) Symbols(_ context.Context, key types.DatasetKey) ([]string, error) {
	if key.Kind == types.DatasetAll {
		if len(u.All) > 0 {
			return slices.Clone(u.All), nil
		}

		seen := make(map[string]struct{})

		var union []string

		for _, symbols := range u.Groups {
			for _, s := range symbols {
				if _, ok := seen[s]; !ok {
					seen[s] = struct{}{}
					union = append(union, s)
				}
			}
		}

		slices.Sort(union)

		if len(union) == 0 {
			return nil, errors.New(errors.ErrCodeDataNotFound, "no symbols configured")
		}

		return union, nil
	}

	// groups are matched on their cache name, the same identity the cache uses
	var matched []string

	for _, name := range slices.Sorted(maps.Keys(u.Groups)) {
		if types.SymbolGroup(name).FileName() == key.FileName() {
			matched = append(matched, name)
		}
	}

	switch len(matched) {
	case 0:
		return nil, errors.Newf(errors.ErrCodeDataNotFound, "symbol group %q is not configured", key.Name)
	case 1:
		return slices.Clone(u.Groups[matched[0]]), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "symbol group %q is ambiguous: %s", key.Name, strings.Join(matched, ", "))
	}
}

// PolygonUniverse lists active stock tickers from Polygon for the
// all-symbols key and defers groups to a fallback universe.
type PolygonUniverse struct {
	apiClient PolygonAPIClient
	fallback  Universe
}

func NewPolygonUniverse(api PolygonAPIClient, fallback Universe) *PolygonUniverse {
	return &PolygonUniverse{apiClient: api, fallback: fallback}
}

func (u *PolygonUniverse) Symbols(ctx context.Context, key types.DatasetKey) ([]string, error) {
	if key.Kind != types.DatasetAll {
		if u.fallback == nil {
			return nil, errors.Newf(errors.ErrCodeDataNotFound, "symbol group %q is not configured", key.Name)
		}

		return u.fallback.Symbols(ctx, key)
	}

	//nolint:exhaustruct // optional filters set through the builder
	params := models.ListTickersParams{}.
		WithMarket(models.AssetStocks).
		WithActive(true).
		WithLimit(1000)

	iter := u.apiClient.ListTickers(ctx, params)

	var symbols []string
	for iter.Next() {
		symbols = append(symbols, iter.Item().Ticker)
	}

	if iter.Err() != nil {
		return nil, errors.Wrap(errors.ErrCodeDataUnavailable, "failed to list polygon tickers", iter.Err())
	}

	if len(symbols) == 0 {
		return nil, errors.New(errors.ErrCodeDataNotFound, "polygon returned no tickers")
	}

	return symbols, nil
}

// String is used in log fields.
func (u *StaticUniverse) String() string {
	return fmt.Sprintf("static(%d groups)", len(u.Groups))
}
