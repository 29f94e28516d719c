package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vibeloop/vibeloop/internal/domain"
)

// Catalog is a mutable in-memory badge and season catalog.
type Catalog struct {
	mu      sync.RWMutex
	order   []string
	badges  map[string]domain.BadgeDefinition
	seasons map[string]domain.SeasonalConfiguration
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		badges:  make(map[string]domain.BadgeDefinition),
		seasons: make(map[string]domain.SeasonalConfiguration),
	}
}

// UpsertBadge inserts or replaces a definition, keeping its original
// position on replace.
func (c *Catalog) UpsertBadge(_ context.Context, b domain.BadgeDefinition) error {
	if err := b.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.badges[b.ID]; !ok {
		c.order = append(c.order, b.ID)
	}
	c.badges[b.ID] = b
	return nil
}

// UpsertSeason inserts or replaces a season.
func (c *Catalog) UpsertSeason(_ context.Context, s domain.SeasonalConfiguration) error {
	if err := s.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seasons[s.SeasonID] = s
	return nil
}

// BadgeDefinitions returns definitions of type t, or all when t is empty.
func (c *Catalog) BadgeDefinitions(_ context.Context, t domain.BadgeType) ([]domain.BadgeDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []domain.BadgeDefinition
	for _, id := range c.order {
		b := c.badges[id]
		if t == "" || b.Type == t {
			out = append(out, b)
		}
	}
	return out, nil
}

// BadgeDetails looks up one definition.
func (c *Catalog) BadgeDetails(_ context.Context, badgeID string) (domain.BadgeDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.badges[badgeID]
	if !ok {
		return domain.BadgeDefinition{}, domain.ErrBadgeNotFound
	}
	return b, nil
}

// Seasons returns every season ordered by start date.
func (c *Catalog) Seasons(context.Context) ([]domain.SeasonalConfiguration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.SeasonalConfiguration, 0, len(c.seasons))
	for _, s := range c.seasons {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].SeasonID < out[j].SeasonID
		}
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out, nil
}

// CountBadges returns the number of definitions.
func (c *Catalog) CountBadges(context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.badges), nil
}
