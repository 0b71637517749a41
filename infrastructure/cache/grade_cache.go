package cache

import (
	"sort"
	"sync"

	"clamflow/models"
)

// GradeCache holds the product grade catalogue for listing screens.
// Writers call Invalidate after committing grade changes.
type GradeCache struct {
	mu     sync.RWMutex
	grades []models.ProductGrade
	loaded bool
}

func NewGradeCache() *GradeCache {
	return &GradeCache{}
}

// Get returns a copy of the cached grades, optionally filtered by product type.
func (c *GradeCache) Get(productType models.ProductType) ([]models.ProductGrade, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded {
		return nil, false
	}
	out := make([]models.ProductGrade, 0, len(c.grades))
	for _, g := range c.grades {
		if productType == "" || g.ProductType == productType {
			out = append(out, g)
		}
	}
	return out, true
}

func (c *GradeCache) Set(grades []models.ProductGrade) {
	sorted := append([]models.ProductGrade(nil), grades...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ProductType != sorted[j].ProductType {
			return sorted[i].ProductType > sorted[j].ProductType
		}
		return sorted[i].Code < sorted[j].Code
	})
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grades = sorted
	c.loaded = true
}

func (c *GradeCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grades = nil
	c.loaded = false
}
