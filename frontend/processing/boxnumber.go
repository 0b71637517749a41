package processing

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"clamflow/models"
)

const maxBoxNumberAttempts = 1000

// BoxNumberer hands out box numbers that are unique for the life of the process.
type BoxNumberer struct {
	mu     sync.Mutex
	issued map[string]struct{}
	randN  func(n int) int
}

func NewBoxNumberer() *BoxNumberer {
	return &BoxNumberer{issued: make(map[string]struct{}), randN: rand.IntN}
}

// Next returns a fresh number such as SO048213 for shell-on or CM771020 for meat.
func (b *BoxNumberer) Next(t models.ProductType) (string, error) {
	prefix := t.BoxPrefix()
	if prefix == "" {
		return "", fmt.Errorf("unknown product type %q", t)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for range maxBoxNumberAttempts {
		n := fmt.Sprintf("%s%06d", prefix, b.randN(1_000_000))
		if _, taken := b.issued[n]; taken {
			continue
		}
		b.issued[n] = struct{}{}
		return n, nil
	}
	return "", fmt.Errorf("box numbers for %s exhausted", t)
}
