package discount

import (
	"context"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
)

const (
	indexMinCapacity = 1024
	indexFPR         = 0.001
)

// CodeIndex is a probabilistic set of known discount codes. A negative answer
// is definite only as of the last Load: codes created since then are missing
// until they are added or the index is refreshed.
// Until the first Load every code is reported as possibly present.
type CodeIndex struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewCodeIndex returns an empty, unloaded index.
func NewCodeIndex() *CodeIndex {
	return &CodeIndex{}
}

// Load replaces the indexed set with codes.
func (i *CodeIndex) Load(codes []string) {
	n := uint(len(codes))
	if n < indexMinCapacity {
		n = indexMinCapacity
	}
	f := bloom.NewWithEstimates(n, indexFPR)
	for _, c := range codes {
		f.AddString(c)
	}

	i.mu.Lock()
	i.filter = f
	i.mu.Unlock()
}

// Add records code in a loaded index. It is a no-op before the first Load.
func (i *CodeIndex) Add(code string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.filter != nil {
		i.filter.AddString(code)
	}
}

// Refresh reloads the index from the repository.
func (i *CodeIndex) Refresh(ctx context.Context, repo Repository) error {
	codes, err := repo.ListCodes(ctx)
	if err != nil {
		return errors.Wrap(err, "list discount codes")
	}
	i.Load(codes)
	return nil
}

// MayContain reports whether code could be a known discount code.
func (i *CodeIndex) MayContain(code string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.filter == nil {
		return true
	}
	return i.filter.TestString(code)
}
