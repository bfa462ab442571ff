package voices

import "sync"

// EmbeddingCache holds speaker embeddings keyed by voice id. Entries live in
// host memory and outlast the model that produced them.
type EmbeddingCache struct {
	mu sync.RWMutex
	m  map[string][]float32
}

func NewEmbeddingCache() *EmbeddingCache {
	return &EmbeddingCache{m: make(map[string][]float32)}
}

func (c *EmbeddingCache) Get(voice string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.m[voice]
	return e, ok
}

// Put stores a copy of emb.
func (c *EmbeddingCache) Put(voice string, emb []float32) {
	cp := append([]float32(nil), emb...)
	c.mu.Lock()
	c.m[voice] = cp
	c.mu.Unlock()
}

func (c *EmbeddingCache) Delete(voice string) {
	c.mu.Lock()
	delete(c.m, voice)
	c.mu.Unlock()
}

func (c *EmbeddingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
