package discogs

import "sync"

// ProviderRing is the failover rotation state: an ordered set of
// providers with a moving head. Rotation is sticky — after a rotation the
// new head serves subsequent calls too, so a dead local server does not
// get re-tried first on every message.
//
// Safe for concurrent use.
type ProviderRing struct {
	mu        sync.Mutex
	providers []Provider
	head      int
}

// NewProviderRing builds a ring over one or more providers in priority
// order. Panics on an empty list; assembly validates credentials first.
func NewProviderRing(providers ...Provider) *ProviderRing {
	if len(providers) == 0 {
		panic("discogs: ProviderRing requires at least one provider")
	}
	return &ProviderRing{providers: providers}
}

// Current returns the provider at the head of the ring.
func (r *ProviderRing) Current() Provider {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.providers[r.head]
}

// Rotate advances the head by one, wrapping around, and returns the new
// head. With a single provider it is a no-op.
func (r *ProviderRing) Rotate() Provider {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = (r.head + 1) % len(r.providers)
	return r.providers[r.head]
}

// Len returns the number of providers in the ring.
func (r *ProviderRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.providers)
}

// Names returns provider names starting from the current head, for logs.
func (r *ProviderRing) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.providers))
	for i := range r.providers {
		names[i] = r.providers[(r.head+i)%len(r.providers)].Name()
	}
	return names
}
