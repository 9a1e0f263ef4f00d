package gateway

import "sync"

// candidate is a provider eligible to serve a request, as seen by a
// selection strategy.
type candidate struct {
	name    string
	healthy bool
	// closed reports whether the provider's circuit breaker currently
	// admits requests
	closed bool
	// inputPrice is the catalog input cost per million tokens for the
	// requested model when served by this provider, 0 when unknown
	inputPrice float64
}

// selectionStrategy picks the provider for an attempt. natural is the
// provider the registry resolved for the model; candidates lists every
// registered provider able to serve it, in registration order.
type selectionStrategy interface {
	pick(natural string, candidates []candidate) string
}

// explicitStrategy always routes to the resolved provider, even when it
// is unhealthy. Failures surface to the caller instead of being routed
// around.
type explicitStrategy struct{}

func (explicitStrategy) pick(natural string, _ []candidate) string {
	return natural
}

// automaticStrategy prefers the resolved provider but steps to the
// first available candidate when it is unhealthy or its breaker is open.
type automaticStrategy struct{}

func (automaticStrategy) pick(natural string, candidates []candidate) string {
	for _, c := range candidates {
		if c.name == natural && c.healthy && c.closed {
			return natural
		}
	}
	for _, c := range candidates {
		if c.healthy && c.closed {
			return c.name
		}
	}
	return natural
}

// costOptimizedStrategy routes to the available candidate with the
// cheapest input pricing for the requested model, falling back to
// automatic selection when no candidate carries pricing.
type costOptimizedStrategy struct{}

func (costOptimizedStrategy) pick(natural string, candidates []candidate) string {
	best := ""
	bestPrice := 0.0
	for _, c := range candidates {
		if !c.healthy || !c.closed || c.inputPrice <= 0 {
			continue
		}
		if best == "" || c.inputPrice < bestPrice {
			best = c.name
			bestPrice = c.inputPrice
		}
	}
	if best != "" {
		return best
	}
	return automaticStrategy{}.pick(natural, candidates)
}

// loadBalancedStrategy distributes requests round-robin across available
// candidates.
type loadBalancedStrategy struct {
	mu   sync.Mutex
	next int
}

func (s *loadBalancedStrategy) pick(natural string, candidates []candidate) string {
	available := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.healthy && c.closed {
			available = append(available, c.name)
		}
	}
	if len(available) == 0 {
		return natural
	}

	s.mu.Lock()
	name := available[s.next%len(available)]
	s.next++
	s.mu.Unlock()
	return name
}
