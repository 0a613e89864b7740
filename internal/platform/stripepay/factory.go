// Package stripepay adapts Stripe Checkout, Refunds, Subscriptions and
// webhooks to the gateway contract.
package stripepay

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/checkout/session"
	"github.com/stripe/stripe-go/v83/refund"
	"github.com/stripe/stripe-go/v83/subscription"
)

const defaultClientCacheSize = 16

// Clients is the set of Stripe API clients bound to one secret key.
type Clients struct {
	Sessions      session.Client
	Refunds       refund.Client
	Subscriptions subscription.Client
}

// ClientFactory hands out API clients per secret key. Clients are cached by
// a fingerprint of the key so the raw secret never becomes a map key.
type ClientFactory struct {
	mu      sync.Mutex
	backend stripe.Backend
	cache   *lru.Cache[string, *Clients]
}

// NewClientFactory builds a factory on backend; nil uses Stripe's API backend.
func NewClientFactory(backend stripe.Backend, size int) *ClientFactory {
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	if size <= 0 {
		size = defaultClientCacheSize
	}
	cache, err := lru.New[string, *Clients](size)
	if err != nil {
		// only fails for non-positive sizes, excluded above
		panic(err)
	}
	return &ClientFactory{backend: backend, cache: cache}
}

func Fingerprint(secretKey string) string {
	sum := sha256.Sum256([]byte(secretKey))
	return hex.EncodeToString(sum[:8])
}

func (f *ClientFactory) For(secretKey string) *Clients {
	fp := Fingerprint(secretKey)
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.cache.Get(fp); ok {
		return c
	}
	c := &Clients{
		Sessions:      session.Client{B: f.backend, Key: secretKey},
		Refunds:       refund.Client{B: f.backend, Key: secretKey},
		Subscriptions: subscription.Client{B: f.backend, Key: secretKey},
	}
	f.cache.Add(fp, c)
	return c
}

func (f *ClientFactory) Len() int { return f.cache.Len() }
