package manager

import (
	"time"
)

// Config holds the topology pool and retry tuning for a Manager, loaded
// from viper under the "session" key.
type Config struct {
	// CheckoutLimit bounds concurrent in-flight session checkouts.
	CheckoutLimit int `mapstructure:"checkout-limit"`
	// CheckoutTimeout bounds how long a checkout waits for a bulkhead slot.
	CheckoutTimeout time.Duration `mapstructure:"checkout-timeout"`
	// MaxCheckoutRetries caps retries on a reshuffled connection so checkout
	// does not retry forever.
	MaxCheckoutRetries uint64 `mapstructure:"max-checkout-retries"`
	// CausalConsistency is loaded from config but not applied by NewModule:
	// causal consistency is taken only from the per-call session.Options.
	CausalConsistency bool `mapstructure:"causal-consistency"`
}

func (c *Config) applyDefaults() {
	if c.CheckoutLimit == 0 {
		c.CheckoutLimit = 100
	}
	if c.CheckoutTimeout == 0 {
		c.CheckoutTimeout = 5 * time.Second
	}
	if c.MaxCheckoutRetries == 0 {
		c.MaxCheckoutRetries = 3
	}
}
