package session

import "time"

// Options holds the recognized session/transaction option keys. It is
// loadable from viper (mapstructure tags) and also passed by value down
// through StartSession / StartImplicitSession / WithTransaction.
type Options struct {
	// CausalConsistency enables afterClusterTime read-concern pinning.
	// Defaults to false.
	CausalConsistency bool `mapstructure:"causal-consistency"`

	// MaxCommitTimeMS is forwarded as maxTimeMS on the commit command.
	// Zero means "not set" (the key is dropped, not sent as 0).
	MaxCommitTimeMS int32 `mapstructure:"max-commit-time-ms"`

	// W, WTimeoutMS and J assemble the writeConcern subdocument attached to
	// commit/abort commands. With W nil, WTimeoutMS zero and J nil, no write
	// concern is configured.
	W          any           `mapstructure:"w"`
	WTimeoutMS int64         `mapstructure:"w-timeout-ms"`
	J          *bool         `mapstructure:"j"`

	// Session, when set, is an already-checked-out SSM. start_implicit_session
	// returns it verbatim instead of checking out a new one.
	Session *SSM `mapstructure:"-"`
}

// HasWriteConcern reports whether any write-concern field was configured.
func (o Options) HasWriteConcern() bool {
	return o.W != nil || o.WTimeoutMS != 0 || o.J != nil
}

// maxCommitTimeout returns the configured max_commit_time_ms as a
// time.Duration, or zero if unset.
func (o Options) maxCommitTimeout() time.Duration {
	if o.MaxCommitTimeMS <= 0 {
		return 0
	}
	return time.Duration(o.MaxCommitTimeMS) * time.Millisecond
}
