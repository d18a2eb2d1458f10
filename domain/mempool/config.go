package mempool

import (
	"time"

	"github.com/ledgerkit/ledgerd/domain/chaincfg"
	"github.com/ledgerkit/ledgerd/util"
)

const (
	// DefaultMaxOrphanTxs is the default number of orphan transactions
	// kept in the orphan pool.
	DefaultMaxOrphanTxs = 100

	// DefaultMaxOrphanTxSize is the default maximum size for an orphan
	// transaction.
	DefaultMaxOrphanTxSize = 100000

	defaultOrphanTTL                = 15 * time.Minute
	defaultOrphanExpireScanInterval = 5 * time.Minute
)

// Config is a descriptor containing the memory pool configuration.
type Config struct {
	// Params identifies which chain parameters the mempool is associated
	// with.
	Params *chaincfg.Params

	// MaxOrphanTxs is the maximum number of orphan transactions that can
	// be queued.
	MaxOrphanTxs int

	// MaxOrphanTxSize is the maximum size allowed for orphan transactions.
	// This helps prevent memory exhaustion attacks from sending a lot of
	// big orphans.
	MaxOrphanTxSize int

	// OrphanTTL is how long an orphan transaction stays in the orphan
	// pool before it is expired, and OrphanExpireScanInterval is the
	// minimum time between scans for expired orphans.
	OrphanTTL                time.Duration
	OrphanExpireScanInterval time.Duration

	// AcceptNonStd defines whether to accept non-standard transactions.
	// If true, non-standard transactions will be accepted into the
	// mempool. Otherwise, all non-standard transactions will be rejected.
	AcceptNonStd bool

	// MinRelayTxFee defines the minimum transaction fee in satoshi/kB to
	// be considered a non-zero fee.
	MinRelayTxFee util.Amount

	// DisableRelayPriority defines whether to relay free or low-fee
	// transactions that do not have enough priority to be relayed.
	DisableRelayPriority bool
}

// DefaultConfig returns the default mempool configuration for the given
// network.
func DefaultConfig(params *chaincfg.Params) *Config {
	return &Config{
		Params:                   params,
		MaxOrphanTxs:             DefaultMaxOrphanTxs,
		MaxOrphanTxSize:          DefaultMaxOrphanTxSize,
		OrphanTTL:                defaultOrphanTTL,
		OrphanExpireScanInterval: defaultOrphanExpireScanInterval,
		AcceptNonStd:             params.RelayNonStdTxs,
		MinRelayTxFee:            DefaultMinRelayTxFee,
	}
}
