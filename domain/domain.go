package domain

import (
	"math/big"

	"github.com/ledgerkit/ledgerd/domain/blockchain"
	"github.com/ledgerkit/ledgerd/domain/mempool"
	"github.com/ledgerkit/ledgerd/domain/mining"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/ledgerkit/ledgerd/util/chainhash"
	"github.com/pkg/errors"
)

// Domain provides a reference to the domain's external apis
type Domain interface {
	Chain() *blockchain.BlockChain
	Mempool() *mempool.Mempool

	SubmitBlock(blockBytes []byte) (*SubmitResult, error)
	SubmitTransaction(txBytes []byte) (*SubmitResult, error)
	BestTip() (*BestTip, error)
	BlockLocator(hash *chainhash.Hash) (blockchain.BlockLocator, error)
	FindCommonAncestor(locator blockchain.BlockLocator) (*chainhash.Hash, error)
	Subscribe(callback blockchain.NotificationCallback)
	BlockTemplate(payToScript []byte) (*mining.BlockTemplate, error)
}

// Config is the configuration of a Domain. Mempool and Mining fall back to
// their defaults when nil.
type Config struct {
	Chain   *blockchain.Config
	Mempool *mempool.Config
	Mining  *mining.Policy
}

// SubmitStatus is the outcome of a submission.
type SubmitStatus int

const (
	// StatusAccepted means the block was stored or the transaction
	// entered the mempool.
	StatusAccepted SubmitStatus = iota

	// StatusRejected means the submission broke a rule. Reason and
	// RejectCode tell which.
	StatusRejected

	// StatusOrphan means the submission references a block or outputs
	// that are not known yet. It is kept until they arrive.
	StatusOrphan
)

var submitStatusStrings = map[SubmitStatus]string{
	StatusAccepted: "accepted",
	StatusRejected: "rejected",
	StatusOrphan:   "orphan",
}

func (status SubmitStatus) String() string {
	if s, ok := submitStatusStrings[status]; ok {
		return s
	}
	return "unknown"
}

// SubmitResult describes what happened to a submitted block or transaction.
type SubmitResult struct {
	Hash       chainhash.Hash
	Status     SubmitStatus
	Reason     string
	RejectCode mempool.RejectCode

	// Accepted lists the transactions that entered the mempool, the
	// submitted one followed by the orphans it unlocked.
	Accepted []*chainhash.Hash
}

// BestTip describes the tip of the main chain.
type BestTip struct {
	Hash           chainhash.Hash
	Height         uint64
	CumulativeWork *big.Int
}

type domain struct {
	chain     *blockchain.BlockChain
	mempool   *mempool.Mempool
	generator *mining.BlkTmplGenerator
}

// New creates a chain over config.Chain and wires a mempool and a block
// template generator to it.
func New(config *Config) (Domain, error) {
	if config.Chain == nil {
		return nil, errors.New("domain.New chain config is nil")
	}
	chain, err := blockchain.New(config.Chain)
	if err != nil {
		return nil, err
	}

	mempoolConfig := config.Mempool
	if mempoolConfig == nil {
		mempoolConfig = mempool.DefaultConfig(chain.Params())
	}
	policy := config.Mining
	if policy == nil {
		policy = &mining.Policy{BlockMaxSize: mining.DefaultBlockMaxSize}
	}

	d := &domain{
		chain:   chain,
		mempool: mempool.New(mempoolConfig, chain),
	}
	d.generator = mining.NewBlkTmplGenerator(policy, chain.Params(), d.mempool, chain)
	chain.Subscribe(d.handleChainNotification)
	return d, nil
}

func (d *domain) Chain() *blockchain.BlockChain {
	return d.chain
}

func (d *domain) Mempool() *mempool.Mempool {
	return d.mempool
}

// handleChainNotification keeps the mempool in line with the main chain.
// The chain sends notifications after releasing its lock, so the mempool
// may query it from here.
func (d *domain) handleChainNotification(notification *blockchain.Notification) {
	if notification.Type != blockchain.NTChainChanged {
		return
	}
	data, ok := notification.Data.(*blockchain.ChainChangedNotificationData)
	if !ok {
		return
	}
	accepted := d.mempool.HandleChainChanged(data)
	if len(accepted) > 0 {
		log.Debugf("Accepted %d transactions into the mempool after a chain change", len(accepted))
	}
}

// SubmitBlock decodes and processes a block. The returned error is set only
// for failures unrelated to the block itself.
func (d *domain) SubmitBlock(blockBytes []byte) (*SubmitResult, error) {
	block, err := util.NewBlockFromBytes(blockBytes)
	if err != nil {
		return malformed(err), nil
	}
	result := &SubmitResult{Hash: *block.Hash()}

	isOrphan, err := d.chain.ProcessBlock(block, blockchain.BFNone)
	if err != nil {
		if !rejectFromError(result, err) {
			return nil, err
		}
		log.Infof("Rejected block %s: %s", block.Hash(), err)
		return result, nil
	}
	if isOrphan {
		result.Status = StatusOrphan
		return result, nil
	}
	result.Status = StatusAccepted
	return result, nil
}

// SubmitTransaction decodes a transaction and offers it to the mempool.
// The returned error is set only for failures unrelated to the transaction
// itself.
func (d *domain) SubmitTransaction(txBytes []byte) (*SubmitResult, error) {
	tx, err := util.NewTxFromBytes(txBytes)
	if err != nil {
		return malformed(err), nil
	}
	result := &SubmitResult{Hash: *tx.ID()}

	acceptResult, err := d.mempool.ValidateAndInsertTransaction(tx, true)
	if err != nil {
		if !rejectFromError(result, err) {
			return nil, err
		}
		log.Debugf("Rejected transaction %s: %s", tx.ID(), err)
		return result, nil
	}
	if acceptResult.IsOrphan {
		result.Status = StatusOrphan
		return result, nil
	}
	result.Status = StatusAccepted
	for _, accepted := range acceptResult.AcceptedTransactions {
		result.Accepted = append(result.Accepted, accepted.ID())
	}
	return result, nil
}

func malformed(err error) *SubmitResult {
	return &SubmitResult{
		Status:     StatusRejected,
		Reason:     err.Error(),
		RejectCode: mempool.RejectMalformed,
	}
}

// rejectFromError fills result from a rule violation and returns false when
// err is not one.
func rejectFromError(result *SubmitResult, err error) bool {
	code, ok := mempool.ExtractRejectCode(err)
	if !ok {
		return false
	}
	result.Status = StatusRejected
	result.Reason = err.Error()
	result.RejectCode = code
	return true
}

// BestTip returns the tip of the main chain, or ErrChainHalted when the
// chain state can no longer be trusted.
func (d *domain) BestTip() (*BestTip, error) {
	if d.chain.IsHalted() {
		return nil, errors.WithStack(blockchain.ErrChainHalted)
	}
	best := d.chain.BestSnapshot()
	return &BestTip{
		Hash:           best.Hash,
		Height:         best.Height,
		CumulativeWork: new(big.Int).Set(best.CumulativeWork),
	}, nil
}

func (d *domain) BlockLocator(hash *chainhash.Hash) (blockchain.BlockLocator, error) {
	return d.chain.BlockLocator(hash)
}

func (d *domain) FindCommonAncestor(locator blockchain.BlockLocator) (*chainhash.Hash, error) {
	return d.chain.FindCommonAncestor(locator)
}

func (d *domain) Subscribe(callback blockchain.NotificationCallback) {
	d.chain.Subscribe(callback)
}

func (d *domain) BlockTemplate(payToScript []byte) (*mining.BlockTemplate, error) {
	return d.generator.NewBlockTemplate(payToScript)
}
