package main

import (
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/cmd/ledgerminer/templatemanager"
	"github.com/ledgerkit/ledgerd/domain"
	"github.com/ledgerkit/ledgerd/infrastructure/network/rpcclient"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/pkg/errors"
)

var hashesTried uint64

const logHashRateInterval = 10 * time.Second

// nonceBatchSize is how many nonces are tried before checking whether a newer
// template arrived.
const nonceBatchSize = 1 << 16

func mineLoop(client *rpcclient.RPCClient, numberOfBlocks uint64, payToScript []byte) error {
	errChan := make(chan error)
	doneChan := make(chan struct{})
	foundBlockChan := make(chan *appmessage.MsgBlock, 1)

	spawn("templatesLoop", func() {
		templatesLoop(client, payToScript, errChan)
	})

	spawn("blocksLoop", func() {
		for {
			foundBlockChan <- mineNextBlock()
		}
	})

	spawn("handleFoundBlock", func() {
		for i := uint64(0); numberOfBlocks == 0 || i < numberOfBlocks; i++ {
			block := <-foundBlockChan
			err := handleFoundBlock(client, block)
			if err != nil {
				errChan <- err
				return
			}
		}
		doneChan <- struct{}{}
	})

	logHashRate()

	select {
	case err := <-errChan:
		return err
	case <-doneChan:
		return nil
	}
}

func logHashRate() {
	spawn("logHashRate", func() {
		lastCheck := time.Now()
		for range time.Tick(logHashRateInterval) {
			currentHashesTried := atomic.LoadUint64(&hashesTried)
			currentTime := time.Now()
			kiloHashesTried := float64(currentHashesTried) / 1000.0
			hashRate := kiloHashesTried / currentTime.Sub(lastCheck).Seconds()
			log.Infof("Current hash rate is %.2f Khash/s", hashRate)
			lastCheck = currentTime
			// subtract from hashesTried the hashes we already sampled
			atomic.AddUint64(&hashesTried, -currentHashesTried)
		}
	})
}

func handleFoundBlock(client *rpcclient.RPCClient, block *appmessage.MsgBlock) error {
	blockHash := block.BlockHash()
	log.Infof("Submitting block %s to %s", blockHash, client.Address())

	result, err := client.SubmitBlock(block)
	if err != nil {
		return errors.Wrapf(err, "Error submitting block %s to %s", blockHash, client.Address())
	}
	if result.Status != domain.StatusAccepted.String() {
		// Another miner may have extended the chain in the meantime.
		log.Warnf("Block %s was %s: %s", blockHash, result.Status, result.Reason)
	}
	return nil
}

func mineNextBlock() *appmessage.MsgBlock {
	for {
		block := getBlockForMining()
		if solveBatch(&block.Header, rand.Uint32()) {
			log.Infof("Found block %s with parent %s", block.BlockHash(), block.Header.PrevBlock)
			return block
		}
	}
}

// solveBatch tries nonceBatchSize nonces starting at startNonce and reports
// whether one of them satisfies the header's target.
func solveBatch(header *appmessage.BlockHeader, startNonce uint32) bool {
	target := util.CompactToBig(header.Bits)
	nonce := startNonce
	for i := 0; i < nonceBatchSize; i++ {
		header.Nonce = nonce
		atomic.AddUint64(&hashesTried, 1)
		if util.HashToBig(header.BlockHash()).Cmp(target) <= 0 {
			return true
		}
		nonce++
	}
	return false
}

func getBlockForMining() *appmessage.MsgBlock {
	tryCount := 0

	const sleepTime = 500 * time.Millisecond

	for {
		tryCount++

		shouldLog := (tryCount-1)%10 == 0
		template := templatemanager.Get()
		if template == nil {
			if shouldLog {
				log.Info("Waiting for the initial template")
			}
			time.Sleep(sleepTime)
			continue
		}
		return template
	}
}

func templatesLoop(client *rpcclient.RPCClient, payToScript []byte, errChan chan error) {
	getBlockTemplate := func() bool {
		template, err := client.GetBlockTemplate(payToScript)
		if err != nil {
			errChan <- errors.Wrapf(err, "Error getting block template from %s", client.Address())
			return false
		}
		templatemanager.Set(template)
		return true
	}

	if !getBlockTemplate() {
		return
	}
	const tickerTime = 500 * time.Millisecond
	ticker := time.NewTicker(tickerTime)
	defer ticker.Stop()
	for range ticker.C {
		if !getBlockTemplate() {
			return
		}
	}
}
