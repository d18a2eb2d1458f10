package templatemanager

import (
	"sync"

	"github.com/ledgerkit/ledgerd/app/appmessage"
)

var currentTemplate *appmessage.MsgBlock
var lock = &sync.Mutex{}

// Get returns the template to work on
func Get() *appmessage.MsgBlock {
	lock.Lock()
	defer lock.Unlock()
	// Shallow copy the block so when the miner changes the nonce it won't affect the template here.
	if currentTemplate == nil {
		return nil
	}
	block := *currentTemplate
	return &block
}

// Set sets the current template to work on
func Set(template *appmessage.MsgBlock) {
	lock.Lock()
	defer lock.Unlock()
	currentTemplate = template
}

