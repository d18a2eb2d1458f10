package domain

import (
	"github.com/ledgerkit/ledgerd/infrastructure/logger"
)

var log = logger.RegisterSubSystem("DOMN")
