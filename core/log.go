package core

import "github.com/sirupsen/logrus"

// Log is the engine logger. Wallets log through it unless given another entry
// with WithLogger or SetLogger.
var Log = logrus.StandardLogger().WithField("module", "cryptix-wallet")
