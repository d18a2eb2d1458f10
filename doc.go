/*
Copyright (c) 2013-2018 The btcsuite developers
Use of this source code is governed by an ISC
license that can be found in the LICENSE file.

Ledgerd is a single-chain ledger node written in Go. It validates blocks
and transactions against an unspent output index, follows the chain with
the most cumulative work, keeps a mempool of unconfirmed transactions and
builds block templates for miners. A gRPC server exposes these operations.

Usage:

	ledgerd [OPTIONS]

For an up-to-date help message:

	ledgerd --help

The long form of all option flags (except -C) can be specified in a configuration
file that is automatically parsed when ledgerd starts up. By default, the
configuration file is located at ~/.ledgerd/ledgerd.conf on POSIX-style operating
systems and %LOCALAPPDATA%\ledgerd\ledgerd.conf on Windows. The -C (--configfile)
flag can be used to override this location.
*/
package main
