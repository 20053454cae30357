package domain

import "errors"

var (
	ErrLedgerUnderflow        = errors.New("ledger entry would drive a balance negative")
	ErrUnsupportedLedgerEntry = errors.New("unsupported ledger entry type/reference combination")
)
