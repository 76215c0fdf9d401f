// Package domain contains the core domain types for the blockchain context.
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TokenStatus describes what the chain knows about a token contract.
type TokenStatus struct {
	Address      common.Address
	Deployed     bool // contract bytecode exists at the address
	BytecodeSize int
	Decimals     uint8 // 0 when the decimals() call fails
	CheckedAt    time.Time
}

// NewTokenStatus builds a TokenStatus from the deployed bytecode.
func NewTokenStatus(address common.Address, code []byte) *TokenStatus {
	return &TokenStatus{
		Address:      address,
		Deployed:     len(code) > 0,
		BytecodeSize: len(code),
		CheckedAt:    time.Now(),
	}
}
