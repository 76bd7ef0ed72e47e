package payments

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Channel is the outbound payment collaborator used by withdraw. Inbound
// payments are implicit: the mint state machine records the amount sent
// with each mint call.
type Channel interface {
	// TransferOut sends amount (wei) to destination. A non-nil error means
	// no funds moved and the caller must not commit any coupled state change.
	TransferOut(destination common.Address, amount *big.Int) error
}

// MemoryChannel is an in-memory Channel that records transfers.
// FailNext makes the next transfer fail, for exercising rollback paths.
type MemoryChannel struct {
	mu        sync.Mutex
	transfers []Transfer
	failNext  bool
}

// Transfer records one completed outbound payment.
type Transfer struct {
	Destination common.Address
	Amount      *big.Int
}

// Ensure MemoryChannel implements Channel
var _ Channel = (*MemoryChannel)(nil)

// NewMemoryChannel creates an empty in-memory payment channel.
func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{}
}

func (c *MemoryChannel) TransferOut(destination common.Address, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failNext {
		c.failNext = false
		return fmt.Errorf("payment channel rejected transfer of %s wei to %s", amount, destination.Hex())
	}

	c.transfers = append(c.transfers, Transfer{
		Destination: destination,
		Amount:      new(big.Int).Set(amount),
	})
	return nil
}

// FailNext makes the next TransferOut call fail.
func (c *MemoryChannel) FailNext() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failNext = true
}

// Transfers returns a copy of all completed transfers.
func (c *MemoryChannel) Transfers() []Transfer {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Transfer, len(c.transfers))
	copy(out, c.transfers)
	return out
}
