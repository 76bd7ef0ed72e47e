package mint

import (
	"fmt"

	"github.com/Forge-Labs/mintgate-go/pkg/auth"
	"github.com/Forge-Labs/mintgate-go/pkg/ledger"
)

// Every failure of the state machine is one of these named outcomes. A
// failing operation guarantees zero mutation of sale state or funds.
var (
	// ErrSaleNotActive means the required sale phase is not open.
	ErrSaleNotActive = fmt.Errorf("sale phase is not active")

	// ErrSupplyExceeded means the mint would push TotalIssued past MaxSupply.
	ErrSupplyExceeded = fmt.Errorf("mint would exceed max supply")

	// ErrWalletQuotaExceeded means the mint would push the caller past its
	// per-wallet limit for the phase.
	ErrWalletQuotaExceeded = fmt.Errorf("mint would exceed wallet quota")

	// ErrInsufficientPayment means the payment does not cover price x quantity.
	ErrInsufficientPayment = fmt.Errorf("payment below required price")

	// ErrNotWhitelisted means the inclusion proof did not verify for the caller.
	ErrNotWhitelisted = fmt.Errorf("caller is not on the whitelist")

	// ErrAlreadyMinted means the one-shot team mint latch is already set.
	ErrAlreadyMinted = fmt.Errorf("team allocation already minted")

	// ErrTransferFailed means the payment channel rejected the outbound
	// transfer; the coupled state change was rolled back.
	ErrTransferFailed = fmt.Errorf("outbound transfer failed")

	// ErrUnauthorized is the auth collaborator's failure, surfaced unchanged
	// so callers can match it across packages.
	ErrUnauthorized = auth.ErrUnauthorized

	// ErrUnknownToken is the ledger's failure for never-issued token ids.
	ErrUnknownToken = ledger.ErrUnknownToken
)
