package mint

import (
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Forge-Labs/mintgate-go/pkg/allowlist"
	"github.com/Forge-Labs/mintgate-go/pkg/auth"
	"github.com/Forge-Labs/mintgate-go/pkg/ledger"
	"github.com/Forge-Labs/mintgate-go/pkg/logger"
	"github.com/Forge-Labs/mintgate-go/pkg/payments"
	"github.com/Forge-Labs/mintgate-go/pkg/persistence"
)

// Machine owns all mutable sale state and exposes the gated operations that
// transition it. Every operation holds the machine lock for its whole
// check-and-commit span, so two racing mints can never jointly exceed the
// supply ceiling or a wallet quota, and a failing precondition leaves the
// state untouched.
type Machine struct {
	cfg SaleConfig

	// Collaborators
	ledger     ledger.Ledger
	authorizer auth.Authorizer
	channel    payments.Channel
	store      persistence.SaleStateStore // optional; nil disables snapshots
	logger     *zap.Logger

	mu sync.Mutex

	// Counters
	totalIssued     uint64
	publicMinted    map[common.Address]uint64
	whitelistMinted map[common.Address]uint64

	// Phase flags
	publicSaleActive    bool
	whitelistSaleActive bool
	paused              bool
	revealed            bool
	teamMinted          bool // one-shot latch, never cleared

	commitmentRoot   [32]byte
	accumulatedFunds *big.Int

	baseURI        string
	placeholderURI string
}

// Deps holds the collaborators injected into the machine.
type Deps struct {
	Ledger     ledger.Ledger
	Authorizer auth.Authorizer
	Channel    payments.Channel

	// Store is optional. When set, the machine restores its state from the
	// last snapshot at construction and snapshots after every committed
	// transition.
	Store persistence.SaleStateStore

	// Logger is optional, a default is created if nil.
	Logger *zap.Logger
}

// NewMachine creates a mint state machine with zero-valued state (or state
// restored from the snapshot store, when one is configured).
func NewMachine(cfg SaleConfig, deps Deps) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sale config: %w", err)
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if deps.Authorizer == nil {
		return nil, fmt.Errorf("authorizer is required")
	}
	if deps.Channel == nil {
		return nil, fmt.Errorf("payment channel is required")
	}

	machineLogger := deps.Logger
	if machineLogger == nil {
		machineLogger, _ = logger.NewLogger(&logger.LoggerConfig{Debug: false})
	}

	m := &Machine{
		cfg:              cfg,
		ledger:           deps.Ledger,
		authorizer:       deps.Authorizer,
		channel:          deps.Channel,
		store:            deps.Store,
		logger:           machineLogger,
		publicMinted:     make(map[common.Address]uint64),
		whitelistMinted:  make(map[common.Address]uint64),
		accumulatedFunds: new(big.Int),
	}

	if m.store != nil {
		if err := m.restore(); err != nil {
			return nil, errors.Wrap(err, "failed to restore sale state")
		}
	}

	return m, nil
}

// Config returns a copy of the immutable sale configuration.
func (m *Machine) Config() SaleConfig {
	cfg := m.cfg
	cfg.PublicPrice = new(big.Int).Set(m.cfg.PublicPrice)
	cfg.WhitelistPrice = new(big.Int).Set(m.cfg.WhitelistPrice)
	return cfg
}

// PublicMint issues quantity tokens to caller during the public phase.
// Preconditions are checked in order, first failure wins: phase active,
// supply ceiling, wallet quota, payment sufficiency. Overpayment is
// accepted and retained in full; there is no automatic refund.
// Returns the first token id of the issued range.
func (m *Machine) PublicMint(caller common.Address, quantity uint64, payment *big.Int) (uint64, error) {
	if quantity == 0 {
		return 0, fmt.Errorf("quantity must be positive")
	}
	if payment == nil {
		payment = new(big.Int)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.publicSaleActive {
		return 0, ErrSaleNotActive
	}
	if m.exceedsSupply(quantity) {
		return 0, ErrSupplyExceeded
	}
	if exceedsQuota(m.publicMinted[caller], quantity, m.cfg.MaxPublicPerWallet) {
		return 0, ErrWalletQuotaExceeded
	}
	if payment.Cmp(totalPrice(m.cfg.PublicPrice, quantity)) < 0 {
		return 0, ErrInsufficientPayment
	}

	firstID, err := m.ledger.Issue(caller, quantity)
	if err != nil {
		return 0, errors.Wrap(err, "ledger issue failed")
	}

	m.totalIssued += quantity
	m.publicMinted[caller] += quantity
	m.accumulatedFunds.Add(m.accumulatedFunds, payment)
	m.snapshotLocked()

	m.logger.Sugar().Infow("Public mint committed",
		"caller", caller.Hex(), "quantity", quantity, "payment_wei", payment.String(),
		"first_token_id", firstID, "total_issued", m.totalIssued)

	return firstID, nil
}

// WhitelistMint issues quantity tokens to caller during the whitelist
// phase. Same ordered checks as PublicMint against the whitelist limits,
// plus a mandatory inclusion proof verified against the caller's own
// address and the root in effect at the moment of the call.
func (m *Machine) WhitelistMint(caller common.Address, quantity uint64, payment *big.Int, proof [][32]byte) (uint64, error) {
	if quantity == 0 {
		return 0, fmt.Errorf("quantity must be positive")
	}
	if payment == nil {
		payment = new(big.Int)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.whitelistSaleActive {
		return 0, ErrSaleNotActive
	}
	if m.exceedsSupply(quantity) {
		return 0, ErrSupplyExceeded
	}
	if exceedsQuota(m.whitelistMinted[caller], quantity, m.cfg.MaxWhitelistPerWallet) {
		return 0, ErrWalletQuotaExceeded
	}
	if payment.Cmp(totalPrice(m.cfg.WhitelistPrice, quantity)) < 0 {
		return 0, ErrInsufficientPayment
	}

	// The proof must bind to the caller, not to any address carried in the
	// request payload.
	if !allowlist.VerifyProof(m.commitmentRoot, caller, proof) {
		return 0, ErrNotWhitelisted
	}

	firstID, err := m.ledger.Issue(caller, quantity)
	if err != nil {
		return 0, errors.Wrap(err, "ledger issue failed")
	}

	m.totalIssued += quantity
	m.whitelistMinted[caller] += quantity
	m.accumulatedFunds.Add(m.accumulatedFunds, payment)
	m.snapshotLocked()

	m.logger.Sugar().Infow("Whitelist mint committed",
		"caller", caller.Hex(), "quantity", quantity, "payment_wei", payment.String(),
		"first_token_id", firstID, "total_issued", m.totalIssued)

	return firstID, nil
}

// TeamMint issues the fixed team allocation to caller, exactly once.
// Restricted to the privileged role. The allocation is not checked against
// MaxSupply; the configured supply must leave headroom for it.
func (m *Machine) TeamMint(caller common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.authorizer.IsPrivileged(caller) {
		return 0, ErrUnauthorized
	}
	if m.teamMinted {
		return 0, ErrAlreadyMinted
	}

	firstID, err := m.ledger.Issue(caller, m.cfg.TeamMintQuantity)
	if err != nil {
		return 0, errors.Wrap(err, "ledger issue failed")
	}

	m.teamMinted = true
	m.totalIssued += m.cfg.TeamMintQuantity
	m.snapshotLocked()

	m.logger.Sugar().Infow("Team mint committed",
		"caller", caller.Hex(), "quantity", m.cfg.TeamMintQuantity,
		"first_token_id", firstID, "total_issued", m.totalIssued)

	return firstID, nil
}

// Withdraw transfers the entire accumulated balance to the role holder's
// address. Restricted to the privileged role. If the payment channel
// rejects the transfer the balance is NOT zeroed.
func (m *Machine) Withdraw(caller common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.authorizer.IsPrivileged(caller) {
		return nil, ErrUnauthorized
	}

	amount := new(big.Int).Set(m.accumulatedFunds)
	destination := m.authorizer.Owner()

	if err := m.channel.TransferOut(destination, amount); err != nil {
		m.logger.Sugar().Errorw("Withdraw transfer rejected, balance retained",
			"destination", destination.Hex(), "amount_wei", amount.String(), "error", err)
		return nil, errors.Wrapf(ErrTransferFailed, "%v", err)
	}

	m.accumulatedFunds.SetUint64(0)
	m.snapshotLocked()

	m.logger.Sugar().Infow("Withdraw committed",
		"destination", destination.Hex(), "amount_wei", amount.String())

	return amount, nil
}

// SetPublicSaleActive toggles the public phase. Privileged only.
func (m *Machine) SetPublicSaleActive(caller common.Address, active bool) error {
	return m.setFlag(caller, "public_sale_active", active, func() { m.publicSaleActive = active })
}

// SetWhitelistSaleActive toggles the whitelist phase. Privileged only.
func (m *Machine) SetWhitelistSaleActive(caller common.Address, active bool) error {
	return m.setFlag(caller, "whitelist_sale_active", active, func() { m.whitelistSaleActive = active })
}

// SetPaused toggles the paused flag. Privileged only.
func (m *Machine) SetPaused(caller common.Address, paused bool) error {
	return m.setFlag(caller, "paused", paused, func() { m.paused = paused })
}

// SetRevealed toggles metadata reveal. Privileged only.
func (m *Machine) SetRevealed(caller common.Address, revealed bool) error {
	return m.setFlag(caller, "revealed", revealed, func() { m.revealed = revealed })
}

// SetCommitmentRoot replaces the installed allow-list root. Privileged
// only. Mint-time verification always uses the root in effect at the
// moment of the call.
func (m *Machine) SetCommitmentRoot(caller common.Address, root [32]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.authorizer.IsPrivileged(caller) {
		return ErrUnauthorized
	}

	m.commitmentRoot = root
	m.snapshotLocked()
	m.logger.Sugar().Infow("Commitment root replaced", "root", hexutil.Encode(root[:]))
	return nil
}

// SetBaseURI replaces the post-reveal base URI. Privileged only.
func (m *Machine) SetBaseURI(caller common.Address, uri string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.authorizer.IsPrivileged(caller) {
		return ErrUnauthorized
	}
	m.baseURI = uri
	m.snapshotLocked()
	return nil
}

// SetPlaceholderURI replaces the pre-reveal placeholder URI. Privileged only.
func (m *Machine) SetPlaceholderURI(caller common.Address, uri string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.authorizer.IsPrivileged(caller) {
		return ErrUnauthorized
	}
	m.placeholderURI = uri
	m.snapshotLocked()
	return nil
}

// ResolveURI returns the metadata URI for an issued token id. Before
// reveal every token resolves to the placeholder URI; afterwards to a
// per-token URI built from the base URI and a 1-based index (the external
// numbering is tokenID+1, matching existing off-chain metadata).
func (m *Machine) ResolveURI(tokenID uint64) (string, error) {
	if _, err := m.ledger.OwnerOf(tokenID); err != nil {
		return "", ErrUnknownToken
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.revealed {
		return m.placeholderURI, nil
	}
	return m.baseURI + strconv.FormatUint(tokenID+1, 10) + ".json", nil
}

// CommitmentRoot returns the currently installed allow-list root.
func (m *Machine) CommitmentRoot() [32]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commitmentRoot
}

// Status is a read-only view of the machine's current state.
type Status struct {
	TotalIssued         uint64   `json:"totalIssued"`
	MaxSupply           uint64   `json:"maxSupply"`
	PublicSaleActive    bool     `json:"publicSaleActive"`
	WhitelistSaleActive bool     `json:"whitelistSaleActive"`
	Paused              bool     `json:"paused"`
	Revealed            bool     `json:"revealed"`
	TeamMinted          bool     `json:"teamMinted"`
	CommitmentRoot      string   `json:"commitmentRoot"`
	AccumulatedFunds    *big.Int `json:"-"`
	AccumulatedFundsWei string   `json:"accumulatedFundsWei"`
}

// Status returns a consistent snapshot of the machine's current state.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Status{
		TotalIssued:         m.totalIssued,
		MaxSupply:           m.cfg.MaxSupply,
		PublicSaleActive:    m.publicSaleActive,
		WhitelistSaleActive: m.whitelistSaleActive,
		Paused:              m.paused,
		Revealed:            m.revealed,
		TeamMinted:          m.teamMinted,
		CommitmentRoot:      hexutil.Encode(m.commitmentRoot[:]),
		AccumulatedFunds:    new(big.Int).Set(m.accumulatedFunds),
		AccumulatedFundsWei: m.accumulatedFunds.String(),
	}
}

// PublicMinted returns the public-phase mint count for a wallet.
func (m *Machine) PublicMinted(addr common.Address) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.publicMinted[addr]
}

// WhitelistMinted returns the whitelist-phase mint count for a wallet.
func (m *Machine) WhitelistMinted(addr common.Address) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.whitelistMinted[addr]
}

// setFlag is the common path for the unconditional boolean toggles.
func (m *Machine) setFlag(caller common.Address, name string, value bool, apply func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.authorizer.IsPrivileged(caller) {
		return ErrUnauthorized
	}

	apply()
	m.snapshotLocked()
	m.logger.Sugar().Infow("Sale flag set", "flag", name, "value", value)
	return nil
}

// exceedsSupply reports whether issuing quantity more tokens would pass
// MaxSupply. Written subtraction-free on the issued side because a team
// mint may already have pushed totalIssued past the ceiling.
func (m *Machine) exceedsSupply(quantity uint64) bool {
	if m.totalIssued >= m.cfg.MaxSupply {
		return true
	}
	return quantity > m.cfg.MaxSupply-m.totalIssued
}

// exceedsQuota reports whether minted+quantity would pass max, without
// overflowing on adversarial quantities.
func exceedsQuota(minted, quantity, max uint64) bool {
	if minted >= max {
		return true
	}
	return quantity > max-minted
}

// totalPrice computes price x quantity without mutating price.
func totalPrice(price *big.Int, quantity uint64) *big.Int {
	return new(big.Int).Mul(price, new(big.Int).SetUint64(quantity))
}

// snapshotLocked persists the committed state. Must be called with the
// machine lock held. Snapshot failures are logged, not surfaced: the
// committed transition stands and the next successful snapshot catches up.
func (m *Machine) snapshotLocked() {
	if m.store == nil {
		return
	}

	state := &persistence.SaleState{
		TotalIssued:         m.totalIssued,
		PublicMinted:        make(map[string]uint64, len(m.publicMinted)),
		WhitelistMinted:     make(map[string]uint64, len(m.whitelistMinted)),
		PublicSaleActive:    m.publicSaleActive,
		WhitelistSaleActive: m.whitelistSaleActive,
		Paused:              m.paused,
		Revealed:            m.revealed,
		TeamMinted:          m.teamMinted,
		CommitmentRoot:      hexutil.Encode(m.commitmentRoot[:]),
		AccumulatedFunds:    m.accumulatedFunds.String(),
		BaseURI:             m.baseURI,
		PlaceholderURI:      m.placeholderURI,
		UpdatedAt:           time.Now().Unix(),
	}
	for addr, count := range m.publicMinted {
		state.PublicMinted[addr.Hex()] = count
	}
	for addr, count := range m.whitelistMinted {
		state.WhitelistMinted[addr.Hex()] = count
	}

	// An in-memory ledger loses its ownership records on restart, so they
	// ride along with the snapshot. Durable ledgers skip this.
	if sn, ok := m.ledger.(ledger.Snapshotter); ok {
		owners := sn.Owners()
		state.TokenOwners = make(map[uint64]string, len(owners))
		for tokenID, owner := range owners {
			state.TokenOwners[tokenID] = owner.Hex()
		}
	}

	if err := m.store.SaveSaleState(state); err != nil {
		m.logger.Sugar().Errorw("Failed to snapshot sale state", "error", err)
	}
}

// restore loads the last snapshot from the store, if any.
func (m *Machine) restore() error {
	state, err := m.store.LoadSaleState()
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}

	// TotalIssued and the ledger's issue counter move in lockstep. A ledger
	// that disagrees with the snapshot (a fresh one, typically) would hand
	// out token ids that were already assigned before the restart.
	if minted := m.ledger.TotalMinted(); minted != state.TotalIssued {
		return fmt.Errorf("ledger reports %d issued tokens but the snapshot has %d: rebuild the ledger from the snapshot's token owners before restoring", minted, state.TotalIssued)
	}

	m.totalIssued = state.TotalIssued
	m.publicSaleActive = state.PublicSaleActive
	m.whitelistSaleActive = state.WhitelistSaleActive
	m.paused = state.Paused
	m.revealed = state.Revealed
	m.teamMinted = state.TeamMinted
	m.baseURI = state.BaseURI
	m.placeholderURI = state.PlaceholderURI

	for hexAddr, count := range state.PublicMinted {
		m.publicMinted[common.HexToAddress(hexAddr)] = count
	}
	for hexAddr, count := range state.WhitelistMinted {
		m.whitelistMinted[common.HexToAddress(hexAddr)] = count
	}

	if state.CommitmentRoot != "" {
		rootBytes, err := hexutil.Decode(state.CommitmentRoot)
		if err != nil || len(rootBytes) != 32 {
			return fmt.Errorf("corrupt commitment root in snapshot: %q", state.CommitmentRoot)
		}
		copy(m.commitmentRoot[:], rootBytes)
	}

	if state.AccumulatedFunds != "" {
		funds, ok := new(big.Int).SetString(state.AccumulatedFunds, 10)
		if !ok || funds.Sign() < 0 {
			return fmt.Errorf("corrupt accumulated funds in snapshot: %q", state.AccumulatedFunds)
		}
		m.accumulatedFunds = funds
	}

	m.logger.Sugar().Infow("Restored sale state from snapshot",
		"total_issued", m.totalIssued, "team_minted", m.teamMinted,
		"accumulated_funds_wei", m.accumulatedFunds.String(), "updated_at", state.UpdatedAt)

	return nil
}
