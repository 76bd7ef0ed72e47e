package persistence

// SaleState is the snapshot of the mint state machine that must survive a
// process restart: issued counts, per-wallet counters, phase flags, the
// installed commitment root and the accumulated balance. Addresses are
// stored as 0x-hex strings and the balance as a decimal wei string so the
// snapshot is plain JSON in every backend.
type SaleState struct {
	// TotalIssued is the number of tokens issued so far.
	TotalIssued uint64 `json:"totalIssued"`

	// PublicMinted maps wallet address (hex) to public-phase mint count.
	PublicMinted map[string]uint64 `json:"publicMinted"`

	// WhitelistMinted maps wallet address (hex) to whitelist-phase mint count.
	WhitelistMinted map[string]uint64 `json:"whitelistMinted"`

	// TokenOwners maps token id to owner address (hex). Populated when the
	// ledger keeps its records in process memory, so issued ids and their
	// owners can be rebuilt after a restart.
	TokenOwners map[uint64]string `json:"tokenOwners,omitempty"`

	// Phase flags
	PublicSaleActive    bool `json:"publicSaleActive"`
	WhitelistSaleActive bool `json:"whitelistSaleActive"`
	Paused              bool `json:"paused"`
	Revealed            bool `json:"revealed"`
	TeamMinted          bool `json:"teamMinted"`

	// CommitmentRoot is the installed merkle root as a 0x-hex string.
	CommitmentRoot string `json:"commitmentRoot"`

	// AccumulatedFunds is the running balance as a decimal wei string.
	AccumulatedFunds string `json:"accumulatedFunds"`

	// URI configuration
	BaseURI        string `json:"baseUri"`
	PlaceholderURI string `json:"placeholderUri"`

	// UpdatedAt is the Unix timestamp of the snapshot.
	UpdatedAt int64 `json:"updatedAt"`
}
