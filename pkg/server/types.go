package server

// MintRequestV1 is the request body for /mint/public.
type MintRequestV1 struct {
	// Caller is the minting wallet (0x-hex address)
	Caller string `json:"caller"`
	// Quantity is the number of tokens to mint
	Quantity uint64 `json:"quantity"`
	// PaymentWei is the payment sent with the call, decimal wei
	PaymentWei string `json:"payment_wei"`
}

// WhitelistMintRequestV1 is the request body for /mint/whitelist.
type WhitelistMintRequestV1 struct {
	Caller     string `json:"caller"`
	Quantity   uint64 `json:"quantity"`
	PaymentWei string `json:"payment_wei"`
	// Proof is the inclusion proof for the caller: sibling hashes from
	// leaf to root as 0x-hex 32-byte values
	Proof []string `json:"proof"`
}

// CallerRequestV1 is the request body for operations that carry only the
// caller: /mint/team, /withdraw.
type CallerRequestV1 struct {
	Caller string `json:"caller"`
}

// MintResponseV1 is the response for a committed mint.
type MintResponseV1 struct {
	FirstTokenID uint64 `json:"first_token_id"`
	Quantity     uint64 `json:"quantity"`
	TotalIssued  uint64 `json:"total_issued"`
}

// WithdrawResponseV1 is the response for a committed withdraw.
type WithdrawResponseV1 struct {
	AmountWei   string `json:"amount_wei"`
	Destination string `json:"destination"`
}

// SetPhaseRequestV1 is the request body for /admin/sale.
type SetPhaseRequestV1 struct {
	Caller string `json:"caller"`
	// Phase is "public" or "whitelist"
	Phase  string `json:"phase"`
	Active bool   `json:"active"`
}

// SetFlagRequestV1 is the request body for /admin/pause and /admin/reveal.
type SetFlagRequestV1 struct {
	Caller string `json:"caller"`
	Value  bool   `json:"value"`
}

// SetRootRequestV1 is the request body for /admin/root.
type SetRootRequestV1 struct {
	Caller string `json:"caller"`
	// Root is the new commitment root, 0x-hex 32 bytes
	Root string `json:"root"`
}

// SetURIRequestV1 is the request body for /admin/uri. Empty fields are
// left unchanged.
type SetURIRequestV1 struct {
	Caller         string `json:"caller"`
	BaseURI        string `json:"base_uri,omitempty"`
	PlaceholderURI string `json:"placeholder_uri,omitempty"`
}

// RootResponseV1 is the response for GET /root.
type RootResponseV1 struct {
	Root string `json:"root"`
}

// TokenURIResponseV1 is the response for GET /token/uri.
type TokenURIResponseV1 struct {
	TokenID uint64 `json:"token_id"`
	URI     string `json:"uri"`
}

// ErrorResponseV1 is the JSON error body for every failed request.
type ErrorResponseV1 struct {
	Error string `json:"error"`
}
