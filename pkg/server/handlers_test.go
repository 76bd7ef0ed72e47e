package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Forge-Labs/mintgate-go/pkg/allowlist"
	"github.com/Forge-Labs/mintgate-go/pkg/auth"
	"github.com/Forge-Labs/mintgate-go/pkg/ledger"
	"github.com/Forge-Labs/mintgate-go/pkg/logger"
	"github.com/Forge-Labs/mintgate-go/pkg/mint"
	"github.com/Forge-Labs/mintgate-go/pkg/payments"
)

var (
	testOwner  = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	testWallet = common.HexToAddress("0x0000000000000000000000000000000000000001")
)

func newTestServer(t *testing.T, serverCfg Config) (*Server, *mint.Machine) {
	t.Helper()

	owner, err := auth.NewSingleOwner(testOwner)
	require.NoError(t, err)

	machine, err := mint.NewMachine(mint.SaleConfig{
		MaxSupply:             100,
		MaxPublicPerWallet:    10,
		MaxWhitelistPerWallet: 3,
		PublicPrice:           big.NewInt(1000),
		WhitelistPrice:        big.NewInt(500),
		TeamMintQuantity:      5,
	}, mint.Deps{
		Ledger:     ledger.NewMemoryLedger(),
		Authorizer: owner,
		Channel:    payments.NewMemoryChannel(),
		Logger:     logger.NewNopLogger(),
	})
	require.NoError(t, err)

	return NewServer(machine, serverCfg, logger.NewNopLogger()), machine
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// TestPublicMintEndpoint covers the public mint happy path and error mapping.
func TestPublicMintEndpoint(t *testing.T) {
	srv, machine := newTestServer(t, Config{})
	h := srv.GetHandler()

	t.Run("Sale not active maps to 409", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/mint/public", MintRequestV1{
			Caller: testWallet.Hex(), Quantity: 1, PaymentWei: "1000",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	require.NoError(t, machine.SetPublicSaleActive(testOwner, true))

	t.Run("Successful mint", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/mint/public", MintRequestV1{
			Caller: testWallet.Hex(), Quantity: 2, PaymentWei: "2000",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp MintResponseV1
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, uint64(0), resp.FirstTokenID)
		assert.Equal(t, uint64(2), resp.Quantity)
		assert.Equal(t, uint64(2), resp.TotalIssued)
	})

	t.Run("Underpayment maps to 402", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/mint/public", MintRequestV1{
			Caller: testWallet.Hex(), Quantity: 1, PaymentWei: "1",
		})
		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	})

	t.Run("Bad caller address maps to 400", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/mint/public", MintRequestV1{
			Caller: "not-an-address", Quantity: 1, PaymentWei: "1000",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("GET not allowed", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/mint/public", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

// TestWhitelistMintEndpoint covers proof transport through the wire format.
func TestWhitelistMintEndpoint(t *testing.T) {
	srv, machine := newTestServer(t, Config{})
	h := srv.GetHandler()

	members := make([]common.Address, 6)
	for i := range members {
		members[i] = common.BigToAddress(big.NewInt(int64(i + 100)))
	}
	tree, err := allowlist.BuildTree(members)
	require.NoError(t, err)

	require.NoError(t, machine.SetWhitelistSaleActive(testOwner, true))
	require.NoError(t, machine.SetCommitmentRoot(testOwner, tree.Root))

	proof, err := tree.Proof(members[0])
	require.NoError(t, err)
	wireProof := make([]string, len(proof.Siblings))
	for i, s := range proof.Siblings {
		wireProof[i] = hexutil.Encode(s[:])
	}

	t.Run("Member mints", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/mint/whitelist", WhitelistMintRequestV1{
			Caller: members[0].Hex(), Quantity: 1, PaymentWei: "500", Proof: wireProof,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("Foreign proof maps to 403", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/mint/whitelist", WhitelistMintRequestV1{
			Caller: testWallet.Hex(), Quantity: 1, PaymentWei: "500", Proof: wireProof,
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("Malformed proof entry maps to 400", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/mint/whitelist", WhitelistMintRequestV1{
			Caller: members[0].Hex(), Quantity: 1, PaymentWei: "500", Proof: []string{"0x1234"},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// TestTeamMintAndWithdrawEndpoints covers the privileged operations.
func TestTeamMintAndWithdrawEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	h := srv.GetHandler()

	t.Run("Team mint unprivileged maps to 403", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/mint/team", CallerRequestV1{Caller: testWallet.Hex()})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("Team mint by owner", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/mint/team", CallerRequestV1{Caller: testOwner.Hex()})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp MintResponseV1
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, uint64(5), resp.Quantity)
	})

	t.Run("Second team mint maps to 409", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/mint/team", CallerRequestV1{Caller: testOwner.Hex()})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("Withdraw of zero balance", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/withdraw", CallerRequestV1{Caller: testOwner.Hex()})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp WithdrawResponseV1
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "0", resp.AmountWei)
	})
}

// TestAdminEndpoints covers the flag, root and URI administration.
func TestAdminEndpoints(t *testing.T) {
	srv, machine := newTestServer(t, Config{})
	h := srv.GetHandler()

	t.Run("Unprivileged toggle maps to 403 and flag unchanged", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/admin/sale", SetPhaseRequestV1{
			Caller: testWallet.Hex(), Phase: "public", Active: true,
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.False(t, machine.Status().PublicSaleActive)
	})

	t.Run("Owner toggles public phase", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/admin/sale", SetPhaseRequestV1{
			Caller: testOwner.Hex(), Phase: "public", Active: true,
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, machine.Status().PublicSaleActive)
	})

	t.Run("Unknown phase maps to 400", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/admin/sale", SetPhaseRequestV1{
			Caller: testOwner.Hex(), Phase: "presale", Active: true,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Install root then read it back", func(t *testing.T) {
		root := "0x" + fmt.Sprintf("%064x", 42)
		rec := doJSON(t, h, http.MethodPost, "/admin/root", SetRootRequestV1{
			Caller: testOwner.Hex(), Root: root,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, h, http.MethodGet, "/root", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp RootResponseV1
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, root, resp.Root)
	})

	t.Run("Short root maps to 400", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/admin/root", SetRootRequestV1{
			Caller: testOwner.Hex(), Root: "0x1234",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Reveal and URI flow", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/admin/uri", SetURIRequestV1{
			Caller: testOwner.Hex(), BaseURI: "ipfs://QmBase/", PlaceholderURI: "ipfs://hidden.json",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		// Mint one token, resolve before and after reveal
		rec = doJSON(t, h, http.MethodPost, "/mint/public", MintRequestV1{
			Caller: testWallet.Hex(), Quantity: 1, PaymentWei: "1000",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, h, http.MethodGet, "/token/0/uri", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var uriResp TokenURIResponseV1
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &uriResp))
		assert.Equal(t, "ipfs://hidden.json", uriResp.URI)

		rec = doJSON(t, h, http.MethodPost, "/admin/reveal", SetFlagRequestV1{
			Caller: testOwner.Hex(), Value: true,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, h, http.MethodGet, "/token/0/uri", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &uriResp))
		assert.Equal(t, "ipfs://QmBase/1.json", uriResp.URI)
	})

	t.Run("Unknown token maps to 404", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/token/999/uri", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Non-numeric token id", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/token/abc/uri", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// TestStatusEndpoint covers the read-only status view.
func TestStatusEndpoint(t *testing.T) {
	srv, machine := newTestServer(t, Config{})
	h := srv.GetHandler()

	require.NoError(t, machine.SetPublicSaleActive(testOwner, true))

	rec := doJSON(t, h, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status mint.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.PublicSaleActive)
	assert.Equal(t, uint64(100), status.MaxSupply)
}

// TestMintRateLimit covers the shared token bucket over the mint endpoints.
func TestMintRateLimit(t *testing.T) {
	srv, machine := newTestServer(t, Config{MintRatePerSecond: 0.001, MintBurst: 2})
	h := srv.GetHandler()
	require.NoError(t, machine.SetPublicSaleActive(testOwner, true))

	body := MintRequestV1{Caller: testWallet.Hex(), Quantity: 1, PaymentWei: "1000"}

	// The burst of 2 passes, the third request is shed
	for i := 0; i < 2; i++ {
		rec := doJSON(t, h, http.MethodPost, "/mint/public", body)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := doJSON(t, h, http.MethodPost, "/mint/public", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
