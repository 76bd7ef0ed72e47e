package badger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Forge-Labs/mintgate-go/pkg/persistence"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()

	store, err := NewBadgerStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBadgerSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	state, err := store.LoadSaleState()
	require.NoError(t, err)
	require.Nil(t, state)

	saved := &persistence.SaleState{
		TotalIssued:      12,
		PublicMinted:     map[string]uint64{"0x0000000000000000000000000000000000000001": 12},
		WhitelistMinted:  map[string]uint64{},
		TeamMinted:       true,
		AccumulatedFunds: "12000",
	}
	require.NoError(t, store.SaveSaleState(saved))

	loaded, err := store.LoadSaleState()
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}

func TestBadgerPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewBadgerStore(dir, zap.NewNop())
	require.NoError(t, err)

	saved := &persistence.SaleState{
		TotalIssued:      3,
		PublicMinted:     map[string]uint64{},
		WhitelistMinted:  map[string]uint64{"0x0000000000000000000000000000000000000002": 3},
		AccumulatedFunds: "1500",
	}
	require.NoError(t, store.SaveSaleState(saved))
	require.NoError(t, store.Close())

	reopened, err := NewBadgerStore(dir, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	loaded, err := reopened.LoadSaleState()
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}

func TestBadgerClosedStore(t *testing.T) {
	store, err := NewBadgerStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	require.Error(t, store.SaveSaleState(&persistence.SaleState{}))
	_, err = store.LoadSaleState()
	require.Error(t, err)

	// Close is idempotent
	require.NoError(t, store.Close())
}
