package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Forge-Labs/mintgate-go/pkg/persistence"
)

func sampleState() *persistence.SaleState {
	return &persistence.SaleState{
		TotalIssued:      7,
		PublicMinted:     map[string]uint64{"0x01": 7},
		WhitelistMinted:  map[string]uint64{},
		PublicSaleActive: true,
		AccumulatedFunds: "7000",
		CommitmentRoot:   "0x0000000000000000000000000000000000000000000000000000000000000001",
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := NewMemoryStore()

	// First run: no snapshot
	state, err := store.LoadSaleState()
	require.NoError(t, err)
	require.Nil(t, state)

	require.NoError(t, store.SaveSaleState(sampleState()))

	loaded, err := store.LoadSaleState()
	require.NoError(t, err)
	assert.Equal(t, sampleState(), loaded)
}

func TestSaveOverwrites(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.SaveSaleState(sampleState()))

	next := sampleState()
	next.TotalIssued = 9
	require.NoError(t, store.SaveSaleState(next))

	loaded, err := store.LoadSaleState()
	require.NoError(t, err)
	assert.Equal(t, uint64(9), loaded.TotalIssued)
}

func TestDeepCopyIsolation(t *testing.T) {
	store := NewMemoryStore()
	state := sampleState()
	require.NoError(t, store.SaveSaleState(state))

	// Mutating the caller's copy must not leak into the store
	state.PublicMinted["0x01"] = 999

	loaded, err := store.LoadSaleState()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), loaded.PublicMinted["0x01"])

	// Mutating the loaded copy must not leak either
	loaded.PublicMinted["0x01"] = 123
	again, err := store.LoadSaleState()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), again.PublicMinted["0x01"])
}

func TestNilState(t *testing.T) {
	store := NewMemoryStore()
	require.Error(t, store.SaveSaleState(nil))
}

func TestClosedStore(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Close())

	require.Error(t, store.SaveSaleState(sampleState()))
	_, err := store.LoadSaleState()
	require.Error(t, err)
}

func TestConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.SaveSaleState(sampleState())
		}()
		go func() {
			defer wg.Done()
			_, _ = store.LoadSaleState()
		}()
	}
	wg.Wait()

	loaded, err := store.LoadSaleState()
	require.NoError(t, err)
	require.NotNil(t, loaded)
}
