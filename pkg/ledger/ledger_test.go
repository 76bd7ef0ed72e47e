package ledger

import (
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(i int64) common.Address {
	return common.BigToAddress(big.NewInt(i))
}

// TestIssueAssignsMonotonicIDs verifies ids are contiguous and monotonic
// across owners.
func TestIssueAssignsMonotonicIDs(t *testing.T) {
	l := NewMemoryLedger()

	first, err := l.Issue(addr(1), 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), first)

	second, err := l.Issue(addr(2), 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), second)

	assert.Equal(t, uint64(5), l.TotalMinted())
	assert.Equal(t, uint64(3), l.BalanceOf(addr(1)))
	assert.Equal(t, uint64(2), l.BalanceOf(addr(2)))
}

// TestOwnerOf verifies ownership lookups and the unknown-token failure.
func TestOwnerOf(t *testing.T) {
	l := NewMemoryLedger()

	_, err := l.Issue(addr(7), 2)
	require.NoError(t, err)

	owner, err := l.OwnerOf(1)
	require.NoError(t, err)
	assert.Equal(t, addr(7), owner)

	_, err = l.OwnerOf(2)
	require.ErrorIs(t, err, ErrUnknownToken)
}

// TestIssueRejectsInvalidInput verifies zero quantity and zero address fail.
func TestIssueRejectsInvalidInput(t *testing.T) {
	l := NewMemoryLedger()

	_, err := l.Issue(addr(1), 0)
	require.Error(t, err)

	_, err = l.Issue(common.Address{}, 1)
	require.Error(t, err)

	assert.Equal(t, uint64(0), l.TotalMinted())
}

// TestOwnersSnapshotRoundTrip verifies a ledger rebuilt from an Owners
// snapshot keeps every record and resumes id assignment after the highest
// restored id.
func TestOwnersSnapshotRoundTrip(t *testing.T) {
	l := NewMemoryLedger()
	_, err := l.Issue(addr(1), 3)
	require.NoError(t, err)
	_, err = l.Issue(addr(2), 2)
	require.NoError(t, err)

	restored := NewMemoryLedgerFromOwners(l.Owners())

	assert.Equal(t, uint64(5), restored.TotalMinted())
	assert.Equal(t, uint64(3), restored.BalanceOf(addr(1)))
	assert.Equal(t, uint64(2), restored.BalanceOf(addr(2)))

	owner, err := restored.OwnerOf(4)
	require.NoError(t, err)
	assert.Equal(t, addr(2), owner)

	// Ids continue, never reused
	first, err := restored.Issue(addr(3), 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), first)
}

// TestOwnersReturnsCopy verifies mutating the snapshot does not reach the
// ledger's own records.
func TestOwnersReturnsCopy(t *testing.T) {
	l := NewMemoryLedger()
	_, err := l.Issue(addr(1), 1)
	require.NoError(t, err)

	snapshot := l.Owners()
	snapshot[0] = addr(9)

	owner, err := l.OwnerOf(0)
	require.NoError(t, err)
	assert.Equal(t, addr(1), owner)
}

// TestConcurrentIssue verifies ids stay globally unique under concurrency.
func TestConcurrentIssue(t *testing.T) {
	l := NewMemoryLedger()

	const workers = 50
	var wg sync.WaitGroup
	firsts := make([]uint64, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			first, err := l.Issue(addr(int64(i+1)), 2)
			require.NoError(t, err)
			firsts[i] = first
		}(i)
	}
	wg.Wait()

	assert.Equal(t, uint64(workers*2), l.TotalMinted())

	seen := make(map[uint64]bool)
	for _, first := range firsts {
		assert.False(t, seen[first], "range start %d assigned twice", first)
		seen[first] = true
		assert.Zero(t, first%2)
	}
}
