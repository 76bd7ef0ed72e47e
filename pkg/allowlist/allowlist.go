package allowlist

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrNotAMember is returned when a proof is requested for an address that
// is not part of the tree.
var ErrNotAMember = fmt.Errorf("address is not a member of the allow-list")

// BuildTree creates a binary merkle tree from an allow-list of addresses.
// Duplicate addresses are collapsed and the leaf hashes are sorted before
// building, so the same address set always yields the same root regardless
// of input ordering.
//
// Pairs are sorted ascending before hashing (OpenZeppelin MerkleProof
// convention), and an odd node at any level is carried up to the next
// level unchanged.
func BuildTree(addresses []common.Address) (*Tree, error) {
	if len(addresses) == 0 {
		return nil, fmt.Errorf("cannot build merkle tree from empty address list")
	}

	// Dedup, then hash each address to its leaf
	seen := make(map[common.Address]struct{}, len(addresses))
	unique := make([]common.Address, 0, len(addresses))
	for _, addr := range addresses {
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		unique = append(unique, addr)
	}

	leaves := make([][32]byte, len(unique))
	for i, addr := range unique {
		leaves[i] = HashAddress(addr)
	}

	// Sort leaves (and addresses alongside) for deterministic ordering
	sort.Sort(&leafSorter{leaves: leaves, addrs: unique})

	leafIndex := make(map[common.Address]int, len(unique))
	for i, addr := range unique {
		leafIndex[addr] = i
	}

	// Build tree levels bottom-up
	levels := make([][][32]byte, 0)
	levels = append(levels, leaves)

	currentLevel := leaves
	for len(currentLevel) > 1 {
		nextLevel := make([][32]byte, 0, (len(currentLevel)+1)/2)

		for i := 0; i < len(currentLevel); i += 2 {
			if i+1 < len(currentLevel) {
				nextLevel = append(nextLevel, hashPair(currentLevel[i], currentLevel[i+1]))
			} else {
				// Odd node out is carried up unpaired
				nextLevel = append(nextLevel, currentLevel[i])
			}
		}

		levels = append(levels, nextLevel)
		currentLevel = nextLevel
	}

	if len(currentLevel) != 1 {
		return nil, fmt.Errorf("merkle tree construction failed: final level has %d nodes instead of 1", len(currentLevel))
	}

	return &Tree{
		Leaves:    leaves,
		Root:      currentLevel[0],
		leafIndex: leafIndex,
		levels:    levels,
	}, nil
}

// Proof creates a merkle proof for the given address. The proof consists
// of the sibling hashes along the path from the address's leaf to the root;
// levels where the node was carried up unpaired contribute no sibling.
func (t *Tree) Proof(addr common.Address) (*Proof, error) {
	index, ok := t.leafIndex[addr]
	if !ok {
		return nil, ErrNotAMember
	}

	siblings := make([][32]byte, 0)
	for level := 0; level < len(t.levels)-1; level++ {
		currentLevel := t.levels[level]

		var siblingIndex int
		if index%2 == 0 {
			siblingIndex = index + 1
		} else {
			siblingIndex = index - 1
		}

		// A carried-up node has no sibling at this level
		if siblingIndex < len(currentLevel) {
			siblings = append(siblings, currentLevel[siblingIndex])
		}

		index = index / 2
	}

	return &Proof{
		Address:  addr,
		Leaf:     HashAddress(addr),
		Siblings: siblings,
	}, nil
}

// Members returns the addresses in the tree in leaf order.
func (t *Tree) Members() []common.Address {
	members := make([]common.Address, len(t.leafIndex))
	for addr, i := range t.leafIndex {
		members[i] = addr
	}
	return members
}

// VerifyProof checks that addr is a member of the tree committed to by root.
// It recomputes a candidate root by sorted-pair hashing the address's leaf
// with each sibling in turn and compares for exact equality. Pure function;
// a malformed proof is a false return, never a panic.
func VerifyProof(root [32]byte, addr common.Address, siblings [][32]byte) bool {
	currentHash := HashAddress(addr)

	for _, sibling := range siblings {
		currentHash = hashPair(currentHash, sibling)
	}

	return currentHash == root
}

// HashAddress creates the keccak256 leaf hash of an address.
// Matches Solidity keccak256(abi.encodePacked(addr)).
func HashAddress(addr common.Address) [32]byte {
	return [32]byte(crypto.Keccak256Hash(addr.Bytes()))
}

// hashPair computes keccak256(min(a,b) || max(a,b)) for two 32-byte hashes.
// Sorting the operands makes the combination order-independent, so proofs
// carry no left/right position bits.
func hashPair(a, b [32]byte) [32]byte {
	data := make([]byte, 64)
	if bytes.Compare(a[:], b[:]) <= 0 {
		copy(data[0:32], a[:])
		copy(data[32:64], b[:])
	} else {
		copy(data[0:32], b[:])
		copy(data[32:64], a[:])
	}

	return [32]byte(crypto.Keccak256Hash(data))
}

// leafSorter sorts leaves ascending while keeping addresses aligned.
type leafSorter struct {
	leaves [][32]byte
	addrs  []common.Address
}

func (s *leafSorter) Len() int { return len(s.leaves) }
func (s *leafSorter) Less(i, j int) bool {
	return bytes.Compare(s.leaves[i][:], s.leaves[j][:]) < 0
}
func (s *leafSorter) Swap(i, j int) {
	s.leaves[i], s.leaves[j] = s.leaves[j], s.leaves[i]
	s.addrs[i], s.addrs[j] = s.addrs[j], s.addrs[i]
}
