package allowlist

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Tree is a binary merkle tree built over an allow-list of addresses.
// The tree uses keccak256 hashing with sorted-pair combination for
// Solidity MerkleProof compatibility.
type Tree struct {
	// Leaves contains the leaf hashes, sorted ascending by hash value
	Leaves [][32]byte

	// Root is the merkle root hash
	Root [32]byte

	// leafIndex maps each member address to its leaf position
	leafIndex map[common.Address]int

	// levels stores all tree levels for proof generation
	// levels[0] = leaves, levels[len-1] = root
	levels [][][32]byte
}

// Proof proves that one address is a member of the tree.
// Because pairs are sorted before hashing, verification needs no
// left/right position information, only the sibling hashes in order.
type Proof struct {
	// Address is the member address the proof was generated for
	Address common.Address

	// Leaf is the keccak256 hash of the address
	Leaf [32]byte

	// Siblings contains the sibling hashes from leaf to root.
	// Siblings[0] is the sibling of the leaf.
	Siblings [][32]byte
}

// proofJSON is the wire form served to front ends: all fields 0x-hex.
type proofJSON struct {
	Address  string   `json:"address"`
	Leaf     string   `json:"leaf"`
	Siblings []string `json:"siblings"`
}

// MarshalJSON encodes the proof with 0x-prefixed hex fields.
func (p *Proof) MarshalJSON() ([]byte, error) {
	out := proofJSON{
		Address:  p.Address.Hex(),
		Leaf:     hexutil.Encode(p.Leaf[:]),
		Siblings: make([]string, len(p.Siblings)),
	}
	for i, s := range p.Siblings {
		out.Siblings[i] = hexutil.Encode(s[:])
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the 0x-hex wire form.
func (p *Proof) UnmarshalJSON(data []byte) error {
	var in proofJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if !common.IsHexAddress(in.Address) {
		return fmt.Errorf("invalid address in proof: %s", in.Address)
	}
	p.Address = common.HexToAddress(in.Address)

	leaf, err := decodeHash(in.Leaf)
	if err != nil {
		return err
	}
	p.Leaf = leaf

	p.Siblings = make([][32]byte, len(in.Siblings))
	for i, s := range in.Siblings {
		h, err := decodeHash(s)
		if err != nil {
			return err
		}
		p.Siblings[i] = h
	}
	return nil
}

func decodeHash(s string) ([32]byte, error) {
	var h [32]byte
	b, err := hexutil.Decode(s)
	if err != nil {
		return h, err
	}
	if len(b) != 32 {
		return h, fmt.Errorf("hash must be 32 bytes, got %d", len(b))
	}
	copy(h[:], b)
	return h, nil
}
