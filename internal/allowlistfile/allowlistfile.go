package allowlistfile

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Read parses an allow-list file: one hex address per line, blank lines
// and '#' comments ignored. Duplicate addresses are permitted here; the
// tree builder collapses them.
func Read(path string) ([]common.Address, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var addresses []common.Address
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !common.IsHexAddress(line) {
			return nil, fmt.Errorf("%s:%d: not a hex address: %q", path, lineNo, line)
		}
		addresses = append(addresses, common.HexToAddress(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(addresses) == 0 {
		return nil, fmt.Errorf("%s: no addresses found", path)
	}
	return addresses, nil
}
