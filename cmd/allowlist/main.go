package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"

	"github.com/Forge-Labs/mintgate-go/internal/allowlistfile"
	"github.com/Forge-Labs/mintgate-go/pkg/allowlist"
)

func main() {
	app := &cli.App{
		Name:  "allowlist",
		Usage: "Offline merkle commitment builder and prover for drop allow-lists",
		Description: `Builds the keccak256 sorted-pair merkle tree over an address file and
emits the root commitment plus per-member inclusion proofs for front-end
consumption. Runs entirely offline; the root is installed into the drop
server through its admin API.`,
		Version: "1.0.0",
		Commands: []*cli.Command{
			{
				Name:  "root",
				Usage: "Print the commitment root for an allow-list file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Allow-list file, one hex address per line",
						Required: true,
					},
				},
				Action: runRoot,
			},
			{
				Name:  "proofs",
				Usage: "Write per-member inclusion proofs as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Allow-list file, one hex address per line",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output directory (one <address>.json per member); stdout when empty",
					},
				},
				Action: runProofs,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func buildTreeFromFile(path string) (*allowlist.Tree, error) {
	addresses, err := allowlistfile.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read allow-list: %w", err)
	}
	tree, err := allowlist.BuildTree(addresses)
	if err != nil {
		return nil, fmt.Errorf("failed to build tree: %w", err)
	}
	return tree, nil
}

func runRoot(c *cli.Context) error {
	tree, err := buildTreeFromFile(c.String("file"))
	if err != nil {
		return err
	}

	fmt.Printf("members: %d\n", len(tree.Leaves))
	fmt.Printf("root:    %s\n", hexutil.Encode(tree.Root[:]))
	return nil
}

func runProofs(c *cli.Context) error {
	tree, err := buildTreeFromFile(c.String("file"))
	if err != nil {
		return err
	}

	outDir := c.String("out")
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}
	}

	for _, member := range tree.Members() {
		proof, err := tree.Proof(member)
		if err != nil {
			return fmt.Errorf("failed to prove %s: %w", member.Hex(), err)
		}

		data, err := json.MarshalIndent(proof, "", "  ")
		if err != nil {
			return err
		}

		if outDir == "" {
			fmt.Println(string(data))
			continue
		}

		name := strings.ToLower(member.Hex()) + ".json"
		if err := os.WriteFile(filepath.Join(outDir, name), data, 0o644); err != nil {
			return err
		}
	}

	if outDir != "" {
		fmt.Printf("wrote %d proofs to %s (root %s)\n", len(tree.Leaves), outDir, hexutil.Encode(tree.Root[:]))
	}
	return nil
}
