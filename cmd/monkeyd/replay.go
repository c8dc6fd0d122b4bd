package main

import (
	"context"
	"fmt"

	"github.com/cryptomonkeys/go-monkeychain/node"
)

// replayCmd rebuilds state from the journal and prints where it landed.
// Useful for verifying a journal file before pointing serve at it.
func replayCmd(args []string) error {
	cfg, err := loadConfig(args, "replay")
	if err != nil {
		return err
	}

	store, err := cfg.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := node.Replay(context.Background(), cfg.nodeConfig(store, nil))
	if err != nil {
		return err
	}

	root := n.StateRoot()
	fmt.Printf("journal version: %d\n", n.JournalVersion())
	fmt.Printf("total supply:    %d\n", n.TotalSupply())
	fmt.Printf("gen0 minted:     %d\n", n.Gen0Minted())
	fmt.Printf("state root:      %s\n", hexRoot(root))
	return nil
}
