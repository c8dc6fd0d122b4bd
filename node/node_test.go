package node_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"github.com/cryptomonkeys/go-monkeychain/journal"
	"github.com/cryptomonkeys/go-monkeychain/ledger"
	"github.com/cryptomonkeys/go-monkeychain/market"
	"github.com/cryptomonkeys/go-monkeychain/node"
)

const (
	alice ledger.Identity = "alice"
	bob   ledger.Identity = "bob"
)

func testConfig(store journal.Store) node.Config {
	return node.Config{
		Registry: ledger.RegistryConfig{Owner: alice, Entropy: 7},
		Store:    store,
		Logger:   zerolog.Nop(),
	}
}

func startNode(t *testing.T, store journal.Store) *node.Node {
	t.Helper()
	n := node.New(testConfig(store))
	n.Start()
	t.Cleanup(n.Stop)
	return n
}

func TestNodeLifecycle(t *testing.T) {
	ctx := context.Background()
	store := journal.NewMemoryStore()
	n := startNode(t, store)

	// Found the colony.
	for i := 0; i < 2; i++ {
		id, err := n.MintFounder(ctx, 1111111111111111*uint64(i+1), alice)
		if err != nil {
			t.Fatalf("mint %d: %v", i, err)
		}
		if id != uint64(i+1) {
			t.Errorf("mint %d got id %d", i, id)
		}
	}

	// Breed, list, fund, and buy.
	childID, err := n.Breed(ctx, 1, 2, alice)
	if err != nil {
		t.Fatalf("breed: %v", err)
	}
	if childID != 3 {
		t.Errorf("child id = %d, want 3", childID)
	}

	if err := n.SetOperator(ctx, alice, "market", true, alice); err != nil {
		t.Fatalf("operator grant: %v", err)
	}
	if err := n.SetOffer(ctx, uint256.NewInt(5), childID, alice); err != nil {
		t.Fatalf("set offer: %v", err)
	}
	if err := n.Deposit(ctx, bob, uint256.NewInt(20)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := n.Buy(ctx, childID, uint256.NewInt(5), bob); err != nil {
		t.Fatalf("buy: %v", err)
	}

	owner, err := n.OwnerOf(childID)
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	if owner != bob {
		t.Errorf("owner = %s, want %s", owner, bob)
	}
	if got := n.VaultBalanceOf(bob); !got.Eq(uint256.NewInt(15)) {
		t.Errorf("buyer balance = %s, want 15", got.Dec())
	}
	if got := n.VaultBalanceOf(alice); !got.Eq(uint256.NewInt(5)) {
		t.Errorf("seller balance = %s, want 5", got.Dec())
	}
	if got := n.TotalSupply(); got != 4 {
		t.Errorf("total supply = %d, want 4", got)
	}

	// Seven committed mutations, versions 0 through 6.
	if got := n.JournalVersion(); got != 6 {
		t.Errorf("journal version = %d, want 6", got)
	}
}

func TestNodeRejectionsNotJournaled(t *testing.T) {
	ctx := context.Background()
	store := journal.NewMemoryStore()
	n := startNode(t, store)

	if _, err := n.MintFounder(ctx, 123, bob); !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("mint by stranger: %v, want ErrUnauthorized", err)
	}
	if err := n.Buy(ctx, 1, uint256.NewInt(1), bob); !errors.Is(err, market.ErrNoActiveOffer) {
		t.Fatalf("buy without offer: %v, want ErrNoActiveOffer", err)
	}

	version, err := store.StreamVersion(ctx, node.DefaultStream)
	if err != nil {
		t.Fatalf("stream version: %v", err)
	}
	if version != -1 {
		t.Errorf("journal version = %d, want -1 after only rejections", version)
	}
}

func TestNodeConcurrentMints(t *testing.T) {
	ctx := context.Background()
	n := startNode(t, journal.NewMemoryStore())

	// Hammer the cap from many goroutines; exactly the cap may land.
	var wg sync.WaitGroup
	var mu sync.Mutex
	var minted, rejected int
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(genes uint64) {
			defer wg.Done()
			_, err := n.MintFounder(ctx, genes, alice)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				minted++
			case errors.Is(err, ledger.ErrGen0LimitReached):
				rejected++
			default:
				t.Errorf("mint: %v", err)
			}
		}(1000000000000000 + uint64(i))
	}
	wg.Wait()

	if minted != ledger.DefaultGen0Limit {
		t.Errorf("minted = %d, want %d", minted, ledger.DefaultGen0Limit)
	}
	if rejected != 40-ledger.DefaultGen0Limit {
		t.Errorf("rejected = %d, want %d", rejected, 40-ledger.DefaultGen0Limit)
	}
	if got := n.TotalSupply(); got != ledger.DefaultGen0Limit+1 {
		t.Errorf("total supply = %d, want %d", got, ledger.DefaultGen0Limit+1)
	}
}

func TestReplay(t *testing.T) {
	ctx := context.Background()
	store := journal.NewMemoryStore()
	n := startNode(t, store)

	for i := 0; i < 4; i++ {
		if _, err := n.MintFounder(ctx, 1111111111111111*uint64(i+1), alice); err != nil {
			t.Fatalf("mint: %v", err)
		}
	}
	if _, err := n.Breed(ctx, 1, 2, alice); err != nil {
		t.Fatalf("breed: %v", err)
	}
	if err := n.SetOperator(ctx, alice, "market", true, alice); err != nil {
		t.Fatalf("operator grant: %v", err)
	}
	if err := n.SetOffer(ctx, uint256.NewInt(5), 3, alice); err != nil {
		t.Fatalf("set offer: %v", err)
	}
	if err := n.Deposit(ctx, bob, uint256.NewInt(20)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := n.Buy(ctx, 3, uint256.NewInt(5), bob); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if err := n.Approve(ctx, 4, bob, alice); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := n.Transfer(ctx, alice, bob, 4, bob); err != nil {
		t.Fatalf("approved transfer: %v", err)
	}

	replayed, err := node.Replay(ctx, testConfig(store))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}

	if got, want := replayed.StateRoot(), n.StateRoot(); got != want {
		t.Errorf("replayed root %x, want %x", got, want)
	}
	if got, want := replayed.TotalSupply(), n.TotalSupply(); got != want {
		t.Errorf("replayed supply = %d, want %d", got, want)
	}
	if got, want := replayed.JournalVersion(), n.JournalVersion(); got != want {
		t.Errorf("replayed version = %d, want %d", got, want)
	}
	owner, err := replayed.OwnerOf(3)
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	if owner != bob {
		t.Errorf("replayed owner of 3 = %s, want %s", owner, bob)
	}
}

func TestReplayDivergence(t *testing.T) {
	ctx := context.Background()
	store := journal.NewMemoryStore()

	// A journal claiming a child the breeding rule would never produce.
	bogus, err := journal.NewEvent(node.DefaultStream, journal.EventMonkeyBred, journal.MonkeyBred{
		TokenID: 1, ParentA: 1, ParentB: 2, Genes: 42, Owner: alice,
	})
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	if _, err := store.Append(ctx, node.DefaultStream, -1, []*journal.Event{bogus}); err != nil {
		t.Fatalf("append: %v", err)
	}

	if _, err := node.Replay(ctx, testConfig(store)); !errors.Is(err, node.ErrReplayDiverged) {
		t.Errorf("replay: %v, want ErrReplayDiverged", err)
	}
}

func TestStoppedNode(t *testing.T) {
	n := node.New(testConfig(nil))
	n.Start()
	n.Stop()

	_, err := n.MintFounder(context.Background(), 123, alice)
	if !errors.Is(err, node.ErrStopped) {
		t.Errorf("mint after stop: %v, want ErrStopped", err)
	}
}
