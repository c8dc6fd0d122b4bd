// Package node hosts the registry, market, and vault behind a single
// mutation goroutine. Every mutating call is serialized through one
// command channel, so operations execute one at a time exactly as the
// ledger model requires; read queries run against committed state under a
// read lock. Committed mutations are journaled and refresh the state
// root.
package node

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"github.com/cryptomonkeys/go-monkeychain/commitment"
	"github.com/cryptomonkeys/go-monkeychain/journal"
	"github.com/cryptomonkeys/go-monkeychain/ledger"
	"github.com/cryptomonkeys/go-monkeychain/market"
)

// DefaultStream is the journal stream name for a node's ledger.
const DefaultStream = "monkeychain"

// ErrStopped is returned for mutations submitted after Stop.
var ErrStopped = errors.New("node: stopped")

// Config assembles a node.
type Config struct {
	Registry ledger.RegistryConfig

	// MarketID is the marketplace's identity on the registry. Sellers
	// grant it operator status before listing. Defaults to "market".
	MarketID ledger.Identity

	// Store receives one event per committed mutation. Nil disables
	// journaling.
	Store journal.Store

	// Stream is the journal stream name. Defaults to DefaultStream.
	Stream string

	Logger  zerolog.Logger
	Metrics *Metrics
}

type command struct {
	op    string
	apply func() (*journal.Event, error)
	reply chan error
}

// Node is a running ledger instance.
type Node struct {
	log      zerolog.Logger
	registry *ledger.Registry
	market   *market.Market
	vault    *market.Vault
	store    journal.Store
	stream   string
	metrics  *Metrics

	mu      sync.RWMutex
	root    [commitment.RootSize]byte
	version int

	cmds chan command
	quit chan struct{}
	done chan struct{}
}

// New assembles a node. Call Start before submitting operations.
func New(cfg Config) *Node {
	if cfg.MarketID == "" {
		cfg.MarketID = "market"
	}
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	registry := ledger.NewRegistry(cfg.Registry)
	vault := market.NewVault()
	n := &Node{
		log:      cfg.Logger,
		registry: registry,
		market:   market.New(cfg.MarketID, registry, vault),
		vault:    vault,
		store:    cfg.Store,
		stream:   cfg.Stream,
		metrics:  cfg.Metrics,
		version:  -1,
		cmds:     make(chan command),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	n.root = n.computeRoot()
	return n
}

// Start launches the mutation loop.
func (n *Node) Start() {
	go n.loop()
}

// Stop halts the mutation loop and waits for it to drain.
func (n *Node) Stop() {
	close(n.quit)
	<-n.done
}

func (n *Node) loop() {
	defer close(n.done)
	for {
		select {
		case cmd := <-n.cmds:
			cmd.reply <- n.commit(cmd)
		case <-n.quit:
			return
		}
	}
}

// commit runs one mutation to completion under the write lock: apply,
// journal, refresh the root.
func (n *Node) commit(cmd command) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	event, err := cmd.apply()
	if err != nil {
		n.metrics.rejected(cmd.op)
		n.log.Debug().Str("op", cmd.op).Err(err).Msg("rejected")
		return err
	}

	if n.store != nil {
		version, err := n.store.Append(context.Background(), n.stream, n.version, []*journal.Event{event})
		if err != nil {
			// State is already mutated; surface the divergence loudly
			// rather than hiding the committed change.
			n.log.Error().Str("op", cmd.op).Err(err).Msg("journal append failed after commit")
			return fmt.Errorf("node: journal diverged: %w", err)
		}
		n.version = version
	}

	n.root = n.computeRoot()
	n.metrics.committed(cmd.op)
	n.log.Debug().Str("op", cmd.op).Str("event", string(event.Type)).Msg("committed")
	return nil
}

// do submits a mutation and waits for its result.
func (n *Node) do(ctx context.Context, op string, apply func() (*journal.Event, error)) error {
	cmd := command{op: op, apply: apply, reply: make(chan error, 1)}
	select {
	case n.cmds <- cmd:
	case <-n.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Node) computeRoot() [commitment.RootSize]byte {
	return commitment.Root(n.registry.Snapshot(), n.market.Offers(), n.vault.Balances())
}

// MintFounder mints a generation-0 monkey for the registry owner.
func (n *Node) MintFounder(ctx context.Context, genes uint64, caller ledger.Identity) (uint64, error) {
	var id uint64
	err := n.do(ctx, "mint_founder", func() (*journal.Event, error) {
		var err error
		id, err = n.registry.MintFounder(genes, caller)
		if err != nil {
			return nil, err
		}
		return journal.NewEvent(n.stream, journal.EventFounderMinted, journal.FounderMinted{
			TokenID: id, Genes: genes, Owner: caller,
		})
	})
	return id, err
}

// Breed derives a child from two parents for the caller.
func (n *Node) Breed(ctx context.Context, parentA, parentB uint64, caller ledger.Identity) (uint64, error) {
	var id uint64
	err := n.do(ctx, "breed", func() (*journal.Event, error) {
		var err error
		id, err = n.registry.Breed(parentA, parentB, caller)
		if err != nil {
			return nil, err
		}
		child, err := n.registry.DetailsOf(id)
		if err != nil {
			return nil, err
		}
		return journal.NewEvent(n.stream, journal.EventMonkeyBred, journal.MonkeyBred{
			TokenID: id, ParentA: parentA, ParentB: parentB,
			Genes: child.Genes, Generation: child.Generation, Owner: caller,
		})
	})
	return id, err
}

// Transfer moves an asset between identities.
func (n *Node) Transfer(ctx context.Context, from, to ledger.Identity, id uint64, caller ledger.Identity) error {
	return n.do(ctx, "transfer", func() (*journal.Event, error) {
		if err := n.registry.Transfer(from, to, id, caller); err != nil {
			return nil, err
		}
		return journal.NewEvent(n.stream, journal.EventTransferred, journal.Transferred{
			TokenID: id, From: from, To: to, Caller: caller,
		})
	})
}

// Approve grants a single-use transfer approval.
func (n *Node) Approve(ctx context.Context, id uint64, spender, caller ledger.Identity) error {
	return n.do(ctx, "approve", func() (*journal.Event, error) {
		if err := n.registry.Approve(id, spender, caller); err != nil {
			return nil, err
		}
		return journal.NewEvent(n.stream, journal.EventApproved, journal.Approved{
			TokenID: id, Spender: spender, Caller: caller,
		})
	})
}

// SetOperator grants or revokes a blanket operator flag.
func (n *Node) SetOperator(ctx context.Context, owner, operator ledger.Identity, enabled bool, caller ledger.Identity) error {
	return n.do(ctx, "set_operator", func() (*journal.Event, error) {
		if err := n.registry.SetOperator(owner, operator, enabled, caller); err != nil {
			return nil, err
		}
		return journal.NewEvent(n.stream, journal.EventOperatorSet, journal.OperatorSet{
			Owner: owner, Operator: operator, Enabled: enabled,
		})
	})
}

// Deposit credits native units into the vault.
func (n *Node) Deposit(ctx context.Context, who ledger.Identity, amount *uint256.Int) error {
	value := new(uint256.Int).Set(amount)
	return n.do(ctx, "deposit", func() (*journal.Event, error) {
		n.vault.Deposit(who, value)
		return journal.NewEvent(n.stream, journal.EventDeposited, journal.Deposited{
			Who: who, Amount: value.Dec(),
		})
	})
}

// SetOffer lists an asset at a fixed price.
func (n *Node) SetOffer(ctx context.Context, price *uint256.Int, id uint64, seller ledger.Identity) error {
	value := new(uint256.Int).Set(price)
	return n.do(ctx, "set_offer", func() (*journal.Event, error) {
		if err := n.market.SetOffer(value, id, seller); err != nil {
			return nil, err
		}
		return journal.NewEvent(n.stream, journal.EventOfferSet, journal.OfferSet{
			TokenID: id, Seller: seller, Price: value.Dec(),
		})
	})
}

// RemoveOffer delists an asset.
func (n *Node) RemoveOffer(ctx context.Context, id uint64, caller ledger.Identity) error {
	return n.do(ctx, "remove_offer", func() (*journal.Event, error) {
		if err := n.market.RemoveOffer(id, caller); err != nil {
			return nil, err
		}
		return journal.NewEvent(n.stream, journal.EventOfferRemoved, journal.OfferRemoved{
			TokenID: id, Caller: caller,
		})
	})
}

// Buy settles the active offer for an asset.
func (n *Node) Buy(ctx context.Context, id uint64, payment *uint256.Int, buyer ledger.Identity) error {
	value := new(uint256.Int).Set(payment)
	return n.do(ctx, "buy", func() (*journal.Event, error) {
		offer, ok := n.market.OfferFor(id)
		if !ok {
			return nil, fmt.Errorf("%w: id %d", market.ErrNoActiveOffer, id)
		}
		if err := n.market.Buy(id, value, buyer); err != nil {
			return nil, err
		}
		return journal.NewEvent(n.stream, journal.EventMonkeyBought, journal.MonkeyBought{
			TokenID: id, Seller: offer.Seller, Buyer: buyer, Price: offer.Price.Dec(),
		})
	})
}

// Queries. All run against the latest committed state.

func (n *Node) OwnerOf(id uint64) (ledger.Identity, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.registry.OwnerOf(id)
}

func (n *Node) DetailsOf(id uint64) (ledger.Asset, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.registry.DetailsOf(id)
}

func (n *Node) IDsOwnedBy(owner ledger.Identity) []uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.registry.IDsOwnedBy(owner)
}

func (n *Node) TotalSupply() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.registry.TotalSupply()
}

func (n *Node) Gen0Minted() uint32 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.registry.Gen0Minted()
}

func (n *Node) ActiveOffers() []uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.market.ActiveOffers()
}

func (n *Node) OfferFor(id uint64) (market.Offer, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.market.OfferFor(id)
}

func (n *Node) VaultBalanceOf(who ledger.Identity) *uint256.Int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.vault.BalanceOf(who)
}

// StateRoot returns the commitment over the latest committed state.
func (n *Node) StateRoot() [commitment.RootSize]byte {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.root
}

// JournalVersion returns the last journaled version, -1 when empty or
// journaling is disabled.
func (n *Node) JournalVersion() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.version
}
