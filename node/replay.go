package node

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/cryptomonkeys/go-monkeychain/journal"
)

// ErrReplayDiverged reports a journal entry whose outcome does not match
// the state it replays onto.
var ErrReplayDiverged = errors.New("node: replay diverged")

// Replay rebuilds a node from its journal. Every event is re-executed
// through the same operations that produced it, so the replayed state
// root matches the original run bit for bit. The returned node is not
// started.
func Replay(ctx context.Context, cfg Config) (*Node, error) {
	if cfg.Store == nil {
		return nil, errors.New("node: replay requires a journal store")
	}
	n := New(cfg)

	events, err := n.store.Read(ctx, n.stream, 0)
	if err != nil {
		return nil, fmt.Errorf("node: read journal: %w", err)
	}
	for _, e := range events {
		if err := n.apply(e); err != nil {
			return nil, fmt.Errorf("%w: version %d (%s): %v", ErrReplayDiverged, e.Version, e.Type, err)
		}
		n.version = e.Version
	}
	n.root = n.computeRoot()
	n.log.Info().Int("events", len(events)).Int("version", n.version).Msg("replay complete")
	return n, nil
}

// apply re-executes one journaled mutation against the live state.
func (n *Node) apply(e *journal.Event) error {
	switch e.Type {
	case journal.EventFounderMinted:
		var p journal.FounderMinted
		if err := e.Decode(&p); err != nil {
			return err
		}
		id, err := n.registry.MintFounder(p.Genes, p.Owner)
		if err != nil {
			return err
		}
		if id != p.TokenID {
			return fmt.Errorf("minted id %d, journal says %d", id, p.TokenID)
		}
		return nil

	case journal.EventMonkeyBred:
		var p journal.MonkeyBred
		if err := e.Decode(&p); err != nil {
			return err
		}
		id, err := n.registry.Breed(p.ParentA, p.ParentB, p.Owner)
		if err != nil {
			return err
		}
		child, err := n.registry.DetailsOf(id)
		if err != nil {
			return err
		}
		if id != p.TokenID || child.Genes != p.Genes {
			return fmt.Errorf("bred id %d genes %d, journal says id %d genes %d",
				id, child.Genes, p.TokenID, p.Genes)
		}
		return nil

	case journal.EventTransferred:
		var p journal.Transferred
		if err := e.Decode(&p); err != nil {
			return err
		}
		return n.registry.Transfer(p.From, p.To, p.TokenID, p.Caller)

	case journal.EventApproved:
		var p journal.Approved
		if err := e.Decode(&p); err != nil {
			return err
		}
		return n.registry.Approve(p.TokenID, p.Spender, p.Caller)

	case journal.EventOperatorSet:
		var p journal.OperatorSet
		if err := e.Decode(&p); err != nil {
			return err
		}
		return n.registry.SetOperator(p.Owner, p.Operator, p.Enabled, p.Owner)

	case journal.EventOfferSet:
		var p journal.OfferSet
		if err := e.Decode(&p); err != nil {
			return err
		}
		price, err := decPrice(p.Price)
		if err != nil {
			return err
		}
		return n.market.SetOffer(price, p.TokenID, p.Seller)

	case journal.EventOfferRemoved:
		var p journal.OfferRemoved
		if err := e.Decode(&p); err != nil {
			return err
		}
		return n.market.RemoveOffer(p.TokenID, p.Caller)

	case journal.EventMonkeyBought:
		var p journal.MonkeyBought
		if err := e.Decode(&p); err != nil {
			return err
		}
		price, err := decPrice(p.Price)
		if err != nil {
			return err
		}
		return n.market.Buy(p.TokenID, price, p.Buyer)

	case journal.EventDeposited:
		var p journal.Deposited
		if err := e.Decode(&p); err != nil {
			return err
		}
		amount, err := decPrice(p.Amount)
		if err != nil {
			return err
		}
		n.vault.Deposit(p.Who, amount)
		return nil

	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
}

func decPrice(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("bad amount %q: %w", s, err)
	}
	return v, nil
}
