// Package journal records every committed ledger mutation as a typed,
// versioned event and replays them to rebuild state. Streams are
// append-only; appends carry an expected version so concurrent writers
// cannot interleave silently.
package journal

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/cryptomonkeys/go-monkeychain/ledger"
)

// EventType names a committed mutation.
type EventType string

const (
	EventFounderMinted EventType = "FounderMinted"
	EventMonkeyBred    EventType = "MonkeyBred"
	EventTransferred   EventType = "Transferred"
	EventApproved      EventType = "Approved"
	EventOperatorSet   EventType = "OperatorSet"
	EventOfferSet      EventType = "OfferSet"
	EventOfferRemoved  EventType = "OfferRemoved"
	EventMonkeyBought  EventType = "MonkeyBought"
	EventDeposited     EventType = "Deposited"
)

// Event is a single journal entry. Version is assigned by the store at
// append time, starting at 0 per stream.
type Event struct {
	ID       string          `json:"id"`
	Stream   string          `json:"stream"`
	Type     EventType       `json:"type"`
	Version  int             `json:"version"`
	Recorded time.Time       `json:"recorded"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// NewEvent creates an event with a fresh UUID and a JSON-encoded payload.
func NewEvent(stream string, typ EventType, data any) (*Event, error) {
	e := &Event{
		ID:       uuid.NewString(),
		Stream:   stream,
		Type:     typ,
		Recorded: time.Now().UTC(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		e.Data = raw
	}
	return e, nil
}

// Decode unmarshals the event payload into v.
func (e *Event) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

// Payloads. Prices travel as decimal strings so 256-bit values survive
// JSON round trips.

type FounderMinted struct {
	TokenID uint64          `json:"tokenId"`
	Genes   uint64          `json:"genes"`
	Owner   ledger.Identity `json:"owner"`
}

type MonkeyBred struct {
	TokenID    uint64          `json:"tokenId"`
	ParentA    uint64          `json:"parentA"`
	ParentB    uint64          `json:"parentB"`
	Genes      uint64          `json:"genes"`
	Generation uint32          `json:"generation"`
	Owner      ledger.Identity `json:"owner"`
}

type Transferred struct {
	TokenID uint64          `json:"tokenId"`
	From    ledger.Identity `json:"from"`
	To      ledger.Identity `json:"to"`
	Caller  ledger.Identity `json:"caller"`
}

type Approved struct {
	TokenID uint64          `json:"tokenId"`
	Spender ledger.Identity `json:"spender"`
	Caller  ledger.Identity `json:"caller"`
}

type OperatorSet struct {
	Owner    ledger.Identity `json:"owner"`
	Operator ledger.Identity `json:"operator"`
	Enabled  bool            `json:"enabled"`
}

type OfferSet struct {
	TokenID uint64          `json:"tokenId"`
	Seller  ledger.Identity `json:"seller"`
	Price   string          `json:"price"`
}

type OfferRemoved struct {
	TokenID uint64          `json:"tokenId"`
	Caller  ledger.Identity `json:"caller"`
}

type MonkeyBought struct {
	TokenID uint64          `json:"tokenId"`
	Seller  ledger.Identity `json:"seller"`
	Buyer   ledger.Identity `json:"buyer"`
	Price   string          `json:"price"`
}

type Deposited struct {
	Who    ledger.Identity `json:"who"`
	Amount string          `json:"amount"`
}
