package advisor

import "context"

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

func (a Action) Valid() bool {
	return a == ActionBuy || a == ActionSell || a == ActionHold
}

// Proposal is one agent's answer for one symbol in one round. Immutable once
// recorded.
type Proposal struct {
	Agent      string  `json:"agent"`
	Symbol     string  `json:"symbol"`
	Action     Action  `json:"action"`
	Quantity   int64   `json:"quantity"`
	Price      float64 `json:"price"`
	Confidence float64 `json:"confidence"` // 0..1
	Rationale  string  `json:"rationale"`
	Round      int     `json:"round"`
}

// PeerProposal is what an agent sees of the others in round 2: the position
// and the argument, never the identity.
type PeerProposal struct {
	Action    Action
	Rationale string
}

// Context is the bundle every advisor receives for a symbol. MemorySummary is
// per-agent; Peers is populated for round 2 only.
type Context struct {
	Symbol         string
	LastPrice      float64
	Change1d       float64
	Change1w       float64
	Volume24h      float64
	SentimentScore float64
	Equity         float64
	Cash           float64
	DrawdownPct    float64
	PositionQty    float64
	MemorySummary  string
	Peers          []PeerProposal
}

// Advisor is the single capability the voting protocol talks to. One adapter
// instance per agent; the caller never branches on which model sits behind it.
type Advisor interface {
	Name() string
	Propose(ctx context.Context, c Context, round int) (*Proposal, error)
}
