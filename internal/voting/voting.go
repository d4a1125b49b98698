// Package voting runs the two-round proposal/discussion scheme per symbol and
// aggregates round-2 proposals into a consensus decision.
package voting

import (
	"context"
	"sort"
	"time"

	"github.com/camuig/quorum-trader/internal/advisor"
	"github.com/camuig/quorum-trader/internal/logger"
)

type Outcome string

const (
	OutcomeBuy         Outcome = "BUY"
	OutcomeSell        Outcome = "SELL"
	OutcomeHold        Outcome = "HOLD"
	OutcomeNoConsensus Outcome = "NO_CONSENSUS"
)

// Decision is the immutable result of one symbol's vote.
type Decision struct {
	Symbol        string             `json:"symbol"`
	Round1        []advisor.Proposal `json:"round1"`
	Round2        []advisor.Proposal `json:"round2"`
	Outcome       Outcome            `json:"outcome"`
	Confidence    float64            `json:"confidence"`
	Quantity      int64              `json:"quantity"`
	Price         float64            `json:"price"`
	AgentsInFavor []string           `json:"agents_in_favor"`
}

type Protocol struct {
	advisors []advisor.Advisor
	timeout  time.Duration
	logger   *logger.Logger
}

func NewProtocol(advisors []advisor.Advisor, timeout time.Duration, log *logger.Logger) *Protocol {
	return &Protocol{advisors: advisors, timeout: timeout, logger: log}
}

// RunVote queries every advisor twice: round 1 independently, round 2 with
// the full round-1 proposal set appended to the context. Advisor failure or
// timeout yields a synthesized HOLD; the symbol is never skipped.
func (p *Protocol) RunVote(ctx context.Context, symbol string, base advisor.Context, memories map[string]string) *Decision {
	base.Symbol = symbol

	round1 := p.round(ctx, base, memories, 1, nil)

	peers := make([]advisor.PeerProposal, 0, len(round1))
	for _, prop := range round1 {
		peers = append(peers, advisor.PeerProposal{Action: prop.Action, Rationale: prop.Rationale})
	}

	round2 := p.round(ctx, base, memories, 2, peers)

	d := &Decision{
		Symbol: symbol,
		Round1: round1,
		Round2: round2,
		Price:  base.LastPrice,
	}
	p.tally(d)
	return d
}

// round is a fan-out/fan-in barrier across all advisors: every call completes
// or times out before the round result is assembled, in advisor order.
func (p *Protocol) round(ctx context.Context, base advisor.Context, memories map[string]string, round int, peers []advisor.PeerProposal) []advisor.Proposal {
	results := make([]advisor.Proposal, len(p.advisors))
	done := make(chan int, len(p.advisors))

	for i, adv := range p.advisors {
		go func(i int, adv advisor.Advisor) {
			defer func() { done <- i }()

			c := base
			c.MemorySummary = memories[adv.Name()]
			c.Peers = peers

			callCtx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()

			prop, err := adv.Propose(callCtx, c, round)
			if err != nil {
				p.logger.Error("advisor unavailable, falling back to HOLD",
					"agent", adv.Name(), "symbol", base.Symbol, "round", round, "error", err)
				results[i] = fallbackHold(adv.Name(), base.Symbol, round)
				return
			}
			results[i] = *prop
		}(i, adv)
	}

	for range p.advisors {
		<-done
	}
	return results
}

func fallbackHold(agent, symbol string, round int) advisor.Proposal {
	return advisor.Proposal{
		Agent:      agent,
		Symbol:     symbol,
		Action:     advisor.ActionHold,
		Confidence: 0,
		Rationale:  "advisor unavailable",
		Round:      round,
	}
}

// tally applies the consensus rule to round 2: an action wins on strict
// majority; otherwise NO_CONSENSUS. Aggregate confidence is the mean over the
// winning voters, quantity the median of their proposed sizes.
func (p *Protocol) tally(d *Decision) {
	counts := make(map[advisor.Action]int)
	for _, prop := range d.Round2 {
		counts[prop.Action]++
	}

	majority := len(p.advisors)/2 + 1
	var winner advisor.Action
	for action, n := range counts {
		if n >= majority {
			winner = action
			break
		}
	}

	if winner == "" {
		d.Outcome = OutcomeNoConsensus
		return
	}

	var confSum float64
	var quantities []int64
	for _, prop := range d.Round2 {
		if prop.Action != winner {
			continue
		}
		confSum += prop.Confidence
		quantities = append(quantities, prop.Quantity)
		d.AgentsInFavor = append(d.AgentsInFavor, prop.Agent)
	}

	d.Outcome = Outcome(winner)
	d.Confidence = confSum / float64(len(d.AgentsInFavor))
	if winner == advisor.ActionBuy || winner == advisor.ActionSell {
		d.Quantity = median(quantities)
	}
}

// median of proposed sizes. Even counts average the middle pair.
func median(values []int64) int64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]int64(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
