package advisor

import (
	"fmt"
	"strings"
)

func buildSystemPrompt(persona string, soloBudget float64) string {
	return fmt.Sprintf(`You are a trading agent on a stock exchange.

Your character: %s
Your solo budget: %.2f

You analyze one symbol at a time together with two other agents. In round 1 you
answer alone; in round 2 you see the other agents' positions and may change
your mind or hold your ground — argue, do not simply average.

Rules:
1. Quantity is a number of shares you would trade, consistent with your budget share.
2. Confidence is 0.0 to 1.0. Be honest: uncertainty is a valid answer.
3. If your performance summary shows a pattern of losses, adjust.
4. HOLD with a reason beats a forced trade.

Answer strictly as one JSON object:
{"action": "BUY", "quantity": 30, "confidence": 0.75, "rationale": "one or two sentences"}`, persona, soloBudget)
}

func buildUserPrompt(c Context, round int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "## Symbol: %s\n", c.Symbol)
	fmt.Fprintf(&sb, "Price: %.2f | 1d: %+.1f%% | 1w: %+.1f%% | Volume 24h: %.0f\n",
		c.LastPrice, c.Change1d, c.Change1w, c.Volume24h)
	fmt.Fprintf(&sb, "News sentiment: %+.2f (-1 bearish .. +1 bullish)\n\n", c.SentimentScore)

	fmt.Fprintf(&sb, "## Portfolio\n")
	fmt.Fprintf(&sb, "Equity: %.2f | Cash: %.2f | Drawdown from peak: %.1f%%\n", c.Equity, c.Cash, c.DrawdownPct)
	if c.PositionQty > 0 {
		fmt.Fprintf(&sb, "Open position in %s: %.0f shares\n", c.Symbol, c.PositionQty)
	} else {
		sb.WriteString("No open position in this symbol.\n")
	}
	sb.WriteString("\n")

	if c.MemorySummary != "" {
		fmt.Fprintf(&sb, "## Your recent performance\n%s\n\n", c.MemorySummary)
	}

	if round == 2 {
		sb.WriteString("## Round 2 — what the other agents proposed\n")
		for i, p := range c.Peers {
			fmt.Fprintf(&sb, "Agent %d: %s — %s\n", i+1, p.Action, p.Rationale)
		}
		sb.WriteString("\nConsidering their arguments, give your final answer as JSON.\n")
	} else {
		sb.WriteString("Round 1 — give your independent answer as JSON.\n")
	}

	return sb.String()
}
