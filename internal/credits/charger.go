package credits

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/experimentein/research-agent/internal/logging"
	"github.com/experimentein/research-agent/internal/usage"
)

// ActionSearchEmbed is the billed action for query embedding.
const ActionSearchEmbed = "search_embed"

// chargeTimeout bounds a single ledger call so a slow accounting backend
// cannot hold a turn's goroutine forever.
const chargeTimeout = 10 * time.Second

// Charger converts token usage into ledger charges. All charging is
// best-effort: failures are logged and never surface to the caller.
type Charger struct {
	ledger    Ledger
	accountID string
	model     string
	log       *logging.Logger
}

// NewCharger creates a charger for one account. A nil ledger disables
// metering entirely.
func NewCharger(ledger Ledger, accountID, model string, log *logging.Logger) *Charger {
	return &Charger{
		ledger:    ledger,
		accountID: accountID,
		model:     model,
		log:       log.Sub("credits"),
	}
}

// ChargeEmbedding meters one successful query-embedding step. Tokens come
// from provider usage metadata when present, otherwise from the query text
// heuristic. Runs synchronously but swallows every failure; callers that
// must not wait dispatch it on its own goroutine.
func (c *Charger) ChargeEmbedding(query string, providerUsage map[string]any) {
	if c == nil || c.ledger == nil {
		return
	}

	tokens := usage.Resolve(providerUsage, []string{query}, "")
	receipt := Receipt{
		RequestID:      "search-" + uuid.New().String(),
		ActionType:     ActionSearchEmbed,
		Model:          c.model,
		InputTokens:    tokens.InputTokens,
		OutputTokens:   tokens.OutputTokens,
		CreditsCharged: usage.Credits(tokens.TotalTokens),
		Metadata:       map[string]any{"estimated": tokens.Estimated},
		Timestamp:      time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), chargeTimeout)
	defer cancel()

	if err := c.ledger.Charge(ctx, c.accountID, receipt); err != nil {
		c.log.Warn().
			Err(err).
			Str("action", receipt.ActionType).
			Int("credits", receipt.CreditsCharged).
			Msg("credit charge failed")
		return
	}

	c.log.Debug().
		Str("action", receipt.ActionType).
		Int("totalTokens", tokens.TotalTokens).
		Int("credits", receipt.CreditsCharged).
		Bool("estimated", tokens.Estimated).
		Msg("charged credits")
}
