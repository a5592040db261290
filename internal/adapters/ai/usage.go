package ai

import (
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// Price per 1K tokens in USD
type Price struct {
	Prompt     decimal.Decimal
	Completion decimal.Decimal
}

var defaultPrices = map[string]Price{
	"gpt-4":                  {decimal.RequireFromString("0.03"), decimal.RequireFromString("0.06")},
	"gpt-4-32k":              {decimal.RequireFromString("0.06"), decimal.RequireFromString("0.12")},
	"gpt-4o":                 {decimal.RequireFromString("0.0025"), decimal.RequireFromString("0.01")},
	"gpt-4o-mini":            {decimal.RequireFromString("0.00015"), decimal.RequireFromString("0.0006")},
	"gpt-35-turbo":           {decimal.RequireFromString("0.0005"), decimal.RequireFromString("0.0015")},
	"text-embedding-3-small": {decimal.RequireFromString("0.00002"), decimal.Zero},
	"text-embedding-3-large": {decimal.RequireFromString("0.00013"), decimal.Zero},
}

var thousand = decimal.NewFromInt(1000)

// ModelUsage aggregates tokens and cost for one model
type ModelUsage struct {
	Requests         int             `json:"requests"`
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	CostUSD          decimal.Decimal `json:"cost_usd"`
}

// UsageTracker accumulates token usage and cost per model
type UsageTracker struct {
	mu     sync.Mutex
	prices map[string]Price
	usage  map[string]*ModelUsage
}

// NewUsageTracker creates a tracker with the built-in price table
func NewUsageTracker() *UsageTracker {
	prices := make(map[string]Price, len(defaultPrices))
	for k, v := range defaultPrices {
		prices[k] = v
	}
	return &UsageTracker{prices: prices, usage: map[string]*ModelUsage{}}
}

// SetPrice overrides the price of a model
func (t *UsageTracker) SetPrice(model string, p Price) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prices[model] = p
}

// Cost computes the USD cost of usage for a model. Unknown models cost zero.
func (t *UsageTracker) Cost(model string, u Usage) decimal.Decimal {
	t.mu.Lock()
	p, ok := t.lookup(model)
	t.mu.Unlock()
	if !ok {
		return decimal.Zero
	}
	prompt := p.Prompt.Mul(decimal.NewFromInt(int64(u.PromptTokens))).Div(thousand)
	completion := p.Completion.Mul(decimal.NewFromInt(int64(u.CompletionTokens))).Div(thousand)
	return prompt.Add(completion)
}

// Record adds one request's usage
func (t *UsageTracker) Record(model string, u Usage) {
	cost := t.Cost(model, u)

	t.mu.Lock()
	defer t.mu.Unlock()
	mu, ok := t.usage[model]
	if !ok {
		mu = &ModelUsage{CostUSD: decimal.Zero}
		t.usage[model] = mu
	}
	mu.Requests++
	mu.PromptTokens += u.PromptTokens
	mu.CompletionTokens += u.CompletionTokens
	mu.CostUSD = mu.CostUSD.Add(cost)
}

// Snapshot copies the per-model totals
func (t *UsageTracker) Snapshot() map[string]ModelUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]ModelUsage, len(t.usage))
	for k, v := range t.usage {
		out[k] = *v
	}
	return out
}

// TotalCost sums the cost over all models
func (t *UsageTracker) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, u := range t.Snapshot() {
		total = total.Add(u.CostUSD)
	}
	return total
}

// lookup matches exact names first, then the longest known prefix (gpt-4-0613 -> gpt-4)
func (t *UsageTracker) lookup(model string) (Price, bool) {
	if p, ok := t.prices[model]; ok {
		return p, true
	}
	best := ""
	for name := range t.prices {
		if strings.HasPrefix(model, name) && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return Price{}, false
	}
	return t.prices[best], true
}
