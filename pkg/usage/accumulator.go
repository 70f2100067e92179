// Package usage keeps a running token and cost estimate for one stream.
//
// Token counts are approximated from whitespace-separated words of the
// reply, not from a real tokenizer.
package usage

import (
	"fmt"
	"strings"
)

const (
	tileSize       = 512
	imageBaseToken = 85
	imageTileToken = 170
)

// State is a snapshot of the accumulated usage.
type State struct {
	Tokens  int     `json:"tokens"`
	CostUSD float64 `json:"cost_usd"`
}

// Label renders the state the way the status line shows it.
func (s State) Label() string {
	return fmt.Sprintf("Tokens used: %d - Total cost: $%.4f", s.Tokens, s.CostUSD)
}

// ImageSurchargeTokens returns the token cost of an image: a fixed base plus
// a per-tile amount for each 512x512 tile the image covers.
func ImageSurchargeTokens(width, height int) int {
	tiles := ceilDiv(width, tileSize) * ceilDiv(height, tileSize)
	return imageBaseToken + imageTileToken*tiles
}

func ceilDiv(n, d int) int {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}

// Accumulator tracks usage for a single stream. It is owned by the stream
// worker and is not safe for concurrent use.
type Accumulator struct {
	pricing   Pricing
	tokens    int
	surcharge float64
	imaged    bool
}

// NewAccumulator returns an empty accumulator priced at p.
func NewAccumulator(p Pricing) *Accumulator {
	return &Accumulator{pricing: p}
}

// AddImage applies the image surcharge, priced at the input rate. Only the
// first call has an effect.
func (a *Accumulator) AddImage(width, height int) State {
	if !a.imaged {
		a.imaged = true
		a.surcharge = float64(ImageSurchargeTokens(width, height)) * a.pricing.Input / 1_000_000.0
	}
	return a.State()
}

// Update counts the words of delta and returns the new state. Tokens never
// decrease.
func (a *Accumulator) Update(delta string) State {
	a.tokens += len(strings.Fields(delta))
	return a.State()
}

// State returns the current snapshot.
func (a *Accumulator) State() State {
	// Every counted token is charged at both rates.
	rate := (a.pricing.Input + a.pricing.Output) / 1_000_000.0
	return State{
		Tokens:  a.tokens,
		CostUSD: float64(a.tokens)*rate + a.surcharge,
	}
}
