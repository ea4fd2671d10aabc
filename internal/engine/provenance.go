/*

Simulate is the wrapper around the pure engine run: it applies policy
defaults, gates the request with the pre-check, annotates the result with
the post-check, and stamps the result with a run ID, the engine version,
and a provenance hash for audit/reproducibility.

*/

package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"

	"github.com/loopscope/loopsim/internal/types"
)

// EngineVersion identifies the computation semantics. Bump it whenever the
// numbers a given input produces can change.
const EngineVersion = "1.2.0"

// PolicyError is a structured pre-check rejection: the request is disallowed
// by policy, as opposed to a computation failure.
type PolicyError struct {
	Reasons []string
}

func (e *PolicyError) Error() string {
	return "policy violation: " + strings.Join(e.Reasons, "; ")
}

// SimulateDeps carries the resolved collaborator outputs one invocation
// consumes.
type SimulateDeps struct {
	Market   types.MarketSnapshot
	Prices   map[string]sdkmath.LegacyDec
	Provider SwapProvider
	Policy   types.RiskPolicy
	Now      func() time.Time // defaults to time.Now
}

// EffectiveRates resolves the annualized rates a run uses: caller overrides
// win over the snapshot's defaults.
func EffectiveRates(market types.MarketSnapshot, overrides *types.RateOverrides) (supplyAPR, borrowAPR float64) {
	supplyAPR = market.SupplyAPR
	borrowAPR = market.BorrowAPR
	if overrides != nil {
		if overrides.SupplyAPR != nil {
			supplyAPR = *overrides.SupplyAPR
		}
		if overrides.BorrowAPR != nil {
			borrowAPR = *overrides.BorrowAPR
		}
	}
	return supplyAPR, borrowAPR
}

// Simulate runs one simulation end to end. A *PolicyError is returned for
// pre-check rejections; any other error is a computation or provider
// failure. On success the result is complete, including post-check
// annotations and the receipt's provenance hash; the receipt's payment field
// is left as a null placeholder for the transport layer.
func Simulate(ctx context.Context, input types.SimulationInput, deps SimulateDeps) (*types.SimulationResult, error) {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	if input.HorizonDays == 0 {
		input.HorizonDays = deps.Policy.DefaultHorizonDays
	}
	if deps.Policy.MaxHorizonDays > 0 && input.HorizonDays > deps.Policy.MaxHorizonDays {
		simulationsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: horizon %d exceeds maximum %d days", ErrInvalidInput, input.HorizonDays, deps.Policy.MaxHorizonDays)
	}
	if deps.Policy.MaxScenarios > 0 && len(input.Scenarios) > deps.Policy.MaxScenarios {
		simulationsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: %d scenarios exceed maximum %d", ErrInvalidInput, len(input.Scenarios), deps.Policy.MaxScenarios)
	}

	lltv, err := deps.Market.LLTV.Float64()
	if err != nil {
		return nil, fmt.Errorf("%w: market lltv: %w", ErrComputation, err)
	}
	pre := PreCheck(PreCheckParams{
		TargetLTV:    input.TargetLTV,
		MarketLLTV:   lltv,
		LoopCount:    input.LoopCount,
		MaxLoopCount: deps.Policy.MaxLoopCount,
	})
	if !pre.OK {
		simulationsTotal.WithLabelValues("rejected").Inc()
		return nil, &PolicyError{Reasons: pre.Reasons}
	}

	supplyAPR, borrowAPR := EffectiveRates(deps.Market, input.RateOverrides)

	result, quoteProvenance, err := Run(ctx, RunParams{
		Input:     input,
		Market:    deps.Market,
		Prices:    deps.Prices,
		SupplyAPR: supplyAPR,
		BorrowAPR: borrowAPR,
		Provider:  deps.Provider,
	})
	if err != nil {
		simulationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	post := PostCheck(PostCheckParams{
		MinHealthFactor:  riskLimit(input.RiskLimits, func(l *types.RiskLimits) *float64 { return l.MinHealthFactor }),
		MaxGrossLeverage: riskLimit(input.RiskLimits, func(l *types.RiskLimits) *float64 { return l.MaxGrossLeverage }),
		HealthFactorNow:  result.Summary.HealthFactorNow.Float64(),
		GrossLeverage:    result.Summary.GrossLeverage.Float64(),
	})
	if !post.OK {
		result.ExecutionInadvisable = true
		result.InadvisableReasons = post.Reasons
	}

	timestamp := now().UTC()
	hash, err := provenanceHash(input, result.MarketParams, deps.Prices, quoteProvenance, timestamp)
	if err != nil {
		simulationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	result.RunID = uuid.NewString()
	result.EngineVersion = EngineVersion
	result.Timestamp = timestamp
	result.Receipt = types.Receipt{
		Payment:        json.RawMessage("null"),
		ProvenanceHash: hash,
	}
	simulationsTotal.WithLabelValues("ok").Inc()
	return result, nil
}

func riskLimit(limits *types.RiskLimits, pick func(*types.RiskLimits) *float64) *float64 {
	if limits == nil {
		return nil
	}
	return pick(limits)
}

// pricePair is one entry of the canonicalized price map.
type pricePair struct {
	Symbol string            `json:"symbol"`
	Price  sdkmath.LegacyDec `json:"price"`
}

// provenanceRecord is the canonical serialization the hash covers. Field
// order is fixed by the struct; the price map is sorted by symbol.
type provenanceRecord struct {
	EngineVersion   string                 `json:"engine_version"`
	Input           types.SimulationInput  `json:"input"`
	MarketParams    types.MarketParamsUsed `json:"market_params"`
	Prices          []pricePair            `json:"prices"`
	QuoteProvenance []json.RawMessage      `json:"quote_provenance"`
	Timestamp       int64                  `json:"timestamp"`
}

// provenanceHash digests everything that determined the computation. Any
// change to any covered field changes the hash.
func provenanceHash(
	input types.SimulationInput,
	marketParams types.MarketParamsUsed,
	prices map[string]sdkmath.LegacyDec,
	quoteProvenance []json.RawMessage,
	timestamp time.Time,
) (string, error) {
	pairs := make([]pricePair, 0, len(prices))
	for symbol, price := range prices {
		pairs = append(pairs, pricePair{Symbol: symbol, Price: price})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Symbol < pairs[j].Symbol })

	// MarketParamsUsed carries the same map; zero it out of the canonical
	// form so the sorted pair list is the single source of price entropy.
	marketParams.PricesUSD = nil

	payload, err := json.Marshal(provenanceRecord{
		EngineVersion:   EngineVersion,
		Input:           input,
		MarketParams:    marketParams,
		Prices:          pairs,
		QuoteProvenance: quoteProvenance,
		Timestamp:       timestamp.Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("%w: provenance serialization: %w", ErrComputation, err)
	}
	digest := sha256.Sum256(payload)
	return hex.EncodeToString(digest[:]), nil
}
