package adminhttp

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"polytrader/internal/types"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// signalSchema rejects malformed signal payloads before they reach the risk
// gate. Prices are probabilities, so they live in (0, 1).
const signalSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["market_id", "outcome", "side", "price"],
  "properties": {
    "market_id":    {"type": "string", "minLength": 1},
    "market_title": {"type": "string"},
    "outcome":      {"enum": ["YES", "NO"]},
    "side":         {"enum": ["BUY", "SELL"]},
    "price":        {"type": "number", "exclusiveMinimum": 0, "exclusiveMaximum": 1},
    "shares":       {"type": "number", "exclusiveMinimum": 0},
    "confidence":   {"type": "number", "minimum": 0, "maximum": 1},
    "edge":         {"type": "number", "minimum": -1, "maximum": 1},
    "reason":       {"type": "string"}
  },
  "additionalProperties": false
}`

type signalValidator struct {
	schema *jsonschema.Schema
}

func newSignalValidator() (*signalValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("signal.json", strings.NewReader(signalSchema)); err != nil {
		return nil, fmt.Errorf("adminhttp: loading signal schema: %w", err)
	}
	schema, err := compiler.Compile("signal.json")
	if err != nil {
		return nil, fmt.Errorf("adminhttp: compiling signal schema: %w", err)
	}
	return &signalValidator{schema: schema}, nil
}

// decode validates the raw payload against the schema and unmarshals it.
func (v *signalValidator) decode(body io.Reader) (types.TradeSignal, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return types.TradeSignal{}, fmt.Errorf("reading request body: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return types.TradeSignal{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := v.schema.Validate(generic); err != nil {
		return types.TradeSignal{}, fmt.Errorf("invalid signal: %w", err)
	}
	var signal types.TradeSignal
	if err := json.Unmarshal(raw, &signal); err != nil {
		return types.TradeSignal{}, fmt.Errorf("decoding signal: %w", err)
	}
	return signal, nil
}
