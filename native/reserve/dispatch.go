package reserve

import (
	"encoding/json"
	"fmt"
	"math/big"

	"reservecore/crypto"
)

// Admin method names understood by the timelock dispatcher.
const (
	MethodSetInitialPrice        = "set-initial-price"
	MethodSetCurveParams         = "set-curve-params"
	MethodSetDistributionTable   = "set-distribution-table"
	MethodSetStabilizationConfig = "set-stabilization-config"
	MethodTransferOwnership      = "transfer-ownership"
)

type curveParamsPayload struct {
	InitialPrice string `json:"initialPrice"`
	PriceStep    string `json:"priceStep"`
	TrancheSize  string `json:"trancheSize"`
}

type distributionPayload struct {
	Recipient string `json:"recipient"`
	WeightBps uint64 `json:"weightBps"`
}

type stabilizationPayload struct {
	LowerTrigger    string `json:"lowerTrigger"`
	UpperTrigger    string `json:"upperTrigger"`
	LowerTarget     string `json:"lowerTarget"`
	UpperTarget     string `json:"upperTarget"`
	CooldownSeconds uint64 `json:"cooldownSeconds"`
	InflateStep     string `json:"inflateStep"`
	DeflateStep     string `json:"deflateStep"`
}

func parseWei(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("reserve: invalid amount %q", value)
	}
	return amount, nil
}

// AdminDispatcher returns the function the timelock applies queued admin
// operations through. Payloads are decimal wei strings or JSON documents; the
// owner identity is fixed at wiring time so every dispatched call carries the
// privileged caller.
func AdminDispatcher(engine *Engine, owner crypto.Address) func(method string, payload []byte) error {
	return func(method string, payload []byte) error {
		switch method {
		case MethodSetInitialPrice:
			price, err := parseWei(string(payload))
			if err != nil {
				return err
			}
			return engine.SetInitialPrice(owner, price)

		case MethodSetCurveParams:
			var params curveParamsPayload
			if err := json.Unmarshal(payload, &params); err != nil {
				return err
			}
			initialPrice, err := parseWei(params.InitialPrice)
			if err != nil {
				return err
			}
			priceStep, err := parseWei(params.PriceStep)
			if err != nil {
				return err
			}
			trancheSize, err := parseWei(params.TrancheSize)
			if err != nil {
				return err
			}
			return engine.SetCurveParams(owner, initialPrice, priceStep, trancheSize)

		case MethodSetDistributionTable:
			var rows []distributionPayload
			if err := json.Unmarshal(payload, &rows); err != nil {
				return err
			}
			entries := make([]DistributionEntry, 0, len(rows))
			for _, row := range rows {
				recipient, err := crypto.DecodeAddress(row.Recipient)
				if err != nil {
					return err
				}
				entries = append(entries, DistributionEntry{Recipient: recipient, WeightBps: row.WeightBps})
			}
			return engine.SetDistributionTable(owner, entries)

		case MethodSetStabilizationConfig:
			var doc stabilizationPayload
			if err := json.Unmarshal(payload, &doc); err != nil {
				return err
			}
			config := &StabilizationConfig{CooldownSeconds: doc.CooldownSeconds}
			var err error
			if config.LowerTrigger, err = parseWei(doc.LowerTrigger); err != nil {
				return err
			}
			if config.UpperTrigger, err = parseWei(doc.UpperTrigger); err != nil {
				return err
			}
			if config.LowerTarget, err = parseWei(doc.LowerTarget); err != nil {
				return err
			}
			if config.UpperTarget, err = parseWei(doc.UpperTarget); err != nil {
				return err
			}
			if config.InflateStep, err = parseWei(doc.InflateStep); err != nil {
				return err
			}
			if config.DeflateStep, err = parseWei(doc.DeflateStep); err != nil {
				return err
			}
			return engine.SetStabilizationConfig(owner, config)

		case MethodTransferOwnership:
			next, err := crypto.DecodeAddress(string(payload))
			if err != nil {
				return err
			}
			return engine.TransferOwnership(owner, next)
		}
		return fmt.Errorf("reserve: unknown admin method %q", method)
	}
}
