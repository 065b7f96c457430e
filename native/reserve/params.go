package reserve

import (
	"math/big"

	"reservecore/crypto"
)

// defaultStabilizationConfig: act outside [0.97, 1.03], aim for [0.98, 1.02],
// one action per direction per minute.
func defaultStabilizationConfig() *StabilizationConfig {
	return &StabilizationConfig{
		LowerTrigger:    big.NewInt(970_000_000_000_000_000),
		UpperTrigger:    big.NewInt(1_030_000_000_000_000_000),
		LowerTarget:     big.NewInt(980_000_000_000_000_000),
		UpperTarget:     big.NewInt(1_020_000_000_000_000_000),
		CooldownSeconds: 60,
		InflateStep:     new(big.Int).Mul(big.NewInt(10), weiUnit),
		DeflateStep:     new(big.Int).Mul(big.NewInt(10), weiUnit),
	}
}

// StabilizationConfig returns the stored controller parameters, falling back
// to the defaults when none were set.
func (e *Engine) StabilizationConfig() (*StabilizationConfig, error) {
	config := &StabilizationConfig{}
	ok, err := e.store.KVGet(stabilizationKey, config)
	if err != nil {
		return nil, err
	}
	if !ok {
		return defaultStabilizationConfig(), nil
	}
	return config, nil
}

// SetStabilizationConfig replaces the controller parameters. Owner gated.
func (e *Engine) SetStabilizationConfig(caller crypto.Address, config *StabilizationConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if config == nil ||
		config.LowerTrigger == nil || config.UpperTrigger == nil ||
		config.LowerTarget == nil || config.UpperTarget == nil ||
		config.InflateStep == nil || config.DeflateStep == nil {
		return ErrInvalidAmount
	}
	if config.LowerTrigger.Cmp(config.UpperTrigger) >= 0 ||
		config.LowerTarget.Cmp(config.UpperTarget) >= 0 ||
		config.InflateStep.Sign() <= 0 || config.DeflateStep.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return e.store.KVPut(stabilizationKey, config.Copy())
}

func (e *Engine) cooldowns() (*CooldownState, error) {
	state := &CooldownState{}
	if _, err := e.store.KVGet(cooldownKey, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Cooldowns returns the per-direction readiness timestamps.
func (e *Engine) Cooldowns() (*CooldownState, error) {
	return e.cooldowns()
}
