package events

import (
	"math/big"
	"strconv"
)

// Event types emitted by the reserve engine.
const (
	TypePurchase         = "reserve.purchase"
	TypeLoanOpened       = "reserve.loan.opened"
	TypeLoanClosed       = "reserve.loan.closed"
	TypeInflate          = "reserve.stabilize.inflate"
	TypeDeflate          = "reserve.stabilize.deflate"
	TypeDistribution     = "reserve.distribution"
	TypeOwnershipChanged = "reserve.ownership"
)

// Event types emitted by the timelock.
const (
	TypeTimelockQueued    = "timelock.queued"
	TypeTimelockCancelled = "timelock.cancelled"
	TypeTimelockExecuted  = "timelock.executed"
)

// Attributed is a generic event carrying string attributes, matching what the
// RPC layer serialises for subscribers.
type Attributed struct {
	Type       string
	Attributes map[string]string
}

// EventType implements the Event interface.
func (a Attributed) EventType() string { return a.Type }

func attr(m map[string]string, key string, value *big.Int) {
	if value != nil {
		m[key] = value.String()
	}
}

// NewPurchase describes a completed bonding-curve purchase.
func NewPurchase(buyer string, amountOut, paymentIn, sold, cost *big.Int) Attributed {
	attrs := map[string]string{"buyer": buyer}
	attr(attrs, "amountOut", amountOut)
	attr(attrs, "paymentIn", paymentIn)
	attr(attrs, "sold", sold)
	attr(attrs, "cost", cost)
	return Attributed{Type: TypePurchase, Attributes: attrs}
}

// NewLoanOpened describes a freshly minted collateralized position.
func NewLoanOpened(account string, slot uint64, collateral, debt *big.Int) Attributed {
	attrs := map[string]string{
		"account": account,
		"slot":    strconv.FormatUint(slot, 10),
	}
	attr(attrs, "collateral", collateral)
	attr(attrs, "debt", debt)
	return Attributed{Type: TypeLoanOpened, Attributes: attrs}
}

// NewLoanClosed describes a redeemed position.
func NewLoanClosed(account string, slot uint64, collateral, debt *big.Int) Attributed {
	attrs := map[string]string{
		"account": account,
		"slot":    strconv.FormatUint(slot, 10),
	}
	attr(attrs, "collateral", collateral)
	attr(attrs, "debt", debt)
	return Attributed{Type: TypeLoanClosed, Attributes: attrs}
}

// NewStabilization describes a single inflate or deflate step. The direction
// selects the event type.
func NewStabilization(direction string, minted, burned, spotBefore, spotAfter *big.Int) Attributed {
	eventType := TypeInflate
	if direction == "deflate" {
		eventType = TypeDeflate
	}
	attrs := map[string]string{}
	attr(attrs, "minted", minted)
	attr(attrs, "burned", burned)
	attr(attrs, "spotBefore", spotBefore)
	attr(attrs, "spotAfter", spotAfter)
	return Attributed{Type: eventType, Attributes: attrs}
}

// NewDistribution describes a holder payout routed during a purchase.
func NewDistribution(recipient string, amount *big.Int) Attributed {
	attrs := map[string]string{"recipient": recipient}
	attr(attrs, "amount", amount)
	return Attributed{Type: TypeDistribution, Attributes: attrs}
}
