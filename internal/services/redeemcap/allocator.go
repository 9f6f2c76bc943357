// Package redeemcap computes how many points may be applied to an order.
package redeemcap

import (
	"math"
	"sort"
)

// epsilon absorbs binary floating point noise before flooring, so that
// 1000 * 0.29 rounds to 290 rather than 289.
const epsilon = 1e-9

// Item is one order line.
type Item struct {
	ID              string  `json:"id,omitempty"`
	Amount          float64 `json:"amount"`
	AccruePoints    bool    `json:"accruePoints"`
	AllowEarnAndPay bool    `json:"allowEarnAndPay"`
	RedeemPercent   *int    `json:"redeemPercent,omitempty"`
}

// ItemAllowance is the share of the allowance attributed to one line. It is
// informational; only the aggregate is enforced.
type ItemAllowance struct {
	ID     string `json:"id,omitempty"`
	Index  int    `json:"index"`
	Cap    int64  `json:"cap"`
	Points int64  `json:"points"`
}

// Allocation is the result of Allocate.
type Allocation struct {
	EligibleTotal float64         `json:"eligibleTotal"`
	OrderCap      int64           `json:"orderCap"`
	ItemCapTotal  int64           `json:"itemCapTotal"`
	Allowance     int64           `json:"allowance"`
	Items         []ItemAllowance `json:"items,omitempty"`
}

// Floor converts a non-negative amount to whole points.
func Floor(v float64) int64 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	return int64(math.Floor(v + epsilon))
}

// EligibleTotal is the sum of accruing line amounts when items are given,
// otherwise fallback.
func EligibleTotal(items []Item, fallback float64) float64 {
	if len(items) == 0 {
		return fallback
	}
	var total float64
	for _, item := range items {
		if item.AccruePoints && item.Amount > 0 {
			total += item.Amount
		}
	}
	return total
}

// Allocate applies the order level cap, floor(eligible * bps / 10000), and
// with line items the per-item caps, floor(amount * redeemPercent / 100) for
// items that allow paying with points. When the order cap is smaller than
// the sum of item caps the breakdown is scaled down proportionally.
func Allocate(redeemLimitBps int64, eligibleTotal float64, items []Item) Allocation {
	eligible := EligibleTotal(items, eligibleTotal)
	if redeemLimitBps < 0 {
		redeemLimitBps = 0
	}
	out := Allocation{
		EligibleTotal: eligible,
		OrderCap:      Floor(eligible * float64(redeemLimitBps) / 10000),
	}
	if len(items) == 0 {
		out.Allowance = out.OrderCap
		return out
	}

	out.Items = make([]ItemAllowance, len(items))
	for i, item := range items {
		out.Items[i] = ItemAllowance{ID: item.ID, Index: i, Cap: itemCap(item)}
		out.ItemCapTotal += out.Items[i].Cap
	}

	if out.ItemCapTotal <= out.OrderCap {
		out.Allowance = out.ItemCapTotal
		for i := range out.Items {
			out.Items[i].Points = out.Items[i].Cap
		}
		return out
	}

	out.Allowance = out.OrderCap
	scaleDown(out.Items, out.ItemCapTotal, out.OrderCap)
	return out
}

func itemCap(item Item) int64 {
	if !item.AllowEarnAndPay || item.Amount <= 0 {
		return 0
	}
	percent := 100
	if item.RedeemPercent != nil {
		percent = *item.RedeemPercent
	}
	if percent <= 0 {
		return 0
	}
	if percent > 100 {
		percent = 100
	}
	return Floor(item.Amount * float64(percent) / 100)
}

// scaleDown distributes target over items in proportion to their caps using
// the largest remainder method. No item receives more than its cap.
func scaleDown(items []ItemAllowance, capTotal, target int64) {
	if target <= 0 || capTotal <= 0 {
		return
	}
	type remainder struct {
		index int
		frac  float64
	}
	rems := make([]remainder, 0, len(items))
	var assigned int64
	for i := range items {
		exact := float64(items[i].Cap) * float64(target) / float64(capTotal)
		whole := int64(math.Floor(exact))
		items[i].Points = whole
		assigned += whole
		if items[i].Cap > whole {
			rems = append(rems, remainder{index: i, frac: exact - float64(whole)})
		}
	}
	sort.SliceStable(rems, func(a, b int) bool { return rems[a].frac > rems[b].frac })
	for _, rem := range rems {
		if assigned >= target {
			break
		}
		items[rem.index].Points++
		assigned++
	}
}
