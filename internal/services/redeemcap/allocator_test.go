package redeemcap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func percent(v int) *int { return &v }

func TestAllocate_OrderCapOnly(t *testing.T) {
	got := Allocate(5000, 1000, nil)
	assert.Equal(t, int64(500), got.OrderCap)
	assert.Equal(t, int64(500), got.Allowance)
	assert.Empty(t, got.Items)
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name          string
		bps           int64
		items         []Item
		wantEligible  float64
		wantAllowance int64
		wantPoints    []int64
	}{
		{
			name: "item caps bind",
			bps:  10000,
			items: []Item{
				{Amount: 400, AccruePoints: true, AllowEarnAndPay: true, RedeemPercent: percent(50)},
				{Amount: 600, AccruePoints: true, AllowEarnAndPay: false},
			},
			wantEligible:  1000,
			wantAllowance: 200,
			wantPoints:    []int64{200, 0},
		},
		{
			name: "order cap binds and scales proportionally",
			bps:  3000,
			items: []Item{
				{Amount: 500, AccruePoints: true, AllowEarnAndPay: true},
				{Amount: 250, AccruePoints: true, AllowEarnAndPay: true},
				{Amount: 250, AccruePoints: true, AllowEarnAndPay: true},
			},
			wantEligible:  1000,
			wantAllowance: 300,
			wantPoints:    []int64{150, 75, 75},
		},
		{
			name: "largest remainder keeps the sum exact",
			bps:  1000,
			items: []Item{
				{Amount: 100, AccruePoints: true, AllowEarnAndPay: true},
				{Amount: 100, AccruePoints: true, AllowEarnAndPay: true},
				{Amount: 100, AccruePoints: true, AllowEarnAndPay: true},
			},
			wantEligible:  300,
			wantAllowance: 30,
			wantPoints:    []int64{10, 10, 10},
		},
		{
			name: "non accruing items leave the eligible total",
			bps:  5000,
			items: []Item{
				{Amount: 800, AccruePoints: true, AllowEarnAndPay: true},
				{Amount: 200, AccruePoints: false, AllowEarnAndPay: true},
			},
			wantEligible:  800,
			wantAllowance: 400,
			wantPoints:    []int64{320, 80},
		},
		{
			name: "zero percent item gets nothing",
			bps:  10000,
			items: []Item{
				{Amount: 100, AccruePoints: true, AllowEarnAndPay: true, RedeemPercent: percent(0)},
			},
			wantEligible:  100,
			wantAllowance: 0,
			wantPoints:    []int64{0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Allocate(tt.bps, 0, tt.items)
			assert.Equal(t, tt.wantEligible, got.EligibleTotal)
			assert.Equal(t, tt.wantAllowance, got.Allowance)

			var sum int64
			points := make([]int64, len(got.Items))
			for i, item := range got.Items {
				points[i] = item.Points
				sum += item.Points
				assert.LessOrEqual(t, item.Points, item.Cap)
			}
			assert.Equal(t, tt.wantPoints, points)
			assert.Equal(t, got.Allowance, sum)
		})
	}
}

func TestAllocate_UnevenSplitNeverExceedsCaps(t *testing.T) {
	items := []Item{
		{Amount: 7, AccruePoints: true, AllowEarnAndPay: true},
		{Amount: 5, AccruePoints: true, AllowEarnAndPay: true},
		{Amount: 3, AccruePoints: true, AllowEarnAndPay: true},
	}
	got := Allocate(6000, 0, items)

	assert.Equal(t, int64(9), got.Allowance)
	var sum int64
	for _, item := range got.Items {
		assert.LessOrEqual(t, item.Points, item.Cap)
		sum += item.Points
	}
	assert.Equal(t, int64(9), sum)
}

func TestFloorAbsorbsRepresentationError(t *testing.T) {
	assert.Equal(t, int64(290), Floor(1000*0.29))
	assert.Equal(t, int64(0), Floor(-5))
	assert.Equal(t, int64(2), Floor(2.999))
}
