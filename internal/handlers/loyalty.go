package handlers

import (
	"time"

	"loyalty/internal/middleware"
	"loyalty/internal/models"
	"loyalty/internal/services/loyalty"
	"loyalty/internal/services/redeemcap"
	"loyalty/internal/services/wallet"
	"loyalty/internal/utils"
	"loyalty/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// IdempotencyKeyHeader takes precedence over an idempotencyKey body field.
const IdempotencyKeyHeader = "Idempotency-Key"

type LoyaltyHandler struct {
	service *loyalty.Service
	wallets *wallet.Ledger
}

func NewLoyaltyHandler(service *loyalty.Service, wallets *wallet.Ledger) *LoyaltyHandler {
	return &LoyaltyHandler{service: service, wallets: wallets}
}

type quoteInput struct {
	Mode          string           `json:"mode"`
	CustomerToken string           `json:"customerToken"`
	OrderID       string           `json:"orderId"`
	Total         float64          `json:"total"`
	EligibleTotal *float64         `json:"eligibleTotal"`
	Items         []redeemcap.Item `json:"items"`
	OutletID      *string          `json:"outletId"`
	StaffID       *string          `json:"staffId"`
	QrToken       string           `json:"qrToken"`
}

type commitInput struct {
	HoldID         string  `json:"holdId"`
	OrderID        string  `json:"orderId"`
	ReceiptNumber  *string `json:"receiptNumber"`
	IdempotencyKey string  `json:"idempotencyKey"`
}

type cancelInput struct {
	HoldID string `json:"holdId"`
}

type refundInput struct {
	OrderID             string   `json:"orderId"`
	ReceiptNumber       string   `json:"receiptNumber"`
	RefundTotal         float64  `json:"refundTotal"`
	RefundEligibleTotal *float64 `json:"refundEligibleTotal"`
	StaffID             *string  `json:"staffId"`
	IdempotencyKey      string   `json:"idempotencyKey"`
}

func (h *LoyaltyHandler) Quote(c *fiber.Ctx) error {
	merchant, ok := middleware.Merchant(c)
	if !ok {
		return utils.Unauthorized(c, "missing merchant")
	}
	var input quoteInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}
	mode, err := validation.ParseMode(input.Mode)
	if err != nil {
		return utils.Error(c, err)
	}

	// eligibleTotal defaults to the order total
	eligible := input.Total
	if input.EligibleTotal != nil {
		eligible = *input.EligibleTotal
	}

	res, err := h.service.Quote(c.Context(), loyalty.QuoteRequest{
		Mode:          mode,
		MerchantID:    merchant.ID,
		CustomerToken: input.CustomerToken,
		OrderID:       input.OrderID,
		Total:         input.Total,
		EligibleTotal: eligible,
		Items:         input.Items,
		OutletID:      input.OutletID,
		StaffID:       input.StaffID,
		QrToken:       input.QrToken,
	})
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, res)
}

func (h *LoyaltyHandler) Commit(c *fiber.Ctx) error {
	merchant, ok := middleware.Merchant(c)
	if !ok {
		return utils.Unauthorized(c, "missing merchant")
	}
	var input commitInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}

	res, err := h.service.Commit(c.Context(), loyalty.CommitRequest{
		MerchantID:     merchant.ID,
		HoldID:         input.HoldID,
		OrderID:        input.OrderID,
		ReceiptNumber:  input.ReceiptNumber,
		IdempotencyKey: idempotencyKey(c, input.IdempotencyKey),
	})
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, res)
}

func (h *LoyaltyHandler) Cancel(c *fiber.Ctx) error {
	merchant, ok := middleware.Merchant(c)
	if !ok {
		return utils.Unauthorized(c, "missing merchant")
	}
	var input cancelInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}

	res, err := h.service.Cancel(c.Context(), merchant.ID, input.HoldID)
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, res)
}

func (h *LoyaltyHandler) Refund(c *fiber.Ctx) error {
	merchant, ok := middleware.Merchant(c)
	if !ok {
		return utils.Unauthorized(c, "missing merchant")
	}
	var input refundInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}

	res, err := h.service.Refund(c.Context(), loyalty.RefundRequest{
		MerchantID:          merchant.ID,
		OrderID:             input.OrderID,
		ReceiptNumber:       input.ReceiptNumber,
		RefundTotal:         input.RefundTotal,
		RefundEligibleTotal: input.RefundEligibleTotal,
		StaffID:             input.StaffID,
		IdempotencyKey:      idempotencyKey(c, input.IdempotencyKey),
	})
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, res)
}

// Balance serves the cached balance snapshot. It may lag a commit by the
// cache TTL when invalidation fails.
func (h *LoyaltyHandler) Balance(c *fiber.Ctx) error {
	merchant, ok := middleware.Merchant(c)
	if !ok {
		return utils.Unauthorized(c, "missing merchant")
	}
	customerID := c.Params("customerId")
	if customerID == "" || len(customerID) > validation.MaxAttributionLength {
		return utils.BadRequest(c, "invalid customer id")
	}

	snap, err := h.wallets.Balance(c.Context(), merchant.ID, customerID)
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, snap)
}

type ledgerLine struct {
	ID        string                 `json:"id"`
	Type      models.TransactionType `json:"type"`
	Amount    int64                  `json:"amount"`
	OrderID   string                 `json:"orderId,omitempty"`
	HoldID    *string                `json:"holdId,omitempty"`
	ReceiptID *string                `json:"receiptId,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Transactions lists a customer's ledger lines, newest first.
func (h *LoyaltyHandler) Transactions(c *fiber.Ctx) error {
	merchant, ok := middleware.Merchant(c)
	if !ok {
		return utils.Unauthorized(c, "missing merchant")
	}
	customerID := c.Params("customerId")
	if customerID == "" || len(customerID) > validation.MaxAttributionLength {
		return utils.BadRequest(c, "invalid customer id")
	}

	page := utils.ParsePage(c)
	rows, total, err := h.wallets.History(c.Context(), merchant.ID, customerID, page.Offset(), page.Limit)
	if err != nil {
		return utils.Error(c, err)
	}
	page = page.WithTotal(total)

	lines := make([]ledgerLine, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, ledgerLine{
			ID:        row.ID,
			Type:      row.Type,
			Amount:    row.Amount,
			OrderID:   row.OrderID,
			HoldID:    row.HoldID,
			ReceiptID: row.ReceiptID,
			CreatedAt: row.CreatedAt,
		})
	}
	return utils.Success(c, utils.Paged{Data: lines, Pagination: page})
}

func idempotencyKey(c *fiber.Ctx, fromBody string) string {
	if key := c.Get(IdempotencyKeyHeader); key != "" {
		return key
	}
	return fromBody
}
