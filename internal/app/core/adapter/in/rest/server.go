package rest

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/usecase"
)

// Server 是薄薄的 HTTP adapter，只做解析與錯誤對映，業務邏輯全在 Engine
type Server struct {
	engine *usecase.Engine
}

func NewServer(engine *usecase.Engine) *Server {
	return &Server{engine: engine}
}

// Register 掛上所有路由
func (s *Server) Register(app *fiber.App) {
	v1 := app.Group("/v1")

	v1.Post("/credit", s.credit)
	v1.Post("/debit", s.debit)
	v1.Post("/transfer", s.transfer)
	v1.Get("/accounts/:owner_id/balance", s.balance)
	v1.Get("/accounts/:owner_id/transactions", s.history)
	v1.Get("/transactions/:reference", s.byReference)
}

// mutationRequest Credit / Debit 共用的請求格式
// amount 用字串帶小數，避免 JSON 浮點數精度問題
type mutationRequest struct {
	OwnerID     string `json:"owner_id"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
}

type transferRequest struct {
	SenderOwnerID  string `json:"sender_owner_id"`
	RecipientID    string `json:"recipient_owner_id"`
	RecipientEmail string `json:"recipient_email"`
	Amount         string `json:"amount"`
	Description    string `json:"description"`
	Reference      string `json:"reference"`
}

func (s *Server) credit(c *fiber.Ctx) error {
	ownerID, amount, req, err := parseMutation(c)
	if err != nil {
		return fail(c, err)
	}

	rec, err := s.engine.Credit(c.Context(), ownerID, amount, req.Description, req.Reference)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(rec)
}

func (s *Server) debit(c *fiber.Ctx) error {
	ownerID, amount, req, err := parseMutation(c)
	if err != nil {
		return fail(c, err)
	}

	rec, err := s.engine.Debit(c.Context(), ownerID, amount, req.Description, req.Reference)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(rec)
}

func (s *Server) transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, domain.ErrInvalidRequest)
	}

	senderID, err := uuid.Parse(req.SenderOwnerID)
	if err != nil {
		return fail(c, domain.ErrInvalidRequest)
	}

	var recipientID uuid.UUID
	if req.RecipientID != "" {
		recipientID, err = uuid.Parse(req.RecipientID)
		if err != nil {
			return fail(c, domain.ErrInvalidRequest)
		}
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return fail(c, domain.ErrInvalidAmount)
	}

	result, err := s.engine.Transfer(c.Context(), usecase.TransferInput{
		SenderOwnerID: senderID,
		Recipient: usecase.RecipientSelector{
			OwnerID: recipientID,
			Email:   req.RecipientEmail,
		},
		Amount:      amount,
		Description: req.Description,
		Reference:   req.Reference,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(result)
}

func (s *Server) balance(c *fiber.Ctx) error {
	ownerID, err := uuid.Parse(c.Params("owner_id"))
	if err != nil {
		return fail(c, domain.ErrInvalidRequest)
	}

	balance, currency, err := s.engine.GetBalance(c.Context(), ownerID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"balance":  balance,
		"currency": currency,
	})
}

func (s *Server) history(c *fiber.Ctx) error {
	ownerID, err := uuid.Parse(c.Params("owner_id"))
	if err != nil {
		return fail(c, domain.ErrInvalidRequest)
	}

	page := c.QueryInt("page", 1)
	pageSize := c.QueryInt("page_size", 0)

	result, err := s.engine.GetHistory(c.Context(), ownerID, page, pageSize)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(result)
}

func (s *Server) byReference(c *fiber.Ctx) error {
	ownerID, err := uuid.Parse(c.Query("owner_id"))
	if err != nil {
		return fail(c, domain.ErrInvalidRequest)
	}

	rec, err := s.engine.GetByReference(c.Context(), c.Params("reference"), ownerID)
	if err != nil {
		return fail(c, err)
	}
	if rec == nil {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "record_not_found"})
	}
	return c.JSON(rec)
}

func parseMutation(c *fiber.Ctx) (uuid.UUID, decimal.Decimal, *mutationRequest, error) {
	var req mutationRequest
	if err := c.BodyParser(&req); err != nil {
		return uuid.Nil, decimal.Zero, nil, domain.ErrInvalidRequest
	}

	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		return uuid.Nil, decimal.Zero, nil, domain.ErrInvalidRequest
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return uuid.Nil, decimal.Zero, nil, domain.ErrInvalidAmount
	}
	return ownerID, amount, &req, nil
}

// fail 把 domain 錯誤對映成穩定的 status code 與機器可讀的 error kind，
// 讓客戶端能自行決定 retry 策略 (lock_timeout / store_unavailable 可重試)
func fail(c *fiber.Ctx, err error) error {
	status, kind := classify(err)
	return c.Status(status).JSON(fiber.Map{
		"error":   kind,
		"message": err.Error(),
	})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount"
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrSelfTransfer):
		return http.StatusBadRequest, "self_transfer_not_allowed"
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound, "account_not_found"
	case errors.Is(err, domain.ErrRecipientNotFound):
		return http.StatusNotFound, "recipient_not_found"
	case errors.Is(err, domain.ErrDuplicateReference):
		return http.StatusConflict, "duplicate_reference"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "insufficient_balance"
	case errors.Is(err, domain.ErrLockTimeout):
		return http.StatusServiceUnavailable, "lock_timeout"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
