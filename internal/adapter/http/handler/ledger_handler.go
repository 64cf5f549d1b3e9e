package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/minibank/internal/adapter/http/middleware"
	"github.com/iho/minibank/internal/domain"
	"github.com/iho/minibank/internal/usecase"
)

// amountForm is the data behind the deposit and withdraw pages.
type amountForm struct {
	Action         string
	Submit         string
	IdempotencyKey string
}

// LedgerHandler handles deposits and withdrawals.
type LedgerHandler struct {
	base
	ledger LedgerService
	keys   KeyGenerator
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger LedgerService, keys KeyGenerator, renderer *Renderer, cookies *middleware.Cookies, logger zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{
		base:   base{renderer: renderer, cookies: cookies, logger: logger},
		ledger: ledger,
		keys:   keys,
	}
}

// DepositForm handles GET /deposit.
func (h *LedgerHandler) DepositForm(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, pageAmount, "Deposit", amountForm{
		Action:         "/deposit",
		Submit:         "Deposit",
		IdempotencyKey: h.keys.Generate(),
	})
}

// Deposit handles POST /deposit.
func (h *LedgerHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)

	amount, key, err := parseAmountForm(r)
	if err == nil {
		_, err = h.ledger.Deposit(r.Context(), usecase.DepositInput{
			Username:       identity.Username,
			Amount:         amount,
			IdempotencyKey: key,
		})
	}

	h.finish(w, r, "/deposit", MsgInvalidDeposit, MsgDepositSuccessful, err)
}

// WithdrawForm handles GET /withdraw.
func (h *LedgerHandler) WithdrawForm(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, pageAmount, "Withdraw", amountForm{
		Action:         "/withdraw",
		Submit:         "Withdraw",
		IdempotencyKey: h.keys.Generate(),
	})
}

// Withdraw handles POST /withdraw.
func (h *LedgerHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)

	amount, key, err := parseAmountForm(r)
	if err == nil {
		_, err = h.ledger.Withdraw(r.Context(), usecase.WithdrawInput{
			Username:       identity.Username,
			Amount:         amount,
			IdempotencyKey: key,
		})
	}

	h.finish(w, r, "/withdraw", MsgInvalidWithdrawal, MsgWithdrawSuccessful, err)
}

// finish maps the outcome of a ledger operation to a redirect with a flash.
func (h *LedgerHandler) finish(w http.ResponseWriter, r *http.Request, formPath, invalidMsg, successMsg string, err error) {
	switch {
	case err == nil:
		h.redirectWithFlash(w, r, "/dashboard", successMsg)
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrInsufficientFunds):
		h.redirectWithFlash(w, r, formPath, invalidMsg)
	case errors.Is(err, domain.ErrDuplicateRequest):
		h.redirectWithFlash(w, r, "/dashboard", MsgAlreadyProcessed)
	default:
		h.handleLookupError(w, r, err)
	}
}

func parseAmountForm(r *http.Request) (amount decimal.Decimal, key string, err error) {
	if err := r.ParseForm(); err != nil {
		return amount, "", domain.ErrInvalidAmount
	}

	amount, err = domain.ParseAmount(r.PostFormValue("amount"))
	if err != nil {
		return amount, "", err
	}
	return amount, r.PostFormValue("idempotency_key"), nil
}
