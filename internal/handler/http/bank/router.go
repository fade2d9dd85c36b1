package bank_http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go.uber.org/zap"

	"bank/internal/app/ledger"
)

func RegisterRoutes(r chi.Router, s ledger.LedgerService, l *zap.Logger) {
	handler := NewBankHandler(s, l.With(zap.String("component", "BankHTTPHandler")))

	r.Route("/health", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Bank service is healthy!"))
		})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", handler.SignUpHandler)
		r.Post("/signup/manager", handler.SignUpManagerHandler)
		r.Post("/signin", handler.SignInHandler)
	})

	r.Route("/accounts", func(r chi.Router) {
		r.Get("/balance", handler.GetBalanceHandler)
		r.Put("/deposit", handler.DepositHandler)
		r.Put("/withdraw", handler.WithdrawHandler)
	})

	r.Route("/transactions", func(r chi.Router) {
		r.Get("/", handler.ListTransactionsHandler)
		r.Get("/my", handler.ListMyTransactionsHandler)
		r.Post("/transfer", handler.RequestTransferHandler)
		r.Post("/approval", handler.ApproveTransactionsHandler)
	})
}
