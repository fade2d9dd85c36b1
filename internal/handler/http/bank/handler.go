package bank_http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"bank/internal/app/ledger"
	"bank/internal/auth"
	"bank/internal/domain"
	"bank/internal/repository/transactions_repo"
)

type BankHandler struct {
	service ledger.LedgerService
	logger  *zap.Logger
}

func NewBankHandler(s ledger.LedgerService, l *zap.Logger) *BankHandler {
	return &BankHandler{service: s, logger: l}
}

type SignUpRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Balance  int64  `json:"balance"`
}

type SignInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AmountRequest struct {
	Amount int64 `json:"amount"`
}

type TransferRequest struct {
	DestinationAccountID string `json:"destination_account_id"`
	Amount               int64  `json:"amount"`
	UserNote             string `json:"user_note,omitempty"`
}

type ApprovalRequest struct {
	TransactionIDs []string `json:"transaction_ids"`
}

type AccountResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Balance   int64  `json:"balance"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type TransactionResponse struct {
	ID                   string  `json:"id"`
	Type                 string  `json:"type"`
	Status               string  `json:"status"`
	SourceAccountID      string  `json:"source_account_id"`
	DestinationAccountID *string `json:"destination_account_id,omitempty"`
	Amount               int64   `json:"amount"`
	UserNote             *string `json:"user_note,omitempty"`
	SystemNote           *string `json:"system_note,omitempty"`
	CreatedAt            string  `json:"created_at"`
}

type UserResponse struct {
	ID        string           `json:"id"`
	Username  string           `json:"username"`
	Name      string           `json:"name"`
	Role      string           `json:"role"`
	Activated bool             `json:"activated"`
	Account   *AccountResponse `json:"account,omitempty"`
}

type BalanceResponse struct {
	Balance int64 `json:"balance"`
}

type MutationResponse struct {
	Account     AccountResponse     `json:"account"`
	Transaction TransactionResponse `json:"transaction"`
}

type ApprovalResponse struct {
	Succeeded []TransactionResponse `json:"succeeded"`
	Failed    []TransactionResponse `json:"failed"`
}

func (h *BankHandler) SignUpHandler(w http.ResponseWriter, r *http.Request) {
	h.signUp(w, r, domain.RoleCustomer)
}

func (h *BankHandler) SignUpManagerHandler(w http.ResponseWriter, r *http.Request) {
	h.signUp(w, r, domain.RoleManager)
}

func (h *BankHandler) signUp(w http.ResponseWriter, r *http.Request, role domain.UserRole) {
	var req SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Некорректное тело запроса для SignUp", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" || req.Name == "" {
		http.Error(w, "Username, password and name are required", http.StatusBadRequest)
		return
	}

	user, err := h.service.SignUp(r.Context(), req.Username, req.Password, req.Name, role, req.Balance)
	if err != nil {
		h.writeDomainError(w, err, "Не удалось зарегистрировать пользователя", zap.String("username", req.Username))
		return
	}

	h.writeJSON(w, http.StatusCreated, userToResponse(user))
}

func (h *BankHandler) SignInHandler(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Некорректное тело запроса для SignIn", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.service.SignIn(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeDomainError(w, err, "Не удалось выполнить вход", zap.String("username", req.Username))
		return
	}

	h.writeJSON(w, http.StatusOK, userToResponse(user))
}

func (h *BankHandler) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	caller := h.authorize(w, r, auth.OpGetBalance)
	if caller == nil {
		return
	}

	balance, err := h.service.GetBalance(r.Context(), caller.ID)
	if err != nil {
		h.writeDomainError(w, err, "Не удалось получить баланс", zap.String("user_id", caller.ID))
		return
	}

	h.writeJSON(w, http.StatusOK, BalanceResponse{Balance: balance})
}

func (h *BankHandler) DepositHandler(w http.ResponseWriter, r *http.Request) {
	caller := h.authorize(w, r, auth.OpDeposit)
	if caller == nil {
		return
	}

	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Некорректное тело запроса для Deposit", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	account, transaction, err := h.service.Deposit(r.Context(), caller.ID, req.Amount)
	if err != nil {
		h.writeDomainError(w, err, "Не удалось выполнить пополнение", zap.String("user_id", caller.ID), zap.Int64("amount", req.Amount))
		return
	}

	h.writeJSON(w, http.StatusOK, MutationResponse{
		Account:     accountToResponse(account),
		Transaction: transactionToResponse(transaction),
	})
}

func (h *BankHandler) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	caller := h.authorize(w, r, auth.OpWithdraw)
	if caller == nil {
		return
	}

	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Некорректное тело запроса для Withdraw", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	account, transaction, err := h.service.Withdraw(r.Context(), caller.ID, req.Amount)
	if err != nil {
		h.writeDomainError(w, err, "Не удалось выполнить снятие", zap.String("user_id", caller.ID), zap.Int64("amount", req.Amount))
		return
	}

	h.writeJSON(w, http.StatusOK, MutationResponse{
		Account:     accountToResponse(account),
		Transaction: transactionToResponse(transaction),
	})
}

func (h *BankHandler) RequestTransferHandler(w http.ResponseWriter, r *http.Request) {
	caller := h.authorize(w, r, auth.OpRequestTransfer)
	if caller == nil {
		return
	}
	if caller.Account == nil {
		http.Error(w, "Caller has no account", http.StatusNotFound)
		return
	}

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Некорректное тело запроса для Transfer", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.DestinationAccountID == "" {
		http.Error(w, "Destination account id is required", http.StatusBadRequest)
		return
	}

	transaction, err := h.service.RequestTransfer(r.Context(), caller.Account.ID, req.DestinationAccountID, req.Amount, req.UserNote)
	if err != nil {
		h.writeDomainError(w, err, "Не удалось создать заявку на перевод",
			zap.String("source_account_id", caller.Account.ID),
			zap.String("destination_account_id", req.DestinationAccountID))
		return
	}

	h.writeJSON(w, http.StatusCreated, transactionToResponse(transaction))
}

func (h *BankHandler) ApproveTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	caller := h.authorize(w, r, auth.OpApproveTransactions)
	if caller == nil {
		return
	}

	var req ApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Некорректное тело запроса для Approval", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.TransactionIDs) == 0 {
		http.Error(w, "Transaction ids are required", http.StatusBadRequest)
		return
	}

	result, err := h.service.ApproveTransactions(r.Context(), req.TransactionIDs)
	if err != nil {
		h.writeDomainError(w, err, "Не удалось выполнить пакетное подтверждение", zap.Int("count", len(req.TransactionIDs)))
		return
	}

	resp := ApprovalResponse{
		Succeeded: make([]TransactionResponse, 0, len(result.Succeeded)),
		Failed:    make([]TransactionResponse, 0, len(result.Failed)),
	}
	for _, transaction := range result.Succeeded {
		resp.Succeeded = append(resp.Succeeded, transactionToResponse(transaction))
	}
	for _, transaction := range result.Failed {
		resp.Failed = append(resp.Failed, transactionToResponse(transaction))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *BankHandler) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	caller := h.authorize(w, r, auth.OpListTransactions)
	if caller == nil {
		return
	}

	transactions, err := h.service.ListTransactions(r.Context(), orderQueryFromRequest(r))
	if err != nil {
		h.writeDomainError(w, err, "Не удалось получить список транзакций")
		return
	}

	h.writeJSON(w, http.StatusOK, transactionsToResponse(transactions))
}

func (h *BankHandler) ListMyTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	caller := h.authorize(w, r, auth.OpListOwnTransactions)
	if caller == nil {
		return
	}

	transactions, err := h.service.ListUserTransactions(r.Context(), caller.ID, orderQueryFromRequest(r))
	if err != nil {
		h.writeDomainError(w, err, "Не удалось получить транзакции пользователя", zap.String("user_id", caller.ID))
		return
	}

	h.writeJSON(w, http.StatusOK, transactionsToResponse(transactions))
}

// authorize определяет вызывающего по заголовку X-User-Id (аутентификация
// выполняется внешним слоем) и сверяет его роль с операцией.
func (h *BankHandler) authorize(w http.ResponseWriter, r *http.Request, op auth.Operation) *domain.User {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		http.Error(w, "Missing X-User-Id header", http.StatusUnauthorized)
		return nil
	}

	user, err := h.service.GetActiveUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			http.Error(w, "Unknown user", http.StatusUnauthorized)
			return nil
		}
		if errors.Is(err, domain.ErrUserDeactivated) {
			http.Error(w, "User is deactivated", http.StatusForbidden)
			return nil
		}
		h.logger.Error("Не удалось определить вызывающего", zap.String("user_id", userID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return nil
	}

	if !auth.Allow(user.Role, op) {
		h.logger.Warn("Операция запрещена для роли",
			zap.String("user_id", user.ID),
			zap.String("role", string(user.Role)),
			zap.String("operation", string(op)))
		http.Error(w, "Operation is not allowed for this role", http.StatusForbidden)
		return nil
	}
	return user
}

func (h *BankHandler) writeDomainError(w http.ResponseWriter, err error, logMessage string, fields ...zap.Field) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(logMessage, append(fields, zap.Error(err))...)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.logger.Warn(logMessage, append(fields, zap.Error(err))...)
	http.Error(w, err.Error(), status)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUserDeactivated), errors.Is(err, domain.ErrWrongPassword):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrDuplicateParties),
		errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUsernameTaken), errors.Is(err, domain.ErrAccountAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *BankHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Не удалось отправить JSON-ответ", zap.Error(err))
	}
}

func orderQueryFromRequest(r *http.Request) transactions_repo.TransactionOrderQuery {
	query := r.URL.Query()
	return transactions_repo.TransactionOrderQuery{
		Type:      query.Get("type"),
		Amount:    query.Get("amount"),
		CreatedAt: query.Get("created_at"),
	}
}

func accountToResponse(account *domain.Account) AccountResponse {
	return AccountResponse{
		ID:        account.ID,
		UserID:    account.UserID,
		Balance:   account.Balance,
		CreatedAt: account.CreatedAt.Format(time.RFC3339),
		UpdatedAt: account.UpdatedAt.Format(time.RFC3339),
	}
}

func transactionToResponse(transaction *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:                   transaction.ID,
		Type:                 string(transaction.Type),
		Status:               string(transaction.Status),
		SourceAccountID:      transaction.SourceAccountID,
		DestinationAccountID: transaction.DestinationAccountID,
		Amount:               transaction.Amount,
		UserNote:             transaction.UserNote,
		SystemNote:           transaction.SystemNote,
		CreatedAt:            transaction.CreatedAt.Format(time.RFC3339),
	}
}

func transactionsToResponse(transactions []*domain.Transaction) []TransactionResponse {
	resp := make([]TransactionResponse, 0, len(transactions))
	for _, transaction := range transactions {
		resp = append(resp, transactionToResponse(transaction))
	}
	return resp
}

func userToResponse(user *domain.User) UserResponse {
	resp := UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Name:      user.Name,
		Role:      string(user.Role),
		Activated: user.Activated,
	}
	if user.Account != nil {
		account := accountToResponse(user.Account)
		resp.Account = &account
	}
	return resp
}
