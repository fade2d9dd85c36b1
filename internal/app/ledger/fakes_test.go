package ledger_test

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"bank/internal/domain"
	"bank/internal/repository/transactions_repo"
)

// fakeStore - память вместо Postgres для тестов сервиса. Чтение FOR UPDATE
// берет мьютекс строки счета и держит его до Commit/Rollback, поэтому
// конкурентные сценарии ведут себя как настоящие блокировки строк.
type fakeStore struct {
	mu           sync.Mutex
	users        map[string]*domain.User
	accounts     map[string]*domain.Account
	transactions map[string]*domain.Transaction
	outbox       []*domain.OutboxMessage
	rowLocks     map[string]*sync.Mutex
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:        make(map[string]*domain.User),
		accounts:     make(map[string]*domain.Account),
		transactions: make(map[string]*domain.Transaction),
		rowLocks:     make(map[string]*sync.Mutex),
	}
}

func (s *fakeStore) rowLock(accountID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.rowLocks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		s.rowLocks[accountID] = lock
	}
	return lock
}

func (s *fakeStore) addUser(userID, username string, role domain.UserRole, activated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.users[userID] = &domain.User{
		ID:           userID,
		Username:     username,
		PasswordHash: "$2a$10$fakefakefakefakefakefake",
		Name:         username,
		Role:         role,
		Activated:    activated,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *fakeStore) addAccount(accountID, userID string, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.accounts[accountID] = &domain.Account{
		ID:        accountID,
		UserID:    userID,
		Balance:   balance,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *fakeStore) addCustomer(userID, accountID string, balance int64) {
	s.addUser(userID, "user-"+userID, domain.RoleCustomer, true)
	s.addAccount(accountID, userID, balance)
}

func (s *fakeStore) setBalance(accountID string, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[accountID].Balance = balance
}

func (s *fakeStore) balance(accountID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[accountID].Balance
}

func (s *fakeStore) transactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transactions)
}

func (s *fakeStore) transaction(id string) *domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	transaction, ok := s.transactions[id]
	if !ok {
		return nil
	}
	return cloneTransaction(transaction)
}

func (s *fakeStore) outboxMessages() []*domain.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := make([]*domain.OutboxMessage, len(s.outbox))
	copy(messages, s.outbox)
	return messages
}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	return &c
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.Account = nil
	return &c
}

func cloneTransaction(t *domain.Transaction) *domain.Transaction {
	c := *t
	if t.DestinationAccountID != nil {
		dst := *t.DestinationAccountID
		c.DestinationAccountID = &dst
	}
	if t.UserNote != nil {
		note := *t.UserNote
		c.UserNote = &note
	}
	if t.SystemNote != nil {
		note := *t.SystemNote
		c.SystemNote = &note
	}
	return &c
}

// stubQuerier закрывает SQL-методы domain.Querier: фейковое хранилище не
// исполняет SQL, репозитории-двойники работают с картами напрямую.
type stubQuerier struct{}

func (stubQuerier) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	panic("fake store does not execute SQL")
}

func (stubQuerier) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	panic("fake store does not execute SQL")
}

func (stubQuerier) QueryRowContext(context.Context, string, ...any) *sql.Row {
	panic("fake store does not execute SQL")
}

type fakeDB struct {
	stubQuerier
	store *fakeStore
}

func (d *fakeDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (domain.Tx, error) {
	return &fakeTx{
		store:    d.store,
		balances: make(map[string]int64),
	}, nil
}

// fakeTx копит изменения и применяет их к хранилищу при Commit. Блокировки
// строк, взятые через lockRow, отпускаются при Commit и Rollback.
type fakeTx struct {
	stubQuerier
	store    *fakeStore
	held     []string
	balances map[string]int64
	staged   []func(*fakeStore)
	done     bool
}

func (t *fakeTx) lockRow(accountID string) {
	for _, held := range t.held {
		if held == accountID {
			return
		}
	}
	t.store.rowLock(accountID).Lock()
	t.held = append(t.held, accountID)
}

// balanceOf возвращает баланс, видимый внутри транзакции: локальное значение,
// если счет уже менялся, иначе зафиксированное.
func (t *fakeTx) balanceOf(accountID string) (int64, bool) {
	if balance, ok := t.balances[accountID]; ok {
		return balance, true
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	account, ok := t.store.accounts[accountID]
	if !ok {
		return 0, false
	}
	return account.Balance, true
}

func (t *fakeTx) stage(fn func(*fakeStore)) {
	t.staged = append(t.staged, fn)
}

func (t *fakeTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.store.mu.Lock()
	for _, fn := range t.staged {
		fn(t.store)
	}
	t.store.mu.Unlock()
	t.release()
	t.done = true
	return nil
}

func (t *fakeTx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.staged = nil
	t.release()
	t.done = true
	return nil
}

func (t *fakeTx) release() {
	for _, accountID := range t.held {
		t.store.rowLock(accountID).Unlock()
	}
	t.held = nil
}

type fakeUserRepo struct {
	store *fakeStore
}

func (r *fakeUserRepo) CreateUserTx(ctx context.Context, querier domain.Querier, user *domain.User) error {
	tx := querier.(*fakeTx)
	r.store.mu.Lock()
	for _, existing := range r.store.users {
		if existing.Username == user.Username {
			r.store.mu.Unlock()
			return domain.ErrUsernameTaken
		}
	}
	r.store.mu.Unlock()
	created := cloneUser(user)
	tx.stage(func(s *fakeStore) {
		s.users[created.ID] = created
	})
	return nil
}

func (r *fakeUserRepo) GetUserByIDTx(ctx context.Context, querier domain.Querier, userID string) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	user, ok := r.store.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return r.attachAccount(user), nil
}

func (r *fakeUserRepo) GetUserByUsernameTx(ctx context.Context, querier domain.Querier, username string) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, user := range r.store.users {
		if user.Username == username {
			return r.attachAccount(user), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *fakeUserRepo) GetUserByAccountIDTx(ctx context.Context, querier domain.Querier, accountID string) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	account, ok := r.store.accounts[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	user, ok := r.store.users[account.UserID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return r.attachAccount(user), nil
}

// attachAccount вызывается под store.mu.
func (r *fakeUserRepo) attachAccount(user *domain.User) *domain.User {
	result := cloneUser(user)
	for _, account := range r.store.accounts {
		if account.UserID == user.ID {
			result.Account = cloneAccount(account)
			break
		}
	}
	return result
}

type fakeAccountRepo struct {
	store *fakeStore
}

func (r *fakeAccountRepo) CreateAccountTx(ctx context.Context, querier domain.Querier, account *domain.Account) error {
	tx := querier.(*fakeTx)
	r.store.mu.Lock()
	for _, existing := range r.store.accounts {
		if existing.UserID == account.UserID {
			r.store.mu.Unlock()
			return domain.ErrAccountAlreadyExists
		}
	}
	r.store.mu.Unlock()
	created := cloneAccount(account)
	tx.stage(func(s *fakeStore) {
		s.accounts[created.ID] = created
	})
	return nil
}

func (r *fakeAccountRepo) GetAccountByIDForUpdateTx(ctx context.Context, querier domain.Querier, accountID string) (*domain.Account, error) {
	tx := querier.(*fakeTx)
	tx.lockRow(accountID)
	balance, ok := tx.balanceOf(accountID)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return r.snapshot(accountID, balance)
}

func (r *fakeAccountRepo) AddToBalanceTx(ctx context.Context, querier domain.Querier, accountID string, delta int64) (*domain.Account, error) {
	tx := querier.(*fakeTx)
	tx.lockRow(accountID)
	balance, ok := tx.balanceOf(accountID)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	if delta < 0 && balance+delta < 0 {
		return nil, domain.ErrInsufficientBalance
	}
	newBalance := balance + delta
	tx.balances[accountID] = newBalance
	tx.stage(func(s *fakeStore) {
		if account, ok := s.accounts[accountID]; ok {
			account.Balance = newBalance
			account.UpdatedAt = time.Now()
		}
	})
	return r.snapshot(accountID, newBalance)
}

func (r *fakeAccountRepo) snapshot(accountID string, balance int64) (*domain.Account, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	account, ok := r.store.accounts[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	result := cloneAccount(account)
	result.Balance = balance
	return result, nil
}

type fakeTransactionRepo struct {
	store *fakeStore
}

func (r *fakeTransactionRepo) CreateTransactionTx(ctx context.Context, querier domain.Querier, transaction *domain.Transaction) error {
	tx := querier.(*fakeTx)
	created := cloneTransaction(transaction)
	tx.stage(func(s *fakeStore) {
		s.transactions[created.ID] = created
	})
	return nil
}

func (r *fakeTransactionRepo) GetPendingByIDsTx(ctx context.Context, querier domain.Querier, ids []string) ([]*domain.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var result []*domain.Transaction
	for _, id := range ids {
		transaction, ok := r.store.transactions[id]
		if !ok || transaction.Status != domain.TransactionStatusPending {
			continue
		}
		result = append(result, cloneTransaction(transaction))
	}
	return result, nil
}

func (r *fakeTransactionRepo) FinalizeTransactionTx(ctx context.Context, querier domain.Querier, id string, status domain.TransactionStatus, systemNote *string) (*domain.Transaction, error) {
	tx := querier.(*fakeTx)
	r.store.mu.Lock()
	transaction, ok := r.store.transactions[id]
	if !ok || transaction.Status != domain.TransactionStatusPending {
		r.store.mu.Unlock()
		return nil, domain.ErrTransactionNotPending
	}
	finalized := cloneTransaction(transaction)
	r.store.mu.Unlock()

	finalized.Status = status
	finalized.SystemNote = systemNote
	tx.stage(func(s *fakeStore) {
		if current, ok := s.transactions[id]; ok && current.Status == domain.TransactionStatusPending {
			s.transactions[id] = cloneTransaction(finalized)
		}
	})
	return finalized, nil
}

func (r *fakeTransactionRepo) ListTransactionsTx(ctx context.Context, querier domain.Querier, order transactions_repo.TransactionOrderQuery) ([]*domain.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var result []*domain.Transaction
	for _, transaction := range r.store.transactions {
		result = append(result, cloneTransaction(transaction))
	}
	sortTransactions(result)
	return result, nil
}

func (r *fakeTransactionRepo) ListAccountTransactionsTx(ctx context.Context, querier domain.Querier, accountID string, order transactions_repo.TransactionOrderQuery) ([]*domain.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var result []*domain.Transaction
	for _, transaction := range r.store.transactions {
		if transaction.SourceAccountID == accountID ||
			(transaction.DestinationAccountID != nil && *transaction.DestinationAccountID == accountID) {
			result = append(result, cloneTransaction(transaction))
		}
	}
	sortTransactions(result)
	return result, nil
}

func sortTransactions(transactions []*domain.Transaction) {
	sort.Slice(transactions, func(i, j int) bool {
		return transactions[i].CreatedAt.After(transactions[j].CreatedAt)
	})
}

type fakeOutboxRepo struct {
	store *fakeStore
}

func (r *fakeOutboxRepo) CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.OutboxMessage) error {
	tx := querier.(*fakeTx)
	created := *msg
	tx.stage(func(s *fakeStore) {
		s.outbox = append(s.outbox, &created)
	})
	return nil
}

func (r *fakeOutboxRepo) GetPendingMessages(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var result []domain.OutboxMessage
	for _, msg := range r.store.outbox {
		if msg.Status != domain.OutboxStatusPending {
			continue
		}
		result = append(result, *msg)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (r *fakeOutboxRepo) UpdateMessageStatusTx(ctx context.Context, querier domain.Querier, id string, status domain.OutboxMessageStatus) error {
	update := func(s *fakeStore) {
		for _, msg := range s.outbox {
			if msg.ID == id {
				msg.Status = status
				if status == domain.OutboxStatusSent {
					now := time.Now()
					msg.SentAt = &now
				}
				return
			}
		}
	}
	if tx, ok := querier.(*fakeTx); ok {
		tx.stage(update)
		return nil
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	update(r.store)
	return nil
}
