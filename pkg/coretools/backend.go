package coretools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned by DeleteUser for an unknown user.
var ErrUserNotFound = errors.New("user not found")

// Transfer is a completed funds transfer.
type Transfer struct {
	TransactionID string    `json:"transactionId"`
	Amount        float64   `json:"amount"`
	ToAccount     string    `json:"toAccount"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	InitiatedBy   string    `json:"initiatedBy,omitempty"`
}

// Backend is the in-memory system the built-in tools act on. It is safe for
// concurrent use.
type Backend struct {
	mu        sync.Mutex
	users     map[string]struct{}
	transfers []Transfer
	now       func() time.Time
}

// NewBackend creates a backend holding the given user IDs.
func NewBackend(userIDs ...string) *Backend {
	b := &Backend{
		users: make(map[string]struct{}, len(userIDs)),
		now:   time.Now,
	}
	for _, id := range userIDs {
		b.users[id] = struct{}{}
	}
	return b
}

// Transfer records a transfer of amount to toAccount.
func (b *Backend) Transfer(ctx context.Context, amount float64, toAccount, initiatedBy string) (Transfer, error) {
	if err := ctx.Err(); err != nil {
		return Transfer{}, err
	}
	if amount <= 0 {
		return Transfer{}, fmt.Errorf("amount must be positive, got %v", amount)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	t := Transfer{
		TransactionID: uuid.NewString(),
		Amount:        amount,
		ToAccount:     toAccount,
		Status:        "completed",
		CreatedAt:     b.now().UTC(),
		InitiatedBy:   initiatedBy,
	}
	b.transfers = append(b.transfers, t)
	return t, nil
}

// Transfers returns every recorded transfer, oldest first.
func (b *Backend) Transfers() []Transfer {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]Transfer(nil), b.transfers...)
}

// DeleteUser removes a user.
func (b *Backend) DeleteUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.users[userID]; !ok {
		return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	delete(b.users, userID)
	return nil
}

// Users returns the remaining user IDs, sorted.
func (b *Backend) Users() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := make([]string, 0, len(b.users))
	for id := range b.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
