package custody

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrAccountExists       = errors.New("custody account already exists")
	ErrAccountNotFound     = errors.New("custody account not found")
	ErrInsufficientBalance = errors.New("custody account has insufficient balance")
	ErrUnauthorized        = errors.New("authority does not own the source account")
	ErrTransferExists      = errors.New("transfer already exists")
)

// Store is the custody primitive. Transfers are atomic: either the source is
// debited and the destination credited, or nothing changes.
type Store interface {
	// CreateAccount opens an account with an opening balance. ErrAccountExists
	// is returned if the address is already in use.
	CreateAccount(ctx context.Context, record *AccountRecord) error

	// GetAccount gets an account by address. ErrAccountNotFound is returned if
	// the account hasn't been opened.
	GetAccount(ctx context.Context, address string) (*AccountRecord, error)

	// Transfer moves funds between accounts. The destination is opened, owned
	// by its own address, when it doesn't exist. ErrAccountNotFound is returned
	// for an unknown source, ErrUnauthorized when the authority doesn't own the
	// source, ErrInsufficientBalance when the source can't cover the amount and
	// ErrTransferExists when the transfer ID was already used.
	Transfer(ctx context.Context, record *TransferRecord) error

	// GetTransfers gets all transfers where the account is the source or the
	// destination, ordered by creation.
	GetTransfers(ctx context.Context, address string) ([]*TransferRecord, error)
}
