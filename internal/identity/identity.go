/**
 * @description
 * Wallet identity provider. Supplies the current account address (or absent)
 * and a connected/disconnected signal. The address is a bare identifier; there
 * is no authentication, custody, or signature verification behind it.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum/common: address validation + EIP-55 checksum
 * - internal/store: join activity on connect
 */

package identity

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pricepulse-project/backend/internal/logger"
	"github.com/pricepulse-project/backend/internal/models"
	"github.com/pricepulse-project/backend/internal/store"
)

var ErrInvalidAddress = errors.New("identity: not a valid wallet address")

// Provider is the narrow view the core components consume: the current
// account address, or absent when no wallet is connected.
type Provider interface {
	Address() (string, bool)
}

// Wallet is a per-session wallet connection. Connecting normalizes the address
// to its EIP-55 checksum form and emits a best-effort join activity entry.
type Wallet struct {
	store store.Store

	mu      sync.RWMutex
	address string

	onConnect []func(address string)
}

func NewWallet(st store.Store) *Wallet {
	return &Wallet{store: st}
}

// Normalize validates a raw address and returns its EIP-55 checksum form
func Normalize(raw string) (string, error) {
	if !common.IsHexAddress(raw) {
		return "", ErrInvalidAddress
	}
	return common.HexToAddress(raw).Hex(), nil
}

// Join normalizes a raw address and records the join on the activity feed.
// This is the single join path; both the session wallet and the API handler
// go through it.
func Join(ctx context.Context, st store.Store, rawAddress, tokenSymbol string) (string, error) {
	address, err := Normalize(rawAddress)
	if err != nil {
		return "", err
	}
	entry := &models.Activity{
		UserAddress: address,
		Kind:        models.ActivityJoin,
		TokenSymbol: tokenSymbol,
	}
	if err := st.AddActivity(ctx, entry); err != nil {
		return address, err
	}
	return address, nil
}

// Connect attaches an address to the session. Idempotent for the same address.
func (w *Wallet) Connect(ctx context.Context, rawAddress, tokenSymbol string) (string, error) {
	address, err := Normalize(rawAddress)
	if err != nil {
		return "", err
	}

	w.mu.Lock()
	already := w.address == address
	w.address = address
	handlers := append([]func(string){}, w.onConnect...)
	w.mu.Unlock()

	if already {
		return address, nil
	}

	// The join entry is best effort for a session: a feed hiccup must not
	// block the wallet from connecting.
	if _, err := Join(ctx, w.store, address, tokenSymbol); err != nil {
		logger.Error("identity: failed to record join activity for %s: %v", address, err)
	}

	for _, h := range handlers {
		h(address)
	}
	return address, nil
}

// Disconnect clears the session address
func (w *Wallet) Disconnect() {
	w.mu.Lock()
	w.address = ""
	w.mu.Unlock()
}

// Address returns the connected account address, or ("", false) when absent
func (w *Wallet) Address() (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.address == "" {
		return "", false
	}
	return w.address, true
}

// OnConnect registers a callback fired after a new wallet connection
func (w *Wallet) OnConnect(handler func(address string)) {
	w.mu.Lock()
	w.onConnect = append(w.onConnect, handler)
	w.mu.Unlock()
}
