package wallet

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/oppbot/internal/domain"
)

// WithdrawConfig holds everything the withdrawer needs besides the venue
// client itself.
type WithdrawConfig struct {
	Key         KeyConfig
	Destination string // hex address funds are swept to
}

// Withdrawer sweeps venue balances to a configured destination address. It
// refuses to run with an incomplete configuration so that a misconfigured
// deployment fails loudly instead of sending funds nowhere.
type Withdrawer struct {
	wallet      domain.Wallet
	destination string
	fromAddr    common.Address
	logger      *slog.Logger
}

// NewWithdrawer validates the configuration and returns a ready Withdrawer.
// It returns domain.ErrMissingCredential when no key source is configured or
// the key cannot be loaded, and domain.ErrMissingDestination when the
// destination address is absent or malformed.
func NewWithdrawer(w domain.Wallet, cfg WithdrawConfig, logger *slog.Logger) (*Withdrawer, error) {
	if cfg.Key.RawPrivateKey == "" && cfg.Key.EncryptedKeyPath == "" {
		return nil, fmt.Errorf("wallet: withdrawer: %w", domain.ErrMissingCredential)
	}
	keyHex, err := LoadKey(cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("wallet: withdrawer: %w: %v", domain.ErrMissingCredential, err)
	}
	priv, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("wallet: withdrawer: %w: %v", domain.ErrMissingCredential, err)
	}

	if cfg.Destination == "" {
		return nil, fmt.Errorf("wallet: withdrawer: %w", domain.ErrMissingDestination)
	}
	if !common.IsHexAddress(cfg.Destination) {
		return nil, fmt.Errorf("wallet: withdrawer: %w: bad address %q", domain.ErrMissingDestination, cfg.Destination)
	}

	return &Withdrawer{
		wallet:      w,
		destination: common.HexToAddress(cfg.Destination).Hex(),
		fromAddr:    ethcrypto.PubkeyToAddress(priv.PublicKey),
		logger:      logger.With(slog.String("component", "withdrawer")),
	}, nil
}

// From returns the address derived from the configured signing key.
func (wd *Withdrawer) From() string {
	return wd.fromAddr.Hex()
}

// Withdraw transfers amount from the venue to the configured destination and
// returns the venue's transfer reference. A non-positive amount sweeps the
// full available balance.
func (wd *Withdrawer) Withdraw(ctx context.Context, venue string, amount float64) (string, error) {
	if amount <= 0 {
		bal, err := wd.wallet.Balance(ctx, venue)
		if err != nil {
			return "", fmt.Errorf("wallet: withdraw balance %s: %w", venue, err)
		}
		amount = bal
	}
	if amount <= 0 {
		return "", fmt.Errorf("wallet: withdraw %s: nothing to withdraw", venue)
	}

	ref, err := wd.wallet.Transfer(ctx, venue, wd.destination, amount)
	if err != nil {
		return "", fmt.Errorf("wallet: withdraw %s: %w", venue, err)
	}

	wd.logger.Info("withdrawal submitted",
		slog.String("venue", venue),
		slog.String("destination", wd.destination),
		slog.Float64("amount", amount),
		slog.String("ref", ref))

	return ref, nil
}
