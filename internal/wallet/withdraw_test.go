package wallet

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oppbot/internal/domain"
)

type fakeWallet struct {
	balance   float64
	transfers []struct {
		venue, dest string
		amount      float64
	}
}

func (f *fakeWallet) Balance(_ context.Context, _ string) (float64, error) {
	return f.balance, nil
}

func (f *fakeWallet) Transfer(_ context.Context, venue, dest string, amount float64) (string, error) {
	f.transfers = append(f.transfers, struct {
		venue, dest string
		amount      float64
	}{venue, dest, amount})
	return "tx-123", nil
}

const testDestination = "0x8ba1f109551bd432803012645ac136ddd64dba72"

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestNewWithdrawerRequiresCredential(t *testing.T) {
	_, err := NewWithdrawer(&fakeWallet{}, WithdrawConfig{
		Destination: testDestination,
	}, testLogger())
	require.ErrorIs(t, err, domain.ErrMissingCredential)
}

func TestNewWithdrawerRequiresDestination(t *testing.T) {
	_, err := NewWithdrawer(&fakeWallet{}, WithdrawConfig{
		Key: KeyConfig{RawPrivateKey: testKeyHex},
	}, testLogger())
	require.ErrorIs(t, err, domain.ErrMissingDestination)

	_, err = NewWithdrawer(&fakeWallet{}, WithdrawConfig{
		Key:         KeyConfig{RawPrivateKey: testKeyHex},
		Destination: "not-an-address",
	}, testLogger())
	require.ErrorIs(t, err, domain.ErrMissingDestination)
}

func TestWithdrawExplicitAmount(t *testing.T) {
	fw := &fakeWallet{balance: 500}
	wd, err := NewWithdrawer(fw, WithdrawConfig{
		Key:         KeyConfig{RawPrivateKey: testKeyHex},
		Destination: testDestination,
	}, testLogger())
	require.NoError(t, err)

	ref, err := wd.Withdraw(context.Background(), "venue-a", 120)
	require.NoError(t, err)
	assert.Equal(t, "tx-123", ref)

	require.Len(t, fw.transfers, 1)
	assert.Equal(t, "venue-a", fw.transfers[0].venue)
	// The withdrawer normalises the destination to its checksummed form.
	assert.True(t, strings.EqualFold(testDestination, fw.transfers[0].dest))
	assert.Equal(t, 120.0, fw.transfers[0].amount)
}

func TestWithdrawSweepsFullBalance(t *testing.T) {
	fw := &fakeWallet{balance: 73.5}
	wd, err := NewWithdrawer(fw, WithdrawConfig{
		Key:         KeyConfig{RawPrivateKey: testKeyHex},
		Destination: testDestination,
	}, testLogger())
	require.NoError(t, err)

	_, err = wd.Withdraw(context.Background(), "venue-a", 0)
	require.NoError(t, err)
	require.Len(t, fw.transfers, 1)
	assert.Equal(t, 73.5, fw.transfers[0].amount)
}

func TestWithdrawNothingAvailable(t *testing.T) {
	fw := &fakeWallet{balance: 0}
	wd, err := NewWithdrawer(fw, WithdrawConfig{
		Key:         KeyConfig{RawPrivateKey: testKeyHex},
		Destination: testDestination,
	}, testLogger())
	require.NoError(t, err)

	_, err = wd.Withdraw(context.Background(), "venue-a", 0)
	require.Error(t, err)
	assert.Empty(t, fw.transfers)
}

func TestWithdrawerDerivesFromAddress(t *testing.T) {
	wd, err := NewWithdrawer(&fakeWallet{}, WithdrawConfig{
		Key:         KeyConfig{RawPrivateKey: testKeyHex},
		Destination: testDestination,
	}, testLogger())
	require.NoError(t, err)
	assert.True(t, len(wd.From()) == 42 && wd.From()[:2] == "0x")
}
