package asset_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/ledger-bridge/internal/asset"
)

var dai = asset.NewToken(common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), "DAI", 18)

func TestNormalize_ExactForCommonDecimals(t *testing.T) {
	raw, _ := new(big.Int).SetString("123456789012345678901234567", 10)

	tests := []struct {
		decimals uint8
		want     string
	}{
		{0, "123456789012345678901234567"},
		{6, "123456789012345678901.234567"},
		{8, "1234567890123456789.01234567"},
		{18, "123456789.012345678901234567"},
	}

	for _, tt := range tests {
		got := asset.Normalize(raw, tt.decimals)
		if got.String() != tt.want {
			t.Errorf("decimals=%d: got %s, want %s", tt.decimals, got.String(), tt.want)
		}
		// multiplying back must reproduce the raw value exactly
		back := got.Shift(int32(tt.decimals)).BigInt()
		if back.Cmp(raw) != 0 {
			t.Errorf("decimals=%d: round trip %s != %s", tt.decimals, back, raw)
		}
	}
}

func TestAmount_Basic(t *testing.T) {
	one, err := asset.NewAmount(dai, big.NewInt(1e18))
	if err != nil {
		t.Fatal(err)
	}

	if one.IsZero() {
		t.Error("expected non-zero amount")
	}
	if !one.ToDecimal().Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected 1, got %s", one.ToDecimal().String())
	}
	if one.String() != "1 DAI" {
		t.Errorf("expected '1 DAI', got '%s'", one.String())
	}
}

func TestAmount_RejectsInvalid(t *testing.T) {
	if _, err := asset.NewAmount(nil, big.NewInt(1)); err != asset.ErrNilToken {
		t.Errorf("nil token: %v", err)
	}
	if _, err := asset.NewAmount(dai, big.NewInt(-1)); err != asset.ErrNegativeAmount {
		t.Errorf("negative: %v", err)
	}
}

func TestToken_StringFallsBackToAddress(t *testing.T) {
	sixDec := asset.NewToken(common.Address{1}, "", 6)
	if want := (common.Address{1}).Hex(); sixDec.String() != want {
		t.Errorf("symbol-less token should print its address, got %s", sixDec.String())
	}
}
