package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fd1az/ledger-bridge/business/vote/infra/signer"
	"github.com/fd1az/ledger-bridge/internal/apperror"
	"github.com/fd1az/ledger-bridge/internal/logger"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var _ logger.LoggerInterface = (*mockLogger)(nil)

const (
	keyA  = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	addrA = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	keyB  = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
	addrB = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

// mockProvider signs like a node holding keyB, optionally with raw v.
type mockProvider struct {
	err   error
	rawV  bool
	calls int
}

func (m *mockProvider) PersonalSign(ctx context.Context, msg []byte) ([]byte, common.Address, error) {
	m.calls++
	if m.err != nil {
		return nil, common.Address{}, m.err
	}
	sig, account, err := signer.Sign(string(msg), keyB)
	if err != nil {
		return nil, common.Address{}, err
	}
	if m.rawV {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	return sig, account, nil
}

func TestMessageString(t *testing.T) {
	s := NewService(nil, &mockLogger{})
	if got := s.MessageString(1234, 1, 5555); got != "proposal=1234choice=1nonce=5555" {
		t.Fatalf("MessageString = %q", got)
	}
}

func TestSignVote_ExplicitKeyRoundTrip(t *testing.T) {
	provider := &mockProvider{}
	s := NewService(provider, &mockLogger{})
	ctx := context.Background()

	sig, err := s.SignVote(ctx, 1234, 1, 5555, keyA)
	if err != nil {
		t.Fatalf("SignVote: %v", err)
	}
	if !strings.HasPrefix(sig, "0x") || len(sig) != 132 {
		t.Fatalf("signature = %s", sig)
	}
	if provider.calls != 0 {
		t.Error("explicit key must not use the provider")
	}

	got, err := s.RecoverAddressFromMessage(s.MessageString(1234, 1, 5555), sig)
	if err != nil || got != common.HexToAddress(addrA) {
		t.Fatalf("recovered %s, %v", got.Hex(), err)
	}

	if !s.VerifyVote(1234, 1, 5555, sig, addrA) {
		t.Error("VerifyVote should accept the signer")
	}
	if !s.VerifyVote(1234, 1, 5555, sig, strings.ToLower(addrA)) {
		t.Error("address comparison must be case-insensitive")
	}
	if s.VerifyVote(1234, 1, 5555, sig, addrB) {
		t.Error("VerifyVote accepted a different signer")
	}
	if s.VerifyVote(1234, 2, 5555, sig, addrA) {
		t.Error("VerifyVote accepted a different choice")
	}
}

func TestSignVote_Provider(t *testing.T) {
	for _, rawV := range []bool{false, true} {
		provider := &mockProvider{rawV: rawV}
		s := NewService(provider, &mockLogger{})

		sig, err := s.SignVote(context.Background(), 7, 3, 1, "")
		if err != nil {
			t.Fatalf("rawV=%v: SignVote: %v", rawV, err)
		}
		if provider.calls != 1 {
			t.Errorf("rawV=%v: provider calls = %d", rawV, provider.calls)
		}
		if !strings.HasSuffix(sig, "1b") && !strings.HasSuffix(sig, "1c") {
			t.Errorf("rawV=%v: v not normalized: %s", rawV, sig)
		}
		if !s.VerifyVote(7, 3, 1, sig, addrB) {
			t.Errorf("rawV=%v: provider signature does not verify", rawV)
		}
	}
}

func TestSignVote_FailurePropagates(t *testing.T) {
	tests := []struct {
		name     string
		provider ProviderSigner
		key      string
		cause    apperror.Code
	}{
		{name: "no provider", key: "", cause: apperror.CodeNoSigningAccount},
		{
			name:     "provider error",
			provider: &mockProvider{err: apperror.New(apperror.CodeNoSigningAccount)},
			cause:    apperror.CodeNoSigningAccount,
		},
		{name: "bad key", provider: &mockProvider{}, key: "0xdeadbeef", cause: apperror.CodeInvalidPrivateKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewService(tt.provider, &mockLogger{})

			sig, err := s.SignVote(context.Background(), 1, 1, 1, tt.key)
			if sig != "" {
				t.Errorf("signature = %q on failure", sig)
			}
			if apperror.GetCode(err) != apperror.CodeSigningFailed {
				t.Fatalf("expected SIGNING_FAILED, got %v", err)
			}
			if apperror.GetClass(err) != apperror.ClassSigningFailure {
				t.Errorf("class = %s", apperror.GetClass(err))
			}
			if !apperror.HasCode(err, tt.cause) {
				t.Errorf("expected cause %s in %v", tt.cause, err)
			}
		})
	}
}

func TestSignVote_ProviderTransportError(t *testing.T) {
	s := NewService(&mockProvider{err: errors.New("websocket: close 1006")}, &mockLogger{})

	_, err := s.SignVote(context.Background(), 1, 1, 1, "")
	if apperror.GetCode(err) != apperror.CodeSigningFailed || !strings.Contains(err.Error(), "close 1006") {
		t.Fatalf("got %v", err)
	}
}

func TestVerifyVote_MalformedInput(t *testing.T) {
	s := NewService(nil, &mockLogger{})
	sig, err := s.SignVote(context.Background(), 1, 1, 1, keyA)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		signature string
		expected  string
	}{
		{name: "empty signature", signature: "", expected: addrA},
		{name: "truncated signature", signature: sig[:40], expected: addrA},
		{name: "garbage signature", signature: "0x" + strings.Repeat("zz", 65), expected: addrA},
		{name: "bad expected address", signature: sig, expected: "0x1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if s.VerifyVote(1, 1, 1, tt.signature, tt.expected) {
				t.Error("VerifyVote = true")
			}
		})
	}

	if _, err := s.RecoverAddressFromMessage("x", "0x00"); apperror.GetCode(err) != apperror.CodeInvalidSignature {
		t.Errorf("expected INVALID_SIGNATURE, got %v", err)
	}
}
