// Package signer implements EIP-191 personal-message signing and recovery
// with go-ethereum's secp256k1 primitives.
package signer

import (
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fd1az/ledger-bridge/business/vote/domain"
	"github.com/fd1az/ledger-bridge/internal/apperror"
)

// Hash returns the EIP-191 digest of message:
// keccak256("\x19Ethereum Signed Message:\n" + len + message).
func Hash(message string) []byte {
	return accounts.TextHash([]byte(message))
}

// ParseKey decodes a hex private key, with or without 0x prefix.
func ParseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		// the cause can echo key material, keep it out of the error
		return nil, apperror.New(apperror.CodeInvalidPrivateKey)
	}
	return key, nil
}

// Sign signs message with hexKey and returns the signature with v in
// {27, 28} and the signer address.
func Sign(message, hexKey string) (domain.Signature, common.Address, error) {
	key, err := ParseKey(hexKey)
	if err != nil {
		return nil, common.Address{}, err
	}
	return SignWithKey(message, key)
}

// SignWithKey signs message with key.
func SignWithKey(message string, key *ecdsa.PrivateKey) (domain.Signature, common.Address, error) {
	sig, err := crypto.Sign(Hash(message), key)
	if err != nil {
		return nil, common.Address{}, apperror.New(apperror.CodeSigningFailed, apperror.WithCause(err))
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, crypto.PubkeyToAddress(key.PublicKey), nil
}

// DecodeSignature parses a 0x-prefixed 65-byte signature.
func DecodeSignature(signature string) (domain.Signature, error) {
	raw, err := hexutil.Decode(strings.TrimSpace(signature))
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidSignature,
			apperror.WithCause(err),
			apperror.WithContext("signature is not 0x-prefixed hex"))
	}
	if len(raw) != domain.SignatureLength {
		return nil, apperror.New(apperror.CodeInvalidSignature,
			apperror.WithContextf("signature has %d bytes, want %d", len(raw), domain.SignatureLength))
	}
	return raw, nil
}

// Recover returns the address that signed message. v may be 0, 1, 27 or 28.
func Recover(message string, sig domain.Signature) (common.Address, error) {
	if len(sig) != domain.SignatureLength {
		return common.Address{}, apperror.New(apperror.CodeInvalidSignature,
			apperror.WithContextf("signature has %d bytes, want %d", len(sig), domain.SignatureLength))
	}

	normalized := make([]byte, domain.SignatureLength)
	copy(normalized, sig)
	if v := normalized[crypto.RecoveryIDOffset]; v >= 27 {
		normalized[crypto.RecoveryIDOffset] = v - 27
	}
	if normalized[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, apperror.New(apperror.CodeInvalidSignature,
			apperror.WithContextf("invalid recovery id %d", sig[crypto.RecoveryIDOffset]))
	}

	pub, err := crypto.SigToPub(Hash(message), normalized)
	if err != nil {
		return common.Address{}, apperror.New(apperror.CodeInvalidSignature, apperror.WithCause(err))
	}
	return crypto.PubkeyToAddress(*pub), nil
}
