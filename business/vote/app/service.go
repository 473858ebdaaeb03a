// Package app contains the vote signing service.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/ledger-bridge/business/vote/domain"
	"github.com/fd1az/ledger-bridge/business/vote/infra/signer"
	"github.com/fd1az/ledger-bridge/internal/apperror"
	"github.com/fd1az/ledger-bridge/internal/logger"
)

const instrumentationName = "github.com/fd1az/ledger-bridge/business/vote/app"

// ProviderSigner signs with an account held by the ledger node.
type ProviderSigner interface {
	PersonalSign(ctx context.Context, msg []byte) ([]byte, common.Address, error)
}

// Service signs and verifies vote messages.
type Service struct {
	provider ProviderSigner
	log      logger.LoggerInterface
	tracer   trace.Tracer

	signatures metric.Int64Counter
	failures   metric.Int64Counter
}

// NewService creates the vote service. provider may be nil, in which case
// only explicit-key signing works.
func NewService(provider ProviderSigner, log logger.LoggerInterface) *Service {
	meter := otel.Meter(instrumentationName)
	signatures, _ := meter.Int64Counter("vote_signatures_total",
		metric.WithDescription("Vote messages signed"))
	failures, _ := meter.Int64Counter("vote_signing_failures_total",
		metric.WithDescription("Vote signing attempts that failed"))

	return &Service{
		provider:   provider,
		log:        log,
		tracer:     otel.Tracer(instrumentationName),
		signatures: signatures,
		failures:   failures,
	}
}

// MessageString returns the canonical vote encoding.
func (s *Service) MessageString(proposalID, choiceID, nonce uint64) string {
	return domain.NewMessage(proposalID, choiceID, nonce).String()
}

// signMessage signs message locally with privateKey, or through the node's
// first account when privateKey is empty.
func (s *Service) signMessage(ctx context.Context, message, privateKey string) (domain.Signature, common.Address, error) {
	if privateKey != "" {
		return signer.Sign(message, privateKey)
	}

	if s.provider == nil {
		return nil, common.Address{}, apperror.New(apperror.CodeNoSigningAccount)
	}

	sig, account, err := s.provider.PersonalSign(ctx, []byte(message))
	if err != nil {
		return nil, account, err
	}
	if len(sig) != domain.SignatureLength {
		return nil, account, apperror.New(apperror.CodeInvalidSignature,
			apperror.WithContextf("node returned %d signature bytes", len(sig)))
	}

	// some nodes answer with a raw recovery id
	out := append(domain.Signature(nil), sig...)
	if out[domain.SignatureLength-1] < 27 {
		out[domain.SignatureLength-1] += 27
	}
	return out, account, nil
}

// Sign signs msg and returns the signature with its signer.
func (s *Service) Sign(ctx context.Context, msg domain.Message, privateKey string) (domain.SignedVote, error) {
	mode := "provider"
	if privateKey != "" {
		mode = "key"
	}
	ctx, span := s.tracer.Start(ctx, "vote.Sign",
		trace.WithAttributes(
			attribute.Int64("proposal", int64(msg.ProposalID)),
			attribute.String("mode", mode)))
	defer span.End()

	sig, account, err := s.signMessage(ctx, msg.String(), privateKey)
	if err != nil {
		s.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		signErr := apperror.New(apperror.CodeSigningFailed,
			apperror.WithCause(err),
			apperror.WithContextf("vote %s signed by %s", msg, mode))
		s.log.Warn(ctx, "vote signing failed", signErr.LogArgs()...)
		return domain.SignedVote{}, signErr
	}

	s.signatures.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
	s.log.Debug(ctx, "vote signed", "message", msg.String(), "signer", account.Hex())
	return domain.SignedVote{Message: msg, Signature: sig, Signer: account}, nil
}

// SignVote signs the vote and returns the 0x-prefixed signature. Failures
// are returned, never an empty signature.
func (s *Service) SignVote(ctx context.Context, proposalID, choiceID, nonce uint64, privateKey string) (string, error) {
	vote, err := s.Sign(ctx, domain.NewMessage(proposalID, choiceID, nonce), privateKey)
	if err != nil {
		return "", err
	}
	return vote.Signature.Hex(), nil
}

// RecoverAddressFromMessage returns the signer of message.
func (s *Service) RecoverAddressFromMessage(message, signature string) (common.Address, error) {
	sig, err := signer.DecodeSignature(signature)
	if err != nil {
		return common.Address{}, err
	}
	return signer.Recover(message, sig)
}

// VerifyVote reports whether signature over the vote was produced by
// expected. Malformed input and a different signer both yield false.
func (s *Service) VerifyVote(proposalID, choiceID, nonce uint64, signature, expected string) bool {
	if !common.IsHexAddress(expected) {
		return false
	}
	got, err := s.RecoverAddressFromMessage(s.MessageString(proposalID, choiceID, nonce), signature)
	if err != nil {
		return false
	}
	return got == common.HexToAddress(expected)
}
