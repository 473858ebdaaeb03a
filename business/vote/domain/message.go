// Package domain contains the vote message and signature types.
package domain

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SignatureLength is r || s || v.
const SignatureLength = 65

// Message is the structured vote a signature commits to.
type Message struct {
	ProposalID uint64
	ChoiceID   uint64
	Nonce      uint64
}

// NewMessage creates a vote message.
func NewMessage(proposalID, choiceID, nonce uint64) Message {
	return Message{ProposalID: proposalID, ChoiceID: choiceID, Nonce: nonce}
}

// String is the canonical encoding: proposal=<p>choice=<c>nonce=<n>, base
// 10, no separators.
func (m Message) String() string {
	var sb strings.Builder
	sb.Grow(32)
	sb.WriteString("proposal=")
	sb.WriteString(strconv.FormatUint(m.ProposalID, 10))
	sb.WriteString("choice=")
	sb.WriteString(strconv.FormatUint(m.ChoiceID, 10))
	sb.WriteString("nonce=")
	sb.WriteString(strconv.FormatUint(m.Nonce, 10))
	return sb.String()
}

// Signature is a 65-byte recoverable signature with v in {27, 28}.
type Signature []byte

// Hex returns the 0x-prefixed encoding.
func (s Signature) Hex() string {
	return hexutil.Encode(s)
}

// SignedVote pairs a message with its signature and signer.
type SignedVote struct {
	Message   Message
	Signature Signature
	Signer    common.Address
}
