// Package ledgertest provides an in-memory ledger node for tests.
package ledgertest

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/fd1az/ledger-bridge/business/ledger/app"
)

// ErrClosed is returned by every call on a closed node.
var ErrClosed = errors.New("ledgertest: node closed")

// CallFunc answers eth_call requests.
type CallFunc func(msg ethereum.CallMsg, block *big.Int) ([]byte, error)

// SignFunc answers personal_sign requests.
type SignFunc func(msg []byte, account common.Address) ([]byte, error)

type subscription struct {
	query ethereum.FilterQuery
	logs  chan types.Log
	fail  chan error
}

// Node is a programmable app.Node. Zero values answer "listening", network
// 1, height 0 and no accounts.
type Node struct {
	mu sync.Mutex

	NotListening bool
	ListenErr     error
	Network      int64
	Height       uint64
	HeightErr    error
	Code         map[common.Address][]byte
	CodeErr      error
	Call         CallFunc
	AccountList  []common.Address
	AccountsErr  error
	Sign         SignFunc
	SubscribeErr error

	subs    []*subscription
	queries []ethereum.FilterQuery
	closed  bool
	calls   map[string]int
}

var _ app.Node = (*Node)(nil)

// NewNode creates an empty node.
func NewNode() *Node {
	return &Node{
		Network: 1,
		Code:    make(map[common.Address][]byte),
		calls:   make(map[string]int),
	}
}

// Dialer returns an app.Dialer handing out nodes from the given function.
func Dialer(fn func(endpoint string) (*Node, error)) app.Dialer {
	return func(_ context.Context, endpoint string) (app.Node, error) {
		n, err := fn(endpoint)
		if err != nil {
			return nil, err
		}
		return n, nil
	}
}

func (n *Node) enter(op string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.calls == nil {
		n.calls = make(map[string]int)
	}
	n.calls[op]++
	if n.closed {
		return ErrClosed
	}
	return nil
}

// Calls returns how many times op was invoked.
func (n *Node) Calls(op string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[op]
}

// Set runs fn under the node lock, for changing fields while in use.
func (n *Node) Set(fn func(n *Node)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fn(n)
}

func (n *Node) Listening(ctx context.Context) (bool, error) {
	if err := n.enter("net_listening"); err != nil {
		return false, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return !n.NotListening, n.ListenErr
}

func (n *Node) NetworkID(ctx context.Context) (*big.Int, error) {
	if err := n.enter("net_version"); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return big.NewInt(n.Network), nil
}

func (n *Node) BlockNumber(ctx context.Context) (uint64, error) {
	if err := n.enter("eth_blockNumber"); err != nil {
		return 0, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.Height, n.HeightErr
}

func (n *Node) CodeAt(ctx context.Context, contract common.Address, block *big.Int) ([]byte, error) {
	if err := n.enter("eth_getCode"); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.CodeErr != nil {
		return nil, n.CodeErr
	}
	return append([]byte(nil), n.Code[contract]...), nil
}

func (n *Node) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	if err := n.enter("eth_call"); err != nil {
		return nil, err
	}
	n.mu.Lock()
	call := n.Call
	n.mu.Unlock()
	if call == nil {
		return nil, errors.New("ledgertest: execution reverted")
	}
	return call(msg, block)
}

func (n *Node) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	if err := n.enter("eth_subscribe"); err != nil {
		return nil, err
	}

	n.mu.Lock()
	if n.SubscribeErr != nil {
		err := n.SubscribeErr
		n.mu.Unlock()
		return nil, err
	}
	s := &subscription{query: q, logs: make(chan types.Log, 64), fail: make(chan error, 1)}
	n.subs = append(n.subs, s)
	n.queries = append(n.queries, q)
	n.mu.Unlock()

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer n.remove(s)
		for {
			select {
			case l := <-s.logs:
				select {
				case ch <- l:
				case <-quit:
					return nil
				}
			case err := <-s.fail:
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

func (n *Node) remove(s *subscription) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, cur := range n.subs {
		if cur == s {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			return
		}
	}
}

// Emit delivers l to every live subscription whose filter names l.Address.
// It returns the number of subscriptions that received it.
func (n *Node) Emit(l types.Log) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	delivered := 0
	for _, s := range n.subs {
		if !matches(s.query, l) {
			continue
		}
		select {
		case s.logs <- l:
			delivered++
		default:
		}
	}
	return delivered
}

func matches(q ethereum.FilterQuery, l types.Log) bool {
	if len(q.Addresses) > 0 {
		found := false
		for _, a := range q.Addresses {
			if a == l.Address {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for i, alts := range q.Topics {
		if len(alts) == 0 {
			continue
		}
		if i >= len(l.Topics) {
			return false
		}
		found := false
		for _, t := range alts {
			if t == l.Topics[i] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// FailSubscriptions terminates every live subscription with err.
func (n *Node) FailSubscriptions(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, s := range n.subs {
		select {
		case s.fail <- err:
		default:
		}
	}
}

// ActiveSubscriptions returns the number of live subscriptions.
func (n *Node) ActiveSubscriptions() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

// Queries returns every filter passed to SubscribeFilterLogs.
func (n *Node) Queries() []ethereum.FilterQuery {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]ethereum.FilterQuery(nil), n.queries...)
}

func (n *Node) Accounts(ctx context.Context) ([]common.Address, error) {
	if err := n.enter("eth_accounts"); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]common.Address(nil), n.AccountList...), n.AccountsErr
}

func (n *Node) PersonalSign(ctx context.Context, msg []byte, account common.Address) ([]byte, error) {
	if err := n.enter("personal_sign"); err != nil {
		return nil, err
	}
	n.mu.Lock()
	sign := n.Sign
	n.mu.Unlock()
	if sign == nil {
		return nil, errors.New("ledgertest: account locked")
	}
	return sign(msg, account)
}

// Close marks the node closed.
func (n *Node) Close() {
	n.mu.Lock()
	n.closed = true
	subs := n.subs
	n.mu.Unlock()

	for _, s := range subs {
		select {
		case s.fail <- ErrClosed:
		default:
		}
	}
}

// Closed reports whether Close was called.
func (n *Node) Closed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}
