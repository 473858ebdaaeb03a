package app

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	ledgerapp "github.com/fd1az/ledger-bridge/business/ledger/app"
	"github.com/fd1az/ledger-bridge/business/token/domain"
	"github.com/fd1az/ledger-bridge/internal/apperror"
	"github.com/fd1az/ledger-bridge/internal/asset"
	"github.com/fd1az/ledger-bridge/internal/logger"
)

// PipelineStats counts what the run loops saw since creation.
type PipelineStats struct {
	Published uint64
	Reorged   uint64
	Malformed uint64
}

type pipelineRun struct {
	binding domain.Binding
	sub     ethereum.Subscription
	logs    chan types.Log
	quit    chan struct{}
	done    chan struct{}
}

func (r *pipelineRun) stop() {
	close(r.quit)
	r.sub.Unsubscribe()
	<-r.done
}

// TransferPipeline turns Transfer logs of the bound contract into
// TransferEvents. One run loop is active at a time; Install swaps it.
type TransferPipeline struct {
	contract TokenContract
	out      TransferPublisher
	log      logger.LoggerInterface
	buffer   int

	mu      sync.Mutex
	run     *pipelineRun
	current atomic.Pointer[pipelineRun]

	statusMu sync.RWMutex
	healthy  bool
	reason   string

	published atomic.Uint64
	reorged   atomic.Uint64
	malformed atomic.Uint64

	events      metric.Int64Counter
	reorgs      metric.Int64Counter
	rejected    metric.Int64Counter
	subFailures metric.Int64Counter
}

// NewTransferPipeline creates an idle pipeline. buffer sizes the channel
// between the node subscription and the run loop.
func NewTransferPipeline(contract TokenContract, out TransferPublisher, buffer int, log logger.LoggerInterface) *TransferPipeline {
	if buffer < 1 {
		buffer = 1
	}

	meter := otel.Meter(meterName)
	events, _ := meter.Int64Counter("token_transfer_events_total",
		metric.WithDescription("Transfer events published"))
	reorgs, _ := meter.Int64Counter("token_transfer_reorged_total",
		metric.WithDescription("Transfer logs removed by a chain reorganization"))
	rejected, _ := meter.Int64Counter("token_transfer_malformed_total",
		metric.WithDescription("Transfer logs that could not be decoded"))
	subFailures, _ := meter.Int64Counter("token_subscription_failures_total",
		metric.WithDescription("Transfer subscriptions terminated by the node"))

	return &TransferPipeline{
		contract:    contract,
		out:         out,
		log:         log,
		buffer:      buffer,
		reason:      "no contract bound",
		events:      events,
		reorgs:      reorgs,
		rejected:    rejected,
		subFailures: subFailures,
	}
}

// Install subscribes to Transfer logs of binding from the latest block on.
// The previous run loop is stopped only once the new subscription exists, and
// it has exited when Install returns.
func (p *TransferPipeline) Install(ctx context.Context, session ledgerapp.Session, binding domain.Binding) error {
	logs := make(chan types.Log, p.buffer)
	sub, err := session.Node.SubscribeFilterLogs(ctx, p.contract.TransferQuery(binding.Address), logs)
	if err != nil {
		return apperror.New(apperror.CodeEthereumSubscribeFailed,
			apperror.WithCause(err),
			apperror.WithContextf("Transfer logs of %s", binding.Address.Hex()))
	}

	run := &pipelineRun{
		binding: binding,
		sub:     sub,
		logs:    logs,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.run != nil {
		p.run.stop()
	}
	p.run = run
	p.current.Store(run)
	p.setStatus(true, "")

	go p.loop(run)

	p.log.Info(ctx, "transfer subscription installed",
		"contract", binding.Address.Hex(),
		"symbol", binding.Symbol,
		"generation", binding.Generation)
	return nil
}

func (p *TransferPipeline) loop(run *pipelineRun) {
	defer close(run.done)
	ctx := context.Background()

	for {
		select {
		case <-run.quit:
			return
		case err, ok := <-run.sub.Err():
			if !ok {
				return
			}
			p.fail(ctx, run, err)
			return
		case l := <-run.logs:
			p.handle(ctx, run.binding, l)
		}
	}
}

func (p *TransferPipeline) fail(ctx context.Context, run *pipelineRun, err error) {
	p.subFailures.Add(ctx, 1)
	p.log.Error(ctx, "transfer subscription failed",
		"contract", run.binding.Address.Hex(),
		"error", err)
	if p.current.Load() == run {
		p.setStatus(false, "subscription failed: "+err.Error())
	}
}

func (p *TransferPipeline) handle(ctx context.Context, binding domain.Binding, l types.Log) {
	attrs := metric.WithAttributes(attribute.String("contract", binding.Address.Hex()))

	if l.Removed {
		p.reorged.Add(1)
		p.reorgs.Add(ctx, 1, attrs)
		p.log.Warn(ctx, "transfer log removed by reorg",
			"tx", l.TxHash.Hex(),
			"block", l.BlockNumber,
			"index", l.Index)
		return
	}

	if l.Address != binding.Address {
		p.reject(ctx, l, attrs, apperror.New(apperror.CodeInvalidTransferData,
			apperror.WithContextf("log emitted by %s, bound to %s", l.Address.Hex(), binding.Address.Hex())))
		return
	}

	raw, err := p.contract.ParseTransfer(l)
	if err != nil {
		p.reject(ctx, l, attrs, apperror.New(apperror.CodeInvalidTransferData, apperror.WithCause(err)))
		return
	}

	ev := domain.TransferEvent{
		BlockHeight: l.BlockNumber,
		From:        raw.From,
		To:          raw.To,
		Contract:    binding.Address,
		Symbol:      binding.Symbol,
		Amount:      asset.Normalize(raw.Value, binding.Decimals),
		TxHash:      l.TxHash,
		LogIndex:    l.Index,
	}

	p.published.Add(1)
	p.events.Add(ctx, 1, attrs)
	delivered := p.out.Publish(ctx, ev)
	p.log.Debug(ctx, "transfer",
		"from", ev.From.Hex(),
		"to", ev.To.Hex(),
		"amount", ev.Amount.String(),
		"block", ev.BlockHeight,
		"listeners", delivered)
}

func (p *TransferPipeline) reject(ctx context.Context, l types.Log, attrs metric.AddOption, err *apperror.AppError) {
	p.malformed.Add(1)
	p.rejected.Add(ctx, 1, attrs)
	p.log.Warn(ctx, "skipping malformed transfer log",
		append([]any{"tx", l.TxHash.Hex(), "index", l.Index}, err.LogArgs()...)...)
}

// Stop ends the active run loop, if any.
func (p *TransferPipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.run != nil {
		p.run.stop()
		p.run = nil
		p.current.Store(nil)
	}
	p.setStatus(false, "stopped")
}

// Binding returns the binding the active run loop serves.
func (p *TransferPipeline) Binding() (domain.Binding, bool) {
	run := p.current.Load()
	if run == nil {
		return domain.Binding{}, false
	}
	return run.binding, true
}

// Healthy reports whether a run loop is active and its subscription alive.
func (p *TransferPipeline) Healthy() bool {
	ok, _ := p.Health()
	return ok
}

// Health returns the health flag with the reason for being unhealthy.
func (p *TransferPipeline) Health() (bool, string) {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()
	return p.healthy, p.reason
}

// Stats returns the run loop counters.
func (p *TransferPipeline) Stats() PipelineStats {
	return PipelineStats{
		Published: p.published.Load(),
		Reorged:   p.reorged.Load(),
		Malformed: p.malformed.Load(),
	}
}

func (p *TransferPipeline) setStatus(healthy bool, reason string) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.healthy = healthy
	p.reason = reason
}
