package chainclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Stub is an in-memory chain client for tests and for running the fleet
// against no real node. Grounded directly on the teacher's
// StubRPCClient: mutex-guarded maps, Add*/Set* fixtures, and a
// SetFailNext one-shot failure toggle.
type Stub struct {
	mu           sync.RWMutex
	blockNumber  uint64
	gasPriceGwei decimal.Decimal
	logs         []LogEntry
	contractCalls map[string][]any // method -> last args, for assertions
	receipts     map[TxHash]*Receipt
	failNext     bool
}

// NewStub creates a stub chain client with sane defaults.
func NewStub() *Stub {
	return &Stub{
		blockNumber:   1_000_000,
		gasPriceGwei:  decimal.NewFromFloat(20),
		contractCalls: make(map[string][]any),
		receipts:      make(map[TxHash]*Receipt),
	}
}

// SetBlockNumber sets the block number subsequent calls report.
func (s *Stub) SetBlockNumber(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blockNumber = n
}

// SetGasPriceGwei sets the gas price subsequent calls report.
func (s *Stub) SetGasPriceGwei(g decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gasPriceGwei = g
}

// AddLog registers a log entry for GetLogs to return.
func (s *Stub) AddLog(l LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, l)
}

// SetFailNext makes the next call fail.
func (s *Stub) SetFailNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = true
}

// LastCallArgs returns the args of the last WriteContract/ReadContract
// call to the given method, for test assertions.
func (s *Stub) LastCallArgs(method string) []any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contractCalls[method]
}

func (s *Stub) shouldFail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return true
	}
	return false
}

func (s *Stub) GetBlockNumber(_ context.Context) (uint64, error) {
	if s.shouldFail() {
		return 0, fmt.Errorf("stub: simulated rpc failure")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blockNumber, nil
}

func (s *Stub) GetGasPriceGwei(_ context.Context) (decimal.Decimal, error) {
	if s.shouldFail() {
		return decimal.Zero, fmt.Errorf("stub: simulated rpc failure")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gasPriceGwei, nil
}

func (s *Stub) GetLogs(_ context.Context, address Address, topic string, fromBlock, toBlock uint64) ([]LogEntry, error) {
	if s.shouldFail() {
		return nil, fmt.Errorf("stub: simulated rpc failure")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LogEntry, 0, len(s.logs))
	for _, l := range s.logs {
		if address != "" && l.Address != address {
			continue
		}
		if l.BlockNumber < fromBlock || l.BlockNumber > toBlock {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *Stub) ReadContract(_ context.Context, _ Address, method string, args ...any) ([]any, error) {
	if s.shouldFail() {
		return nil, fmt.Errorf("stub: simulated rpc failure")
	}
	s.mu.Lock()
	s.contractCalls[method] = args
	s.mu.Unlock()
	return []any{"0x"}, nil
}

func (s *Stub) WriteContract(_ context.Context, _ Address, method string, args ...any) (TxHash, error) {
	if s.shouldFail() {
		return "", fmt.Errorf("stub: simulated rpc failure")
	}
	s.mu.Lock()
	s.contractCalls[method] = args
	tx := TxHash(fmt.Sprintf("0xstub%d", time.Now().UnixNano()))
	s.receipts[tx] = &Receipt{TxHash: tx, BlockNumber: s.blockNumber, Status: true, GasUsed: 21000}
	s.mu.Unlock()
	return tx, nil
}

func (s *Stub) WaitForReceipt(_ context.Context, tx TxHash) (*Receipt, error) {
	if s.shouldFail() {
		return nil, fmt.Errorf("stub: simulated rpc failure")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.receipts[tx]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("stub: receipt for %s not found", tx)
}

func (s *Stub) Health(_ context.Context) error {
	if s.shouldFail() {
		return fmt.Errorf("stub: simulated rpc failure")
	}
	return nil
}
