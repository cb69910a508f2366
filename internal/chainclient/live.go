package chainclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	circuitBreakerThreshold = 10
	circuitBreakerCooldown  = 30 * time.Second
)

// Live connects to a real EVM JSON-RPC endpoint. Grounded on the
// teacher's LiveRPCClient: token-bucket rate limiting, exponential
// backoff retry, and a consecutive-error circuit breaker, retargeted
// from Solana's getAccountInfo/getProgramAccounts calls to the
// standard EVM eth_* namespace.
type Live struct {
	config     Config
	httpClient *http.Client

	limiter       chan struct{}
	limiterCancel context.CancelFunc

	nextID atomic.Int64

	consecutiveErrors atomic.Int64
	circuitOpen        atomic.Bool

	requestCount atomic.Int64
	errorCount   atomic.Int64
}

// NewLive creates a live EVM RPC client.
func NewLive(config Config) *Live {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RateLimitRPS == 0 {
		config.RateLimitRPS = 10
	}

	bucketSize := int(config.RateLimitRPS)
	if bucketSize < 1 {
		bucketSize = 1
	}
	limiter := make(chan struct{}, bucketSize)
	for i := 0; i < bucketSize; i++ {
		limiter <- struct{}{}
	}
	limiterCtx, cancel := context.WithCancel(context.Background())

	c := &Live{
		config:        config,
		httpClient:    &http.Client{Timeout: config.Timeout},
		limiter:       limiter,
		limiterCancel: cancel,
	}

	go func() {
		interval := time.Duration(float64(time.Second) / config.RateLimitRPS)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-limiterCtx.Done():
				return
			case <-ticker.C:
				select {
				case c.limiter <- struct{}{}:
				default:
				}
			}
		}
	}()

	return c
}

// Close stops the rate-limiter refill loop.
func (c *Live) Close() { c.limiterCancel() }

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Live) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if c.circuitOpen.Load() {
		return nil, fmt.Errorf("chainclient: circuit breaker open for %s", method)
	}

	select {
	case <-c.limiter:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	req := rpcRequest{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("chainclient: marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, "POST", c.config.Endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("chainclient: build request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("chainclient: %s http error: %w", method, err)
			c.recordError()
			continue
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("chainclient: %s read response: %w", method, err)
			c.recordError()
			continue
		}
		c.requestCount.Add(1)

		if resp.StatusCode == 429 {
			lastErr = fmt.Errorf("chainclient: %s rate limited", method)
			select {
			case <-time.After(time.Duration(2<<uint(attempt)) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		if resp.StatusCode != 200 {
			lastErr = fmt.Errorf("chainclient: %s http %d: %s", method, resp.StatusCode, string(respBody))
			c.recordError()
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("chainclient: %s unmarshal response: %w", method, err)
			c.recordError()
			continue
		}
		if rpcResp.Error != nil {
			c.resetErrors()
			return nil, fmt.Errorf("chainclient: %s rpc error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
		}

		c.resetErrors()
		return rpcResp.Result, nil
	}
	return nil, fmt.Errorf("chainclient: %s failed after %d attempts: %w", method, c.config.MaxRetries+1, lastErr)
}

func (c *Live) recordError() {
	c.errorCount.Add(1)
	count := c.consecutiveErrors.Add(1)
	if count >= circuitBreakerThreshold {
		if c.circuitOpen.CompareAndSwap(false, true) {
			log.Error().Int64("errors", count).Msg("chainclient: circuit breaker open")
			go func() {
				time.Sleep(circuitBreakerCooldown)
				c.circuitOpen.Store(false)
				c.consecutiveErrors.Store(0)
				log.Info().Msg("chainclient: circuit breaker reset")
			}()
		}
	}
}

func (c *Live) resetErrors() { c.consecutiveErrors.Store(0) }

func (c *Live) GetBlockNumber(ctx context.Context) (uint64, error) {
	raw, err := c.call(ctx, "eth_blockNumber", nil)
	if err != nil {
		return 0, err
	}
	var hexStr string
	if err := json.Unmarshal(raw, &hexStr); err != nil {
		return 0, fmt.Errorf("chainclient: unmarshal block number: %w", err)
	}
	return parseHexUint(hexStr)
}

func (c *Live) GetGasPriceGwei(ctx context.Context) (decimal.Decimal, error) {
	raw, err := c.call(ctx, "eth_gasPrice", nil)
	if err != nil {
		return decimal.Zero, err
	}
	var hexStr string
	if err := json.Unmarshal(raw, &hexStr); err != nil {
		return decimal.Zero, fmt.Errorf("chainclient: unmarshal gas price: %w", err)
	}
	wei, err := parseHexUint(hexStr)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(int64(wei)).Shift(-9), nil
}

func (c *Live) GetLogs(ctx context.Context, address Address, topic string, fromBlock, toBlock uint64) ([]LogEntry, error) {
	params := []any{map[string]any{
		"address":   address,
		"topics":    []string{topic},
		"fromBlock": fmt.Sprintf("0x%x", fromBlock),
		"toBlock":   fmt.Sprintf("0x%x", toBlock),
	}}
	raw, err := c.call(ctx, "eth_getLogs", params)
	if err != nil {
		return nil, err
	}
	var logs []struct {
		Address     Address  `json:"address"`
		Topics      []string `json:"topics"`
		Data        string   `json:"data"`
		BlockNumber string   `json:"blockNumber"`
		TxHash      TxHash   `json:"transactionHash"`
	}
	if err := json.Unmarshal(raw, &logs); err != nil {
		return nil, fmt.Errorf("chainclient: unmarshal logs: %w", err)
	}
	out := make([]LogEntry, 0, len(logs))
	for _, l := range logs {
		blockNum, _ := parseHexUint(l.BlockNumber)
		out = append(out, LogEntry{
			Address:     l.Address,
			Topics:      l.Topics,
			Data:        l.Data,
			BlockNumber: blockNum,
			TxHash:      l.TxHash,
		})
	}
	return out, nil
}

func (c *Live) ReadContract(ctx context.Context, address Address, method string, args ...any) ([]any, error) {
	data, err := encodeCallData(method, args...)
	if err != nil {
		return nil, err
	}
	params := []any{
		map[string]any{"to": address, "data": data},
		"latest",
	}
	raw, err := c.call(ctx, "eth_call", params)
	if err != nil {
		return nil, err
	}
	var hexResult string
	if err := json.Unmarshal(raw, &hexResult); err != nil {
		return nil, fmt.Errorf("chainclient: unmarshal call result: %w", err)
	}
	return []any{hexResult}, nil
}

func (c *Live) WriteContract(ctx context.Context, address Address, method string, args ...any) (TxHash, error) {
	if c.config.PrivateKeyHex == "" {
		return "", fmt.Errorf("chainclient: %s: no private key configured, client is read-only", method)
	}
	data, err := encodeCallData(method, args...)
	if err != nil {
		return "", err
	}
	params := []any{map[string]any{"to": address, "data": data}}
	raw, err := c.call(ctx, "eth_sendTransaction", params)
	if err != nil {
		return "", err
	}
	var txHash string
	if err := json.Unmarshal(raw, &txHash); err != nil {
		return "", fmt.Errorf("chainclient: unmarshal tx hash: %w", err)
	}
	return TxHash(txHash), nil
}

func (c *Live) WaitForReceipt(ctx context.Context, tx TxHash) (*Receipt, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			raw, err := c.call(ctx, "eth_getTransactionReceipt", []any{string(tx)})
			if err != nil {
				return nil, err
			}
			if string(raw) == "null" || len(raw) == 0 {
				continue
			}
			var receipt struct {
				BlockNumber string `json:"blockNumber"`
				Status      string `json:"status"`
				GasUsed     string `json:"gasUsed"`
			}
			if err := json.Unmarshal(raw, &receipt); err != nil {
				return nil, fmt.Errorf("chainclient: unmarshal receipt: %w", err)
			}
			blockNum, _ := parseHexUint(receipt.BlockNumber)
			gasUsed, _ := parseHexUint(receipt.GasUsed)
			return &Receipt{
				TxHash:      tx,
				BlockNumber: blockNum,
				Status:      receipt.Status == "0x1",
				GasUsed:     gasUsed,
			}, nil
		}
	}
}

func (c *Live) Health(ctx context.Context) error {
	_, err := c.GetBlockNumber(ctx)
	return err
}

func parseHexUint(s string) (uint64, error) {
	var v uint64
	_, err := fmt.Sscanf(s, "0x%x", &v)
	if err != nil {
		return 0, fmt.Errorf("chainclient: parse hex %q: %w", s, err)
	}
	return v, nil
}
