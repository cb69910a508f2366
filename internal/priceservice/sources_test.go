package priceservice

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeddevall/duckmon-agents-ai/internal/chainclient"
)

type fakeReadClient struct {
	chainclient.Stub
	quoteResult []any
	quoteErr    error
}

func (f *fakeReadClient) ReadContract(_ context.Context, _ chainclient.Address, _ string, _ ...any) ([]any, error) {
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return f.quoteResult, nil
}

func poolOf(addr chainclient.Address) func(string) chainclient.Address {
	return func(string) chainclient.Address { return addr }
}

func TestOnChainSource_DerivesPriceFromQuote(t *testing.T) {
	client := &fakeReadClient{quoteResult: []any{oneNativeUnit.Div(decimal.NewFromFloat(2)).String()}}
	src := NewOnChainSource(client, poolOf("0xpool"), "0xquote")

	sample, err := src.FetchPrice(context.Background(), "0xtoken")
	require.NoError(t, err)
	assert.InDelta(t, 2.0, sample.Price, 0.0001)
	assert.Equal(t, "0xtoken", sample.TokenAddress)
}

func TestOnChainSource_RejectsAnomalousLowPrice(t *testing.T) {
	client := &fakeReadClient{quoteResult: []any{oneNativeUnit.Mul(decimal.NewFromInt(1e9)).String()}}
	src := NewOnChainSource(client, poolOf("0xpool"), "0xquote")

	_, err := src.FetchPrice(context.Background(), "0xtoken")
	assert.ErrorContains(t, err, "anomalous")
}

func TestOnChainSource_RejectsAnomalousHighPrice(t *testing.T) {
	client := &fakeReadClient{quoteResult: []any{decimal.NewFromFloat(0.0001).String()}}
	src := NewOnChainSource(client, poolOf("0xpool"), "0xquote")

	_, err := src.FetchPrice(context.Background(), "0xtoken")
	assert.ErrorContains(t, err, "anomalous")
}

func TestOnChainSource_PropagatesReadError(t *testing.T) {
	client := &fakeReadClient{quoteErr: assert.AnError}
	src := NewOnChainSource(client, poolOf("0xpool"), "0xquote")

	_, err := src.FetchPrice(context.Background(), "0xtoken")
	assert.ErrorContains(t, err, "onchain quote read")
}

func TestOnChainSource_RejectsUndecodableResult(t *testing.T) {
	client := &fakeReadClient{quoteResult: []any{"0x"}}
	src := NewOnChainSource(client, poolOf("0xpool"), "0xquote")

	_, err := src.FetchPrice(context.Background(), "0xtoken")
	assert.ErrorContains(t, err, "decode onchain quote")
}
