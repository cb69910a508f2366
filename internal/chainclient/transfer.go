package chainclient

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/yeddevall/duckmon-agents-ai/internal/events"
)

// TransferSignature is the ERC-20-shaped Transfer event this fleet scans
// for whale activity. TransferTopic is its log topic0, derived through
// the same SHA-256 selector substitute documented in abi.go.
const TransferSignature = "Transfer(address,address,uint256)"

// TransferTopic returns the topic0 filter value for GetLogs.
func TransferTopic() string {
	return "0x" + selector(TransferSignature)
}

// DecodeTransferLog decodes a raw Transfer log into the fleet's Transfer
// event type. Topics[1] and Topics[2] carry the indexed from/to
// addresses (32-byte words, address right-aligned); Data carries the
// non-indexed uint256 value as a hex-encoded 32-byte word.
func DecodeTransferLog(l LogEntry) (events.Transfer, error) {
	if len(l.Topics) < 3 {
		return events.Transfer{}, fmt.Errorf("chainclient: transfer log has %d topics, want >= 3", len(l.Topics))
	}
	from, err := addressFromTopic(l.Topics[1])
	if err != nil {
		return events.Transfer{}, fmt.Errorf("chainclient: decode transfer from: %w", err)
	}
	to, err := addressFromTopic(l.Topics[2])
	if err != nil {
		return events.Transfer{}, fmt.Errorf("chainclient: decode transfer to: %w", err)
	}
	value, err := hexWordToBigInt(l.Data)
	if err != nil {
		return events.Transfer{}, fmt.Errorf("chainclient: decode transfer value: %w", err)
	}
	return events.Transfer{
		From:        string(from),
		To:          string(to),
		Value:       value.String(),
		BlockNumber: l.BlockNumber,
		TxHash:      string(l.TxHash),
	}, nil
}

func addressFromTopic(topic string) (Address, error) {
	clean := strings.TrimPrefix(topic, "0x")
	if len(clean) < 40 {
		return "", fmt.Errorf("topic %q too short for an address", topic)
	}
	return Address("0x" + clean[len(clean)-40:]), nil
}

func hexWordToBigInt(data string) (*big.Int, error) {
	clean := strings.TrimPrefix(data, "0x")
	if clean == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(clean, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex word %q", data)
	}
	return v, nil
}
