package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

// ABI of the swarm coordinator proxies. Only the three read methods the
// collector needs.
const coordinatorABI = `[
  {"inputs":[{"internalType":"address[]","name":"eoas","type":"address[]"}],
   "name":"getPeerId","outputs":[{"internalType":"string[][]","name":"","type":"string[][]"}],
   "stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"string","name":"peerId","type":"string"}],
   "name":"getTotalWins","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],
   "stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"string","name":"peerId","type":"string"}],
   "name":"getTotalRewards","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],
   "stateMutability":"view","type":"function"}
]`

const callTimeout = 10 * time.Second

// Client queries win/reward counters and account-to-peer mappings from the
// coordinator contracts. Values are summed across all configured contracts.
type Client struct {
	eth       *ethclient.Client
	contracts []common.Address
	abi       abi.ABI
	logger    zerolog.Logger
}

func New(rpcURL string, contracts []string, logger zerolog.Logger) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(coordinatorABI))
	if err != nil {
		return nil, fmt.Errorf("parse coordinator ABI: %w", err)
	}

	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger RPC %s: %w", rpcURL, err)
	}

	addrs := make([]common.Address, 0, len(contracts))
	for _, c := range contracts {
		if !common.IsHexAddress(c) {
			eth.Close()
			return nil, fmt.Errorf("invalid contract address %q", c)
		}
		addrs = append(addrs, common.HexToAddress(c))
	}

	return &Client{
		eth:       eth,
		contracts: addrs,
		abi:       parsed,
		logger:    logger.With().Str("component", "ledger").Logger(),
	}, nil
}

func (c *Client) Close() {
	c.eth.Close()
}

// PeerIDs resolves the peer identifiers registered for each account, across
// every configured contract. Individual call failures are logged and
// skipped; a partially resolved map is still useful.
func (c *Client) PeerIDs(ctx context.Context, accounts []string) (map[string][]string, error) {
	out := make(map[string][]string)
	var lastErr error
	failures := 0
	attempts := 0

	for _, contract := range c.contracts {
		for _, account := range accounts {
			if !common.IsHexAddress(account) {
				c.logger.Warn().Str("account", account).Msg("skipping invalid account address")
				continue
			}
			attempts++
			addr := common.HexToAddress(account)

			res, err := c.call(ctx, contract, "getPeerId", []common.Address{addr})
			if err != nil {
				failures++
				lastErr = err
				c.logger.Debug().Err(err).
					Str("contract", contract.Hex()).
					Str("account", account).
					Msg("getPeerId failed")
				continue
			}

			groups, ok := res[0].([][]string)
			if !ok || len(groups) == 0 {
				continue
			}
			key := strings.ToLower(addr.Hex())
			for _, pid := range groups[0] {
				if pid != "" {
					out[key] = append(out[key], pid)
				}
			}
		}
	}

	if attempts > 0 && failures == attempts {
		return nil, fmt.Errorf("resolve peer ids: all %d ledger calls failed: %w", attempts, lastErr)
	}
	return out, nil
}

// Wins returns the total wins for a peer summed across contracts. The error
// is non-nil only when every contract call failed.
func (c *Client) Wins(ctx context.Context, peerID string) (int64, error) {
	return c.sumUint(ctx, "getTotalWins", peerID)
}

// Rewards returns the total rewards for a peer summed across contracts.
// A successful zero is meaningful: it means the chain answered.
func (c *Client) Rewards(ctx context.Context, peerID string) (int64, error) {
	return c.sumUint(ctx, "getTotalRewards", peerID)
}

func (c *Client) sumUint(ctx context.Context, method, peerID string) (int64, error) {
	var (
		total    int64
		lastErr  error
		failures int
	)
	for _, contract := range c.contracts {
		res, err := c.call(ctx, contract, method, peerID)
		if err != nil {
			failures++
			lastErr = err
			continue
		}
		if v, ok := res[0].(*big.Int); ok {
			total += v.Int64()
		}
	}
	if len(c.contracts) > 0 && failures == len(c.contracts) {
		return 0, fmt.Errorf("%s(%s): %w", method, peerID, lastErr)
	}
	return total, nil
}

func (c *Client) call(ctx context.Context, contract common.Address, method string, args ...any) ([]any, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	raw, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	res, err := c.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return res, nil
}
