package chain

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/lamassu-labs/mentowatch/am"
	"github.com/lamassu-labs/mentowatch/errors"
	"github.com/lamassu-labs/mentowatch/logger"
	"github.com/lamassu-labs/mentowatch/sym"
)

// Client wraps the Celo JSON-RPC connection with a local rate limit,
// per-call timeouts and retry on transient failures.
type Client struct {
	eth     *ethclient.Client
	limiter *rate.Limiter
	timeout time.Duration
	retries int
	baseDelay time.Duration
}

// Dial connects to the configured RPC endpoint and verifies the chain
// ID matches the configured network.
func Dial(ctx context.Context, cfg am.ChainConfig) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrRPCUnavailable, "dialing %s: %v", cfg.RPCURL, err)
	}

	c := &Client{
		eth:       eth,
		limiter:   rate.NewLimiter(rate.Limit(float64(cfg.MaxRequestsPerMinute)/60.0), cfg.MaxRequestsPerMinute/10+1),
		timeout:   time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		retries:   cfg.RetryAttempts,
		baseDelay: time.Duration(cfg.RetryBaseDelayMS) * time.Millisecond,
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	chainID, err := eth.ChainID(callCtx)
	if err != nil {
		eth.Close()
		return nil, errors.Wrapf(errors.ErrRPCUnavailable, "reading chain ID from %s: %v", cfg.RPCURL, err)
	}
	if chainID.Int64() != cfg.ChainID {
		eth.Close()
		return nil, errors.Newf("endpoint %s is chain %d, expected %d", cfg.RPCURL, chainID.Int64(), cfg.ChainID)
	}

	logger.Debugw(sym.Chain+" connected", logger.FieldEndpoint, cfg.RPCURL, "chain_id", chainID.Int64())
	return c, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.eth.Close()
}

// BlockNumber returns the latest block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var n uint64
	err := c.do(ctx, "eth_blockNumber", func(callCtx context.Context) error {
		var err error
		n, err = c.eth.BlockNumber(callCtx)
		return err
	})
	return n, err
}

// NativeBalance reads the native CELO balance of addr at the latest
// block.
func (c *Client) NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var bal *big.Int
	err := c.do(ctx, "eth_getBalance", func(callCtx context.Context) error {
		var err error
		bal, err = c.eth.BalanceAt(callCtx, addr, nil)
		return err
	})
	return bal, err
}

// do runs fn under the rate limiter and per-call timeout, retrying
// transient failures with exponential backoff. Reverts are never
// retried.
func (c *Client) do(ctx context.Context, method string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay << (attempt - 1)
			logger.Debugw(sym.Chain+" retrying", logger.FieldMethod, method, "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "waiting to retry")
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "waiting for rate limit")
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if isRevert(err) {
			return errors.Wrapf(errors.ErrCallReverted, "%s: %v", method, err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Wrapf(errors.ErrRPCUnavailable, "%s after %d attempts: %v", method, c.retries+1, lastErr)
}

func isRevert(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "execution reverted") || strings.Contains(msg, "revert")
}
