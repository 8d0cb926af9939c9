package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client is the read-only RPC surface the snapshot provider needs.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
}

// Head pins the chain and block every snapshot read is made against.
type Head struct {
	ChainID *big.Int
	Block   *big.Int
}

// Dial connects to an RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// ResolveHead returns the chain id and the block to read at. A nil block
// resolves to the latest one; a block past the head is rejected.
func (c *Client) ResolveHead(ctx context.Context, block *big.Int) (Head, error) {
	chainID, err := c.ethClient.ChainID(ctx)
	if err != nil {
		return Head{}, fmt.Errorf("get chain id: %w", err)
	}
	latest, err := c.ethClient.BlockNumber(ctx)
	if err != nil {
		return Head{}, fmt.Errorf("latest block: %w", err)
	}
	head := new(big.Int).SetUint64(latest)
	if block == nil {
		return Head{ChainID: chainID, Block: head}, nil
	}
	if block.Cmp(head) > 0 {
		return Head{}, fmt.Errorf("block %s is ahead of chain head %d", block, latest)
	}
	return Head{ChainID: chainID, Block: new(big.Int).Set(block)}, nil
}

// CallContract performs an eth_call at blockNumber.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}
