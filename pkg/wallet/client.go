// Package wallet reads the trading wallet's on-chain balances: POL for
// redemption gas and USDC.e for collateral. Bet positions are tracked in the
// ledger, not here.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

const (
	polygonUSDC        = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
	polygonCTFExchange = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
)

// Client fetches wallet balances over a Polygon RPC endpoint.
type Client struct {
	rpcURL string
	logger *zap.Logger
}

// Balances holds one on-chain balance snapshot.
type Balances struct {
	POL           *big.Int // native token, in wei
	USDC          *big.Int // in 6-decimal units
	USDCAllowance *big.Int // exchange spending allowance, 6-decimal units
}

// USDCFloat returns the USDC balance in whole dollars.
func (b *Balances) USDCFloat() float64 {
	v, _ := new(big.Float).Quo(new(big.Float).SetInt(b.USDC), big.NewFloat(1e6)).Float64()
	return v
}

// AllowanceFloat returns the exchange allowance in whole dollars.
func (b *Balances) AllowanceFloat() float64 {
	v, _ := new(big.Float).Quo(new(big.Float).SetInt(b.USDCAllowance), big.NewFloat(1e6)).Float64()
	return v
}

// POLFloat returns the native balance in whole tokens.
func (b *Balances) POLFloat() float64 {
	v, _ := new(big.Float).Quo(new(big.Float).SetInt(b.POL), big.NewFloat(1e18)).Float64()
	return v
}

// NewClient creates a wallet client.
func NewClient(rpcURL string, logger *zap.Logger) (*Client, error) {
	if rpcURL == "" {
		return nil, errors.New("rpcURL cannot be empty")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Client{rpcURL: rpcURL, logger: logger}, nil
}

// AddressFromKey derives the wallet address from a hex-encoded private key.
func AddressFromKey(privateKeyHex string) (common.Address, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("parse private key: %w", err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return common.Address{}, errors.New("error casting public key to ECDSA")
	}

	return crypto.PubkeyToAddress(*publicKey), nil
}

// GetBalances fetches a balance snapshot for the address.
func (c *Client) GetBalances(ctx context.Context, address common.Address) (*Balances, error) {
	client, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial RPC: %w", err)
	}
	defer client.Close()

	pol, err := client.BalanceAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("get POL balance: %w", err)
	}

	usdc, err := c.erc20Balance(ctx, client, address)
	if err != nil {
		return nil, fmt.Errorf("get USDC balance: %w", err)
	}

	allowance, err := c.erc20Allowance(ctx, client, address)
	if err != nil {
		return nil, fmt.Errorf("get USDC allowance: %w", err)
	}

	return &Balances{
		POL:           pol,
		USDC:          usdc,
		USDCAllowance: allowance,
	}, nil
}

func (c *Client) erc20Balance(
	ctx context.Context,
	client *ethclient.Client,
	owner common.Address,
) (*big.Int, error) {
	balanceOfABI := `[{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

	parsedABI, err := abi.JSON(strings.NewReader(balanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("parse ABI: %w", err)
	}

	data, err := parsedABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack ABI: %w", err)
	}

	tokenAddress := common.HexToAddress(polygonUSDC)
	msg := ethereum.CallMsg{
		To:   &tokenAddress,
		Data: data,
	}

	result, err := client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call contract: %w", err)
	}

	return new(big.Int).SetBytes(result), nil
}

func (c *Client) erc20Allowance(
	ctx context.Context,
	client *ethclient.Client,
	owner common.Address,
) (*big.Int, error) {
	allowanceABI := `[{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

	parsedABI, err := abi.JSON(strings.NewReader(allowanceABI))
	if err != nil {
		return nil, fmt.Errorf("parse ABI: %w", err)
	}

	data, err := parsedABI.Pack("allowance", owner, common.HexToAddress(polygonCTFExchange))
	if err != nil {
		return nil, fmt.Errorf("pack ABI: %w", err)
	}

	tokenAddress := common.HexToAddress(polygonUSDC)
	msg := ethereum.CallMsg{
		To:   &tokenAddress,
		Data: data,
	}

	result, err := client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call contract: %w", err)
	}

	return new(big.Int).SetBytes(result), nil
}
