package settlement

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

const (
	// ctfContractAddress is the Conditional Tokens Framework contract on Polygon.
	ctfContractAddress = "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045"

	// collateralAddress is USDC.e on Polygon, the collateral token for
	// Polymarket conditions.
	collateralAddress = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"

	polygonChainID = 137

	// redeemGasLimit is a fixed estimate; redeemPositions for a binary
	// condition stays well under it.
	redeemGasLimit = uint64(200000)
)

// CTF wraps read and write calls against the Conditional Tokens Framework
// contract on a single RPC connection. One instance is bound to one endpoint
// for the duration of a bet check.
type CTF struct {
	eth    *ethclient.Client
	logger *zap.Logger
}

// NewCTF creates a CTF client over an established RPC connection.
func NewCTF(eth *ethclient.Client, logger *zap.Logger) (*CTF, error) {
	if eth == nil {
		return nil, errors.New("eth client cannot be nil")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &CTF{eth: eth, logger: logger}, nil
}

// BalanceOf returns the ERC1155 outcome token balance held by owner.
func (c *CTF) BalanceOf(ctx context.Context, owner common.Address, tokenID *big.Int) (balance *big.Int, err error) {
	balanceOfABI := `[{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"id","type":"uint256"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

	parsedABI, err := abi.JSON(strings.NewReader(balanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("parse ABI: %w", err)
	}

	data, err := parsedABI.Pack("balanceOf", owner, tokenID)
	if err != nil {
		return nil, fmt.Errorf("pack ABI: %w", err)
	}

	result, err := c.call(ctx, "balanceOf", data)
	if err != nil {
		return nil, err
	}

	balance = new(big.Int).SetBytes(result)
	return balance, nil
}

// PayoutDenominator returns the condition's payout denominator. A zero value
// means the oracle has not reported yet and the condition is unresolved.
func (c *CTF) PayoutDenominator(ctx context.Context, conditionID common.Hash) (denominator *big.Int, err error) {
	denominatorABI := `[{"constant":true,"inputs":[{"name":"","type":"bytes32"}],"name":"payoutDenominator","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

	parsedABI, err := abi.JSON(strings.NewReader(denominatorABI))
	if err != nil {
		return nil, fmt.Errorf("parse ABI: %w", err)
	}

	data, err := parsedABI.Pack("payoutDenominator", conditionID)
	if err != nil {
		return nil, fmt.Errorf("pack ABI: %w", err)
	}

	result, err := c.call(ctx, "payoutDenominator", data)
	if err != nil {
		return nil, err
	}

	denominator = new(big.Int).SetBytes(result)
	return denominator, nil
}

// RedeemPositions submits a redeemPositions transaction covering both outcome
// index sets of a binary condition and waits for it to be mined. Returns the
// transaction hash on success.
func (c *CTF) RedeemPositions(
	ctx context.Context,
	privateKey *ecdsa.PrivateKey,
	conditionID common.Hash,
	waitTimeout time.Duration,
) (txHash string, err error) {
	redeemABI := `[{
		"inputs": [
			{"name": "collateralToken", "type": "address"},
			{"name": "parentCollectionId", "type": "bytes32"},
			{"name": "conditionId", "type": "bytes32"},
			{"name": "indexSets", "type": "uint256[]"}
		],
		"name": "redeemPositions",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}]`

	parsedABI, err := abi.JSON(strings.NewReader(redeemABI))
	if err != nil {
		return "", fmt.Errorf("parse ABI: %w", err)
	}

	collateral := common.HexToAddress(collateralAddress)
	parentCollectionID := common.Hash{}
	indexSets := []*big.Int{big.NewInt(1), big.NewInt(2)}

	data, err := parsedABI.Pack("redeemPositions",
		collateral,
		parentCollectionID,
		conditionID,
		indexSets)
	if err != nil {
		return "", fmt.Errorf("pack call data: %w", err)
	}

	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	nonce, err := c.eth.PendingNonceAt(ctx, address)
	if err != nil {
		RedemptionTxTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("get nonce: %w", err)
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		RedemptionTxTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("suggest gas price: %w", err)
	}

	ctfAddress := common.HexToAddress(ctfContractAddress)
	tx := ethtypes.NewTransaction(
		nonce,
		ctfAddress,
		big.NewInt(0),
		redeemGasLimit,
		gasPrice,
		data,
	)

	chainID := big.NewInt(polygonChainID)
	signedTx, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(chainID), privateKey)
	if err != nil {
		RedemptionTxTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("sign tx: %w", err)
	}

	err = c.eth.SendTransaction(ctx, signedTx)
	if err != nil {
		RedemptionTxTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("send tx: %w", err)
	}

	c.logger.Info("redemption-tx-sent",
		zap.String("condition-id", conditionID.Hex()),
		zap.String("tx-hash", signedTx.Hash().Hex()))

	waitCtx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, c.eth, signedTx)
	if err != nil {
		RedemptionTxTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("wait for tx: %w", err)
	}

	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		RedemptionTxTotal.WithLabelValues("reverted").Inc()
		return "", errors.New("redemption transaction reverted")
	}

	RedemptionTxTotal.WithLabelValues("confirmed").Inc()
	RedemptionGasUsed.Observe(float64(receipt.GasUsed))

	c.logger.Info("redemption-confirmed",
		zap.String("tx-hash", receipt.TxHash.Hex()),
		zap.Uint64("gas-used", receipt.GasUsed))

	return receipt.TxHash.Hex(), nil
}

func (c *CTF) call(ctx context.Context, method string, data []byte) (result []byte, err error) {
	contract := common.HexToAddress(ctfContractAddress)
	msg := ethereum.CallMsg{
		To:   &contract,
		Data: data,
	}

	result, err = c.eth.CallContract(ctx, msg, nil)
	if err != nil {
		ContractCallsTotal.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	ContractCallsTotal.WithLabelValues(method, "ok").Inc()
	return result, nil
}

// ParseTokenID parses a CLOB token ID. Polymarket serves them as decimal
// strings but hex with a 0x prefix is accepted too.
func ParseTokenID(id string) (*big.Int, error) {
	if id == "" {
		return nil, errors.New("token ID cannot be empty")
	}

	if strings.HasPrefix(id, "0x") || strings.HasPrefix(id, "0X") {
		n, ok := new(big.Int).SetString(id[2:], 16)
		if !ok {
			return nil, fmt.Errorf("invalid hex token ID: %s", id)
		}
		return n, nil
	}

	n, ok := new(big.Int).SetString(id, 10)
	if !ok {
		return nil, fmt.Errorf("invalid token ID: %s", id)
	}

	return n, nil
}
