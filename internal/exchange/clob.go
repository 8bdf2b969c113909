package exchange

import (
	"context"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	json "github.com/goccy/go-json"
	"github.com/polymarket/go-order-utils/pkg/builder"
	"github.com/polymarket/go-order-utils/pkg/model"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/pkg/types"
)

const zeroTaker = "0x0000000000000000000000000000000000000000"

// CLOBClient submits signed orders to the CLOB and reads midpoints.
type CLOBClient struct {
	baseURL       string
	creds         Credentials
	privateKey    *ecdsa.PrivateKey
	address       string // EOA address (signer)
	proxyAddress  string // proxy address (maker/funder) when set
	signatureType model.SignatureType
	orderBuilder  builder.ExchangeOrderBuilder
	httpClient    *http.Client
	logger        *zap.Logger
}

// CLOBConfig holds configuration for the CLOB client.
type CLOBConfig struct {
	BaseURL       string
	Credentials   Credentials
	PrivateKey    string
	ProxyAddress  string
	SignatureType int
	Timeout       time.Duration
	Logger        *zap.Logger
}

// NewCLOBClient creates a CLOB client from a hex private key.
func NewCLOBClient(cfg *CLOBConfig) (*CLOBClient, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	publicKey, _ := privateKey.Public().(*ecdsa.PublicKey)
	address := crypto.PubkeyToAddress(*publicKey).Hex()

	chainID := big.NewInt(137) // Polygon mainnet
	orderBuilder := builder.NewExchangeOrderBuilderImpl(chainID, nil)

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &CLOBClient{
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		creds:         cfg.Credentials,
		privateKey:    privateKey,
		address:       address,
		proxyAddress:  cfg.ProxyAddress,
		signatureType: model.SignatureType(cfg.SignatureType),
		orderBuilder:  orderBuilder,
		httpClient:    &http.Client{Timeout: timeout},
		logger:        cfg.Logger,
	}, nil
}

// Address returns the signer's EOA address.
func (c *CLOBClient) Address() string {
	return c.address
}

// signedOrderJSON is the wire format of a signed order.
type signedOrderJSON struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Side          string `json:"side"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

type orderResponse struct {
	OrderID string `json:"orderID"`
	Status  string `json:"status"`
	Price   string `json:"price"`
	Size    string `json:"size"`
}

// PlaceOrder submits a GTC buy order for the outcome token.
func (c *CLOBClient) PlaceOrder(ctx context.Context, tokenID string, price, size float64) (*Fill, error) {
	makerAddress := c.address
	if c.proxyAddress != "" {
		makerAddress = c.proxyAddress
	}

	orderData := &model.OrderData{
		Maker:         makerAddress,
		Taker:         zeroTaker,
		TokenId:       tokenID,
		MakerAmount:   usdToRawAmount(size),
		TakerAmount:   usdToRawAmount(size / price),
		Side:          model.BUY,
		FeeRateBps:    "0",
		Nonce:         "0",
		Signer:        c.address,
		Expiration:    "0",
		SignatureType: c.signatureType,
	}

	signedOrder, err := c.orderBuilder.BuildSignedOrder(c.privateKey, orderData, model.CTFExchange)
	if err != nil {
		OrdersPlacedTotal.WithLabelValues("build_error").Inc()
		return nil, fmt.Errorf("build order: %w", err)
	}

	start := time.Now()
	resp, err := c.submitOrder(ctx, signedOrder)
	OrderLatencySeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		OrdersPlacedTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	OrdersPlacedTotal.WithLabelValues("ok").Inc()

	filledPrice, _ := strconv.ParseFloat(resp.Price, 64)
	if filledPrice == 0 {
		filledPrice = price
	}
	filledSize, _ := strconv.ParseFloat(resp.Size, 64)
	if filledSize == 0 {
		filledSize = size / price
	}

	c.logger.Info("order-placed",
		zap.String("order-id", resp.OrderID),
		zap.String("token-id", tokenID),
		zap.Float64("price", filledPrice),
		zap.Float64("shares", filledSize))

	return &Fill{
		OrderID:      resp.OrderID,
		FilledShares: filledSize,
		FilledPrice:  filledPrice,
	}, nil
}

func (c *CLOBClient) submitOrder(ctx context.Context, order *model.SignedOrder) (*orderResponse, error) {
	sideStr := "BUY"
	if order.Side.Uint64() == uint64(model.SELL) {
		sideStr = "SELL"
	}

	jsonOrder := signedOrderJSON{
		Salt:          order.Salt.Int64(),
		Maker:         order.Maker.Hex(),
		Signer:        order.Signer.Hex(),
		Taker:         order.Taker.Hex(),
		TokenID:       order.TokenId.String(),
		MakerAmount:   order.MakerAmount.String(),
		TakerAmount:   order.TakerAmount.String(),
		Side:          sideStr,
		Expiration:    order.Expiration.String(),
		Nonce:         order.Nonce.String(),
		FeeRateBps:    order.FeeRateBps.String(),
		SignatureType: int(order.SignatureType.Int64()),
		Signature:     "0x" + common.Bytes2Hex(order.Signature),
	}

	// "owner" is the API key, not the maker address.
	orderRequest := map[string]interface{}{
		"order":     jsonOrder,
		"owner":     c.creds.APIKey,
		"orderType": "GTC",
	}

	reqBody, err := json.Marshal(orderRequest)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	requestPath := "/order"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+requestPath, strings.NewReader(string(reqBody)))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	signature, err := c.hmacSignature(timestamp, http.MethodPost, requestPath, string(reqBody))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("POLY_API_KEY", c.creds.APIKey)
	req.Header.Set("POLY_SIGNATURE", signature)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_PASSPHRASE", c.creds.Passphrase)
	req.Header.Set("POLY_ADDRESS", c.address)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var orderResp orderResponse
	err = json.Unmarshal(body, &orderResp)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return &orderResp, nil
}

// hmacSignature signs an L2 request. The secret is URL-safe base64.
func (c *CLOBClient) hmacSignature(timestamp, method, requestPath, body string) (string, error) {
	secretBytes, err := base64.URLEncoding.DecodeString(c.creds.Secret)
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}

	h := hmac.New(sha256.New, secretBytes)
	h.Write([]byte(timestamp + method + requestPath + body))

	return base64.URLEncoding.EncodeToString(h.Sum(nil)), nil
}

type midpointResponse struct {
	Mid string `json:"mid"`
}

// GetImpliedProbability returns the token's midpoint price in [0,1].
func (c *CLOBClient) GetImpliedProbability(ctx context.Context, tokenID string) (float64, error) {
	reqURL := fmt.Sprintf("%s/midpoint?token_id=%s", c.baseURL, url.QueryEscape(tokenID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		ProbabilityLookupsTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("fetch midpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		ProbabilityLookupsTotal.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var mid midpointResponse
	err = json.NewDecoder(resp.Body).Decode(&mid)
	if err != nil {
		ProbabilityLookupsTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("decode midpoint: %w", err)
	}

	prob, err := strconv.ParseFloat(mid.Mid, 64)
	if err != nil {
		ProbabilityLookupsTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("parse midpoint %q: %w", mid.Mid, err)
	}

	if prob < 0 || prob > 1 {
		ProbabilityLookupsTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("midpoint %f outside [0,1]", prob)
	}

	ProbabilityLookupsTotal.WithLabelValues("ok").Inc()

	return prob, nil
}

// MarketOdds returns both sides' midpoints for a candle market.
func (c *CLOBClient) MarketOdds(ctx context.Context, market *types.CandleMarket) (types.Odds, error) {
	upProb, err := c.GetImpliedProbability(ctx, market.UpTokenID)
	if err != nil {
		return types.Odds{}, fmt.Errorf("up token: %w", err)
	}

	downProb, err := c.GetImpliedProbability(ctx, market.DownTokenID)
	if err != nil {
		return types.Odds{}, fmt.Errorf("down token: %w", err)
	}

	return types.Odds{
		UpPrice:         upProb,
		DownPrice:       downProb,
		UpProbability:   upProb,
		DownProbability: downProb,
	}, nil
}

func usdToRawAmount(usd float64) string {
	return fmt.Sprintf("%d", int64(usd*1000000))
}
