// Package relayer implements the OrderSource interface over a 0x SRA relayer.
package relayer

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/liquidity-bot/business/liquidity/domain"
	"github.com/fd1az/liquidity-bot/internal/apperror"
)

// ERC20 asset data is the 4-byte proxy id followed by the token address
// left-padded to 32 bytes.
const (
	erc20ProxyID      = "0xf47261b0"
	erc20AssetDataLen = 2 + 8 + 64 // "0x" + proxy id + padded address
)

// EncodeERC20AssetData returns the SRA asset data string for an ERC20 token.
func EncodeERC20AssetData(addr common.Address) string {
	return erc20ProxyID + "000000000000000000000000" + hex.EncodeToString(addr.Bytes())
}

// DecodeERC20AssetData extracts the token address from ERC20 asset data.
func DecodeERC20AssetData(data string) (common.Address, error) {
	if len(data) != erc20AssetDataLen || !strings.HasPrefix(data, erc20ProxyID) {
		return common.Address{}, apperror.New(apperror.CodeInvalidOrder,
			apperror.WithContext(fmt.Sprintf("not ERC20 asset data: %q", data)))
	}
	raw, err := hex.DecodeString(data[len(erc20ProxyID):])
	if err != nil {
		return common.Address{}, apperror.New(apperror.CodeInvalidOrder,
			apperror.WithCause(err),
			apperror.WithContext("malformed asset data hex"))
	}
	return common.BytesToAddress(raw), nil
}

// SignedOrder is a 0x order as it appears on the wire. All amounts are
// base-unit integers encoded as decimal strings.
type SignedOrder struct {
	MakerAddress          string `json:"makerAddress"`
	TakerAddress          string `json:"takerAddress"`
	FeeRecipientAddress   string `json:"feeRecipientAddress"`
	SenderAddress         string `json:"senderAddress"`
	MakerAssetAmount      string `json:"makerAssetAmount"`
	TakerAssetAmount      string `json:"takerAssetAmount"`
	MakerFee              string `json:"makerFee"`
	TakerFee              string `json:"takerFee"`
	ExpirationTimeSeconds string `json:"expirationTimeSeconds"`
	Salt                  string `json:"salt"`
	MakerAssetData        string `json:"makerAssetData"`
	TakerAssetData        string `json:"takerAssetData"`
	ExchangeAddress       string `json:"exchangeAddress"`
	Signature             string `json:"signature"`
}

// Expiration returns the order expiration as time.Time. Orders with an
// unparseable expiration are treated as already expired.
func (o *SignedOrder) Expiration() time.Time {
	secs, ok := new(big.Int).SetString(o.ExpirationTimeSeconds, 10)
	if !ok || !secs.IsInt64() {
		return time.Time{}
	}
	return time.Unix(secs.Int64(), 0)
}

// OrderMetadata carries relayer-side order state.
type OrderMetadata struct {
	OrderHash                         string `json:"orderHash"`
	RemainingFillableMakerAssetAmount string `json:"remainingFillableMakerAssetAmount"`
	RemainingFillableTakerAssetAmount string `json:"remainingFillableTakerAssetAmount"`
}

// OrderRecord pairs an order with its relayer metadata.
type OrderRecord struct {
	Order    SignedOrder   `json:"order"`
	MetaData OrderMetadata `json:"metaData"`
}

// PaginatedRecords is the SRA pagination envelope.
type PaginatedRecords struct {
	Total   int           `json:"total"`
	Page    int           `json:"page"`
	PerPage int           `json:"perPage"`
	Records []OrderRecord `json:"records"`
}

// OrderbookResponse is the GET /orderbook response. Asks are orders selling
// the base asset, which is the side a buyer consumes.
type OrderbookResponse struct {
	Bids PaginatedRecords `json:"bids"`
	Asks PaginatedRecords `json:"asks"`
}

// WebSocket messages for the SRA orders channel.

// WSRequest is an orders channel subscription request.
type WSRequest struct {
	Type      string           `json:"type"`
	Channel   string           `json:"channel"`
	RequestID int64            `json:"requestId"`
	Payload   WSRequestPayload `json:"payload"`
}

// WSRequestPayload filters the subscription by asset data.
type WSRequestPayload struct {
	MakerAssetData string `json:"makerAssetData,omitempty"`
	TakerAssetData string `json:"takerAssetData,omitempty"`
}

// WSMessage is an incoming orders channel message.
type WSMessage struct {
	Type      string          `json:"type"`
	Channel   string          `json:"channel"`
	RequestID int64           `json:"requestId"`
	Payload   json.RawMessage `json:"payload"`
}

// Message and channel identifiers on the orders channel.
const (
	ChannelOrders = "orders"
	TypeSubscribe = "subscribe"
	TypeUpdate    = "update"
)

// ParseOrderRecords decodes an update payload into order records.
func ParseOrderRecords(payload json.RawMessage) ([]OrderRecord, error) {
	var records []OrderRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, apperror.New(apperror.CodeInvalidOrder,
			apperror.WithCause(err),
			apperror.WithContext("malformed order update payload"))
	}
	return records, nil
}

// parseWireAmount parses a decimal string amount from the wire.
func parseWireAmount(field, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, apperror.New(apperror.CodeInvalidOrder,
			apperror.WithContext(fmt.Sprintf("%s is not a decimal integer: %q", field, s)))
	}
	return v, nil
}

// ParseOrderBatch converts wire records into a domain order batch. Orders
// keep their wire positions so the fillable amounts stay aligned.
func ParseOrderBatch(records []OrderRecord) (domain.OrderBatch, error) {
	orders := make([]domain.Order, 0, len(records))
	fillable := make([]*big.Int, 0, len(records))

	for i, rec := range records {
		maker, err := parseWireAmount("makerAssetAmount", rec.Order.MakerAssetAmount)
		if err != nil {
			return domain.OrderBatch{}, wrapRecordErr(err, i)
		}
		taker, err := parseWireAmount("takerAssetAmount", rec.Order.TakerAssetAmount)
		if err != nil {
			return domain.OrderBatch{}, wrapRecordErr(err, i)
		}

		// Relayers omit the metadata for freshly posted orders. A missing
		// remaining amount means the order is untouched.
		remaining := rec.MetaData.RemainingFillableMakerAssetAmount
		var fill *big.Int
		if remaining == "" {
			fill = new(big.Int).Set(maker)
		} else {
			fill, err = parseWireAmount("remainingFillableMakerAssetAmount", remaining)
			if err != nil {
				return domain.OrderBatch{}, wrapRecordErr(err, i)
			}
		}

		orders = append(orders, domain.NewOrder(maker, taker))
		fillable = append(fillable, fill)
	}

	return domain.OrderBatch{
		Orders:                        orders,
		RemainingFillableMakerAmounts: fillable,
	}, nil
}

func wrapRecordErr(err error, index int) error {
	return apperror.Wrap(err, apperror.CodeInvalidOrder,
		fmt.Sprintf("order record %d", index))
}
