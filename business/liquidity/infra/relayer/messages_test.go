package relayer

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/liquidity-bot/internal/apperror"
	"github.com/fd1az/liquidity-bot/internal/asset"
)

func TestEncodeERC20AssetData(t *testing.T) {
	got := EncodeERC20AssetData(asset.AddrZRXEthereum)
	want := "0xf47261b0000000000000000000000000e41d2489571d322189246dafa5ebde1f4699f498"
	if got != want {
		t.Errorf("EncodeERC20AssetData = %s, want %s", got, want)
	}
}

func TestDecodeERC20AssetData(t *testing.T) {
	addr := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	data := EncodeERC20AssetData(addr)

	decoded, err := DecodeERC20AssetData(data)
	if err != nil {
		t.Fatalf("DecodeERC20AssetData failed: %v", err)
	}
	if decoded != addr {
		t.Errorf("decoded address = %s, want %s", decoded.Hex(), addr.Hex())
	}
}

func TestDecodeERC20AssetData_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"wrong_proxy_id", "0xdeadbeef000000000000000000000000e41d2489571d322189246dafa5ebde1f4699f498"},
		{"truncated", "0xf47261b0e41d2489"},
		{"bad_hex", "0xf47261b0000000000000000000000000zzzz2489571d322189246dafa5ebde1f4699f498"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeERC20AssetData(tt.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if code := apperror.GetCode(err); code != apperror.CodeInvalidOrder {
				t.Errorf("error code = %s, want %s", code, apperror.CodeInvalidOrder)
			}
		})
	}
}

func TestParseOrderBatch(t *testing.T) {
	records := []OrderRecord{
		{
			Order: SignedOrder{
				MakerAssetAmount:      "2000000000000000000",
				TakerAssetAmount:      "1000000000000000000",
				ExpirationTimeSeconds: "33120938496",
			},
			MetaData: OrderMetadata{
				OrderHash:                         "0xaa01",
				RemainingFillableMakerAssetAmount: "1500000000000000000",
			},
		},
		{
			Order: SignedOrder{
				MakerAssetAmount:      "10",
				TakerAssetAmount:      "10",
				ExpirationTimeSeconds: "33120938496",
			},
			// No metadata: order is untouched, fully fillable.
		},
	}

	batch, err := ParseOrderBatch(records)
	if err != nil {
		t.Fatalf("ParseOrderBatch failed: %v", err)
	}

	if batch.Len() != 2 {
		t.Fatalf("batch length = %d, want 2", batch.Len())
	}

	wantMaker, _ := new(big.Int).SetString("2000000000000000000", 10)
	if batch.Orders[0].MakerAssetAmount.Cmp(wantMaker) != 0 {
		t.Errorf("maker amount = %s, want %s", batch.Orders[0].MakerAssetAmount, wantMaker)
	}

	wantFill, _ := new(big.Int).SetString("1500000000000000000", 10)
	if batch.RemainingFillableMakerAmounts[0].Cmp(wantFill) != 0 {
		t.Errorf("fillable amount = %s, want %s", batch.RemainingFillableMakerAmounts[0], wantFill)
	}

	// Missing metadata defaults to the full maker amount.
	if batch.RemainingFillableMakerAmounts[1].Cmp(big.NewInt(10)) != 0 {
		t.Errorf("default fillable = %s, want 10", batch.RemainingFillableMakerAmounts[1])
	}
}

func TestParseOrderBatch_MalformedAmounts(t *testing.T) {
	tests := []struct {
		name   string
		record OrderRecord
	}{
		{
			name: "malformed_maker_amount",
			record: OrderRecord{
				Order: SignedOrder{MakerAssetAmount: "not-a-number", TakerAssetAmount: "1"},
			},
		},
		{
			name: "malformed_taker_amount",
			record: OrderRecord{
				Order: SignedOrder{MakerAssetAmount: "1", TakerAssetAmount: "1.5"},
			},
		},
		{
			name: "malformed_remaining_amount",
			record: OrderRecord{
				Order:    SignedOrder{MakerAssetAmount: "1", TakerAssetAmount: "1"},
				MetaData: OrderMetadata{RemainingFillableMakerAssetAmount: "0x10"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOrderBatch([]OrderRecord{tt.record})
			if err == nil {
				t.Fatal("expected error")
			}
			if code := apperror.GetCode(err); code != apperror.CodeInvalidOrder {
				t.Errorf("error code = %s, want %s", code, apperror.CodeInvalidOrder)
			}
		})
	}
}

func TestParseOrderRecords(t *testing.T) {
	payload := json.RawMessage(`[
		{
			"order": {
				"makerAssetAmount": "100",
				"takerAssetAmount": "50",
				"expirationTimeSeconds": "33120938496"
			},
			"metaData": {
				"orderHash": "0xbb02",
				"remainingFillableMakerAssetAmount": "75"
			}
		}
	]`)

	records, err := ParseOrderRecords(payload)
	if err != nil {
		t.Fatalf("ParseOrderRecords failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0].MetaData.OrderHash != "0xbb02" {
		t.Errorf("order hash = %s, want 0xbb02", records[0].MetaData.OrderHash)
	}
}

func TestParseOrderRecords_MalformedPayload(t *testing.T) {
	_, err := ParseOrderRecords(json.RawMessage(`{"not":"an array"}`))
	if err == nil {
		t.Fatal("expected error")
	}
	if code := apperror.GetCode(err); code != apperror.CodeInvalidOrder {
		t.Errorf("error code = %s, want %s", code, apperror.CodeInvalidOrder)
	}
}

func TestSignedOrder_Expiration(t *testing.T) {
	o := SignedOrder{ExpirationTimeSeconds: "1700000000"}
	if got := o.Expiration().Unix(); got != 1700000000 {
		t.Errorf("Expiration = %d, want 1700000000", got)
	}

	// Garbage expirations are treated as already expired.
	o = SignedOrder{ExpirationTimeSeconds: "soon"}
	if !o.Expiration().IsZero() {
		t.Errorf("expected zero time for malformed expiration, got %v", o.Expiration())
	}
}
