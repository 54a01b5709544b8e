package settlement

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardhaus/cardhaus-backend/pkg/enums"
)

func sampleSet(cardCount int) InstructionSet {
	set := InstructionSet{
		OrderID:          uuid.New(),
		ShippingMethod:   enums.ShippingMethodShipNow,
		SubtotalCents:    2000 * cardCount,
		ShippingCents:    350,
		PlatformFeeCents: 300 * cardCount,
	}
	for i := 0; i < cardCount; i++ {
		set.Instructions = append(set.Instructions, Instruction{
			CardID:          uuid.New(),
			SellerUserID:    uuid.New(),
			StripeAccountID: fmt.Sprintf("acct_%03d", i),
			AmountCents:     1700,
		})
	}
	return set
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	set := sampleSet(3)

	meta, err := set.EncodeMetadata()
	require.NoError(t, err)
	assert.Equal(t, set.OrderID.String(), meta[MetaOrderID])
	assert.Equal(t, "ship_now", meta[MetaShippingMethod])
	assert.Equal(t, "350", meta[MetaShippingCents])

	decoded, err := DecodeMetadata(meta)
	require.NoError(t, err)
	assert.Equal(t, set.OrderID, decoded.OrderID)
	assert.Equal(t, set.ShippingMethod, decoded.ShippingMethod)
	assert.Equal(t, set.SubtotalCents, decoded.SubtotalCents)
	assert.Equal(t, set.PlatformFeeCents, decoded.PlatformFeeCents)
	require.Len(t, decoded.Instructions, 3)
	assert.Equal(t, set.Instructions, decoded.Instructions)
	assert.Zero(t, decoded.Malformed)
}

func TestEncodeRejectsOversizedSets(t *testing.T) {
	// 5 base keys + 4 per card; 12 cards need 53 keys.
	set := sampleSet(12)
	_, err := set.EncodeMetadata()
	require.Error(t, err)

	set = sampleSet(11)
	_, err = set.EncodeMetadata()
	require.NoError(t, err)
}

func TestEncodeRequiresOrderID(t *testing.T) {
	set := sampleSet(1)
	set.OrderID = uuid.Nil
	_, err := set.EncodeMetadata()
	require.Error(t, err)
}

func TestDecodeSkipsMalformedTuples(t *testing.T) {
	set := sampleSet(2)
	meta, err := set.EncodeMetadata()
	require.NoError(t, err)

	meta["card_0_id"] = "not-a-uuid"

	decoded, err := DecodeMetadata(meta)
	require.NoError(t, err)
	require.Len(t, decoded.Instructions, 1)
	assert.Equal(t, 1, decoded.Malformed)
	assert.Equal(t, set.Instructions[1], decoded.Instructions[0])
}

func TestDecodeContinuesPastMissingTupleKey(t *testing.T) {
	set := sampleSet(3)
	meta, err := set.EncodeMetadata()
	require.NoError(t, err)

	// A corrupted key must not swallow the intact tuples behind it.
	delete(meta, "card_1_id")

	decoded, err := DecodeMetadata(meta)
	require.NoError(t, err)
	require.Len(t, decoded.Instructions, 2)
	assert.Equal(t, 1, decoded.Malformed)
	assert.Equal(t, set.Instructions[0], decoded.Instructions[0])
	assert.Equal(t, set.Instructions[2], decoded.Instructions[1])
}

func TestDecodeSkipsBadAmounts(t *testing.T) {
	set := sampleSet(2)
	meta, err := set.EncodeMetadata()
	require.NoError(t, err)

	meta["card_1_amount"] = "-50"

	decoded, err := DecodeMetadata(meta)
	require.NoError(t, err)
	require.Len(t, decoded.Instructions, 1)
	assert.Equal(t, 1, decoded.Malformed)
}

func TestDecodeMissingOrderIDFails(t *testing.T) {
	_, err := DecodeMetadata(map[string]string{MetaShippingMethod: "store"})
	require.Error(t, err)
}
