package settlement

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/cardhaus/cardhaus-backend/pkg/enums"
	pkgerrors "github.com/cardhaus/cardhaus-backend/pkg/errors"
)

// Stripe metadata hard limits. Encoding fails fast instead of letting the
// session create call reject the payload.
const (
	maxMetadataKeys     = 50
	maxMetadataValueLen = 500
)

// Metadata keys shared between checkout (encode) and the webhook pipeline
// (decode). The per-card tuple is card_<i>_{id,owner,stripe_account,amount}.
const (
	MetaOrderID         = "order_id"
	MetaShippingOrderID = "shipping_order_id"
	MetaShippingMethod  = "shipping_method"
	MetaSubtotal        = "subtotal"
	MetaShippingCents   = "shipping_cents"
	MetaPlatformFee     = "platform_fee"
)

// Instruction is one seller payout derived from a purchased card.
type Instruction struct {
	CardID          uuid.UUID
	SellerUserID    uuid.UUID
	StripeAccountID string
	AmountCents     int
}

// InstructionSet is the split-payment plan carried through Stripe metadata.
type InstructionSet struct {
	OrderID          uuid.UUID
	ShippingMethod   enums.ShippingMethod
	SubtotalCents    int
	ShippingCents    int
	PlatformFeeCents int
	Instructions     []Instruction

	// Malformed counts card tuples dropped during decode. They are skipped,
	// not fatal: the rest of the set still settles.
	Malformed int
}

// EncodeMetadata flattens the set into Stripe's string-only metadata format.
func (s InstructionSet) EncodeMetadata() (map[string]string, error) {
	if s.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	meta := map[string]string{
		MetaOrderID:        s.OrderID.String(),
		MetaShippingMethod: string(s.ShippingMethod),
		MetaSubtotal:       strconv.Itoa(s.SubtotalCents),
		MetaShippingCents:  strconv.Itoa(s.ShippingCents),
		MetaPlatformFee:    strconv.Itoa(s.PlatformFeeCents),
	}

	for i, inst := range s.Instructions {
		prefix := fmt.Sprintf("card_%d_", i)
		meta[prefix+"id"] = inst.CardID.String()
		meta[prefix+"owner"] = inst.SellerUserID.String()
		meta[prefix+"stripe_account"] = inst.StripeAccountID
		meta[prefix+"amount"] = strconv.Itoa(inst.AmountCents)
	}

	if len(meta) > maxMetadataKeys {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("split metadata needs %d keys, stripe allows %d", len(meta), maxMetadataKeys))
	}
	for key, value := range meta {
		if len(value) > maxMetadataValueLen {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("metadata value for %s exceeds %d chars", key, maxMetadataValueLen))
		}
	}
	return meta, nil
}

// DecodeMetadata rebuilds the instruction set from session metadata. Malformed
// card tuples are dropped and counted; only a missing or invalid order id is
// fatal.
func DecodeMetadata(meta map[string]string) (InstructionSet, error) {
	orderID, err := uuid.Parse(strings.TrimSpace(meta[MetaOrderID]))
	if err != nil {
		return InstructionSet{}, pkgerrors.New(pkgerrors.CodeValidation, "metadata missing order_id")
	}

	set := InstructionSet{
		OrderID:        orderID,
		ShippingMethod: enums.ShippingMethod(meta[MetaShippingMethod]),
	}
	set.SubtotalCents = parseCents(meta[MetaSubtotal])
	set.ShippingCents = parseCents(meta[MetaShippingCents])
	set.PlatformFeeCents = parseCents(meta[MetaPlatformFee])

	// Scan every index present rather than stopping at the first gap: a
	// corrupted key must not drop the intact tuples behind it.
	maxIndex := -1
	for key := range meta {
		if !strings.HasPrefix(key, "card_") || !strings.HasSuffix(key, "_id") {
			continue
		}
		index, err := strconv.Atoi(key[len("card_") : len(key)-len("_id")])
		if err != nil || index < 0 {
			continue
		}
		if index > maxIndex {
			maxIndex = index
		}
	}

	for i := 0; i <= maxIndex; i++ {
		prefix := fmt.Sprintf("card_%d_", i)
		rawID, ok := meta[prefix+"id"]
		if !ok {
			set.Malformed++
			continue
		}

		cardID, err := uuid.Parse(strings.TrimSpace(rawID))
		if err != nil {
			set.Malformed++
			continue
		}
		ownerID, err := uuid.Parse(strings.TrimSpace(meta[prefix+"owner"]))
		if err != nil {
			set.Malformed++
			continue
		}
		amount, err := strconv.Atoi(strings.TrimSpace(meta[prefix+"amount"]))
		if err != nil || amount < 0 {
			set.Malformed++
			continue
		}

		set.Instructions = append(set.Instructions, Instruction{
			CardID:          cardID,
			SellerUserID:    ownerID,
			StripeAccountID: strings.TrimSpace(meta[prefix+"stripe_account"]),
			AmountCents:     amount,
		})
	}

	return set, nil
}

func parseCents(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 0 {
		return 0
	}
	return value
}
