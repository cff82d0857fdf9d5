package service

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"payment-status-relay/internal/core/domain"

	"github.com/shopspring/decimal"
)

// cryptoAmountAliases lists the synonymous field names older provider
// versions use for the quoted crypto amount, in priority order.
var cryptoAmountAliases = []string{"crypto_amount", "payment", "amount"}

// NormalizeProviderStatus maps a raw CheckPayment response into the canonical
// StatusUpdate. Fields absent from the response stay nil ("no change") so a
// partial provider answer can never erase previously known good values.
func NormalizeProviderStatus(raw map[string]any) *domain.StatusUpdate {
	u := &domain.StatusUpdate{}
	if raw == nil {
		return u
	}

	u.Status = stringField(raw, "status")
	u.State = stringField(raw, "state")
	u.Confirmed = confirmedField(raw, "confirmed")
	u.ConfirmedTime = stringField(raw, "confirmed_time")
	u.CryptoAmount = decimalField(raw, cryptoAmountAliases...)
	u.PrintString = stringField(raw, "print_string")
	u.AmountExchange = decimalField(raw, "amount_exchange")
	u.NetworkProcessingFee = decimalField(raw, "network_processing_fee")
	u.LastTransactionTime = stringField(raw, "last_transaction_time")
	u.InvoiceDate = stringField(raw, "invoice_date")
	u.PayerID = stringField(raw, "payer_id")

	return u
}

// stringField returns the first present, non-empty value among keys.
func stringField(raw map[string]any, keys ...string) *string {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = strings.TrimSpace(t)
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(t)
		default:
			s = fmt.Sprintf("%v", t)
		}
		if s == "" {
			continue
		}
		return &s
	}
	return nil
}

// decimalField extracts a numeric value as a canonical decimal string.
// Non-numeric garbage is dropped rather than stored.
func decimalField(raw map[string]any, keys ...string) *string {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		var d decimal.Decimal
		var err error
		switch t := v.(type) {
		case string:
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			d, err = decimal.NewFromString(t)
		case float64:
			d = decimal.NewFromFloat(t)
		case int:
			d = decimal.NewFromInt(int64(t))
		case int64:
			d = decimal.NewFromInt(t)
		case json.Number:
			d, err = decimal.NewFromString(t.String())
		default:
			err = fmt.Errorf("unsupported numeric type %T", v)
		}
		if err != nil {
			continue
		}
		s := d.String()
		return &s
	}
	return nil
}

// confirmedField coerces the provider's confirmation flag to 0/1.
func confirmedField(raw map[string]any, key string) *int {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil
	}
	var confirmed int
	switch t := v.(type) {
	case bool:
		if t {
			confirmed = 1
		}
	case float64:
		if t != 0 {
			confirmed = 1
		}
	case int:
		if t != 0 {
			confirmed = 1
		}
	case int64:
		if t != 0 {
			confirmed = 1
		}
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return nil
		}
		if n != 0 {
			confirmed = 1
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "y":
			confirmed = 1
		case "0", "false", "no", "n", "":
			confirmed = 0
		default:
			return nil
		}
	default:
		return nil
	}
	return &confirmed
}
