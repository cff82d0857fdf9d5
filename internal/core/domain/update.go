package domain

// StatusUpdate is the canonical, normalized form of a provider status-check
// response. A nil field means "no change" and must leave the stored value
// untouched (coalesce, don't clobber). Confirmed is coerced to 0/1 and is
// only ever raised by the store, never lowered.
type StatusUpdate struct {
	Status               *string
	State                *string
	Confirmed            *int
	ConfirmedTime        *string
	CryptoAmount         *string
	PrintString          *string
	AmountExchange       *string
	NetworkProcessingFee *string
	LastTransactionTime  *string
	InvoiceDate          *string
	PayerID              *string
}

// IsEmpty reports whether the update carries no field at all.
func (u *StatusUpdate) IsEmpty() bool {
	return u == nil || (u.Status == nil && u.State == nil && u.Confirmed == nil &&
		u.ConfirmedTime == nil && u.CryptoAmount == nil && u.PrintString == nil &&
		u.AmountExchange == nil && u.NetworkProcessingFee == nil &&
		u.LastTransactionTime == nil && u.InvoiceDate == nil && u.PayerID == nil)
}
