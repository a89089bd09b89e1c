package solana

import "encoding/json"

// SignatureStatus is one entry of a getSignatureStatuses response.
type SignatureStatus struct {
	Slot               int64           `json:"slot"`
	Confirmations      *int64          `json:"confirmations"`
	ConfirmationStatus string          `json:"confirmationStatus"` // processed | confirmed | finalized
	Err                json.RawMessage `json:"err"`
}

// Failed reports whether the transaction errored on chain.
func (s *SignatureStatus) Failed() bool {
	return s != nil && len(s.Err) > 0 && string(s.Err) != "null"
}

// TransactionResult is a getTransaction response.
type TransactionResult struct {
	Slot      int64            `json:"slot"`
	BlockTime *int64           `json:"blockTime"`
	Meta      *TransactionMeta `json:"meta"`
}

// TransactionMeta carries balance movements for the transaction.
type TransactionMeta struct {
	Err          json.RawMessage `json:"err"`
	Fee          int64           `json:"fee"`
	PreBalances  []int64         `json:"preBalances"`
	PostBalances []int64         `json:"postBalances"`
}

// Failed reports whether the transaction errored on chain.
func (m *TransactionMeta) Failed() bool {
	return m != nil && len(m.Err) > 0 && string(m.Err) != "null"
}
