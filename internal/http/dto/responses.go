package dto

type ErrorResponse struct {
	Error     string `json:"error"`
	OrderID   string `json:"order_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type AuthResponse struct {
	Token         string `json:"token"`
	WalletAddress string `json:"wallet_address"`
}

// DivergenceResponse reports a partial success: the ledger transition was
// finalized but the mirror is stale. The ledger state stands.
type DivergenceResponse struct {
	Error        string `json:"error"`
	OrderID      string `json:"order_id"`
	LedgerStatus string `json:"ledger_status"`
	Hint         string `json:"hint"`
}

type UploadResponse struct {
	IpfsHash string `json:"ipfs_hash"`
	URI      string `json:"uri"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
}
