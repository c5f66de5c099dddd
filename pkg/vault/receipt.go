package vault

import "fmt"

// Receipt is the durable record of a stored blob. Every field is needed
// to retrieve and decrypt later. The vault never persists receipts
// itself; the CLI and HTTP server keep theirs in a local receipt store.
type Receipt struct {
	CID              string `json:"cid"`
	Filename         string `json:"filename"`
	Size             int64  `json:"size"`
	EncryptedSize    int64  `json:"encrypted_size"`
	Salt             string `json:"salt"`
	OriginalHash     string `json:"original_hash"`
	EncryptionMethod string `json:"encryption_method"`
}

// Validate checks that the receipt carries everything retrieval needs.
func (r *Receipt) Validate() error {
	if r.CID == "" {
		return fmt.Errorf("receipt missing cid")
	}
	if r.Salt == "" {
		return fmt.Errorf("receipt missing salt")
	}
	if r.OriginalHash == "" {
		return fmt.Errorf("receipt missing original hash")
	}
	return nil
}
