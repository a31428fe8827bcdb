package models

import "time"

// AuditEntry is one encrypted, append-only activity record. Actor and
// description use deterministic ciphertext so anomaly queries can count
// matching rows without decrypting the whole table; the free-form detail
// is probabilistically encrypted.
type AuditEntry struct {
	ID                int64
	Timestamp         time.Time
	ActorCipher       []byte // nil for unauthenticated attempts
	DescriptionCipher []byte
	DetailCipher      []byte
	Suspicious        bool
}

// DecryptedAuditEntry is an audit row after field decryption, as returned
// to permission-checked log viewers.
type DecryptedAuditEntry struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Actor       string    `json:"actor,omitempty"`
	Description string    `json:"description"`
	Detail      string    `json:"detail,omitempty"`
	Suspicious  bool      `json:"suspicious"`
}
