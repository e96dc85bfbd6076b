package vault

import (
	"encoding/json"
	"time"
)

// Record is one encrypted vault row. Payload is opaque ciphertext sealed
// with the working key and Nonce; the vault owns it exclusively.
type Record struct {
	SiteID    string
	Nonce     []byte
	Payload   []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RecordInfo is the metadata-only view used by listings; no ciphertext and
// certainly no plaintext.
type RecordInfo struct {
	SiteID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClearRecord is a decrypted credential/memo in wipeable buffers. Callers
// receive it from Get and must wipe it when their scope ends; WithRecord
// does that on every exit path.
type ClearRecord struct {
	SiteID   string
	Username []byte
	Password []byte
	Memo     []byte
}

// Wipe overwrites the secret fields with zeros. Safe to call repeatedly.
func (r *ClearRecord) Wipe() {
	wipe(r.Username)
	wipe(r.Password)
	wipe(r.Memo)
	r.Username, r.Password, r.Memo = nil, nil, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// payload is the serialized plaintext shape inside Record.Payload.
type payload struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Memo     string `json:"memo,omitempty"`
}

// encodePayload serializes a ClearRecord. The returned buffer is plaintext;
// the caller seals it immediately and wipes it afterwards.
func encodePayload(r *ClearRecord) ([]byte, error) {
	return json.Marshal(payload{
		Username: string(r.Username),
		Password: string(r.Password),
		Memo:     string(r.Memo),
	})
}

// decodePayload parses decrypted plaintext into a fresh ClearRecord.
func decodePayload(siteID string, plaintext []byte) (*ClearRecord, error) {
	var p payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return nil, err
	}
	return &ClearRecord{
		SiteID:   siteID,
		Username: []byte(p.Username),
		Password: []byte(p.Password),
		Memo:     []byte(p.Memo),
	}, nil
}
