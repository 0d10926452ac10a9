package models

// EncryptedPayload is the wire/blob shape of an encrypted document. It is not
// persisted as a row; it travels alongside the ciphertext wherever the blob
// goes. Nonce is unique per encryption call and never reused under the same
// data key.
type EncryptedPayload struct {
	Ciphertext       []byte `json:"ciphertext"`
	Nonce            []byte `json:"nonce"`
	AuthTag          []byte `json:"auth_tag"`
	OriginalFilename string `json:"original_filename"`
	TenantID         string `json:"tenant_id"`
}
