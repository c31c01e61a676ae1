package models

// Envelope is the encrypted form of a single data bag item field
type Envelope struct {
	IV            string `json:"iv"`
	EncryptedData string `json:"encrypted_data"`
	AuthTag       string `json:"auth_tag"`
	Version       int    `json:"version"`
	Cipher        string `json:"cipher"`
}

// Map returns the envelope as a generic JSON object
func (e Envelope) Map() map[string]any {
	return map[string]any{
		"iv":             e.IV,
		"encrypted_data": e.EncryptedData,
		"auth_tag":       e.AuthTag,
		"version":        e.Version,
		"cipher":         e.Cipher,
	}
}
