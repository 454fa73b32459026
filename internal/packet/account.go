package packet

import "encoding/json"

// AccountInfo is the account view sent to clients.
type AccountInfo struct {
	ID               string            `json:"id"`
	Username         string            `json:"username"`
	Email            string            `json:"email,omitempty"`
	IsGuest          bool              `json:"is_guest"`
	IsEmailConfirmed bool              `json:"is_email_confirmed"`
	Token            string            `json:"token,omitempty"`
	Properties       map[string]string `json:"properties,omitempty"`
}

func (a *AccountInfo) Encode() ([]byte, error) {
	return json.Marshal(a)
}

func DecodeAccountInfo(data []byte) (*AccountInfo, error) {
	a := &AccountInfo{}
	if err := json.Unmarshal(data, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Handshake carries an X25519 public key in either direction.
type Handshake struct {
	PublicKey []byte `json:"pk"`
}

func (h *Handshake) Encode() ([]byte, error) {
	return json.Marshal(h)
}

func DecodeHandshake(data []byte) (*Handshake, error) {
	h := &Handshake{}
	if err := json.Unmarshal(data, h); err != nil {
		return nil, err
	}
	return h, nil
}
