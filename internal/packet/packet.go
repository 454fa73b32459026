// Package packet is the wire vocabulary shared by the server transport and
// the client: operation codes, response statuses, frames, property bags and
// the account-info payload.
package packet

import (
	"encoding/json"
	"fmt"
)

// OpCode identifies a request type.
type OpCode uint16

const (
	OpHandshake OpCode = iota + 1
	OpSignIn
	OpSignUp
	OpSignOut
	OpGetPasswordResetCode
	OpChangePassword
	OpGetEmailConfirmationCode
	OpConfirmEmail
	OpGetAccountInfoByPeer
	OpGetAccountInfoByUsername
	OpBindExtraProperties
)

var opNames = map[OpCode]string{
	OpHandshake:                "Handshake",
	OpSignIn:                   "SignIn",
	OpSignUp:                   "SignUp",
	OpSignOut:                  "SignOut",
	OpGetPasswordResetCode:     "GetPasswordResetCode",
	OpChangePassword:           "ChangePassword",
	OpGetEmailConfirmationCode: "GetEmailConfirmationCode",
	OpConfirmEmail:             "ConfirmEmail",
	OpGetAccountInfoByPeer:     "GetAccountInfoByPeer",
	OpGetAccountInfoByUsername: "GetAccountInfoByUsername",
	OpBindExtraProperties:      "BindExtraProperties",
}

func (o OpCode) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("OpCode(%d)", uint16(o))
}

// Status is the outcome of a request.
type Status uint8

const (
	StatusSuccess Status = iota
	StatusFailed
	StatusInvalid
	StatusUnauthorized
	StatusNotFound
	StatusTokenExpired
	StatusError
)

var statusNames = [...]string{"Success", "Failed", "Invalid", "Unauthorized", "NotFound", "TokenExpired", "Error"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Frame is one message on a peer stream. Requests carry a client-chosen ID
// that the matching response echoes back.
type Frame struct {
	Op     OpCode `json:"op"`
	ID     uint32 `json:"id"`
	Status Status `json:"st,omitempty"`
	Body   []byte `json:"b,omitempty"`
}

func (f *Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

func DecodeFrame(data []byte) (*Frame, error) {
	f := &Frame{}
	if err := json.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return f, nil
}

// Reply builds the response frame for f.
func (f *Frame) Reply(status Status, body []byte) *Frame {
	return &Frame{Op: f.Op, ID: f.ID, Status: status, Body: body}
}
