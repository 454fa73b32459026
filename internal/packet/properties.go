package packet

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Well-known property bag keys.
const (
	KeyGuest      = "guest"
	KeyToken      = "token"
	KeyUsername   = "username"
	KeyPassword   = "password"
	KeyEmail      = "email"
	KeyDeviceID   = "device_id"
	KeyDeviceName = "device_name"
	KeyRemember   = "remember"
	KeyCode       = "code"
)

// Properties is a flat string key/value bag used for credential bundles and
// other small request payloads.
type Properties map[string]string

// Has reports whether key is present with a non-blank value.
func (p Properties) Has(key string) bool {
	return strings.TrimSpace(p[key]) != ""
}

func (p Properties) Get(key string) string {
	return p[key]
}

// Bool parses key as a boolean; missing or malformed values are false.
func (p Properties) Bool(key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(p[key]))
	return err == nil && v
}

func (p Properties) Encode() ([]byte, error) {
	return json.Marshal(p)
}

func DecodeProperties(data []byte) (Properties, error) {
	p := Properties{}
	if len(data) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return p, nil
}
