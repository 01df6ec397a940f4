package auth

import "encoding/json"

// Identity is the opaque user reference extracted from a verified credential
// or addressed by a delivery request. Callers may carry it as a JSON string
// or number; it is normalized to its string form on decode.
type Identity string

// UnmarshalJSON accepts both `"42"` and `42`. JSON null decodes to the empty
// identity, which required-field validation rejects downstream.
func (id *Identity) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = Identity(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = Identity(n.String())
	return nil
}

// String returns the normalized string form.
func (id Identity) String() string {
	return string(id)
}
