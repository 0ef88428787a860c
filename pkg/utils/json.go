package utils

import (
	"encoding/json"
)

// MustMarshalJSON marshals v and panics on failure. Reserved for values
// built from our own structs, where a marshal error is a programming bug.
func MustMarshalJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic("failed to marshal JSON: " + err.Error())
	}
	return data
}

// UnmarshalJSON unmarshals json data into v
func UnmarshalJSON(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
