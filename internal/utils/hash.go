package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

func HashString(s string) string {
	hasher := sha256.New()
	hasher.Write([]byte(s))
	return hex.EncodeToString(hasher.Sum(nil))
}

// HashJSON hashes the JSON encoding of v. Map keys are sorted by encoding/json,
// so equal values hash equally.
func HashJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return HashString(string(data)), nil
}
