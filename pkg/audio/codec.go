package audio

import "encoding/base64"

// The transport serialises messages as JSON text, so clip bytes are carried
// as standard base64. Both directions use the same alphabet as the server.

func EncodeTransmissible(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func DecodeTransmissible(text string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(text)
}
