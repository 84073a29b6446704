package api

import (
	"github.com/skelly-dev/sigreg/internal/registry"
)

type CreateSignatureRequest struct {
	TextSignature string `json:"text_signature"`
}

type SignatureResponse struct {
	ID             string `json:"id"`
	TextSignature  string `json:"text_signature"`
	HexSignature   string `json:"hex_signature"`
	BytesSignature string `json:"bytes_signature"`
}

type ListResponse struct {
	Count   int                 `json:"count"`
	Results []SignatureResponse `json:"results"`
}

type HealthResponse struct {
	Status     string `json:"status"`
	Signatures int    `json:"signatures"`
}

// FieldErrors maps an input field to its validation messages.
type FieldErrors map[string][]string

type ErrorResponse struct {
	Detail string `json:"detail"`
}

func newSignatureResponse(sig registry.Signature) SignatureResponse {
	return SignatureResponse{
		ID:             sig.ID,
		TextSignature:  sig.TextSignature,
		HexSignature:   sig.HexSignature(),
		BytesSignature: latin1(sig.BytesSignature()),
	}
}

// latin1 maps every byte to the code point of the same value.
func latin1(b []byte) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}
