// Package paylink signs and verifies customer payment links.
//
// A link carries the invoice id and a keyed BLAKE2b-256 MAC of the invoice
// number. Invoice numbers contain a random suffix, but the MAC is what makes
// links unforgeable.
package paylink

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Signer produces and checks payment link tokens.
type Signer struct {
	key     []byte
	baseURL string
}

// NewSigner derives a MAC key from secret. Secrets longer than the BLAKE2b
// key limit are hashed down to 64 bytes.
func NewSigner(secret, baseURL string) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("payment link secret is empty")
	}
	key := []byte(secret)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	return &Signer{key: key, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Token returns the hex MAC of invoiceNumber.
func (s *Signer) Token(invoiceNumber string) string {
	h, err := blake2b.New256(s.key)
	if err != nil {
		// Key length is bounded in NewSigner.
		panic(err)
	}
	h.Write([]byte(invoiceNumber))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks token against invoiceNumber in constant time.
func (s *Signer) Verify(invoiceNumber, token string) bool {
	want := s.Token(invoiceNumber)
	return subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(token))) == 1
}

// Link builds the public payment URL for an invoice.
func (s *Signer) Link(invoiceID int64, invoiceNumber string) string {
	return fmt.Sprintf("%s/api/v1/pay/%d?token=%s", s.baseURL, invoiceID, url.QueryEscape(s.Token(invoiceNumber)))
}
