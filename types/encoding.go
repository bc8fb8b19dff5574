package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }
func (h Hash) String() string    { return "0x" + hex.EncodeToString(h[:]) }
func (s Signature) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

// Short is the first four bytes of the address, for log lines.
func (a Address) Short() string { return hex.EncodeToString(a[:4]) }
func (h Hash) Short() string    { return hex.EncodeToString(h[:4]) }

func (a Address) IsZero() bool { return a == Address{} }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }
func (h Hash) MarshalText() ([]byte, error)    { return []byte(h.String()), nil }
func (s Signature) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	return decodeFixed(a[:], text, "address")
}

func (h *Hash) UnmarshalText(text []byte) error {
	return decodeFixed(h[:], text, "hash")
}

func (s *Signature) UnmarshalText(text []byte) error {
	return decodeFixed(s[:], text, "signature")
}

func ParseAddress(s string) (Address, error) {
	var a Address
	err := a.UnmarshalText([]byte(s))
	return a, err
}

func decodeFixed(dst []byte, text []byte, what string) error {
	raw := strings.TrimPrefix(string(text), "0x")
	// The genesis block writes bare "0" for its coinbase and parent.
	if raw == "0" || raw == "" {
		clear(dst)
		return nil
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", what, text, err)
	}
	if len(decoded) != len(dst) {
		return fmt.Errorf("%s must be %d bytes, got %d", what, len(dst), len(decoded))
	}
	copy(dst, decoded)
	return nil
}

// EncodeUnit serializes a transaction or block into its wire shape.
func EncodeUnit(u Unit) ([]byte, error) {
	return json.Marshal(u)
}

// DecodeUnit parses a wire message, dispatching on contents.type.
func DecodeUnit(data []byte) (Unit, error) {
	var envelope struct {
		Contents struct {
			Type TxType `json:"type"`
		} `json:"contents"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	switch t := envelope.Contents.Type; {
	case t == BlockType:
		var b Block
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("decode block: %w", err)
		}
		return &b, nil
	case t.IsTx():
		var tx Transaction
		if err := json.Unmarshal(data, &tx); err != nil {
			return nil, fmt.Errorf("decode transaction: %w", err)
		}
		return &tx, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidBlockType, t)
	}
}
