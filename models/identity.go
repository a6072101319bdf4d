package models

import "sort"

// Identity announces the encryption public key of a wallet address.
type Identity struct {
	Signature     string `json:"signature"`
	SenderAddress string `json:"sender"`
	PublicKey     []byte `json:"public_key"`
	BlockTime     int64  `json:"block_time"`
}

// IdentityRegistry maps wallet addresses to announced public keys.
// A registry is never mutated after construction.
type IdentityRegistry struct {
	keys map[string][]byte
}

// NewIdentityRegistry copies entries into a new registry.
func NewIdentityRegistry(entries map[string][]byte) IdentityRegistry {
	keys := make(map[string][]byte, len(entries))
	for address, key := range entries {
		keys[address] = append([]byte(nil), key...)
	}
	return IdentityRegistry{keys: keys}
}

// Lookup returns a copy of the public key announced by address.
func (r IdentityRegistry) Lookup(address string) ([]byte, bool) {
	key, ok := r.keys[address]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), key...), true
}

// Len returns the number of known addresses.
func (r IdentityRegistry) Len() int {
	return len(r.keys)
}

// Addresses returns the known addresses in lexical order.
func (r IdentityRegistry) Addresses() []string {
	out := make([]string, 0, len(r.keys))
	for address := range r.keys {
		out = append(out, address)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a copy of the underlying mapping.
func (r IdentityRegistry) Snapshot() map[string][]byte {
	out := make(map[string][]byte, len(r.keys))
	for address, key := range r.keys {
		out[address] = append([]byte(nil), key...)
	}
	return out
}
