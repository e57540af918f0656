package pflock

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// The codecs below serialize the protected value only; lock state is never
// encoded. Decoding goes into a fresh T first and replaces the value under
// the write lock only when decoding succeeded, so a malformed input leaves
// both the value and the lock untouched.

// MarshalJSON implements the json.Marshaler interface.
func (g *Guarded[T]) MarshalJSON() ([]byte, error) {
	g.lock.RLock()
	defer g.lock.RUnlock()
	b, err := json.Marshal(&g.data)
	if err != nil {
		return nil, fmt.Errorf("pflock: marshal value: %w", err)
	}
	return b, nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (g *Guarded[T]) UnmarshalJSON(b []byte) error {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("pflock: unmarshal value: %w", err)
	}
	g.store(v)
	return nil
}

// MarshalCBOR implements the cbor.Marshaler interface.
func (g *Guarded[T]) MarshalCBOR() ([]byte, error) {
	g.lock.RLock()
	defer g.lock.RUnlock()
	b, err := cbor.Marshal(&g.data)
	if err != nil {
		return nil, fmt.Errorf("pflock: marshal value: %w", err)
	}
	return b, nil
}

// UnmarshalCBOR implements the cbor.Unmarshaler interface.
func (g *Guarded[T]) UnmarshalCBOR(b []byte) error {
	var v T
	if err := cbor.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("pflock: unmarshal value: %w", err)
	}
	g.store(v)
	return nil
}

func (g *Guarded[T]) store(v T) {
	g.lock.Lock()
	g.data = v
	g.lock.Unlock()
}
