package connection

import (
	"encoding/json"
	"fmt"
)

// overlayKey is the fixed session-scope key holding the active connection.
const overlayKey = "active-connection"

// Overlay is the single-slot cache holding the connection currently in use.
// Its lifetime is independent of the registry: deleting a record from the
// registry does not clear the overlay, only an explicit Clear does.
type Overlay struct {
	kv KV
}

// NewOverlay builds an overlay over the session KV scope.
func NewOverlay(kv KV) *Overlay {
	return &Overlay{kv: kv}
}

// Get returns the active connection record, or nil when the slot is empty.
func (o *Overlay) Get() (*Record, error) {
	data, found, err := o.kv.Get(overlayKey)
	if err != nil {
		return nil, fmt.Errorf("overlay: load failed: %w", err)
	}
	if !found {
		return nil, nil
	}
	var rec Record
	if err = json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("overlay: decode failed: %w", err)
	}
	return &rec, nil
}

// Set stores the record as the active connection.
func (o *Overlay) Set(rec *Record) error {
	if rec == nil {
		return fmt.Errorf("overlay: record is nil")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("overlay: encode failed: %w", err)
	}
	return o.kv.Set(overlayKey, data)
}

// Clear empties the slot. Clearing an empty slot is a no-op.
func (o *Overlay) Clear() error {
	return o.kv.Unset(overlayKey)
}

// Resolve returns the authoritative record for name: the overlay's copy when
// its name matches exactly (it is presumed freshest), otherwise the registry
// entry. Returns nil when neither store knows the name.
func Resolve(overlay *Overlay, registry *Registry, name string) (*Record, error) {
	if overlay != nil {
		active, err := overlay.Get()
		if err != nil {
			return nil, err
		}
		if active != nil && active.Name == name {
			return active, nil
		}
	}
	if registry == nil {
		return nil, nil
	}
	return registry.FindByName(name)
}
