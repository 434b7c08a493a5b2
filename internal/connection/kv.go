package connection

// KV is the minimal key/value contract both backing stores expose.
// Values are opaque serialized blobs; the registry and overlay layer their
// own JSON encoding on top.
type KV interface {
	// Get returns the value for key and whether it was present.
	Get(key string) ([]byte, bool, error)
	// Set writes the value for key, replacing any previous value.
	Set(key string, value []byte) error
	// Unset removes key entirely. Removing an absent key is not an error.
	Unset(key string) error
}
