package connection

import (
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// registryKey is the fixed durable-scope key under which the ordered
// connection list is serialized.
const registryKey = "connections"

// ConfirmFunc gates destructive registry operations. It receives a
// human-readable question and returns whether to proceed.
type ConfirmFunc func(message string) bool

// Registry is the durable, ordered collection of connection records keyed by
// unique name. Ordering is insertion order and survives reloads.
type Registry struct {
	kv      KV
	secrets SecretStore
}

// NewRegistry builds a registry over the durable KV scope. secrets may be
// nil, in which case credential secrets are stored inline.
func NewRegistry(kv KV, secrets SecretStore) *Registry {
	return &Registry{kv: kv, secrets: secrets}
}

func (r *Registry) load() ([]*Record, error) {
	data, found, err := r.kv.Get(registryKey)
	if err != nil {
		return nil, fmt.Errorf("registry: load failed: %w", err)
	}
	if !found {
		return nil, nil
	}
	var records []*Record
	if err = json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("registry: decode failed: %w", err)
	}
	return records, nil
}

// save persists the list, or clears the storage key entirely when the list
// is empty so a later load sees "no records" rather than an empty list.
func (r *Registry) save(records []*Record) error {
	if len(records) == 0 {
		return r.kv.Unset(registryKey)
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("registry: encode failed: %w", err)
	}
	return r.kv.Set(registryKey, data)
}

// Create validates the record and appends it to the registry. It fails with
// ErrNameConflict when a record with the same name already exists; the name
// match is case-sensitive and exact.
func (r *Registry) Create(rec *Record) error {
	if rec == nil {
		return fmt.Errorf("registry: record is nil")
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	records, err := r.load()
	if err != nil {
		return err
	}
	for _, existing := range records {
		if existing.Name == rec.Name {
			return fmt.Errorf("%w: %s", ErrNameConflict, rec.Name)
		}
	}
	stored := rec.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.externalizeSecret(stored)
	return r.save(append(records, stored))
}

// FindByName returns the record with the exact name, or nil when absent.
func (r *Registry) FindByName(name string) (*Record, error) {
	records, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.Name == name {
			out := rec.Clone()
			r.rehydrateSecret(out)
			return out, nil
		}
	}
	return nil, nil
}

// List returns all records in insertion order with secrets rehydrated.
func (r *Registry) List() ([]*Record, error) {
	records, err := r.load()
	if err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(records))
	for _, rec := range records {
		c := rec.Clone()
		r.rehydrateSecret(c)
		out = append(out, c)
	}
	return out, nil
}

// Update overwrites the stored record matching rec.Name in place. A missing
// record is not an error; callers that care should look it up first.
func (r *Registry) Update(rec *Record) error {
	if rec == nil {
		return fmt.Errorf("registry: record is nil")
	}
	records, err := r.load()
	if err != nil {
		return err
	}
	for i, existing := range records {
		if existing.Name == rec.Name {
			stored := rec.Clone()
			stored.CreatedAt = existing.CreatedAt
			r.externalizeSecret(stored)
			records[i] = stored
			return r.save(records)
		}
	}
	return nil
}

// DeleteOne removes the first record matching name after the confirmation
// gate approves. Deleting the last record clears the backing storage key.
func (r *Registry) DeleteOne(name string, confirm ConfirmFunc) error {
	if confirm != nil && !confirm(fmt.Sprintf("Delete connection %q?", name)) {
		return ErrDeclined
	}
	return r.remove(name)
}

// DeleteAll removes every record after a single confirmation. Removal reuses
// the same per-record path as DeleteOne, so a declined confirmation aborts
// the whole operation before any record is touched.
func (r *Registry) DeleteAll(confirm ConfirmFunc) error {
	records, err := r.load()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	if confirm != nil && !confirm(fmt.Sprintf("Delete all %d connections?", len(records))) {
		return ErrDeclined
	}
	for _, rec := range records {
		if err = r.remove(rec.Name); err != nil {
			return err
		}
	}
	return nil
}

// remove deletes the first record matching name and its external secret.
func (r *Registry) remove(name string) error {
	records, err := r.load()
	if err != nil {
		return err
	}
	for i, rec := range records {
		if rec.Name == name {
			if r.secrets != nil && rec.Secret == keyringPlaceholder {
				if errDelete := r.secrets.Delete(name); errDelete != nil {
					log.Warnf("failed to remove keyring secret for %q: %v", name, errDelete)
				}
			}
			return r.save(append(records[:i], records[i+1:]...))
		}
	}
	return nil
}

// externalizeSecret moves the record's secret into the secret store when one
// is configured, leaving a placeholder behind. Keyring failures fall back to
// inline storage.
func (r *Registry) externalizeSecret(rec *Record) {
	if r.secrets == nil || rec.Secret == "" || rec.Secret == keyringPlaceholder {
		return
	}
	if err := r.secrets.Store(rec.Name, rec.Secret); err != nil {
		log.Warnf("keyring unavailable, storing secret for %q inline: %v", rec.Name, err)
		return
	}
	rec.Secret = keyringPlaceholder
}

// rehydrateSecret resolves a keyring placeholder back into the real secret.
func (r *Registry) rehydrateSecret(rec *Record) {
	if r.secrets == nil || rec.Secret != keyringPlaceholder {
		return
	}
	secret, err := r.secrets.Lookup(rec.Name)
	if err != nil {
		log.Warnf("failed to read keyring secret for %q: %v", rec.Name, err)
		return
	}
	rec.Secret = secret
}
