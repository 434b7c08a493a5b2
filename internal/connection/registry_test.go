package connection

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, KV) {
	t.Helper()
	kv := NewFileKV(filepath.Join(t.TempDir(), "registry.json"))
	return NewRegistry(kv, nil), kv
}

func passwordRecord(name string) *Record {
	return &Record{
		Name:        name,
		EndpointURL: "https://org.example.com",
		LoginType:   LoginPassword,
		Principal:   "u",
		Secret:      "p",
	}
}

func confirmYes(string) bool { return true }

func confirmNo(string) bool { return false }

func TestRegistryCreateAndFind(t *testing.T) {
	reg, _ := newTestRegistry(t)

	require.NoError(t, reg.Create(passwordRecord("dev")))

	rec, err := reg.FindByName("dev")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "dev", rec.Name)
	assert.Equal(t, LoginPassword, rec.LoginType)
	assert.False(t, rec.CreatedAt.IsZero())

	missing, err := reg.FindByName("prod")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRegistryCreateNameConflict(t *testing.T) {
	reg, _ := newTestRegistry(t)

	first := passwordRecord("dev")
	require.NoError(t, reg.Create(first))

	stored, err := reg.FindByName("dev")
	require.NoError(t, err)
	stored.AccessToken = "tok"
	require.NoError(t, reg.Update(stored))

	err = reg.Create(passwordRecord("dev"))
	require.ErrorIs(t, err, ErrNameConflict)

	// The existing record's token fields are untouched.
	after, err := reg.FindByName("dev")
	require.NoError(t, err)
	assert.Equal(t, "tok", after.AccessToken)
}

func TestRegistryNameMatchIsCaseSensitive(t *testing.T) {
	reg, _ := newTestRegistry(t)

	require.NoError(t, reg.Create(passwordRecord("Dev")))
	require.NoError(t, reg.Create(passwordRecord("dev")))

	records, err := reg.List()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestRegistryRejectsReservedNames(t *testing.T) {
	reg, kv := newTestRegistry(t)

	err := reg.Create(passwordRecord("connections"))
	require.ErrorIs(t, err, ErrReservedName)

	// No registry mutation happened.
	_, found, err := kv.Get(registryKey)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRegistryValidateSchemeFields(t *testing.T) {
	reg, _ := newTestRegistry(t)

	rec := passwordRecord("dev")
	rec.Secret = ""
	require.Error(t, reg.Create(rec))

	clientRec := &Record{
		Name:        "app",
		EndpointURL: "https://org.example.com",
		LoginType:   LoginClientCredential,
		Principal:   "client-id",
		Secret:      "client-secret",
	}
	// Tenant id missing: the scheme-dependent set must be complete.
	require.Error(t, reg.Create(clientRec))
	clientRec.TenantID = "tenant"
	require.NoError(t, reg.Create(clientRec))
}

func TestRegistryOrderingPreserved(t *testing.T) {
	reg, _ := newTestRegistry(t)

	for _, name := range []string{"one", "two", "three"} {
		require.NoError(t, reg.Create(passwordRecord(name)))
	}

	records, err := reg.List()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "one", records[0].Name)
	assert.Equal(t, "two", records[1].Name)
	assert.Equal(t, "three", records[2].Name)
}

func TestRegistryDeleteOneRequiresConfirmation(t *testing.T) {
	reg, _ := newTestRegistry(t)
	require.NoError(t, reg.Create(passwordRecord("dev")))

	err := reg.DeleteOne("dev", confirmNo)
	require.ErrorIs(t, err, ErrDeclined)

	rec, err := reg.FindByName("dev")
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestRegistryDeleteLastRecordClearsStorageKey(t *testing.T) {
	reg, kv := newTestRegistry(t)
	require.NoError(t, reg.Create(passwordRecord("dev")))

	require.NoError(t, reg.DeleteOne("dev", confirmYes))

	// The backing key is absent, not an empty list.
	_, found, err := kv.Get(registryKey)
	require.NoError(t, err)
	assert.False(t, found)

	records, err := reg.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRegistryDeleteAll(t *testing.T) {
	reg, kv := newTestRegistry(t)
	for _, name := range []string{"one", "two", "three"} {
		require.NoError(t, reg.Create(passwordRecord(name)))
	}

	// Declined confirmation aborts before any record is removed.
	require.ErrorIs(t, reg.DeleteAll(confirmNo), ErrDeclined)
	records, err := reg.List()
	require.NoError(t, err)
	assert.Len(t, records, 3)

	require.NoError(t, reg.DeleteAll(confirmYes))
	_, found, err := kv.Get(registryKey)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBoltKVRoundTrip(t *testing.T) {
	kv := NewBoltKV(filepath.Join(t.TempDir(), "state.db"))

	_, found, err := kv.Get("missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, kv.Set("key", []byte(`{"a":1}`)))
	value, found, err := kv.Get("key")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"a":1}`, string(value))

	require.NoError(t, kv.Unset("key"))
	_, found, err = kv.Get("key")
	require.NoError(t, err)
	assert.False(t, found)

	// Unsetting an absent key is not an error.
	require.NoError(t, kv.Unset("key"))
}

func TestRegistryOverBolt(t *testing.T) {
	kv := NewBoltKV(filepath.Join(t.TempDir(), "registry.db"))
	reg := NewRegistry(kv, nil)

	require.NoError(t, reg.Create(passwordRecord("dev")))
	rec, err := reg.FindByName("dev")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "p", rec.Secret)
}

func TestOverlayLifecycle(t *testing.T) {
	overlay := NewOverlay(NewFileKV(filepath.Join(t.TempDir(), "session.json")))

	rec, err := overlay.Get()
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, overlay.Set(passwordRecord("dev")))
	rec, err = overlay.Get()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "dev", rec.Name)

	require.NoError(t, overlay.Clear())
	rec, err = overlay.Get()
	require.NoError(t, err)
	assert.Nil(t, rec)

	// Clearing an empty slot is a no-op.
	require.NoError(t, overlay.Clear())
}

func TestResolvePrefersOverlayCopy(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(NewFileKV(filepath.Join(dir, "registry.json")), nil)
	overlay := NewOverlay(NewFileKV(filepath.Join(dir, "session.json")))

	registryCopy := passwordRecord("A")
	registryCopy.AccessToken = "stale"
	require.NoError(t, reg.Create(registryCopy))
	require.NoError(t, reg.Update(registryCopy))

	overlayCopy := passwordRecord("A")
	overlayCopy.AccessToken = "fresh"
	require.NoError(t, overlay.Set(overlayCopy))

	rec, err := Resolve(overlay, reg, "A")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "fresh", rec.AccessToken)

	// Names not matching the overlay fall through to the registry.
	require.NoError(t, overlay.Clear())
	rec, err = Resolve(overlay, reg, "A")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "stale", rec.AccessToken)
}

func TestResolveSurvivesRegistryDelete(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(NewFileKV(filepath.Join(dir, "registry.json")), nil)
	overlay := NewOverlay(NewFileKV(filepath.Join(dir, "session.json")))

	require.NoError(t, reg.Create(passwordRecord("dev")))
	require.NoError(t, overlay.Set(passwordRecord("dev")))

	// Deleting from the registry does not clear the overlay.
	require.NoError(t, reg.DeleteOne("dev", confirmYes))
	rec, err := overlay.Get()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "dev", rec.Name)
}
