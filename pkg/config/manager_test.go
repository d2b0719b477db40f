package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSection is a test implementation of the Section interface
type mockSection struct {
	id          string
	data        map[string]interface{}
	setErr      error
	validateErr error
}

func (m *mockSection) ID() string                   { return m.id }
func (m *mockSection) Title() string                { return m.id }
func (m *mockSection) Description() string          { return "" }
func (m *mockSection) Data() map[string]interface{} { return m.data }
func (m *mockSection) Validate() error              { return m.validateErr }
func (m *mockSection) Reset()                       { m.data = make(map[string]interface{}) }

func (m *mockSection) SetData(data map[string]interface{}) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data = data
	return nil
}

// mockStore is a test implementation of the Store interface
type mockStore struct {
	sections map[string]map[string]interface{}
	saveErr  error
	saved    bool
}

func newMockStore() *mockStore {
	return &mockStore{sections: make(map[string]map[string]interface{})}
}

func (m *mockStore) Load() error { return nil }

func (m *mockStore) Save() error {
	m.saved = m.saveErr == nil
	return m.saveErr
}

func (m *mockStore) GetSection(sectionID string) (map[string]interface{}, error) {
	return m.sections[sectionID], nil
}

func (m *mockStore) SetSection(sectionID string, data map[string]interface{}) error {
	m.sections[sectionID] = data
	return nil
}

func (m *mockStore) GetAll() (map[string]map[string]interface{}, error) {
	return m.sections, nil
}

func (m *mockStore) SetAll(data map[string]map[string]interface{}) error {
	m.sections = data
	return nil
}

func TestManager_RegisterSection(t *testing.T) {
	t.Run("keeps registration order", func(t *testing.T) {
		manager := NewManager(newMockStore())
		for _, id := range []string{"first", "second", "third"} {
			require.NoError(t, manager.RegisterSection(&mockSection{id: id}))
		}

		sections := manager.GetSections()
		require.Len(t, sections, 3)
		assert.Equal(t, "first", sections[0].ID())
		assert.Equal(t, "third", sections[2].ID())
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		manager := NewManager(newMockStore())
		require.NoError(t, manager.RegisterSection(&mockSection{id: "dup"}))
		assert.Error(t, manager.RegisterSection(&mockSection{id: "dup"}))
	})
}

func TestManager_LoadAll(t *testing.T) {
	t.Run("applies stored data", func(t *testing.T) {
		store := newMockStore()
		store.sections["test"] = map[string]interface{}{"key": "value"}
		manager := NewManager(store)
		section := &mockSection{id: "test"}
		require.NoError(t, manager.RegisterSection(section))

		require.NoError(t, manager.LoadAll())
		assert.Equal(t, "value", section.data["key"])
	})

	t.Run("keeps defaults for absent sections", func(t *testing.T) {
		manager := NewManager(newMockStore())
		section := &mockSection{id: "test", data: map[string]interface{}{"default": true}}
		require.NoError(t, manager.RegisterSection(section))

		require.NoError(t, manager.LoadAll())
		assert.Equal(t, true, section.data["default"])
	})

	t.Run("reports apply and validation errors", func(t *testing.T) {
		store := newMockStore()
		store.sections["bad"] = map[string]interface{}{"key": 1}
		manager := NewManager(store)
		require.NoError(t, manager.RegisterSection(&mockSection{id: "bad", setErr: errors.New("nope")}))
		assert.ErrorContains(t, manager.LoadAll(), `failed to apply section "bad"`)

		manager = NewManager(newMockStore())
		require.NoError(t, manager.RegisterSection(&mockSection{id: "invalid", validateErr: errors.New("bad value")}))
		assert.ErrorContains(t, manager.LoadAll(), `invalid section "invalid"`)
	})
}

func TestManager_SaveAll(t *testing.T) {
	store := newMockStore()
	manager := NewManager(store)
	require.NoError(t, manager.RegisterSection(&mockSection{id: "a", data: map[string]interface{}{"k": "v"}}))

	require.NoError(t, manager.SaveAll())
	assert.True(t, store.saved)
	assert.Equal(t, "v", store.sections["a"]["k"])

	store.saveErr = errors.New("disk full")
	assert.Error(t, manager.SaveAll())
}

func TestManager_Store(t *testing.T) {
	store := newMockStore()
	assert.Same(t, store, NewManager(store).Store())
}
