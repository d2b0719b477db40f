package config

// Config bundles the manager with typed access to every section.
type Config struct {
	Manager    *Manager
	Server     *ServerSection
	Browser    *BrowserSection
	LLM        *LLMSection
	Navigation *NavigationSection
}

// New registers the default sections on a manager backed by store.
func New(store Store) (*Config, error) {
	cfg := &Config{
		Manager:    NewManager(store),
		Server:     NewServerSection(),
		Browser:    NewBrowserSection(),
		LLM:        NewLLMSection(),
		Navigation: NewNavigationSection(),
	}

	for _, section := range []Section{cfg.Server, cfg.Browser, cfg.LLM, cfg.Navigation} {
		if err := cfg.Manager.RegisterSection(section); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Load reads the file at path (defaults when it does not exist) and
// validates every section. An empty path uses ~/.browserapi/config.yaml.
func Load(path string) (*Config, error) {
	store, err := NewFileStore(path)
	if err != nil {
		return nil, err
	}

	cfg, err := New(store)
	if err != nil {
		return nil, err
	}

	if err := cfg.Manager.LoadAll(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns a configuration that is not backed by any file.
func Defaults() *Config {
	cfg, err := New(&memoryStore{data: make(map[string]map[string]interface{})})
	if err != nil {
		// Registration of the fixed section set cannot collide.
		panic(err)
	}
	return cfg
}

// memoryStore is a Store with no persistence.
type memoryStore struct {
	data map[string]map[string]interface{}
}

func (m *memoryStore) Load() error { return nil }
func (m *memoryStore) Save() error { return nil }

func (m *memoryStore) GetSection(sectionID string) (map[string]interface{}, error) {
	return m.data[sectionID], nil
}

func (m *memoryStore) SetSection(sectionID string, data map[string]interface{}) error {
	m.data[sectionID] = data
	return nil
}

func (m *memoryStore) GetAll() (map[string]map[string]interface{}, error) {
	return m.data, nil
}

func (m *memoryStore) SetAll(data map[string]map[string]interface{}) error {
	m.data = data
	return nil
}
