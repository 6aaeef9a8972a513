package swarm

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Persistence saves and restores knowledge snapshots.
type Persistence interface {
	Save(values map[string]any) error
	Load() (map[string]any, error)
}

// FilePersistence stores knowledge in a file. Files ending in .yaml or .yml
// are written as YAML, everything else as JSON.
type FilePersistence struct {
	path string
	mu   sync.Mutex
}

// NewFilePersistence creates a file persistence for path.
func NewFilePersistence(path string) *FilePersistence {
	return &FilePersistence{path: path}
}

func (p *FilePersistence) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(p.path))
	return ext == ".yaml" || ext == ".yml"
}

// Save writes values to the file.
func (p *FilePersistence) Save(values map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var (
		data []byte
		err  error
	)
	if p.isYAML() {
		data, err = yaml.Marshal(values)
	} else {
		data, err = json.MarshalIndent(values, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(p.path, data, 0644)
}

// Load reads values from the file. A missing file yields no values.
func (p *FilePersistence) Load() (map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	values := make(map[string]any)
	if p.isYAML() {
		err = yaml.Unmarshal(data, &values)
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		err = dec.Decode(&values)
	}
	if err != nil {
		return nil, err
	}
	for k, v := range values {
		values[k] = Normalize(v)
	}
	return values, nil
}
