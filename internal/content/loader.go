package content

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var embedded embed.FS

// tableFile is the on-disk shape of one subject's catalog.
type tableFile struct {
	Subject Subject     `yaml:"subject"`
	Units   []unitEntry `yaml:"units"`
}

type unitEntry struct {
	ID          string  `yaml:"id"`
	Title       string  `yaml:"title"`
	PromptTopic string  `yaml:"prompt_topic"`
	Description string  `yaml:"description"`
	Color       string  `yaml:"color"`
	Items       []entry `yaml:"items"`
}

// entry carries the raw columns for every subject; which ones apply depends on the subject.
type entry struct {
	Word        string `yaml:"word"`
	Translation string `yaml:"translation"`
	Before      string `yaml:"before"`
	After       string `yaml:"after"`
	Symbol      string `yaml:"symbol"`
	Example     string `yaml:"example"`
	Answer      string `yaml:"answer"`
	Question    string `yaml:"question"`
	Concept     string `yaml:"concept"`
	Emoji       string `yaml:"emoji"`
}

func (e entry) build(s Subject) (VocabularyItem, error) {
	var item VocabularyItem
	switch s {
	case SubjectZhuyin:
		item = NewZhuyinItem(e.Symbol, e.Example, e.Emoji)
	case SubjectMath:
		item = NewMathItem(e.Answer, e.Question, e.Concept, e.Emoji)
	default:
		item = NewWordItem(e.Word, e.Translation, e.Before, e.After, e.Emoji)
	}
	if item.Word == "" {
		return VocabularyItem{}, fmt.Errorf("%s entry has an empty word", s)
	}
	return item, nil
}

type table struct {
	units []UnitConfig
	items map[string][]VocabularyItem
}

// Store is the read-only lesson catalog keyed by subject and unit id.
type Store struct {
	tables map[Subject]*table
	mu     sync.RWMutex
}

// DefaultStore loads the tables compiled into the binary.
func DefaultStore() (*Store, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, err
	}
	return NewStore(sub)
}

// NewStoreFromDir loads every YAML table under dir. An empty dir selects the embedded tables.
func NewStoreFromDir(dir string) (*Store, error) {
	if dir == "" {
		return DefaultStore()
	}
	return NewStore(os.DirFS(dir))
}

// NewStore loads every *.yaml or *.yml file in fsys. Files for the same subject are merged
// in walk order.
func NewStore(fsys fs.FS) (*Store, error) {
	s := &Store{tables: make(map[Subject]*table)}

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext := path.Ext(p); ext != ".yaml" && ext != ".yml" {
			return nil
		}
		return s.loadTable(fsys, p)
	})
	if err != nil {
		return nil, fmt.Errorf("loading content tables: %w", err)
	}

	for subject, t := range s.tables {
		slog.Debug("content table loaded", "subject", subject, "units", len(t.units), "stocked", len(t.items))
	}
	return s, nil
}

func (s *Store) loadTable(fsys fs.FS, p string) error {
	data, err := fs.ReadFile(fsys, p)
	if err != nil {
		return err
	}

	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return fmt.Errorf("parse %s: %w", p, err)
	}
	subject, err := ParseSubject(string(tf.Subject))
	if err != nil {
		return fmt.Errorf("%s: %w", p, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[subject]
	if !ok {
		t = &table{items: make(map[string][]VocabularyItem)}
		s.tables[subject] = t
	}

	for _, u := range tf.Units {
		if strings.TrimSpace(u.ID) == "" {
			return fmt.Errorf("%s: unit without id", p)
		}
		t.units = append(t.units, UnitConfig{
			ID:          u.ID,
			Title:       u.Title,
			PromptTopic: u.PromptTopic,
			Description: u.Description,
			Color:       u.Color,
		})
		if len(u.Items) == 0 {
			continue
		}
		items := make([]VocabularyItem, 0, len(u.Items))
		for i, e := range u.Items {
			item, err := e.build(subject)
			if err != nil {
				return fmt.Errorf("%s: unit %s item %d: %w", p, u.ID, i, err)
			}
			items = append(items, item)
		}
		t.items[u.ID] = items
	}
	return nil
}

// Units returns the catalog of a subject in table order.
func (s *Store) Units(subject Subject) []UnitConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[subject]
	if !ok {
		return nil
	}
	return append([]UnitConfig(nil), t.units...)
}

// Unit looks up one unit of a subject.
func (s *Store) Unit(subject Subject, id string) (UnitConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[subject]
	if !ok {
		return UnitConfig{}, false
	}
	for _, u := range t.units {
		if u.ID == id {
			return u, true
		}
	}
	return UnitConfig{}, false
}

// Items returns a copy of the static vocabulary of a unit. The boolean is false when the unit
// has no static entry and must be generated.
func (s *Store) Items(subject Subject, unitID string) ([]VocabularyItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[subject]
	if !ok {
		return nil, false
	}
	items, ok := t.items[unitID]
	if !ok {
		return nil, false
	}
	return append([]VocabularyItem(nil), items...), true
}
