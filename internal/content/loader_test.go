package content_test

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/p-n-ai/little-star/internal/content"
)

func defaultStore(t *testing.T) *content.Store {
	t.Helper()
	store, err := content.DefaultStore()
	if err != nil {
		t.Fatalf("DefaultStore() error = %v", err)
	}
	return store
}

func TestDefaultStore_Catalog(t *testing.T) {
	store := defaultStore(t)

	tests := []struct {
		subject   content.Subject
		wantUnits int
	}{
		{content.SubjectEnglish, 9},
		{content.SubjectZhuyin, 3},
		{content.SubjectMath, 6},
	}
	for _, tt := range tests {
		t.Run(string(tt.subject), func(t *testing.T) {
			units := store.Units(tt.subject)
			if len(units) != tt.wantUnits {
				t.Fatalf("len(Units) = %d, want %d", len(units), tt.wantUnits)
			}
			for _, u := range units {
				if u.Title == "" {
					t.Errorf("unit %q has empty title", u.ID)
				}
			}
		})
	}
}

func TestDefaultStore_StarterUnit(t *testing.T) {
	store := defaultStore(t)

	items, ok := store.Items(content.SubjectEnglish, "b1_starter")
	if !ok {
		t.Fatal("b1_starter should have static items")
	}
	if len(items) != 12 {
		t.Fatalf("len(items) = %d, want 12", len(items))
	}

	first := items[0]
	if first.Word != "one" || first.Translation != "一" || first.Emoji != "1️⃣" {
		t.Errorf("items[0] = %+v, want one/一/1️⃣", first)
	}
	if first.FullSentence != "I have one nose." {
		t.Errorf("FullSentence = %q, want %q", first.FullSentence, "I have one nose.")
	}
	if items[11].Word != "elephant" {
		t.Errorf("items[11].Word = %q, want elephant", items[11].Word)
	}
}

func TestDefaultStore_CustomUnitHasNoItems(t *testing.T) {
	store := defaultStore(t)

	unit, ok := store.Unit(content.SubjectEnglish, content.CustomUnitID)
	if !ok {
		t.Fatal("custom unit should be in the English catalog")
	}
	if unit.PromptTopic != "" {
		t.Errorf("custom PromptTopic = %q, want empty", unit.PromptTopic)
	}
	if _, ok := store.Items(content.SubjectEnglish, content.CustomUnitID); ok {
		t.Error("custom unit should not have static items")
	}
}

func TestDefaultStore_SymbolicBuilders(t *testing.T) {
	store := defaultStore(t)

	zhuyin, ok := store.Items(content.SubjectZhuyin, "z_symbol_basic")
	if !ok || len(zhuyin) == 0 {
		t.Fatal("z_symbol_basic should have items")
	}
	z := zhuyin[0]
	if z.Word != "ㄅ" || z.Translation != "爸爸" || z.SentencePart1 != "" || z.SentencePart2 != " (爸爸)" || z.FullSentence != "爸爸" {
		t.Errorf("zhuyin item = %+v", z)
	}

	math, ok := store.Items(content.SubjectMath, "m_g1_add")
	if !ok || len(math) == 0 {
		t.Fatal("m_g1_add should have items")
	}
	m := math[0]
	if m.Word != "3" || m.Translation != "加法" || m.SentencePart1 != "1 + 2 = " || m.SentencePart2 != "" || m.FullSentence != "1 + 2 等於 3" {
		t.Errorf("math item = %+v", m)
	}
}

func TestStore_ItemsReturnsCopy(t *testing.T) {
	store := defaultStore(t)

	items, _ := store.Items(content.SubjectEnglish, "b1_starter")
	items[0].Word = "mutated"

	again, _ := store.Items(content.SubjectEnglish, "b1_starter")
	if again[0].Word != "one" {
		t.Errorf("store was mutated through returned slice: %q", again[0].Word)
	}
}

func TestStore_UnknownLookups(t *testing.T) {
	store := defaultStore(t)

	if _, ok := store.Unit(content.SubjectEnglish, "nope"); ok {
		t.Error("Unit() should report false for an unknown id")
	}
	if _, ok := store.Items(content.SubjectMath, "b1_starter"); ok {
		t.Error("Items() should be scoped by subject")
	}
}

func TestNewStore_FromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"colors.yaml": {Data: []byte(`subject: english
units:
  - id: colors
    title: Colors
    prompt_topic: colors
    items:
      - {word: "red", translation: "紅色", before: "The apple is ", after: ".", emoji: "🔴"}
`)},
		"README.md": {Data: []byte("ignored")},
	}

	store, err := content.NewStore(fsys)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	items, ok := store.Items(content.SubjectEnglish, "colors")
	if !ok || len(items) != 1 {
		t.Fatalf("Items() = %v, %v", items, ok)
	}
	if items[0].FullSentence != "The apple is red." {
		t.Errorf("FullSentence = %q", items[0].FullSentence)
	}
}

func TestNewStore_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown subject", "subject: history\nunits: []\n"},
		{"empty word", "subject: english\nunits:\n  - id: u\n    items:\n      - {word: \"\", translation: \"x\"}\n"},
		{"missing id", "subject: math\nunits:\n  - title: nothing\n"},
		{"bad yaml", "subject: [english\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := content.NewStore(fstest.MapFS{"t.yaml": {Data: []byte(tt.data)}})
			if err == nil {
				t.Fatal("NewStore() should return error")
			}
		})
	}
}

func TestParseSubject(t *testing.T) {
	tests := []struct {
		in      string
		want    content.Subject
		wantErr bool
	}{
		{"english", content.SubjectEnglish, false},
		{" Zhuyin ", content.SubjectZhuyin, false},
		{"MATH", content.SubjectMath, false},
		{"art", "", true},
	}
	for _, tt := range tests {
		got, err := content.ParseSubject(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSubject(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.wantErr && !errors.Is(err, content.ErrUnknownSubject) {
			t.Errorf("ParseSubject(%q) error = %v, want ErrUnknownSubject", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseSubject(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSubject_Symbolic(t *testing.T) {
	if content.SubjectEnglish.Symbolic() {
		t.Error("english should be text-based")
	}
	if !content.SubjectZhuyin.Symbolic() || !content.SubjectMath.Symbolic() {
		t.Error("zhuyin and math should be symbolic")
	}
}
