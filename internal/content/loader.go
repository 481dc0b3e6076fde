// Package content loads the YAML templates a world is bootstrapped from.
//
// Each file describes exactly one location ("space"), mob or item.
package content

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/textcamp/internal/game/entity"
	"github.com/cory-johannsen/textcamp/internal/game/update"
	"github.com/cory-johannsen/textcamp/internal/game/world"
)

// yamlTemplate is the top-level YAML structure of a template file.
type yamlTemplate struct {
	Space       *yamlMeta         `yaml:"space"`
	Mob         *yamlMeta         `yaml:"mob"`
	Item        *yamlMeta         `yaml:"item"`
	Description yamlDescription   `yaml:"description"`
	Exits       map[string]string `yaml:"exits"`
	Items       []world.SpawnRule `yaml:"items"`
	Mobs        []world.SpawnRule `yaml:"mobs"`
	Attributes  *world.Attributes `yaml:"attributes"`
	Vitality    int               `yaml:"vitality"`
}

// yamlMeta names the template.
type yamlMeta struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// yamlDescription is descriptive text plus clickable actions.
type yamlDescription struct {
	Text    string            `yaml:"text"`
	Actions map[string]string `yaml:"actions"`
}

// Set is everything loaded from a content directory.
type Set struct {
	Locations []*world.Location
	Mobs      []world.MobPrototype
	Items     []world.ItemPrototype
}

// LoadFromBytes parses and validates a single template into s.
//
// Precondition: data must be YAML conforming to the template schema.
// Postcondition: Exactly one location or prototype is appended, or a
// non-nil error is returned and s is unchanged.
func (s *Set) LoadFromBytes(data []byte) error {
	var t yamlTemplate
	if err := yaml.Unmarshal(data, &t); err != nil {
		return fmt.Errorf("parsing template YAML: %w", err)
	}
	if err := t.validate(); err != nil {
		return fmt.Errorf("validating template: %w", err)
	}
	switch {
	case t.Space != nil:
		s.Locations = append(s.Locations, convertLocation(t))
	case t.Mob != nil:
		s.Mobs = append(s.Mobs, convertMob(t))
	default:
		s.Items = append(s.Items, convertItem(t))
	}
	return nil
}

// LoadFromFile reads a single template file into s.
func (s *Set) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading template file %s: %w", path, err)
	}
	if err := s.LoadFromBytes(data); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads every YAML template below dir, recursively, in lexical order.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a Set with unique identifiers per kind, or the
// first error encountered.
func Load(dir string) (*Set, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading content directory %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no template files found in %s", dir)
	}
	sort.Strings(paths)

	set := &Set{}
	for _, p := range paths {
		if err := set.LoadFromFile(p); err != nil {
			return nil, err
		}
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// Validate checks that identifiers are unique per kind.
func (s *Set) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	check := func(kind, id string) {
		key := kind + "/" + id
		if seen[key] {
			errs = append(errs, fmt.Errorf("duplicate %s %q", kind, id))
		}
		seen[key] = true
	}
	for _, l := range s.Locations {
		check("space", l.ID.String())
	}
	for _, m := range s.Mobs {
		check("mob", m.Key)
	}
	for _, i := range s.Items {
		check("item", i.Key)
	}
	return errors.Join(errs...)
}

// Inject registers every prototype with w and stores every location.
//
// Postcondition: w holds the set's templates; any previous template or
// location with the same identifier is replaced.
func (s *Set) Inject(w *world.World) {
	for _, p := range s.Items {
		w.ItemPrototypes().Add(p)
	}
	for _, p := range s.Mobs {
		w.MobPrototypes().Add(p)
	}
	for _, l := range s.Locations {
		w.AddLocation(l.Clone())
	}
}

func (t yamlTemplate) validate() error {
	n := 0
	var meta *yamlMeta
	for _, m := range []*yamlMeta{t.Space, t.Mob, t.Item} {
		if m != nil {
			n++
			meta = m
		}
	}
	if n != 1 {
		return fmt.Errorf("template must describe exactly one of space, mob or item, found %d", n)
	}
	if meta.ID == "" {
		return errors.New("template id must not be empty")
	}
	for raw := range t.Exits {
		if _, ok := world.ParseDirection(raw); !ok {
			return fmt.Errorf("space %q: unknown exit direction %q", meta.ID, raw)
		}
	}
	for _, r := range append(append([]world.SpawnRule(nil), t.Items...), t.Mobs...) {
		if r.Name == "" || r.Max < 0 || r.Chance < 0 {
			return fmt.Errorf("space %q: invalid spawn rule %+v", meta.ID, r)
		}
	}
	if t.Vitality < 0 {
		return fmt.Errorf("mob %q: vitality must not be negative", meta.ID)
	}
	return nil
}

func convertMarkup(d yamlDescription) update.Markup {
	m := update.Markup{Text: strings.TrimSpace(d.Text)}
	if len(d.Actions) > 0 {
		m.Clicks = make(map[string]string, len(d.Actions))
		for label, action := range d.Actions {
			m.Clicks[label] = action
		}
	}
	return m
}

func convertLocation(t yamlTemplate) *world.Location {
	l := world.NewLocation(entity.Identifier(t.Space.ID))
	l.Description = convertMarkup(t.Description)
	for raw, target := range t.Exits {
		d, _ := world.ParseDirection(raw)
		l.Exits[d] = entity.Identifier(target)
	}
	l.ItemSpawns = t.Items
	l.MobSpawns = t.Mobs
	return l
}

func convertMob(t yamlTemplate) world.MobPrototype {
	p := world.MobPrototype{
		Key:         t.Mob.ID,
		Name:        t.Mob.Name,
		Description: convertMarkup(t.Description),
		Vitality:    t.Vitality,
	}
	if p.Name == "" {
		p.Name = t.Mob.ID
	}
	if t.Attributes != nil {
		p.Attributes = *t.Attributes
	}
	return p
}

func convertItem(t yamlTemplate) world.ItemPrototype {
	p := world.ItemPrototype{
		Key:         t.Item.ID,
		Name:        t.Item.Name,
		Description: convertMarkup(t.Description),
	}
	if p.Name == "" {
		p.Name = strings.ToLower(t.Item.ID)
	}
	return p
}
