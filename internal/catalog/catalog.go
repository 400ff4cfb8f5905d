package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"ribosim/internal/sequence"
	"ribosim/internal/services"
)

//go:embed proteins.cue
var builtinSource string

// schema is wrapped in close() so unknown top-level keys are rejected.
const schema = `
default?: string
proteins: [string]: close({
	template:       =~"^([ACGT]{3})+$"
	description?:   string
	dialogue_node?: string
})
`

// ErrUnknownProtein is returned when a name is not in the catalog.
var ErrUnknownProtein = services.Wrap(services.ErrNotFound, "catalog", "lookup", "unknown protein", nil)

// Protein is one catalog entry.
type Protein struct {
	Key          string               `json:"key"`
	Name         string               `json:"name"`
	Description  string               `json:"description,omitempty"`
	DialogueNode string               `json:"dialogue_node"`
	Template     sequence.Sequence    `json:"-"`
	MRNA         sequence.Sequence    `json:"-"`
	Chain        []sequence.AminoAcid `json:"chain"`
}

// TemplateString is the DNA template as text.
func (p Protein) TemplateString() string { return p.Template.String() }

// MRNAString is the expected transcript as text.
func (p Protein) MRNAString() string { return p.MRNA.String() }

type entry struct {
	Template     string `json:"template"`
	Description  string `json:"description"`
	DialogueNode string `json:"dialogue_node"`
}

type document struct {
	Default  string           `json:"default"`
	Proteins map[string]entry `json:"proteins"`
}

// Catalog is an immutable set of proteins.
type Catalog struct {
	proteins   []Protein
	byKey      map[string]int
	defaultKey string
}

// foldKey normalizes a name for case-insensitive lookup. Casers carry state,
// so a fresh one is built per call.
func foldKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// Load reads the embedded catalog and, when path names an existing file,
// overlays the user's proteins on top of it. User entries replace built-ins
// with the same name.
func Load(path string) (*Catalog, error) {
	ctx := cuecontext.New()
	schemaValue := ctx.CompileString("close({" + schema + "})")
	if err := schemaValue.Err(); err != nil {
		return nil, fmt.Errorf("compile catalog schema: %w", err)
	}

	merged, err := decode(ctx, schemaValue, []byte(builtinSource), "proteins.cue")
	if err != nil {
		return nil, err
	}

	if path = strings.TrimSpace(path); path != "" {
		content, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, services.Wrap(services.ErrConfiguration, "catalog", "read", path, err)
		default:
			user, err := decode(ctx, schemaValue, content, path)
			if err != nil {
				return nil, err
			}
			for name, e := range user.Proteins {
				merged.Proteins[name] = e
			}
			if user.Default != "" {
				merged.Default = user.Default
			}
		}
	}

	return build(merged)
}

func decode(ctx *cue.Context, schemaValue cue.Value, content []byte, filename string) (document, error) {
	value := ctx.CompileBytes(content, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return document{}, services.Wrap(services.ErrConfiguration, "catalog", "compile", filename, err)
	}
	unified := schemaValue.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return document{}, services.Wrap(services.ErrValidation, "catalog", "validate", filename, err)
	}
	var doc document
	if err := unified.Decode(&doc); err != nil {
		return document{}, services.Wrap(services.ErrConfiguration, "catalog", "decode", filename, err)
	}
	if doc.Proteins == nil {
		doc.Proteins = map[string]entry{}
	}
	return doc, nil
}

func build(doc document) (*Catalog, error) {
	names := make([]string, 0, len(doc.Proteins))
	for name := range doc.Proteins {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return displayName(names[i]) < displayName(names[j])
	})

	c := &Catalog{byKey: make(map[string]int, len(names))}
	for _, name := range names {
		e := doc.Proteins[name]
		template, err := sequence.Parse(e.Template)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "catalog", "parse", name, err)
		}
		mrna := sequence.Transcribe(template)
		codons, err := sequence.Codons(mrna)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "catalog", "parse", name, err)
		}
		key := foldKey(name)
		if _, dup := c.byKey[key]; dup {
			return nil, services.Wrap(services.ErrValidation, "catalog", "build", "duplicate protein "+name, nil)
		}
		p := Protein{
			Key:          key,
			Name:         displayName(name),
			Description:  e.Description,
			DialogueNode: e.DialogueNode,
			Template:     template,
			MRNA:         mrna,
			Chain:        sequence.Chain(codons),
		}
		if p.DialogueNode == "" {
			p.DialogueNode = "ProteinSynthesisLab" + strings.ReplaceAll(p.Name, " ", "")
		}
		c.byKey[key] = len(c.proteins)
		c.proteins = append(c.proteins, p)
	}
	if len(c.proteins) == 0 {
		return nil, services.Wrap(services.ErrValidation, "catalog", "build", "no proteins defined", nil)
	}

	c.defaultKey = c.proteins[0].Key
	if doc.Default != "" {
		key := foldKey(doc.Default)
		if _, ok := c.byKey[key]; !ok {
			return nil, fmt.Errorf("default protein %q: %w", doc.Default, ErrUnknownProtein)
		}
		c.defaultKey = key
	}
	return c, nil
}

func displayName(name string) string {
	name = strings.Join(strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	}), " ")
	return cases.Title(language.English).String(name)
}

// Lookup finds a protein by key or display name, ignoring case.
func (c *Catalog) Lookup(name string) (Protein, error) {
	key := foldKey(name)
	if idx, ok := c.byKey[key]; ok {
		return c.proteins[idx], nil
	}
	for _, p := range c.proteins {
		if foldKey(p.Name) == key {
			return p, nil
		}
	}
	return Protein{}, fmt.Errorf("%q: %w", name, ErrUnknownProtein)
}

// Default returns the protein sessions start with.
func (c *Catalog) Default() Protein {
	return c.proteins[c.byKey[c.defaultKey]]
}

// Proteins lists every protein sorted by name.
func (c *Catalog) Proteins() []Protein {
	return append([]Protein(nil), c.proteins...)
}

// Len is the number of proteins.
func (c *Catalog) Len() int { return len(c.proteins) }
