package opening

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	nchess "github.com/corentings/chess/v2"
	ecolib "github.com/corentings/chess/v2/opening"
	yaml "gopkg.in/yaml.v3"

	"github.com/pgnlab/insight/internal/domain"
)

//go:embed openings.yaml
var defaultFiles embed.FS

const defaultLinePlies = 8

type namedLine struct {
	Name string `yaml:"name"`
	ECO  string `yaml:"eco,omitempty"`
	Line string `yaml:"line"` // SAN moves separated by spaces
}

type catalogFile struct {
	Openings []namedLine `yaml:"openings"`
}

// Catalog maps opening lines to stable names. It merges the embedded
// defaults with an optional override directory of YAML files, and falls
// back to the ECO book for lines the catalog does not name. Read-only
// after Load.
type Catalog struct {
	byPrefix map[string]namedLine
	maxPly   int
	linePly  int
	eco      *ecolib.BookECO
}

// Load builds the catalog. linePly controls how many plies make up the
// normalized opening-line label; zero picks the default.
func Load(overrideDir string, linePly int) (*Catalog, error) {
	if linePly <= 0 {
		linePly = defaultLinePlies
	}
	c := &Catalog{
		byPrefix: map[string]namedLine{},
		linePly:  linePly,
		eco:      ecolib.NewBookECO(),
	}

	raw, err := fs.ReadFile(defaultFiles, "openings.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded openings: %w", err)
	}
	if err := c.applyYAML(raw); err != nil {
		return nil, fmt.Errorf("embedded openings: %w", err)
	}

	if strings.TrimSpace(overrideDir) != "" {
		if err := c.applyDir(overrideDir); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) applyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read opening override dir: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for _, name := range files {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if err := c.applyYAML(b); err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
	}
	return nil
}

func (c *Catalog) applyYAML(b []byte) error {
	var file catalogFile
	if err := yaml.Unmarshal(b, &file); err != nil {
		return err
	}
	for _, nl := range file.Openings {
		key := normalizeLine(nl.Line)
		if key == "" || strings.TrimSpace(nl.Name) == "" {
			return fmt.Errorf("catalog entry needs name and line: %+v", nl)
		}
		c.byPrefix[key] = nl
		if plies := len(strings.Fields(key)); plies > c.maxPly {
			c.maxPly = plies
		}
	}
	return nil
}

// Classify labels one game's opening. Precedence: the game's own Opening
// tag, then the longest catalog prefix match, then the ECO book title.
// The Line field is always the normalized SAN prefix of the game.
func (c *Catalog) Classify(game *nchess.Game, rec *domain.GameRecord) domain.OpeningLabel {
	var label domain.OpeningLabel
	if rec == nil {
		return label
	}

	sans := rec.SANMoves()
	n := len(sans)
	if n > c.linePly {
		n = c.linePly
	}
	label.Line = strings.Join(sans[:n], " ")

	if tag := strings.TrimSpace(rec.Tag("Opening")); tag != "" {
		label.Name = tag
		if v := strings.TrimSpace(rec.Tag("Variation")); v != "" {
			label.Name += ": " + v
		}
	}
	if eco := strings.TrimSpace(rec.Tag("ECO")); eco != "" {
		label.ECO = eco
	}

	limit := len(sans)
	if limit > c.maxPly {
		limit = c.maxPly
	}
	for k := limit; k >= 1; k-- {
		nl, ok := c.byPrefix[strings.Join(sans[:k], " ")]
		if !ok {
			continue
		}
		if label.Name == "" {
			label.Name = nl.Name
		}
		if label.ECO == "" {
			label.ECO = nl.ECO
		}
		break
	}

	if game != nil && (label.Name == "" || label.ECO == "") {
		if eco := c.eco.Find(game.Moves()); eco != nil {
			if label.Name == "" {
				label.Name = eco.Title()
			}
			if label.ECO == "" {
				label.ECO = eco.Code()
			}
		}
	}
	return label
}

func normalizeLine(line string) string {
	return strings.Join(strings.Fields(line), " ")
}
