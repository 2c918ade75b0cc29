package gender

import (
	_ "embed"
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Gender is the result of a first-name classification.
type Gender string

const (
	Male    Gender = "male"
	Female  Gender = "female"
	Unknown Gender = "unknown"
)

// Detector classifies a first name into a probable gender.
// Implementations must treat an empty name as Unknown.
type Detector interface {
	Guess(firstName string) Gender
}

// ErrInvalidDataset is returned when the embedded name dataset cannot be parsed.
var ErrInvalidDataset = errors.New("gender: invalid name dataset")

//go:embed names.yaml
var namesYAML []byte

type dataset struct {
	Male   []string `yaml:"male"`
	Female []string `yaml:"female"`
}

// HeuristicDetector implements Detector with an embedded name dataset and
// suffix fallback rules. Safe for concurrent use after construction.
type HeuristicDetector struct {
	names map[string]Gender
}

// NewHeuristicDetector builds a detector from the embedded dataset.
func NewHeuristicDetector() (*HeuristicDetector, error) {
	var ds dataset
	if err := yaml.Unmarshal(namesYAML, &ds); err != nil {
		return nil, errors.Join(ErrInvalidDataset, err)
	}

	names := make(map[string]Gender, len(ds.Male)+len(ds.Female))
	for _, n := range ds.Male {
		names[normalizeName(n)] = Male
	}
	// Collisions resolve to Unknown: ambiguous names like "Camille" are
	// listed in both sets and must not resolve to a gendered salutation.
	for _, n := range ds.Female {
		key := normalizeName(n)
		if _, dup := names[key]; dup {
			names[key] = Unknown
			continue
		}
		names[key] = Female
	}
	return &HeuristicDetector{names: names}, nil
}

// Guess classifies firstName. Compound names ("Jean-Pierre") resolve on the
// first component.
func (d *HeuristicDetector) Guess(firstName string) Gender {
	key := normalizeName(firstName)
	if key == "" {
		return Unknown
	}
	if first, _, found := strings.Cut(key, "-"); found {
		if g, ok := d.names[first]; ok {
			return g
		}
	}
	if g, ok := d.names[key]; ok {
		return g
	}
	return suffixGuess(key)
}

// suffixGuess covers common French given-name endings for names outside the
// dataset. Intentionally conservative: anything not clearly gendered stays
// Unknown so the salutation degrades to "Madame, Monsieur".
func suffixGuess(name string) Gender {
	femaleSuffixes := []string{"ette", "elle", "ine", "ienne", "anne", "ia", "issa"}
	for _, s := range femaleSuffixes {
		if strings.HasSuffix(name, s) {
			return Female
		}
	}
	return Unknown
}

var nameNormalizer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeName lowercases and strips diacritics so dataset lookups match
// accented spellings.
func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	out, _, err := transform.String(nameNormalizer, name)
	if err != nil {
		return name
	}
	return out
}
