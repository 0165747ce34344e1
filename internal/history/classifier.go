// Package history detects "meta" questions, where the user asks about
// their own prior questions instead of asking a domain question, and
// answers them locally without calling the model. The phrase and
// pattern catalog is data (catalog.yaml), not inline conditionals, so
// it can be tested and replaced independently.
package history

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AxelGiff/medicial/internal/models"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// PatternKind names what a matched pattern asks for.
type PatternKind string

const (
	KindLast     PatternKind = "last"
	KindPrevious PatternKind = "previous"
	KindFirst    PatternKind = "first"
	KindNth      PatternKind = "nth"
	KindNthWord  PatternKind = "nth_word"
	KindList     PatternKind = "list"

	// KindNthExtract pulls the question number out of a message already
	// known to be meta. It never triggers detection on its own.
	KindNthExtract PatternKind = "nth_extract"
)

type catalogPattern struct {
	Kind  PatternKind `yaml:"kind"`
	Regex string      `yaml:"regex"`
}

type catalog struct {
	Phrases      []string         `yaml:"phrases"`
	Patterns     []catalogPattern `yaml:"patterns"`
	OrdinalWords map[string]int   `yaml:"ordinal_words"`
}

type compiledPattern struct {
	kind PatternKind
	re   *regexp.Regexp
}

// Classifier detects meta questions and synthesizes their answers from
// the conversation transcript.
type Classifier struct {
	phrases      []string
	patterns     []compiledPattern
	ordinalWords map[string]int
}

// NewClassifier builds a classifier from the embedded catalog.
func NewClassifier() (*Classifier, error) {
	return newFromYAML(defaultCatalog)
}

// NewClassifierFromFile builds a classifier from a catalog override on disk.
func NewClassifierFromFile(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return newFromYAML(data)
}

func newFromYAML(data []byte) (*Classifier, error) {
	var cat catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(cat.Phrases) == 0 && len(cat.Patterns) == 0 {
		return nil, fmt.Errorf("catalog has no phrases or patterns")
	}

	c := &Classifier{ordinalWords: cat.OrdinalWords}
	for _, p := range cat.Phrases {
		c.phrases = append(c.phrases, strings.ToLower(p))
	}
	for _, p := range cat.Patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", p.Regex, err)
		}
		c.patterns = append(c.patterns, compiledPattern{kind: p.Kind, re: re})
	}
	return c, nil
}

// IsMeta reports whether the message asks about conversation history.
func (c *Classifier) IsMeta(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range c.phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	for _, p := range c.patterns {
		if p.kind == KindNthExtract {
			continue
		}
		if p.re.MatchString(lower) {
			return true
		}
	}
	return false
}

// RealQuestions extracts the ordered list of prior non-meta user
// questions from the transcript. Meta detection is re-applied to each
// historical question so a meta question never counts itself as a real
// one.
func (c *Classifier) RealQuestions(entries []models.TranscriptEntry) []string {
	var qs []string
	for _, e := range entries {
		if e.Kind != models.EntryQuestion {
			continue
		}
		if c.IsMeta(e.Text) {
			continue
		}
		qs = append(qs, e.Text)
	}
	return qs
}

const (
	msgNoQuestions = "Vous n'avez pas encore posé de question dans cette conversation. C'est notre premier échange."
	msgNotThatMany = "Vous n'avez pas encore posé %d questions dans cette conversation."
)

// Answer synthesizes the reply to a meta question. The current message
// must not yet be appended to the transcript: it is excluded from the
// recorded list by construction, so "dernière" and "précédente" both
// resolve to the most recent recorded real question.
func (c *Classifier) Answer(userText string, entries []models.TranscriptEntry) string {
	lower := strings.ToLower(userText)
	qs := c.RealQuestions(entries)

	if len(qs) == 0 {
		return msgNoQuestions
	}

	if c.matches(lower, KindLast) {
		return fmt.Sprintf("Votre dernière question était : « %s »", qs[len(qs)-1])
	}
	if c.matches(lower, KindPrevious) {
		return fmt.Sprintf("Votre question précédente était : « %s »", qs[len(qs)-1])
	}
	if c.matches(lower, KindFirst) {
		return fmt.Sprintf("Votre première question était : « %s »", qs[0])
	}

	if n, ok := c.ordinal(lower); ok {
		if n >= 1 && n <= len(qs) {
			return fmt.Sprintf("Votre %d%s question était : « %s »", n, ordinalSuffix(n), qs[n-1])
		}
		return fmt.Sprintf(msgNotThatMany, n)
	}

	if len(qs) == 1 {
		return fmt.Sprintf("Vous avez posé une seule question jusqu'à présent : « %s »", qs[0])
	}

	var b strings.Builder
	b.WriteString("Voici les questions que vous avez posées dans cette conversation :\n\n")
	for i, q := range qs {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q)
	}
	return strings.TrimRight(b.String(), "\n")
}

// ordinal extracts an explicit question number, digit form first
// ("2ème"), then word form ("deuxième", "seconde"). The anchored nth
// pattern is tried before the loose extractor, so the digit is found
// whichever phrasing carried the meta intent.
func (c *Classifier) ordinal(lower string) (int, bool) {
	for _, p := range c.patterns {
		if p.kind != KindNth && p.kind != KindNthExtract {
			continue
		}
		if m := p.re.FindStringSubmatch(lower); len(m) > 1 {
			if n, err := strconv.Atoi(m[len(m)-1]); err == nil {
				return n, true
			}
		}
	}
	for word, n := range c.ordinalWords {
		if strings.Contains(lower, word+" question") {
			return n, true
		}
	}
	return 0, false
}

func (c *Classifier) matches(lower string, kind PatternKind) bool {
	for _, p := range c.patterns {
		if p.kind == kind && p.re.MatchString(lower) {
			return true
		}
	}
	return false
}

func ordinalSuffix(n int) string {
	if n == 1 {
		return "ère"
	}
	return "ème"
}
