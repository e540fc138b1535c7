package agents

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"gopkg.in/yaml.v3"

	"github.com/aegish/aegish/pkg/types"
)

//go:embed knowledge.yaml
var knowledgeYAML []byte

type commandDoc struct {
	Name     string   `yaml:"name"`
	Summary  string   `yaml:"summary"`
	Usage    string   `yaml:"usage"`
	Examples []string `yaml:"examples"`
	Notes    string   `yaml:"notes"`
}

type knowledgeBase struct {
	Commands []commandDoc `yaml:"commands"`
}

// SyntaxAgent answers command syntax questions from its embedded knowledge
// base. It never touches the network, so it stays useful offline and its
// answers need no sanitization.
type SyntaxAgent struct {
	once sync.Once
	docs map[string]commandDoc
	err  error
}

// NewSyntaxAgent creates the syntax agent. Knowledge loads lazily.
func NewSyntaxAgent() *SyntaxAgent {
	return &SyntaxAgent{}
}

func (a *SyntaxAgent) Kind() Kind { return KindSyntax }

func (a *SyntaxAgent) load() error {
	a.once.Do(func() {
		var kb knowledgeBase
		if err := yaml.Unmarshal(knowledgeYAML, &kb); err != nil {
			a.err = fmt.Errorf("failed to load syntax knowledge: %w", err)
			return
		}
		a.docs = make(map[string]commandDoc, len(kb.Commands))
		for _, doc := range kb.Commands {
			a.docs[doc.Name] = doc
		}
	})
	return a.err
}

// Respond identifies command words in the query with a shell lexer, then
// streams the matching knowledge base entries.
func (a *SyntaxAgent) Respond(ctx context.Context, req Request) (<-chan *types.StreamEvent, error) {
	if err := a.load(); err != nil {
		return nil, err
	}

	return streamEvents(ctx, KindSyntax, func(ctx context.Context, em *emitter) error {
		names := a.commandWords(req.Query)
		if len(names) == 0 {
			em.Token("I don't have a reference entry for that. Covered commands: " + strings.Join(a.known(), ", ") + ".\n")
			return nil
		}

		for i, name := range names {
			if i > 0 && !em.Token("\n") {
				return nil
			}
			doc := a.docs[name]
			for _, part := range renderDoc(doc) {
				if !em.Token(part) {
					return nil
				}
			}
		}
		return nil
	}), nil
}

// commandWords lexes the query as shell and returns known command names in
// order of first appearance. The lexer separates words from strings and
// operators, so command names inside quoted prose are not matched twice.
func (a *SyntaxAgent) commandWords(query string) []string {
	seen := make(map[string]bool)
	var out []string

	add := func(word string) {
		if doc, ok := a.docs[word]; ok && !seen[doc.Name] {
			seen[doc.Name] = true
			out = append(out, doc.Name)
		}
	}

	lexer := lexers.Get("bash")
	if lexer == nil {
		for _, f := range strings.Fields(query) {
			add(f)
		}
		return out
	}

	it, err := lexer.Tokenise(nil, query)
	if err != nil {
		for _, f := range strings.Fields(query) {
			add(f)
		}
		return out
	}
	for tok := it(); tok != chroma.EOF; tok = it() {
		switch tok.Type {
		case chroma.Name, chroma.NameBuiltin, chroma.Text, chroma.Keyword:
			for _, f := range strings.Fields(tok.Value) {
				add(f)
			}
		}
	}
	return out
}

func (a *SyntaxAgent) known() []string {
	out := make([]string, 0, len(a.docs))
	for name := range a.docs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func renderDoc(doc commandDoc) []string {
	parts := []string{
		fmt.Sprintf("%s: %s\n", doc.Name, doc.Summary),
		fmt.Sprintf("  usage: %s\n", doc.Usage),
	}
	for _, ex := range doc.Examples {
		parts = append(parts, fmt.Sprintf("  %s\n", ex))
	}
	if doc.Notes != "" {
		parts = append(parts, fmt.Sprintf("  %s\n", doc.Notes))
	}
	return parts
}
