package agents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/aegish/aegish/pkg/llm"
	"github.com/aegish/aegish/pkg/sanitize"
	"github.com/aegish/aegish/pkg/types"
)

// ErrNoProvider is returned when a networked agent runs without a
// configured model provider.
var ErrNoProvider = errors.New("no model provider configured")

const (
	maxFetchedPages = 2
	maxPageBytes    = 1 << 20
	maxExcerptRunes = 4000
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

const researcherPrompt = `You are a research assistant embedded in a terminal. Answer using the fetched page excerpts when they are relevant, and say so when they are not. Be concise and concrete; prefer commands and exact names over prose.`

// ResearcherAgent answers questions that need live web content. URLs named
// in the query are fetched and their text handed to the model alongside
// the question. Everything leaving the machine passes the sanitizer first.
type ResearcherAgent struct {
	provider  llm.Provider
	sanitizer *sanitize.Sanitizer
	client    *http.Client
}

// ResearcherOption configures a ResearcherAgent.
type ResearcherOption func(*ResearcherAgent)

// WithHTTPClient overrides the fetch client, used by tests.
func WithHTTPClient(client *http.Client) ResearcherOption {
	return func(a *ResearcherAgent) {
		a.client = client
	}
}

// NewResearcherAgent creates the researcher. provider may be nil, in which
// case Respond fails with ErrNoProvider.
func NewResearcherAgent(provider llm.Provider, sanitizer *sanitize.Sanitizer, opts ...ResearcherOption) *ResearcherAgent {
	a := &ResearcherAgent{
		provider:  provider,
		sanitizer: sanitizer,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *ResearcherAgent) Kind() Kind { return KindResearcher }

func (a *ResearcherAgent) Respond(ctx context.Context, req Request) (<-chan *types.StreamEvent, error) {
	if a.provider == nil {
		return nil, fmt.Errorf("researcher unavailable: %w", ErrNoProvider)
	}

	return streamEvents(ctx, KindResearcher, func(ctx context.Context, em *emitter) error {
		var excerpts []string
		for _, url := range firstURLs(req.Query, maxFetchedPages) {
			text, err := a.fetchPageText(ctx, url)
			if err != nil {
				excerpts = append(excerpts, fmt.Sprintf("[%s could not be fetched: %v]", url, err))
				continue
			}
			excerpts = append(excerpts, fmt.Sprintf("Excerpt from %s:\n%s", url, text))
		}

		user := a.sanitizer.Clean(req.Query)
		if len(excerpts) > 0 {
			user += "\n\n" + a.sanitizer.Clean(strings.Join(excerpts, "\n\n"))
		}

		stream, err := a.provider.StreamCompletion(ctx, []*types.Message{
			types.NewSystemMessage(researcherPrompt),
			types.NewUserMessage(user),
		})
		if err != nil {
			return fmt.Errorf("research query failed: %w", err)
		}
		return forwardStream(stream, em)
	}), nil
}

// fetchPageText downloads a page and reduces it to visible text.
func (a *ResearcherAgent) fetchPageText(ctx context.Context, url string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("User-Agent", "aegish-researcher/1.0")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}

	text := extractText(doc)
	runes := []rune(text)
	if len(runes) > maxExcerptRunes {
		text = string(runes[:maxExcerptRunes])
	}
	return text, nil
}

func firstURLs(query string, n int) []string {
	urls := urlPattern.FindAllString(query, n)
	for i, u := range urls {
		urls[i] = strings.TrimRight(u, ".,;")
	}
	return urls
}

// extractText walks the DOM collecting text nodes, skipping markup that
// never renders as content.
func extractText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "head", "iframe", "svg":
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				sb.WriteString(t)
				sb.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

// forwardStream relays provider chunks as token events until the stream
// finishes or the consumer goes away.
func forwardStream(stream <-chan *llm.StreamChunk, em *emitter) error {
	for chunk := range stream {
		if chunk.IsError() {
			return chunk.Error
		}
		if chunk.Content != "" && !em.Token(chunk.Content) {
			return nil
		}
	}
	return nil
}
