package feed

import (
	"crypto/sha256"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/pders01/devportal/internal/preview"
	"github.com/pders01/devportal/internal/storage"
)

// Posts without a title (microblog entries) are titled with the start of
// their text.
const untitledLimit = 80

var spaceRe = regexp.MustCompile(`\s+`)

// Parsed is one decoded feed document.
type Parsed struct {
	Title       string
	Description string
	Posts       []*storage.Post
}

type Parser struct {
	parser *gofeed.Parser
	policy *bluemonday.Policy
}

func NewParser() *Parser {
	return &Parser{
		parser: gofeed.NewParser(),
		policy: bluemonday.StrictPolicy(),
	}
}

// Parse decodes an RSS or Atom document. Summaries are reduced to plain text.
func (p *Parser) Parse(reader io.Reader, feedID string) (*Parsed, error) {
	feed, err := p.parser.Parse(reader)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	out := &Parsed{
		Title:       strings.TrimSpace(feed.Title),
		Description: p.plainText(feed.Description),
		Posts:       make([]*storage.Post, 0, len(feed.Items)),
	}

	seen := make(map[string]bool, len(feed.Items))
	for _, item := range feed.Items {
		post := &storage.Post{
			ID:      itemID(item),
			FeedID:  feedID,
			Title:   p.plainText(item.Title),
			Summary: p.plainText(getContent(item)),
			Author:  author(item),
			URL:     item.Link,
			Tags:    item.Categories,
		}
		if seen[post.ID] {
			continue
		}
		seen[post.ID] = true

		if post.Title == "" {
			post.Title = preview.Truncate(post.Summary, untitledLimit, true)
		}
		if item.PublishedParsed != nil {
			post.Published = *item.PublishedParsed
		}
		if item.UpdatedParsed != nil {
			post.Updated = *item.UpdatedParsed
		}
		if post.Published.IsZero() {
			post.Published = post.Updated
		}

		out.Posts = append(out.Posts, post)
	}

	return out, nil
}

func (p *Parser) plainText(s string) string {
	s = html.UnescapeString(p.policy.Sanitize(s))
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func getContent(item *gofeed.Item) string {
	if item.Description != "" {
		return item.Description
	}
	return item.Content
}

func author(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			return a.Name
		}
	}
	return ""
}

// itemID prefers the GUID, then the link. Items with neither get a stable
// hash of their content so refetches do not duplicate them.
func itemID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	if item.Link != "" {
		return item.Link
	}
	sum := sha256.Sum256([]byte(item.Title + "\x00" + item.Published + "\x00" + item.Description))
	return fmt.Sprintf("%x", sum[:8])
}
