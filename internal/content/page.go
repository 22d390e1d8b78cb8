// Package content loads the portal's markdown pages and answers the tag
// lookups the solution and community views are built from.
package content

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// Page types with special meaning.
const (
	TypeSolution = "solution"
	TypeVideo    = "Video"
)

var frontMatterFence = []byte("---")

// Page is one markdown document and its front-matter.
type Page struct {
	ID            string   `yaml:"id"`
	PrettyName    string   `yaml:"prettyName"`
	Description   string   `yaml:"description"`
	Solution      string   `yaml:"solution"`
	Products      []string `yaml:"products"`
	Product       string   `yaml:"product"`
	Type          string   `yaml:"type"`
	ImageURL      string   `yaml:"imageUrl"`
	URL           string   `yaml:"url"`
	SiteName      string   `yaml:"siteName"`
	IndexName     string   `yaml:"indexName"`
	StackExchange []string `yaml:"stackexchange"`
	Microblog     []string `yaml:"microblog"`

	Body string `yaml:"-"`
	Path string `yaml:"-"`
}

// Tags selects pages by their front-matter.
type Tags struct {
	Solution string
	Products []string
}

// Matches reports whether p carries every non-empty tag of t.
func (t Tags) Matches(p *Page) bool {
	if t.Solution != "" && !strings.EqualFold(t.Solution, p.Solution) {
		return false
	}
	if len(t.Products) == 0 {
		return true
	}
	for _, want := range t.Products {
		if strings.EqualFold(want, p.Product) {
			return true
		}
		for _, have := range p.Products {
			if strings.EqualFold(want, have) {
				return true
			}
		}
	}
	return false
}

// Title returns the display name of the page.
func (p *Page) Title() string {
	if p.PrettyName != "" {
		return p.PrettyName
	}
	return p.ID
}

// ParsePage reads a markdown document with an optional front-matter block.
// rel is the slash path of the file below the content root.
func ParsePage(rel string, data []byte) (*Page, error) {
	p := &Page{}
	body := data

	if fm, rest, ok := splitFrontMatter(data); ok {
		if err := yaml.Unmarshal(fm, p); err != nil {
			return nil, fmt.Errorf("parsing front-matter of %s: %w", rel, err)
		}
		body = rest
	}

	p.Path = rel
	p.Body = strings.TrimLeft(string(body), "\r\n")
	if p.ID == "" {
		p.ID = strings.TrimSuffix(rel, path.Ext(rel))
	}
	if p.PrettyName == "" {
		p.PrettyName = firstHeading(p.Body)
	}
	return p, nil
}

func splitFrontMatter(data []byte) (fm, rest []byte, ok bool) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	if !bytes.HasPrefix(data, frontMatterFence) {
		return nil, data, false
	}
	first := bytes.IndexByte(data, '\n')
	if first < 0 || len(bytes.TrimSpace(data[:first])) != len(frontMatterFence) {
		return nil, data, false
	}
	remainder := data[first+1:]
	for off := 0; off < len(remainder); {
		end := bytes.IndexByte(remainder[off:], '\n')
		line := remainder[off:]
		next := len(remainder)
		if end >= 0 {
			line = remainder[off : off+end]
			next = off + end + 1
		}
		if bytes.Equal(bytes.TrimRight(line, "\r"), frontMatterFence) {
			return remainder[:off], remainder[next:], true
		}
		off = next
	}
	return nil, data, false
}

func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if h, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
			return strings.TrimSpace(h)
		}
	}
	return ""
}
