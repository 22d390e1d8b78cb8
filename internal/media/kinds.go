package media

import (
	_ "embed"
	"fmt"
	"net/url"
	"path"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed targets.toml
var targetsTOML []byte

// Kind classifies a result link by what it points at.
type Kind int

const (
	KindPage Kind = iota
	KindVideo
	KindDocument
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindDocument:
		return "document"
	case KindImage:
		return "image"
	default:
		return "page"
	}
}

type kindRule struct {
	Extensions  []string `toml:"extensions"`
	URLPatterns []string `toml:"url_patterns"`
}

type platformOpener struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
}

type targets struct {
	Kinds     map[string]kindRule       `toml:"kinds"`
	Platforms map[string]platformOpener `toml:"platforms"`
}

// Detector maps URLs to kinds using the embedded rule table.
type Detector struct {
	rules map[Kind]kindRule
	table targets
}

func NewDetector() (*Detector, error) {
	var t targets
	if err := toml.Unmarshal(targetsTOML, &t); err != nil {
		return nil, fmt.Errorf("parsing targets.toml: %w", err)
	}
	d := &Detector{rules: make(map[Kind]kindRule), table: t}
	for name, rule := range t.Kinds {
		switch name {
		case "video":
			d.rules[KindVideo] = rule
		case "document":
			d.rules[KindDocument] = rule
		case "image":
			d.rules[KindImage] = rule
		}
	}
	return d, nil
}

// Detect returns the kind of rawURL. Anything unrecognised is a page.
func (d *Detector) Detect(rawURL string) Kind {
	lower := strings.ToLower(rawURL)
	ext := ""
	if u, err := url.Parse(lower); err == nil {
		ext = strings.TrimPrefix(path.Ext(u.Path), ".")
	}

	// Checked in a fixed order so a video host serving .jpg thumbnails
	// still counts as video.
	for _, k := range []Kind{KindVideo, KindDocument, KindImage} {
		rule, ok := d.rules[k]
		if !ok {
			continue
		}
		if ext != "" && contains(rule.Extensions, ext) {
			return k
		}
		for _, p := range rule.URLPatterns {
			if strings.Contains(lower, p) {
				return k
			}
		}
	}
	return KindPage
}

// PlatformOpener returns the system opener for goos, or the fallback entry.
func (d *Detector) PlatformOpener(goos string) (string, []string) {
	if p, ok := d.table.Platforms[goos]; ok && p.Command != "" {
		return p.Command, p.Args
	}
	if p, ok := d.table.Platforms["fallback"]; ok && p.Command != "" {
		return p.Command, p.Args
	}
	return "open", nil
}

// DefaultOpener is PlatformOpener for the running system.
func (d *Detector) DefaultOpener() (string, []string) {
	return d.PlatformOpener(runtime.GOOS)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
