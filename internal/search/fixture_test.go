package search

import (
	"os"
	"path/filepath"

	"github.com/pders01/devportal/internal/preview"
)

func testDocs() []Document {
	return []Document{
		{
			ID:          "xm/proxy",
			Name:        "Proxy Configuration",
			Description: "Route traffic through a corporate proxy.",
			Body:        "Set the proxy host in the config file.",
			Type:        "Documentation",
			SourceID:    SourceContent,
		},
		{
			ID:          "xm/analytics",
			Name:        "Analytics Setup",
			Description: "Collect analytics events.",
			Body:        "Events can also be sent through the proxy.",
			SourceID:    SourceContent,
		},
		{
			ID:          "community/mvp",
			Name:        "MVP Program",
			Description: "Become an MVP.",
			URL:         "https://mvp.example.org",
			IndexName:   "mvp-site",
			SiteName:    "MVP site",
			SourceID:    SourceContent,
		},
		{
			ID:          "video/proxy-intro",
			Name:        "Proxy Reference Video",
			Description: "Walkthrough.",
			Type:        "Video",
			SourceID:    SourceContent,
		},
		{
			ID:          "xm",
			Name:        "XM Cloud",
			Description: "Headless content management.",
			Type:        "solution",
			SourceID:    SourceContent,
		},
	}
}

func ids(items []preview.ResultItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func texts(cands []preview.SuggestionCandidate) []string {
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.Text)
	}
	return out
}

func writeFile(path, data string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(data), 0o644)
}
