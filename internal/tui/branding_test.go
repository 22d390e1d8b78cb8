package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pders01/devportal/internal/config"
)

func TestShowBanner(t *testing.T) {
	var buf bytes.Buffer
	ShowBanner(&buf, "1.0.0-test")
	out := buf.String()

	assert.Contains(t, out, "Developer Portal v1.0.0-test")
	assert.True(t, strings.Contains(out, "╔") && strings.Contains(out, "╝"), "double border expected: %s", out)
}

func TestShowBannerDevVersion(t *testing.T) {
	var buf bytes.Buffer
	ShowBanner(&buf, "dev")
	out := buf.String()

	assert.Contains(t, out, "Developer Portal")
	assert.NotContains(t, out, "vdev")
}

func TestGetCompactBanner(t *testing.T) {
	out := GetCompactBanner("Test message")
	assert.Contains(t, out, "Test message")
	for _, line := range LogoLines {
		assert.Contains(t, out, strings.TrimSpace(line))
	}
}

func TestApplyTheme(t *testing.T) {
	defer ApplyTheme(config.Default().UI.Colors)

	colors := config.Default().UI.Colors
	colors.Primary = "#123456"
	ApplyTheme(colors)
	assert.Equal(t, "#123456", string(PrimaryColor))
}
