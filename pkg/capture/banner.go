package capture

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	bannerTitle = " LOG OUTPUT "
	bannerWidth = 80
)

// BannerText returns the title centered in a line of '='.
func BannerText() string {
	pad := bannerWidth - len(bannerTitle)
	left := pad / 2
	return strings.Repeat("=", left) + bannerTitle + strings.Repeat("=", pad-left)
}

// WriteBanner marks the start of log output on w.
func WriteBanner(w io.Writer, style lipgloss.Style) error {
	_, err := fmt.Fprintf(w, "\n%s\n", style.Render(BannerText()))
	return err
}
