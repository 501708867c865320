// Package render produces the static, password-gated calendar page.
package render

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"famcal/internal/model"
	"famcal/internal/window"
)

//go:embed templates/site.html
var siteFS embed.FS

var siteTemplate = template.Must(template.ParseFS(siteFS, "templates/site.html"))

// PageData is the input of Page.
type PageData struct {
	Title string
	// Events must already be sorted and limited to the horizon
	// (see window.Horizon).
	Events []model.Event
	// PasswordHash is the hex SHA-256 of Salt+password. Empty disables the
	// password gate.
	PasswordHash string
	Salt         string
	GeneratedAt  time.Time
}

type line struct {
	Time  string
	Title string
}

type day struct {
	Label string
	Lines []line
}

// Fragment renders one heading per distinct day label, in the order first
// encountered, each followed by one line per event. Timed events carry a
// 12-hour clock label; all-day events have none.
func Fragment(events []model.Event) (template.HTML, error) {
	var buf bytes.Buffer
	if err := siteTemplate.ExecuteTemplate(&buf, "fragment", groupDays(events)); err != nil {
		return "", fmt.Errorf("render fragment: %w", err)
	}
	// Output of html/template is already escaped.
	return template.HTML(buf.String()), nil
}

// Page writes the complete self-contained HTML document.
func Page(w io.Writer, data PageData) error {
	content, err := Fragment(data.Events)
	if err != nil {
		return err
	}
	if data.Title == "" {
		data.Title = "Family Calendar"
	}
	if data.GeneratedAt.IsZero() {
		data.GeneratedAt = time.Now()
	}

	ctx := struct {
		PageData
		Content template.HTML
		Gated   bool
	}{
		PageData: data,
		Content:  content,
		Gated:    data.PasswordHash != "",
	}
	if err := siteTemplate.ExecuteTemplate(w, "site.html", ctx); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return nil
}

// WriteSite renders the page to path atomically (temp file + rename).
func WriteSite(path string, data PageData) error {
	if path == "" {
		return errors.New("output path is empty")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".famcal-site-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := Page(tmp, data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// HashPassword returns the hex SHA-256 digest of salt+password, the value
// the page's gate script compares against.
func HashPassword(salt, password string) string {
	sum := sha256.Sum256([]byte(salt + password))
	return hex.EncodeToString(sum[:])
}

func groupDays(events []model.Event) []day {
	days := make([]day, 0)
	for _, ev := range events {
		label := window.DayLabel(ev.Start)
		if n := len(days); n == 0 || days[n-1].Label != label {
			days = append(days, day{Label: label})
		}
		last := &days[len(days)-1]
		last.Lines = append(last.Lines, line{Time: window.TimeLabel(ev), Title: ev.Title})
	}
	return days
}
