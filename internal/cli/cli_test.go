package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famcal/internal/config"
	"famcal/internal/render"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	base := []string{
		"--config", filepath.Join(dir, "famcal.yaml"),
		"--env-file", filepath.Join(dir, "missing.env"),
		"--log-level", "error",
	}

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, base...))
	err := cmd.Execute()
	return out.String(), err
}

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	today := time.Now().Format("20060102")
	body := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//famcal//test//EN\r\n" +
		"BEGIN:VEVENT\r\nUID:a\r\nDTSTAMP:20240601T000000Z\r\nDTSTART;VALUE=DATE:" + today + "\r\nSUMMARY:Garbage day\r\nEND:VEVENT\r\n" +
		"BEGIN:VEVENT\r\nUID:b\r\nDTSTAMP:20240601T000000Z\r\nDTSTART;VALUE=DATE:19990101\r\nSUMMARY:Long ago\r\nEND:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHashPassword(t *testing.T) {
	t.Parallel()

	out, err := run(t, "", "hash-password", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, render.HashPassword("", "hunter2"), strings.TrimSpace(out))

	out, err = run(t, "", "hash-password", "--salt", "pepper", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, render.HashPassword("pepper", "hunter2"), strings.TrimSpace(out))

	out, err = run(t, "hunter2\n", "hash-password")
	require.NoError(t, err)
	assert.Equal(t, render.HashPassword("", "hunter2"), strings.TrimSpace(out))

	_, err = run(t, "", "hash-password")
	assert.Error(t, err)
}

func TestEvents_PrintsMergedJSON(t *testing.T) {
	srv := feedServer(t)
	t.Setenv("FAMCAL_FEEDS", "family="+srv.URL)

	out, err := run(t, "", "events")
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "family", got[0]["source"])

	out, err = run(t, "", "events", "--horizon")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Garbage day", got[0]["title"])
	assert.Equal(t, true, got[0]["allDay"])
}

func TestEvents_NoFeeds(t *testing.T) {
	t.Setenv("FAMCAL_FEEDS", "")

	_, err := run(t, "", "events")
	assert.ErrorIs(t, err, errNoFeeds)
}

func TestGenerate_WritesGatedPage(t *testing.T) {
	srv := feedServer(t)
	t.Setenv("FAMCAL_FEEDS", "family|Home: ="+srv.URL)
	t.Setenv("SITE_PASSWORD_HASH", render.HashPassword("", "secret"))

	out := filepath.Join(t.TempDir(), "site", "index.html")
	stdout, err := run(t, "", "generate", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "generated (1 events)")

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	require.NoError(t, err)

	assert.Equal(t, 1, doc.Find("#login").Length())
	assert.True(t, doc.Find("#content").HasClass("hidden"))
	assert.Equal(t, "- Home: Garbage day", doc.Find("#content .event").Text())
}

func TestLoadConfig_RejectsInvalidTimezone(t *testing.T) {
	t.Setenv("FAMCAL_TIMEZONE", "Mars/Olympus_Mons")

	_, err := run(t, "", "events")
	assert.ErrorContains(t, err, "timezone")
}

func TestFeedSources_SkipsEmptyURLs(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.ICS = []config.ICSConfig{
		{ID: "a", URL: "https://a.example.com/a.ics", Label: "A: "},
		{ID: "b", URL: "  "},
	}
	sources := feedSources(cfg)
	require.Len(t, sources, 1)
	assert.Equal(t, "a", sources[0].ID)
	assert.Equal(t, "A: ", sources[0].Label)
}

func TestCaptureOptions(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Listen = "0.0.0.0:8080"
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "u", Password: "p"}

	o := captureOptions(cfg)
	assert.Equal(t, "http://127.0.0.1:8080/", o.URL)
	assert.Equal(t, "preview.png", o.OutputPath)
	assert.Equal(t, "u", o.Username)
}
