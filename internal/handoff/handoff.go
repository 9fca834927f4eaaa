// Package handoff stages content for manual-assist platforms and collects the
// operator's confirmation that it was published by hand.
package handoff

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"

	"github.com/kingrea/crosspost/internal/catalog"
	"github.com/kingrea/crosspost/internal/dispatch"
)

// DirName is the staging directory inside the state directory.
const DirName = "handoff"

// Staged describes content waiting for a human to publish it.
type Staged struct {
	Sequence  int
	Platform  catalog.Platform
	Title     string
	Path      string
	EditorURL string
	StagedAt  time.Time
	Copied    bool
	Opened    bool
}

// Desk owns the staging directory.
type Desk struct {
	dir       string
	clipboard bool
	autoOpen  bool
	copy      func(string) error
	open      func(string) error
	now       func() time.Time
}

// Option customizes a Desk.
type Option func(*Desk)

// WithClipboard toggles copying staged content to the system clipboard.
func WithClipboard(enabled bool) Option {
	return func(d *Desk) { d.clipboard = enabled }
}

// WithAutoOpen toggles opening the platform editor in a browser.
func WithAutoOpen(enabled bool) Option {
	return func(d *Desk) { d.autoOpen = enabled }
}

// WithCopier replaces the clipboard writer.
func WithCopier(fn func(string) error) Option {
	return func(d *Desk) {
		if fn != nil {
			d.copy = fn
		}
	}
}

// WithOpener replaces the browser launcher.
func WithOpener(fn func(string) error) Option {
	return func(d *Desk) {
		if fn != nil {
			d.open = fn
		}
	}
}

// WithClock overrides the staging timestamp source.
func WithClock(now func() time.Time) Option {
	return func(d *Desk) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDesk stages into dir.
func NewDesk(dir string, opts ...Option) *Desk {
	d := &Desk{
		dir:  dir,
		copy: clipboard.WriteAll,
		open: openBrowser,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dir returns the staging directory.
func (d *Desk) Dir() string {
	return d.dir
}

func fileName(platform catalog.Platform, sequence int) string {
	return fmt.Sprintf("%s_%d.md", platform, sequence)
}

// Stage writes prepared content to disk and, when enabled, copies it to the
// clipboard and opens the editor. Clipboard and browser problems are
// reported in the returned Staged but never fail staging.
func (d *Desk) Stage(_ context.Context, p dispatch.Prepared) (Staged, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return Staged{}, fmt.Errorf("handoff: ensure dir: %w", err)
	}
	doc := p.Document()
	path := filepath.Join(d.dir, fileName(p.Platform, p.Sequence))
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return Staged{}, fmt.Errorf("handoff: write %s: %w", path, err)
	}
	staged := Staged{
		Sequence:  p.Sequence,
		Platform:  p.Platform,
		Title:     p.Title,
		Path:      path,
		EditorURL: p.EditorURL,
		StagedAt:  d.now().UTC(),
	}
	if d.clipboard {
		staged.Copied = d.copy(p.Body) == nil
	}
	if d.autoOpen && p.EditorURL != "" {
		staged.Opened = d.open(p.EditorURL) == nil
	}
	return staged, nil
}

// Publisher answers whether a pair is already ledgered.
type Publisher interface {
	HasPublished(sequence int, platform catalog.Platform) bool
}

// Pending lists staged hand-offs that the ledger does not yet cover, ordered
// by sequence then dispatch order.
func (d *Desk) Pending(published Publisher) ([]Staged, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("handoff: list: %w", err)
	}
	var out []Staged
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		platform, sequence, ok := parseFileName(entry.Name())
		if !ok {
			continue
		}
		if published != nil && published.HasPublished(sequence, platform) {
			continue
		}
		path := filepath.Join(d.dir, entry.Name())
		staged := Staged{Sequence: sequence, Platform: platform, Path: path, Title: readTitle(path)}
		if info, err := entry.Info(); err == nil {
			staged.StagedAt = info.ModTime().UTC()
		}
		out = append(out, staged)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].Platform.Rank() < out[j].Platform.Rank()
	})
	return out, nil
}

// Clear removes the staged file for a confirmed pair.
func (d *Desk) Clear(sequence int, platform catalog.Platform) error {
	err := os.Remove(filepath.Join(d.dir, fileName(platform, sequence)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("handoff: clear: %w", err)
	}
	return nil
}

func parseFileName(name string) (catalog.Platform, int, bool) {
	base, ok := strings.CutSuffix(name, ".md")
	if !ok {
		return "", 0, false
	}
	idx := strings.LastIndex(base, "_")
	if idx <= 0 {
		return "", 0, false
	}
	platform := catalog.Platform(base[:idx])
	sequence, err := strconv.Atoi(base[idx+1:])
	if err != nil || sequence <= 0 || !platform.Known() {
		return "", 0, false
	}
	return platform, sequence, true
}

func readTitle(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	line, _ := bufio.NewReader(f).ReadString('\n')
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "# "))
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// Confirmation is the operator's answer for one staged pair.
type Confirmation struct {
	Confirmed bool
	Reference string
}

// Confirmer decides whether a staged hand-off has been published.
type Confirmer interface {
	Confirm(ctx context.Context, staged Staged) (Confirmation, error)
}

// Deferred never confirms during a run. The operator confirms later with
// the confirm command, the picker or the HTTP surface.
type Deferred struct{}

// Confirm always reports unconfirmed.
func (Deferred) Confirm(context.Context, Staged) (Confirmation, error) {
	return Confirmation{}, nil
}

// Prompt asks a y/N question on a terminal.
type Prompt struct {
	In  io.Reader
	Out io.Writer

	reader *bufio.Reader
}

// Confirm blocks until the operator answers. Anything but y/yes is a no.
func (p *Prompt) Confirm(ctx context.Context, staged Staged) (Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return Confirmation{}, err
	}
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	fmt.Fprintf(p.Out, "\n%s for item %d is staged at %s\n", staged.Platform.Label(), staged.Sequence, staged.Path)
	if staged.EditorURL != "" {
		fmt.Fprintf(p.Out, "Editor: %s\n", staged.EditorURL)
	}
	fmt.Fprint(p.Out, "Published it? [y/N] ")
	answer, err := p.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return Confirmation{}, fmt.Errorf("handoff: read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
	default:
		return Confirmation{}, nil
	}
	fmt.Fprint(p.Out, "Published URL (optional): ")
	ref, err := p.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return Confirmation{}, fmt.Errorf("handoff: read reference: %w", err)
	}
	return Confirmation{Confirmed: true, Reference: strings.TrimSpace(ref)}, nil
}
