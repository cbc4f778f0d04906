package rooms

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// DefaultPalette holds the cursor colors handed out to connections.
var DefaultPalette = []string{
	"#e74c3c", "#3498db", "#2ecc71", "#f39c12",
	"#9b59b6", "#1abc9c", "#e67e22", "#34495e",
}

type palette struct {
	mu     sync.Mutex
	colors []string
	next   int
}

func newPalette(colors []string) *palette {
	if len(colors) == 0 {
		colors = DefaultPalette
	}
	return &palette{colors: colors}
}

// assign returns the next color round-robin.
func (p *palette) assign() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.colors[p.next%len(p.colors)]
	p.next++
	return c
}

// normalizeName trims raw, caps it at max runes and falls back to def.
func normalizeName(raw, def string, max int) string {
	name := strings.TrimSpace(raw)
	if max > 0 && utf8.RuneCountInString(name) > max {
		runes := []rune(name)
		name = strings.TrimSpace(string(runes[:max]))
	}
	if name == "" {
		return def
	}
	return name
}
