package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/jfourny/profilescout/internal/crawler"
)

// SnapshotArchiver names HTML snapshots deterministically from the page URL
// and hands them to a Provider. Object names are partitioned by fetch date:
//
//	<prefix>/2026/08/23/<sha256-of-url>.html
type SnapshotArchiver struct {
	provider Provider
	prefix   string
	clock    crawler.Clock
}

// NewSnapshotArchiver wires a provider behind the crawler's Archiver
// interface. A nil clock defaults to the system clock.
func NewSnapshotArchiver(provider Provider, prefix string, clock crawler.Clock) (*SnapshotArchiver, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if clock == nil {
		clock = crawler.SystemClock{}
	}
	return &SnapshotArchiver{
		provider: provider,
		prefix:   strings.Trim(prefix, "/"),
		clock:    clock,
	}, nil
}

// Archive saves the snapshot and returns the object name it was stored under.
func (a *SnapshotArchiver) Archive(ctx context.Context, rawURL string, body []byte) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("url is required")
	}
	name := a.objectName(rawURL)
	if err := a.provider.Save(ctx, name, body); err != nil {
		return "", fmt.Errorf("archive snapshot for %s: %w", rawURL, err)
	}
	return name, nil
}

func (a *SnapshotArchiver) objectName(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	day := a.clock.Now().UTC().Format("2006/01/02")
	name := fmt.Sprintf("%s/%s.html", day, hex.EncodeToString(sum[:]))
	if a.prefix != "" {
		name = a.prefix + "/" + name
	}
	return name
}
