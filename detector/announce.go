package detector

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/layer-3/walletsso/core"
)

// probe broadcasts a provider request and collects announcements for the full window.
// The wait is not cut short; whatever answered by then is used.
func (d *Detector) probe(ctx context.Context) []core.Announcement {
	announcer, ok := d.env.(core.Announcer)
	if !ok {
		return nil
	}

	var (
		mu    sync.Mutex
		seen  = make(map[string]bool)
		found []core.Announcement
	)

	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("provider announcement probe failed", map[string]any{"error": fmt.Sprint(r)})
		}
	}()

	remove := announcer.OnAnnounce(func(a core.Announcement) {
		if a.Provider == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()

		key := a.Info.UUID
		if key == "" {
			key = a.Info.RDNS + "|" + a.Info.Name
		}
		if seen[key] {
			return
		}
		seen[key] = true
		found = append(found, a)
	})
	defer remove()

	announcer.RequestProviders()

	timer := time.NewTimer(d.window)
	defer timer.Stop()
	<-timer.C

	mu.Lock()
	out := append([]core.Announcement(nil), found...)
	mu.Unlock()

	d.logger.Debug("provider announcements collected", map[string]any{"count": len(out)})
	return out
}

// announcementPool hands out each announcement to at most one registry entry
type announcementPool struct {
	items   []core.Announcement
	claimed []bool
}

func newAnnouncementPool(items []core.Announcement) *announcementPool {
	return &announcementPool{
		items:   items,
		claimed: make([]bool, len(items)),
	}
}

func (p *announcementPool) claim(desc core.WalletDescriptor) (core.Announcement, bool) {
	// An exact reverse DNS match beats any name match
	for i, a := range p.items {
		if !p.claimed[i] && desc.RDNS != "" && strings.EqualFold(a.Info.RDNS, desc.RDNS) {
			p.claimed[i] = true
			return a, true
		}
	}
	for i, a := range p.items {
		if !p.claimed[i] && namesMatch(a.Info.Name, desc.Name) {
			p.claimed[i] = true
			return a, true
		}
	}
	return core.Announcement{}, false
}

// namesMatch compares case-insensitively, accepting either name containing the other
func namesMatch(announced, registered string) bool {
	a := strings.ToLower(strings.TrimSpace(announced))
	r := strings.ToLower(strings.TrimSpace(registered))
	if a == "" || r == "" {
		return false
	}
	return strings.Contains(a, r) || strings.Contains(r, a)
}
