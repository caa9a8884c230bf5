package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goonsradar/goonsradar/internal/config"
	"github.com/goonsradar/goonsradar/internal/feed"
	"github.com/goonsradar/goonsradar/internal/reconcile"
	"github.com/goonsradar/goonsradar/internal/store"
)

const deliveryTimeout = 10 * time.Second

// Change is a new most-recent sighting in one mode.
type Change struct {
	Mode     feed.Mode           `json:"mode"`
	Current  reconcile.Sighting  `json:"current"`
	Previous *reconcile.Sighting `json:"previous,omitempty"`
}

// Diff compares the most recent sighting of each mode between two
// snapshots. A nil prev yields no changes.
func Diff(prev, next *store.Snapshot) []Change {
	if prev == nil || next == nil {
		return nil
	}
	var out []Change
	for _, m := range feed.Modes {
		cur, ok := next.Mode(m).Newest()
		if !ok {
			continue
		}
		old, had := prev.Mode(m).Newest()
		if had && old == cur {
			continue
		}
		c := Change{Mode: m, Current: cur}
		if had {
			c.Previous = &old
		}
		out = append(out, c)
	}
	return out
}

// Notifier posts position changes to the configured webhooks.
// Delivery errors are logged only.
type Notifier struct {
	webhooks []config.WebhookConfig
	client   *http.Client
}

// New creates a Notifier. It returns nil when no webhook is configured.
func New(cfg config.NotifyConfig) *Notifier {
	if len(cfg.Webhooks) == 0 {
		return nil
	}
	return &Notifier{
		webhooks: cfg.Webhooks,
		client:   &http.Client{Timeout: deliveryTimeout},
	}
}

// Run consumes published snapshots (see store.Subscribe) and delivers every
// change until ctx is cancelled or updates is closed. The first snapshot
// received only establishes the baseline.
func (n *Notifier) Run(ctx context.Context, updates <-chan *store.Snapshot) {
	var prev *store.Snapshot
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if changes := Diff(prev, snap); len(changes) > 0 {
				n.Deliver(ctx, changes)
			}
			prev = snap
		}
	}
}

// Deliver sends changes to all configured targets.
func (n *Notifier) Deliver(ctx context.Context, changes []Change) {
	for _, wh := range n.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = n.sendSlack(ctx, url, changes)
		case "http":
			err = n.sendHTTP(ctx, url, changes)
		default:
			slog.Warn("notify: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err != nil {
			slog.Error("notify: webhook delivery failed", "type", wh.Type, "err", err)
		} else {
			slog.Debug("notify: webhook delivered", "type", wh.Type, "changes", len(changes))
		}
	}
}

func (n *Notifier) sendSlack(ctx context.Context, url string, changes []Change) error {
	body, _ := json.Marshal(map[string]string{"text": Message(changes)})
	return n.post(ctx, url, body)
}

func (n *Notifier) sendHTTP(ctx context.Context, url string, changes []Change) error {
	body, _ := json.Marshal(map[string]any{
		"event":   "goons_moved",
		"changes": changes,
	})
	return n.post(ctx, url, body)
}

func (n *Notifier) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// Message renders changes as one chat line per mode.
func Message(changes []Change) string {
	lines := make([]string, 0, len(changes))
	for _, c := range changes {
		line := fmt.Sprintf("🐺 三狗位置更新（%s）：%s - %s", c.Mode, c.Current.Map, c.Current.Time)
		if c.Previous != nil {
			line += fmt.Sprintf("（之前：%s - %s）", c.Previous.Map, c.Previous.Time)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
