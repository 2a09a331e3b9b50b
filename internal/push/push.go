package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/ride-dispatch/internal/models"
)

// Notifier posts requester-facing notifications (offer taken, offer
// completed) to a push provider endpoint. Strictly best-effort: callers log
// failures and move on.
type Notifier struct {
	Endpoint string
	Key      string
	Client   *http.Client
}

func NewNotifier(endpoint, key string) *Notifier {
	return &Notifier{Endpoint: endpoint, Key: key, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (n *Notifier) Notify(ctx context.Context, event string, o models.Offer) error {
	body := map[string]any{
		"event":        event,
		"offer_id":     o.ID,
		"requester_id": o.RequesterID,
		"driver_id":    o.AssignedDriverID,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.Key != "" {
		req.Header.Set("Authorization", "Bearer "+n.Key)
	}
	resp, err := n.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("push provider status %s", resp.Status)
	}
	return nil
}
