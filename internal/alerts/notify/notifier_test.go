package notify

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	alertapp "dvrwatch/internal/alerts/application"
	alerts "dvrwatch/internal/alerts/domain"
)

type captureChannel struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (c *captureChannel) Name() string { return "capture" }

func (c *captureChannel) Send(_ context.Context, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *captureChannel) messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.sent))
	copy(out, c.sent)
	return out
}

func offlineEvent() alertapp.Event {
	ts := time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC)
	return alertapp.Event{
		Type: alerts.KindWentOffline,
		Alert: alerts.Alert{
			ID:        "alert-1",
			DeviceID:  "dev-1",
			Kind:      alerts.KindWentOffline,
			Message:   alerts.OfflineMessage("DVR Entrepôt", "192.168.1.50"),
			Timestamp: ts,
		},
		Device: alertapp.DeviceInfo{
			ID:           "dev-1",
			Name:         "DVR Entrepôt",
			Kind:         "dvr",
			Address:      "192.168.1.50",
			ContactEmail: "ops@example.fr",
		},
	}
}

func TestNotifierDeliversOfflineEvent(t *testing.T) {
	channel := &captureChannel{}
	notifier, err := NewNotifier([]Channel{channel}, WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}

	notifier.Publish(context.Background(), offlineEvent())
	notifier.Close()

	msgs := channel.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	msg := msgs[0]
	if !strings.Contains(msg.Subject, "hors ligne") {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if !strings.Contains(msg.Body, "DVR Entrepôt") || !strings.Contains(msg.Body, "192.168.1.50") {
		t.Fatalf("body missing device details: %q", msg.Body)
	}
	if !strings.Contains(msg.Body, "Hors ligne") {
		t.Fatalf("body missing event label: %q", msg.Body)
	}
	if len(msg.To) != 1 || msg.To[0] != "ops@example.fr" {
		t.Fatalf("expected contact recipient, got %v", msg.To)
	}
}

func TestNotifierRecoverySubject(t *testing.T) {
	channel := &captureChannel{}
	notifier, err := NewNotifier([]Channel{channel}, WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}

	event := offlineEvent()
	event.Type = alerts.KindRecovered
	event.Alert.Kind = alerts.KindRecovered
	event.Alert.Message = alerts.RecoveredMessage("DVR Entrepôt", "192.168.1.50")
	notifier.Publish(context.Background(), event)
	notifier.Close()

	msgs := channel.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0].Subject, "retour en ligne") {
		t.Fatalf("unexpected subject %q", msgs[0].Subject)
	}
	if !strings.Contains(msgs[0].Body, "Retour en ligne") {
		t.Fatalf("body missing event label: %q", msgs[0].Body)
	}
}

func TestNotifierPublishAfterCloseIsNoop(t *testing.T) {
	channel := &captureChannel{}
	notifier, err := NewNotifier([]Channel{channel}, WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	notifier.Close()
	notifier.Publish(context.Background(), offlineEvent())
	if got := len(channel.messages()); got != 0 {
		t.Fatalf("expected no delivery after close, got %d", got)
	}
}

func TestNotifierWithoutChannels(t *testing.T) {
	notifier, err := NewNotifier(nil, WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	notifier.Publish(context.Background(), offlineEvent())
	notifier.Close()
}

func TestWebhookChannelPayload(t *testing.T) {
	payloadCh := make(chan webhookPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		payloadCh <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL)
	if err != nil {
		t.Fatalf("new webhook channel: %v", err)
	}
	msg := Message{Subject: "Alerte", Body: "L'équipement DVR Entrepôt (192.168.1.50) est hors ligne"}
	if err := channel.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case payload := <-payloadCh:
		if payload.Subject != "Alerte" {
			t.Fatalf("unexpected subject %q", payload.Subject)
		}
		if !strings.Contains(payload.Text, "hors ligne") {
			t.Fatalf("unexpected text %q", payload.Text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for webhook payload")
	}
}

func TestWebhookChannelNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL)
	if err != nil {
		t.Fatalf("new webhook channel: %v", err)
	}
	if err := channel.Send(context.Background(), Message{Subject: "x", Body: "y"}); err == nil {
		t.Fatal("expected error on non-2xx response")
	}
}

func TestSMTPChannelRecipientFallback(t *testing.T) {
	channel, err := NewSMTPChannel("smtp.example.fr:587", "monitor@example.fr", []string{"fallback@example.fr"})
	if err != nil {
		t.Fatalf("new smtp channel: %v", err)
	}
	var gotTo []string
	var gotBody string
	channel.sendMail = func(_ string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotTo = to
		gotBody = string(msg)
		return nil
	}

	msg := Message{Subject: "Alerte équipement hors ligne : DVR", Body: "corps"}
	if err := channel.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(gotTo) != 1 || gotTo[0] != "fallback@example.fr" {
		t.Fatalf("expected fallback recipient, got %v", gotTo)
	}
	wantSubject := "Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject)
	if !strings.Contains(gotBody, wantSubject) {
		t.Fatalf("missing subject header in %q", gotBody)
	}

	msg.To = []string{"contact@example.fr"}
	if err := channel.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(gotTo) != 1 || gotTo[0] != "contact@example.fr" {
		t.Fatalf("expected message recipient, got %v", gotTo)
	}
}

func TestSMTPChannelSubjectHeaderEncoding(t *testing.T) {
	channel, err := NewSMTPChannel("smtp.example.fr:587", "monitor@example.fr", []string{"ops@example.fr"})
	if err != nil {
		t.Fatalf("new smtp channel: %v", err)
	}
	var gotBody string
	channel.sendMail = func(_ string, _ smtp.Auth, _ string, _ []string, msg []byte) error {
		gotBody = string(msg)
		return nil
	}

	accented := Message{Subject: "Équipement hors ligne : Camera quai nord", Body: "corps"}
	if err := channel.Send(context.Background(), accented); err != nil {
		t.Fatalf("send: %v", err)
	}
	if strings.Contains(gotBody, "Subject: Équipement") {
		t.Fatalf("accented subject written raw in %q", gotBody)
	}
	if !strings.Contains(gotBody, "Subject: =?utf-8?q?") {
		t.Fatalf("accented subject not q-encoded in %q", gotBody)
	}

	plain := Message{Subject: "Device offline: dvr-01", Body: "corps"}
	if err := channel.Send(context.Background(), plain); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(gotBody, "Subject: Device offline: dvr-01") {
		t.Fatalf("ascii subject should pass through, got %q", gotBody)
	}
}
