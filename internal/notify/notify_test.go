package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"relay-chat/internal/domain/user"
	"relay-chat/pkg/logger"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokens map[string][]string

func (f fakeTokens) GetPushTokens(ctx context.Context, uid string) ([]user.PushToken, error) {
	if uid == "broken" {
		return nil, errors.New("store offline")
	}
	var out []user.PushToken
	for _, tok := range f[uid] {
		out = append(out, user.PushToken{Token: tok})
	}
	return out, nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent []Notification
	fail map[string]bool
}

func (s *recordingSender) Send(ctx context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[n.Token] {
		return errors.New("device unregistered")
	}
	s.sent = append(s.sent, n)
	return nil
}

func TestDispatchIsolatesTokenFailures(t *testing.T) {
	tokens := fakeTokens{
		"b1": {"tb1", "tb2"},
		"c1": {"tc1"},
	}
	sender := &recordingSender{fail: map[string]bool{"tb1": true}}
	d := NewDispatcher(tokens, sender, Config{Timeout: time.Second}, logger.NewNop())

	task := d.Dispatch(context.Background(), []string{"b1", "broken", "c1"}, "Ada Lovelace", "hi", "K1")
	report, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Recipients: 3, Attempted: 3, Delivered: 2, Failed: 1}, report)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	for _, n := range sender.sent {
		assert.Equal(t, "Ada Lovelace", n.Title)
		assert.Equal(t, "hi", n.Body)
		assert.Equal(t, "K1", n.ChatID)
	}
}

func TestDispatchSurvivesCallerCancellation(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(fakeTokens{"b1": {"tb1"}}, sender, Config{Timeout: time.Second}, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	task := d.Dispatch(ctx, []string{"b1"}, "t", "b", "K1")
	cancel()
	d.Wait()

	select {
	case <-task.Done():
	default:
		require.FailNow(t, "task not done after Dispatcher.Wait")
	}
	report, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Delivered)
}

func TestDispatchWithNoRecipientsIsDone(t *testing.T) {
	d := NewDispatcher(fakeTokens{}, &recordingSender{}, Config{}, logger.NewNop())
	task := d.Dispatch(context.Background(), nil, "t", "b", "K1")
	select {
	case <-task.Done():
	default:
		assert.Fail(t, "empty dispatch should finish immediately")
	}
}

func TestExpoSenderPayload(t *testing.T) {
	var got expoRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"status":"ok","id":"x"}}`))
	}))
	defer srv.Close()

	s := NewExpoSender(srv.URL, srv.Client())
	err := s.Send(context.Background(), Notification{Token: "ExponentPushToken[abc]", Title: "Ada Lovelace", Body: "hi", ChatID: "K1"})
	require.NoError(t, err)
	assert.Equal(t, "ExponentPushToken[abc]", got.To)
	assert.Equal(t, "Ada Lovelace", got.Title)
	assert.Equal(t, "hi", got.Body)
	assert.Equal(t, "K1", got.Data["chatId"])
}

func TestExpoSenderErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusInternalServerError, "boom"},
		{"ticket error", http.StatusOK, `{"data":{"status":"error","message":"DeviceNotRegistered"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			s := NewExpoSender(srv.URL, srv.Client())
			assert.Error(t, s.Send(context.Background(), Notification{Token: "ExponentPushToken[x]"}))
		})
	}
}

type fakeMessaging struct {
	got *messaging.Message
}

func (f *fakeMessaging) Send(ctx context.Context, m *messaging.Message) (string, error) {
	f.got = m
	return "projects/x/messages/1", nil
}

func TestRouterPicksSenderByToken(t *testing.T) {
	expo := &recordingSender{}
	fm := &fakeMessaging{}
	r := Router{Expo: expo, FCM: NewFCMSender(fm)}

	require.NoError(t, r.Send(context.Background(), Notification{Token: "ExponentPushToken[a]", Title: "t"}))
	require.NoError(t, r.Send(context.Background(), Notification{Token: "fcm-device-token", Title: "t", ChatID: "K1"}))
	assert.Len(t, expo.sent, 1)
	require.NotNil(t, fm.got)
	assert.Equal(t, "fcm-device-token", fm.got.Token)
	assert.Equal(t, "K1", fm.got.Data["chatId"])

	assert.ErrorIs(t, (Router{}).Send(context.Background(), Notification{Token: "x"}), ErrNoSender)
}
