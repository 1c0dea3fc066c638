package bot_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airalert/airalert/internal/bot"
	"github.com/airalert/airalert/internal/telegram"
)

type recordingHandler struct {
	mu    sync.Mutex
	got   []string
	delay time.Duration
	ctxOK []bool
}

func (h *recordingHandler) HandleMessage(ctx context.Context, chatID, text string) {
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.got = append(h.got, chatID+":"+text)
	h.ctxOK = append(h.ctxOK, ctx.Err() == nil)
}

func (h *recordingHandler) messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.got...)
}

// scriptedSource returns one batch per call, then blocks until cancelled.
type scriptedSource struct {
	mu      sync.Mutex
	batches [][]telegram.Update
	errs    []error
	offsets []int64
}

func (s *scriptedSource) GetUpdates(ctx context.Context, offset int64) ([]telegram.Update, error) {
	s.mu.Lock()
	s.offsets = append(s.offsets, offset)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		s.mu.Unlock()
		return nil, err
	}
	if len(s.batches) > 0 {
		b := s.batches[0]
		s.batches = s.batches[1:]
		s.mu.Unlock()
		return b, nil
	}
	s.mu.Unlock()

	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *scriptedSource) seenOffsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.offsets...)
}

func update(id, chatID int64, text string) telegram.Update {
	return telegram.Update{
		UpdateID: id,
		Message:  &telegram.Message{MessageID: id, Chat: telegram.Chat{ID: chatID}, Text: text},
	}
}

func TestPoller_DispatchesAndAdvancesOffset(t *testing.T) {
	handler := &recordingHandler{}
	dispatcher := bot.NewDispatcher(handler, 4, zerolog.Nop())
	source := &scriptedSource{
		errs: []error{errors.New("temporary failure")},
		batches: [][]telegram.Update{
			{update(10, 1, "/help"), update(11, 2, "/pm25")},
			{{UpdateID: 12}},
		},
	}

	poller := bot.NewPoller(bot.PollerConfig{
		Source:     source,
		Dispatcher: dispatcher,
		MaxBackoff: 20 * time.Millisecond,
		Logger:     zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	require.Eventually(t, func() bool { return len(source.seenOffsets()) >= 4 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	dispatcher.Wait()

	assert.ElementsMatch(t, []string{"1:/help", "2:/pm25"}, handler.messages())
	assert.Equal(t, []int64{0, 0, 12, 13}, source.seenOffsets()[:4])
}

func TestDispatcher_HandlerOutlivesCancel(t *testing.T) {
	handler := &recordingHandler{delay: 50 * time.Millisecond}
	dispatcher := bot.NewDispatcher(handler, 0, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	dispatcher.Dispatch(ctx, update(1, 7, "/check Ban Suan"))
	cancel()
	dispatcher.Wait()

	assert.Equal(t, []string{"7:/check Ban Suan"}, handler.messages())
	assert.Equal(t, []bool{true}, handler.ctxOK)
}

func TestDispatcher_DropsNonText(t *testing.T) {
	handler := &recordingHandler{}
	dispatcher := bot.NewDispatcher(handler, 1, zerolog.Nop())

	dispatcher.Dispatch(context.Background(), telegram.Update{UpdateID: 1})
	dispatcher.Dispatch(context.Background(), update(2, 7, ""))
	dispatcher.Wait()

	assert.Empty(t, handler.messages())
}

// blockingHandler holds every call until release is closed.
type blockingHandler struct {
	started chan struct{}
	release chan struct{}
}

func (h *blockingHandler) HandleMessage(context.Context, string, string) {
	h.started <- struct{}{}
	<-h.release
}

func TestDispatcher_BlocksWhenFull(t *testing.T) {
	handler := &blockingHandler{started: make(chan struct{}, 2), release: make(chan struct{})}
	dispatcher := bot.NewDispatcher(handler, 1, zerolog.Nop())

	dispatcher.Dispatch(context.Background(), update(1, 7, "/pm25"))
	<-handler.started

	returned := make(chan struct{})
	go func() {
		dispatcher.Dispatch(context.Background(), update(2, 7, "/pm25"))
		close(returned)
	}()

	select {
	case <-returned:
		t.Fatal("Dispatch returned while the dispatcher was full")
	case <-time.After(50 * time.Millisecond):
	}

	close(handler.release)
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Dispatch did not return after a slot was freed")
	}
	dispatcher.Wait()
	assert.Len(t, handler.started, 1, "second update handled once a slot was free")
}

func TestDispatcher_DropsWhenFullAndCancelled(t *testing.T) {
	handler := &blockingHandler{started: make(chan struct{}, 2), release: make(chan struct{})}
	dispatcher := bot.NewDispatcher(handler, 1, zerolog.Nop())

	dispatcher.Dispatch(context.Background(), update(1, 7, "/pm25"))
	<-handler.started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dispatcher.Dispatch(ctx, update(2, 7, "/pm25"))

	close(handler.release)
	dispatcher.Wait()
	assert.Empty(t, handler.started, "cancelled update never reached the handler")
}

type panickingHandler struct{}

func (panickingHandler) HandleMessage(context.Context, string, string) { panic("boom") }

func TestDispatcher_RecoversPanics(t *testing.T) {
	dispatcher := bot.NewDispatcher(panickingHandler{}, 1, zerolog.Nop())

	dispatcher.Dispatch(context.Background(), update(1, 7, "/help"))
	dispatcher.Wait()
}

func TestWebhookHandler(t *testing.T) {
	handler := &recordingHandler{}
	dispatcher := bot.NewDispatcher(handler, 1, zerolog.Nop())
	webhook := bot.NewWebhookHandler("s3cret", dispatcher, zerolog.Nop())

	body := `{"update_id":5,"message":{"message_id":1,"chat":{"id":99,"type":"private"},"text":"/pm25"}}`

	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body))
	req.Header.Set(bot.SecretTokenHeader, "s3cret")
	w := httptest.NewRecorder()
	webhook.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	dispatcher.Wait()
	assert.Equal(t, []string{"99:/pm25"}, handler.messages())
}

func TestWebhookHandler_RejectsBadSecret(t *testing.T) {
	handler := &recordingHandler{}
	dispatcher := bot.NewDispatcher(handler, 1, zerolog.Nop())
	webhook := bot.NewWebhookHandler("s3cret", dispatcher, zerolog.Nop())

	for _, secret := range []string{"", "wrong"} {
		req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(`{"update_id":1}`))
		if secret != "" {
			req.Header.Set(bot.SecretTokenHeader, secret)
		}
		w := httptest.NewRecorder()
		webhook.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	dispatcher.Wait()
	assert.Empty(t, handler.messages())
}

func TestWebhookHandler_MalformedBodyIsAcknowledged(t *testing.T) {
	dispatcher := bot.NewDispatcher(&recordingHandler{}, 1, zerolog.Nop())
	webhook := bot.NewWebhookHandler("s3cret", dispatcher, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(`{not json`))
	req.Header.Set(bot.SecretTokenHeader, "s3cret")
	w := httptest.NewRecorder()
	webhook.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
