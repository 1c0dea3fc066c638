package bot

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/airalert/airalert/internal/telegram"
)

// SecretTokenHeader carries the secret registered with setWebhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxWebhookBody = 1 << 20

// WebhookHandler accepts pushed updates and hands them to a Dispatcher.
// Telegram retries non-2xx responses, so once the secret matches every
// update is acknowledged, even ones that are dropped.
type WebhookHandler struct {
	secret     string
	dispatcher *Dispatcher
	logger     zerolog.Logger
}

// NewWebhookHandler creates a WebhookHandler. secret must be non-empty.
func NewWebhookHandler(secret string, dispatcher *Dispatcher, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{secret: secret, dispatcher: dispatcher, logger: logger}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get(SecretTokenHeader)
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var u telegram.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&u); err != nil {
		h.logger.Warn().Err(err).Msg("discarding malformed webhook update")
		w.WriteHeader(http.StatusOK)
		return
	}

	h.dispatcher.Dispatch(r.Context(), u)
	w.WriteHeader(http.StatusOK)
}
