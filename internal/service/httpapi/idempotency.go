package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// withIdempotency выполняет fn с учётом заголовка Idempotency-Key.
// Повтор запроса с тем же ключом и телом возвращает сохранённый ответ;
// тот же ключ с другим телом отклоняется. Ответы ниже 500 считаются
// окончательными: детерминированные бизнес-отказы реплеятся как есть.
func (s *Server) withIdempotency(w http.ResponseWriter, r *http.Request, body []byte, fn func() (int, any)) {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" || s.idempotency == nil {
		status, payload := fn()
		s.writeJSON(w, status, payload)
		return
	}

	hash := requestHash(body)
	record, err := s.idempotency.CreateProcessing(key, hash, time.Now().UTC().Add(s.idempotencyTTL))
	switch {
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		s.writeError(w, http.StatusUnprocessableEntity, "idempotency key reused with different request body")
		return
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		if record.Status == domain.IdempotencyStatusProcessing {
			s.writeError(w, http.StatusConflict, "request with this idempotency key is still being processed")
			return
		}
		s.replayStoredResponse(w, record)
		return
	case err != nil:
		s.logger.WithError(err).Error("idempotency bookkeeping failed")
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	status, payload := fn()
	encoded, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).Error("failed to encode idempotent response")
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if status < http.StatusInternalServerError {
		err = s.idempotency.MarkDone(key, encoded, status)
	} else {
		err = s.idempotency.MarkFailed(key, encoded, status)
	}
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("failed to store idempotent response")
	}

	s.writeJSON(w, status, payload)
}

func (s *Server) replayStoredResponse(w http.ResponseWriter, record domain.IdempotencyRecord) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Idempotent-Replay", "true")
	w.WriteHeader(record.HTTPStatus)
	if _, err := w.Write(record.ResponseBody); err != nil {
		s.logger.WithError(err).Error("failed to write replayed response")
	}
}

func requestHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
