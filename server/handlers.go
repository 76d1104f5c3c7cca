package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"

	"github.com/nicolagi/appendgw/gateway"
	"github.com/nicolagi/appendgw/storage"
	log "github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error string `json:"error"`
}

type appendResponse struct {
	Key    string `json:"key"`
	Length int    `json:"length"`
}

type fetchResponse struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type removeResponse struct {
	Key     string `json:"key"`
	Removed bool   `json:"removed"`
}

type handlers struct {
	gateway *gateway.Gateway
}

func withHeaders(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if name != "" {
			h.Set("Server", name)
		}
		if r.Method == http.MethodOptions {
			// Preflight, for any path.
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handlers) append(w http.ResponseWriter, r *http.Request) {
	logger := log.WithField("op", "append")
	status, body := func() (int, interface{}) {
		payload, err := ioutil.ReadAll(r.Body)
		if err != nil {
			logger.WithField("err", err).Error()
			return http.StatusInternalServerError, errorResponse{err.Error()}
		}
		key, length, err := h.gateway.Append(payload)
		logger = logger.WithField("key", key)
		var perr *gateway.PayloadError
		if errors.As(err, &perr) {
			logger.WithField("err", err).Debug("Bad payload")
			return http.StatusBadRequest, errorResponse{err.Error()}
		}
		if err != nil {
			logger.WithField("err", err).Error()
			return http.StatusInternalServerError, errorResponse{err.Error()}
		}
		logger.WithField("length", length).Debug("Success")
		return http.StatusCreated, appendResponse{Key: key, Length: length}
	}()
	writeJSON(w, logger, status, body)
}

func (h *handlers) fetch(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	logger := log.WithFields(log.Fields{
		"op":  "fetch",
		"key": key,
	})
	status, body := func() (int, interface{}) {
		value, err := h.gateway.Fetch(key)
		if errors.Is(err, storage.ErrNotFound) {
			logger.WithField("err", err).Debug("Not found")
			return http.StatusNotFound, errorResponse{"Key not found"}
		}
		if err != nil {
			logger.WithField("err", err).Error()
			return http.StatusInternalServerError, errorResponse{err.Error()}
		}
		logger.Debug("Success")
		return http.StatusOK, fetchResponse{Key: key, Value: value}
	}()
	writeJSON(w, logger, status, body)
}

func (h *handlers) remove(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	logger := log.WithFields(log.Fields{
		"op":  "remove",
		"key": key,
	})
	status, body := func() (int, interface{}) {
		removed, err := h.gateway.Remove(key)
		if err != nil {
			logger.WithField("err", err).Error()
			return http.StatusInternalServerError, errorResponse{err.Error()}
		}
		logger.WithField("removed", removed).Debug("Success")
		return http.StatusOK, removeResponse{Key: key, Removed: removed}
	}()
	writeJSON(w, logger, status, body)
}

func writeJSON(w http.ResponseWriter, logger *log.Entry, status int, body interface{}) {
	b, err := encode(body)
	if err != nil {
		logger.WithField("err", err).Error("Could not encode response")
		status = http.StatusInternalServerError
		b, _ = encode(errorResponse{err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(b); err != nil {
		logger.WithField("err", err).Error("Failed writing response")
	}
}

// encode marshals v leaving HTML characters alone, so stored values come back
// byte for byte.
func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
