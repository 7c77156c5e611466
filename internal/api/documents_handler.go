// File path: internal/api/documents_handler.go
package api

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/docstore"
)

// documentKey reads the raw owner/doc key pair used by docstore.RemoteStore.
func (s *Server) documentKey(w http.ResponseWriter, r *http.Request) (docstore.Key, bool) {
	if key := s.cfg.DocumentAPIKey; key != "" {
		got := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			writeError(w, http.StatusUnauthorized, errors.New("invalid document api key"))
			return docstore.Key{}, false
		}
	}
	return docstore.RawKey(chi.URLParam(r, "owner"), chi.URLParam(r, "docKey")), true
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	key, ok := s.documentKey(w, r)
	if !ok {
		return
	}
	doc, err := s.orchestrator.Store().Load(r.Context(), key)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("document %s not found", key))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handlePutDocument(w http.ResponseWriter, r *http.Request) {
	key, ok := s.documentKey(w, r)
	if !ok {
		return
	}
	var doc docstore.Document
	if err := decodeJSON(r, &doc); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.orchestrator.Store().Save(r.Context(), key, doc)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
