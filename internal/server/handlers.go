package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/medsecure/vault/internal/auth"
	"github.com/medsecure/vault/internal/receipts"
	"github.com/medsecure/vault/pkg/encryption"
	"github.com/medsecure/vault/pkg/storage"
	"github.com/medsecure/vault/pkg/vault"
)

// passwordHeader carries the per-record encryption password. It never
// appears in logs or responses.
const passwordHeader = "X-Encryption-Password"

// maxUploadSize caps multipart uploads at 128 MiB.
const maxUploadSize = 128 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"backend": s.vault.Backend().Name(),
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := s.authenticator.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

func (s *Server) handleStoreRecord(w http.ResponseWriter, r *http.Request) {
	password := r.Header.Get(passwordHeader)
	if password == "" {
		writeError(w, http.StatusBadRequest, "missing "+passwordHeader+" header")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	receipt, err := s.vault.Store(r.Context(), data, password, header.Filename)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"filename": header.Filename,
			"user":     auth.UsernameFromRequest(r),
		}).Error("Store failed")
		writeError(w, storageErrorStatus(err), "store failed")
		return
	}

	if err := s.receipts.Put(receipt); err != nil {
		s.logger.WithError(err).WithField("cid", receipt.CID).Error("Failed to persist receipt")
		writeError(w, http.StatusInternalServerError, "failed to persist receipt")
		return
	}

	writeJSON(w, http.StatusCreated, receipt)
}

func (s *Server) handleRetrieveRecord(w http.ResponseWriter, r *http.Request) {
	password := r.Header.Get(passwordHeader)
	if password == "" {
		writeError(w, http.StatusBadRequest, "missing "+passwordHeader+" header")
		return
	}

	cid := mux.Vars(r)["cid"]
	receipt, err := s.receipts.Get(cid)
	if err != nil {
		if errors.Is(err, receipts.ErrReceiptNotFound) {
			writeError(w, http.StatusNotFound, "unknown record")
			return
		}
		writeError(w, http.StatusInternalServerError, "receipt lookup failed")
		return
	}

	result, err := s.vault.Retrieve(r.Context(), receipt, password)
	if err != nil {
		s.logger.WithError(err).WithField("cid", cid).Warn("Retrieve failed")
		writeError(w, retrieveErrorStatus(err), "retrieve failed")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+receipt.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.Header().Set("X-Integrity-Verified", strconv.FormatBool(result.Verified))
	_, _ = w.Write(result.Data)
}

func (s *Server) handleRecordURL(w http.ResponseWriter, r *http.Request) {
	cid := mux.Vars(r)["cid"]
	if _, err := s.receipts.Get(cid); err != nil {
		if errors.Is(err, receipts.ErrReceiptNotFound) {
			writeError(w, http.StatusNotFound, "unknown record")
			return
		}
		writeError(w, http.StatusInternalServerError, "receipt lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"cid":         cid,
		"gateway_url": s.vault.GatewayURL(cid),
	})
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	list, err := s.receipts.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list receipts")
		return
	}
	if list == nil {
		list = []*vault.Receipt{}
	}
	writeJSON(w, http.StatusOK, list)
}

// retrieveErrorStatus maps retrieve failures to HTTP status codes. A
// wrong password is indistinguishable from tampered data, so both come
// back as forbidden.
func retrieveErrorStatus(err error) int {
	switch {
	case errors.Is(err, encryption.ErrDecryption),
		errors.Is(err, encryption.ErrKeyDerivation):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func storageErrorStatus(err error) int {
	switch {
	case errors.Is(err, encryption.ErrKeyDerivation):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrUnavailable), errors.Is(err, storage.ErrNoCredentials):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
