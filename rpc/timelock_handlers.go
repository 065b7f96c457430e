package rpc

import (
	"encoding/hex"
	"net/http"

	"reservecore/native/timelock"
)

type timelockRequest struct {
	Caller  string `json:"caller"`
	Target  string `json:"target"`
	Method  string `json:"method"`
	Payload string `json:"payload,omitempty"`
	ETA     uint64 `json:"eta"`
}

func (req timelockRequest) operation() timelock.Operation {
	return timelock.Operation{
		Target:  req.Target,
		Method:  req.Method,
		Payload: []byte(req.Payload),
		ETA:     req.ETA,
	}
}

func (s *Server) handleTimelockQueue(w http.ResponseWriter, r *http.Request) {
	var req timelockRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	caller, err := callerFrom(req.Caller)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	id, err := s.lock.Queue(caller, req.operation())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": hex.EncodeToString(id[:])})
}

func (s *Server) handleTimelockExecute(w http.ResponseWriter, r *http.Request) {
	var req timelockRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	caller, err := callerFrom(req.Caller)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.lock.Execute(caller, req.operation()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "executed"})
}

func (s *Server) handleTimelockCancel(w http.ResponseWriter, r *http.Request) {
	var req timelockRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	caller, err := callerFrom(req.Caller)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.lock.Cancel(caller, req.operation()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
