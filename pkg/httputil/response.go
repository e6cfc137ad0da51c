package httputil

import (
	"encoding/json"
	"net/http"
)

// Envelope statuses understood by the dashboard client
const (
	StatusOK = "ok"
	StatusNo = "no"
)

// Envelope is the dashboard response wrapper
type Envelope struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Page is a DataTables server-side page
type Page struct {
	Draw            int         `json:"draw"`
	Data            interface{} `json:"data"`
	RecordsTotal    int         `json:"recordsTotal"`
	RecordsFiltered int         `json:"recordsFiltered"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteOK writes a 200 {status:"ok", data} envelope
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, Envelope{Status: StatusOK, Data: data})
}

// WriteRejected writes a 200 {status:"no", message} envelope: the request was
// understood but refused by business rules
func WriteRejected(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, Envelope{Status: StatusNo, Message: message})
}

// WritePage writes a DataTables page
func WritePage(w http.ResponseWriter, page Page) error {
	return WriteJSON(w, http.StatusOK, page)
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteErrorMessage(w, status, err.Error())
}

// WriteErrorMessage writes {status:"no", message} with an HTTP error status.
// The client reads the message field for its error text.
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	_ = WriteJSON(w, status, Envelope{Status: StatusNo, Message: message})
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes an unauthorized error (401)
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusUnauthorized, message)
}

// WriteNotFound writes a not found error (404)
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusNotFound, message)
}

// WriteInternalError writes an internal server error (500)
func WriteInternalError(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusInternalServerError, err)
}

// WriteServiceUnavailable writes a service unavailable error (503)
func WriteServiceUnavailable(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusServiceUnavailable, message)
}
