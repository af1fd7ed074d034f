package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestError(t *testing.T) {
	rr := httptest.NewRecorder()
	Error(rr, http.StatusConflict, "user already exists")

	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusConflict)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error != "user already exists" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Email string `json:"email"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@example.com"}`))
	if err := DecodeJSON(r, &v); err != nil || v.Email != "a@example.com" {
		t.Errorf("DecodeJSON() = %v, email %q", err, v.Email)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{bad`))
	if err := DecodeJSON(r, &v); err == nil {
		t.Error("expected error for malformed JSON")
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	if err := DecodeJSON(r, &v); err == nil {
		t.Error("expected error for empty body")
	}
}
