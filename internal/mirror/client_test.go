package mirror

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterUser(t *testing.T) {
	var got Registration
	var key, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		key = r.Header.Get("X-Api-Key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret", srv.Client())
	err := c.RegisterUser(context.Background(), Registration{UID: "u1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "/api/users", path)
	assert.Equal(t, "secret", key)
	assert.Equal(t, "u1", got.UID)
	assert.Equal(t, "ada@example.com", got.Email)
}

func TestRegisterUserRejectsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "duplicate", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", srv.Client())
	assert.Error(t, c.RegisterUser(context.Background(), Registration{UID: "u1"}))
}
