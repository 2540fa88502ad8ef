package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nafis/campus-hub/internal/handler"
	"github.com/nafis/campus-hub/internal/metrics"
	"github.com/nafis/campus-hub/internal/model"
)

func TestAuthorizeHandler_HandleAuthorize(t *testing.T) {
	env := newTestEnv(t)
	h := handler.NewAuthorizeHandler(metrics.Nop{}, env.logger())
	protected := env.identified(h.HandleAuthorize)

	env.users.add(model.User{ID: "admin", Name: "admin", Email: "admin@campus.test", Role: model.RoleAdmin})
	env.users.add(model.User{ID: "member", Name: "member", Email: "member@campus.test"})

	ask := func(t *testing.T, capability string, asUser string) (*httptest.ResponseRecorder, bool) {
		t.Helper()
		body := `{"capability":"` + capability + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/authorize", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		if asUser != "" {
			env.authed(t, req, asUser)
		}
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, req)

		var res struct {
			Allow bool `json:"allow"`
		}
		if rr.Code == http.StatusOK {
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		}
		return rr, res.Allow
	}

	t.Run("admin allowed manage_users", func(t *testing.T) {
		rr, allow := ask(t, "manage_users", "admin")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, allow)
	})

	t.Run("member denied manage_users", func(t *testing.T) {
		rr, allow := ask(t, "manage_users", "member")
		// Asking is fine; the answer is just no.
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.False(t, allow)
	})

	t.Run("anonymous denied with 200", func(t *testing.T) {
		rr, allow := ask(t, "submit_project", "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.False(t, allow)
	})

	t.Run("unknown capability rejected", func(t *testing.T) {
		rr, _ := ask(t, "reboot_server", "admin")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
