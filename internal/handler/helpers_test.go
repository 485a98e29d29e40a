package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

type envelope[T any] struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    T               `json:"data"`
	Meta    json.RawMessage `json:"meta"`
}

func withUser(id uint, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", id)
		c.Locals("user_role", role)
		return c.Next()
	}
}

func doRequest(t *testing.T, app *fiber.App, method, target string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) envelope[T] {
	t.Helper()
	defer resp.Body.Close()

	var payload envelope[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}
