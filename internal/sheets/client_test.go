package sheets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestClientRows(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"range": "'Telescope queues'!A3:D5",
			"majorDimension": "ROWS",
			"values": [["T01", "ACME", "12", "2"], ["T02", "", "7"], [], ["T03", 4, true]]
		}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	c, err := NewClient(ctx, "sheet-123", srv.Client(), nil,
		option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)

	rows, err := c.Rows(ctx, "Telescope queues!A3:D")
	require.NoError(t, err)

	assert.True(t, strings.Contains(gotPath, "/spreadsheets/sheet-123/values/"), "path %s", gotPath)
	assert.Equal(t, [][]string{
		{"T01", "ACME", "12", "2"},
		{"T02", "", "7"},
		{},
		{"T03", "4", "true"},
	}, rows)
}

func TestClientRows_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"code": 403, "message": "The caller does not have permission"}}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	c, err := NewClient(ctx, "sheet-123", srv.Client(), nil,
		option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)

	_, err = c.Rows(ctx, "Telescope queues!A3:D")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission")
}

func TestNewClient_RequiresSpreadsheet(t *testing.T) {
	_, err := NewClient(context.Background(), "", nil, nil, option.WithoutAuthentication())
	assert.Error(t, err)
}
