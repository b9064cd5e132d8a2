package main

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	itemapprove "github.com/Yuexixi123/ItemApprove-sub001"
	"github.com/Yuexixi123/ItemApprove-sub001/internal/mockapi"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, itemapprove.GetVersion()+"\n", out)
}

func TestRequestAgainstMockBackend(t *testing.T) {
	srv := mockapi.New()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	out, _, err := execute(t, "request", "GET", "/todos",
		"--base-url", ts.URL+"/api",
		"--token", srv.IssueToken("admin"),
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Approve monitoring item")
}

func TestRequestReportsUnauthorized(t *testing.T) {
	t.Setenv("ITEMAPPROVE_SESSION__REDIRECT_DELAY", "10ms")
	srv := mockapi.New()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	_, errOut, err := execute(t, "request", "GET", "/todos",
		"--base-url", ts.URL+"/api",
		"--token", "forged",
	)
	require.Error(t, err)
	assert.True(t, itemapprove.IsUnauthorized(err), "%v", err)
	assert.Contains(t, errOut, "Request error 401")
	assert.Contains(t, errOut, "session expired, sign in again at /user/login")
}

func TestRequestRetriesNetworkFailures(t *testing.T) {
	ts := httptest.NewServer(mockapi.New())
	baseURL := ts.URL + "/api"
	ts.Close()

	_, _, err := execute(t, "request", "GET", "/todos",
		"--base-url", baseURL,
		"--token", "anything",
		"--retries", "1",
		"--retry-strategy", "decorrelated",
		"-q",
	)
	require.Error(t, err)
	assert.True(t, itemapprove.IsNetwork(err), "%v", err)

	// reset flags shared with the other tests
	requestRetries = 0
	requestStrategy = "exponential"
	requestQuiet = false
}
