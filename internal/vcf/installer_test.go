package vcf

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstaller_ListDeployments(t *testing.T) {
	var authHeader string
	_, cfg := newTestServer(t, tokenHandler(t, func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		require.Equal(t, "/v1/sddcs", r.URL.Path)
		w.Write([]byte(`{"elements":[{"id":"sddc-1","name":"mgmt","status":"COMPLETED_WITH_SUCCESS"},{"id":"sddc-2"}]}`))
	}))

	inst, err := NewInstaller(cfg)
	require.NoError(t, err)

	token, err := inst.Authenticate(context.Background(), "admin@local", "pw")
	require.NoError(t, err)

	deployments, err := inst.ListDeployments(context.Background(), token)
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-123", authHeader)
	require.Len(t, deployments, 2)
	assert.Equal(t, "mgmt", deployments[0].DisplayName())
	assert.Equal(t, "sddc-2", deployments[1].DisplayName())
}

func TestInstaller_FetchSpecification(t *testing.T) {
	_, cfg := newTestServer(t, tokenHandler(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/sddcs/sddc-1/spec", r.URL.Path)
		w.Write([]byte(`{"vcenterSpec":{"vcenterHostname":"vc1"}}`))
	}))

	inst, err := NewInstaller(cfg)
	require.NoError(t, err)

	doc, err := inst.FetchSpecification(context.Background(), Token{AccessToken: "tok-123"}, "sddc-1")
	require.NoError(t, err)

	spec, ok := doc.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, spec, "vcenterSpec")
}

func TestInstaller_FetchSpecification_NotFound(t *testing.T) {
	_, cfg := newTestServer(t, tokenHandler(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`not found`))
	}))

	inst, err := NewInstaller(cfg)
	require.NoError(t, err)

	_, err = inst.FetchSpecification(context.Background(), Token{AccessToken: "tok-123"}, "missing")

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.True(t, fetchErr.IsNotFound())
	assert.Equal(t, "/v1/sddcs/missing/spec", fetchErr.Path)
}

func TestInstaller_FetchSpecification_MalformedJSON(t *testing.T) {
	_, cfg := newTestServer(t, tokenHandler(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"vcenterSpec":`))
	}))

	inst, err := NewInstaller(cfg)
	require.NoError(t, err)

	_, err = inst.FetchSpecification(context.Background(), Token{AccessToken: "tok-123"}, "sddc-1")

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 0, fetchErr.StatusCode)
}

func TestInstaller_FetchSpecification_RequiresID(t *testing.T) {
	_, cfg := newTestServer(t, tokenHandler(t, nil))

	inst, err := NewInstaller(cfg)
	require.NoError(t, err)

	_, err = inst.FetchSpecification(context.Background(), Token{AccessToken: "tok-123"}, "")

	var fetchErr *FetchError
	assert.ErrorAs(t, err, &fetchErr)
}
