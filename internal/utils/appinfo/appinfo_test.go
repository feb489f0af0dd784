package appinfo

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetVersionPrefersLinkerValue(t *testing.T) {
	t.Setenv("VERSION", "from-env")

	assert.Equal(t, "from-env", GetVersion())

	version = "1.2.3"
	t.Cleanup(func() { version = "" })
	assert.Equal(t, "1.2.3", GetVersion())
}

func TestGetVersionFallsBackToAppVersion(t *testing.T) {
	t.Setenv("VERSION", "")
	t.Setenv("APP_VERSION", "9.9.9")
	assert.Equal(t, "9.9.9", GetVersion())
}

func TestRegisterBuildInfo(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterBuildInfo(reg)

	count, err := testutil.GatherAndCount(reg, "petfolio_build_info")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
