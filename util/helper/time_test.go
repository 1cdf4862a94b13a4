package helper_util

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echo_errors "github.com/dev-mohitbeniwal/echo/gatekeeper/errors"
)

func TestParseTimeRange(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	from, to, err := ParseTimeRange("", "", now, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, now, to)
	assert.Equal(t, now.Add(-time.Hour), from)

	from, to, err = ParseTimeRange("2024-01-01T00:00:00+02:00", "2024-01-02T00:00:00Z", now, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 12, 31, 22, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.UTC, to.Location())

	_, _, err = ParseTimeRange("2024-01-02T00:00:00Z", "2024-01-01T00:00:00Z", now, time.Hour)
	assert.True(t, errors.Is(err, echo_errors.ErrInvalidTimeRange))

	_, _, err = ParseTimeRange("yesterday", "", now, time.Hour)
	assert.True(t, errors.Is(err, echo_errors.ErrInvalidTimeRange))
}

func TestParseNullableTime(t *testing.T) {
	got, err := ParseNullableTime(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ParseNullableTime("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ParseNullableTime("2024-01-01T00:00:00Z")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2024, got.Year())

	_, err = ParseNullableTime(42)
	assert.Error(t, err)
}

func TestGetPaginationParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	params := func(query string) (int, int, error) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/?"+query, nil)
		return GetPaginationParams(c)
	}

	limit, offset, err := params("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPageLimit, limit)
	assert.Equal(t, 0, offset)

	limit, _, err = params("limit=100000")
	require.NoError(t, err)
	assert.Equal(t, MaxPageLimit, limit)

	for _, q := range []string{"limit=0", "limit=x", "offset=-1", "offset=y"} {
		_, _, err = params(q)
		assert.Error(t, err, q)
	}
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{2, 3}, Page(items, 2, 1))
	assert.Equal(t, []int{5}, Page(items, 10, 4))
	assert.Equal(t, []int{}, Page(items, 2, 5))
}
