package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func queryContext(t *testing.T, rawQuery string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?"+rawQuery, nil)
	return c
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantPage int
		wantSize int
	}{
		{"defaults", "", 1, 10},
		{"explicit", "page=3&size=25", 3, 25},
		{"negative page clamps", "page=-2&size=5", 1, 5},
		{"zero size falls back", "page=2&size=0", 2, 10},
		{"size capped", "size=1000", 1, 100},
		{"garbage falls back", "page=abc&size=xyz", 1, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := FromContext(queryContext(t, tt.query))
			assert.Equal(t, tt.wantPage, q.Page)
			assert.Equal(t, tt.wantSize, q.Size)
		})
	}
}

func TestMeta(t *testing.T) {
	meta := Query{Page: 2, Size: 10}.Meta(35)
	assert.Equal(t, int64(35), meta.Total)
	assert.Equal(t, 4, meta.TotalPage)
	assert.Equal(t, 2, meta.CurrentPage)
	assert.True(t, meta.HasNextPage)

	last := Query{Page: 4, Size: 10}.Meta(35)
	assert.False(t, last.HasNextPage)

	empty := Query{Page: 1, Size: 10}.Meta(0)
	assert.Equal(t, 0, empty.TotalPage)
	assert.False(t, empty.HasNextPage)
}
