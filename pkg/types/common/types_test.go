package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPagination(t *testing.T) {
	cases := []struct {
		name    string
		p       Pagination
		wantErr string
	}{
		{"valid", Pagination{Page: 2, PageSize: 20}, ""},
		{"page zero", Pagination{Page: 0, PageSize: 20}, "page must be >= 1"},
		{"page size too large", Pagination{Page: 1, PageSize: 501}, "page_size must be between 1 and 500"},
		{"page size zero", Pagination{Page: 1, PageSize: 0}, "page_size must be between 1 and 500"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.p.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tc.wantErr)
		})
	}
	assert.Equal(t, 20, Pagination{Page: 2, PageSize: 20}.Offset())
}

func TestOverall(t *testing.T) {
	up := ComponentHealth{Name: "postgres", Status: HealthUp}
	cacheDown := ComponentHealth{Name: "redis", Status: HealthDown}
	dbDown := ComponentHealth{Name: "postgres", Status: HealthDown}
	optional := map[string]bool{"redis": true}

	assert.Equal(t, HealthUp, Overall([]ComponentHealth{up}, optional))
	assert.Equal(t, HealthDegraded, Overall([]ComponentHealth{up, cacheDown}, optional))
	assert.Equal(t, HealthDown, Overall([]ComponentHealth{dbDown, cacheDown}, optional))
	assert.Equal(t, HealthUp, Overall(nil, nil))
}
