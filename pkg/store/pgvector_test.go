package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docquery/docquery/internal/models"
)

func TestBuildQuery_NoFilter(t *testing.T) {
	ps := &PgStore{config: PgConfig{TableName: "chunks"}}

	query, args := ps.buildQuery([]float32{1, 2}, 5, nil)
	assert.NotContains(t, query, "WHERE")
	assert.Contains(t, query, "LIMIT $2")
	require.Len(t, args, 2)
	assert.Equal(t, 5, args[1])
}

func TestBuildQuery_SourceFilter(t *testing.T) {
	ps := &PgStore{config: PgConfig{TableName: "chunks"}}

	query, args := ps.buildQuery([]float32{1, 2}, 3, &models.Filter{Source: "report.pdf"})
	assert.Contains(t, query, "WHERE source = $2")
	assert.Contains(t, query, "LIMIT $3")
	require.Len(t, args, 3)
	assert.Equal(t, "report.pdf", args[1])
	assert.Equal(t, 3, args[2])
}

func TestBuildQuery_PageFilter(t *testing.T) {
	ps := &PgStore{config: PgConfig{TableName: "chunks"}}

	query, args := ps.buildQuery([]float32{1, 2}, 3, &models.Filter{PageNumber: 7})
	assert.Contains(t, query, "WHERE page_number = $2")
	require.Len(t, args, 3)
	assert.Equal(t, 7, args[1])
}

func TestBuildQuery_SourceWinsOverPage(t *testing.T) {
	ps := &PgStore{config: PgConfig{TableName: "chunks"}}

	query, args := ps.buildQuery([]float32{1, 2}, 3,
		&models.Filter{Source: "report.pdf", PageNumber: 7})
	assert.Contains(t, query, "WHERE source = $2")
	assert.NotContains(t, query, "page_number")
	assert.Equal(t, "report.pdf", args[1])
}

func TestPgConfigDefaults(t *testing.T) {
	c := PgConfig{}
	c.applyDefaults()
	assert.Equal(t, "chunks", c.TableName)
	assert.Equal(t, 768, c.VectorDim)
}

func TestNewPgStore_MissingConnString(t *testing.T) {
	_, err := NewPgStore(context.Background(), PgConfig{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
