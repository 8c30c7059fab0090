package database

import (
	"path/filepath"
	"testing"

	"github.com/dronelab/tellosim/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSqlite_FileAndSetup(t *testing.T) {
	m := NewManager(zerolog.Nop())
	path := filepath.Join(t.TempDir(), "nested", "flights.db")

	require.NoError(t, m.OpenSqlite(path))
	t.Cleanup(func() { _ = m.Close() })
	require.NoError(t, m.Setup())

	assert.FileExists(t, path)
	assert.True(t, m.DB.Migrator().HasTable(&model.Flight{}))
	assert.True(t, m.DB.Migrator().HasTable(&model.CommandLog{}))
	assert.True(t, m.DB.Migrator().HasTable(&model.StateSample{}))
}

func TestOpenSqlite_InMemory(t *testing.T) {
	m := NewManager(zerolog.Nop())
	require.NoError(t, m.OpenSqlite(""))
	t.Cleanup(func() { _ = m.Close() })
	require.NoError(t, m.Setup())

	require.NoError(t, m.DB.Create(&model.Flight{Name: "mem"}).Error)
	var count int64
	require.NoError(t, m.DB.Model(&model.Flight{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSetup_NotOpen(t *testing.T) {
	m := NewManager(zerolog.Nop())
	assert.Error(t, m.Setup())
	assert.NoError(t, m.Close())
}
