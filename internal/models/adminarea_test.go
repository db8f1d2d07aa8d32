package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminSelectionCascadeClearsChildren(t *testing.T) {
	selection := AdminSelection{}
	selection = selection.Apply(AdminLevelProvince, []string{"A", "B"})
	selection = selection.Apply(AdminLevelDistrict, []string{"d1"})
	selection = selection.Apply(AdminLevelSector, []string{"s1", "s2"})

	// narrowing the province selection must drop every child level
	selection = selection.Apply(AdminLevelProvince, []string{"A"})
	assert.Equal(t, []string{"A"}, selection.Provinces)
	assert.Nil(t, selection.Districts)
	assert.Nil(t, selection.Sectors)
	assert.Nil(t, selection.Cells)
	assert.Nil(t, selection.Villages)
}

func TestAdminSelectionApplyIsCopyOnWrite(t *testing.T) {
	original := AdminSelection{Provinces: []string{"A"}, Districts: []string{"d1"}}
	updated := original.Apply(AdminLevelProvince, []string{"B"})

	assert.Equal(t, []string{"d1"}, original.Districts)
	assert.Nil(t, updated.Districts)
}

func TestAdminSelectionMidLevelCascade(t *testing.T) {
	selection := AdminSelection{
		Provinces: []string{"A"},
		Districts: []string{"d1"},
		Sectors:   []string{"s1"},
		Cells:     []string{"c1"},
		Villages:  []string{"v1"},
	}
	selection = selection.Apply(AdminLevelSector, []string{"s2"})

	assert.Equal(t, []string{"A"}, selection.Provinces)
	assert.Equal(t, []string{"d1"}, selection.Districts)
	assert.Equal(t, []string{"s2"}, selection.Sectors)
	assert.Nil(t, selection.Cells)
	assert.Nil(t, selection.Villages)
}

func TestAdminSelectionNarrowest(t *testing.T) {
	selection := AdminSelection{Provinces: []string{"A"}, Districts: []string{"d1"}}
	level, values := selection.Narrowest()
	assert.Equal(t, AdminLevelDistrict, level)
	assert.Equal(t, []string{"d1"}, values)

	level, values = AdminSelection{}.Narrowest()
	assert.Equal(t, AdminLevel(""), level)
	require.Nil(t, values)
}
