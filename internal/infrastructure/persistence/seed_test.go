package persistence

import (
	"context"
	"testing"

	"github.com/canteen/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedID_IsDeterministic(t *testing.T) {
	assert.Equal(t, SeedID(SeedParent, 1), SeedID(SeedParent, 1))
	assert.NotEqual(t, SeedID(SeedParent, 1), SeedID(SeedParent, 2))
	assert.NotEqual(t, SeedID(SeedParent, 1), SeedID(SeedStudent, 1))
	assert.Equal(t, 5, int(SeedID(SeedCanteen, 1).Version()))
}

func TestReferenceData(t *testing.T) {
	data := ReferenceData(seedTime)

	assert.Len(t, data.Parents, 3)
	assert.Len(t, data.Students, 4)
	assert.Len(t, data.Canteens, 3)
	assert.Len(t, data.MenuItems, 7)

	assert.Equal(t, "25.50", data.Parents[1].WalletBalance.StringFixed(2))
	assert.Equal(t, "08:45", *data.Canteens[1].OrderCutOffTime)
	assert.Equal(t, []string{"nuts"}, data.Students[0].Allergens)
	assert.Equal(t, data.Canteens[2].ID, data.MenuItems[5].CanteenID)
}

func TestSeed_IsIdempotent(t *testing.T) {
	db := newSQLiteDatabase(t)

	// newSQLiteDatabase has seeded once already
	require.NoError(t, Seed(context.Background(), db.DB, ReferenceData(seedTime)))

	counts := map[any]int64{
		&models.ParentModel{}:   3,
		&models.StudentModel{}:  4,
		&models.CanteenModel{}:  3,
		&models.MenuItemModel{}: 7,
	}
	for model, want := range counts {
		var got int64
		require.NoError(t, db.DB.Model(model).Count(&got).Error)
		assert.Equal(t, want, got)
	}
}
