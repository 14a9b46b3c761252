package cli

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/fuelsync/fuelsync/internal/model"
)

func TestPrintDay_Golden(t *testing.T) {
	day := model.NewDaySnapshot("2026-08-26")
	day.Meals[model.MealBreakfast] = []model.FoodEntry{
		{ID: "41", Name: "Oatmeal", Calories: 300, ProteinG: 10, CarbsG: 54, FatG: 5},
		{ID: "temp-1756195200000-k3x", Name: "Coffee", Calories: 5},
	}
	day.Meals[model.MealDinner] = []model.FoodEntry{
		{ID: "43", Name: "Grilled Chicken", Calories: 450, ProteinG: 40, CarbsG: 2, FatG: 12},
	}
	day.Totals = model.MacroTotals{Calories: 755, ProteinG: 50, CarbsG: 56, FatG: 17}
	day.WaterML = 750
	day.Exercises = []model.ExerciseEntry{
		{ID: "44", Name: "Running", DurationMin: 30, CaloriesBurned: 320},
	}
	day.CaloriesBurned = 320

	var buf bytes.Buffer
	printDay(&buf, day)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "day_full", buf.Bytes())
}

func TestPrintDay_EmptyDayGolden(t *testing.T) {
	var buf bytes.Buffer
	printDay(&buf, model.NewDaySnapshot("2026-08-26"))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "day_empty", buf.Bytes())
}
