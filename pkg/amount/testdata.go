package amount

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// TestDataGenerator produces realistic statement rows for tests using
// gofakeit. Seeded generators are reproducible.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGenerator creates a generator with a specific seed.
func NewTestDataGenerator(seed int64) *TestDataGenerator {
	return &TestDataGenerator{faker: gofakeit.New(seed)}
}

// TestRow is one generated statement line.
type TestRow struct {
	Date        string
	Description string
	Amount      string
}

// Row generates a single transaction row with a MM/DD/YYYY date and a
// two-decimal amount, expense or credit at random.
func (g *TestDataGenerator) Row() TestRow {
	date := g.faker.DateRange(
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	)

	value := g.faker.Price(0.01, 5000)
	if g.faker.Bool() {
		value = -value
	}

	return TestRow{
		Date:        date.Format("01/02/2006"),
		Description: g.faker.Company(),
		Amount:      fmt.Sprintf("%.2f", value),
	}
}

// Rows generates count transaction rows.
func (g *TestDataGenerator) Rows(count int) []TestRow {
	rows := make([]TestRow, count)
	for i := range rows {
		rows[i] = g.Row()
	}
	return rows
}
