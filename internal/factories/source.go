package factories

import (
	"math/rand"

	"github.com/jaswdr/faker"
)

// Source is the seeded randomness shared by the factories, so a seed reproduces a dataset.
type Source struct {
	fake faker.Faker
}

func NewSource(seed int64) *Source {
	return &Source{fake: faker.NewWithSeed(rand.NewSource(seed))}
}
