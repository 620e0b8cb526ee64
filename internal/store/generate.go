package store

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"

	"github.com/gridwell/gridwell/internal/grid"
)

// rowGenerator produces plausible cell values for bulk population.
// Seeded from the job id so a retried batch regenerates the same shape
// of data (contents need not be identical across jobs, only sane).
type rowGenerator struct {
	rng *rand.Rand
}

func newRowGenerator(jobID string) *rowGenerator {
	h := fnv.New64a()
	h.Write([]byte(jobID))
	return &rowGenerator{rng: rand.New(rand.NewSource(int64(h.Sum64())))}
}

var (
	firstNames = []string{"ana", "bruno", "carla", "diego", "elena", "felix", "gina", "hugo", "iris", "jonas"}
	lastNames  = []string{"alves", "berg", "costa", "dunn", "egan", "fonseca", "grant", "hale", "ito", "jansen"}
	domains    = []string{"example.com", "mail.test", "acme.dev", "inbox.io"}
	statuses   = []string{"active", "pending", "archived", "draft", "done"}
	words      = []string{"alpha", "beta", "gamma", "delta", "omega", "vector", "prism", "quartz", "lumen", "ember"}
)

// valueFor generates a value appropriate to the column's declared kind
// and to heuristics on its name: an "email" column receives email-shaped
// text, a "status" column one of a fixed vocabulary, numeric columns a
// parsed integer-like value.
func (g *rowGenerator) valueFor(col grid.Column, rowOrd int) grid.Value {
	name := strings.ToLower(col.Name)

	switch {
	case strings.Contains(name, "email"):
		return grid.Text(fmt.Sprintf("%s.%s%d@%s",
			g.pick(firstNames), g.pick(lastNames), rowOrd, g.pick(domains)))
	case strings.Contains(name, "status"), strings.Contains(name, "state"):
		return grid.Text(g.pick(statuses))
	case strings.Contains(name, "name"), strings.Contains(name, "owner"),
		strings.Contains(name, "author"):
		return grid.Text(g.pick(firstNames) + " " + g.pick(lastNames))
	case strings.Contains(name, "date"), strings.Contains(name, "time"):
		return grid.Text(fmt.Sprintf("2026-%02d-%02d", 1+g.rng.Intn(12), 1+g.rng.Intn(28)))
	case strings.Contains(name, "price"), strings.Contains(name, "amount"),
		strings.Contains(name, "total"), strings.Contains(name, "cost"):
		return grid.Number(float64(1 + g.rng.Intn(10_000)))
	case strings.Contains(name, "qty"), strings.Contains(name, "count"),
		strings.Contains(name, "quantity"):
		return grid.Number(float64(g.rng.Intn(100)))
	case strings.Contains(name, "code"), strings.Contains(name, "sku"),
		strings.HasSuffix(name, "id"):
		return grid.Text(fmt.Sprintf("%s-%04d", strings.ToUpper(g.pick(words)[:3]), rowOrd))
	}

	if col.Kind == grid.KindNumber {
		return grid.Number(float64(g.rng.Intn(100_000)))
	}
	return grid.Text(g.pick(words) + " " + g.pick(words))
}

func (g *rowGenerator) pick(list []string) string {
	return list[g.rng.Intn(len(list))]
}
