package spirit

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"unicode/utf8"

	"github.com/chrisrobison/ouija/internal/inference"
	"github.com/chrisrobison/ouija/internal/logging"
	"github.com/chrisrobison/ouija/internal/metrics"
)

var (
	eras = []string{
		"the late Middle Ages", "the Renaissance", "the 1600s", "the early 1700s", "the Georgian era",
		"the Napoleonic wars", "the Victorian era", "the Gilded Age", "the Belle Epoque", "the Great War",
		"the Roaring Twenties", "the Great Depression", "the 1940s", "the 1950s", "the 1960s",
	}
	places = []string{
		"a fishing village in Brittany", "Edinburgh", "a Mississippi river town", "Kraków", "a Welsh mining valley",
		"New Orleans", "the Ottoman port of Smyrna", "a Swedish farmstead", "Lisbon", "Boston",
		"a Bavarian mill town", "the Australian goldfields", "Dublin", "a Quebec lumber camp", "Naples",
	}
	occupations = []string{
		"lighthouse keeper", "seamstress", "apothecary", "schoolteacher", "blacksmith",
		"midwife", "telegraph operator", "stage magician", "gravedigger", "ship's cook",
		"milliner", "railway signalman", "bookbinder", "nurse", "watchmaker",
	}
)

// seeds are loose inspiration for one generation request.
type seeds struct {
	Era        string
	Place      string
	Occupation string
	Number     int
}

func drawSeeds() seeds {
	return seeds{
		Era:        eras[rand.IntN(len(eras))],
		Place:      places[rand.IntN(len(places))],
		Occupation: occupations[rand.IntN(len(occupations))],
		Number:     rand.IntN(9999) + 1,
	}
}

// GeneratorConfig holds the model settings used for generation.
type GeneratorConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Generator summons new spirits. Every generated record is stored and made
// current before it is returned.
type Generator struct {
	client inference.Client
	store  *Store
	cfg    GeneratorConfig
	logger *slog.Logger
}

// NewGenerator creates a generator writing to st.
func NewGenerator(client inference.Client, st *Store, cfg GeneratorConfig) *Generator {
	return &Generator{
		client: client,
		store:  st,
		cfg:    cfg,
		logger: logging.WithComponent("generator"),
	}
}

// Generate asks the model for a new profile. Unusable output falls back to a
// placeholder profile; model failures are returned as *inference.UpstreamError
// without retrying.
func (g *Generator) Generate(ctx context.Context) (*Record, error) {
	s := drawSeeds()
	resp, err := g.client.Chat(ctx, &inference.Request{
		Model:       g.cfg.Model,
		Messages:    generationMessages(s),
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
		Purpose:     "generate",
	})
	if err != nil {
		return nil, err
	}

	profile, fellBack := ParseOrFallback(resp.Content)
	outcome := "generated"
	if fellBack {
		outcome = "fallback"
		g.logger.Warn("unusable profile from model, using fallback", "raw", truncate(resp.Content, 200))
	}

	rec := NewRecord(profile)
	exists, err := g.store.Exists(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		// ids are derived from name and birth year; last write wins
		g.logger.Warn("generated spirit overwrites an existing record", "id", rec.ID)
	}
	if err := g.store.Activate(ctx, rec); err != nil {
		return nil, err
	}

	metrics.SpiritsSummoned.WithLabelValues(outcome).Inc()
	g.logger.Info("spirit summoned", "id", rec.ID, "name", rec.Profile.Name, "outcome", outcome)
	return rec, nil
}

// truncate keeps at most n bytes of s, cut on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
