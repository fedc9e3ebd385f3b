package spirit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/chrisrobison/ouija/internal/config"
	"github.com/chrisrobison/ouija/internal/inference"
	"github.com/chrisrobison/ouija/internal/logging"
	"github.com/chrisrobison/ouija/internal/metrics"
)

// Options tunes the session manager.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	// MemoryDepth is the number of question/answer pairs kept per spirit.
	MemoryDepth int
	Sentinel    string
	ResetAck    string
	Greeting    string
}

// OptionsFromConfig maps the loaded configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Model:       cfg.Inference.Model,
		Temperature: cfg.Inference.Temperature,
		MaxTokens:   cfg.Inference.MaxTokens,
		MemoryDepth: cfg.Spirit.MemoryDepth,
		Sentinel:    cfg.Spirit.Sentinel,
		ResetAck:    cfg.Spirit.ResetAck,
		Greeting:    cfg.Spirit.Greeting,
	}
}

func (o *Options) applyDefaults() {
	d := config.Default()
	if o.MemoryDepth <= 0 {
		o.MemoryDepth = d.Spirit.MemoryDepth
	}
	if o.Sentinel == "" {
		o.Sentinel = d.Spirit.Sentinel
	}
	if o.ResetAck == "" {
		o.ResetAck = d.Spirit.ResetAck
	}
	if o.Greeting == "" {
		o.Greeting = d.Spirit.Greeting
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = d.Inference.MaxTokens
	}
}

// Service is the conversation session manager. There is exactly one current
// spirit per deployment; every caller talks to it.
type Service struct {
	store     *Store
	generator *Generator
	client    inference.Client
	opts      Options
	logger    *slog.Logger

	locks  keyedMutex
	summon singleflight.Group
}

// NewService wires the session manager over st and client.
func NewService(st *Store, client inference.Client, opts Options) *Service {
	opts.applyDefaults()
	return &Service{
		store: st,
		generator: NewGenerator(client, st, GeneratorConfig{
			Model:       opts.Model,
			Temperature: opts.Temperature,
			MaxTokens:   opts.MaxTokens,
		}),
		client: client,
		opts:   opts,
		logger: logging.WithComponent("spirit"),
	}
}

// Store exposes the underlying record store.
func (s *Service) Store() *Store {
	return s.store
}

// Current returns the current spirit, summoning one when the pointer is
// missing or names a record that is gone or invalid.
func (s *Service) Current(ctx context.Context) (*Record, error) {
	id, ok, err := s.store.CurrentID(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		rec, found, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if found {
			return rec, nil
		}
		s.logger.Info("current spirit is gone, summoning a new one", "id", id)
	}

	// concurrent callers share one generation
	v, err, _ := s.summon.Do("current", func() (any, error) {
		return s.generator.Generate(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Record).Clone(), nil
}

// Ask sends question to the current spirit and returns its reply. The
// record is only persisted after a successful model call. When the spirit
// hands over, its conversation is saved first, a new spirit is summoned and
// the fixed acknowledgment is returned instead of the reply.
func (s *Service) Ask(ctx context.Context, question string) (string, error) {
	rec, unlock, err := s.lockCurrent(ctx)
	if err != nil {
		return "", err
	}
	defer unlock()

	question = strings.TrimSpace(question)
	if question == "" {
		question = s.opts.Greeting
	}
	rec.Append(inference.RoleUser, question, s.opts.MemoryDepth)

	msgs, err := askMessages(rec, s.opts.Sentinel)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Chat(ctx, &inference.Request{
		Model:       s.opts.Model,
		Messages:    msgs,
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
		Purpose:     "ask",
	})
	if err != nil {
		return "", err
	}

	reply := Sanitize(resp.Content)
	reply, handover := ExtractSentinel(reply, s.opts.Sentinel)

	rec.Append(inference.RoleAssistant, reply, s.opts.MemoryDepth)
	if err := s.store.Put(ctx, rec); err != nil {
		return "", err
	}

	if !handover {
		return reply, nil
	}

	metrics.SentinelResets.Inc()
	s.logger.Info("spirit asked to hand over", "id", rec.ID)
	if _, err := s.generator.Generate(ctx); err != nil {
		return "", err
	}
	return s.opts.ResetAck, nil
}

// lockCurrent locks the current spirit and reloads it under the lock, so
// turns from a concurrent ask are kept. When the pointer moved while waiting
// (a hand-over or switch), the newly current spirit is locked instead.
func (s *Service) lockCurrent(ctx context.Context) (*Record, func(), error) {
	for {
		rec, err := s.Current(ctx)
		if err != nil {
			return nil, nil, err
		}
		unlock := s.locks.Lock(rec.ID)

		id, ok, err := s.store.CurrentID(ctx)
		if err != nil {
			unlock()
			return nil, nil, err
		}
		if ok && id != rec.ID {
			unlock()
			continue
		}

		fresh, found, err := s.store.Get(ctx, rec.ID)
		if err != nil {
			unlock()
			return nil, nil, err
		}
		if found {
			rec = fresh
		}
		return rec, unlock, nil
	}
}

// Reset summons a brand new spirit and makes it current.
func (s *Service) Reset(ctx context.Context) (*Record, error) {
	return s.generator.Generate(ctx)
}

// List returns every valid spirit and the current id ("" when unset).
func (s *Service) List(ctx context.Context) ([]*Record, string, error) {
	records, err := s.store.ListValid(ctx)
	if err != nil {
		return nil, "", err
	}
	id, _, err := s.store.CurrentID(ctx)
	if err != nil {
		return nil, "", err
	}
	return records, id, nil
}

// Search resolves name against the stored spirits. A query that is the id
// of a stored spirit resolves to it directly.
func (s *Service) Search(ctx context.Context, name string) (Resolution, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Resolution{}, fmt.Errorf("%w: a name is required", ErrValidation)
	}

	if rec, ok, err := s.store.Get(ctx, Slugify(name)); err != nil {
		return Resolution{}, err
	} else if ok {
		return Resolution{Kind: OneMatch, Matches: []*Record{rec}}, nil
	}

	records, err := s.store.ListValid(ctx)
	if err != nil {
		return Resolution{}, err
	}
	return Resolve(records, name), nil
}

// Switch makes the spirit matching name current. The pointer only moves on
// OneMatch.
func (s *Service) Switch(ctx context.Context, name string) (Resolution, error) {
	res, err := s.Search(ctx, name)
	if err != nil {
		return res, err
	}
	if res.Kind != OneMatch {
		return res, nil
	}
	if err := s.store.SetCurrentID(ctx, res.Record().ID); err != nil {
		return Resolution{}, err
	}
	s.logger.Info("switched spirit", "id", res.Record().ID)
	return res, nil
}

// Profile returns the current spirit's profile.
func (s *Service) Profile(ctx context.Context) (Profile, error) {
	rec, err := s.Current(ctx)
	if err != nil {
		return Profile{}, err
	}
	return rec.Profile, nil
}

// History returns up to n of the current spirit's most recent turns.
func (s *Service) History(ctx context.Context, n int) ([]Turn, error) {
	if n < 1 {
		n = 1
	}
	rec, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	return rec.Last(n), nil
}

// Sweep purges invalid records from the store.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	return s.store.Sweep(ctx)
}
