// Package review owns the review list: loading and persisting it, deriving
// what the page shows, and notifying renderers when it changes.
package review

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aimerfeng/StarReviews/internal/logging"
	"github.com/aimerfeng/StarReviews/internal/models"
	"github.com/aimerfeng/StarReviews/internal/monitoring"
	"github.com/aimerfeng/StarReviews/internal/storage"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultKey is the storage key holding the serialized list
const DefaultKey = "reviews"

// DefaultDateLayout formats submission dates as dd.mm.yyyy
const DefaultDateLayout = "02.01.2006"

// Submission holds raw form values, already trimmed by the form
type Submission struct {
	Name   string
	Rating string
	Text   string
}

// Options configures a Store
type Options struct {
	Key           string
	DefaultAuthor string
	DateLayout    string

	// Seeds is the fallback list used when nothing usable is stored.
	// Nil means the fallback is an empty list.
	Seeds func(date string) models.Collection

	// PersistSeeds writes the fallback list back to storage on load
	PersistSeeds bool

	Now    func() time.Time
	Logger *zerolog.Logger
}

// Store is the single owner of the review list and the only component that
// reads or writes it in storage. It is safe for concurrent use within one
// process; separate processes sharing a key resolve as last write wins.
type Store struct {
	kv            storage.KeyValue
	key           string
	defaultAuthor string
	dateLayout    string
	seeds         func(date string) models.Collection
	persistSeeds  bool
	now           func() time.Time
	logger        zerolog.Logger

	mu      sync.Mutex
	reviews models.Collection
	loaded  bool
	// synced is false while the last read could not reach storage. Nothing
	// is written until a later read succeeds.
	synced  bool
	pending models.Collection
}

// NewStore creates a store over kv
func NewStore(kv storage.KeyValue, opts Options) *Store {
	s := &Store{
		kv:            kv,
		key:           opts.Key,
		defaultAuthor: opts.DefaultAuthor,
		dateLayout:    opts.DateLayout,
		seeds:         opts.Seeds,
		persistSeeds:  opts.PersistSeeds,
		now:           opts.Now,
		reviews:       models.Collection{},
	}
	if s.key == "" {
		s.key = DefaultKey
	}
	if s.defaultAuthor == "" {
		s.defaultAuthor = models.DefaultAuthor
	}
	if s.dateLayout == "" {
		s.dateLayout = DefaultDateLayout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if opts.Logger != nil {
		s.logger = *opts.Logger
	} else {
		s.logger = logging.NewLogger("review_store")
	}
	return s
}

// Load replaces the in-memory list with the stored one. It never fails:
// an absent, empty or malformed value yields the fallback list instead.
func (s *Store) Load(ctx context.Context) models.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load(ctx)
	return s.reviews.Clone()
}

func (s *Store) load(ctx context.Context) {
	s.loaded = true

	stored, err := s.read(ctx)
	switch {
	case err == nil:
		s.synced = true
		s.reviews = stored
	case errors.Is(err, ErrNoData):
		s.synced = true
		s.reviews = s.fallback()
		s.logger.Info().Str("key", s.key).Int("reviews", len(s.reviews)).Msg("No stored reviews, using fallback")
	default:
		var rerr *StorageReadError
		s.synced = !(errors.As(err, &rerr) && rerr.Unavailable)
		s.reviews = s.fallback()
		monitoring.RecordStorageFallback("read")
		logging.LogStorageFallback(s.logger, "read", s.key, err, len(s.reviews))
	}

	// Reviews accepted while storage was unreachable go after whatever is stored
	s.reviews = append(s.reviews, s.pending...)

	if !s.synced {
		return
	}
	if len(s.pending) > 0 {
		s.pending = nil
		s.persist(ctx)
		return
	}
	if err != nil && s.persistSeeds && len(s.reviews) > 0 {
		s.persist(ctx)
	}
}

func (s *Store) read(ctx context.Context) (models.Collection, error) {
	raw, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &StorageReadError{Key: s.key, Err: ErrNoData}
		}
		return nil, &StorageReadError{Key: s.key, Err: err, Unavailable: true}
	}

	var c models.Collection
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, &StorageReadError{Key: s.key, Err: err}
	}
	if len(c) == 0 {
		return nil, &StorageReadError{Key: s.key, Err: ErrNoData}
	}
	return c, nil
}

func (s *Store) fallback() models.Collection {
	if s.seeds == nil {
		return models.Collection{}
	}
	return s.seeds(s.now().Format(s.dateLayout)).Clone()
}

// persist writes the whole list. A failure is logged and swallowed.
func (s *Store) persist(ctx context.Context) {
	data, err := json.Marshal(s.reviews)
	if err == nil {
		err = s.kv.Set(ctx, s.key, string(data))
	}
	if err != nil {
		monitoring.RecordStorageFallback("write")
		logging.LogStorageFallback(s.logger, "write", s.key, &StorageWriteError{Key: s.key, Err: err}, len(s.reviews))
	}
}

// Append validates a submission, appends it and writes the whole list.
// Only validation failures are returned; a storage write failure keeps the
// in-memory append and is logged. When storage was unreachable on the last
// read, Append reads again first and, if it still cannot, keeps the review
// in memory and retries the write on the next successful read.
func (s *Store) Append(ctx context.Context, sub Submission) (models.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded || !s.synced {
		s.load(ctx)
	}

	r, err := s.normalize(sub)
	if err != nil {
		monitoring.RecordReviewRejected()
		return s.reviews.Clone(), err
	}

	s.reviews = append(s.reviews, r)
	if s.synced {
		s.persist(ctx)
	} else {
		s.pending = append(s.pending, r)
		monitoring.RecordStorageFallback("write")
		logging.LogStorageFallback(s.logger, "write", s.key, &StorageWriteError{Key: s.key, Err: ErrUnsynced}, len(s.reviews))
	}

	monitoring.RecordReviewSubmitted(int(r.Rating))
	logging.LogReviewSubmitted(s.logger, r.Name, int(r.Rating), r.Text, len(s.reviews))

	return s.reviews.Clone(), nil
}

func (s *Store) normalize(sub Submission) (models.Review, error) {
	raw := strings.TrimSpace(sub.Rating)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return models.Review{}, &ValidationError{Field: "rating", Value: raw, Reason: "must be an integer"}
	}
	rating := models.Rating(n)
	if !rating.Valid() {
		return models.Review{}, &ValidationError{Field: "rating", Value: raw, Reason: "must be between 0 and 5"}
	}

	name := strings.TrimSpace(sub.Name)
	if name == "" {
		name = s.defaultAuthor
	}

	return models.Review{
		Name:   name,
		Rating: rating,
		Text:   strings.TrimSpace(sub.Text),
		Date:   s.now().Format(s.dateLayout),
	}, nil
}

// Reviews returns a copy of the in-memory list
func (s *Store) Reviews() models.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reviews.Clone()
}

// AverageRating is Average over the in-memory list
func (s *Store) AverageRating() float64 {
	return Average(s.Reviews())
}

// Average returns the mean rating rounded half-up to one decimal, or 0 for
// an empty collection. Ratings outside [0,5] count as 0.
func Average(c models.Collection) float64 {
	if len(c) == 0 {
		return 0
	}

	sum := decimal.Zero
	for _, r := range c {
		if r.Rating.Valid() {
			sum = sum.Add(decimal.NewFromInt(int64(r.Rating)))
		}
	}

	avg, _ := sum.Div(decimal.NewFromInt(int64(len(c)))).Round(1).Float64()
	return avg
}

// DefaultSeeds is the example list shown before anyone has reviewed
func DefaultSeeds(date string) models.Collection {
	return models.Collection{
		{
			Name:   "Anna",
			Rating: 5,
			Text:   "Great place, the kids loved it!",
			Date:   date,
		},
		{
			Name:   "Ivan",
			Rating: 4,
			Text:   "Good place, but prices could be lower",
			Date:   date,
		},
	}
}
