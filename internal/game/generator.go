package game

import (
	"crypto/rand"
	"encoding/hex"
	"hash/fnv"
	mathrand "math/rand"
	"sort"
	"strconv"

	"music-quiz-service/internal/domain"
)

const (
	// QuestionCount is the fixed length of every question sequence.
	QuestionCount = 20
	// OptionsPerQuestion is the answer plus three distractors.
	OptionsPerQuestion = 4

	distractorsPerQuestion = OptionsPerQuestion - 1
)

// NewSeed draws a fresh 128-bit random seed, hex encoded. It is stored with
// the session so any question sequence can be re-derived for auditing.
func NewSeed() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Generate builds a 20-question sequence from the active catalog under a
// fresh random seed. Returns ErrInsufficientSongs when the catalog holds
// fewer than QuestionCount active songs.
func Generate(catalog map[string]domain.Song) ([]domain.QuestionSpec, string, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, "", domain.Internal("could not draw seed", err)
	}
	questions, err := GenerateWithSeed(catalog, seed)
	if err != nil {
		return nil, "", err
	}
	return questions, seed, nil
}

// GenerateWithSeed is the deterministic core of Generate: the same catalog
// and seed always produce the same sequence. Each shuffle derives its own
// sub-seed from (seed, question index, purpose) so the draws stay
// independent of each other.
func GenerateWithSeed(catalog map[string]domain.Song, seed string) ([]domain.QuestionSpec, error) {
	songs := activeSongs(catalog)
	if len(songs) < QuestionCount {
		return nil, domain.ErrInsufficientSongs
	}

	// Map order is random; sort before shuffling so the seed alone fixes
	// the permutation.
	sort.Slice(songs, func(i, j int) bool { return songs[i].ID < songs[j].ID })
	shuffle(songs, seed)

	answers := songs[:QuestionCount]
	pool := songs[QuestionCount:]

	questions := make([]domain.QuestionSpec, 0, QuestionCount)
	for i, answer := range answers {
		distractors := pickDistractors(pool, answers, i, seed)

		options := make([]domain.Song, 0, OptionsPerQuestion)
		options = append(options, answer)
		options = append(options, distractors...)
		shuffle(options, seed+"opt"+strconv.Itoa(i))

		spec := domain.QuestionSpec{Index: i, SongID: answer.ID}
		for pos, opt := range options {
			spec.Options[pos] = opt.ID
			if opt.ID == answer.ID {
				spec.CorrectIndex = pos
			}
		}
		questions = append(questions, spec)
	}
	return questions, nil
}

// pickDistractors draws three songs for question i that are distinct from
// each other and from the answer. The non-answer remainder of the catalog is
// preferred; when it is too small (catalog barely above 20 songs) the other
// answer songs fill in.
func pickDistractors(pool, answers []domain.Song, i int, seed string) []domain.Song {
	candidates := pool
	if len(candidates) < distractorsPerQuestion {
		candidates = make([]domain.Song, 0, len(pool)+len(answers)-1)
		candidates = append(candidates, pool...)
		for j, other := range answers {
			if j != i {
				candidates = append(candidates, other)
			}
		}
	}
	shuffled := make([]domain.Song, len(candidates))
	copy(shuffled, candidates)
	shuffle(shuffled, seed+strconv.Itoa(i))
	return shuffled[:distractorsPerQuestion]
}

func activeSongs(catalog map[string]domain.Song) []domain.Song {
	songs := make([]domain.Song, 0, len(catalog))
	for _, song := range catalog {
		if song.Active {
			songs = append(songs, song)
		}
	}
	return songs
}

// shuffle is a Fisher-Yates permutation seeded from key.
func shuffle(songs []domain.Song, key string) {
	rnd := mathrand.New(mathrand.NewSource(subSeed(key)))
	rnd.Shuffle(len(songs), func(i, j int) {
		songs[i], songs[j] = songs[j], songs[i]
	})
}

func subSeed(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64())
}
