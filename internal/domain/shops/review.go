package shops

import (
	"time"

	"github.com/google/uuid"
)

// Review is a buyer's rating of a shop
type Review struct {
	UserID    uuid.UUID
	Rating    int
	Text      string
	CreatedAt time.Time
}

// AddReview records a 1..5 rating from userID
func (s *Shop) AddReview(userID uuid.UUID, rating int, text string, at time.Time) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	s.reviewMu.Lock()
	defer s.reviewMu.Unlock()
	s.reviews = append(s.reviews, Review{UserID: userID, Rating: rating, Text: text, CreatedAt: at})
	return nil
}

// Reviews returns the reviews in insertion order
func (s *Shop) Reviews() []Review {
	s.reviewMu.Lock()
	defer s.reviewMu.Unlock()
	out := make([]Review, len(s.reviews))
	copy(out, s.reviews)
	return out
}

// AverageRating returns the mean rating, or -1 when there are no reviews
func (s *Shop) AverageRating() float64 {
	s.reviewMu.Lock()
	defer s.reviewMu.Unlock()
	if len(s.reviews) == 0 {
		return -1
	}
	sum := 0
	for _, r := range s.reviews {
		sum += r.Rating
	}
	return float64(sum) / float64(len(s.reviews))
}
