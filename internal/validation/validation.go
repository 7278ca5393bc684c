package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/offtrack/offtrack/internal/types"
)

const (
	// MaxSeeds bounds how many seed descriptors one request may carry.
	MaxSeeds = 10
	// MaxFeedbackItems bounds one feedback batch.
	MaxFeedbackItems = 100
	// MaxIDList bounds the liked/disliked/exclude id lists.
	MaxIDList = 500
	// MaxTextField bounds free-text seed fields in runes.
	MaxTextField = 300
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// ValidateText checks a free-text field for UTF-8 validity, null bytes and
// length.
func ValidateText(field, value string, max int) *ValidationError {
	if !utf8.ValidString(value) {
		return &ValidationError{Field: field, Message: "must be valid UTF-8"}
	}
	if strings.Contains(value, "\x00") {
		return &ValidationError{Field: field, Message: "must not contain null bytes"}
	}
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("exceeds maximum length of %d characters", max),
		}
	}
	return nil
}

// ValidateRequired returns an error if the value is empty or whitespace-only.
func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

// ValidateEnum returns an error if the value is not in the allowed list.
func ValidateEnum(field, value string, allowed []string) *ValidationError {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateIDList bounds an id list's length and checks each entry.
func ValidateIDList(field string, ids []string) *ValidationError {
	if len(ids) > MaxIDList {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must not exceed %d entries", MaxIDList),
		}
	}
	for i, id := range ids {
		if err := ValidateText(fmt.Sprintf("%s[%d]", field, i), id, MaxTextField); err != nil {
			return err
		}
	}
	return nil
}

// ValidateRecommend checks a recommendation request. An empty seed list is
// allowed: the engine falls back to a default seed.
func ValidateRecommend(req types.RecommendRequest) []ValidationError {
	var c Collector

	if req.N < 0 {
		c.Add(&ValidationError{Field: "n", Message: "must not be negative"})
	}
	if req.Mode != "" {
		c.Add(ValidateEnum("mode", strings.ToLower(strings.TrimSpace(req.Mode)),
			[]string{string(types.ModeAll), string(types.ModeIndie), string(types.ModeMainstream)}))
	}
	if len(req.Seeds) > MaxSeeds {
		c.Add(&ValidationError{
			Field:   "seeds",
			Message: fmt.Sprintf("must not exceed %d entries", MaxSeeds),
		})
	}
	for i, seed := range req.Seeds {
		prefix := fmt.Sprintf("seeds[%d]", i)
		if seed.ID == "" && strings.TrimSpace(seed.Title) == "" {
			c.Add(&ValidationError{
				Field:   prefix,
				Message: "must carry an id or a title",
			})
		}
		c.Add(ValidateText(prefix+".id", seed.ID, MaxTextField))
		c.Add(ValidateText(prefix+".title", seed.Title, MaxTextField))
		c.Add(ValidateText(prefix+".artist", seed.Artist, MaxTextField))
		if seed.Year < 0 {
			c.Add(&ValidationError{Field: prefix + ".year", Message: "must not be negative"})
		}
	}
	c.Add(ValidateIDList("liked_ids", req.LikedIDs))
	c.Add(ValidateIDList("disliked_ids", req.DislikedIDs))
	c.Add(ValidateIDList("exclude_ids", req.ExcludeIDs))

	return c.Errors()
}

// ValidateFeedback checks a feedback batch.
func ValidateFeedback(req types.FeedbackRequest) []ValidationError {
	var c Collector

	if len(req.Items) == 0 {
		c.Add(&ValidationError{Field: "items", Message: "is required"})
	}
	if len(req.Items) > MaxFeedbackItems {
		c.Add(&ValidationError{
			Field:   "items",
			Message: fmt.Sprintf("must not exceed %d entries", MaxFeedbackItems),
		})
	}
	c.Add(ValidateText("distinct_id", req.DistinctID, MaxTextField))
	for i, item := range req.Items {
		prefix := fmt.Sprintf("items[%d]", i)
		c.Add(ValidateRequired(prefix+".track_id", item.TrackID))
		c.Add(ValidateText(prefix+".track_id", item.TrackID, MaxTextField))
		if !types.ValidAction(item.Action) {
			c.Add(&ValidationError{
				Field:   prefix + ".action",
				Message: "must be one of: like, dislike, skip",
			})
		}
	}

	return c.Errors()
}
