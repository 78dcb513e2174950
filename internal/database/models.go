package database

import (
	"errors"
	"time"
)

// Catalog errors.
var (
	ErrDuplicateID = errors.New("catalog entry already exists")
	ErrNotFound    = errors.New("catalog entry not found")
)

// DefaultListLimit is the page size of List when none is given.
const DefaultListLimit = 50

// Entry is a published video.
type Entry struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	UploaderID    string    `json:"uploaderId"`
	DurationSec   int64     `json:"durationSec"`
	HLSPath       string    `json:"hlsPath"`
	ThumbnailPath string    `json:"thumbnailPath"`
	IsPublic      bool      `json:"isPublic"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ListOptions filters List.
type ListOptions struct {
	Limit         int
	IncludeHidden bool
	UploaderID    string
}

// Counts summarises the catalog.
type Counts struct {
	Public int `json:"public"`
	Hidden int `json:"hidden"`
}

// Total returns the number of entries.
func (c Counts) Total() int {
	return c.Public + c.Hidden
}

func (o ListOptions) limit() int {
	if o.Limit <= 0 || o.Limit > 500 {
		return DefaultListLimit
	}
	return o.Limit
}

// stamp fills CreatedAt and normalises it to the millisecond precision both
// stores keep.
func (e *Entry) stamp() {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Millisecond)
}
