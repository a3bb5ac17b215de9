package store

import (
	"crypto/rand"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const maxSlugLen = 50

var nonSlugRun = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s, collapses runs of other characters to a dash, trims
// leading and trailing dashes, and truncates to 50 bytes.
func Slugify(s string) string {
	slug := nonSlugRun.ReplaceAllString(strings.ToLower(s), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
	}
	return slug
}

// TicketFilename returns the file name for a ticket.
func TicketFilename(id, title string) string {
	return id + "-" + Slugify(title) + ".md"
}

func newULID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}

// NewTicketID returns a sortable ticket ID such as T-01JAB3....
func NewTicketID(now time.Time) string {
	return "T-" + newULID(now)
}

// NewCommentID returns a unique comment ID.
func NewCommentID(now time.Time) string {
	return "c_" + strings.ToLower(newULID(now))
}

func newBoardID(now time.Time) string {
	return "board_" + strings.ToLower(newULID(now))
}
