package note

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const maxTitleLength = 90

// Type categorizes a note.
type Type string

const (
	TypeMeeting  Type = "Meeting"
	TypeIdea     Type = "Idea"
	TypeLearning Type = "Learning"
	TypeOther    Type = "Other"
)

// Source identifies where a note's raw text came from.
type Source string

const (
	SourceOtter    Source = "Otter"
	SourceMyScript Source = "MyScript"
	SourceManual   Source = "Manual"
	SourceUpload   Source = "Upload"
)

var (
	// ErrInvalidNote indicates the note failed structural validation.
	ErrInvalidNote = errors.New("note: invalid note")
	// ErrUnknownType indicates a note type outside the fixed set.
	ErrUnknownType = errors.New("note: unknown type")
	// ErrUnknownSource indicates a note source outside the fixed set.
	ErrUnknownSource = errors.New("note: unknown source")
)

// FullText carries the body text preserved alongside the structured fields.
type FullText struct {
	Body              string `json:"body,omitempty"`
	TranscriptSummary string `json:"transcript_summary,omitempty"`
}

// Note is the structured summary produced from a single raw source. Field
// names mirror the summarization model's JSON contract.
type Note struct {
	Title        string       `json:"title"`
	DateISO      string       `json:"date_iso"`
	Type         Type         `json:"type"`
	People       []string     `json:"people"`
	Source       Source       `json:"source"`
	TLDR         string       `json:"tldr"`
	Summary      string       `json:"summary"`
	ActionItems  []ActionItem `json:"action_items"`
	KeyTakeaways []string     `json:"key_takeaways"`
	FullText     *FullText    `json:"full_text,omitempty"`
	ContentHash  string       `json:"content_hash"`
}

// ParseType validates a raw note type.
func ParseType(raw string) (Type, error) {
	switch Type(strings.TrimSpace(raw)) {
	case TypeMeeting, TypeIdea, TypeLearning, TypeOther:
		return Type(strings.TrimSpace(raw)), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, raw)
	}
}

// ParseSource validates a raw note source.
func ParseSource(raw string) (Source, error) {
	switch Source(strings.TrimSpace(raw)) {
	case SourceOtter, SourceMyScript, SourceManual, SourceUpload:
		return Source(strings.TrimSpace(raw)), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSource, raw)
	}
}

// Validate checks the structural constraints the record writer relies on.
func (n *Note) Validate() error {
	title := strings.TrimSpace(n.Title)
	if title == "" {
		return fmt.Errorf("%w: title is empty", ErrInvalidNote)
	}
	if len(title) > maxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidNote, maxTitleLength)
	}
	if len(n.DateISO) < 4 {
		return fmt.Errorf("%w: date_iso %q too short", ErrInvalidNote, n.DateISO)
	}
	if _, err := ParseType(string(n.Type)); err != nil {
		return err
	}
	if _, err := ParseSource(string(n.Source)); err != nil {
		return err
	}
	if strings.TrimSpace(n.TLDR) == "" {
		return fmt.Errorf("%w: tldr is empty", ErrInvalidNote)
	}
	if strings.TrimSpace(n.Summary) == "" {
		return fmt.Errorf("%w: summary is empty", ErrInvalidNote)
	}
	if len(n.ContentHash) < 16 {
		return fmt.Errorf("%w: content_hash too short", ErrInvalidNote)
	}
	for i := range n.ActionItems {
		if strings.TrimSpace(n.ActionItems[i].Task) == "" {
			return fmt.Errorf("%w: action item %d has empty task", ErrInvalidNote, i)
		}
	}
	return nil
}

// HashContent returns the hex SHA-256 of the raw source text, used as the
// note's dedup-friendly content hash.
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
