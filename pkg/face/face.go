// Package face contains the core domain types for the Discord face service.
package face

import "time"

// Metadata identifying this face to the orchestrator.
const (
	Key         = "kilroy-face-discord"
	Description = "Kilroy face for Discord"
	PostType    = "text-with-optional-image"
)

// Reaction is one emoji reaction tally on a post.
type Reaction struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

// Image is an attachment reference carried by a scraped post.
type Image struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Post is a single Discord message as the face sees it. The face holds
// posts only transiently while iterating; Discord owns the data.
type Post struct {
	Timestamp time.Time  `json:"timestamp"`
	ID        string     `json:"id"`
	ChannelID string     `json:"channel_id"`
	AuthorID  string     `json:"author_id"`
	Content   string     `json:"content"`
	Reactions []Reaction `json:"reactions,omitempty"`
	Images    []Image    `json:"images,omitempty"`
	Bot       bool       `json:"bot"`
}

// TotalReactions returns the post's reaction count summed across emoji.
func (p *Post) TotalReactions() int {
	total := 0
	for _, r := range p.Reactions {
		total += r.Count
	}
	return total
}

// TextData is the text part of a post document.
type TextData struct {
	Content string `json:"content"`
}

// ImageData is an inline image payload in a post document. Raw holds
// urlsafe base64 bytes.
type ImageData struct {
	Raw      string `json:"raw"`
	Filename string `json:"filename"`
}

// Document is the wire form of a post exchanged with the orchestrator.
// Outbound documents (to be posted) may carry an inline Image; documents
// produced by scraping carry attachment references in Images instead.
type Document struct {
	Text   *TextData  `json:"text,omitempty"`
	Image  *ImageData `json:"image,omitempty"`
	Images []Image    `json:"images,omitempty"`
}

// Empty reports whether the document carries neither text nor any image.
func (d *Document) Empty() bool {
	return (d.Text == nil || d.Text.Content == "") && d.Image == nil && len(d.Images) == 0
}

// DocumentFor converts a scraped post into its wire document, or nil when
// the post has no usable content.
func DocumentFor(p *Post) *Document {
	doc := &Document{Images: p.Images}
	if p.Content != "" {
		doc.Text = &TextData{Content: p.Content}
	}
	if doc.Empty() {
		return nil
	}
	return doc
}

// State is the face state persisted between runs.
type State struct {
	UpdatedAt         time.Time `json:"updated_at"`
	ScrapingType      string    `json:"scraping_type"`
	ScoringType       string    `json:"scoring_type"`
	ScrapingChannelID string    `json:"scraping_channel_id"`
	PostingChannelID  string    `json:"posting_channel_id"`
	LastScrapedID     string    `json:"last_scraped_id"`
	MemberCount       int       `json:"member_count"`
}
