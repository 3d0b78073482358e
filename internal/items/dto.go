package items

import (
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rewear/rewear-backend/pkg/db/models"
	"github.com/rewear/rewear-backend/pkg/enums"
)

// ItemDTO is the public listing shape. Images are public URL paths.
type ItemDTO struct {
	ID          uuid.UUID              `json:"id"`
	OwnerID     uuid.UUID              `json:"ownerId"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Category    string                 `json:"category"`
	Type        string                 `json:"type"`
	Size        string                 `json:"size"`
	Condition   string                 `json:"condition"`
	Tags        []string               `json:"tags"`
	Images      []string               `json:"images"`
	Status      enums.ModerationStatus `json:"status"`
	Available   bool                   `json:"available"`
	CreatedAt   time.Time              `json:"createdAt"`
}

// ImageUpload is one multipart file handed to the service.
type ImageUpload struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// CreateItemInput is the parsed multipart form for a new listing.
type CreateItemInput struct {
	Title       string
	Description string
	Category    string
	Type        string
	Size        string
	Condition   string
	Tags        string
	Images      []ImageUpload
}

// URLMapper turns stored object names into public paths.
type URLMapper struct {
	Prefix string
}

func (m URLMapper) URL(name string) string {
	prefix := strings.TrimRight(m.Prefix, "/")
	if prefix == "" {
		prefix = "/uploads"
	}
	return path.Join(prefix, name)
}

func (m URLMapper) FromModel(item *models.Item) *ItemDTO {
	if item == nil {
		return nil
	}
	images := make([]string, 0, len(item.Images))
	for _, name := range item.Images {
		images = append(images, m.URL(name))
	}
	return &ItemDTO{
		ID:          item.ID,
		OwnerID:     item.OwnerID,
		Title:       item.Title,
		Description: item.Description,
		Category:    item.Category,
		Type:        item.Type,
		Size:        item.Size,
		Condition:   item.Condition,
		Tags:        append([]string{}, item.Tags...),
		Images:      images,
		Status:      item.Status,
		Available:   item.Available,
		CreatedAt:   item.CreatedAt,
	}
}

func (m URLMapper) FromModels(rows []models.Item) []ItemDTO {
	out := make([]ItemDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *m.FromModel(&rows[i]))
	}
	return out
}

// ParseTags splits a comma separated list, trimming entries and dropping empties.
func ParseTags(raw string) []string {
	tags := []string{}
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
