package domain

import "fmt"

// Entity is implemented by every ordered collection item. T is the
// implementing type itself so that helpers can return typed copies.
type Entity[T any] interface {
	EntityID() string
	WithSortOrder(order int) T
	Validate() error
}

type Banner struct {
	ID        string `json:"id" db:"id"`
	Title     string `json:"title" db:"title"`
	Subtitle  string `json:"subtitle" db:"subtitle"`
	ImageURL  string `json:"imageUrl" db:"image_url"`
	LinkURL   string `json:"linkUrl" db:"link_url"`
	SortOrder int    `json:"sortOrder" db:"sort_order"`
}

func (b Banner) EntityID() string { return b.ID }

func (b Banner) WithSortOrder(order int) Banner {
	b.SortOrder = order
	return b
}

func (b Banner) Validate() error { return validateID("banner", b.ID) }

type VideoCard struct {
	ID          string `json:"id" db:"id"`
	Title       string `json:"title" db:"title"`
	Description string `json:"description" db:"description"`
	CoverURL    string `json:"coverUrl" db:"cover_url"`
	PreviewURL  string `json:"previewUrl" db:"preview_url"`
	VideoURL    string `json:"videoUrl" db:"video_url"`
	Duration    string `json:"duration" db:"duration"`
	SortOrder   int    `json:"sortOrder" db:"sort_order"`
}

func (v VideoCard) EntityID() string { return v.ID }

func (v VideoCard) WithSortOrder(order int) VideoCard {
	v.SortOrder = order
	return v
}

func (v VideoCard) Validate() error { return validateID("video", v.ID) }

type Notice struct {
	ID        string `json:"id" db:"id"`
	Title     string `json:"title" db:"title"`
	Content   string `json:"content" db:"content"`
	Date      string `json:"date" db:"date"`
	SortOrder int    `json:"sortOrder" db:"sort_order"`
}

func (n Notice) EntityID() string { return n.ID }

func (n Notice) WithSortOrder(order int) Notice {
	n.SortOrder = order
	return n
}

func (n Notice) Validate() error { return validateID("notice", n.ID) }

// PromoCard is a singleton stored once per PromoSlot.
type PromoCard struct {
	Title       string `json:"title" db:"title"`
	Description string `json:"description" db:"description"`
	ButtonText  string `json:"buttonText" db:"button_text"`
	ButtonLink  string `json:"buttonLink" db:"button_link"`
	IsActive    bool   `json:"isActive" db:"is_active"`
}

// Meaningful reports whether the card carries an edit worth preserving
// over the remote copy.
func (p PromoCard) Meaningful() bool {
	return p.Title != "" || p.IsActive
}

type PromoSlot string

const (
	PromoTop    PromoSlot = "top"
	PromoBottom PromoSlot = "bottom"
)

func ParsePromoSlot(s string) (PromoSlot, error) {
	switch PromoSlot(s) {
	case PromoTop, PromoBottom:
		return PromoSlot(s), nil
	}
	return "", fmt.Errorf("%w: unknown promo slot %q", ErrInvalidEntity, s)
}

// LocalKey is the local store key holding the slot's card. The keys match
// the ones already present on devices.
func (s PromoSlot) LocalKey() string {
	if s == PromoBottom {
		return "bottom_promo"
	}
	return "promo"
}

func validateID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s without id", ErrInvalidEntity, kind)
	}
	return nil
}
