package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Phone-specific attributes are free text as
// entered by the shop.
type Product struct {
	ID                 string          `json:"id"`
	Title              string          `json:"title"`
	Slug               string          `json:"slug"`
	Description        string          `json:"description"`
	Brand              string          `json:"brand"`
	Category           string          `json:"category"`
	Price              decimal.Decimal `json:"price"`
	DiscountPercentage float64         `json:"discountPercentage"`
	Rating             float64         `json:"rating"`
	Stock              int             `json:"stock"`
	Thumbnail          string          `json:"thumbnail"`
	Images             []string        `json:"images"`
	Active             bool            `json:"isActive"`

	Screen      string   `json:"screen,omitempty"`
	OS          string   `json:"os,omitempty"`
	Camera      string   `json:"camera,omitempty"`
	CameraFront string   `json:"cameraFront,omitempty"`
	CPU         string   `json:"cpu,omitempty"`
	RAM         string   `json:"ram,omitempty"`
	ROM         string   `json:"rom,omitempty"`
	Battery     string   `json:"battery,omitempty"`
	SIM         string   `json:"sim,omitempty"`
	Weight      string   `json:"weight,omitempty"`
	Colors      []string `json:"colors"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const DefaultCategory = "smartphone"

// Validate checks the fields a stored product must carry.
func (p *Product) Validate() error {
	switch {
	case strings.TrimSpace(p.Title) == "":
		return Validationf("title is required")
	case strings.TrimSpace(p.Slug) == "":
		return Validationf("slug is required")
	case strings.TrimSpace(p.Brand) == "":
		return Validationf("brand is required")
	case strings.TrimSpace(p.Thumbnail) == "":
		return Validationf("thumbnail is required")
	case p.Price.IsNegative():
		return Validationf("price must be >= 0")
	case p.Stock < 0:
		return Validationf("stock must be >= 0")
	}
	return nil
}

// Normalize fills defaults before a product is stored.
func (p *Product) Normalize() {
	p.Title = strings.TrimSpace(p.Title)
	p.Slug = strings.TrimSpace(p.Slug)
	p.Brand = strings.TrimSpace(p.Brand)
	if p.Category == "" {
		p.Category = DefaultCategory
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Colors == nil {
		p.Colors = []string{}
	}
}
