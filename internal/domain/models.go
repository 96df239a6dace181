// Package domain defines the persistence models for campaigns, positions,
// prizes, and lottery results. These types are mapped with GORM and form the
// core data layer of the lottery backend.
package domain

import (
	"time"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
//
// Transitions: draft → published → closed → drawn. A campaign may also be
// drawn directly from published when it is sold out or past its end date.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignPublished CampaignStatus = "published"
	CampaignClosed    CampaignStatus = "closed"
	CampaignDrawn     CampaignStatus = "drawn"
)

// PositionStatus enumerates the sale states of a grid position.
type PositionStatus string

const (
	PositionAvailable PositionStatus = "available"
	PositionSold      PositionStatus = "sold"
)

// LayerPrices maps a layer rank (1..BaseLength) to the prize value configured
// for that layer. Layers with a missing or non-positive value carry no prize
// and are skipped by the draw.
type LayerPrices map[int]int64

// Campaign represents a single lottery sales event with a triangular grid of
// purchasable positions. Layer k of a campaign with base length N holds k
// positions, so the grid has N*(N+1)/2 positions in total.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Name: human-readable campaign title.
//   - BaseLength: N, the number of layers (and the width of the bottom row).
//   - LayerPrices: per-layer prize value map, stored as a JSON column.
//   - TotalPositions / SoldPositions: sales progress counters maintained by
//     the sales flow; the draw only reads them.
//   - Status: lifecycle state; "drawn" is terminal.
//   - EndsAt: optional end of the sales window.
//   - DrawnAt: set exactly once, when the draw commits.
type Campaign struct {
	ID             string         `json:"id"              gorm:"type:char(36);primaryKey"`
	Name           string         `json:"name"            gorm:"type:varchar(255);not null"`
	BaseLength     int            `json:"base_length"     gorm:"not null;check:base_length > 0"`
	LayerPrices    LayerPrices    `json:"layer_prices"    gorm:"serializer:json"`
	TotalPositions int            `json:"total_positions" gorm:"not null;default:0"`
	SoldPositions  int            `json:"sold_positions"  gorm:"not null;default:0"`
	Status         CampaignStatus `json:"status"          gorm:"type:varchar(16);not null;default:'draft';index"`
	EndsAt         *time.Time     `json:"ends_at,omitempty"`
	DrawnAt        *time.Time     `json:"drawn_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TableName returns the database table name for Campaign.
func (Campaign) TableName() string { return "campaigns" }

// Position represents one purchasable grid cell. Row/Col locate the cell
// inside the triangle; Layer is the diagonal tier the cell belongs to.
// Once sold, a position is never mutated by the draw; the draw only reads
// sold positions and records results against them.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - CampaignID: foreign key to the owning campaign (indexed).
//   - Row / Col: 1-based grid coordinates, unique within a campaign.
//   - Layer: prize tier, 1..Campaign.BaseLength.
//   - Status: "available" or "sold" (enforced by DB constraint).
//   - UserID: owning user once sold; empty while available.
type Position struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	CampaignID string         `json:"campaign_id" gorm:"type:char(36);not null;index:idx_campaign_positions;uniqueIndex:ux_campaign_cell,priority:1"`
	Row        int            `json:"row"         gorm:"not null;uniqueIndex:ux_campaign_cell,priority:2"`
	Col        int            `json:"col"         gorm:"not null;uniqueIndex:ux_campaign_cell,priority:3"`
	Layer      int            `json:"layer"       gorm:"not null;index"`
	Status     PositionStatus `json:"status"      gorm:"type:varchar(16);not null;default:'available';check:status IN ('available','sold')"`
	UserID     string         `json:"user_id,omitempty" gorm:"type:varchar(64);index"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`

	// Campaign is the parent sales event. Positions are cascade-deleted if
	// their campaign is removed.
	Campaign Campaign `json:"-" gorm:"foreignKey:CampaignID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Position.
func (Position) TableName() string { return "positions" }

// Prize holds optional richer metadata for one layer of a campaign. When no
// Prize row exists for a layer, the draw synthesizes one from the layer's
// configured price value.
type Prize struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	CampaignID string    `json:"campaign_id" gorm:"type:char(36);not null;uniqueIndex:ux_campaign_rank,priority:1"`
	Rank       int       `json:"rank"        gorm:"not null;uniqueIndex:ux_campaign_rank,priority:2"`
	Name       string    `json:"name"        gorm:"type:varchar(255);not null"`
	ImageURL   string    `json:"image_url,omitempty" gorm:"type:varchar(512)"`
	Value      int64     `json:"value"       gorm:"not null;default:0"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Campaign Campaign `json:"-" gorm:"foreignKey:CampaignID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Prize.
func (Prize) TableName() string { return "prizes" }

// LotteryResult is the durable record of one layer's winning position, user,
// and prize. Rows are created exactly once per winning layer inside the draw
// transaction and are never updated or deleted afterwards. The presence of
// any result row for a campaign is what makes the campaign "already drawn".
//
// PrizeName and PrizeValue are snapshots taken at draw time so that results
// remain stable even if prize metadata is edited later.
type LotteryResult struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	CampaignID string    `json:"campaign_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_campaign_result_rank,priority:1"`
	Rank       int       `json:"rank"        gorm:"not null;uniqueIndex:ux_campaign_result_rank,priority:2"`
	PositionID string    `json:"position_id" gorm:"type:char(36);not null"`
	UserID     string    `json:"user_id"     gorm:"type:varchar(64);not null;index"`
	PrizeName  string    `json:"prize_name"  gorm:"type:varchar(255);not null"`
	PrizeValue int64     `json:"prize_value" gorm:"not null;default:0"`
	DrawnAt    time.Time `json:"drawn_at"    gorm:"not null;index"`
	CreatedAt  time.Time `json:"created_at"`

	Campaign Campaign `json:"-" gorm:"foreignKey:CampaignID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Position Position `json:"-" gorm:"foreignKey:PositionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for LotteryResult.
func (LotteryResult) TableName() string { return "lottery_results" }

// User is the minimal account row the draw touches. PrizesWon is a derived
// counter incremented when a result is recorded; it must always equal the
// count of that user's LotteryResult rows.
type User struct {
	ID        string    `json:"id"         gorm:"type:varchar(64);primaryKey"`
	Name      string    `json:"name"       gorm:"type:varchar(255);not null"`
	Email     string    `json:"email"      gorm:"type:varchar(255);not null;uniqueIndex"`
	PrizesWon int       `json:"prizes_won" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Winner is the denormalized read model returned by result queries. It joins
// a LotteryResult with the winning user's name and the winning position's
// coordinates; it is never persisted on its own.
type Winner struct {
	ResultID   string    `json:"result_id"`
	CampaignID string    `json:"campaign_id"`
	Rank       int       `json:"rank"`
	PrizeName  string    `json:"prize_name"`
	PrizeValue int64     `json:"prize_value"`
	PositionID string    `json:"position_id"`
	Row        int       `json:"row"`
	Col        int       `json:"col"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"`
	DrawnAt    time.Time `json:"drawn_at"`
}
