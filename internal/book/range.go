package book

import "time"

type Zone string

const (
	ZoneUpper   Zone = "UPPER"
	ZoneNeutral Zone = "NEUTRAL"
	ZoneLower   Zone = "LOWER"
)

type Relation string

const (
	RelationInside Relation = "INSIDE"
	RelationAbove  Relation = "ABOVE"
	RelationBelow  Relation = "BELOW"
)

// Band is a percentage-bounded price range anchored to a reference price.
// Bands are immutable values: a new anchor or width means a new Band.
type Band struct {
	Zone        Zone          `json:"zone"`
	TopPct      float64       `json:"top_pct"`
	BottomPct   float64       `json:"bottom_pct"`
	TopPrice    float64       `json:"top_price"`
	BottomPrice float64       `json:"bottom_price"`
	TTL         time.Duration `json:"ttl"`
}

func NewBand(zone Zone, anchor, topPct, bottomPct float64, ttl time.Duration) Band {
	return Band{
		Zone:        zone,
		TopPct:      topPct,
		BottomPct:   bottomPct,
		TopPrice:    anchor * (1 + topPct/100),
		BottomPrice: anchor * (1 + bottomPct/100),
		TTL:         ttl,
	}
}

func (b Band) Relation(price float64) Relation {
	switch {
	case price >= b.BottomPrice && price <= b.TopPrice:
		return RelationInside
	case price > b.TopPrice:
		return RelationAbove
	default:
		return RelationBelow
	}
}
