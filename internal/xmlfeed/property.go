// Package xmlfeed reads and rewrites the flat property-listing XML schema
// served by feed origins: a document element holding <property> children
// interleaved with feed-level siblings such as <kyero> or <agent>.
package xmlfeed

// Property is one listing from a source document, normalized at parse time.
// Missing numbers are zero, missing nested blocks are empty values.
type Property struct {
	ID           string            `json:"id"`
	Ref          string            `json:"ref"`
	Date         string            `json:"date"`
	Price        float64           `json:"price"`
	Currency     string            `json:"currency"`
	PriceFreq    string            `json:"price_freq"`
	Type         string            `json:"type"`
	Town         string            `json:"town"`
	Province     string            `json:"province"`
	Country      string            `json:"country"`
	Beds         int               `json:"beds"`
	Baths        int               `json:"baths"`
	Pool         bool              `json:"pool"`
	SurfaceArea  SurfaceArea       `json:"surface_area"`
	EnergyRating EnergyRating      `json:"energy_rating"`
	URL          map[string]string `json:"url"`
	Desc         map[string]string `json:"desc"`
	Features     []string          `json:"features"`
	Images       []Image           `json:"images"`
	NewBuild     bool              `json:"new_build"`
	Prime        int               `json:"prime"`
	Email        string            `json:"email"`
}

// SurfaceArea holds built and plot sizes in square metres; nil means not given.
type SurfaceArea struct {
	Built *float64 `json:"built,omitempty"`
	Plot  *float64 `json:"plot,omitempty"`
}

// EnergyRating holds the consumption and emission grades. UnknownRating
// stands in for a grade the document does not carry.
type EnergyRating struct {
	Consumption string `json:"consumption"`
	Emissions   string `json:"emissions"`
}

// UnknownRating is the grade used when a property has no energy certificate.
const UnknownRating = "X"

// Image is a listing photo.
type Image struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Summary is the lightweight projection of a Property used by listing UIs.
type Summary struct {
	ID       string  `json:"id"`
	Ref      string  `json:"ref"`
	Type     string  `json:"type"`
	Town     string  `json:"town"`
	Price    float64 `json:"price"`
	Beds     int     `json:"beds"`
	Baths    int     `json:"baths"`
	ImageURL string  `json:"image_url,omitempty"`
}

// Summaries projects properties to summaries, keeping document order.
func Summaries(props []Property) []Summary {
	out := make([]Summary, 0, len(props))
	for _, p := range props {
		s := Summary{
			ID:    p.ID,
			Ref:   p.Ref,
			Type:  p.Type,
			Town:  p.Town,
			Price: p.Price,
			Beds:  p.Beds,
			Baths: p.Baths,
		}
		if len(p.Images) > 0 {
			s.ImageURL = p.Images[0].URL
		}
		out = append(out, s)
	}
	return out
}
