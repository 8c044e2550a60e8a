package xmlfeed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

const propertyElement = "property"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse decodes every <property> child of the document element, in document
// order. A document without a root element or without properties yields an
// empty slice.
func Parse(doc []byte) ([]Property, error) {
	dec := newDecoder(bytes.TrimPrefix(doc, utf8BOM))

	props := []Property{}
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return props, nil
		}
		if err != nil {
			return nil, &ParseError{Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 1 && t.Name.Local == propertyElement {
				var raw rawProperty
				if err := dec.DecodeElement(&raw, &t); err != nil {
					return nil, &ParseError{Err: err}
				}
				props = append(props, raw.normalize())
				continue
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}
}

func newDecoder(doc []byte) *xml.Decoder {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	dec.CharsetReader = charset.NewReaderLabel
	dec.Entity = xml.HTMLEntity
	return dec
}

type rawProperty struct {
	ID        string `xml:"id"`
	Ref       string `xml:"ref"`
	Date      string `xml:"date"`
	Price     string `xml:"price"`
	Currency  string `xml:"currency"`
	PriceFreq string `xml:"price_freq"`
	Type      string `xml:"type"`
	Town      string `xml:"town"`
	Province  string `xml:"province"`
	Country   string `xml:"country"`
	Beds      string `xml:"beds"`
	Baths     string `xml:"baths"`
	Pool      string `xml:"pool"`
	NewBuild  string `xml:"new_build"`
	Prime     string `xml:"prime"`
	Email     string `xml:"email"`

	SurfaceArea struct {
		Built string `xml:"built"`
		Plot  string `xml:"plot"`
	} `xml:"surface_area"`
	EnergyRating struct {
		Consumption string `xml:"consumption"`
		Emissions   string `xml:"emissions"`
	} `xml:"energy_rating"`

	URL      languageMap `xml:"url"`
	Desc     languageMap `xml:"desc"`
	Features []string    `xml:"features>feature"`
	Images   []rawImage  `xml:"images>image"`
}

type rawImage struct {
	ID  string `xml:"id,attr"`
	URL string `xml:"url"`
}

func (r *rawProperty) normalize() Property {
	p := Property{
		ID:        CanonicalID(r.ID),
		Ref:       strings.TrimSpace(r.Ref),
		Date:      strings.TrimSpace(r.Date),
		Price:     number(r.Price),
		Currency:  orDefault(r.Currency, "EUR"),
		PriceFreq: orDefault(r.PriceFreq, "sale"),
		Type:      strings.TrimSpace(r.Type),
		Town:      strings.TrimSpace(r.Town),
		Province:  strings.TrimSpace(r.Province),
		Country:   orDefault(r.Country, "Spain"),
		Beds:      int(number(r.Beds)),
		Baths:     int(number(r.Baths)),
		Pool:      number(r.Pool) != 0,
		EnergyRating: EnergyRating{
			Consumption: orDefault(r.EnergyRating.Consumption, UnknownRating),
			Emissions:   orDefault(r.EnergyRating.Emissions, UnknownRating),
		},
		URL:      r.URL.values(),
		Desc:     r.Desc.values(),
		Features: make([]string, 0, len(r.Features)),
		Images:   make([]Image, 0, len(r.Images)),
		NewBuild: strings.TrimSpace(r.NewBuild) != "" && number(r.NewBuild) == 1,
		Prime:    int(number(r.Prime)),
		Email:    strings.TrimSpace(r.Email),
	}

	if v := number(r.SurfaceArea.Built); v != 0 {
		p.SurfaceArea.Built = &v
	}
	if v := number(r.SurfaceArea.Plot); v != 0 {
		p.SurfaceArea.Plot = &v
	}
	for _, f := range r.Features {
		p.Features = append(p.Features, strings.TrimSpace(f))
	}
	for _, img := range r.Images {
		p.Images = append(p.Images, Image{
			ID:  strings.TrimSpace(img.ID),
			URL: strings.TrimSpace(img.URL),
		})
	}
	return p
}

// number reads a numeric field leniently: anything unparseable is zero.
func number(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

// languageMap collects the per-language children of a <url> or <desc>
// element, keyed by element name.
type languageMap struct {
	m map[string]string
}

func (l *languageMap) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var lt localizedText
			if err := d.DecodeElement(&lt, &t); err != nil {
				return err
			}
			text, ok := lt.value()
			if !ok {
				continue
			}
			if l.m == nil {
				l.m = make(map[string]string)
			}
			l.m[t.Name.Local] = text
		case xml.EndElement:
			return nil
		}
	}
}

func (l languageMap) values() map[string]string {
	out := make(map[string]string, len(l.m))
	for k, v := range l.m {
		out[k] = v
	}
	return out
}

type textKind int

const (
	// plainText is a bare element holding only character data.
	plainText textKind = iota
	// localizedNode carries attributes or child elements next to its text.
	localizedNode
)

// localizedText is one language entry. Both shapes normalize to a string;
// a localizedNode without any direct text has no value.
type localizedText struct {
	kind textKind
	text string
}

func (lt *localizedText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	if len(start.Attr) > 0 {
		lt.kind = localizedNode
	}

	var sb strings.Builder
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.StartElement:
			lt.kind = localizedNode
			if err := d.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			lt.text = strings.TrimSpace(sb.String())
			return nil
		}
	}
}

func (lt localizedText) value() (string, bool) {
	if lt.kind == localizedNode && lt.text == "" {
		return "", false
	}
	return lt.text, true
}
