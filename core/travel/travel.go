// Package travel holds the records shown on the visual panel next to a live
// conversation.
package travel

type ItineraryDay struct {
	Day        int      `json:"day"`
	Title      string   `json:"title"`
	Activities []string `json:"activities"`
	Lodging    string   `json:"lodging,omitempty"`
}

type Itinerary struct {
	Destination string         `json:"destination"`
	Duration    int            `json:"duration"`
	Days        []ItineraryDay `json:"days"`
}

type FlightPrice struct {
	Currency string `json:"currency"`
	Total    string `json:"total"`
}

type FlightEndpoint struct {
	IATACode string `json:"iataCode"`
	At       string `json:"at"`
}

type FlightSegment struct {
	Departure     FlightEndpoint `json:"departure"`
	Arrival       FlightEndpoint `json:"arrival"`
	CarrierCode   string         `json:"carrierCode"`
	Duration      string         `json:"duration"`
	NumberOfStops int            `json:"numberOfStops"`
}

type FlightItinerary struct {
	Duration string          `json:"duration"`
	Segments []FlightSegment `json:"segments"`
}

type FlightOffer struct {
	ID          string            `json:"id"`
	Price       FlightPrice       `json:"price"`
	Itineraries []FlightItinerary `json:"itineraries"`
	CarrierCode string            `json:"carrierCode,omitempty"`
}

type TripType string

const (
	TripTypeOneWay    TripType = "one-way"
	TripTypeRoundTrip TripType = "round-trip"
)

// FlightSearchParams is the request body of the flight search backend.
type FlightSearchParams struct {
	Origin        string   `json:"origin"`
	Destination   string   `json:"destination"`
	DepartureDate string   `json:"departureDate"`
	ReturnDate    string   `json:"returnDate,omitempty"`
	MaxPrice      *float64 `json:"maxPrice,omitempty"`
	CurrencyCode  string   `json:"currencyCode,omitempty"`
	TravelClass   string   `json:"travelClass,omitempty"`
	NonStop       *bool    `json:"nonStop,omitempty"`
	TripType      TripType `json:"tripType,omitempty"`
}

type ViewMode string

const (
	ViewModeSearch    ViewMode = "search"
	ViewModeLoading   ViewMode = "loading"
	ViewModeItinerary ViewMode = "itinerary"
	ViewModeFlights   ViewMode = "flights"
)

// VisualPayload is what the panel renders. Exactly one of Itinerary and
// Flights is set; a payload with neither clears the panel.
type VisualPayload struct {
	Itinerary *Itinerary
	Flights   []FlightOffer
}

func (p VisualPayload) IsZero() bool {
	return p.Itinerary == nil && p.Flights == nil
}

// Mode is the view mode that displays the payload.
func (p VisualPayload) Mode() ViewMode {
	switch {
	case p.Itinerary != nil:
		return ViewModeItinerary
	case p.Flights != nil:
		return ViewModeFlights
	default:
		return ViewModeSearch
	}
}
