package tools

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-live/core/travel"
)

var ErrInvalidArguments = errors.New("invalid tool arguments")

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type ItineraryDayArgs struct {
	Day        int      `json:"day"`
	Title      string   `json:"title"`
	Activities []string `json:"activities"`
	Lodging    string   `json:"lodging,omitempty"`
}

type ShowItineraryArgs struct {
	Destination string             `json:"destination"`
	Duration    int                `json:"duration" jsonschema:"description=Trip length in days"`
	Days        []ItineraryDayArgs `json:"days"`
}

func (a ShowItineraryArgs) Validate() error {
	var errs []error
	if strings.TrimSpace(a.Destination) == "" {
		errs = append(errs, errors.New("destination is required"))
	}
	if a.Duration < 0 {
		errs = append(errs, fmt.Errorf("duration must not be negative, got %d", a.Duration))
	}
	if len(a.Days) == 0 {
		errs = append(errs, errors.New("at least one day is required"))
	}
	for i, day := range a.Days {
		if strings.TrimSpace(day.Title) == "" {
			errs = append(errs, fmt.Errorf("day %d is missing a title", i+1))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}
	return nil
}

func (a ShowItineraryArgs) Itinerary() (*travel.Itinerary, error) {
	var itinerary travel.Itinerary
	if err := copier.Copy(&itinerary, &a); err != nil {
		return nil, fmt.Errorf("failed to convert itinerary arguments: %w", err)
	}
	for i := range itinerary.Days {
		if itinerary.Days[i].Activities == nil {
			itinerary.Days[i].Activities = []string{}
		}
	}
	return &itinerary, nil
}

type FindAndShowFlightsArgs struct {
	Origin        string   `json:"origin" jsonschema:"description=The departure city."`
	Destination   string   `json:"destination" jsonschema:"description=The arrival city."`
	DepartureDate string   `json:"departureDate" jsonschema:"description=The departure date in YYYY-MM-DD format."`
	ReturnDate    string   `json:"returnDate,omitempty" jsonschema:"description=The return date in YYYY-MM-DD format for round trips."`
	MaxPrice      *float64 `json:"maxPrice,omitempty" jsonschema:"description=Maximum acceptable total price in the selected currency."`
	CurrencyCode  string   `json:"currencyCode,omitempty" jsonschema:"description=Currency code for price filtering such as USD."`
	TravelClass   string   `json:"travelClass,omitempty" jsonschema:"description=Preferred cabin class such as ECONOMY or PREMIUM_ECONOMY or BUSINESS or FIRST."`
	NonStop       *bool    `json:"nonStop,omitempty" jsonschema:"description=Whether only non-stop flights should be shown."`
	TripType      string   `json:"tripType,omitempty" jsonschema:"description=one-way or round-trip (default to one-way if omitted).,enum=one-way,enum=round-trip"`
}

func (a FindAndShowFlightsArgs) Validate() error {
	var errs []error
	if strings.TrimSpace(a.Origin) == "" {
		errs = append(errs, errors.New("origin is required"))
	}
	if strings.TrimSpace(a.Destination) == "" {
		errs = append(errs, errors.New("destination is required"))
	}
	if !datePattern.MatchString(a.DepartureDate) {
		errs = append(errs, fmt.Errorf("departureDate %q is not in YYYY-MM-DD format", a.DepartureDate))
	}
	if a.ReturnDate != "" && !datePattern.MatchString(a.ReturnDate) {
		errs = append(errs, fmt.Errorf("returnDate %q is not in YYYY-MM-DD format", a.ReturnDate))
	}
	if a.MaxPrice != nil && *a.MaxPrice <= 0 {
		errs = append(errs, fmt.Errorf("maxPrice must be positive, got %v", *a.MaxPrice))
	}
	if a.CurrencyCode != "" && len(a.CurrencyCode) != 3 {
		errs = append(errs, fmt.Errorf("currencyCode %q must have 3 letters", a.CurrencyCode))
	}
	switch travel.TripType(a.TripType) {
	case "", travel.TripTypeOneWay, travel.TripTypeRoundTrip:
	default:
		errs = append(errs, fmt.Errorf("tripType %q must be one-way or round-trip", a.TripType))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}
	return nil
}

func (a FindAndShowFlightsArgs) SearchParams() (travel.FlightSearchParams, error) {
	var params travel.FlightSearchParams
	if err := copier.Copy(&params, &a); err != nil {
		return travel.FlightSearchParams{}, fmt.Errorf("failed to convert flight search arguments: %w", err)
	}
	params.TripType = travel.TripType(a.TripType)
	return params, nil
}
