package tools

import (
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/koscakluka/ema-live/core/realtime"
)

// Declarations describes the tools a live session offers to the model.
func Declarations() []realtime.FunctionDeclaration {
	return []realtime.FunctionDeclaration{
		{
			Name:        ShowItineraryName,
			Description: "Displays a generated travel itinerary to the user.",
			Parameters:  reflectParameters(ShowItineraryArgs{}),
		},
		{
			Name:        FindAndShowFlightsName,
			Description: "Searches for and displays flight options to the user.",
			Parameters:  reflectParameters(FindAndShowFlightsArgs{}),
		},
	}
}

func reflectParameters(args any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{DoNotReference: true, Anonymous: true}
	schema := reflector.ReflectFromType(reflect.TypeOf(args))
	schema.Version = ""
	schema.ID = ""
	return schema
}
