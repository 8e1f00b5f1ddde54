package models

import (
	"encoding/json"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// Well-known fields of the Austin Animal Center outcomes dataset
const (
	FieldAnimalID    = "animal_id"
	FieldAnimalType  = "animal_type"
	FieldName        = "name"
	FieldBreed       = "breed"
	FieldColor       = "color"
	FieldOutcomeType = "outcome_type"
	FieldDateOfBirth = "date_of_birth"
	FieldOutcomeDate = "datetime"

	OutcomeAdoption = "Adoption"

	// EventAnimalIntake is the event type of an intake message
	EventAnimalIntake = "AnimalIntake"
)

// Record is one schemaless animal document
type Record map[string]interface{}

// Query is a filter or update document in MongoDB query syntax
type Query map[string]interface{}

// BreedAdoption is one row of the adoptions-by-breed report
type BreedAdoption struct {
	Breed     string `json:"breed" bson:"_id"`
	Adoptions int64  `json:"adoptions" bson:"adoption_count"`
}

// MonthlyAdoption is one row of the seasonal adoption report
type MonthlyAdoption struct {
	Month     int   `json:"month" bson:"_id"`
	Adoptions int64 `json:"adoptions" bson:"adoptions"`
}

// IntakeMessage is the Service Bus envelope for a new animal record
type IntakeMessage struct {
	EventType string          `json:"ev"`
	Lookup    json.RawMessage `json:"lookup"`
	Data      json.RawMessage `json:"data"`
}

// NewIntakeMessage builds an intake message from Extended JSON documents
func NewIntakeMessage(data, lookup []byte) IntakeMessage {
	msg := IntakeMessage{EventType: EventAnimalIntake}
	if len(data) > 0 {
		msg.Data = json.RawMessage(data)
	}
	if len(lookup) > 0 {
		msg.Lookup = json.RawMessage(lookup)
	}
	return msg
}

// ParseRecord decodes relaxed Extended JSON into a Record, keeping BSON
// types such as dates and 64-bit integers. Empty input yields a nil Record.
func ParseRecord(data []byte) (Record, error) {
	m, err := parseExtJSON(data)
	if err != nil {
		return nil, err
	}
	return Record(m), nil
}

// ParseQuery decodes relaxed Extended JSON into a Query. Empty input yields a
// nil Query.
func ParseQuery(data []byte) (Query, error) {
	m, err := parseExtJSON(data)
	if err != nil {
		return nil, err
	}
	return Query(m), nil
}

func parseExtJSON(data []byte) (bson.M, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var m bson.M
	if err := bson.UnmarshalExtJSON(data, false, &m); err != nil {
		return nil, errors.Wrap(err, "invalid extended JSON document")
	}
	return m, nil
}
