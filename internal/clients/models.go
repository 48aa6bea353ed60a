package clients

import (
	"time"

	"call-insights/internal/response"

	"github.com/google/uuid"
)

// Undetermined is what the analysis pipeline reports for a value it could not infer.
const Undetermined = "не определено"

// FrequencyMap counts how often each observed value was reported for an attribute.
// Counters only grow; a nil map means the attribute was never observed.
type FrequencyMap map[string]int64

// Client aggregates every analyzed call made from one phone number within an organization.
type Client struct {
	ID          uuid.UUID `json:"id"`
	PhoneNumber string    `json:"phoneNumber"`
	OrgID       int64     `json:"orgId"`

	Age              FrequencyMap `json:"age"`
	Name             FrequencyMap `json:"name"`
	Sex              FrequencyMap `json:"sex"`
	Hobbies          FrequencyMap `json:"hobbies"`
	JobTitle         FrequencyMap `json:"jobTitle"`
	MaritalStatus    FrequencyMap `json:"maritalStatus"`
	PlaceOfResidence FrequencyMap `json:"placeOfResidence"`
	PlaceOfWork      FrequencyMap `json:"placeOfWork"`
	HavingChildren   FrequencyMap `json:"havingChildren"`
	SphereOfActivity FrequencyMap `json:"sphereOfActivity"`

	Relatives []Relative `json:"relatives"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Relative is a person close to the client, as mentioned during a call. Append-only.
type Relative struct {
	ID              uuid.UUID `json:"id"`
	ClientID        uuid.UUID `json:"clientId"`
	Name            string    `json:"name"`
	Age             string    `json:"age"`
	PlaceOfWork     string    `json:"placeOfWork"`
	DegreeOfKinship string    `json:"degreeOfKinship"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Determined reports whether at least one field carries a concrete value.
func (r Relative) Determined() bool {
	for _, v := range []string{r.Name, r.Age, r.PlaceOfWork, r.DegreeOfKinship} {
		if v != Undetermined {
			return true
		}
	}
	return false
}

// Attribute names one of the tracked frequency-map columns.
type Attribute string

const (
	AttrAge              Attribute = "age"
	AttrName             Attribute = "name"
	AttrSex              Attribute = "sex"
	AttrHobbies          Attribute = "hobbies"
	AttrJobTitle         Attribute = "jobTitle"
	AttrMaritalStatus    Attribute = "maritalStatus"
	AttrPlaceOfResidence Attribute = "placeOfResidence"
	AttrPlaceOfWork      Attribute = "placeOfWork"
	AttrHavingChildren   Attribute = "havingChildren"
	AttrSphereOfActivity Attribute = "sphereOfActivity"
)

// Attributes lists the tracked attributes in a fixed order.
var Attributes = []Attribute{
	AttrAge, AttrName, AttrSex, AttrHobbies, AttrJobTitle,
	AttrMaritalStatus, AttrPlaceOfResidence, AttrPlaceOfWork,
	AttrHavingChildren, AttrSphereOfActivity,
}

var attributeColumns = map[Attribute]string{
	AttrAge:              "age",
	AttrName:             "name",
	AttrSex:              "sex",
	AttrHobbies:          "hobbies",
	AttrJobTitle:         "job_title",
	AttrMaritalStatus:    "marital_status",
	AttrPlaceOfResidence: "place_of_residence",
	AttrPlaceOfWork:      "place_of_work",
	AttrHavingChildren:   "having_children",
	AttrSphereOfActivity: "sphere_of_activity",
}

// Column returns the storage column for a; ok is false for anything outside the whitelist.
func (a Attribute) Column() (string, bool) {
	c, ok := attributeColumns[a]
	return c, ok
}

// Map returns the frequency map field of c for a.
func (c *Client) Map(a Attribute) *FrequencyMap {
	switch a {
	case AttrAge:
		return &c.Age
	case AttrName:
		return &c.Name
	case AttrSex:
		return &c.Sex
	case AttrHobbies:
		return &c.Hobbies
	case AttrJobTitle:
		return &c.JobTitle
	case AttrMaritalStatus:
		return &c.MaritalStatus
	case AttrPlaceOfResidence:
		return &c.PlaceOfResidence
	case AttrPlaceOfWork:
		return &c.PlaceOfWork
	case AttrHavingChildren:
		return &c.HavingChildren
	case AttrSphereOfActivity:
		return &c.SphereOfActivity
	}
	return nil
}

// Observation is one attribute value reported by a call analysis.
type Observation struct {
	Attribute Attribute
	Value     string
}

var relativeShape = response.NewShape(response.Expose(
	"id", "name", "age", "placeOfWork", "degreeOfKinship", "createdAt", "updatedAt",
)...)

// Shape is the wire projection of a client.
var Shape = response.NewShape(response.Expose(
	"id", "phoneNumber", "orgId",
	"age", "name", "sex", "hobbies", "jobTitle", "maritalStatus",
	"placeOfResidence", "placeOfWork", "havingChildren", "sphereOfActivity",
	"createdAt", "updatedAt",
)...).With(response.Field{Name: "relatives", Shape: relativeShape, Many: true})
