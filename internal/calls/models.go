package calls

import (
	"time"

	"call-insights/internal/clients"
	"call-insights/internal/response"

	"github.com/google/uuid"
)

// Call is one ingested call-center call, later enriched by exactly one analysis upload.
//
// Invariant: AnalyzedAt is set iff the call is in StatusAnalyzed, and then ClientInfo,
// ClientInsightsInfo and SatisfactionInfo all exist.
type Call struct {
	ID           uuid.UUID `json:"id"`
	CallID       int64     `json:"callId"`
	ClientPhone  string    `json:"clientPhone"`
	Datetime     time.Time `json:"datetime"`
	Direction    string    `json:"direction"`
	Duration     int       `json:"duration"`
	ManagerName  *string   `json:"managerName"`
	ManagerPhone *string   `json:"managerPhone"`
	OrgID        int64     `json:"orgId"`

	Analysis

	TranscriptionKey *string    `json:"transcriptionKey"`
	AnalyzedAt       *time.Time `json:"analyzedAt"`

	ClientInfo         *ClientInfo       `json:"clientInfo,omitempty"`
	ClientInsightsInfo *InsightsInfo     `json:"clientInsightsInfo,omitempty"`
	SatisfactionInfo   *SatisfactionInfo `json:"satisfactionInfo,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Status string

const (
	StatusIngested Status = "ingested"
	StatusAnalyzed Status = "analyzed"
)

func (c Call) Status() Status {
	if c.AnalyzedAt != nil {
		return StatusAnalyzed
	}
	return StatusIngested
}

// Analysis holds the derived text fields written onto the call row by an upload.
type Analysis struct {
	Essence                 *string `json:"essence"`
	InitiatorOfTopics       *string `json:"initiatorOfTopics"`
	IdentifiedProblem       *string `json:"identifiedProblem"`
	ConversationDriver      *string `json:"conversationDriver"`
	ProblemResolutionStatus *string `json:"problemResolutionStatus"`
	NextContactDate         *string `json:"nextContactDate"`
	ClientInterest          *string `json:"clientInterest"`
	ManagerTask             *string `json:"managerTask"`
}

// ClientInfo is the demographic snapshot of the caller taken from one call.
type ClientInfo struct {
	Name                string       `json:"name"`
	Sex                 string       `json:"sex"`
	Age                 string       `json:"age"`
	JobTitle            string       `json:"jobTitle"`
	PlaceOfWork         string       `json:"placeOfWork"`
	HavingChildren      string       `json:"havingChildren"`
	PlaceOfResidence    string       `json:"placeOfResidence"`
	Hobbies             string       `json:"hobbies"`
	MaritalStatus       string       `json:"maritalStatus"`
	SphereOfActivity    string       `json:"sphereOfActivity"`
	AgeAssessmentReason string       `json:"ageAssessmentReason"`
	RelativeInfo        RelativeInfo `json:"relativeInfo"`
}

type RelativeInfo struct {
	Name            string `json:"name"`
	Age             string `json:"age"`
	PlaceOfWork     string `json:"placeOfWork"`
	DegreeOfKinship string `json:"degreeOfKinship"`
}

// Observations lists the ten tracked client attributes reported by the snapshot.
func (ci ClientInfo) Observations() []clients.Observation {
	return []clients.Observation{
		{Attribute: clients.AttrAge, Value: ci.Age},
		{Attribute: clients.AttrName, Value: ci.Name},
		{Attribute: clients.AttrSex, Value: ci.Sex},
		{Attribute: clients.AttrHobbies, Value: ci.Hobbies},
		{Attribute: clients.AttrJobTitle, Value: ci.JobTitle},
		{Attribute: clients.AttrMaritalStatus, Value: ci.MaritalStatus},
		{Attribute: clients.AttrPlaceOfResidence, Value: ci.PlaceOfResidence},
		{Attribute: clients.AttrPlaceOfWork, Value: ci.PlaceOfWork},
		{Attribute: clients.AttrHavingChildren, Value: ci.HavingChildren},
		{Attribute: clients.AttrSphereOfActivity, Value: ci.SphereOfActivity},
	}
}

func (r RelativeInfo) relative() clients.Relative {
	return clients.Relative{Name: r.Name, Age: r.Age, PlaceOfWork: r.PlaceOfWork, DegreeOfKinship: r.DegreeOfKinship}
}

type Insight struct {
	Type       string   `json:"type"`
	Categories []string `json:"categories"`
	Mentions   int      `json:"mentions"`
	Intensity  int      `json:"intensity"`
}

type InsightsInfo struct {
	Pain      Insight `json:"pain"`
	Interests Insight `json:"interests"`
	Needs     Insight `json:"needs"`
}

type Rating struct {
	Score  string `json:"score"`
	Reason string `json:"reason"`
}

type SatisfactionInfo struct {
	Recommendations []string `json:"recommendations"`
	InitialRating   Rating   `json:"initialRating"`
	FinalRating     Rating   `json:"finalRating"`
	Comparison      string   `json:"comparison"`
}

// Details groups the three one-to-one child records created by an analysis upload.
type Details struct {
	ClientInfo   ClientInfo
	Insights     InsightsInfo
	Satisfaction SatisfactionInfo
}

// Sort orders a call listing. Empty means newest first.
type Sort struct {
	Datetime string `json:"datetime,omitempty"`
}

var (
	relativeInfoShape = response.NewShape(response.Expose("name", "age", "placeOfWork", "degreeOfKinship")...)
	clientInfoShape   = response.NewShape(response.Expose(
		"name", "sex", "age", "jobTitle", "placeOfWork", "havingChildren", "placeOfResidence",
		"hobbies", "maritalStatus", "sphereOfActivity", "ageAssessmentReason",
	)...).With(response.Field{Name: "relativeInfo", Shape: relativeInfoShape})
	insightShape  = response.NewShape(response.Expose("type", "categories", "mentions", "intensity")...)
	insightsShape = response.NewShape(
		response.Field{Name: "pain", Shape: insightShape},
		response.Field{Name: "interests", Shape: insightShape},
		response.Field{Name: "needs", Shape: insightShape},
	)
	ratingShape       = response.NewShape(response.Expose("score", "reason")...)
	satisfactionShape = response.NewShape(
		response.Field{Name: "recommendations"},
		response.Field{Name: "initialRating", Shape: ratingShape},
		response.Field{Name: "finalRating", Shape: ratingShape},
		response.Field{Name: "comparison"},
	)
)

// Shape is the wire projection of a call. Storage keys stay internal.
var Shape = response.NewShape(response.Expose(
	"id", "callId", "clientPhone", "datetime", "direction", "duration",
	"managerName", "managerPhone", "orgId",
	"essence", "initiatorOfTopics", "identifiedProblem", "conversationDriver",
	"problemResolutionStatus", "nextContactDate", "clientInterest", "managerTask",
	"analyzedAt", "createdAt", "updatedAt",
)...).With(
	response.Field{Name: "clientInfo", Shape: clientInfoShape},
	response.Field{Name: "clientInsightsInfo", Shape: insightsShape},
	response.Field{Name: "satisfactionInfo", Shape: satisfactionShape},
)
