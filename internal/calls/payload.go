package calls

import "time"

// CreateRequest is the ingest payload sent by the telephony integration.
type CreateRequest struct {
	CallID        int64          `json:"call_info_id"`
	ClientPhone   string         `json:"client_phone"`
	CallDate      time.Time      `json:"call_date"`
	CallType      string         `json:"call_type"`
	CallDuration  int            `json:"call_duration"`
	ManagerName   *string        `json:"manager_name"`
	ManagerPhone  *string        `json:"manager_phone"`
	OrgID         int64          `json:"org_id"`
	Transcription *Transcription `json:"transcribation,omitempty"`
}

// Transcription is an optional file attached at ingest time. Content is base64.
type Transcription struct {
	Name     string  `json:"name"`
	Content  string  `json:"content"`
	MimeType *string `json:"mime_type"`
}

// UploadInfoRequest is the analysis payload produced by the speech analytics pipeline.
// Keys below info.result are Russian as emitted by the pipeline.
type UploadInfoRequest struct {
	CallID int64      `json:"call_info_id"`
	Info   UploadInfo `json:"info"`
}

type UploadInfo struct {
	Name   string         `json:"name"`
	Result AnalysisResult `json:"result"`
}

type AnalysisResult struct {
	ClientData       ClientData       `json:"данные_о_клиенте"`
	CallInfo         CallInfo         `json:"информация_по_звонку"`
	ManagerInfo      ManagerInfo      `json:"информация_по_менеджеру"`
	SatisfactionInfo SatisfactionData `json:"удовлетворенность_клиента"`
	InsightsInfo     InsightsData     `json:"классификация_инсайтов_клиента"`
}

type ClientData struct {
	Name                string       `json:"имя"`
	Sex                 string       `json:"пол"`
	Age                 string       `json:"возраст"`
	JobTitle            string       `json:"должность"`
	PlaceOfWork         string       `json:"место_работы"`
	HavingChildren      string       `json:"наличие_детей"`
	PlaceOfResidence    string       `json:"где_живет_клиент"`
	Hobbies             string       `json:"хобби_и_интересы"`
	MaritalStatus       string       `json:"семейное_положение"`
	SphereOfActivity    string       `json:"сфера_деятельности"`
	RelativeInfo        RelativeData `json:"информация_о_близких"`
	AgeAssessmentReason string       `json:"причина_оценки_возраста"`
}

type RelativeData struct {
	Name            string `json:"имя"`
	Age             string `json:"возраст"`
	PlaceOfWork     string `json:"место_работы"`
	DegreeOfKinship string `json:"степень_родства"`
}

type CallInfo struct {
	Essence                 string `json:"суть_звонка"`
	InitiatorOfTopics       string `json:"инициатор_тем"`
	IdentifiedProblem       string `json:"выявленная_проблема"`
	ConversationDriver      string `json:"кто_управляет_беседой"`
	ProblemResolutionStatus string `json:"статус_решения_проблемы"`
	NextContactDate         string `json:"дата_следующего_контакта"`
	ClientInterest          string `json:"чем_интересовался_клиент"`
}

type ManagerInfo struct {
	ManagerTask string `json:"что_должен_сделать_менеджер"`
}

type SatisfactionData struct {
	Recommendations []string   `json:"рекомендации"`
	InitialRating   RatingData `json:"начальная_оценка"`
	FinalRating     RatingData `json:"окончательная_оценка"`
	Comparison      string     `json:"сравнение_удовлетворенности"`
}

type RatingData struct {
	Score  string `json:"балл"`
	Reason string `json:"причина"`
}

type InsightsData struct {
	Pain      InsightData `json:"боли"`
	Interests InsightData `json:"интересы"`
	Needs     InsightData `json:"потребности"`
}

type InsightData struct {
	Type       string   `json:"тип"`
	Categories []string `json:"категории"`
	Mentions   int      `json:"упоминания"`
	Intensity  int      `json:"интенсивность"`
}

func ptr(s string) *string { return &s }

// Analysis maps the call-level fields onto the call row.
func (r AnalysisResult) Analysis() Analysis {
	return Analysis{
		Essence:                 ptr(r.CallInfo.Essence),
		InitiatorOfTopics:       ptr(r.CallInfo.InitiatorOfTopics),
		IdentifiedProblem:       ptr(r.CallInfo.IdentifiedProblem),
		ConversationDriver:      ptr(r.CallInfo.ConversationDriver),
		ProblemResolutionStatus: ptr(r.CallInfo.ProblemResolutionStatus),
		NextContactDate:         ptr(r.CallInfo.NextContactDate),
		ClientInterest:          ptr(r.CallInfo.ClientInterest),
		ManagerTask:             ptr(r.ManagerInfo.ManagerTask),
	}
}

func (d InsightData) insight() Insight {
	return Insight{Type: d.Type, Categories: d.Categories, Mentions: d.Mentions, Intensity: d.Intensity}
}

// Details maps the nested sections onto the three child records.
func (r AnalysisResult) Details() Details {
	cd := r.ClientData
	recs := r.SatisfactionInfo.Recommendations
	if recs == nil {
		recs = []string{}
	}
	return Details{
		ClientInfo: ClientInfo{
			Name:                cd.Name,
			Sex:                 cd.Sex,
			Age:                 cd.Age,
			JobTitle:            cd.JobTitle,
			PlaceOfWork:         cd.PlaceOfWork,
			HavingChildren:      cd.HavingChildren,
			PlaceOfResidence:    cd.PlaceOfResidence,
			Hobbies:             cd.Hobbies,
			MaritalStatus:       cd.MaritalStatus,
			SphereOfActivity:    cd.SphereOfActivity,
			AgeAssessmentReason: cd.AgeAssessmentReason,
			RelativeInfo: RelativeInfo{
				Name:            cd.RelativeInfo.Name,
				Age:             cd.RelativeInfo.Age,
				PlaceOfWork:     cd.RelativeInfo.PlaceOfWork,
				DegreeOfKinship: cd.RelativeInfo.DegreeOfKinship,
			},
		},
		Insights: InsightsInfo{
			Pain:      r.InsightsInfo.Pain.insight(),
			Interests: r.InsightsInfo.Interests.insight(),
			Needs:     r.InsightsInfo.Needs.insight(),
		},
		Satisfaction: SatisfactionInfo{
			Recommendations: recs,
			InitialRating:   Rating(r.SatisfactionInfo.InitialRating),
			FinalRating:     Rating(r.SatisfactionInfo.FinalRating),
			Comparison:      r.SatisfactionInfo.Comparison,
		},
	}
}
