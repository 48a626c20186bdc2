package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Record is the fixed extraction schema for one analyzed paper. Every
// field is a string except the subject count, which is integer-or-empty.
// Unset fields stay empty strings so the exported table always has the
// full column set.
type Record struct {
	Title                   string `json:"Title"`
	PMID                    string `json:"PMID"`
	FullTextLink            string `json:"Full Text Link"`
	AnalysisSource          string `json:"Analysis Source"`
	SubjectOfStudy          string `json:"Subject of Study"`
	DiseaseState            string `json:"Disease State"`
	SubjectCount            *int   `json:"Number of Subjects Studied"`
	TypeOfStudy             string `json:"Type of Study"`
	StudyDesign             string `json:"Study Design"`
	Intervention            string `json:"Intervention"`
	InterventionDose        string `json:"Intervention Dose"`
	InterventionDosageForm  string `json:"Intervention Dosage Form"`
	Control                 string `json:"Control"`
	PrimaryEndpoint         string `json:"Primary Endpoint"`
	PrimaryEndpointResult   string `json:"Primary Endpoint Result"`
	SecondaryEndpoints      string `json:"Secondary Endpoints"`
	SafetyEndpoints         string `json:"Safety Endpoints"`
	ResultsAvailable        string `json:"Results Available"`
	PrimaryEndpointMet      string `json:"Primary Endpoint Met"`
	StatisticalSignificance string `json:"Statistical Significance"`
	ClinicalSignificance    string `json:"Clinical Significance"`
	Conclusion              string `json:"Conclusion"`
	MainAuthor              string `json:"Main Author"`
	OtherAuthors            string `json:"Other Authors"`
	JournalName             string `json:"Journal Name"`
	PublicationDate         string `json:"Date of Publication"`
	Error                   string `json:"Error"`
	Filename                string `json:"Filename"`
	RawResponse             string `json:"Raw Response"`
}

// FieldNames is the canonical column order for tabular export.
var FieldNames = []string{
	"Title",
	"PMID",
	"Full Text Link",
	"Analysis Source",
	"Subject of Study",
	"Disease State",
	"Number of Subjects Studied",
	"Type of Study",
	"Study Design",
	"Intervention",
	"Intervention Dose",
	"Intervention Dosage Form",
	"Control",
	"Primary Endpoint",
	"Primary Endpoint Result",
	"Secondary Endpoints",
	"Safety Endpoints",
	"Results Available",
	"Primary Endpoint Met",
	"Statistical Significance",
	"Clinical Significance",
	"Conclusion",
	"Main Author",
	"Other Authors",
	"Journal Name",
	"Date of Publication",
	"Error",
	"Filename",
	"Raw Response",
}

// ToMap renders the record with every field present; unset fields are
// empty strings, never omitted.
func (r Record) ToMap() map[string]any {
	count := any("")
	if r.SubjectCount != nil {
		count = *r.SubjectCount
	}
	return map[string]any{
		"Title":                      r.Title,
		"PMID":                       r.PMID,
		"Full Text Link":             r.FullTextLink,
		"Analysis Source":            r.AnalysisSource,
		"Subject of Study":           r.SubjectOfStudy,
		"Disease State":              r.DiseaseState,
		"Number of Subjects Studied": count,
		"Type of Study":              r.TypeOfStudy,
		"Study Design":               r.StudyDesign,
		"Intervention":               r.Intervention,
		"Intervention Dose":          r.InterventionDose,
		"Intervention Dosage Form":   r.InterventionDosageForm,
		"Control":                    r.Control,
		"Primary Endpoint":           r.PrimaryEndpoint,
		"Primary Endpoint Result":    r.PrimaryEndpointResult,
		"Secondary Endpoints":        r.SecondaryEndpoints,
		"Safety Endpoints":           r.SafetyEndpoints,
		"Results Available":          r.ResultsAvailable,
		"Primary Endpoint Met":       r.PrimaryEndpointMet,
		"Statistical Significance":   r.StatisticalSignificance,
		"Clinical Significance":      r.ClinicalSignificance,
		"Conclusion":                 r.Conclusion,
		"Main Author":                r.MainAuthor,
		"Other Authors":              r.OtherAuthors,
		"Journal Name":               r.JournalName,
		"Date of Publication":        r.PublicationDate,
		"Error":                      r.Error,
		"Filename":                   r.Filename,
		"Raw Response":               r.RawResponse,
	}
}

// FieldValue returns the display string for a named column.
func (r Record) FieldValue(name string) string {
	if name == "Number of Subjects Studied" {
		if r.SubjectCount == nil {
			return ""
		}
		return strconv.Itoa(*r.SubjectCount)
	}
	val := r.ToMap()[name]
	s, _ := val.(string)
	return s
}

// decodeRecord parses a JSON object into a Record, coercing scalar values
// to strings where the model was sloppy about types. A decode error here
// means the span was not valid JSON at all.
func decodeRecord(data []byte) (Record, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Record{}, err
	}

	var rec Record
	for key, val := range raw {
		switch key {
		case "Number of Subjects Studied":
			if n, ok := coerceInt(val); ok {
				rec.SubjectCount = &n
			}
			continue
		}
		s := coerceString(val)
		switch key {
		case "Title":
			rec.Title = s
		case "PMID":
			rec.PMID = s
		case "Full Text Link":
			rec.FullTextLink = s
		case "Analysis Source":
			rec.AnalysisSource = s
		case "Subject of Study":
			rec.SubjectOfStudy = s
		case "Disease State":
			rec.DiseaseState = s
		case "Type of Study":
			rec.TypeOfStudy = s
		case "Study Design":
			rec.StudyDesign = s
		case "Intervention":
			rec.Intervention = s
		case "Intervention Dose":
			rec.InterventionDose = s
		case "Intervention Dosage Form":
			rec.InterventionDosageForm = s
		case "Control":
			rec.Control = s
		case "Primary Endpoint":
			rec.PrimaryEndpoint = s
		case "Primary Endpoint Result":
			rec.PrimaryEndpointResult = s
		case "Secondary Endpoints":
			rec.SecondaryEndpoints = s
		case "Safety Endpoints":
			rec.SafetyEndpoints = s
		case "Results Available":
			rec.ResultsAvailable = s
		case "Primary Endpoint Met":
			rec.PrimaryEndpointMet = s
		case "Statistical Significance":
			rec.StatisticalSignificance = s
		case "Clinical Significance":
			rec.ClinicalSignificance = s
		case "Conclusion":
			rec.Conclusion = s
		case "Main Author":
			rec.MainAuthor = s
		case "Other Authors":
			rec.OtherAuthors = s
		case "Journal Name":
			rec.JournalName = s
		case "Date of Publication":
			rec.PublicationDate = s
		case "Error":
			rec.Error = s
		case "Filename":
			rec.Filename = s
		case "Raw Response":
			rec.RawResponse = s
		}
		// Unknown keys are dropped: the schema is closed.
	}
	return rec, nil
}

// decodeRunResults restores records from a persisted run's JSON array.
func decodeRunResults(data []byte) ([]Record, error) {
	if len(data) == 0 {
		return []Record{}, nil
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := decodeRecord(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func coerceString(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "Yes"
		}
		return "No"
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

func coerceInt(val any) (int, bool) {
	switch v := val.(type) {
	case float64:
		if v == math.Trunc(v) {
			return int(v), true
		}
		return 0, false
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		n, err := strconv.Atoi(trimmed)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
