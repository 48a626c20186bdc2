package analysis

import "testing"

func TestValidateRecordAccepts(t *testing.T) {
	count := 85
	cases := []struct {
		name string
		rec  Record
	}{
		{"complete record", Record{Title: "T", SubjectOfStudy: "Human", SubjectCount: &count, ResultsAvailable: "Yes", PrimaryEndpointMet: "No"}},
		{"empty record", Record{}},
		{"na values", Record{SubjectOfStudy: "NA", ResultsAvailable: "NA", PrimaryEndpointMet: "NA"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateRecord(tc.rec); err != nil {
				t.Fatalf("ValidateRecord: %v", err)
			}
		})
	}
}

func TestValidateRecordRejects(t *testing.T) {
	cases := []struct {
		name string
		rec  Record
	}{
		{"invented subject type", Record{SubjectOfStudy: "Martian"}},
		{"prose results flag", Record{ResultsAvailable: "Probably"}},
		{"prose endpoint flag", Record{PrimaryEndpointMet: "Somewhat"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateRecord(tc.rec); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestValidateRecordNegativeCount(t *testing.T) {
	count := -5
	if err := ValidateRecord(Record{SubjectCount: &count}); err == nil {
		t.Fatal("negative subject count must fail validation")
	}
}
