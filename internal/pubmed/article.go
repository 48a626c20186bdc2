package pubmed

import "strings"

// Article is a bibliographic record fetched from PubMed: structured
// metadata for a publication, as opposed to raw document text.
type Article struct {
	PMID     string
	Title    string
	Abstract string
	Journal  string
	PubDate  string
	Authors  []string
	DOI      string
}

// DOIURL returns the resolvable DOI link, or empty when no DOI is known.
func (a Article) DOIURL() string {
	if a.DOI == "" {
		return ""
	}
	return "https://doi.org/" + a.DOI
}

// PromptText renders the record as plain text for the model.
func (a Article) PromptText() string {
	var b strings.Builder
	writeLine := func(label, val string) {
		if val == "" {
			return
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(val)
		b.WriteString("\n")
	}
	writeLine("Title", a.Title)
	writeLine("PMID", a.PMID)
	writeLine("DOI", a.DOIURL())
	writeLine("Journal", a.Journal)
	writeLine("Publication Date", a.PubDate)
	writeLine("Authors", strings.Join(a.Authors, "; "))
	if a.Abstract != "" {
		b.WriteString("Abstract:\n")
		b.WriteString(a.Abstract)
		b.WriteString("\n")
	}
	return b.String()
}
