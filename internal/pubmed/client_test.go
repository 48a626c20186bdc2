package pubmed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const efetchFixture = `<?xml version="1.0"?>
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID>31622345</PMID>
      <Article>
        <Journal>
          <JournalIssue>
            <PubDate>
              <Year>2019</Year>
              <Month>10</Month>
              <Day>17</Day>
            </PubDate>
          </JournalIssue>
          <Title>The New England Journal of Medicine</Title>
        </Journal>
        <ArticleTitle>Dapagliflozin in Patients with Heart Failure</ArticleTitle>
        <ELocationID EIdType="doi">10.1056/NEJMoa1911303</ELocationID>
        <Abstract>
          <AbstractText Label="BACKGROUND">Patients with heart failure have poor outcomes.</AbstractText>
          <AbstractText Label="RESULTS">Dapagliflozin reduced the risk of worsening heart failure.</AbstractText>
        </Abstract>
        <AuthorList>
          <Author>
            <LastName>McMurray</LastName>
            <Initials>JJV</Initials>
          </Author>
          <Author>
            <LastName>Solomon</LastName>
            <Initials>SD</Initials>
          </Author>
        </AuthorList>
      </Article>
    </MedlineCitation>
    <PubmedData>
      <ArticleIdList>
        <ArticleId IdType="pubmed">31622345</ArticleId>
        <ArticleId IdType="doi">10.1056/NEJMoa1911303</ArticleId>
      </ArticleIdList>
    </PubmedData>
  </PubmedArticle>
</PubmedArticleSet>`

func newTestPubMed(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient("tester@example.org", "secret-key")
	client.baseURL = srv.URL
	return client
}

func TestSearchReturnsIDList(t *testing.T) {
	var gotQuery, gotRetmax, gotEmail, gotAPIKey string
	client := newTestPubMed(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "esearch.fcgi") {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		gotQuery = q.Get("term")
		gotRetmax = q.Get("retmax")
		gotEmail = q.Get("email")
		gotAPIKey = q.Get("api_key")
		w.Write([]byte(`{"esearchresult": {"count": "2", "idlist": ["31622345", "32865377"]}}`))
	})

	ids, err := client.Search(context.Background(), "dapagliflozin heart failure", 50)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(ids) != 2 || ids[0] != "31622345" {
		t.Fatalf("ids = %v", ids)
	}
	if gotQuery != "dapagliflozin heart failure" {
		t.Fatalf("term = %q", gotQuery)
	}
	if gotRetmax != "50" {
		t.Fatalf("retmax = %q", gotRetmax)
	}
	if gotEmail != "tester@example.org" {
		t.Fatalf("email = %q", gotEmail)
	}
	if gotAPIKey != "secret-key" {
		t.Fatalf("api_key = %q", gotAPIKey)
	}
}

func TestSearchEmptyResult(t *testing.T) {
	client := newTestPubMed(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"esearchresult": {"count": "0", "idlist": []}}`))
	})

	ids, err := client.Search(context.Background(), "zxqv nonsense", 10)
	if err != nil {
		t.Fatalf("an empty result is not an error: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("ids = %v", ids)
	}
}

func TestCount(t *testing.T) {
	client := newTestPubMed(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("retmax"); got != "0" {
			t.Errorf("count must not fetch IDs, retmax = %q", got)
		}
		w.Write([]byte(`{"esearchresult": {"count": "1543", "idlist": []}}`))
	})

	count, err := client.Count(context.Background(), "aspirin")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1543 {
		t.Fatalf("count = %d", count)
	}
}

func TestFetchParsesArticles(t *testing.T) {
	var gotIDs string
	client := newTestPubMed(t, func(w http.ResponseWriter, r *http.Request) {
		gotIDs = r.URL.Query().Get("id")
		w.Write([]byte(efetchFixture))
	})

	articles, err := client.Fetch(context.Background(), []string{"31622345"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotIDs != "31622345" {
		t.Fatalf("id param = %q", gotIDs)
	}
	if len(articles) != 1 {
		t.Fatalf("got %d articles", len(articles))
	}

	a := articles[0]
	if a.PMID != "31622345" {
		t.Fatalf("PMID = %q", a.PMID)
	}
	if a.Title != "Dapagliflozin in Patients with Heart Failure" {
		t.Fatalf("Title = %q", a.Title)
	}
	if a.Journal != "The New England Journal of Medicine" {
		t.Fatalf("Journal = %q", a.Journal)
	}
	if a.PubDate != "2019-10-17" {
		t.Fatalf("PubDate = %q", a.PubDate)
	}
	if a.DOI != "10.1056/NEJMoa1911303" {
		t.Fatalf("DOI = %q", a.DOI)
	}
	if len(a.Authors) != 2 || a.Authors[0] != "McMurray, JJV" {
		t.Fatalf("Authors = %v", a.Authors)
	}
	if !strings.Contains(a.Abstract, "BACKGROUND: Patients with heart failure") {
		t.Fatalf("Abstract = %q", a.Abstract)
	}
	if !strings.Contains(a.Abstract, "RESULTS: Dapagliflozin reduced") {
		t.Fatalf("Abstract = %q", a.Abstract)
	}
}

func TestFetchBatchesIntoOneCall(t *testing.T) {
	calls := 0
	client := newTestPubMed(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if got := r.URL.Query().Get("id"); got != "1,2,3" {
			t.Errorf("id param = %q", got)
		}
		w.Write([]byte(`<PubmedArticleSet></PubmedArticleSet>`))
	})

	if _, err := client.Fetch(context.Background(), []string{"1", "2", "3"}); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestFetchNoIDs(t *testing.T) {
	client := newTestPubMed(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty ID set")
	})

	articles, err := client.Fetch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if articles != nil {
		t.Fatalf("articles = %v", articles)
	}
}

func TestGetNonOKStatus(t *testing.T) {
	client := newTestPubMed(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	if _, err := client.Search(context.Background(), "q", 5); err == nil {
		t.Fatal("non-200 status must be an error")
	}
}
