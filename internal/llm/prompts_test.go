package llm

import (
	"strings"
	"testing"
)

func TestBuildSystemPromptIsPure(t *testing.T) {
	a := BuildSystemPrompt(true, ProviderOpenAI)
	b := BuildSystemPrompt(true, ProviderOpenAI)
	if a != b {
		t.Fatal("same inputs must yield the same prompt")
	}
}

func TestBuildSystemPromptProviderInstructions(t *testing.T) {
	openai := BuildSystemPrompt(false, ProviderOpenAI)
	anthropic := BuildSystemPrompt(false, ProviderAnthropic)
	if openai == anthropic {
		t.Fatal("providers must get distinct instructions")
	}
	if !strings.Contains(anthropic, "markdown code blocks") {
		t.Fatal("anthropic variant missing no-markdown directive")
	}
	if strings.Contains(openai, "markdown code blocks") {
		t.Fatal("openai variant should not carry the anthropic directive")
	}
}

func TestBuildSystemPromptDocumentAddition(t *testing.T) {
	abstract := BuildSystemPrompt(false, ProviderOpenAI)
	document := BuildSystemPrompt(true, ProviderOpenAI)
	if !strings.Contains(document, "full-text PDF") {
		t.Fatal("document variant missing full-text note")
	}
	if strings.Contains(abstract, "full-text PDF") {
		t.Fatal("abstract variant should not carry the full-text note")
	}
	if !strings.HasPrefix(document, baseAnalysisPrompt) {
		t.Fatal("document variant must start from the base prompt")
	}
}

func TestBuildSystemPromptSchemaFields(t *testing.T) {
	prompt := BuildSystemPrompt(false, ProviderOpenAI)
	for _, field := range []string{
		"'Title'",
		"'PMID'",
		"'Number of Subjects Studied'",
		"'Primary Endpoint Met'",
		"'Date of Publication'",
	} {
		if !strings.Contains(prompt, field) {
			t.Fatalf("prompt missing %s", field)
		}
	}
}
