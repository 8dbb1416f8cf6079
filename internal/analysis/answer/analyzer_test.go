package answer

import "testing"

func TestAnalyzeMetaRemark(t *testing.T) {
	decision := Analyze("Hello? Can you hear me?")
	if decision.Kind != Meta {
		t.Fatalf("expected meta remark, got %s", decision.Kind)
	}
	if decision.Matched == "" {
		t.Fatal("expected matched phrase to be reported")
	}
}

func TestAnalyzeShortAnswerIsVague(t *testing.T) {
	decision := Analyze("I don't know.")
	if decision.Kind != Vague {
		t.Fatalf("expected vague answer, got %s", decision.Kind)
	}
}

func TestAnalyzeEmptyTranscript(t *testing.T) {
	if got := Analyze("   ").Kind; got != Vague {
		t.Fatalf("expected vague for empty transcript, got %s", got)
	}
}

func TestAnalyzeSubstantiveAnswer(t *testing.T) {
	text := "In my last role I owned the billing service and migrated it to an event driven design, " +
		"maybe the hardest part was keeping invoices consistent during the cutover."
	decision := Analyze(text)
	if decision.Kind != Substantive {
		t.Fatalf("expected substantive answer, got %s (matched %q)", decision.Kind, decision.Matched)
	}
	if decision.WordCount < 20 {
		t.Fatalf("unexpected word count %d", decision.WordCount)
	}
}

func TestContainsPhraseRespectsWordBoundary(t *testing.T) {
	if containsPhrase("the maximum throughput we reached", "um") {
		t.Fatal("expected no match inside a word")
	}
	if !containsPhrase("um well it depends", "um") {
		t.Fatal("expected match at word boundary")
	}
}

func TestLongAnswerMentioningMicIsNotMeta(t *testing.T) {
	text := "We built a pipeline where the client would ask is this working and the health checker " +
		"replied with detailed diagnostics about every dependency so on call engineers could react faster than before"
	if IsMeta(text) {
		t.Fatal("long substantive answer should not be classified as meta")
	}
}
