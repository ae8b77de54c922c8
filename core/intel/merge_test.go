package intel

import (
	"encoding/json"
	"testing"
	"time"
)

func TestApplyAgentResultWritesMappedField(t *testing.T) {
	city := NewCityIntelligence("lisbon")

	result := json.RawMessage(`{"headline":"Hills and light","narrative":"A city of miradouros."}`)
	if err := city.ApplyAgentResult(AgentStory, result); err != nil {
		t.Fatalf("expected story result to apply, got %v", err)
	}
	if city.Story == nil || city.Story.Headline != "Hills and light" {
		t.Fatalf("expected story to be populated, got %+v", city.Story)
	}
}

func TestApplyAgentResultIsMonotonic(t *testing.T) {
	city := NewCityIntelligence("lisbon")
	if err := city.ApplyAgentResult(AgentStory, json.RawMessage(`{"headline":"First"}`)); err != nil {
		t.Fatalf("first write failed: %v", err)
	}

	if err := city.ApplyAgentResult(AgentStory, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("empty result should not error: %v", err)
	}
	if city.Story == nil || city.Story.Headline != "First" {
		t.Fatalf("empty result cleared a populated field: %+v", city.Story)
	}

	if err := city.ApplyAgentResult(AgentHiddenGems, nil); err != nil {
		t.Fatalf("nil result should be a no-op, got %v", err)
	}
	if city.HiddenGems != nil {
		t.Fatalf("nil result should not populate anything")
	}
}

func TestApplyAgentResultStoryWithOnlyHighlights(t *testing.T) {
	city := NewCityIntelligence("lisbon")
	if err := city.ApplyAgentResult(AgentStory, json.RawMessage(`{"highlights":["tram 28 at dusk"]}`)); err != nil {
		t.Fatalf("highlights-only story should apply, got %v", err)
	}
	if city.Story == nil || len(city.Story.Highlights) != 1 {
		t.Fatalf("a story carrying only highlights counts as data: %+v", city.Story)
	}
}

func TestApplyAgentResultNoFieldAgent(t *testing.T) {
	city := NewCityIntelligence("lisbon")
	if err := city.ApplyAgentResult(AgentQuality, json.RawMessage(`{"score":90}`)); err != nil {
		t.Fatalf("no-field agent should be a no-op, got %v", err)
	}
	if city.Story != nil || city.MatchScore != nil || city.Quality != 0 {
		t.Fatalf("no-field agent mutated the record: %+v", city)
	}
}

func TestApplyAgentResultMalformed(t *testing.T) {
	city := NewCityIntelligence("lisbon")
	if err := city.ApplyAgentResult(AgentWeather, json.RawMessage(`{"summary":`)); err == nil {
		t.Fatalf("expected error for malformed result")
	}
	if city.Weather != nil {
		t.Fatalf("malformed result should not write the field")
	}
}

func TestCloneSharesNoMemory(t *testing.T) {
	city := NewCityIntelligence("rome")
	city.Story = &Story{Headline: "h", Highlights: []string{"forum"}}
	city.MatchScore = &MatchScore{Score: 80, Dimensions: map[string]int{"food": 9}}
	city.Clusters = []ActivityCluster{{Name: "centro", Activities: []string{"walk"}}}
	city.Logistics = &Logistics{Tips: []string{"validate tickets"}}

	copied := city.Clone()
	copied.Story.Highlights[0] = "changed"
	copied.MatchScore.Dimensions["food"] = 1
	copied.Clusters[0].Activities[0] = "changed"
	copied.Logistics.Tips[0] = "changed"

	if city.Story.Highlights[0] != "forum" ||
		city.MatchScore.Dimensions["food"] != 9 ||
		city.Clusters[0].Activities[0] != "walk" ||
		city.Logistics.Tips[0] != "validate tickets" {
		t.Fatalf("clone shares memory with the original: %+v", city)
	}
}

func TestMergeSnapshotTakesPrecedence(t *testing.T) {
	city := NewCityIntelligence("porto")
	city.Status = StatusProcessing
	city.Story = &Story{Headline: "Partial"}
	city.DeepDives = []DeepDiveEntry{{Topic: "food", Response: "Francesinha.", Timestamp: time.Now()}}

	snapshot := CityIntelligence{
		CityID:  "porto",
		Status:  StatusComplete,
		Quality: 88,
		Story:   &Story{Headline: "Final"},
	}
	city.Merge(snapshot)

	if city.Status != StatusComplete {
		t.Fatalf("expected complete status, got %q", city.Status)
	}
	if city.Story.Headline != "Final" {
		t.Fatalf("snapshot should replace individually-arrived fields, got %q", city.Story.Headline)
	}
	if len(city.DeepDives) != 1 {
		t.Fatalf("merge should preserve locally-appended deep dives")
	}
}

func TestMergeStatusNeverRegresses(t *testing.T) {
	if got := MergeStatus(StatusComplete, StatusProcessing); got != StatusComplete {
		t.Fatalf("complete regressed to %q", got)
	}
	if got := MergeStatus(StatusPending, StatusProcessing); got != StatusProcessing {
		t.Fatalf("expected processing, got %q", got)
	}
	if got := MergeStatus(StatusFailed, StatusComplete); got != StatusComplete {
		t.Fatalf("terminal snapshot should override failed, got %q", got)
	}
}

func TestCityPatchShallowMerge(t *testing.T) {
	city := NewCityIntelligence("rome")
	city.Quality = 70
	city.Story = &Story{Headline: "Old"}
	city.Weather = &Weather{Summary: "Sunny"}

	quality := 95
	patch := CityPatch{
		Quality: &quality,
		Story:   &Story{Headline: "New"},
	}
	patch.Apply(city)

	if city.Quality != 95 {
		t.Fatalf("expected patched quality 95, got %d", city.Quality)
	}
	if city.Story.Headline != "New" {
		t.Fatalf("expected patched story")
	}
	if city.Weather == nil || city.Weather.Summary != "Sunny" {
		t.Fatalf("untouched fields must survive a shallow merge")
	}
}

func TestAgentProgressMonotonicClamped(t *testing.T) {
	execution := AgentExecution{Status: AgentRunning}
	execution.SetProgress(40)
	execution.SetProgress(20)
	if execution.Progress != 40 {
		t.Fatalf("progress regressed to %d", execution.Progress)
	}
	execution.SetProgress(150)
	if execution.Progress != 100 {
		t.Fatalf("progress should clamp to 100, got %d", execution.Progress)
	}
}
