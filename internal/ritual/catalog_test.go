package ritual

import (
	"testing"

	"clubbot/internal/models"
)

func TestValidateDefinition(t *testing.T) {
	good := dailyDef(6, 30)
	if err := ValidateDefinition(&good); err != nil {
		t.Fatalf("valid daily ritual rejected: %v", err)
	}

	weeklyNoDay := dailyDef(9, 0)
	weeklyNoDay.Cadence = models.CadenceWeekly
	if err := ValidateDefinition(&weeklyNoDay); err == nil {
		t.Error("weekly ritual without weekday accepted")
	}

	dailyWithDay := dailyDef(9, 0)
	dailyWithDay.Weekday = weekdayPtr(0)
	if err := ValidateDefinition(&dailyWithDay); err == nil {
		t.Error("daily ritual with weekday accepted")
	}

	badHour := dailyDef(24, 0)
	if err := ValidateDefinition(&badHour); err == nil {
		t.Error("send hour 24 accepted")
	}

	badWeekday := weeklyDef(9, 0, 7)
	if err := ValidateDefinition(&badWeekday); err == nil {
		t.Error("weekday 7 accepted")
	}

	badCadence := dailyDef(9, 0)
	badCadence.Cadence = "fortnightly"
	if err := ValidateDefinition(&badCadence); err == nil {
		t.Error("unknown cadence accepted")
	}

	badButtons := dailyDef(9, 0)
	badButtons.ResponseButtons = "{not json"
	if err := ValidateDefinition(&badButtons); err == nil {
		t.Error("malformed buttons accepted")
	}
}

func TestDefaultDefinitionsAreValid(t *testing.T) {
	defs := defaultDefinitions()
	if len(defs) != 5 {
		t.Fatalf("got %d default rituals, want 5", len(defs))
	}
	seen := make(map[models.RitualKind]bool)
	for i := range defs {
		if err := ValidateDefinition(&defs[i]); err != nil {
			t.Errorf("%s: %v", defs[i].Kind, err)
		}
		if seen[defs[i].Kind] {
			t.Errorf("%s: duplicate kind", defs[i].Kind)
		}
		seen[defs[i].Kind] = true
	}

	for _, kind := range []models.RitualKind{
		models.KindMorning, models.KindEvening, models.KindWeeklyChallenge,
		models.KindWeeklyGoals, models.KindFridayCycle,
	} {
		if !seen[kind] {
			t.Errorf("%s missing from defaults", kind)
		}
	}
}

func TestOutcomeForToken(t *testing.T) {
	completed := []string{"ready", "reported", "accepted", "set", "successful"}
	for _, tok := range completed {
		if got := OutcomeForToken(tok); got != models.OutcomeCompleted {
			t.Errorf("%s: got %s, want completed", tok, got)
		}
	}
	skipped := []string{"sleepy", "private", "maybe"}
	for _, tok := range skipped {
		if got := OutcomeForToken(tok); got != models.OutcomeSkipped {
			t.Errorf("%s: got %s, want skipped", tok, got)
		}
	}
	partial := []string{"planning", "improving"}
	for _, tok := range partial {
		if got := OutcomeForToken(tok); got != models.OutcomePartial {
			t.Errorf("%s: got %s, want partial", tok, got)
		}
	}
	if got := OutcomeForToken("never-seen"); got != models.OutcomeCompleted {
		t.Errorf("unknown token: got %s, want completed", got)
	}
}
