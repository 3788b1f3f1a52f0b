package extract

import (
	"reflect"
	"testing"
)

func TestExpressionCoverage(t *testing.T) {
	coverage := ExpressionCoverage([]string{"Happy", " happy", "NEUTRAL", "", "sad"})
	want := map[string]int{"happy": 2, "neutral": 1, "sad": 1}
	if !reflect.DeepEqual(coverage, want) {
		t.Fatalf("ExpressionCoverage = %v, want %v", coverage, want)
	}
}

func TestNewExpressions(t *testing.T) {
	novel := NewExpressions(
		[]string{"happy", "Angry", "angry", "fear"},
		[]string{"HAPPY", "neutral"},
	)
	if !reflect.DeepEqual(novel, []string{"angry", "fear"}) {
		t.Fatalf("NewExpressions = %v, want [angry fear]", novel)
	}
}

func TestNewExpressionsWithinEnrolledRange(t *testing.T) {
	if novel := NewExpressions([]string{"happy"}, []string{"happy", "sad"}); len(novel) != 0 {
		t.Fatalf("subset of profile emotions should yield none, got %v", novel)
	}
	if novel := NewExpressions(nil, []string{"happy"}); len(novel) != 0 {
		t.Fatalf("empty test emotions should yield none, got %v", novel)
	}
}
