package clock

import "strings"

// Transition describes the phase boundaries crossed between two clocks.
type Transition struct {
	DayPhase bool
	Season   bool
}

// Crossed reports whether any boundary was crossed.
func (t Transition) Crossed() bool { return t.DayPhase || t.Season }

// Between compares the calendar buckets of before and after.
func Between(before, after Clock) Transition {
	return Transition{
		DayPhase: before.PhaseOfDay() != after.PhaseOfDay(),
		Season:   before.Season() != after.Season(),
	}
}

var phaseNarratives = map[PhaseOfDay]string{
	{Night, Mid}:     "The world lies still in the dead of night.",
	{Night, Late}:    "The night wears on toward dawn.",
	{Morning, Early}: "The first light of dawn creeps over the horizon.",
	{Morning, Mid}:   "The morning sun climbs into the sky.",
	{Morning, Late}:  "The morning draws to a close.",
	{Day, Early}:     "The sun rides high overhead.",
	{Day, Mid}:       "The afternoon stretches on.",
	{Day, Late}:      "Shadows lengthen as the day wanes.",
	{Evening, Early}: "The sun sinks toward the horizon.",
	{Evening, Mid}:   "Dusk settles over the land.",
	{Evening, Late}:  "The last of the light fades from the sky.",
	{Night, Early}:   "Night falls.",
}

var seasonNarratives = map[Season]string{
	Winter: "A chill wind carries the bite of winter.",
	Spring: "The air smells of spring.",
	Summer: "The warmth of summer hangs in the air.",
	Autumn: "Autumn leaves drift on the breeze.",
}

// Narrative returns the notices a player sees when the clock moves from
// before to after. It is empty when no boundary was crossed.
func Narrative(before, after Clock) []string {
	t := Between(before, after)
	var out []string
	if t.DayPhase {
		out = append(out, phaseNarratives[after.PhaseOfDay()])
	}
	if t.Season {
		s := after.Season()
		if before.Season().Season != s.Season {
			out = append(out, seasonNarratives[s.Season])
		} else {
			out = append(out, "It is now "+lower(s.Period)+" "+lower(s.Season)+".")
		}
	}
	return out
}

func lower[S ~string](s S) string { return strings.ToLower(string(s)) }
