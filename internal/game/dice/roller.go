package dice

// Roll evaluates expr with src.
//
// Precondition: expr must come from Parse; src must be non-nil.
// Postcondition: len(result.Dice) == expr.Count and
// expr.Min() <= result.Total() <= expr.Max().
func Roll(expr Expression, src Source) RollResult {
	res := RollResult{
		Expression: expr.Raw,
		Dice:       make([]int, expr.Count),
		Modifier:   expr.Modifier,
	}
	for i := range res.Dice {
		res.Dice[i] = src.Intn(expr.Sides) + 1
	}
	return res
}
